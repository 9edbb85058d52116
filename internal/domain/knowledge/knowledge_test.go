package knowledge

import (
	"fmt"
	"slices"
	"strings"
	"testing"
	"unicode/utf8"
)

const faq = "Check-in ab 15 Uhr, Check-out bis 11 Uhr.\n\n" +
	"Frühstück gibt es täglich von 7 bis 10 Uhr im Restaurant.\n\n" +
	"Parkplätze stehen direkt am Haus zur Verfügung.\n\n" +
	"Hunde sind willkommen, Frühstück für Hunde gibt es nicht."

func TestParagraphs(t *testing.T) {
	text := "eins\n\n\nzwei\r\n\r\ndrei\n  \t\nvier\n\n\n\n"
	got := Paragraphs(text)
	want := []string{"eins", "zwei", "drei", "vier"}
	if !slices.Equal(got, want) {
		t.Errorf("Paragraphs() = %q, want %q", got, want)
	}
}

func TestParagraphs_KeepsSingleNewlines(t *testing.T) {
	got := Paragraphs("Zeile 1\nZeile 2")
	if len(got) != 1 || got[0] != "Zeile 1\nZeile 2" {
		t.Errorf("single newline must not split, got %q", got)
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("Wann gibt es Frühstück? Frühstück, bitte! 24h-Rezeption 12")
	want := []string{"wann", "gibt", "frühstück", "bitte", "24h", "rezeption"}
	if !slices.Equal(got, want) {
		t.Errorf("Tokens() = %q, want %q", got, want)
	}
}

func TestRank_OrdersByScoreStable(t *testing.T) {
	chunks := Rank(faq, "Gibt es Frühstück?")
	if len(chunks) != 2 {
		t.Fatalf("expected 2 matching chunks, got %+v", chunks)
	}
	if !strings.HasPrefix(chunks[0].Text, "Frühstück gibt es") || chunks[0].Score != 2 {
		t.Errorf("unexpected first chunk %+v", chunks[0])
	}
	if !strings.HasPrefix(chunks[1].Text, "Hunde") || chunks[1].Score != 2 {
		t.Errorf("unexpected second chunk %+v", chunks[1])
	}
}

func TestRank_CaseInsensitive(t *testing.T) {
	chunks := Rank("PARKPLÄTZE am Haus", "parkplätze?")
	if len(chunks) != 1 || chunks[0].Score != 1 {
		t.Fatalf("expected one case-insensitive match, got %+v", chunks)
	}
}

func TestRank_FallbackFirstTen(t *testing.T) {
	var paras []string
	for i := range 15 {
		paras = append(paras, fmt.Sprintf("Absatz %d", i))
	}
	chunks := Rank(strings.Join(paras, "\n\n"), "xyzzy")
	if len(chunks) != 10 {
		t.Fatalf("expected 10 fallback chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Score != 1 || c.Text != paras[i] {
			t.Errorf("chunk %d = %+v, want %q score 1", i, c, paras[i])
		}
	}
}

func TestPickRelevantContext_Breakfast(t *testing.T) {
	knowledge := "Check-in ab 15 Uhr.\n\nFrühstück von 7 bis 10 Uhr im Restaurant.\n\nParkplätze vorhanden."
	got := PickRelevantContext(knowledge, "Wann gibt es Frühstück?", 8000)
	if got != "Frühstück von 7 bis 10 Uhr im Restaurant." {
		t.Errorf("unexpected context %q", got)
	}
}

func TestPickRelevantContext_FallbackWhenNothingMatches(t *testing.T) {
	knowledge := "A1 Text.\n\nB2 Text."
	got := PickRelevantContext(knowledge, "Sauna?", 8000)
	if got != "A1 Text.\n\nB2 Text." {
		t.Errorf("expected fallback paragraphs, got %q", got)
	}
}

func TestPickRelevantContext_RespectsBudget(t *testing.T) {
	knowledge := strings.Repeat("ü", 10) + " frühstück\n\n" + strings.Repeat("ö", 10) + " frühstück"
	// Each paragraph is 20 runes, 22 with the separator.
	got := PickRelevantContext(knowledge, "Frühstück", 30)
	if utf8.RuneCountInString(got) > 30 {
		t.Fatalf("context exceeds budget: %d runes", utf8.RuneCountInString(got))
	}
	if got != strings.Repeat("ü", 10)+" frühstück" {
		t.Errorf("expected only the first paragraph, got %q", got)
	}
}

func TestPickRelevantContext_StopsAtFirstOverflow(t *testing.T) {
	knowledge := "frühstück " + strings.Repeat("x", 50) + "\n\nfrühstück kurz"
	got := PickRelevantContext(knowledge, "frühstück", 20)
	if got != "" {
		t.Errorf("oversized leading paragraph should stop accumulation, got %q", got)
	}
}

func TestPickRelevantContext_Empty(t *testing.T) {
	if got := PickRelevantContext("", "Frühstück", 8000); got != "" {
		t.Errorf("expected empty context, got %q", got)
	}
	if got := PickRelevantContext(faq, "Frühstück", 0); got != "" {
		t.Errorf("expected empty context for zero budget, got %q", got)
	}
}

func TestPickRelevantContext_Deterministic(t *testing.T) {
	a := PickRelevantContext(faq, "Hunde Frühstück Parkplätze", 8000)
	for range 20 {
		if b := PickRelevantContext(faq, "Hunde Frühstück Parkplätze", 8000); a != b {
			t.Fatalf("non-deterministic result:\n%q\n%q", a, b)
		}
	}
}
