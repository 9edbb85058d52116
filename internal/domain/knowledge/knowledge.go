// Package knowledge selects the parts of a tenant's knowledge text that are
// relevant to a visitor question.
package knowledge

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// minTokenRunes is the shortest query token that counts; shorter ones are dropped.
	minTokenRunes = 3
	// fallbackParagraphs is how many leading paragraphs are used when nothing matches.
	fallbackParagraphs = 10
	separator          = "\n\n"
)

// Chunk is a paragraph of knowledge text together with its relevance score.
type Chunk struct {
	Text  string
	Score int
}

var paragraphBreak = regexp.MustCompile(`\r?\n[ \t\r]*\r?\n`)

// Paragraphs splits text on blank lines and returns the non-empty, trimmed paragraphs.
func Paragraphs(text string) []string {
	parts := paragraphBreak.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Tokens returns the distinct lowercase query tokens of question: runs of
// letters and digits with at least three runes, in first-seen order.
func Tokens(question string) []string {
	fields := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minTokenRunes {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Rank scores every paragraph by the number of distinct query tokens it
// contains and returns the matching chunks ordered by score, ties keeping
// document order. When no paragraph matches, the first ten paragraphs are
// returned with score 1.
func Rank(knowledgeText, question string) []Chunk {
	paras := Paragraphs(knowledgeText)
	tokens := Tokens(question)

	chunks := make([]Chunk, 0, len(paras))
	for _, p := range paras {
		lower := strings.ToLower(p)
		score := 0
		for _, tok := range tokens {
			if strings.Contains(lower, tok) {
				score++
			}
		}
		if score > 0 {
			chunks = append(chunks, Chunk{Text: p, Score: score})
		}
	}

	if len(chunks) == 0 {
		for _, p := range paras[:min(fallbackParagraphs, len(paras))] {
			chunks = append(chunks, Chunk{Text: p, Score: 1})
		}
		return chunks
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
	return chunks
}

// PickRelevantContext returns the highest-ranked paragraphs joined by blank
// lines, stopping before the accumulated text would exceed maxChars runes.
// The result is empty when the knowledge text is empty or maxChars is not positive.
func PickRelevantContext(knowledgeText, question string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	var b strings.Builder
	used := 0
	for _, c := range Rank(knowledgeText, question) {
		n := utf8.RuneCountInString(c.Text) + len(separator)
		if used+n > maxChars {
			break
		}
		b.WriteString(c.Text)
		b.WriteString(separator)
		used += n
	}
	return strings.TrimSpace(b.String())
}
