package answer

import "testing"

func TestFilterSources(t *testing.T) {
	raw := []any{
		map[string]any{"title": "Hotel Website", "url": "https://seehotel.de"},
		map[string]any{"title": "Hotel FAQ", "url": "/seehotel/faq"},
		map[string]any{"title": "", "url": "https://x.de"},
		map[string]any{"title": "Böse", "url": "javascript:alert(1)"},
		map[string]any{"title": "Protokollrelativ", "url": "//evil.example"},
		map[string]any{"title": 5, "url": "https://x.de"},
		"string entry",
	}
	got := FilterSources(raw)
	want := []Source{
		{Title: "Hotel Website", URL: "https://seehotel.de"},
		{Title: "Hotel FAQ", URL: "/seehotel/faq"},
	}
	if len(got) != len(want) {
		t.Fatalf("FilterSources() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("source %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFilterSources_NotAList(t *testing.T) {
	for _, raw := range []any{nil, "x", map[string]any{}} {
		got := FilterSources(raw)
		if got == nil || len(got) != 0 {
			t.Errorf("FilterSources(%v) = %#v, want empty non-nil slice", raw, got)
		}
	}
}
