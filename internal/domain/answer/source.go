package answer

import "strings"

// Source is a reference link shown below an answer.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// FilterSources keeps entries of a decoded upstream "sources" value that are
// objects with non-empty string title and url. The url must be a safe
// absolute link or a site-relative path.
func FilterSources(raw any) []Source {
	list, ok := raw.([]any)
	if !ok {
		return []Source{}
	}
	out := make([]Source, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		title, _ := obj["title"].(string)
		url, _ := obj["url"].(string)
		title, url = strings.TrimSpace(title), strings.TrimSpace(url)
		if title == "" || url == "" {
			continue
		}
		if !safeHref(url) && !isSiteRelative(url) {
			continue
		}
		out = append(out, Source{Title: title, URL: url})
	}
	return out
}

func isSiteRelative(url string) bool {
	return strings.HasPrefix(url, "/") && !strings.HasPrefix(url, "//")
}
