// Package answer restricts model-generated HTML to the small subset the chat
// widget renders.
package answer

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var allowedTags = map[string]bool{
	"a": true, "br": true, "strong": true, "em": true,
	"ul": true, "ol": true, "li": true, "p": true,
}

// rawTextTags are removed together with their content instead of being
// flattened to text.
var rawTextTags = map[string]bool{
	"script": true, "style": true, "iframe": true, "noscript": true,
	"template": true, "textarea": true, "title": true, "xmp": true,
	"object": true, "embed": true, "noembed": true, "noframes": true,
}

var allowedSchemes = []string{"http://", "https://", "mailto:", "tel:"}

var (
	rawBlockPattern = regexp.MustCompile(`(?is)<(script|style|iframe|noscript|template|textarea|title|xmp|object|noembed|noframes)\b[^>]*>.*?</(script|style|iframe|noscript|template|textarea|title|xmp|object|noembed|noframes)\s*>`)
	commentPattern  = regexp.MustCompile(`(?s)<!--.*?-->`)
	declPattern     = regexp.MustCompile(`<[!?][^>]*>`)
	tagPattern      = regexp.MustCompile(`</?([A-Za-z][A-Za-z0-9:-]*)\b[^>]*>`)
)

// Sanitize returns html reduced to the tags a, br, strong, em, ul, ol, li
// and p. Anchors keep only href and title, href must use http, https, mailto
// or tel, and rel/target are forced. An anchor without a usable href is
// replaced by its content. Disallowed elements are replaced by their text;
// script-like elements and comments are removed entirely.
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return sanitizeFragment(stripTags(s))
}

// sanitizeFragment parses s as the content of a div and applies the allow-list walk.
func sanitizeFragment(s string) string {
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(s), root)
	if err != nil {
		return ""
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}

	clean(root)

	var b strings.Builder
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return ""
		}
	}
	return strings.TrimSpace(b.String())
}

// stripTags is the text-level first pass. It is not authoritative; clean
// re-checks everything on the parsed tree.
func stripTags(s string) string {
	s = commentPattern.ReplaceAllString(s, "")
	s = rawBlockPattern.ReplaceAllString(s, "")
	s = declPattern.ReplaceAllString(s, "")
	return tagPattern.ReplaceAllStringFunc(s, func(tag string) string {
		name := tagPattern.FindStringSubmatch(tag)[1]
		if allowedTags[strings.ToLower(name)] {
			return tag
		}
		return ""
	})
}

func clean(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch c.Type {
		case html.ElementNode:
			tag := strings.ToLower(c.Data)
			switch {
			case rawTextTags[tag]:
				n.RemoveChild(c)
			case !allowedTags[tag]:
				n.InsertBefore(&html.Node{Type: html.TextNode, Data: textContent(c)}, c)
				n.RemoveChild(c)
			default:
				clean(c)
				if tag != "a" {
					c.Attr = nil
				} else if !cleanAnchor(c) {
					unwrap(n, c)
				}
			}
		case html.TextNode:
		default:
			n.RemoveChild(c)
		}
		c = next
	}
}

// cleanAnchor rewrites the attributes of an a element and reports whether a
// safe href survived.
func cleanAnchor(a *html.Node) bool {
	var href, title string
	var hasTitle bool
	for _, at := range a.Attr {
		if at.Namespace != "" {
			continue
		}
		switch strings.ToLower(at.Key) {
		case "href":
			href = strings.TrimSpace(at.Val)
		case "title":
			title = strings.TrimSpace(at.Val)
			hasTitle = true
		}
	}
	if !safeHref(href) {
		return false
	}
	attrs := []html.Attribute{{Key: "href", Val: href}}
	if hasTitle {
		attrs = append(attrs, html.Attribute{Key: "title", Val: title})
	}
	a.Attr = append(attrs,
		html.Attribute{Key: "rel", Val: "noopener noreferrer"},
		html.Attribute{Key: "target", Val: "_blank"},
	)
	return true
}

func safeHref(href string) bool {
	lower := strings.ToLower(href)
	for _, scheme := range allowedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

// unwrap replaces c by its children.
func unwrap(parent, c *html.Node) {
	for gc := c.FirstChild; gc != nil; {
		next := gc.NextSibling
		c.RemoveChild(gc)
		parent.InsertBefore(gc, c)
		gc = next
	}
	parent.RemoveChild(c)
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				b.WriteString(c.Data)
			case html.ElementNode:
				if !rawTextTags[strings.ToLower(c.Data)] {
					walk(c)
				}
			}
		}
	}
	walk(n)
	return b.String()
}

var scriptBlockPattern = regexp.MustCompile(`(?is)<\s*script[^>]*>.*?<\s*/\s*script\s*>`)

// StripScripts removes script elements with their content and leaves all
// other markup untouched. The built-in backend applies it before the
// gateway's full Sanitize pass.
func StripScripts(s string) string {
	return strings.TrimSpace(scriptBlockPattern.ReplaceAllString(s, ""))
}
