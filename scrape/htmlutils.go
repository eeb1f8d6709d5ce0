package scrape

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// maxJSONDepth bounds the search for an embedded record map.
const maxJSONDepth = 6

// extractNodeBySelector finds the first node matching a simple selector:
// "#id", ".class" or a tag name.
func extractNodeBySelector(doc *html.Node, selector string) (*html.Node, error) {
	var match func(*html.Node) bool
	switch {
	case strings.HasPrefix(selector, "#"):
		id := strings.TrimPrefix(selector, "#")
		match = func(n *html.Node) bool { return attr(n, "id") == id }
	case strings.HasPrefix(selector, "."):
		class := strings.TrimPrefix(selector, ".")
		match = func(n *html.Node) bool { return slices.Contains(strings.Fields(attr(n, "class")), class) }
	default:
		match = func(n *html.Node) bool { return n.Data == selector }
	}
	if n := findNode(doc, match); n != nil {
		return n, nil
	}
	return nil, fmt.Errorf("no element matches %q", selector)
}

// findNode returns the first element node, depth first, for which match holds.
func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

// eachNode calls fn for every element node below n.
func eachNode(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		eachNode(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

// extractTitle extracts the title from the HTML document, preferring og:title.
func extractTitle(doc *html.Node) string {
	if title := extractMeta(doc, "og:title"); title != "" {
		return title
	}
	if n := findNode(doc, func(n *html.Node) bool { return n.Data == "title" }); n != nil {
		return strings.TrimSpace(textContent(n))
	}
	return ""
}

// extractMeta returns the content of the first meta tag whose name or
// property equals name.
func extractMeta(doc *html.Node, name string) string {
	n := findNode(doc, func(n *html.Node) bool {
		return n.Data == "meta" && (attr(n, "name") == name || attr(n, "property") == name) && attr(n, "content") != ""
	})
	if n == nil {
		return ""
	}
	return strings.TrimSpace(attr(n, "content"))
}

func extractMetaDescription(doc *html.Node) string {
	if description := extractMeta(doc, "description"); description != "" {
		return description
	}
	return extractMeta(doc, "og:description")
}

func extractMetaKeywords(doc *html.Node) []string {
	var keywords []string
	for _, keyword := range strings.Split(extractMeta(doc, "keywords"), ",") {
		if trimmed := strings.TrimSpace(keyword); trimmed != "" {
			keywords = append(keywords, trimmed)
		}
	}
	return keywords
}

// extractRecordMapJSON looks through script bodies for a JSON document that
// carries a record map and returns its raw bytes.
func extractRecordMapJSON(doc *html.Node) json.RawMessage {
	var found json.RawMessage
	eachNode(doc, func(n *html.Node) {
		if found != nil || n.Data != "script" {
			return
		}
		body := bytes.TrimSpace([]byte(textContent(n)))
		if len(body) == 0 || body[0] != '{' || !json.Valid(body) {
			return
		}
		found = findRecordMap(body, 0)
	})
	return found
}

// findRecordMap walks nested objects without decoding them so the record
// order survives.
func findRecordMap(raw json.RawMessage, depth int) json.RawMessage {
	if depth > maxJSONDepth {
		return nil
	}
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return nil
	}
	if rm, ok := fields["recordMap"]; ok && isObject(rm) {
		return rm
	}
	if block, ok := fields["block"]; ok && isObject(block) {
		return raw
	}
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		value := fields[key]
		if !isObject(value) {
			continue
		}
		if rm := findRecordMap(value, depth+1); rm != nil {
			return rm
		}
	}
	return nil
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
