package notion

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode"
)

// Lookup walks v along path. String elements index objects, int elements
// index arrays. Any shape mismatch, out-of-range index or null value yields
// (nil, false).
func Lookup(v any, path ...any) (any, bool) {
	cur := v
	for _, p := range path {
		switch k := p.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			cur = m[k]
		case int:
			s, ok := cur.([]any)
			if !ok || k < 0 || k >= len(s) {
				return nil, false
			}
			cur = s[k]
		default:
			return nil, false
		}
		if cur == nil {
			return nil, false
		}
	}
	return cur, cur != nil
}

// ReadString returns the scalar at path formatted as a string, or def.
func ReadString(v any, def string, path ...any) string {
	x, ok := Lookup(v, path...)
	if !ok {
		return def
	}
	switch t := x.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	return def
}

// TextProperty builds a single-segment property value, [[s]].
func TextProperty(s string) []any {
	return []any{[]any{s}}
}

// mention is the placeholder text Notion uses for inline mentions.
const mention = "‣"

// segment is one piece of a rich text property.
type segment struct {
	text        string
	decorations []any
}

func segments(prop any) []segment {
	items, ok := prop.([]any)
	if !ok {
		return nil
	}
	out := make([]segment, 0, len(items))
	for _, item := range items {
		text, ok := Lookup(item, 0)
		if !ok {
			continue
		}
		s, ok := text.(string)
		if !ok {
			continue
		}
		seg := segment{text: s}
		if d, ok := Lookup(item, 1); ok {
			seg.decorations, _ = d.([]any)
		}
		if seg.text == mention {
			seg.text = seg.mentionText()
		}
		out = append(out, seg)
	}
	return out
}

// mentionText resolves date mentions; other mentions carry no readable text.
func (s segment) mentionText() string {
	for _, d := range s.decorations {
		if ReadString(d, "", 0) == "d" {
			return ReadString(d, "", 1, "start_date")
		}
	}
	return ""
}

// PlainText concatenates the text of every segment of a rich text property.
// For a single-segment property this is prop[0][0].
func PlainText(prop any) string {
	var sb strings.Builder
	for _, seg := range segments(prop) {
		sb.WriteString(seg.text)
	}
	return sb.String()
}

// richText renders a rich text property as inline markdown.
func richText(prop any) string {
	var sb strings.Builder
	for _, seg := range segments(prop) {
		if seg.text == "" {
			continue
		}
		sb.WriteString(seg.markdown())
	}
	return sb.String()
}

func (s segment) markdown() string {
	text := s.text
	var link string
	var bold, italic, strike, code bool
	for _, d := range s.decorations {
		switch ReadString(d, "", 0) {
		case "b":
			bold = true
		case "i":
			italic = true
		case "s":
			strike = true
		case "c":
			code = true
		case "a":
			link = ReadString(d, "", 1)
		}
	}
	if !bold && !italic && !strike && !code && link == "" {
		return text
	}
	// markers must hug the text, so surrounding spaces go outside
	lead := text[:len(text)-len(strings.TrimLeftFunc(text, unicode.IsSpace))]
	trail := text[len(strings.TrimRightFunc(text, unicode.IsSpace)):]
	core := strings.TrimSpace(text)
	if core == "" {
		return text
	}
	if code {
		core = "`" + core + "`"
	}
	if strike {
		core = "~~" + core + "~~"
	}
	if italic {
		core = "_" + core + "_"
	}
	if bold {
		core = "**" + core + "**"
	}
	if link != "" {
		core = markdownLink(core, link)
	}
	return lead + core + trail
}

var linkTextEscaper = strings.NewReplacer("[", `\[`, "]", `\]`)

// markdownLink builds [text](dest). Destinations with spaces, parentheses or
// angle brackets are wrapped in <...>.
func markdownLink(text, dest string) string {
	text = linkTextEscaper.Replace(text)
	dest = strings.ReplaceAll(dest, "\n", "")
	if strings.ContainsAny(dest, " ()<>") {
		dest = "<" + strings.NewReplacer("<", "%3C", ">", "%3E").Replace(dest) + ">"
	}
	return "[" + text + "](" + dest + ")"
}

// scalar returns the first value of a property, b.Properties[name][0][0].
func scalar(b *Block, name string) string {
	if b == nil {
		return ""
	}
	return ReadString(b.Properties, "", name, 0, 0)
}
