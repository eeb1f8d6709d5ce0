package notion

import (
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the calendar date format of content records.
const DateLayout = "2006-01-02"

// PlaceholderTitle is used for pages without a title.
const PlaceholderTitle = "Untitled"

// excerptLength caps excerpts, in runes.
const excerptLength = 160

// notionOrigin resolves relative asset paths such as built-in page covers.
const notionOrigin = "https://www.notion.so"

// ExtractTitle returns the block title or PlaceholderTitle.
func ExtractTitle(b *Block) string {
	if b == nil {
		return PlaceholderTitle
	}
	if t := strings.TrimSpace(PlainText(b.Properties["title"])); t != "" {
		return t
	}
	return PlaceholderTitle
}

// ExtractExcerpt returns the text of the first text child, else the first
// titled child of any other inlined type, else the page description.
func ExtractExcerpt(b *Block, rm *RecordMap) (string, bool) {
	if b == nil {
		return "", false
	}
	for _, id := range b.Content {
		c := rm.Block(id)
		if c == nil || c.Type != TypeText {
			continue
		}
		if t := strings.TrimSpace(PlainText(c.Properties["title"])); t != "" {
			return clip(t, excerptLength), true
		}
	}
	for _, id := range b.Content {
		c := rm.Block(id)
		if c == nil || c.Type == TypePage {
			continue
		}
		if t := strings.TrimSpace(PlainText(c.Properties["title"])); t != "" {
			return clip(t, excerptLength), true
		}
	}
	if d := strings.TrimSpace(PlainText(b.Properties["description"])); d != "" {
		return clip(d, excerptLength), true
	}
	return "", false
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "…"
}

// ExtractTags reads properties.tags, else the collection column named "tags"
// or typed multi_select. It never returns nil.
func ExtractTags(b *Block, rm *RecordMap) []string {
	if b == nil {
		return []string{}
	}
	if tags := listValues(b.Properties["tags"]); len(tags) > 0 {
		return tags
	}
	if col := schemaColumn(b, rm, []string{"tags", "标签"}, "multi_select"); col != "" {
		return listValues(b.Properties[col])
	}
	return []string{}
}

// ExtractCategory reads properties.category, else the collection column named
// "category" / "分类" or typed select.
func ExtractCategory(b *Block, rm *RecordMap) (string, bool) {
	if b == nil {
		return "", false
	}
	if c := strings.TrimSpace(scalar(b, "category")); c != "" {
		return c, true
	}
	if col := schemaColumn(b, rm, []string{"category", "分类"}, "select"); col != "" {
		if c := strings.TrimSpace(scalar(b, col)); c != "" {
			return c, true
		}
	}
	return "", false
}

// ExtractDate formats created_time as a UTC calendar date, defaulting to now.
func ExtractDate(b *Block, now time.Time) string {
	if b == nil || b.CreatedTime <= 0 {
		return now.Format(DateLayout)
	}
	return time.UnixMilli(b.CreatedTime).UTC().Format(DateLayout)
}

// ExtractPublishDate prefers the start date of a collection date column and
// falls back to ExtractDate.
func ExtractPublishDate(b *Block, rm *RecordMap, now time.Time) string {
	if col := schemaColumn(b, rm, []string{"date", "published", "日期"}, "date"); col != "" {
		for _, seg := range segments(b.Properties[col]) {
			if _, err := time.Parse(DateLayout, seg.text); err == nil {
				return seg.text
			}
		}
	}
	return ExtractDate(b, now)
}

// ExtractLastEdited formats last_edited_time, if present.
func ExtractLastEdited(b *Block) (string, bool) {
	if b == nil || b.LastEditedTime <= 0 {
		return "", false
	}
	return time.UnixMilli(b.LastEditedTime).UTC().Format(DateLayout), true
}

// ExtractCover returns format.page_cover, resolving Notion-relative paths.
func ExtractCover(b *Block) (string, bool) {
	if b == nil {
		return "", false
	}
	cover := strings.TrimSpace(ReadString(b.Format, "", "page_cover"))
	if cover == "" {
		return "", false
	}
	if strings.HasPrefix(cover, "/") {
		cover = notionOrigin + cover
	}
	return cover, true
}

// ExtractAuthor reads a collection column named "author".
func ExtractAuthor(b *Block, rm *RecordMap) (string, bool) {
	if b == nil {
		return "", false
	}
	if a := strings.TrimSpace(PlainText(b.Properties["author"])); a != "" {
		return a, true
	}
	if col := schemaColumn(b, rm, []string{"author", "作者"}, ""); col != "" {
		if a := strings.TrimSpace(PlainText(b.Properties[col])); a != "" {
			return a, true
		}
	}
	return "", false
}

// schemaColumn finds the property key of the page's collection column
// matching one of names (case-insensitive), else the first column of
// colType. Name matches win over type matches.
func schemaColumn(b *Block, rm *RecordMap, names []string, colType string) string {
	c := collectionOf(b, rm)
	if c == nil {
		return ""
	}
	for _, col := range c.Schema {
		for _, name := range names {
			if strings.EqualFold(strings.TrimSpace(col.Name), name) {
				return col.ID
			}
		}
	}
	if colType == "" {
		return ""
	}
	for _, col := range c.Schema {
		if col.Type == colType {
			return col.ID
		}
	}
	return ""
}

// listValues maps [[v1], [v2], ...] to their first elements. Multi-select
// values arrive comma-joined in a single cell and are split.
func listValues(prop any) []string {
	items, ok := prop.([]any)
	if !ok {
		return []string{}
	}
	seen := map[string]bool{}
	out := []string{}
	for i := range items {
		for _, v := range strings.Split(ReadString(items, "", i, 0), ",") {
			v = strings.TrimSpace(v)
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
