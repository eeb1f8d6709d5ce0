// Package notion converts a fetched Notion record map into blog content.
//
// Everything in this package is a pure read over a RecordMap snapshot: nothing
// blocks, nothing logs and nothing is cached between calls, so independent
// root blocks can be processed concurrently without coordination.
package notion

// Block types emitted by Notion. The set is open; unknown types are rendered
// by the fallback rule.
const (
	TypeText               = "text"
	TypeHeader             = "header"
	TypeSubHeader          = "sub_header"
	TypeSubSubHeader       = "sub_sub_header"
	TypeBulletedList       = "bulleted_list"
	TypeNumberedList       = "numbered_list"
	TypeToDo               = "to_do"
	TypeToggle             = "toggle"
	TypeDivider            = "divider"
	TypeQuote              = "quote"
	TypeCallout            = "callout"
	TypeImage              = "image"
	TypeCode               = "code"
	TypeFile               = "file"
	TypeBookmark           = "bookmark"
	TypeVideo              = "video"
	TypeEmbed              = "embed"
	TypePage               = "page"
	TypeCollectionView     = "collection_view"
	TypeCollectionViewPage = "collection_view_page"
)

// Parent tables a block can point at.
const (
	TableBlock      = "block"
	TableCollection = "collection"
	TableSpace      = "space"
)

// Block is one node of the content tree.
type Block struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Properties     map[string]any `json:"properties,omitempty"` // decoded JSON, usually [[text, decorations], ...]
	Format         map[string]any `json:"format,omitempty"`
	Content        []string       `json:"content,omitempty"` // child block ids in order
	ParentID       string         `json:"parent_id,omitempty"`
	ParentTable    string         `json:"parent_table,omitempty"`
	CreatedTime    int64          `json:"created_time,omitempty"`     // epoch milliseconds
	LastEditedTime int64          `json:"last_edited_time,omitempty"` // epoch milliseconds
	ViewIDs        []string       `json:"view_ids,omitempty"`
	CollectionID   string         `json:"collection_id,omitempty"`
}

// IsCollectionView reports whether the block is an inline or full-page
// database view.
func (b *Block) IsCollectionView() bool {
	return b != nil && (b.Type == TypeCollectionView || b.Type == TypeCollectionViewPage)
}

// SchemaColumn is one column definition of a collection.
type SchemaColumn struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Collection is a database-like container of pages sharing a schema.
type Collection struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Schema   []SchemaColumn `json:"schema,omitempty"` // in document order
	ParentID string         `json:"parent_id,omitempty"`
}

// Author of a content record.
type Author struct {
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// ContentRecord is the assembled, presentation-ready content item.
type ContentRecord struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Date       string   `json:"date"` // YYYY-MM-DD
	Content    string   `json:"content,omitempty"`
	Excerpt    string   `json:"excerpt"`
	Cover      string   `json:"cover,omitempty"`
	Tags       []string `json:"tags"`
	Category   string   `json:"category,omitempty"`
	Author     Author   `json:"author"`
	LastEdited string   `json:"lastEdited,omitempty"`
}
