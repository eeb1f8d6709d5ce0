package notion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAssembler(opts ...AssemblerOption) *Assembler {
	return NewAssembler(append([]AssemblerOption{WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

func TestAssembleContentHelloWorld(t *testing.T) {
	rm := newMap(
		newBlock("P", TypePage, "Hello", "C1"),
		newBlock("C1", TypeText, "World"),
	)
	rec := newTestAssembler().AssembleContent("P", rm)
	require.NotNil(t, rec)
	assert.Equal(t, ContentRecord{
		ID:      "P",
		Title:   "Hello",
		Date:    "2024-05-06",
		Content: "World\n\n",
		Excerpt: "World",
		Tags:    []string{},
		Author:  Author{Name: DefaultAuthor},
	}, *rec)
}

func TestAssembleContentFixture(t *testing.T) {
	rm := loadFixture(t)
	rec := newTestAssembler().AssembleContent("post-0001", rm)
	require.NotNil(t, rec)
	assert.Equal(t, "post0001", rec.ID)
	assert.Equal(t, "Building the stack", rec.Title)
	assert.Equal(t, "2023-01-02", rec.Date)
	assert.Equal(t, "First paragraph.", rec.Excerpt)
	assert.Equal(t, []string{"Go", "Notion"}, rec.Tags)
	assert.Equal(t, "Tech", rec.Category)
	assert.Equal(t, "Ada", rec.Author.Name)
	assert.Equal(t, "https://www.notion.so/images/page-cover/woodcuts_1.jpg", rec.Cover)
	assert.Equal(t, "2023-01-03", rec.LastEdited)
	assert.Contains(t, rec.Content, "# Overview")
}

func TestAssembleContentPlaceholders(t *testing.T) {
	rm := newMap(&Block{ID: "P", Type: TypePage})
	rec := newTestAssembler(WithDefaultAuthor("Ink")).AssembleContent("P", rm)
	require.NotNil(t, rec)
	assert.Equal(t, PlaceholderTitle, rec.Title)
	assert.Equal(t, PlaceholderExcerpt, rec.Excerpt)
	assert.Equal(t, PlaceholderContent, rec.Content)
	assert.Equal(t, "Ink", rec.Author.Name)
	assert.Empty(t, rec.Cover)
	assert.Empty(t, rec.Category)
}

func TestAssembleContentRootNotResolved(t *testing.T) {
	a := newTestAssembler()
	rm := newMap(newBlock("T", TypeText, "text"))
	assert.Nil(t, a.AssembleContent("missing", rm))
	assert.Nil(t, a.AssembleContent("T", rm))
	assert.Nil(t, a.AssembleContent("P", nil))
}

func TestAssembleContentRenderFailure(t *testing.T) {
	r := NewRenderer()
	r.rules[TypeText] = rule{emit: func(*walker, *Block, int) { panic("bug") }}
	rm := newMap(newBlock("P", TypePage, "Hello", "C1"), newBlock("C1", TypeText, "World"))
	rec := newTestAssembler(WithRenderer(r)).AssembleContent("P", rm)
	require.NotNil(t, rec)
	assert.Equal(t, FailureMarker, rec.Content)
	assert.Equal(t, "Hello", rec.Title)
}

func TestAssembleAll(t *testing.T) {
	records, errs := newTestAssembler().AssembleAll(loadFixture(t))
	assert.Empty(t, errs)
	require.Len(t, records, 2)
	assert.Equal(t, "Building the stack", records[0].Title)
	assert.Empty(t, records[0].Content)
	assert.Equal(t, "Empty draft", records[1].Title)
	assert.Equal(t, "Nothing here yet", records[1].Excerpt)

	records, errs = newTestAssembler().AssembleAll(nil)
	assert.Empty(t, records)
	assert.Empty(t, errs)
}

func TestAssembleAllSkipsFailedItems(t *testing.T) {
	rm := newMap(
		newBlock("root", TypePage, "Root"),
		newBlock("a", TypePage, "A"),
	)
	rm.Block("root").ParentTable = TableSpace
	rm.Block("a").ParentTable = TableBlock
	b := newBlock("b", TypePage, "B")
	b.ParentTable = TableBlock
	rm.AddBlock(b)

	calls := 0
	a := NewAssembler(WithClock(func() time.Time {
		calls++
		if calls == 1 {
			panic("clock")
		}
		return fixedNow
	}))
	records, errs := a.AssembleAll(rm)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "page a")
	require.Len(t, records, 1)
	assert.Equal(t, "B", records[0].Title)
}

func TestAnalyze(t *testing.T) {
	a, ok := Analyze(loadFixture(t))
	require.True(t, ok)
	assert.Equal(t, "Ink Notes", a.Title)
	assert.Equal(t, 13, a.BlockCount)
	assert.Equal(t, map[string]int{
		TypePage:           4,
		TypeCollectionView: 1,
		TypeText:           4,
		TypeHeader:         1,
		TypeBulletedList:   2,
		TypeToggle:         1,
	}, a.BlockTypes)
	assert.Equal(t, map[string]int{"collection_view": 1, "notion_user": 0, "collection": 1}, a.OtherTables)

	_, ok = Analyze(nil)
	assert.False(t, ok)
}
