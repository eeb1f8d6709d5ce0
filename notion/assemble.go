package notion

import (
	"fmt"
	"strings"
	"time"
)

// Defaults of assembled records.
const (
	PlaceholderExcerpt = "No summary"
	PlaceholderContent = "No content"
	DefaultAuthor      = "Blog Author"
)

// Assembler builds content records from extractor and renderer output.
type Assembler struct {
	renderer *Renderer
	now      func() time.Time
	author   string
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithClock sets the time source used for missing dates.
func WithClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

// WithDefaultAuthor sets the author used when the source names none.
func WithDefaultAuthor(name string) AssemblerOption {
	return func(a *Assembler) {
		if name = strings.TrimSpace(name); name != "" {
			a.author = name
		}
	}
}

// WithRenderer replaces the block renderer.
func WithRenderer(r *Renderer) AssemblerOption {
	return func(a *Assembler) {
		if r != nil {
			a.renderer = r
		}
	}
}

// NewAssembler returns an assembler with the default renderer, the wall
// clock and DefaultAuthor.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		renderer: NewRenderer(),
		now:      time.Now,
		author:   DefaultAuthor,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AssembleContent returns the full record of a page, including its rendered
// body. It returns nil when the root is missing or not a page; every other
// gap is filled with a placeholder.
func (a *Assembler) AssembleContent(rootID string, rm *RecordMap) *ContentRecord {
	rec := a.AssembleSummary(rootID, rm)
	if rec == nil {
		return nil
	}
	content := a.renderer.Render(rec.ID, rm)
	if strings.TrimSpace(content) == "" {
		content = PlaceholderContent
	}
	rec.Content = content
	return rec
}

// AssembleSummary is AssembleContent without the body.
func (a *Assembler) AssembleSummary(rootID string, rm *RecordMap) *ContentRecord {
	root := rm.Block(rootID)
	if root == nil || root.Type != TypePage {
		return nil
	}
	now := a.now()
	rec := &ContentRecord{
		ID:    root.ID,
		Title: ExtractTitle(root),
		Date:  ExtractPublishDate(root, rm, now),
		Tags:  ExtractTags(root, rm),
		Author: Author{
			Name: a.author,
		},
		Excerpt: PlaceholderExcerpt,
	}
	if excerpt, ok := ExtractExcerpt(root, rm); ok {
		rec.Excerpt = excerpt
	}
	if cover, ok := ExtractCover(root); ok {
		rec.Cover = cover
	}
	if category, ok := ExtractCategory(root, rm); ok {
		rec.Category = category
	}
	if author, ok := ExtractAuthor(root, rm); ok {
		rec.Author.Name = author
	}
	if edited, ok := ExtractLastEdited(root); ok {
		rec.LastEdited = edited
	}
	return rec
}

// AssembleAll summarizes every listing page of the map. Items that fail are
// reported in errs and skipped; the rest are still returned.
func (a *Assembler) AssembleAll(rm *RecordMap) (records []ContentRecord, errs []error) {
	for _, page := range ListContentPages(rm) {
		rec, err := a.safeSummary(page.ID, rm)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, errs
}

func (a *Assembler) safeSummary(id string, rm *RecordMap) (rec *ContentRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to assemble page %s: %v", id, r)
		}
	}()
	return a.AssembleSummary(id, rm), nil
}
