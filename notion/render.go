package notion

import (
	"html"
	"strings"
)

// FailureMarker replaces the output of a render call that panicked.
const FailureMarker = "Failed to load content"

// rule is the emission policy for one block type.
type rule struct {
	emit func(w *walker, b *Block, depth int)
	// claimsChildren rules visit children themselves, or not at all.
	claimsChildren bool
	// list rules end with a single newline and indent their children.
	list bool
}

// Renderer converts a block subtree into markdown. It holds no per-call state
// and is safe for concurrent use.
type Renderer struct {
	rules    map[string]rule
	fallback rule
}

// NewRenderer returns a renderer with the default rule table.
func NewRenderer() *Renderer {
	return &Renderer{
		rules: map[string]rule{
			TypeText:         {emit: emitParagraph},
			TypeHeader:       {emit: emitHeading("# ")},
			TypeSubHeader:    {emit: emitHeading("## ")},
			TypeSubSubHeader: {emit: emitHeading("### ")},
			TypeBulletedList: {emit: emitListItem("- "), list: true},
			TypeNumberedList: {emit: emitListItem("1. "), list: true},
			TypeToDo:         {emit: emitToDo, list: true},
			TypeToggle:       {emit: emitToggle, claimsChildren: true},
			TypeDivider:      {emit: emitDivider},
			TypeQuote:        {emit: emitQuote},
			TypeCallout:      {emit: emitCallout},
			TypeImage:        {emit: emitImage},
			TypeCode:         {emit: emitCode},
			TypeFile:         {emit: emitFile},
			TypeBookmark:     {emit: emitBookmark},
			TypeVideo:        {emit: emitFrame},
			TypeEmbed:        {emit: emitFrame},
			TypePage:         {emit: func(*walker, *Block, int) {}, claimsChildren: true},
		},
		fallback: rule{emit: emitParagraph},
	}
}

func (r *Renderer) ruleFor(blockType string) rule {
	if rl, ok := r.rules[blockType]; ok {
		return rl
	}
	return r.fallback
}

// Render returns the markdown of the root's descendants. The root itself is
// not emitted. A missing root renders as the empty string; a panic in any
// rule renders as FailureMarker.
func (r *Renderer) Render(rootID string, rm *RecordMap) (out string) {
	defer func() {
		if recover() != nil {
			out = FailureMarker
		}
	}()
	root := rm.Block(rootID)
	if root == nil {
		return ""
	}
	w := &walker{r: r, rm: rm, seen: map[string]bool{root.ID: true}}
	w.children(root, 0)
	return w.sb.String()
}

// walker carries the state of a single render call.
type walker struct {
	r  *Renderer
	rm *RecordMap
	sb strings.Builder
	// seen guards against blocks listed twice and against cycles
	seen map[string]bool
	// afterList is set while the last emission was a list item
	afterList bool
}

func (w *walker) children(b *Block, depth int) {
	for _, id := range b.Content {
		w.visit(id, depth)
	}
}

func (w *walker) visit(id string, depth int) {
	b := w.rm.Block(id)
	if b == nil || w.seen[b.ID] {
		return
	}
	w.seen[b.ID] = true
	rl := w.r.ruleFor(b.Type)
	rl.emit(w, b, depth)
	if rl.claimsChildren {
		return
	}
	if rl.list {
		depth++
	}
	w.children(b, depth)
}

// block writes a block-level chunk, indenting every line.
func (w *walker) block(depth int, s string) {
	if w.afterList {
		// terminate the list before a non-list block
		w.sb.WriteString("\n")
		w.afterList = false
	}
	w.write(depth, s)
}

// item writes a list item line.
func (w *walker) item(depth int, s string) {
	w.write(depth, s)
	w.afterList = true
}

func (w *walker) write(depth int, s string) {
	indent := strings.Repeat("  ", depth)
	lines := strings.SplitAfter(s, "\n")
	for _, line := range lines {
		if line != "" && line != "\n" {
			w.sb.WriteString(indent)
		}
		w.sb.WriteString(line)
	}
}

func title(b *Block) string {
	return strings.TrimSpace(richText(b.Properties["title"]))
}

func emitParagraph(w *walker, b *Block, depth int) {
	if t := title(b); t != "" {
		w.block(depth, t+"\n\n")
	}
}

func emitHeading(marker string) func(*walker, *Block, int) {
	return func(w *walker, b *Block, depth int) {
		if t := title(b); t != "" {
			w.block(depth, marker+strings.ReplaceAll(t, "\n", " ")+"\n\n")
		}
	}
}

func emitListItem(marker string) func(*walker, *Block, int) {
	return func(w *walker, b *Block, depth int) {
		if t := title(b); t != "" {
			w.item(depth, marker+hangingIndent(t, len(marker))+"\n")
		}
	}
}

// hangingIndent keeps continuation lines inside a list item.
func hangingIndent(s string, width int) string {
	return strings.ReplaceAll(s, "\n", "\n"+strings.Repeat(" ", width))
}

func emitToDo(w *walker, b *Block, depth int) {
	t := title(b)
	if t == "" {
		return
	}
	box := "- [ ] "
	if isChecked(scalar(b, "checked")) {
		box = "- [x] "
	}
	w.item(depth, box+hangingIndent(t, 2)+"\n")
}

func isChecked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "true", "1", "checked":
		return true
	}
	return false
}

func emitToggle(w *walker, b *Block, depth int) {
	summary := strings.TrimSpace(PlainText(b.Properties["title"]))
	if summary == "" {
		w.children(b, depth)
		return
	}
	w.block(depth, "<details>\n<summary>"+html.EscapeString(strings.ReplaceAll(summary, "\n", " "))+"</summary>\n\n")
	w.children(b, depth)
	w.block(depth, "</details>\n\n")
}

func emitDivider(w *walker, _ *Block, depth int) {
	w.block(depth, "---\n\n")
}

func quoted(s string) string {
	return "> " + strings.ReplaceAll(s, "\n", "\n> ")
}

func emitQuote(w *walker, b *Block, depth int) {
	if t := title(b); t != "" {
		w.block(depth, quoted(t)+"\n\n")
	}
}

func emitCallout(w *walker, b *Block, depth int) {
	t := title(b)
	if t == "" {
		return
	}
	if icon := strings.TrimSpace(ReadString(b.Format, "", "page_icon")); icon != "" && !isLink(icon) {
		t = icon + " " + t
	}
	w.block(depth, quoted(t)+"\n\n")
}

func isLink(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "/")
}

func emitImage(w *walker, b *Block, depth int) {
	src := strings.TrimSpace(ReadString(b.Format, "", "display_source"))
	if src == "" {
		return
	}
	alt := strings.TrimSpace(PlainText(b.Properties["caption"]))
	if alt == "" {
		alt = "Image"
	}
	w.block(depth, "!"+markdownLink(alt, src)+"\n\n")
}

func emitCode(w *walker, b *Block, depth int) {
	body := PlainText(b.Properties["title"])
	if strings.TrimSpace(body) == "" {
		return
	}
	lang := strings.ToLower(strings.TrimSpace(scalar(b, "language")))
	if lang == "plain text" {
		lang = ""
	}
	lang = strings.ReplaceAll(lang, " ", "-")
	fence := "```"
	if strings.Contains(body, fence) {
		fence = "~~~"
	}
	w.block(depth, fence+lang+"\n"+strings.TrimRight(body, "\n")+"\n"+fence+"\n\n")
}

func emitFile(w *walker, b *Block, depth int) {
	src := strings.TrimSpace(scalar(b, "source"))
	if src == "" {
		return
	}
	name := strings.TrimSpace(PlainText(b.Properties["title"]))
	if name == "" {
		name = "File"
	}
	w.block(depth, markdownLink(name, src)+"\n\n")
}

func emitBookmark(w *walker, b *Block, depth int) {
	link := strings.TrimSpace(scalar(b, "link"))
	if link == "" {
		return
	}
	text := strings.TrimSpace(PlainText(b.Properties["title"]))
	if text == "" {
		text = link
	}
	w.block(depth, markdownLink(text, link)+"\n\n")
}

func emitFrame(w *walker, b *Block, depth int) {
	src := strings.TrimSpace(ReadString(b.Format, "", "display_source"))
	if src == "" {
		src = strings.TrimSpace(scalar(b, "source"))
	}
	if src == "" {
		return
	}
	w.block(depth, `<iframe src="`+html.EscapeString(src)+`"></iframe>`+"\n\n")
}
