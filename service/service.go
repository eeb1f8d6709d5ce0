package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/foomo/notion-mcp/notion"
	"github.com/foomo/notion-mcp/scrape"
	"github.com/foomo/notion-mcp/service/vo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Uncategorized is listed for posts without a category.
const Uncategorized = "Uncategorized"

var ErrPostNotFound = errors.New("post not found")

type Service interface {
	ListPosts(ctx context.Context) ([]vo.PostSummary, error)
	GetPost(ctx context.Context, slug string) (*vo.Post, error)
	ListCategories(ctx context.Context) ([]string, error)
	ListTags(ctx context.Context) ([]string, error)
	PostsByCategory(ctx context.Context, category string) ([]vo.PostSummary, error)
	PostsByTag(ctx context.Context, tag string) ([]vo.PostSummary, error)
	Analyze(ctx context.Context, pageRef string) (*vo.Analysis, error)
	ExportPost(ctx context.Context, slug string) (vo.Markdown, error)
}

// ContentGraphFetcher loads the record map behind a page reference.
type ContentGraphFetcher interface {
	FetchContentGraph(ctx context.Context, pageRef string) (*notion.RecordMap, error)
}

// PageScraper reads a page as HTML.
type PageScraper interface {
	Page(ctx context.Context, pageRef string) (*scrape.Page, error)
}

type Settings struct {
	Pages         []string // Root pages posts are listed from
	DefaultAuthor string
	Concurrency   int // Sources fetched at once
}

type service struct {
	settings  Settings
	fetcher   ContentGraphFetcher
	fallback  ContentGraphFetcher
	scraper   PageScraper
	assembler *notion.Assembler
	now       func() time.Time
	logger    *zap.Logger
}

type Option func(*service)

// WithFallback is asked when fetcher fails.
func WithFallback(fallback ContentGraphFetcher) Option {
	return func(s *service) {
		s.fallback = fallback
	}
}

// WithScraper serves posts as scraped markdown when no record map resolves.
func WithScraper(scraper PageScraper) Option {
	return func(s *service) {
		s.scraper = scraper
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

func NewService(settings Settings, fetcher ContentGraphFetcher, logger *zap.Logger, opts ...Option) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.Concurrency <= 0 {
		settings.Concurrency = 4
	}
	s := &service{
		settings: settings,
		fetcher:  fetcher,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	assemblerOpts := []notion.AssemblerOption{notion.WithClock(s.now)}
	if settings.DefaultAuthor != "" {
		assemblerOpts = append(assemblerOpts, notion.WithDefaultAuthor(settings.DefaultAuthor))
	}
	s.assembler = notion.NewAssembler(assemblerOpts...)
	return s
}

type source struct {
	ref string
	rm  *notion.RecordMap
}

// fetch asks the primary fetcher and then the fallback. Empty maps count as
// failures.
func (s *service) fetch(ctx context.Context, ref string) (*notion.RecordMap, error) {
	rm, err := s.fetcher.FetchContentGraph(ctx, ref)
	if err == nil && rm.Len() > 0 {
		return rm, nil
	}
	if err == nil {
		err = fmt.Errorf("page %q: empty record map", ref)
	}
	if s.fallback == nil || ctx.Err() != nil {
		return nil, err
	}
	s.logger.Info("falling back", zap.String("page", ref), zap.Error(err))
	rm, fallbackErr := s.fallback.FetchContentGraph(ctx, ref)
	if fallbackErr != nil {
		return nil, errors.Join(err, fallbackErr)
	}
	if rm.Len() == 0 {
		return nil, err
	}
	return rm, nil
}

// sources fetches every configured root page. Failed sources are logged and
// left out.
func (s *service) sources(ctx context.Context) ([]source, error) {
	results := make([]source, len(s.settings.Pages))
	var g errgroup.Group
	g.SetLimit(s.settings.Concurrency)
	for i, ref := range s.settings.Pages {
		g.Go(func() error {
			rm, err := s.fetch(ctx, ref)
			if err != nil {
				s.logger.Warn("failed to fetch source", zap.String("page", ref), zap.Error(err))
				return nil
			}
			results[i] = source{ref: ref, rm: rm}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.DeleteFunc(results, func(src source) bool { return src.rm == nil }), nil
}

func (s *service) ListPosts(ctx context.Context) ([]vo.PostSummary, error) {
	sources, err := s.sources(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	posts := []vo.PostSummary{}
	for _, src := range sources {
		records, errs := s.assembler.AssembleAll(src.rm)
		for _, err := range errs {
			s.logger.Warn("skipping post", zap.String("source", src.ref), zap.Error(err))
		}
		for _, rec := range records {
			if seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			summary := toSummary(rec)
			summary.Source = src.ref
			posts = append(posts, summary)
		}
	}
	sortPosts(posts)
	return posts, nil
}

func sortPosts(posts []vo.PostSummary) {
	slices.SortStableFunc(posts, func(a, b vo.PostSummary) int {
		if c := cmp.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.Title, b.Title)
	})
}

func (s *service) GetPost(ctx context.Context, slug string) (*vo.Post, error) {
	id := notion.NormalizeID(slug)
	if id == "" {
		return nil, ErrPostNotFound
	}

	sources, err := s.sources(ctx)
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		if rec := s.assembler.AssembleContent(id, src.rm); rec != nil {
			if notion.NormalizeID(src.ref) != id {
				rec.Content = s.postContent(ctx, id, rec.Content)
			}
			post := toPost(*rec)
			post.Source = src.ref
			return &post, nil
		}
	}

	rm, err := s.fetch(ctx, slug)
	if err == nil {
		if rec := s.assembler.AssembleContent(id, rm); rec != nil {
			post := toPost(*rec)
			return &post, nil
		}
	} else {
		s.logger.Info("failed to fetch post page", zap.String("slug", slug), zap.Error(err))
	}

	if s.scraper != nil && ctx.Err() == nil {
		if post := s.scrapePost(ctx, slug, id); post != nil {
			return post, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%q: %w", slug, ErrPostNotFound)
}

// postContent renders a post from its own page fetch. A source map is only
// complete below its root, so sub-pages listed there can lack deeper blocks.
// fallback is kept when the page cannot be fetched.
func (s *service) postContent(ctx context.Context, id, fallback string) string {
	rm, err := s.fetch(ctx, id)
	if err != nil {
		s.logger.Info("rendering post from its source", zap.String("post", id), zap.Error(err))
		return fallback
	}
	if rec := s.assembler.AssembleContent(id, rm); rec != nil {
		return rec.Content
	}
	return fallback
}

func (s *service) scrapePost(ctx context.Context, slug, id string) *vo.Post {
	page, err := s.scraper.Page(ctx, slug)
	if err != nil {
		s.logger.Info("failed to scrape post page", zap.String("slug", slug), zap.Error(err))
		return nil
	}
	if page.RecordMap != nil {
		rec := s.assembler.AssembleContent(id, page.RecordMap)
		if rec == nil {
			if root := notion.FindRootPage(page.RecordMap); root != nil {
				rec = s.assembler.AssembleContent(root.ID, page.RecordMap)
			}
		}
		if rec != nil {
			post := toPost(*rec)
			post.Source = page.URL
			return &post
		}
		return nil
	}
	if page.Markdown == "" {
		return nil
	}

	author := s.settings.DefaultAuthor
	if author == "" {
		author = notion.DefaultAuthor
	}
	post := &vo.Post{
		PostSummary: vo.PostSummary{
			ID:       id,
			Slug:     id,
			Title:    cmp.Or(page.Summary.Title, notion.PlaceholderTitle),
			Date:     s.now().Format(notion.DateLayout),
			Excerpt:  cmp.Or(page.Summary.Description, notion.PlaceholderExcerpt),
			Tags:     page.Summary.Keywords,
			Category: Uncategorized,
			Author:   vo.Author{Name: author},
			Source:   page.URL,
		},
		Markdown: page.Markdown,
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	return post
}

func (s *service) ListCategories(ctx context.Context) ([]string, error) {
	posts, err := s.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	return unique(posts, func(p vo.PostSummary) []string { return []string{p.Category} }), nil
}

func (s *service) ListTags(ctx context.Context) ([]string, error) {
	posts, err := s.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	return unique(posts, func(p vo.PostSummary) []string { return p.Tags }), nil
}

// unique collects values in first-seen order.
func unique(posts []vo.PostSummary, values func(vo.PostSummary) []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, p := range posts {
		for _, v := range values(p) {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func (s *service) PostsByCategory(ctx context.Context, category string) ([]vo.PostSummary, error) {
	return s.filter(ctx, func(p vo.PostSummary) bool { return p.Category == category })
}

func (s *service) PostsByTag(ctx context.Context, tag string) ([]vo.PostSummary, error) {
	return s.filter(ctx, func(p vo.PostSummary) bool { return slices.Contains(p.Tags, tag) })
}

func (s *service) filter(ctx context.Context, keep func(vo.PostSummary) bool) ([]vo.PostSummary, error) {
	posts, err := s.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(posts, func(p vo.PostSummary) bool { return !keep(p) }), nil
}

func (s *service) Analyze(ctx context.Context, pageRef string) (*vo.Analysis, error) {
	rm, err := s.fetch(ctx, pageRef)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page %q: %w", pageRef, err)
	}
	analysis, ok := notion.Analyze(rm)
	if !ok {
		return nil, fmt.Errorf("page %q holds no blocks", pageRef)
	}
	out := &vo.Analysis{
		PageID:      notion.NormalizeID(pageRef),
		Title:       analysis.Title,
		BlockCount:  analysis.BlockCount,
		BlockTypes:  analysis.BlockTypes,
		OtherTables: analysis.OtherTables,
		Posts:       len(notion.ListContentPages(rm)),
	}
	if c := notion.FindCollection(rm); c != nil {
		out.Collection = c.Name
	}
	return out, nil
}

func toSummary(rec notion.ContentRecord) vo.PostSummary {
	return vo.PostSummary{
		ID:         rec.ID,
		Slug:       rec.ID,
		Title:      rec.Title,
		Date:       rec.Date,
		Excerpt:    rec.Excerpt,
		Cover:      rec.Cover,
		Tags:       rec.Tags,
		Category:   cmp.Or(rec.Category, Uncategorized),
		Author:     vo.Author{Name: rec.Author.Name, Picture: rec.Author.Picture},
		LastEdited: rec.LastEdited,
	}
}

func toPost(rec notion.ContentRecord) vo.Post {
	return vo.Post{
		PostSummary: toSummary(rec),
		Markdown:    vo.Markdown(rec.Content),
	}
}
