package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/foomo/notion-mcp/service"
	"github.com/foomo/notion-mcp/service/vo"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeService struct {
	posts []vo.PostSummary
	err   error
}

func (f *fakeService) ListPosts(context.Context) ([]vo.PostSummary, error) {
	return f.posts, f.err
}

func (f *fakeService) GetPost(_ context.Context, slug string) (*vo.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.posts {
		if p.Slug == slug {
			return &vo.Post{PostSummary: p, Markdown: "World\n\n"}, nil
		}
	}
	return nil, service.ErrPostNotFound
}

func (f *fakeService) ListCategories(context.Context) ([]string, error) {
	return []string{"Tech"}, f.err
}

func (f *fakeService) ListTags(context.Context) ([]string, error) {
	return []string{"Go", "Notion"}, f.err
}

func (f *fakeService) PostsByCategory(_ context.Context, category string) ([]vo.PostSummary, error) {
	var out []vo.PostSummary
	for _, p := range f.posts {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out, f.err
}

func (f *fakeService) PostsByTag(_ context.Context, tag string) ([]vo.PostSummary, error) {
	var out []vo.PostSummary
	for _, p := range f.posts {
		for _, t := range p.Tags {
			if t == tag {
				out = append(out, p)
			}
		}
	}
	return out, f.err
}

func (f *fakeService) Analyze(_ context.Context, pageRef string) (*vo.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &vo.Analysis{PageID: pageRef, Title: "Blog", BlockCount: 3}, nil
}

func (f *fakeService) ExportPost(ctx context.Context, slug string) (vo.Markdown, error) {
	post, err := f.GetPost(ctx, slug)
	if err != nil {
		return "", err
	}
	return "---\ntitle: " + vo.Markdown(post.Title) + "\n---\n\n" + post.Markdown, nil
}

func newFakeService() *fakeService {
	return &fakeService{posts: []vo.PostSummary{
		{ID: "p1", Slug: "p1", Title: "Hello", Tags: []string{"Go"}, Category: "Tech"},
		{ID: "p2", Slug: "p2", Title: "Zeta", Tags: []string{"Go", "Rust"}, Category: "Life"},
		{ID: "p3", Slug: "p3", Title: "Alpha", Tags: []string{"Rust"}, Category: "Tech"},
	}}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestNewServerListsTools(t *testing.T) {
	s := NewServer(zaptest.NewLogger(t), http.DefaultClient, newFakeService())
	require.NotNil(t, s)

	response := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(response)
	require.NoError(t, err)

	var decoded struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	var names []string
	for _, tool := range decoded.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"scrapePage", "listPosts", "getPost", "listCategories", "listTags", "analyzePage"}, names)

	// without a service only the scrape tool is offered
	assert.NotNil(t, NewServer(nil, nil, nil))
}

func TestListPostsHandler(t *testing.T) {
	handler := getListPostsHandler(newFakeService())
	for name, tc := range map[string]struct {
		args ListPostsRequest
		want []string
	}{
		"all":      {ListPostsRequest{}, []string{"Hello", "Zeta", "Alpha"}},
		"tag":      {ListPostsRequest{Tag: "Rust"}, []string{"Zeta", "Alpha"}},
		"category": {ListPostsRequest{Category: "Tech"}, []string{"Hello", "Alpha"}},
		"both":     {ListPostsRequest{Tag: "Rust", Category: "Tech"}, []string{"Alpha"}},
	} {
		t.Run(name, func(t *testing.T) {
			result, err := handler(context.Background(), mcp.CallToolRequest{}, tc.args)
			require.NoError(t, err)
			require.False(t, result.IsError)

			var response ListPostsResponse
			require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
			var titles []string
			for _, p := range response.Posts {
				titles = append(titles, p.Title)
			}
			assert.Equal(t, tc.want, titles)
		})
	}

	result, err := getListPostsHandler(&fakeService{err: errors.New("boom")})(context.Background(), mcp.CallToolRequest{}, ListPostsRequest{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestGetPostHandler(t *testing.T) {
	handler := getPostHandler(newFakeService())
	ctx := context.Background()

	result, err := handler(ctx, mcp.CallToolRequest{}, GetPostRequest{Slug: "p1"})
	require.NoError(t, err)
	var response GetPostResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	require.NotNil(t, response.Post)
	assert.Equal(t, "Hello", response.Post.Title)
	assert.Equal(t, vo.Markdown("World\n\n"), response.Post.Markdown)

	result, err = handler(ctx, mcp.CallToolRequest{}, GetPostRequest{Slug: "p1", Format: FormatMarkdown})
	require.NoError(t, err)
	assert.Equal(t, "---\ntitle: Hello\n---\n\nWorld\n\n", resultText(t, result))

	for name, args := range map[string]GetPostRequest{
		"missing slug":   {},
		"unknown post":   {Slug: "ghost"},
		"unknown format": {Slug: "p1", Format: "html"},
	} {
		t.Run(name, func(t *testing.T) {
			result, err := handler(ctx, mcp.CallToolRequest{}, args)
			require.NoError(t, err)
			assert.True(t, result.IsError)
		})
	}

	result, err = handler(ctx, mcp.CallToolRequest{}, GetPostRequest{Slug: "ghost"})
	require.NoError(t, err)
	assert.Equal(t, `post "ghost" not found`, resultText(t, result))
}

func TestListCategoriesAndTagsHandlers(t *testing.T) {
	result, err := getListCategoriesHandler(newFakeService())(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"categories":["Tech"]}`, resultText(t, result))

	result, err = getListTagsHandler(newFakeService())(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tags":["Go","Notion"]}`, resultText(t, result))
}

func TestAnalyzePageHandler(t *testing.T) {
	handler := getAnalyzePageHandler(newFakeService())

	result, err := handler(context.Background(), mcp.CallToolRequest{}, AnalyzePageRequest{Page: "blog"})
	require.NoError(t, err)
	var analysis vo.Analysis
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &analysis))
	assert.Equal(t, "Blog", analysis.Title)
	assert.Equal(t, 3, analysis.BlockCount)

	result, err = handler(context.Background(), mcp.CallToolRequest{}, AnalyzePageRequest{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestScrapeHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Page</title></head><body><main><p>Body text</p></main></body></html>`))
	}))
	defer srv.Close()

	handler := getScrapeHandler(srv.Client())
	result, err := handler(context.Background(), mcp.CallToolRequest{}, ScrapeRequest{URL: srv.URL})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var response ScrapeResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	assert.Equal(t, "Page", response.Summary.Title)
	assert.Equal(t, "Body text", response.Markdown)
	assert.Zero(t, response.Blocks)
}

func TestScrapeHandlerValidation(t *testing.T) {
	result, err := getScrapeHandler(http.DefaultClient)(context.Background(), mcp.CallToolRequest{}, ScrapeRequest{Selector: "body"})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}
