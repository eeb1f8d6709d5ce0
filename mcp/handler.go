package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/foomo/notion-mcp/scrape"
	"github.com/foomo/notion-mcp/service"
	"github.com/foomo/notion-mcp/service/vo"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

const Version = "0.1.0"

const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

type ListPostsRequest struct {
	Tag      string `json:"tag,omitempty"`      // Only posts carrying this tag
	Category string `json:"category,omitempty"` // Only posts in this category
}

type ListPostsResponse struct {
	Posts []vo.PostSummary `json:"posts"`
}

type GetPostRequest struct {
	Slug   string `json:"slug"`             // Page id, UUID or notion URL
	Format string `json:"format,omitempty"` // json (default) or markdown
}

type GetPostResponse struct {
	Post *vo.Post `json:"post"`
}

type AnalyzePageRequest struct {
	Page string `json:"page"` // Page id, UUID or notion URL
}

type ScrapeRequest struct {
	URL      string `json:"url"`                // The URL to scrape
	Selector string `json:"selector,omitempty"` // CSS selector to extract content
}

type ScrapeResponse struct {
	Summary  vo.ContentSummary `json:"summary"`
	Markdown string            `json:"markdown,omitempty"` // The extracted content in markdown format
	Blocks   int               `json:"blocks,omitempty"`   // Blocks of an embedded record map
}

// NewServer creates a new MCP server exposing the blog service as tools
func NewServer(logger *zap.Logger, client *http.Client, serviceInstance service.Service) *server.MCPServer {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	// Create a new MCP server
	s := server.NewMCPServer(
		"Notion Blog MCP",
		Version,
		server.WithToolCapabilities(false),
		server.WithToolHandlerMiddleware(loggingMiddleware(logger)),
	)

	scrapeTool := mcp.NewTool("scrapePage",
		mcp.WithDescription("Scrape a published page and convert it to markdown"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the page to scrape"),
		),
		mcp.WithString("selector",
			mcp.Description("CSS selector to extract specific content (e.g., '#content', '.article', 'article')"),
		),
	)
	s.AddTool(scrapeTool, mcp.NewTypedToolHandler(getScrapeHandler(client)))

	// the blog tools need a service
	if serviceInstance == nil {
		return s
	}

	listPostsTool := mcp.NewTool("listPosts",
		mcp.WithDescription("List blog posts, newest first, optionally filtered by tag or category"),
		mcp.WithString("tag",
			mcp.Description("Only list posts carrying this tag"),
		),
		mcp.WithString("category",
			mcp.Description("Only list posts in this category"),
		),
	)
	s.AddTool(listPostsTool, mcp.NewTypedToolHandler(getListPostsHandler(serviceInstance)))

	getPostTool := mcp.NewTool("getPost",
		mcp.WithDescription("Get a blog post with its markdown body"),
		mcp.WithString("slug",
			mcp.Required(),
			mcp.Description("Page id, UUID or notion.so URL of the post"),
		),
		mcp.WithString("format",
			mcp.Description("json returns the post record, markdown a document with YAML front matter"),
			mcp.Enum(FormatJSON, FormatMarkdown),
		),
	)
	s.AddTool(getPostTool, mcp.NewTypedToolHandler(getPostHandler(serviceInstance)))

	s.AddTool(mcp.NewTool("listCategories",
		mcp.WithDescription("List the categories of all posts"),
	), getListCategoriesHandler(serviceInstance))

	s.AddTool(mcp.NewTool("listTags",
		mcp.WithDescription("List the tags of all posts"),
	), getListTagsHandler(serviceInstance))

	analyzeTool := mcp.NewTool("analyzePage",
		mcp.WithDescription("Count the blocks and tables of a notion page"),
		mcp.WithString("page",
			mcp.Required(),
			mcp.Description("Page id, UUID or notion.so URL"),
		),
	)
	s.AddTool(analyzeTool, mcp.NewTypedToolHandler(getAnalyzePageHandler(serviceInstance)))

	return s
}

func loggingMiddleware(logger *zap.Logger) server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := time.Now()
			result, err := next(ctx, request)
			fields := []zap.Field{
				zap.String("tool", request.Params.Name),
				zap.Duration("duration", time.Since(start)),
			}
			if r, ok := httpRequestFromContext(ctx); ok {
				fields = append(fields, zap.String("remoteAddr", r.RemoteAddr))
			}
			switch {
			case err != nil:
				logger.Error("tool call failed", append(fields, zap.Error(err))...)
			case result != nil && result.IsError:
				logger.Info("tool call rejected", fields...)
			default:
				logger.Debug("tool call", fields...)
			}
			return result, err
		}
	}
}

// jsonResult marshals response into a text result
func jsonResult(response any) (*mcp.CallToolResult, error) {
	responseBytes, err := json.Marshal(response)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseBytes)), nil
}

func getScrapeHandler(client *http.Client) func(ctx context.Context, request mcp.CallToolRequest, args ScrapeRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args ScrapeRequest) (*mcp.CallToolResult, error) {
		if args.URL == "" {
			return mcp.NewToolResultError("url is required"), nil
		}

		page, err := scrape.Scrape(ctx, client, args.URL, args.Selector)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to scrape content: %v", err)), nil
		}
		return jsonResult(ScrapeResponse{
			Summary:  page.Summary,
			Markdown: string(page.Markdown),
			Blocks:   page.RecordMap.Len(),
		})
	}
}

func getListPostsHandler(serviceInstance service.Service) func(ctx context.Context, request mcp.CallToolRequest, args ListPostsRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args ListPostsRequest) (*mcp.CallToolResult, error) {
		tag, category := strings.TrimSpace(args.Tag), strings.TrimSpace(args.Category)

		var posts []vo.PostSummary
		var err error
		switch {
		case tag != "":
			posts, err = serviceInstance.PostsByTag(ctx, tag)
		case category != "":
			posts, err = serviceInstance.PostsByCategory(ctx, category)
		default:
			posts, err = serviceInstance.ListPosts(ctx)
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list posts: %v", err)), nil
		}
		if tag != "" && category != "" {
			filtered := posts[:0]
			for _, p := range posts {
				if p.Category == category {
					filtered = append(filtered, p)
				}
			}
			posts = filtered
		}
		return jsonResult(ListPostsResponse{Posts: posts})
	}
}

func getPostHandler(serviceInstance service.Service) func(ctx context.Context, request mcp.CallToolRequest, args GetPostRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args GetPostRequest) (*mcp.CallToolResult, error) {
		if strings.TrimSpace(args.Slug) == "" {
			return mcp.NewToolResultError("slug is required"), nil
		}

		switch args.Format {
		case "", FormatJSON:
			post, err := serviceInstance.GetPost(ctx, args.Slug)
			if err != nil {
				return postError(args.Slug, err), nil
			}
			return jsonResult(GetPostResponse{Post: post})
		case FormatMarkdown:
			markdown, err := serviceInstance.ExportPost(ctx, args.Slug)
			if err != nil {
				return postError(args.Slug, err), nil
			}
			return mcp.NewToolResultText(string(markdown)), nil
		default:
			return mcp.NewToolResultError(fmt.Sprintf("unknown format %q", args.Format)), nil
		}
	}
}

func postError(slug string, err error) *mcp.CallToolResult {
	if errors.Is(err, service.ErrPostNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("post %q not found", slug))
	}
	return mcp.NewToolResultError(fmt.Sprintf("failed to get post: %v", err))
}

func getListCategoriesHandler(serviceInstance service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		categories, err := serviceInstance.ListCategories(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list categories: %v", err)), nil
		}
		return jsonResult(map[string][]string{"categories": categories})
	}
}

func getListTagsHandler(serviceInstance service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tags, err := serviceInstance.ListTags(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list tags: %v", err)), nil
		}
		return jsonResult(map[string][]string{"tags": tags})
	}
}

func getAnalyzePageHandler(serviceInstance service.Service) func(ctx context.Context, request mcp.CallToolRequest, args AnalyzePageRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args AnalyzePageRequest) (*mcp.CallToolResult, error) {
		if strings.TrimSpace(args.Page) == "" {
			return mcp.NewToolResultError("page is required"), nil
		}
		analysis, err := serviceInstance.Analyze(ctx, args.Page)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to analyze page: %v", err)), nil
		}
		return jsonResult(analysis)
	}
}
