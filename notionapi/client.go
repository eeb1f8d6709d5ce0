// Package notionapi fetches record maps from Notion's public v3 API.
package notionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/foomo/notion-mcp/notion"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://www.notion.so"

	chunkLimit    = 100
	maxChunks     = 50
	syncBatchSize = 100
	maxSynced     = 500
	queryLimit    = 999
	cacheKeySpace = "recordmap:"
)

// Client talks to the Notion API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	attempts   uint
	retryDelay time.Duration
	cache      Cache
	cacheTTL   time.Duration
	logger     *zap.Logger
}

type Option func(*Client)

// WithHTTPClient sets the client requests are sent with.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithBaseURL points the client at another API host.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithToken sends token as the token_v2 cookie, giving access to private pages.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithRetry sets how often and how fast temporary failures are retried.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		c.retryDelay = delay
	}
}

// WithCache stores fetched record maps in cache for ttl.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    DefaultBaseURL,
		attempts:   3,
		retryDelay: 200 * time.Millisecond,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chunkRequest struct {
	PageID          string      `json:"pageId"`
	Limit           int         `json:"limit"`
	Cursor          chunkCursor `json:"cursor"`
	ChunkNumber     int         `json:"chunkNumber"`
	VerticalColumns bool        `json:"verticalColumns"`
}

type chunkCursor struct {
	Stack []json.RawMessage `json:"stack"`
}

type chunkResponse struct {
	RecordMap notion.RecordMap `json:"recordMap"`
	Cursor    chunkCursor      `json:"cursor"`
}

type recordPointer struct {
	Table string `json:"table"`
	ID    string `json:"id"`
}

type syncRequest struct {
	Requests []syncRecord `json:"requests"`
}

type syncRecord struct {
	Pointer recordPointer `json:"pointer"`
	Version int           `json:"version"`
}

type recordMapResponse struct {
	RecordMap notion.RecordMap `json:"recordMap"`
}

// FetchContentGraph loads the page behind pageRef together with its blocks,
// the pages of any database it shows and children the page chunks left out.
func (c *Client) FetchContentGraph(ctx context.Context, pageRef string) (*notion.RecordMap, error) {
	pageID := notion.NormalizeID(pageRef)
	if pageID == "" {
		return nil, &FetchError{PageID: pageRef, Endpoint: "loadPageChunk", Err: ErrEmptyPageID}
	}
	if rm := c.cached(ctx, pageID); rm != nil {
		return rm, nil
	}

	rm, err := c.loadPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if err := c.loadCollections(ctx, pageID, rm); err != nil {
		return nil, err
	}
	if err := c.loadMissing(ctx, pageID, rm); err != nil {
		return nil, err
	}

	c.store(ctx, pageID, rm)
	return rm, nil
}

func (c *Client) loadPage(ctx context.Context, pageID string) (*notion.RecordMap, error) {
	rm := notion.NewRecordMap()
	req := chunkRequest{PageID: notion.FormatUUID(pageID), Limit: chunkLimit, Cursor: chunkCursor{Stack: []json.RawMessage{}}}
	for req.ChunkNumber < maxChunks {
		var resp chunkResponse
		if err := c.post(ctx, pageID, "loadPageChunk", req, &resp); err != nil {
			return nil, err
		}
		rm.Merge(&resp.RecordMap)
		if len(resp.Cursor.Stack) == 0 {
			break
		}
		req.Cursor = resp.Cursor
		req.ChunkNumber++
	}
	return rm, nil
}

func (c *Client) loadCollections(ctx context.Context, pageID string, rm *notion.RecordMap) error {
	for _, id := range rm.BlockIDs() {
		b := rm.Block(id)
		if !b.IsCollectionView() || len(b.ViewIDs) == 0 {
			continue
		}
		collectionID := b.CollectionPointer()
		if collectionID == "" {
			continue
		}
		req := map[string]any{
			"collection":     map[string]any{"id": notion.FormatUUID(collectionID)},
			"collectionView": map[string]any{"id": notion.FormatUUID(b.ViewIDs[0])},
			"loader": map[string]any{
				"type": "reducer",
				"reducers": map[string]any{
					"collection_group_results": map[string]any{"type": "results", "limit": queryLimit},
				},
				"searchQuery":  "",
				"userTimeZone": "UTC",
			},
		}
		var resp recordMapResponse
		if err := c.post(ctx, pageID, "queryCollection", req, &resp); err != nil {
			return err
		}
		rm.Merge(&resp.RecordMap)
	}
	return nil
}

// loadMissing syncs children referenced but not yet loaded, round after
// round, until the tree is complete or maxSynced records were requested.
func (c *Client) loadMissing(ctx context.Context, pageID string, rm *notion.RecordMap) error {
	requested := map[string]bool{}
	for {
		var missing []string
		for _, id := range rm.MissingChildren() {
			if !requested[id] {
				missing = append(missing, id)
			}
		}
		if len(missing) == 0 {
			return nil
		}
		if budget := maxSynced - len(requested); len(missing) > budget {
			c.logger.Debug("truncating missing children", zap.String("page", pageID), zap.Int("missing", len(missing)), zap.Int("budget", budget))
			missing = missing[:budget]
		}
		if len(missing) == 0 {
			return nil
		}
		for len(missing) > 0 {
			n := min(len(missing), syncBatchSize)
			req := syncRequest{Requests: make([]syncRecord, 0, n)}
			for _, id := range missing[:n] {
				requested[id] = true
				req.Requests = append(req.Requests, syncRecord{
					Pointer: recordPointer{Table: notion.TableBlock, ID: notion.FormatUUID(id)},
					Version: -1,
				})
			}
			var resp recordMapResponse
			if err := c.post(ctx, pageID, "syncRecordValues", req, &resp); err != nil {
				return err
			}
			rm.Merge(&resp.RecordMap)
			missing = missing[n:]
		}
	}
}

func (c *Client) post(ctx context.Context, pageID, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", endpoint, err)
	}
	return retry.Do(
		func() error {
			return c.do(ctx, pageID, endpoint, payload, out)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var fetchErr *FetchError
			return errors.As(err, &fetchErr) && fetchErr.Temporary() && ctx.Err() == nil
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying notion request", zap.String("endpoint", endpoint), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
}

func (c *Client) do(ctx context.Context, pageID, endpoint string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v3/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: "token_v2", Value: c.token})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{PageID: pageID, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &FetchError{
			PageID:     pageID,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response %q", strings.TrimSpace(string(msg))),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{PageID: pageID, Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func (c *Client) cached(ctx context.Context, pageID string) *notion.RecordMap {
	if c.cache == nil {
		return nil
	}
	data, ok, err := c.cache.Get(ctx, cacheKeySpace+pageID)
	if err != nil {
		c.logger.Warn("failed to read record map cache", zap.String("page", pageID), zap.Error(err))
		return nil
	} else if !ok {
		return nil
	}
	rm := notion.NewRecordMap()
	if err := json.Unmarshal(data, rm); err != nil {
		c.logger.Warn("dropping unreadable cache entry", zap.String("page", pageID), zap.Error(err))
		return nil
	}
	if rm.Len() == 0 {
		return nil
	}
	return rm
}

func (c *Client) store(ctx context.Context, pageID string, rm *notion.RecordMap) {
	if c.cache == nil || rm.Len() == 0 {
		return
	}
	data, err := json.Marshal(rm)
	if err != nil {
		c.logger.Warn("failed to marshal record map", zap.String("page", pageID), zap.Error(err))
		return
	}
	if err := c.cache.Set(ctx, cacheKeySpace+pageID, data, c.cacheTTL); err != nil {
		c.logger.Warn("failed to write record map cache", zap.String("page", pageID), zap.Error(err))
	}
}
