package notionapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	pageUUID = "1bd00c01-c160-8010-ae44-f4305a2be2db"
	viewUUID = "5a8e6c3b-0d3f-4f5e-9a1b-2c3d4e5f6a7b"
)

type fakeNotion struct {
	mu       sync.Mutex
	calls    map[string]int
	bodies   map[string][]map[string]any
	cookies  []string
	failures map[string][]int
	records  map[string]string // syncRecordValues answers by requested id
}

func (f *fakeNotion) handler(w http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Path[len("/api/v3/"):]
	body, _ := io.ReadAll(r.Body)
	var req map[string]any
	_ = json.Unmarshal(body, &req)

	f.mu.Lock()
	f.calls[endpoint]++
	f.bodies[endpoint] = append(f.bodies[endpoint], req)
	if c, err := r.Cookie("token_v2"); err == nil {
		f.cookies = append(f.cookies, c.Value)
	}
	var status int
	if queue := f.failures[endpoint]; len(queue) > 0 {
		status, f.failures[endpoint] = queue[0], queue[1:]
	}
	f.mu.Unlock()

	if status != 0 {
		http.Error(w, "nope", status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch endpoint {
	case "loadPageChunk":
		if req["chunkNumber"] == float64(0) {
			_, _ = io.WriteString(w, `{"recordMap":{"block":{
				"`+pageUUID+`":{"value":{"id":"`+pageUUID+`","type":"page","parent_table":"space",
					"properties":{"title":[["Blog"]]},"content":["view-1","intro-1"]}}
			}},"cursor":{"stack":[[{"table":"block","id":"`+pageUUID+`","index":1}]]}}`)
			return
		}
		_, _ = io.WriteString(w, `{"recordMap":{"block":{
			"view-1":{"value":{"id":"view-1","type":"collection_view","view_ids":["`+viewUUID+`"],
				"format":{"collection_pointer":{"id":"coll-1","table":"collection"}}}},
			"intro-1":{"value":{"id":"intro-1","type":"text","properties":{"title":[["Hi"]]},"content":["gone-1"]}}
		},"collection":{"coll-1":{"value":{"id":"coll-1","name":[["Posts"]],"schema":{"title":{"name":"Name","type":"title"}}}}}},
		"cursor":{"stack":[]}}`)
	case "queryCollection":
		_, _ = io.WriteString(w, `{"result":{},"recordMap":{"block":{
			"post-1":{"value":{"id":"post-1","type":"page","parent_table":"collection","parent_id":"coll-1",
				"properties":{"title":[["First"]]}}}
		}}}`)
	case "syncRecordValues":
		blocks := map[string]json.RawMessage{}
		requests, _ := req["requests"].([]any)
		f.mu.Lock()
		for _, r := range requests {
			pointer, _ := r.(map[string]any)["pointer"].(map[string]any)
			id, _ := pointer["id"].(string)
			if rec, ok := f.records[id]; ok {
				blocks[id] = json.RawMessage(`{"value":` + rec + `}`)
			}
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"recordMap": map[string]any{"block": blocks}})
	default:
		http.NotFound(w, r)
	}
}

func newFakeNotion(t *testing.T) (*fakeNotion, *httptest.Server) {
	t.Helper()
	f := &fakeNotion{
		calls:    map[string]int{},
		bodies:   map[string][]map[string]any{},
		failures: map[string][]int{},
		records: map[string]string{
			"gone1": `{"id":"gone-1","type":"text","properties":{"title":[["Found"]]}}`,
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(srv.Close)
	return f, srv
}

func newTestClient(srv *httptest.Server, opts ...Option) *Client {
	return NewClient(append([]Option{
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithRetry(3, time.Millisecond),
	}, opts...)...)
}

func TestFetchContentGraph(t *testing.T) {
	f, srv := newFakeNotion(t)
	c := newTestClient(srv, WithToken("secret"))

	rm, err := c.FetchContentGraph(context.Background(), "https://www.notion.so/blog-1bd00c01c1608010ae44f4305a2be2db")
	require.NoError(t, err)

	assert.Equal(t, 2, f.calls["loadPageChunk"])
	assert.Equal(t, 1, f.calls["queryCollection"])
	assert.Equal(t, 1, f.calls["syncRecordValues"])
	assert.Equal(t, pageUUID, f.bodies["loadPageChunk"][0]["pageId"])
	assert.Equal(t, float64(1), f.bodies["loadPageChunk"][1]["chunkNumber"])
	assert.NotEmpty(t, f.bodies["loadPageChunk"][1]["cursor"].(map[string]any)["stack"])
	assert.Equal(t, viewUUID, f.bodies["queryCollection"][0]["collectionView"].(map[string]any)["id"])
	for _, cookie := range f.cookies {
		assert.Equal(t, "secret", cookie)
	}

	assert.Equal(t, 5, rm.Len())
	require.NotNil(t, rm.Block("post1"))
	require.NotNil(t, rm.Block("gone1"))
	require.NotNil(t, rm.Collection("coll1"))
	assert.Empty(t, rm.MissingChildren())
}

func TestFetchContentGraphSyncsNestedChildren(t *testing.T) {
	f, srv := newFakeNotion(t)
	f.records["gone1"] = `{"id":"gone-1","type":"bulleted_list","properties":{"title":[["top"]]},"content":["deep-1"]}`
	f.records["deep1"] = `{"id":"deep-1","type":"bulleted_list","properties":{"title":[["deep"]]}}`

	rm, err := newTestClient(srv).FetchContentGraph(context.Background(), pageUUID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls["syncRecordValues"])
	require.NotNil(t, rm.Block("deep1"))
	assert.Empty(t, rm.MissingChildren())
}

func TestFetchContentGraphSkipsUnresolvableChildren(t *testing.T) {
	f, srv := newFakeNotion(t)
	delete(f.records, "gone1")

	rm, err := newTestClient(srv).FetchContentGraph(context.Background(), pageUUID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls["syncRecordValues"])
	assert.Equal(t, []string{"gone1"}, rm.MissingChildren())
}

func TestFetchContentGraphRetriesTemporaryFailures(t *testing.T) {
	f, srv := newFakeNotion(t)
	f.failures["loadPageChunk"] = []int{http.StatusServiceUnavailable, http.StatusTooManyRequests}

	_, err := newTestClient(srv).FetchContentGraph(context.Background(), pageUUID)
	require.NoError(t, err)
	assert.Equal(t, 4, f.calls["loadPageChunk"])
}

func TestFetchContentGraphFailure(t *testing.T) {
	f, srv := newFakeNotion(t)
	f.failures["loadPageChunk"] = []int{http.StatusNotFound}

	_, err := newTestClient(srv).FetchContentGraph(context.Background(), pageUUID)
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Equal(t, "loadPageChunk", fetchErr.Endpoint)
	assert.Equal(t, "1bd00c01c1608010ae44f4305a2be2db", fetchErr.PageID)
	assert.Equal(t, 1, f.calls["loadPageChunk"])
}

func TestFetchContentGraphGivesUpAfterAttempts(t *testing.T) {
	f, srv := newFakeNotion(t)
	f.failures["queryCollection"] = []int{500, 500, 500}

	_, err := newTestClient(srv).FetchContentGraph(context.Background(), pageUUID)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
	assert.True(t, fetchErr.Temporary())
	assert.Equal(t, 3, f.calls["queryCollection"])
}

func TestFetchContentGraphEmptyRef(t *testing.T) {
	_, err := NewClient().FetchContentGraph(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyPageID)
}

func TestFetchContentGraphCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:")

	f, srv := newFakeNotion(t)
	c := newTestClient(srv, WithCache(cache, time.Minute))

	first, err := c.FetchContentGraph(context.Background(), pageUUID)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:recordmap:1bd00c01c1608010ae44f4305a2be2db"))

	second, err := c.FetchContentGraph(context.Background(), pageUUID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls["loadPageChunk"])
	assert.Equal(t, first.BlockIDs(), second.BlockIDs())

	mr.FastForward(2 * time.Minute)
	_, err = c.FetchContentGraph(context.Background(), pageUUID)
	require.NoError(t, err)
	assert.Equal(t, 4, f.calls["loadPageChunk"])
}

func TestFetchContentGraphIgnoresCacheErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}), "")
	mr.Close()

	_, srv := newFakeNotion(t)
	rm, err := newTestClient(srv, WithCache(cache, time.Minute)).FetchContentGraph(context.Background(), pageUUID)
	require.NoError(t, err)
	assert.Equal(t, 5, rm.Len())
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "p:")
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Minute))
	value, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), value)
}
