package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestHTTPServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	svc := newFakeService()
	h := NewHTTPHandler(logger, NewServer(logger, nil, svc), svc, "/mcp", &SSEServerConfig{
		KeepaliveInterval: time.Hour,
		BufferSize:        10,
		ClientTimeout:     time.Minute,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		srv.Close()
		h.Close()
	})
	return srv
}

// readEvents collects the event names of an SSE stream until it ends or
// stop reports true.
func readEvents(t *testing.T, scanner *bufio.Scanner, stop func(name string) bool) []string {
	t.Helper()
	var names []string
	for scanner.Scan() {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			names = append(names, name)
			if stop != nil && stop(name) {
				break
			}
		}
	}
	return names
}

func TestHandlePostSSE(t *testing.T) {
	srv := newTestHTTPServer(t)

	resp, err := http.Post(srv.URL+"/mcp/sse/post", "application/json", strings.NewReader(`{"slug":"p1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, []string{"post_start", "post_result", "post_complete"}, readEvents(t, bufio.NewScanner(resp.Body), nil))

	resp, err = http.Post(srv.URL+"/mcp/sse/post", "application/json", strings.NewReader(`{"slug":"ghost"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, []string{"post_start", "post_error"}, readEvents(t, bufio.NewScanner(resp.Body), nil))

	resp, err = http.Post(srv.URL+"/mcp/sse/post", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleSSEBroadcast(t *testing.T) {
	srv := newTestHTTPServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/mcp/sse", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()

	scanner := bufio.NewScanner(stream.Body)
	require.Equal(t, []string{"connected"}, readEvents(t, scanner, func(string) bool { return true }))

	var stats map[string]any
	statsResp, err := http.Get(srv.URL + "/mcp/sse/stats")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(statsResp.Body).Decode(&stats))
	statsResp.Body.Close()
	assert.Equal(t, float64(1), stats["connectedClients"])
	assert.Equal(t, Version, stats["serverVersion"])

	resp, err := http.Post(srv.URL+"/mcp/sse/post", "application/json", strings.NewReader(`{"slug":"p2"}`))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{"post_viewed"}, readEvents(t, scanner, func(name string) bool { return name == "post_viewed" }))
}

func TestClientsRoute(t *testing.T) {
	srv := newTestHTTPServer(t)

	resp, err := http.Get(srv.URL + "/mcp/sse/clients")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(0), body["connectedClients"])
}

func TestRequestContext(t *testing.T) {
	_, ok := httpRequestFromContext(context.Background())
	assert.False(t, ok)

	r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	got, ok := httpRequestFromContext(requestContext(context.Background(), r))
	require.True(t, ok)
	assert.Same(t, r, got)
}
