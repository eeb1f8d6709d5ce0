package mcp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/foomo/notion-mcp/service"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

type requestKey struct{}

// requestContext is the streamable server's context func. Tool middleware
// reads the request back to log the caller.
func requestContext(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, requestKey{}, r)
}

func httpRequestFromContext(ctx context.Context) (*http.Request, bool) {
	r, ok := ctx.Value(requestKey{}).(*http.Request)
	return r, ok
}

// HTTPHandler serves the streamable MCP endpoint and its SSE routes:
//
//	{endpoint}              streamable MCP
//	{endpoint}/sse          event stream for broadcasts
//	{endpoint}/sse/post     streams loading a single post
//	{endpoint}/sse/clients  connected clients
//	{endpoint}/sse/stats    stream statistics
type HTTPHandler struct {
	mux    *http.ServeMux
	events *MCPSSEServer
}

func NewHTTPHandler(logger *zap.Logger, s *server.MCPServer, blog service.Service, endpoint string, config *SSEServerConfig) *HTTPHandler {
	events := NewMCPSSEServer(logger, s, blog, config)

	mux := http.NewServeMux()
	mux.Handle(endpoint, server.NewStreamableHTTPServer(s,
		server.WithEndpointPath(endpoint),
		server.WithHTTPContextFunc(requestContext),
	))
	mux.HandleFunc(endpoint+"/sse", events.HandleSSE)
	mux.HandleFunc(endpoint+"/sse/post", events.HandlePostSSE)
	mux.HandleFunc(endpoint+"/sse/clients", func(w http.ResponseWriter, r *http.Request) {
		clients := events.GetConnectedClients()
		writeJSON(w, map[string]any{
			"connectedClients": len(clients),
			"clients":          clients,
		})
	})
	mux.HandleFunc(endpoint+"/sse/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, events.GetStats())
	})

	return &HTTPHandler{mux: mux, events: events}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_ = json.NewEncoder(w).Encode(v)
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Close disconnects all event stream clients.
func (h *HTTPHandler) Close() {
	h.events.Close()
}
