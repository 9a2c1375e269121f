package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"zohobooks-mcp/server/internal/jsonrpc"
	"zohobooks-mcp/server/internal/observability"
)

// maxBodyBytes bounds a single JSON-RPC message.
const maxBodyBytes = 4 << 20

// RequestProcessor processes JSON-RPC requests.
// Implemented by the MCP handler.
type RequestProcessor interface {
	ProcessRequest(ctx context.Context, req *jsonrpc.Request) (any, *jsonrpc.Error)
}

// session represents an SSE connection session.
type session struct {
	id       string
	messages chan []byte
}

// transport manages SSE/Inline transport for MCP.
type transport struct {
	processor RequestProcessor
	sessions  map[string]*session
	mu        sync.RWMutex
	log       *zap.Logger
}

// Transport creates an http.Handler that manages SSE and Inline JSON-RPC transport.
// It delegates request processing to the given RequestProcessor.
func Transport(processor RequestProcessor) http.Handler {
	return &transport{
		processor: processor,
		sessions:  make(map[string]*session),
		log:       observability.Logger().Named("transport"),
	}
}

func (t *transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		t.handleSSE(w, r)
	case http.MethodPost:
		t.handleMessage(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (t *transport) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s := &session{
		id:       uuid.NewString(),
		messages: make(chan []byte, 100),
	}

	t.mu.Lock()
	t.sessions[s.id] = s
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.sessions, s.id)
		t.mu.Unlock()
	}()

	// Send endpoint event (MCP SSE protocol)
	fmt.Fprintf(w, "event: endpoint\ndata: /mcp?sessionId=%s\n\n", s.id)
	flusher.Flush()
	t.log.Info("SSE connection established", zap.String("session", s.id))

	for {
		select {
		case msg := <-s.messages:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		case <-r.Context().Done():
			t.log.Info("SSE connection closed", zap.String("session", s.id))
			return
		}
	}
}

func (t *transport) handleMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		t.handleInlineMessage(w, r)
		return
	}

	t.mu.RLock()
	s, ok := t.sessions[sessionID]
	t.mu.RUnlock()

	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(body, &req); err != nil {
		t.send(s, jsonrpc.Response{JSONRPC: jsonrpc.Version, Error: &jsonrpc.Error{Code: jsonrpc.ParseError, Message: "Parse error"}})
		w.WriteHeader(http.StatusAccepted)
		return
	}

	t.log.Debug("received request",
		zap.String("method", req.Method),
		zap.Any("id", req.ID),
		zap.String("session", sessionID),
		zap.String("request_id", GetRequestID(r.Context())),
	)

	if resp, ok := handle(r.Context(), t.processor, &req); ok {
		t.send(s, resp)
	}
	w.WriteHeader(http.StatusAccepted)
}

func (t *transport) handleInlineMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusOK, jsonrpc.Response{JSONRPC: jsonrpc.Version, Error: &jsonrpc.Error{Code: jsonrpc.ParseError, Message: "Parse error"}})
		return
	}

	t.log.Debug("received inline request",
		zap.String("method", req.Method),
		zap.Any("id", req.ID),
		zap.String("request_id", GetRequestID(r.Context())),
	)

	resp, ok := handle(r.Context(), t.processor, &req)
	if !ok {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (t *transport) send(s *session, resp jsonrpc.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		t.log.Error("encode response", zap.Error(err))
		return
	}
	select {
	case s.messages <- data:
	default:
		t.log.Warn("session message buffer full", zap.String("session", s.id))
	}
}

// handle runs one request. ok is false for notifications, which get no response.
func handle(ctx context.Context, p RequestProcessor, req *jsonrpc.Request) (resp jsonrpc.Response, ok bool) {
	if req.JSONRPC != jsonrpc.Version {
		return jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: req.ID, Error: &jsonrpc.Error{Code: jsonrpc.InvalidRequest, Message: "Invalid Request"}}, true
	}
	result, rpcErr := p.ProcessRequest(ctx, req)
	if req.IsNotification() {
		return jsonrpc.Response{}, false
	}
	if rpcErr != nil {
		return jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: req.ID, Error: rpcErr}, true
	}
	return jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: req.ID, Result: result}, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
