// Package httpserver exposes the Guardian over JSON-RPC 2.0 HTTP (spec
// §6): "HTTP uses JSON-RPC 2.0". It does nothing authorization-relevant
// itself — every call goes straight to guardian.Guardian.Post.
package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/bubbleprotocol/guardian/internal/bubbleerr"
	"github.com/bubbleprotocol/guardian/internal/guardian"
)

// envelope is a JSON-RPC 2.0 request.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// Server is an http.Handler that dispatches JSON-RPC 2.0 requests to a
// Guardian. Subscriptions are not supported over plain request/response
// HTTP; use the WebSocket transport for "subscribe".
type Server struct {
	Guardian *guardian.Guardian
}

// New returns a Server wrapping g.
func New(g *guardian.Guardian) *Server {
	return &Server{Guardian: g}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.NewString()
	logger := slog.With("trace_id", traceID)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var env envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		logger.Warn("malformed json-rpc envelope", "error", err)
		writeJSON(w, response{JSONRPC: "2.0", Error: &rpcError{Code: int(bubbleerr.InvalidRequest), Message: "malformed request"}})
		return
	}

	if env.Method == "subscribe" {
		writeJSON(w, response{JSONRPC: "2.0", ID: env.ID, Error: &rpcError{
			Code:    int(bubbleerr.InvalidRequest),
			Message: "subscribe is only available over the WebSocket transport",
		}})
		return
	}

	result, err := s.Guardian.Post(r.Context(), env.Method, env.Params, nil)
	if err != nil {
		writeJSON(w, response{JSONRPC: "2.0", ID: env.ID, Error: toRPCError(err)})
		logger.Info("request denied", "method", env.Method, "error", err)
		return
	}
	writeJSON(w, response{JSONRPC: "2.0", ID: env.ID, Result: result})
}

func toRPCError(err error) *rpcError {
	if be, ok := bubbleerr.As(err); ok {
		var data any
		if be.Cause != nil {
			data = map[string]string{"cause": be.Cause.Error()}
		}
		return &rpcError{Code: int(be.Code), Message: be.Message, Data: data}
	}
	return &rpcError{Code: int(bubbleerr.InternalError), Message: err.Error()}
}

func writeJSON(w http.ResponseWriter, resp response) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
