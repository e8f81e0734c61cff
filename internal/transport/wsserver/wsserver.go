// Package wsserver exposes the Guardian over the minimal WebSocket frame
// spec §6 describes: "{id, method, params}" requests plus a "subscription"
// method carrying notifications. It owns no authorization logic of its
// own — every call goes straight to guardian.Guardian.Post, which is
// given a per-connection listener for "subscribe" requests.
package wsserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bubbleprotocol/guardian/internal/bubbleerr"
	"github.com/bubbleprotocol/guardian/internal/dataserver"
	"github.com/bubbleprotocol/guardian/internal/guardian"
)

type frame struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type outFrame struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result any             `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
	Params any             `json:"params,omitempty"`
}

type subscriptionNotification struct {
	SubscriptionID string `json:"subscriptionId"`
	Result         any    `json:"result,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Server upgrades incoming connections and dispatches each frame to a
// Guardian, serializing writes per connection (gorilla/websocket
// connections are not safe for concurrent writers).
type Server struct {
	Guardian *guardian.Guardian
	upgrader websocket.Upgrader
}

// New returns a Server wrapping g.
func New(g *guardian.Guardian) *Server {
	return &Server{
		Guardian: g,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	connID := uuid.NewString()
	logger := slog.With("connection_id", connID)
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(f outFrame) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(f); err != nil {
			logger.Warn("write failed", "error", err)
		}
	}

	for {
		var in frame
		if err := conn.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Info("connection closed", "error", err)
			}
			return
		}

		var listener dataserver.Listener
		if in.Method == "subscribe" {
			listener = func(n dataserver.Notification) {
				note := subscriptionNotification{SubscriptionID: n.SubscriptionID, Result: n.Result}
				if n.Err != nil {
					note.Error = n.Err.Error()
				}
				write(outFrame{Method: "subscription", Params: note})
			}
		}

		result, err := s.Guardian.Post(r.Context(), in.Method, in.Params, listener)
		if err != nil {
			write(outFrame{ID: in.ID, Error: toRPCError(err)})
			continue
		}
		write(outFrame{ID: in.ID, Result: result})
	}
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
