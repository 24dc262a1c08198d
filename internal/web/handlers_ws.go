package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/baysumehmet/botdeck/internal/bot"
	"github.com/baysumehmet/botdeck/internal/logging"
)

// wsCommandRate caps how fast one bridge client may issue commands.
const (
	wsCommandRate  = rate.Limit(10)
	wsCommandBurst = 20
)

type wsClientMessage struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message,omitempty"`
}

type wsServerMessage struct {
	Type    string     `json:"type"` // status, event, error
	Event   *bot.Event `json:"event,omitempty"`
	Code    string     `json:"code,omitempty"`
	Message string     `json:"message,omitempty"`
	Time    time.Time  `json:"time,omitempty"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     allowWSOrigin,
}

func allowWSOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil || originURL.Host == "" {
		return false
	}

	return strings.EqualFold(originURL.Host, r.Host)
}

// wsConnWriter serializes writes: the event pump and the command loop both
// write to the same connection.
type wsConnWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newWSConnWriter(conn *websocket.Conn) *wsConnWriter {
	return &wsConnWriter{conn: conn}
}

func (w *wsConnWriter) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteJSON(v)
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	webLog := logging.ForComponent(logging.CompWeb)
	writer := newWSConnWriter(conn)

	_ = writer.WriteJSON(wsServerMessage{
		Type:    "status",
		Message: "connected",
		Time:    time.Now().UTC(),
	})

	events := s.hub.Subscribe()
	defer s.hub.Unsubscribe(events)

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-s.baseCtx.Done():
				_ = conn.Close()
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := writer.WriteJSON(wsServerMessage{Type: "event", Event: &ev}); err != nil {
					return
				}
			}
		}
	}()

	limiter := rate.NewLimiter(wsCommandRate, wsCommandBurst)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				webLog.Warn("websocket_closed_unexpectedly", slog.String("error", err.Error()))
			}
			return
		}

		var msg wsClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			_ = writer.WriteJSON(wsServerMessage{
				Type:    "error",
				Code:    "INVALID_MESSAGE",
				Message: "invalid json payload",
				Time:    time.Now().UTC(),
			})
			continue
		}

		if msg.Type == "ping" {
			_ = writer.WriteJSON(wsServerMessage{
				Type:    "status",
				Message: "pong",
				Time:    time.Now().UTC(),
			})
			continue
		}

		if s.cfg.ReadOnly {
			_ = writer.WriteJSON(wsServerMessage{
				Type:    "error",
				Code:    "READ_ONLY",
				Message: "commands are disabled in read-only mode",
				Time:    time.Now().UTC(),
			})
			continue
		}
		if !limiter.Allow() {
			_ = writer.WriteJSON(wsServerMessage{
				Type:    "error",
				Code:    "RATE_LIMITED",
				Message: "too many commands",
				Time:    time.Now().UTC(),
			})
			continue
		}

		s.dispatchCommand(r, writer, msg)
	}
}

func (s *Server) dispatchCommand(r *http.Request, writer *wsConnWriter, msg wsClientMessage) {
	fail := func(code, message string) {
		_ = writer.WriteJSON(wsServerMessage{
			Type:    "error",
			Code:    code,
			Message: message,
			Time:    time.Now().UTC(),
		})
	}
	if msg.Username == "" {
		fail("INVALID_REQUEST", "username is required")
		return
	}

	switch msg.Type {
	case "connect":
		if err := s.controller.Connect(r.Context(), msg.Username); err != nil {
			fail("CONNECT_FAILED", err.Error())
		}
	case "disconnect":
		// Bridge disconnects count as manual: the operator asked for it.
		s.controller.Disconnect(msg.Username, true)
	case "chat":
		if strings.TrimSpace(msg.Message) == "" {
			fail("INVALID_REQUEST", "message is required")
			return
		}
		if err := s.controller.SendChat(msg.Username, msg.Message); err != nil {
			fail("CHAT_FAILED", err.Error())
		}
	case "run_script":
		if err := s.controller.RunScript(r.Context(), msg.Username); err != nil {
			fail("SCRIPT_FAILED", err.Error())
		}
	default:
		fail("UNSUPPORTED_MESSAGE", "supported message types: ping,connect,disconnect,chat,run_script")
	}
}
