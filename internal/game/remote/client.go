// Package remote implements game.Session over a websocket connection to a
// session agent: an external process that speaks the actual game protocol
// and exposes it as a JSON request/response plus event stream. botdeck stays
// protocol-free; the agent is swappable.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/baysumehmet/botdeck/internal/game"
	"github.com/baysumehmet/botdeck/internal/logging"
)

var remoteLog = logging.ForComponent(logging.CompAgent)

const (
	writeTimeout = 5 * time.Second
	callTimeout  = 60 * time.Second
	readLimit    = 1 << 20
)

// frame is one wire message in either direction. Requests carry id+op+args;
// responses echo the id with ok/error/data; agent-initiated events carry
// event+data.
type frame struct {
	ID    uint32          `json:"id,omitempty"`
	Op    string          `json:"op,omitempty"`
	Args  json.RawMessage `json:"args,omitempty"`
	OK    *bool           `json:"ok,omitempty"`
	Error string          `json:"error,omitempty"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type callResult struct {
	data json.RawMessage
	err  error
}

// client owns one websocket to the agent for one bot session.
type client struct {
	conn     *websocket.Conn
	identity string
	cb       game.Callbacks

	seq atomic.Uint32

	mu      sync.Mutex
	pending map[uint32]chan callResult

	wmu sync.Mutex // serializes websocket writes

	closed       atomic.Bool
	terminalOnce sync.Once
}

func newClient(conn *websocket.Conn, identity string, cb game.Callbacks) *client {
	conn.SetReadLimit(readLimit)
	return &client{
		conn:     conn,
		identity: identity,
		cb:       cb,
		pending:  map[uint32]chan callResult{},
	}
}

// call sends one request and waits for the agent's matching response.
func (c *client) call(ctx context.Context, op string, args any) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, &game.ActionError{Op: op, Reason: "session closed"}
	}

	var raw json.RawMessage
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("marshal %s args: %w", op, err)
		}
		raw = data
	}

	id := c.seq.Add(1)
	ch := make(chan callResult, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(frame{ID: id, Op: op, Args: raw}); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, &game.ActionError{Op: op, Reason: err.Error()}
	}

	timer := time.NewTimer(callTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	case <-timer.C:
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, &game.ActionError{Op: op, Reason: "timed out waiting for agent"}
	case res := <-ch:
		if res.err != nil {
			return nil, &game.ActionError{Op: op, Reason: res.err.Error()}
		}
		return res.data, nil
	}
}

func (c *client) write(f frame) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(f)
}

// readLoop pumps frames until the socket dies. A dead socket is a terminal
// session event; reconnect policy belongs to the lifecycle manager, not here.
func (c *client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(closeReason(err))
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			remoteLog.Warn("agent_frame_invalid",
				slog.String("identity", c.identity),
				slog.String("error", err.Error()))
			continue
		}

		if f.ID != 0 {
			c.resolve(f)
			continue
		}
		if f.Event != "" {
			c.dispatchEvent(f)
		}
	}
}

func (c *client) resolve(f frame) {
	c.mu.Lock()
	ch, ok := c.pending[f.ID]
	if ok {
		delete(c.pending, f.ID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	if f.OK != nil && !*f.OK {
		reason := f.Error
		if reason == "" {
			reason = "agent reported failure"
		}
		ch <- callResult{err: fmt.Errorf("%s", reason)}
		return
	}
	ch <- callResult{data: f.Data}
}

func (c *client) dispatchEvent(f frame) {
	switch f.Event {
	case "login":
		if c.cb.OnLogin != nil {
			c.cb.OnLogin()
		}
	case "spawn":
		if c.cb.OnSpawn != nil {
			c.cb.OnSpawn()
		}
	case "stat":
		var payload struct {
			Health float64 `json:"health"`
			Food   float64 `json:"food"`
		}
		if err := json.Unmarshal(f.Data, &payload); err == nil && c.cb.OnStat != nil {
			c.cb.OnStat(payload.Health, payload.Food)
		}
	case "message":
		var payload struct {
			Raw      string `json:"raw"`
			Position string `json:"position"`
		}
		if err := json.Unmarshal(f.Data, &payload); err == nil && c.cb.OnMessage != nil {
			c.cb.OnMessage(payload.Raw, game.MessagePosition(payload.Position))
		}
	case "chest_open":
		if c.cb.OnChestOpen != nil {
			c.cb.OnChestOpen()
		}
	case "chest_close":
		if c.cb.OnChestClose != nil {
			c.cb.OnChestClose()
		}
	case "goal_reached":
		if c.cb.OnGoalReached != nil {
			c.cb.OnGoalReached()
		}
	case "end":
		var payload struct {
			Reason string `json:"reason"`
		}
		_ = json.Unmarshal(f.Data, &payload)
		c.shutdown(payload.Reason)
	default:
		remoteLog.Debug("agent_event_unknown",
			slog.String("identity", c.identity),
			slog.String("event", f.Event))
	}
}

// shutdown closes the socket, fails pending calls and fires the terminal
// callback exactly once.
func (c *client) shutdown(reason string) {
	c.terminalOnce.Do(func() {
		c.closed.Store(true)

		c.wmu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
			time.Now().Add(500*time.Millisecond))
		_ = c.conn.Close()
		c.wmu.Unlock()

		c.failPending(fmt.Errorf("connection lost"))

		if c.cb.OnTerminal != nil {
			c.cb.OnTerminal(reason)
		}
	})
}

func (c *client) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		ch <- callResult{err: err}
		delete(c.pending, id)
	}
}

func closeReason(err error) string {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return "agent closed connection"
	}
	return err.Error()
}
