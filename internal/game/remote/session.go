package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/baysumehmet/botdeck/internal/game"
)

const dialTimeout = 15 * time.Second

// Session drives one bot through the session agent.
type Session struct {
	c *client
}

var _ game.Session = (*Session)(nil)

// NewFactory returns a game.Factory that opens one websocket per session
// against the agent at base (e.g. "ws://127.0.0.1:4180"). The connect
// request carries the full options; the agent answers after it has logged
// in far enough to know whether the account works.
func NewFactory(base string) game.Factory {
	return func(ctx context.Context, opts game.ConnectOptions, cb game.Callbacks) (game.Session, error) {
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("agent url: %w", err)
		}
		u.Path = "/session"

		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		defer cancel()
		conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("dial agent: %w", err)
		}

		c := newClient(conn, opts.Username, cb)
		go c.readLoop()

		if _, err := c.call(ctx, "connect", opts); err != nil {
			c.shutdown("connect rejected")
			return nil, err
		}
		return &Session{c: c}, nil
	}
}

type coords struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (s *Session) Chat(text string) error {
	_, err := s.c.call(context.Background(), "chat", map[string]string{"text": text})
	return err
}

func (s *Session) MoveTo(ctx context.Context, x, y, z float64) error {
	_, err := s.c.call(ctx, "move_to", coords{x, y, z})
	return err
}

func (s *Session) BreakBlockAt(ctx context.Context, x, y, z float64) error {
	_, err := s.c.call(ctx, "break_block", coords{x, y, z})
	return err
}

func (s *Session) OpenNearestContainer(ctx context.Context) error {
	_, err := s.c.call(ctx, "open_nearest_container", nil)
	return err
}

func (s *Session) OpenContainerAt(ctx context.Context, x, y, z float64) error {
	_, err := s.c.call(ctx, "open_container_at", coords{x, y, z})
	return err
}

func (s *Session) CloseContainer() error {
	_, err := s.c.call(context.Background(), "close_container", nil)
	return err
}

func (s *Session) DepositAll(ctx context.Context, excludedNames []string) error {
	_, err := s.c.call(ctx, "deposit_all", map[string]any{"exclude": excludedNames})
	return err
}

func (s *Session) WithdrawAll(ctx context.Context) error {
	_, err := s.c.call(ctx, "withdraw_all", nil)
	return err
}

func (s *Session) DepositItem(ctx context.Context, item string) error {
	_, err := s.c.call(ctx, "deposit_item", map[string]string{"item": item})
	return err
}

func (s *Session) WithdrawItem(ctx context.Context, item string) error {
	_, err := s.c.call(ctx, "withdraw_item", map[string]string{"item": item})
	return err
}

func (s *Session) MoveItem(sourceSlot, destSlot int) error {
	_, err := s.c.call(context.Background(), "move_item",
		map[string]int{"source": sourceSlot, "dest": destSlot})
	return err
}

func (s *Session) TossSlot(slot int) error {
	_, err := s.c.call(context.Background(), "toss_slot", map[string]int{"slot": slot})
	return err
}

func (s *Session) ClearInventory() error {
	_, err := s.c.call(context.Background(), "clear_inventory", nil)
	return err
}

func (s *Session) SetActiveHotbarSlot(slot int) error {
	_, err := s.c.call(context.Background(), "set_hotbar_slot", map[string]int{"slot": slot})
	return err
}

func (s *Session) FollowPlayer(ctx context.Context, target string, durationSeconds int) error {
	_, err := s.c.call(ctx, "follow_player",
		map[string]any{"target": target, "duration": durationSeconds})
	return err
}

func (s *Session) SnapshotInventory() ([]game.Item, error) {
	data, err := s.c.call(context.Background(), "inventory", nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Slots []game.Item `json:"slots"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode inventory: %w", err)
	}
	return payload.Slots, nil
}

func (s *Session) HasEntity() bool {
	data, err := s.c.call(context.Background(), "has_entity", nil)
	if err != nil {
		return false
	}
	var payload struct {
		HasEntity bool `json:"hasEntity"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return false
	}
	return payload.HasEntity
}

func (s *Session) SetControl(control string, on bool) error {
	_, err := s.c.call(context.Background(), "set_control",
		map[string]any{"control": control, "on": on})
	return err
}

// Quit asks the agent to tear the session down. Fire-and-forget: the
// terminal callback fires from the read loop when the agent closes the
// socket, or synchronously here if the request cannot even be written.
func (s *Session) Quit() {
	if err := s.c.write(frame{ID: s.c.seq.Add(1), Op: "quit"}); err != nil {
		s.c.shutdown("quit requested")
	}
}
