// Package game defines the contract between botdeck and the game-protocol
// client that actually speaks to a server. botdeck never implements the wire
// protocol itself; it drives whatever Factory the embedder plugs in.
package game

import (
	"context"
	"errors"
	"fmt"
)

// MessagePosition tags where the server displayed a raw text message.
type MessagePosition string

const (
	PositionChat   MessagePosition = "chat"
	PositionSystem MessagePosition = "system"
	// Anything else (action bar, title, boss bar) is ignored by the classifier.
)

// ProxyDescriptor points the underlying transport at a SOCKS/HTTP tunnel.
// The tunnel itself is the protocol client's problem.
type ProxyDescriptor struct {
	Scheme string `json:"scheme"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
}

// ConnectOptions is everything needed to establish one session. The lifecycle
// manager keeps an owned copy and reuses it verbatim on reconnect.
type ConnectOptions struct {
	Username string           `json:"username"`
	Host     string           `json:"host"`
	Port     int              `json:"port"`
	Auth     string           `json:"auth"`
	Version  string           `json:"version"`
	Proxy    *ProxyDescriptor `json:"proxy,omitempty"`

	// AutoLoginCommands is a newline-delimited chat command list replayed
	// after spawn, one command every CommandDelay seconds.
	AutoLoginCommands string `json:"autoLoginCommands,omitempty"`
	CommandDelay      int    `json:"commandDelay,omitempty"`

	AutoReconnect bool `json:"autoReconnect,omitempty"`
}

// Callbacks receives session events from the protocol client. All callbacks
// for one session are delivered in emission order.
type Callbacks struct {
	OnLogin       func()
	OnSpawn       func()
	OnStat        func(health, food float64)
	OnMessage     func(raw string, position MessagePosition)
	OnChestOpen   func()
	OnChestClose  func()
	OnGoalReached func()
	OnTerminal    func(reason string)
}

// Item is one inventory slot snapshot entry.
type Item struct {
	Slot        int    `json:"slot"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Count       int    `json:"count"`
}

// Session is one live connection to a server, bound to one identity.
// Blocking actions honor ctx cancellation and enforce their own timeouts;
// failures surface as *ActionError.
type Session interface {
	Chat(text string) error
	MoveTo(ctx context.Context, x, y, z float64) error
	BreakBlockAt(ctx context.Context, x, y, z float64) error
	OpenNearestContainer(ctx context.Context) error
	OpenContainerAt(ctx context.Context, x, y, z float64) error
	CloseContainer() error
	DepositAll(ctx context.Context, excludedNames []string) error
	WithdrawAll(ctx context.Context) error
	DepositItem(ctx context.Context, item string) error
	WithdrawItem(ctx context.Context, item string) error
	MoveItem(sourceSlot, destSlot int) error
	TossSlot(slot int) error
	ClearInventory() error
	SetActiveHotbarSlot(slot int) error
	FollowPlayer(ctx context.Context, target string, durationSeconds int) error
	SnapshotInventory() ([]Item, error)

	// HasEntity reports whether the bot's world-entity is materialized
	// (spawned and not dead). Anti-idle pulses are skipped otherwise.
	HasEntity() bool

	// SetControl toggles a movement control ("jump", "forward", ...).
	SetControl(control string, on bool) error

	// Quit requests graceful termination. The terminal callback may fire
	// synchronously from inside Quit.
	Quit()
}

// Factory produces a live session or fails with a creation error.
// Implementations must invoke cb for the session's whole lifetime.
type Factory func(ctx context.Context, opts ConnectOptions, cb Callbacks) (Session, error)

// ErrSessionCreation marks failures to establish a session at all.
// Creation failures are terminal for that connect attempt; no retry.
var ErrSessionCreation = errors.New("session creation failed")

// ActionError is a structured failure from a session action.
type ActionError struct {
	Op     string
	Reason string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Reason)
}
