// Package bot owns the per-identity connection lifecycle: session creation,
// event routing to the UI sink, terminal-event convergence, the
// auto-reconnect policy, and the anti-idle timers.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/baysumehmet/botdeck/internal/chat"
	"github.com/baysumehmet/botdeck/internal/game"
	"github.com/baysumehmet/botdeck/internal/logging"
)

var botLog = logging.ForComponent(logging.CompBot)

// ErrAlreadyActive is returned when a connect is requested for an identity
// that already has a live or connecting session.
var ErrAlreadyActive = errors.New("bot already active")

const (
	// DefaultReconnectBackoff is the fixed delay before an automatic
	// reconnect attempt.
	DefaultReconnectBackoff = 5 * time.Second

	// DefaultPort is used when connect options omit the server port.
	DefaultPort = 25565

	defaultCommandDelay = 5 * time.Second

	// Outgoing chat is throttled per identity so a runaway script can't
	// get the account muted for spam.
	chatRateLimit = rate.Limit(2)
	chatRateBurst = 4
)

// Options tunes the lifecycle manager.
type Options struct {
	// ReconnectBackoff overrides the fixed reconnect delay.
	ReconnectBackoff time.Duration
}

// Manager drives the connection state machine for every bot identity.
// All registry mutations for one identity go through the manager; everyone
// else only reads.
type Manager struct {
	registry *Registry
	factory  game.Factory
	sink     Sink
	backoff  time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	afk afkTimers
}

// NewManager wires a lifecycle manager to a session factory and a UI sink.
func NewManager(registry *Registry, factory game.Factory, sink Sink, opts Options) *Manager {
	if sink == nil {
		sink = SinkFunc(func(Event) {})
	}
	backoff := opts.ReconnectBackoff
	if backoff <= 0 {
		backoff = DefaultReconnectBackoff
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		registry: registry,
		factory:  factory,
		sink:     sink,
		backoff:  backoff,
		ctx:      ctx,
		cancel:   cancel,
		limiters: map[string]*rate.Limiter{},
		afk:      newAfkTimers(),
	}
}

// Registry exposes the session registry for read-only consumers (the script
// runner, the UI).
func (m *Manager) Registry() *Registry { return m.registry }

// Connect establishes a session for identity using opts. It returns
// ErrAlreadyActive when a handle already exists — never a duplicate session.
// A creation failure is surfaced as an error event and not retried.
func (m *Manager) Connect(identity string, opts game.ConnectOptions) error {
	opts.Username = identity
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}

	// Reserve the registry slot before touching the factory so two racing
	// connects can't both create sessions.
	handle := newHandle(identity, opts)
	if !m.registry.putIfAbsent(handle) {
		botLog.Debug("connect_ignored_already_active", slog.String("identity", identity))
		return ErrAlreadyActive
	}

	classifier := chat.New(identity)
	cb := game.Callbacks{
		OnLogin: func() {
			m.sink.Publish(Event{Identity: identity, Type: EventLogin, Message: "logged in to server"})
		},
		OnSpawn: func() {
			m.sink.Publish(Event{Identity: identity, Type: EventSpawn, Message: "spawned into world"})
			m.replayLoginCommands(handle)
		},
		OnStat: func(health, food float64) {
			m.sink.Publish(Event{Identity: identity, Type: EventHealth,
				Data: map[string]any{"health": health, "food": food}})
		},
		OnMessage: func(raw string, position game.MessagePosition) {
			msg, ok := classifier.Classify(raw, position)
			if !ok {
				return
			}
			m.sink.Publish(Event{Identity: identity, Type: EventChat,
				Data: map[string]any{"sender": msg.Sender, "message": msg.Message}})
		},
		OnChestOpen: func() {
			m.sink.Publish(Event{Identity: identity, Type: EventChestOpen, Message: "container opened"})
		},
		OnChestClose: func() {
			m.sink.Publish(Event{Identity: identity, Type: EventChestClose, Message: "container closed"})
		},
		OnGoalReached: func() {
			m.sink.Publish(Event{Identity: identity, Type: EventGoalReached, Message: "goal reached"})
		},
		OnTerminal: func(reason string) {
			m.handleTerminal(handle, reason)
		},
	}

	sess, err := m.factory(m.ctx, opts, cb)
	if err != nil {
		m.registry.removeIf(handle)
		botLog.Warn("session_creation_failed",
			slog.String("identity", identity),
			slog.String("error", err.Error()))
		m.sink.Publish(Event{Identity: identity, Type: EventError,
			Message: fmt.Sprintf("could not create session: %v", err)})
		return fmt.Errorf("%w: %v", game.ErrSessionCreation, err)
	}

	handle.setSession(sess)
	botLog.Info("session_created",
		slog.String("identity", identity),
		slog.String("host", opts.Host),
		slog.Bool("auto_reconnect", opts.AutoReconnect))
	return nil
}

// Disconnect tears down the identity's session. With manual=true the
// manual-stop flag is set before the termination request goes out, so the
// terminal handler — which may run synchronously from Quit — sees it and
// suppresses auto-reconnect. A missing session is a silent no-op.
func (m *Manager) Disconnect(identity string, manual bool) {
	handle, ok := m.registry.Get(identity)
	if !ok {
		return
	}
	if manual {
		handle.manualStop.Store(true)
	}
	botLog.Info("disconnect_requested",
		slog.String("identity", identity),
		slog.Bool("manual", manual))
	if sess := handle.Session(); sess != nil {
		sess.Quit()
	}
}

// handleTerminal is the single convergence point for error, end-of-stream and
// kick events. Idempotent per session: duplicates are dropped.
func (m *Manager) handleTerminal(handle *Handle, reason string) {
	if !handle.beginTerminal() {
		botLog.Debug("duplicate_terminal_dropped",
			slog.String("identity", handle.Identity),
			slog.String("reason", reason))
		return
	}

	identity := handle.Identity
	m.afk.stop(identity)
	m.registry.removeIf(handle)

	if reason == "" {
		reason = "connection closed"
	}
	m.sink.Publish(Event{Identity: identity, Type: EventEnd,
		Message: fmt.Sprintf("connection ended: %s", reason)})
	botLog.Info("session_ended",
		slog.String("identity", identity),
		slog.String("reason", reason))

	if handle.consumeManualStop() {
		// Operator asked for this; stay down.
		return
	}
	if !handle.Options.AutoReconnect {
		return
	}

	m.sink.Publish(Event{Identity: identity, Type: EventReconnecting,
		Message: fmt.Sprintf("reconnecting in %s", m.backoff)})
	m.scheduleReconnect(identity, handle.Options)
}

func (m *Manager) scheduleReconnect(identity string, opts game.ConnectOptions) {
	timer := time.NewTimer(m.backoff)
	go func() {
		defer timer.Stop()
		select {
		case <-m.ctx.Done():
			return
		case <-timer.C:
		}
		// A fresh manual connect may have landed during the backoff
		// window; Connect's slot reservation makes this a no-op then.
		if err := m.Connect(identity, opts); err != nil && !errors.Is(err, ErrAlreadyActive) {
			botLog.Warn("reconnect_failed",
				slog.String("identity", identity),
				slog.String("error", err.Error()))
		}
	}()
}

// replayLoginCommands sends the configured post-login chat commands with a
// fixed inter-command delay. Each send re-checks liveness first: a bot that
// dropped mid-sequence stops the replay instead of chatting into the void.
func (m *Manager) replayLoginCommands(handle *Handle) {
	raw := strings.TrimSpace(handle.Options.AutoLoginCommands)
	if raw == "" {
		return
	}
	var commands []string
	for _, line := range strings.Split(raw, "\n") {
		if cmd := strings.TrimSpace(line); cmd != "" {
			commands = append(commands, cmd)
		}
	}
	if len(commands) == 0 {
		return
	}

	delay := defaultCommandDelay
	if handle.Options.CommandDelay > 0 {
		delay = time.Duration(handle.Options.CommandDelay) * time.Second
	}

	go func() {
		for i, cmd := range commands {
			if i > 0 {
				select {
				case <-m.ctx.Done():
					return
				case <-time.After(delay):
				}
			}
			cur, ok := m.registry.Get(handle.Identity)
			if !ok || cur != handle || handle.disconnecting.Load() {
				return
			}
			sess := handle.Session()
			if sess == nil {
				return
			}
			botLog.Debug("auto_login_command",
				slog.String("identity", handle.Identity),
				slog.String("command", cmd))
			if err := sess.Chat(cmd); err != nil {
				botLog.Warn("auto_login_command_failed",
					slog.String("identity", handle.Identity),
					slog.String("error", err.Error()))
			}
		}
	}()
}

// SendChat sends one chat line, throttled per identity. A missing session or
// an exhausted rate budget is reported, not fatal.
func (m *Manager) SendChat(identity, text string) error {
	handle, ok := m.registry.Get(identity)
	if !ok {
		return fmt.Errorf("no active session for %s", identity)
	}
	sess := handle.Session()
	if sess == nil {
		return fmt.Errorf("session for %s is still connecting", identity)
	}
	if !m.chatLimiter(identity).Allow() {
		m.sink.Publish(Event{Identity: identity, Type: EventInfo,
			Message: "chat throttled, message dropped"})
		return fmt.Errorf("chat rate limit exceeded for %s", identity)
	}
	return sess.Chat(text)
}

func (m *Manager) chatLimiter(identity string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	lim, ok := m.limiters[identity]
	if !ok {
		lim = rate.NewLimiter(chatRateLimit, chatRateBurst)
		m.limiters[identity] = lim
	}
	return lim
}

// Inventory snapshots the identity's inventory and publishes it. Failures go
// out as inventory-error events and are returned to the caller.
func (m *Manager) Inventory(identity string) ([]game.Item, error) {
	sess, ok := m.registry.Session(identity)
	if !ok {
		return nil, fmt.Errorf("no active session for %s", identity)
	}
	slots, err := sess.SnapshotInventory()
	if err != nil {
		m.sink.Publish(Event{Identity: identity, Type: EventInventoryError,
			Message: fmt.Sprintf("inventory snapshot failed: %v", err)})
		return nil, err
	}
	m.sink.Publish(Event{Identity: identity, Type: EventInventory,
		Data: map[string]any{"slots": slots}})
	return slots, nil
}

// SetHotbarSlot selects the active hotbar slot and mirrors the change to the
// sink.
func (m *Manager) SetHotbarSlot(identity string, slot int) error {
	sess, ok := m.registry.Session(identity)
	if !ok {
		return fmt.Errorf("no active session for %s", identity)
	}
	if err := sess.SetActiveHotbarSlot(slot); err != nil {
		m.sink.Publish(Event{Identity: identity, Type: EventInventoryError,
			Message: fmt.Sprintf("hotbar select failed: %v", err)})
		return err
	}
	m.sink.Publish(Event{Identity: identity, Type: EventHotbarUpdate,
		Data: map[string]any{"slot": slot}})
	return nil
}

// StartAntiAfk schedules the repeating anti-idle pulse for identity,
// replacing any existing timer. No-op without an active session.
func (m *Manager) StartAntiAfk(identity string, intervalSeconds int) {
	if _, ok := m.registry.Get(identity); !ok {
		return
	}
	if intervalSeconds <= 0 {
		intervalSeconds = 15
	}
	m.afk.start(identity, time.Duration(intervalSeconds)*time.Second, func() {
		m.afkPulse(identity)
	})
	botLog.Info("anti_afk_started",
		slog.String("identity", identity),
		slog.Int("interval_seconds", intervalSeconds))
}

// AntiAfkActive reports whether identity has a live anti-idle timer.
func (m *Manager) AntiAfkActive(identity string) bool {
	return m.afk.active(identity)
}

// StopAntiAfk cancels the identity's anti-idle timer, if any.
func (m *Manager) StopAntiAfk(identity string) {
	if m.afk.stop(identity) {
		botLog.Info("anti_afk_stopped", slog.String("identity", identity))
	}
}

// afkPulse performs one anti-idle jump: control on, short hold, control off.
// Skipped while the bot's world-entity isn't materialized.
func (m *Manager) afkPulse(identity string) {
	sess, ok := m.registry.Session(identity)
	if !ok || !sess.HasEntity() {
		return
	}
	if err := sess.SetControl("jump", true); err != nil {
		return
	}
	time.AfterFunc(afkPulseHold, func() {
		if sess, ok := m.registry.Session(identity); ok {
			_ = sess.SetControl("jump", false)
		}
	})
}

// Shutdown disconnects every bot and cancels all timers and pending
// reconnects. Used on panel exit.
func (m *Manager) Shutdown() {
	m.cancel()
	m.afk.stopAll()
	for _, identity := range m.registry.Identities() {
		m.Disconnect(identity, true)
	}
}
