package script

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/baysumehmet/botdeck/internal/game"
	"github.com/baysumehmet/botdeck/internal/logging"
)

var scriptLog = logging.ForComponent(logging.CompScript)

// Status is a per-node execution state reported while a run progresses.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Transition is one per-node status change within a run.
type Transition struct {
	Identity string
	NodeID   string
	Kind     Kind
	Status   Status
	Err      string
}

// Reporter receives every status transition of a run, in order.
type Reporter func(Transition)

// SessionProvider resolves a bot identity to its live session.
// *bot.Registry satisfies this.
type SessionProvider interface {
	Session(identity string) (game.Session, bool)
}

// RunError is the run-level failure with the triggering node attached.
type RunError struct {
	NodeID string
	Kind   Kind
	Err    error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("script aborted at %s node %s: %v", e.Kind, e.NodeID, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Runner executes script trees against live bots. Execution is strictly
// sequential: each leaf awaits its session action before the next node is
// considered, and one failing node aborts the remainder of the run.
type Runner struct {
	sessions SessionProvider
	report   Reporter

	// sleep is swappable so wait-node tests don't burn wall-clock time.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner builds a runner. report may be nil when nobody is watching.
func NewRunner(sessions SessionProvider, report Reporter) *Runner {
	if report == nil {
		report = func(Transition) {}
	}
	return &Runner{
		sessions: sessions,
		report:   report,
		sleep:    sleepCtx,
	}
}

// Run walks the tree depth-first against one identity. It returns a *RunError
// naming the failing node, or nil when every node completed.
func (r *Runner) Run(ctx context.Context, t *Tree, identity string) error {
	sess, ok := r.sessions.Session(identity)
	if !ok {
		return fmt.Errorf("no active session for %s", identity)
	}

	scriptLog.Info("script_run_started",
		slog.String("identity", identity),
		slog.Int("nodes", t.Len()))

	for _, n := range t.Export() {
		if err := r.execNode(ctx, sess, identity, n); err != nil {
			scriptLog.Warn("script_run_aborted",
				slog.String("identity", identity),
				slog.String("error", err.Error()))
			return err
		}
	}

	scriptLog.Info("script_run_completed", slog.String("identity", identity))
	return nil
}

// RunBatch executes the same script independently per identity, in order.
// One identity's failure never blocks the next; failures come back per key.
func (r *Runner) RunBatch(ctx context.Context, t *Tree, identities []string) map[string]error {
	failures := make(map[string]error)
	for _, identity := range identities {
		if err := r.Run(ctx, t, identity); err != nil {
			failures[identity] = err
		}
	}
	return failures
}

func (r *Runner) execNode(ctx context.Context, sess game.Session, identity string, n *Node) error {
	r.report(Transition{Identity: identity, NodeID: n.ID, Kind: n.Type, Status: StatusRunning})

	if n.Type == KindRepeat {
		return r.execRepeat(ctx, sess, identity, n)
	}

	if err := r.execLeaf(ctx, sess, identity, n); err != nil {
		r.report(Transition{Identity: identity, NodeID: n.ID, Kind: n.Type, Status: StatusFailed, Err: err.Error()})
		return &RunError{NodeID: n.ID, Kind: n.Type, Err: err}
	}

	r.report(Transition{Identity: identity, NodeID: n.ID, Kind: n.Type, Status: StatusCompleted})
	return nil
}

func (r *Runner) execRepeat(ctx context.Context, sess game.Session, identity string, n *Node) error {
	times, err := intParam(n.Params, "times")
	if err != nil {
		r.report(Transition{Identity: identity, NodeID: n.ID, Kind: n.Type, Status: StatusFailed, Err: err.Error()})
		return &RunError{NodeID: n.ID, Kind: n.Type, Err: err}
	}

	// A descendant failure aborts remaining repetitions immediately; the
	// failing leaf is the error node, not the repeat itself.
	for i := 0; i < times; i++ {
		for _, child := range n.Children {
			if err := r.execNode(ctx, sess, identity, child); err != nil {
				return err
			}
		}
	}

	r.report(Transition{Identity: identity, NodeID: n.ID, Kind: n.Type, Status: StatusCompleted})
	return nil
}

func (r *Runner) execLeaf(ctx context.Context, sess game.Session, identity string, n *Node) error {
	switch n.Type {
	case KindMove:
		x, y, z, err := coordParams(n.Params)
		if err != nil {
			return err
		}
		return sess.MoveTo(ctx, x, y, z)

	case KindWait:
		ms, err := intParam(n.Params, "milliseconds")
		if err != nil {
			return err
		}
		return r.sleep(ctx, time.Duration(ms)*time.Millisecond)

	case KindSay:
		text, err := stringParam(n.Params, "message")
		if err != nil {
			return err
		}
		// Fire-and-forget: chat has no acknowledgment, so delivery
		// failures don't abort the run.
		if err := sess.Chat(text); err != nil {
			scriptLog.Warn("say_send_failed",
				slog.String("identity", identity),
				slog.String("error", err.Error()))
		}
		return nil

	case KindBreakBlock:
		x, y, z, err := coordParams(n.Params)
		if err != nil {
			return err
		}
		return sess.BreakBlockAt(ctx, x, y, z)

	case KindOpenNearestChest:
		return sess.OpenNearestContainer(ctx)

	case KindOpenChestAt:
		x, y, z, err := coordParams(n.Params)
		if err != nil {
			return err
		}
		return sess.OpenContainerAt(ctx, x, y, z)

	case KindDepositToChest:
		return sess.DepositAll(ctx, excludeParam(n.Params))

	case KindFollowPlayer:
		target, err := stringParam(n.Params, "player")
		if err != nil {
			return err
		}
		duration, err := intParam(n.Params, "duration")
		if err != nil {
			return err
		}
		return sess.FollowPlayer(ctx, target, duration)

	default:
		return fmt.Errorf("unknown command kind %q", n.Type)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Param helpers validate before any external call is attempted, so malformed
// input fails the node with an explanatory message instead of reaching the
// session. Coordinates arrive as strings from the editor's text inputs and as
// float64 from JSON imports; both are accepted.

func coordParams(p Params) (x, y, z float64, err error) {
	if x, err = floatParam(p, "x"); err != nil {
		return
	}
	if y, err = floatParam(p, "y"); err != nil {
		return
	}
	z, err = floatParam(p, "z")
	return
}

func floatParam(p Params, key string) (float64, error) {
	v, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("missing parameter %q", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("parameter %q: %q is not a number", key, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("parameter %q: unsupported type %T", key, v)
	}
}

func intParam(p Params, key string) (int, error) {
	f, err := floatParam(p, key)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, fmt.Errorf("parameter %q must not be negative", key)
	}
	return int(f), nil
}

func stringParam(p Params, key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", fmt.Errorf("missing parameter %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q: expected string, got %T", key, v)
	}
	return s, nil
}

func excludeParam(p Params) []string {
	v, ok := p["exclude"]
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if strings.TrimSpace(list) == "" {
			return nil
		}
		parts := strings.Split(list, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	default:
		return nil
	}
}
