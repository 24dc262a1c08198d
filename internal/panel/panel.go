// Package panel glues the lifecycle manager, the store and the script runner
// into the single command surface both the TUI and the websocket bridge
// drive.
package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/baysumehmet/botdeck/internal/bot"
	"github.com/baysumehmet/botdeck/internal/config"
	"github.com/baysumehmet/botdeck/internal/logging"
	"github.com/baysumehmet/botdeck/internal/script"
	"github.com/baysumehmet/botdeck/internal/storage"
)

var panelLog = logging.ForComponent(logging.CompPanel)

// ErrUnknownAccount is returned when a command names an identity with no
// saved account.
var ErrUnknownAccount = errors.New("unknown account")

// Panel implements the command surface shared by the TUI and the bridge.
type Panel struct {
	manager *bot.Manager
	store   *storage.Store
	cfg     *config.Config
	runner  *script.Runner

	mu       sync.Mutex
	progress map[string]*script.Progress
	runs     map[string]*scriptRun
}

// scriptRun identifies one script execution. Cleanup and stop both compare
// against the stored pointer, so a finished run can never tear down the run
// that replaced it.
type scriptRun struct {
	cancel context.CancelFunc
}

// New wires a panel. report receives every script transition (the TUI feeds
// it into its progress view).
func New(manager *bot.Manager, store *storage.Store, cfg *config.Config, report script.Reporter) *Panel {
	p := &Panel{
		manager:  manager,
		store:    store,
		cfg:      cfg,
		progress: map[string]*script.Progress{},
		runs:     map[string]*scriptRun{},
	}
	p.runner = script.NewRunner(manager.Registry(), func(t script.Transition) {
		p.ScriptProgress(t.Identity).Apply(t)
		if report != nil {
			report(t)
		}
	})
	return p
}

func (p *Panel) account(username string) (*storage.Account, error) {
	accounts, err := p.store.Accounts()
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.Username == username {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, username)
}

// Connect starts a session for the saved account, merging in the default
// server target.
func (p *Panel) Connect(ctx context.Context, username string) error {
	account, err := p.account(username)
	if err != nil {
		return err
	}
	opts := account.ConnectOptions(p.cfg.Server.Host, p.cfg.Server.Port, p.cfg.Server.Version)
	if opts.CommandDelay == 0 {
		opts.CommandDelay = p.cfg.CommandDelaySeconds
	}
	return p.manager.Connect(username, opts)
}

// ConnectAll connects every saved account. Already-active identities are
// skipped silently.
func (p *Panel) ConnectAll(ctx context.Context) {
	accounts, err := p.store.Accounts()
	if err != nil {
		panelLog.Warn("connect_all_load_failed", slog.String("error", err.Error()))
		return
	}
	for _, a := range accounts {
		if err := p.Connect(ctx, a.Username); err != nil && !errors.Is(err, bot.ErrAlreadyActive) {
			panelLog.Warn("connect_all_failed",
				slog.String("identity", a.Username),
				slog.String("error", err.Error()))
		}
	}
}

// Disconnect forwards to the manager.
func (p *Panel) Disconnect(username string, manual bool) {
	p.manager.Disconnect(username, manual)
}

// DisconnectAll manually disconnects every live identity.
func (p *Panel) DisconnectAll() {
	for _, identity := range p.manager.Registry().Identities() {
		p.manager.Disconnect(identity, true)
	}
}

// SendChat forwards one chat line.
func (p *Panel) SendChat(username, message string) error {
	return p.manager.SendChat(username, message)
}

// Identities lists the currently live identities.
func (p *Panel) Identities() []string {
	return p.manager.Registry().Identities()
}

// Accounts lists the saved account usernames in stored order.
func (p *Panel) Accounts() ([]string, error) {
	accounts, err := p.store.Accounts()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(accounts))
	for _, a := range accounts {
		names = append(names, a.Username)
	}
	return names, nil
}

// ToggleAntiAfk flips the identity's anti-idle timer and returns the new
// state.
func (p *Panel) ToggleAntiAfk(username string) bool {
	if p.manager.AntiAfkActive(username) {
		p.manager.StopAntiAfk(username)
		return false
	}
	p.manager.StartAntiAfk(username, 0)
	return p.manager.AntiAfkActive(username)
}

// ScriptProgress returns the identity's progress tracker, creating it on
// first use.
func (p *Panel) ScriptProgress(username string) *script.Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	prog, ok := p.progress[username]
	if !ok {
		prog = script.NewProgress()
		p.progress[username] = prog
	}
	return prog
}

// ScriptTree loads the identity's saved script.
func (p *Panel) ScriptTree(username string) (*script.Tree, error) {
	return p.store.Script(username)
}

// SaveScriptTree persists the identity's script.
func (p *Panel) SaveScriptTree(username string, tree *script.Tree) error {
	return p.store.SaveScript(username, tree)
}

// RunScript starts the identity's saved script in the background. Failures
// during the run surface as script transitions; only setup problems are
// returned here. A second run for the same identity cancels the first.
func (p *Panel) RunScript(ctx context.Context, username string) error {
	tree, err := p.store.Script(username)
	if err != nil {
		return err
	}
	if tree.Len() == 0 {
		return fmt.Errorf("no script saved for %s", username)
	}
	if _, ok := p.manager.Registry().Session(username); !ok {
		return fmt.Errorf("no active session for %s", username)
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &scriptRun{cancel: cancel}
	p.mu.Lock()
	if old, ok := p.runs[username]; ok {
		old.cancel()
	}
	p.runs[username] = run
	p.mu.Unlock()

	p.ScriptProgress(username).Reset()

	go func() {
		defer func() {
			cancel()
			p.mu.Lock()
			if p.runs[username] == run {
				delete(p.runs, username)
			}
			p.mu.Unlock()
		}()
		if err := p.runner.Run(runCtx, tree, username); err != nil {
			panelLog.Warn("script_run_failed",
				slog.String("identity", username),
				slog.String("error", err.Error()))
		}
		p.ScriptProgress(username).Finish()
	}()
	return nil
}

// RunScriptAll starts each connected identity's saved script. Runs are
// independent; one failing does not stop the others.
func (p *Panel) RunScriptAll(ctx context.Context) {
	for _, identity := range p.Identities() {
		if err := p.RunScript(ctx, identity); err != nil {
			panelLog.Debug("script_run_skipped",
				slog.String("identity", identity),
				slog.String("reason", err.Error()))
		}
	}
}

// StopScript cancels the identity's running script, if any.
func (p *Panel) StopScript(username string) {
	p.mu.Lock()
	run, ok := p.runs[username]
	if ok {
		delete(p.runs, username)
	}
	p.mu.Unlock()
	if ok {
		run.cancel()
		p.ScriptProgress(username).Finish()
	}
}

// ExportScript writes the identity's saved script to a JSON file.
func (p *Panel) ExportScript(username, path string) error {
	tree, err := p.store.Script(username)
	if err != nil {
		return err
	}
	data, err := script.Marshal(tree)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ImportScript replaces the identity's saved script with the file's
// contents. The file must validate as a script tree.
func (p *Panel) ImportScript(username, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tree, err := script.Unmarshal(data)
	if err != nil {
		return err
	}
	return p.store.SaveScript(username, tree)
}

// Shutdown stops scripts and disconnects everything.
func (p *Panel) Shutdown() {
	p.mu.Lock()
	for username, run := range p.runs {
		run.cancel()
		delete(p.runs, username)
	}
	p.mu.Unlock()
	p.manager.Shutdown()
}
