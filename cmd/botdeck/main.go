package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	dark "github.com/thiagokokada/dark-mode-go"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/baysumehmet/botdeck/internal/bot"
	"github.com/baysumehmet/botdeck/internal/config"
	"github.com/baysumehmet/botdeck/internal/game/remote"
	"github.com/baysumehmet/botdeck/internal/logging"
	"github.com/baysumehmet/botdeck/internal/panel"
	"github.com/baysumehmet/botdeck/internal/script"
	"github.com/baysumehmet/botdeck/internal/storage"
	"github.com/baysumehmet/botdeck/internal/ui"
	"github.com/baysumehmet/botdeck/internal/web"
)

const Version = "0.3.1"

// defaultAgentURL is where the session agent listens unless BOTDECK_AGENT
// overrides it.
const defaultAgentURL = "ws://127.0.0.1:4180"

// uiEventBuffer sizes the manager-to-TUI event channel. The TUI drains fast;
// a full buffer means it is wedged, and dropping beats deadlocking the
// session callbacks.
const uiEventBuffer = 512

func main() {
	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "version", "--version", "-v":
			fmt.Printf("botdeck v%s\n", Version)
			return
		case "help", "--help", "-h":
			printHelp()
			return
		case "account":
			handleAccount(args[1:])
			return
		case "script":
			handleScript(args[1:])
			return
		}
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: botdeck needs an interactive terminal")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	setupColorProfile()
	ui.InitTheme(resolveTheme(cfg.Theme))

	// File logging only in debug mode; discard otherwise so nothing fights
	// the TUI for the terminal.
	logCfg := logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 10,
		Compress:   true,
	}
	if os.Getenv("BOTDECK_DEBUG") != "" && !cfg.Log.Disabled {
		if dir, err := config.Dir(); err == nil {
			logCfg.LogDir = dir
		}
	}
	logging.Init(logCfg)
	defer logging.Shutdown()

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	db, err := storage.Open(dir + "/state.db")
	if err != nil {
		return err
	}
	defer db.Close()
	store := storage.NewStore(db)

	agentURL := os.Getenv("BOTDECK_AGENT")
	if agentURL == "" {
		agentURL = defaultAgentURL
	}

	// Event plumbing: manager -> hub (web subscribers) + TUI channel.
	hub := web.NewHub()
	uiEvents := make(chan bot.Event, uiEventBuffer)
	sink := bot.MultiSink{
		hub,
		bot.SinkFunc(func(ev bot.Event) {
			select {
			case uiEvents <- ev:
			default:
			}
		}),
	}

	registry := bot.NewRegistry()
	manager := bot.NewManager(registry, remote.NewFactory(agentURL), sink, bot.Options{
		ReconnectBackoff: time.Duration(cfg.ReconnectBackoffSeconds) * time.Second,
	})

	var program *tea.Program
	ctrl := panel.New(manager, store, cfg, func(t script.Transition) {
		if program != nil {
			program.Send(ui.ScriptMsg{Transition: t})
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	themeWatcher := newThemeWatcher(ctx, cfg.Theme)
	app := ui.NewApp(ctrl, uiEvents, themeWatcher)
	program = tea.NewProgram(app, tea.WithAltScreen())

	watcher := storage.NewWatcher(db, func() {
		program.Send(ui.ReloadMsg{})
	})
	if err := watcher.Start(ctx); err != nil {
		logging.Logger().Warn("storage_watcher_disabled", slog.String("error", err.Error()))
	}
	defer watcher.Stop()

	g, ctx := errgroup.WithContext(ctx)

	var bridge *web.Server
	if cfg.Web.Enabled {
		bridge = web.NewServer(web.Config{
			ListenAddr: cfg.Web.Listen,
			Token:      os.Getenv("BOTDECK_TOKEN"),
		}, hub, ctrl)
		g.Go(bridge.Start)
	}

	g.Go(func() error {
		_, err := program.Run()
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		program.Quit()
		if bridge != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = bridge.Shutdown(shutdownCtx)
		}
		return nil
	})

	err = g.Wait()
	stop()
	ctrl.Shutdown()
	if themeWatcher != nil {
		themeWatcher.Close()
	}
	return err
}

// newThemeWatcher only watches the OS when the theme follows the system.
func newThemeWatcher(ctx context.Context, theme string) *ui.ThemeWatcher {
	if theme != "system" {
		return nil
	}
	return ui.NewThemeWatcher(ctx)
}

// resolveTheme maps the config value to a concrete palette.
func resolveTheme(theme string) string {
	if theme == "system" {
		if isDark, err := dark.IsDarkMode(); err == nil && !isDark {
			return "light"
		}
		return "dark"
	}
	return theme
}

// setupColorProfile picks the richest color profile the terminal supports.
// BOTDECK_COLOR forces a specific profile.
func setupColorProfile() {
	switch strings.ToLower(os.Getenv("BOTDECK_COLOR")) {
	case "truecolor", "true", "24bit":
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	case "256", "ansi256":
		lipgloss.SetColorProfile(termenv.ANSI256)
		return
	case "16", "ansi", "basic":
		lipgloss.SetColorProfile(termenv.ANSI)
		return
	case "none", "off", "ascii":
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}

	colorTerm := os.Getenv("COLORTERM")
	if colorTerm == "truecolor" || colorTerm == "24bit" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}
	if strings.Contains(os.Getenv("TERM"), "256color") {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}
	lipgloss.SetColorProfile(termenv.ANSI256)
}

func printHelp() {
	fmt.Println(`botdeck - multi-bot control panel

Usage:
  botdeck                          Launch the panel
  botdeck account add <username>   Save an account
  botdeck account list             List saved accounts
  botdeck account rm <username>    Remove an account and its script
  botdeck script export <username> <file>
  botdeck script import <username> <file>
  botdeck version                  Print version

Environment:
  BOTDECK_AGENT   Session agent websocket URL (default ` + defaultAgentURL + `)
  BOTDECK_TOKEN   Bearer token required by the web bridge
  BOTDECK_DEBUG   Write logs to ~/.botdeck/botdeck.log
  BOTDECK_COLOR   Force color profile (truecolor|256|16|none)`)
}
