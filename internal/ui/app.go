// Package ui implements the botdeck terminal panel: a bot sidebar, per-bot
// chat scrollback with a send line, and a script progress pane.
package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/baysumehmet/botdeck/internal/bot"
	"github.com/baysumehmet/botdeck/internal/logging"
	"github.com/baysumehmet/botdeck/internal/script"
)

var uiLog = logging.ForComponent(logging.CompUI)

// Minimum terminal size requirements
const (
	minTerminalWidth  = 40
	minTerminalHeight = 10
)

// sidebarRatio is the fraction of the width given to the bot list.
const sidebarRatio = 0.30

// Controller is the command surface the panel drives. The application wires
// it to the lifecycle manager, the store and the script runner.
type Controller interface {
	Connect(ctx context.Context, username string) error
	ConnectAll(ctx context.Context)
	Disconnect(username string, manual bool)
	DisconnectAll()
	SendChat(username, message string) error
	RunScript(ctx context.Context, username string) error
	StopScript(username string)
	ToggleAntiAfk(username string) bool
	Identities() []string
	Accounts() ([]string, error)
	ScriptProgress(username string) *script.Progress
	ScriptTree(username string) (*script.Tree, error)
}

// Messages delivered from outside the bubbletea loop via Program.Send.
type (
	// BotEventMsg wraps one manager event.
	BotEventMsg struct{ Event bot.Event }

	// ScriptMsg wraps one interpreter transition.
	ScriptMsg struct{ Transition script.Transition }

	// ReloadMsg asks the panel to reload accounts after an external change.
	ReloadMsg struct{}

	// themeChangedMsg carries an OS dark mode flip.
	themeChangedMsg struct{ dark bool }

	errMsg struct{ err error }
)

// botState is the panel-side view of one identity.
type botState struct {
	online       bool
	reconnecting bool
	antiAfk      bool
	health       float64
	food         float64
}

// App is the main panel model.
type App struct {
	width  int
	height int

	controller Controller
	events     <-chan bot.Event
	theme      *ThemeWatcher

	accounts []string
	states   map[string]*botState
	chatlog  *ChatLog

	cursor int

	chatInput   textinput.Model
	filterInput textinput.Model
	filtering   bool

	err     error
	errTime time.Time

	quitting bool
}

// NewApp builds the panel model. events carries manager events; the caller
// owns the channel and closes it on shutdown.
func NewApp(controller Controller, events <-chan bot.Event, theme *ThemeWatcher) *App {
	chat := textinput.New()
	chat.Placeholder = "Type a chat message..."
	chat.CharLimit = 256

	filter := textinput.New()
	filter.Placeholder = "Filter bots..."
	filter.CharLimit = 64

	app := &App{
		controller:  controller,
		events:      events,
		theme:       theme,
		states:      map[string]*botState{},
		chatlog:     NewChatLog(),
		chatInput:   chat,
		filterInput: filter,
	}
	app.reloadAccounts()
	return app
}

func (a *App) reloadAccounts() {
	accounts, err := a.controller.Accounts()
	if err != nil {
		a.setErr(err)
		return
	}
	a.accounts = accounts
	if a.cursor >= len(a.visibleItems()) {
		a.cursor = 0
	}
}

func (a *App) setErr(err error) {
	a.err = err
	a.errTime = time.Now()
	if err != nil {
		uiLog.Warn("panel_error", "error", err.Error())
	}
}

// Init starts the event pump.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.waitForEvent()}
	if a.theme != nil {
		cmds = append(cmds, a.waitForTheme())
	}
	return tea.Batch(cmds...)
}

func (a *App) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-a.events
		if !ok {
			return nil
		}
		return BotEventMsg{Event: ev}
	}
}

func (a *App) waitForTheme() tea.Cmd {
	return func() tea.Msg {
		dark, ok := <-a.theme.ChangeChannel()
		if !ok {
			return nil
		}
		return themeChangedMsg{dark: dark}
	}
}

// Update handles one message.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case BotEventMsg:
		a.applyEvent(msg.Event)
		return a, a.waitForEvent()

	case ScriptMsg:
		a.applyScript(msg.Transition)
		return a, nil

	case ReloadMsg:
		a.reloadAccounts()
		return a, nil

	case themeChangedMsg:
		if msg.dark {
			InitTheme("dark")
		} else {
			InitTheme("light")
		}
		return a, a.waitForTheme()

	case errMsg:
		a.setErr(msg.err)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		a.quitting = true
		return a, tea.Quit
	}

	if a.filtering {
		switch msg.String() {
		case "esc":
			a.filtering = false
			a.filterInput.SetValue("")
			a.filterInput.Blur()
		case "enter":
			a.filtering = false
			a.filterInput.Blur()
		default:
			var cmd tea.Cmd
			a.filterInput, cmd = a.filterInput.Update(msg)
			a.cursor = 0
			return a, cmd
		}
		return a, nil
	}

	if a.chatInput.Focused() {
		switch msg.String() {
		case "esc":
			a.chatInput.Blur()
		case "enter":
			text := strings.TrimSpace(a.chatInput.Value())
			a.chatInput.SetValue("")
			if text != "" {
				if identity, ok := a.selected(); ok {
					if err := a.controller.SendChat(identity, text); err != nil {
						a.setErr(err)
					} else {
						a.chatlog.AddSelf(identity, text)
					}
				}
			}
		default:
			var cmd tea.Cmd
			a.chatInput, cmd = a.chatInput.Update(msg)
			return a, cmd
		}
		return a, nil
	}

	switch msg.String() {
	case "q":
		a.quitting = true
		return a, tea.Quit
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < len(a.visibleItems())-1 {
			a.cursor++
		}
	case "/":
		a.filtering = true
		a.filterInput.Focus()
	case "enter", "t":
		a.chatInput.Focus()
		return a, textinput.Blink
	case "c":
		if identity, ok := a.selected(); ok {
			return a, a.connectCmd(identity)
		}
	case "d":
		if identity, ok := a.selected(); ok {
			a.controller.Disconnect(identity, true)
		}
	case "C":
		return a, func() tea.Msg {
			a.controller.ConnectAll(context.Background())
			return nil
		}
	case "D":
		a.controller.DisconnectAll()
	case "r":
		if identity, ok := a.selected(); ok {
			return a, a.runScriptCmd(identity)
		}
	case "x":
		if identity, ok := a.selected(); ok {
			a.controller.StopScript(identity)
		}
	case "a":
		if identity, ok := a.selected(); ok {
			on := a.controller.ToggleAntiAfk(identity)
			a.state(identity).antiAfk = on
		}
	}
	return a, nil
}

func (a *App) connectCmd(identity string) tea.Cmd {
	return func() tea.Msg {
		if err := a.controller.Connect(context.Background(), identity); err != nil {
			return errMsg{err: err}
		}
		return nil
	}
}

func (a *App) runScriptCmd(identity string) tea.Cmd {
	return func() tea.Msg {
		if err := a.controller.RunScript(context.Background(), identity); err != nil {
			return errMsg{err: err}
		}
		return nil
	}
}

func (a *App) state(identity string) *botState {
	st, ok := a.states[identity]
	if !ok {
		st = &botState{}
		a.states[identity] = st
	}
	return st
}

// applyEvent folds one manager event into the panel state.
func (a *App) applyEvent(ev bot.Event) {
	st := a.state(ev.Identity)
	switch ev.Type {
	case bot.EventLogin:
		st.online = true
		st.reconnecting = false
		a.chatlog.AddSystem(ev.Identity, "connected")
	case bot.EventSpawn:
		a.chatlog.AddSystem(ev.Identity, "spawned")
	case bot.EventEnd:
		st.online = false
		st.health = 0
		st.antiAfk = false
		a.chatlog.AddSystem(ev.Identity, ev.Message)
	case bot.EventReconnecting:
		st.reconnecting = true
		a.chatlog.AddSystem(ev.Identity, ev.Message)
	case bot.EventHealth:
		if h, ok := ev.Data["health"].(float64); ok {
			st.health = h
		}
		if f, ok := ev.Data["food"].(float64); ok {
			st.food = f
		}
	case bot.EventChat:
		sender, _ := ev.Data["sender"].(string)
		text, _ := ev.Data["message"].(string)
		a.chatlog.AddChat(ev.Identity, sender, text)
	case bot.EventError, bot.EventInventoryError:
		a.chatlog.AddSystem(ev.Identity, ev.Message)
	case bot.EventInfo:
		a.chatlog.AddSystem(ev.Identity, ev.Message)
	}
}

// applyScript drives the view only. The panel's reporter already folded the
// transition into the identity's Progress before forwarding it here.
func (a *App) applyScript(t script.Transition) {
	if t.Status == script.StatusFailed && t.Err != "" {
		a.chatlog.AddSystem(t.Identity, fmt.Sprintf("script failed at %s: %s", t.Kind, t.Err))
	}
}

// visibleItems returns the sidebar rows after filtering, accounts first in
// stored order, then live identities without a saved account.
func (a *App) visibleItems() []BotItem {
	seen := map[string]bool{}
	var items []BotItem
	for _, username := range a.accounts {
		seen[username] = true
		items = append(items, a.botItem(username))
	}
	var extras []string
	for _, identity := range a.controller.Identities() {
		if !seen[identity] {
			extras = append(extras, identity)
		}
	}
	sort.Strings(extras)
	for _, identity := range extras {
		items = append(items, a.botItem(identity))
	}
	return filterBots(items, a.filterInput.Value())
}

func (a *App) botItem(username string) BotItem {
	st := a.state(username)
	return BotItem{
		Username:     username,
		Online:       st.online,
		Reconnecting: st.reconnecting,
		AntiAfk:      st.antiAfk,
		Health:       st.health,
		Food:         st.food,
	}
}

func (a *App) selected() (string, bool) {
	items := a.visibleItems()
	if len(items) == 0 || a.cursor >= len(items) {
		return "", false
	}
	return items[a.cursor].Username, true
}

// View renders the panel.
func (a *App) View() string {
	if a.quitting {
		return ""
	}
	if a.width < minTerminalWidth || a.height < minTerminalHeight {
		return DimStyle.Render(fmt.Sprintf("Terminal too small (need %dx%d)", minTerminalWidth, minTerminalHeight))
	}

	sidebarWidth := int(float64(a.width) * sidebarRatio)
	if sidebarWidth < 18 {
		sidebarWidth = 18
	}
	mainWidth := a.width - sidebarWidth - 4
	contentHeight := a.height - 4

	sidebar := a.renderSidebar(sidebarWidth, contentHeight)
	main := a.renderMain(mainWidth, contentHeight)

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		PanelStyle.Width(sidebarWidth).Height(contentHeight).Render(sidebar),
		PanelStyle.Width(mainWidth).Height(contentHeight).Render(main),
	)

	return body + "\n" + a.renderStatusBar()
}

func (a *App) renderSidebar(width, height int) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Bots"))
	b.WriteString("\n")
	if a.filtering || a.filterInput.Value() != "" {
		b.WriteString(a.filterInput.View())
		b.WriteString("\n")
	}

	items := a.visibleItems()
	if len(items) == 0 {
		b.WriteString(DimStyle.Render("no accounts"))
		return b.String()
	}
	for i, item := range items {
		if i >= height-2 {
			break
		}
		b.WriteString(renderBotRow(item, i == a.cursor, width-2))
		b.WriteString("\n")
	}
	return b.String()
}

func (a *App) renderMain(width, height int) string {
	identity, ok := a.selected()
	if !ok {
		return DimStyle.Render("select a bot")
	}

	header := TitleStyle.Render(identity)
	scriptLine := a.renderScriptLine(identity)

	chatHeight := height - 4
	if scriptLine != "" {
		chatHeight--
	}
	chat := a.chatlog.Render(identity, width-2, chatHeight)

	parts := []string{header, chat}
	if scriptLine != "" {
		parts = append(parts, scriptLine)
	}
	parts = append(parts, a.chatInput.View())
	return strings.Join(parts, "\n")
}

func (a *App) renderScriptLine(identity string) string {
	p := a.controller.ScriptProgress(identity)
	if p == nil {
		return ""
	}
	switch {
	case p.Running():
		return WarningStyle.Render("script running")
	case p.ErrNode() != "":
		return ErrorStyle.Render("script failed")
	default:
		return ""
	}
}

func (a *App) renderStatusBar() string {
	left := KeyHintStyle.Render("[c]onnect [d]isconnect [C/D] all [t]alk [r]un [x] stop [a]fk [/] filter [q]uit")
	if a.err != nil && time.Since(a.errTime) < 5*time.Second {
		left = ErrorStyle.Render(a.err.Error())
	}
	return StatusBar.Width(a.width).Render(left)
}
