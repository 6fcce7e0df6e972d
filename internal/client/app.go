package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/akarpov/roomcast/internal/config"
	"github.com/akarpov/roomcast/internal/protocol"
)

const (
	connectTimeout   = 5 * time.Second
	sendTimeout      = 5 * time.Second
	pipeHistoryLimit = 50
)

// primaryView enumerates the main content panels.
type primaryView int

const (
	viewChat primaryView = iota
	viewPipe
	viewHelp
)

func (v primaryView) String() string {
	switch v {
	case viewPipe:
		return "pipe"
	case viewHelp:
		return "help"
	default:
		return "chat"
	}
}

type logLevel int

const (
	logLevelInfo logLevel = iota
	logLevelError
)

type logLine struct {
	level logLevel
	label string
	body  string
}

type pipeDirection string

const (
	pipeDirectionIn  pipeDirection = "RECV"
	pipeDirectionOut pipeDirection = "SEND"
)

type pipeEntry struct {
	direction   pipeDirection
	messageType string
	timestamp   time.Time
	body        string
}

type commandSpec struct {
	trigger     string
	usage       string
	description string
}

type connectResultMsg struct {
	session *Session
	address string
	err     error
}

type sessionEnvelopeMsg struct {
	session  *Session
	envelope protocol.Envelope
}

type sessionClosedMsg struct {
	session *Session
}

type sendResultMsg struct {
	session     *Session
	description string
	err         error
}

// App implements the bubbletea tea.Model interface for the terminal client.
type App struct {
	cfg      config.ClientConfig
	session  *Session
	input    textinput.Model
	viewport viewport.Model
	helper   help.Model
	styles   styleSet
	commands []commandSpec

	view         primaryView
	width        int
	height       int
	serverAddr   string
	username     string
	room         string
	statusOnline bool

	chatHistory []string
	pipeHistory []pipeEntry
	logLine     logLine

	showHelp   bool
	helpView   string
	helpHeight int
}

// NewApp returns a Bubble Tea model pre-populated with defaults.
func NewApp(cfg config.ClientConfig) *App {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "Type a message or /help"
	input.CharLimit = 512
	input.Focus()

	app := &App{
		cfg:        cfg,
		input:      input,
		viewport:   viewport.New(0, 0),
		helper:     help.New(),
		styles:     buildStyles(),
		commands:   defaultCommands(),
		view:       viewChat,
		serverAddr: cfg.ServerURL,
		username:   "-",
		room:       "-",
	}
	app.logLine = logLine{level: logLevelInfo, label: "INFO", body: "Use /connect to reach the server."}
	app.updateViewportContent()
	return app
}

// Init is part of the tea.Model interface.
func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles user input and internal events.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = m.Width
		a.height = m.Height
		a.helper.Width = m.Width
		a.updateViewportSize()
		a.updateInputWidth()
		a.updateViewportContent()
		return a, nil
	case tea.KeyMsg:
		return a.handleKey(m)
	case connectResultMsg:
		return a.handleConnectResult(m)
	case sessionEnvelopeMsg:
		if m.session != a.session {
			return a, nil
		}
		a.handleSessionEnvelope(m.envelope)
		return a, a.listenForSession()
	case sessionClosedMsg:
		return a.handleSessionClosed(m)
	case sendResultMsg:
		return a.handleSendResult(m)
	default:
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if a.session != nil {
			_ = a.session.Close()
		}
		return a, tea.Quit
	case tea.KeyEnter:
		value := strings.TrimSpace(a.input.Value())
		a.input.Reset()
		a.updateHelp()
		if value == "" {
			return a, nil
		}
		return a, a.handleSubmit(value)
	case tea.KeyTab:
		a.handleTabCompletion()
		a.updateHelp()
		return a, nil
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	a.updateHelp()
	return a, cmd
}

func (a *App) handleConnectResult(m connectResultMsg) (tea.Model, tea.Cmd) {
	if m.session != a.session {
		if m.err == nil {
			_ = m.session.Close()
		}
		return a, nil
	}
	if m.err != nil {
		a.session = nil
		a.statusOnline = false
		a.logErrorf("Connect to %s failed: %v", m.address, m.err)
		return a, nil
	}

	a.statusOnline = true
	a.serverAddr = m.address

	cmds := []tea.Cmd{a.listenForSession()}
	if name := strings.TrimSpace(a.cfg.Username); name != "" {
		a.logf("Connected to %s, requesting username %s ...", m.address, name)
		if sendCmd := a.sendAction(protocol.Action{Kind: protocol.ActionSetUsername, Username: name}, "set username"); sendCmd != nil {
			cmds = append(cmds, sendCmd)
		}
	} else {
		a.logf("Connected to %s", m.address)
	}
	return a, tea.Batch(cmds...)
}

func (a *App) handleSessionClosed(m sessionClosedMsg) (tea.Model, tea.Cmd) {
	if m.session != a.session {
		return a, nil
	}
	a.session = nil
	a.statusOnline = false
	a.username = "-"
	a.room = "-"
	a.logErrorf("Connection to %s closed", a.serverAddr)
	a.updateViewportContent()
	return a, nil
}

func (a *App) handleSendResult(m sendResultMsg) (tea.Model, tea.Cmd) {
	if m.session != a.session {
		return a, nil
	}
	if m.err != nil {
		a.logErrorf("Failed to send %s: %v", m.description, m.err)
	}
	return a, nil
}

func (a *App) logf(format string, args ...any) {
	a.logLine = logLine{level: logLevelInfo, label: "INFO", body: fmt.Sprintf(format, args...)}
}

func (a *App) logErrorf(format string, args ...any) {
	a.logLine = logLine{level: logLevelError, label: "ERROR", body: fmt.Sprintf(format, args...)}
}
