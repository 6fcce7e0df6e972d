package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/akarpov/roomcast/internal/protocol"
)

func (a *App) handleSubmit(value string) tea.Cmd {
	if strings.HasPrefix(value, a.cfg.CommandPrefix) {
		return a.executeCommand(value)
	}

	return a.sendChatMessage(value)
}

func (a *App) executeCommand(raw string) tea.Cmd {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}

	cmd := fields[0]
	var cmds []tea.Cmd

	switch cmd {
	case "/chat":
		a.view = viewChat
		a.logf("Switched to CHAT view")
	case "/help":
		a.view = viewHelp
		a.logf("Switched to HELP view")
	case "/pipe":
		if len(fields) > 1 && strings.EqualFold(fields[1], "clear") {
			a.pipeHistory = make([]pipeEntry, 0, pipeHistoryLimit)
			a.logf("Cleared pipe history")
			break
		}
		a.view = viewPipe
		a.logf("Switched to PIPE view")
	case "/connect":
		target := a.serverAddr
		if len(fields) > 1 {
			target = fields[1]
		}
		if target == "" {
			a.logErrorf("Provide a server address to connect")
			break
		}
		if connectCmd := a.connectToServer(target); connectCmd != nil {
			cmds = append(cmds, connectCmd)
		}
	case "/name":
		if len(fields) < 2 {
			a.logErrorf("Usage: /name <username>")
			break
		}
		if !a.isConnected() {
			a.logErrorf("Not connected. Use /connect first.")
			break
		}
		name := fields[1]
		a.logf("Requesting username %s ...", name)
		if sendCmd := a.sendAction(protocol.Action{Kind: protocol.ActionSetUsername, Username: name}, "set username"); sendCmd != nil {
			cmds = append(cmds, sendCmd)
		}
	case "/join", "/create":
		if len(fields) < 2 {
			a.logErrorf("Usage: %s <room>", cmd)
			break
		}
		if !a.isConnected() {
			a.logErrorf("Not connected. Use /connect first.")
			break
		}
		room := fields[1]
		if strings.EqualFold(strings.TrimSpace(room), strings.TrimSpace(a.room)) {
			a.logf("Already in room %s", room)
			break
		}
		kind := protocol.ActionJoin
		if cmd == "/create" {
			kind = protocol.ActionCreateRoom
		}
		a.logf("Joining room %s ...", room)
		if sendCmd := a.sendAction(protocol.Action{Kind: kind, Room: room}, fmt.Sprintf("join %s", room)); sendCmd != nil {
			cmds = append(cmds, sendCmd)
		}
	case "/rooms":
		if !a.isConnected() {
			a.logErrorf("Not connected. Use /connect first.")
			break
		}
		a.logf("Fetching room list ...")
		if sendCmd := a.sendAction(protocol.Action{Kind: protocol.ActionListRooms}, "room list"); sendCmd != nil {
			cmds = append(cmds, sendCmd)
		}
	case "/leave":
		if !a.isConnected() {
			a.logErrorf("Not connected. Use /connect first.")
			break
		}
		if !a.hasActiveRoom() {
			a.logErrorf("No active room to leave")
			break
		}
		a.logf("Leaving room %s ...", a.room)
		if sendCmd := a.sendAction(protocol.Action{Kind: protocol.ActionLeave}, "leave"); sendCmd != nil {
			cmds = append(cmds, sendCmd)
		}
	case "/msg":
		if len(fields) < 3 {
			a.logErrorf("Usage: /msg <user> <text>")
			break
		}
		if !a.isConnected() {
			a.logErrorf("Not connected. Use /connect first.")
			break
		}
		to := fields[1]
		text := strings.Join(fields[2:], " ")
		a.logf("Sending private message to %s ...", to)
		act := protocol.Action{Kind: protocol.ActionPrivateMessage, To: to, Text: text}
		if sendCmd := a.sendAction(act, fmt.Sprintf("private message to %s", to)); sendCmd != nil {
			cmds = append(cmds, sendCmd)
		}
	case "/quit":
		a.logf("Exiting client")
		if a.session != nil {
			_ = a.session.Close()
			a.session = nil
		}
		a.statusOnline = false
		cmds = append(cmds, tea.Quit)
	default:
		a.logErrorf("Command %s not implemented", cmd)
	}

	a.updateViewportContent()

	switch len(cmds) {
	case 0:
		return nil
	case 1:
		return cmds[0]
	default:
		return tea.Batch(cmds...)
	}
}

func (a *App) connectToServer(target string) tea.Cmd {
	serverURL, err := normalizeServerURL(target)
	if err != nil {
		a.logErrorf("Invalid server address %s: %v", target, err)
		return nil
	}
	if a.session != nil {
		_ = a.session.Close()
	}

	cfg := a.cfg
	cfg.ServerURL = serverURL
	session := NewSession(cfg)
	a.session = session
	a.serverAddr = serverURL
	a.statusOnline = false
	a.username = "-"
	a.room = "-"
	a.chatHistory = nil
	a.logf("Connecting to %s ...", serverURL)

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		err := session.Connect(ctx)
		return connectResultMsg{
			session: session,
			address: serverURL,
			err:     err,
		}
	}
}

func (a *App) listenForSession() tea.Cmd {
	session := a.session
	if session == nil {
		return nil
	}
	return func() tea.Msg {
		env, ok := <-session.Messages()
		if !ok {
			return sessionClosedMsg{session: session}
		}
		return sessionEnvelopeMsg{session: session, envelope: env}
	}
}

func (a *App) sendChatMessage(content string) tea.Cmd {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if !a.isConnected() {
		a.logErrorf("Not connected. Use /connect first.")
		return nil
	}
	if !a.hasActiveRoom() {
		a.logErrorf("Join a room before chatting (use /join <room>)")
		return nil
	}
	if a.view == viewHelp {
		a.view = viewChat
		a.updateViewportContent()
	}

	return a.sendAction(protocol.Action{Kind: protocol.ActionMessage, Text: content}, "chat message")
}

func (a *App) sendAction(act protocol.Action, description string) tea.Cmd {
	session := a.session
	if session == nil {
		return nil
	}
	a.appendPipeEntry(pipeDirectionOut, string(act.Kind), act)

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		err := session.Send(ctx, act)
		return sendResultMsg{
			session:     session,
			description: description,
			err:         err,
		}
	}
}

func normalizeServerURL(target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", fmt.Errorf("empty address")
	}
	if !strings.Contains(target, "://") {
		target = "ws://" + target
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host")
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

func defaultCommands() []commandSpec {
	return []commandSpec{
		{trigger: "/connect", usage: "/connect [url]", description: "Connect to the server"},
		{trigger: "/name", usage: "/name <username>", description: "Claim a username"},
		{trigger: "/join", usage: "/join <room>", description: "Join a room, creating it if needed"},
		{trigger: "/create", usage: "/create <room>", description: "Create and join a room"},
		{trigger: "/rooms", usage: "/rooms", description: "List active rooms"},
		{trigger: "/leave", usage: "/leave", description: "Leave the current room"},
		{trigger: "/msg", usage: "/msg <user> <text>", description: "Send a private message"},
		{trigger: "/chat", usage: "/chat", description: "Switch to chat view"},
		{trigger: "/pipe", usage: "/pipe [clear]", description: "Inspect transport JSON frames"},
		{trigger: "/help", usage: "/help", description: "Show command help"},
		{trigger: "/quit", usage: "/quit", description: "Exit the client"},
	}
}
