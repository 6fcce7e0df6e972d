package client

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/akarpov/roomcast/internal/config"
)

func testClientConfig() config.ClientConfig {
	return config.ClientConfig{
		ServerURL:     "ws://localhost:8765/ws",
		CommandPrefix: "/",
	}
}

// onlineApp fakes a connected state without touching the network.
func onlineApp(t *testing.T) *App {
	t.Helper()
	a := NewApp(testClientConfig())
	a.session = NewSession(testClientConfig())
	a.statusOnline = true
	t.Cleanup(func() { _ = a.session.Close() })
	return a
}

func TestNormalizeServerURL(t *testing.T) {
	cases := []struct {
		name   string
		target string
		want   string
	}{
		{"bare host port", "localhost:9000", "ws://localhost:9000/ws"},
		{"explicit path kept", "ws://chat.example:9999/custom", "ws://chat.example:9999/custom"},
		{"http becomes ws", "http://chat.example", "ws://chat.example/ws"},
		{"https becomes wss", "https://chat.example/", "wss://chat.example/ws"},
		{"wss kept", "wss://chat.example/ws", "wss://chat.example/ws"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := normalizeServerURL(tc.target)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	for _, target := range []string{"", "   ", "ftp://files.example", "ws://"} {
		_, err := normalizeServerURL(target)
		require.Error(t, err, "target %q", target)
	}
}

func TestExecuteCommandRequiresConnection(t *testing.T) {
	req := require.New(t)
	a := NewApp(testClientConfig())

	for _, raw := range []string{"/join lobby", "/name alice", "/rooms", "/leave", "/msg bob hi"} {
		cmd := a.executeCommand(raw)
		req.Nil(cmd, "command %q", raw)
		req.Equal(logLevelError, a.logLine.level, "command %q", raw)
		req.Contains(a.logLine.body, "Not connected", "command %q", raw)
	}
}

func TestExecuteCommandUnknown(t *testing.T) {
	a := NewApp(testClientConfig())

	cmd := a.executeCommand("/dance")

	require.Nil(t, cmd)
	require.Equal(t, logLevelError, a.logLine.level)
	require.Contains(t, a.logLine.body, "/dance not implemented")
}

func TestExecuteCommandQuit(t *testing.T) {
	a := NewApp(testClientConfig())

	cmd := a.executeCommand("/quit")

	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
	require.False(t, a.statusOnline)
}

func TestExecuteCommandViewSwitches(t *testing.T) {
	req := require.New(t)
	a := NewApp(testClientConfig())

	req.Nil(a.executeCommand("/pipe"))
	req.Equal(viewPipe, a.view)

	req.Nil(a.executeCommand("/help"))
	req.Equal(viewHelp, a.view)

	req.Nil(a.executeCommand("/chat"))
	req.Equal(viewChat, a.view)
}

func TestExecuteCommandPipeClear(t *testing.T) {
	req := require.New(t)
	a := NewApp(testClientConfig())
	a.appendPipeEntry(pipeDirectionOut, "message", map[string]string{"text": "hi"})
	req.Len(a.pipeHistory, 1)

	req.Nil(a.executeCommand("/pipe clear"))

	req.Empty(a.pipeHistory)
	req.Contains(a.logLine.body, "Cleared pipe history")
}

func TestExecuteCommandJoinAlreadyInRoom(t *testing.T) {
	req := require.New(t)
	a := onlineApp(t)
	a.room = "lobby"

	for _, raw := range []string{"/join lobby", "/join LOBBY"} {
		cmd := a.executeCommand(raw)
		req.Nil(cmd, "command %q", raw)
		req.Contains(a.logLine.body, "Already in room", "command %q", raw)
	}
}

func TestExecuteCommandUsageErrors(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"/name", "Usage: /name <username>"},
		{"/join", "Usage: /join <room>"},
		{"/create", "Usage: /create <room>"},
		{"/msg bob", "Usage: /msg <user> <text>"},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			a := onlineApp(t)
			cmd := a.executeCommand(tc.raw)
			require.Nil(t, cmd)
			require.Equal(t, logLevelError, a.logLine.level)
			require.Contains(t, a.logLine.body, tc.want)
		})
	}
}

func TestExecuteCommandSendPaths(t *testing.T) {
	req := require.New(t)
	a := onlineApp(t)

	cmd := a.executeCommand("/msg bob hello over there")
	req.NotNil(cmd)
	req.Len(a.pipeHistory, 1)
	req.Equal(pipeDirectionOut, a.pipeHistory[0].direction)
	req.Equal("private_message", a.pipeHistory[0].messageType)
	req.Contains(a.pipeHistory[0].body, "hello over there")

	// The session was never dialed, so the send must surface an error.
	msg := cmd()
	result, ok := msg.(sendResultMsg)
	req.True(ok)
	req.Error(result.err)
	req.Equal("private message to bob", result.description)
}

func TestExecuteCommandConnectInvalidAddress(t *testing.T) {
	a := NewApp(testClientConfig())

	cmd := a.executeCommand("/connect ftp://files.example")

	require.Nil(t, cmd)
	require.Equal(t, logLevelError, a.logLine.level)
	require.Contains(t, a.logLine.body, "Invalid server address")
}

func TestConnectCommandResetsState(t *testing.T) {
	req := require.New(t)
	a := NewApp(testClientConfig())
	a.username = "alice"
	a.room = "lobby"
	a.chatHistory = []string{"old line"}

	cmd := a.executeCommand("/connect localhost:1")
	req.NotNil(cmd)
	req.NotNil(a.session)
	req.Equal("ws://localhost:1/ws", a.serverAddr)
	req.False(a.statusOnline)
	req.Equal("-", a.username)
	req.Equal("-", a.room)
	req.Empty(a.chatHistory)

	// Nothing listens on that port, so the dial fails and the model
	// falls back to the disconnected state.
	msg := cmd()
	result, ok := msg.(connectResultMsg)
	req.True(ok)
	req.Error(result.err)

	model, _ := a.Update(msg)
	req.Same(a, model)
	req.Nil(a.session)
	req.Equal(logLevelError, a.logLine.level)
	req.Contains(a.logLine.body, "failed")
}

func TestHandleSubmitPlainTextNeedsRoom(t *testing.T) {
	req := require.New(t)
	a := onlineApp(t)

	cmd := a.handleSubmit("hello anyone")

	req.Nil(cmd)
	req.Equal(logLevelError, a.logLine.level)
	req.Contains(a.logLine.body, "Join a room before chatting")
}

func TestHandleSubmitRoutesCommands(t *testing.T) {
	req := require.New(t)
	a := NewApp(testClientConfig())
	a.view = viewPipe

	req.Nil(a.handleSubmit("/chat"))
	req.Equal(viewChat, a.view)

	req.Nil(a.handleSubmit("plain text while offline"))
	req.Contains(a.logLine.body, "Not connected")
}

func TestHandleSubmitChatMessage(t *testing.T) {
	req := require.New(t)
	a := onlineApp(t)
	a.room = "lobby"

	cmd := a.handleSubmit("hello room")

	req.NotNil(cmd)
	req.Len(a.pipeHistory, 1)
	req.Equal("message", a.pipeHistory[0].messageType)
}
