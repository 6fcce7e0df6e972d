package client

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/akarpov/roomcast/internal/protocol"
)

func (a *App) handleSessionEnvelope(env protocol.Envelope) {
	a.appendPipeEntry(pipeDirectionIn, string(env.Kind), env)
	switch env.Kind {
	case protocol.EnvelopeWelcome:
		a.appendChatLine(env.Text)
		a.logf("%s", env.Text)
	case protocol.EnvelopeNameSet:
		a.username = env.Username
		a.logf("Username set to %s", env.Username)
	case protocol.EnvelopeRoomJoined:
		a.handleRoomJoined(env)
	case protocol.EnvelopeRoomLeft:
		a.handleRoomLeft(env)
	case protocol.EnvelopeRoomList:
		a.handleRoomList(env)
	case protocol.EnvelopeBroadcast:
		a.handleBroadcast(env)
	case protocol.EnvelopePrivate:
		a.appendChatLine(a.formatPrivate("from", env.From, env))
	case protocol.EnvelopePrivateSent:
		a.appendChatLine(a.formatPrivate("to", env.To, env))
		a.logf("Private message delivered to %s", env.To)
	case protocol.EnvelopeSystem:
		a.handleSystemNotice(env)
	case protocol.EnvelopeError:
		a.handleServerError(env)
	default:
		a.logErrorf("Received unknown %s message", string(env.Kind))
	}
}

func (a *App) handleRoomJoined(env protocol.Envelope) {
	a.room = env.Room
	a.chatHistory = nil
	if a.view == viewHelp {
		a.view = viewChat
	}
	a.appendChatLine(fmt.Sprintf("* you joined %s", env.Room))
	a.updateViewportContent()
	a.logf("Joined room %s", env.Room)
}

func (a *App) handleRoomLeft(env protocol.Envelope) {
	if strings.EqualFold(strings.TrimSpace(a.room), strings.TrimSpace(env.Room)) {
		a.room = "-"
		a.chatHistory = nil
		a.updateViewportContent()
	}
	a.logf("Left room %s", env.Room)
}

func (a *App) handleRoomList(env protocol.Envelope) {
	if len(env.Rooms) == 0 {
		a.appendChatLine("No active rooms.")
		a.logf("No active rooms")
		return
	}
	a.appendChatLine(fmt.Sprintf("Active rooms (%d):", len(env.Rooms)))
	for _, r := range env.Rooms {
		noun := "members"
		if r.Members == 1 {
			noun = "member"
		}
		a.appendChatLine(fmt.Sprintf("  %s (%d %s)", r.Name, r.Members, noun))
	}
	a.logf("Listed %d rooms", len(env.Rooms))
}

func (a *App) handleBroadcast(env protocol.Envelope) {
	if !strings.EqualFold(strings.TrimSpace(a.room), strings.TrimSpace(env.Room)) {
		return
	}
	a.appendChatLine(a.formatChatMessage(env))
}

func (a *App) handleSystemNotice(env protocol.Envelope) {
	if !strings.EqualFold(strings.TrimSpace(a.room), strings.TrimSpace(env.Room)) {
		return
	}
	switch env.Event {
	case protocol.SystemUserJoined:
		a.appendChatLine(fmt.Sprintf("* %s joined %s", env.Username, env.Room))
	case protocol.SystemUserLeft:
		a.appendChatLine(fmt.Sprintf("* %s left %s", env.Username, env.Room))
	default:
		a.appendChatLine(fmt.Sprintf("* %s: %s", env.Username, string(env.Event)))
	}
}

func (a *App) handleServerError(env protocol.Envelope) {
	text := strings.TrimSpace(env.Text)
	if text == "" {
		text = "unknown error"
	}
	if env.Code != "" {
		a.logErrorf("Server error (%s): %s", env.Code, text)
		return
	}
	a.logErrorf("Server error: %s", text)
}

func (a *App) isConnected() bool {
	return a.session != nil && a.statusOnline
}

func (a *App) appendChatLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	a.chatHistory = append(a.chatHistory, line)
	if a.view == viewChat {
		a.updateViewportContent()
		a.viewport.GotoBottom()
	}
}

func (a *App) appendPipeEntry(direction pipeDirection, kind string, frame any) {
	if a.pipeHistory == nil {
		a.pipeHistory = make([]pipeEntry, 0, pipeHistoryLimit)
	}
	bodyBytes, err := json.MarshalIndent(frame, "", "  ")
	entry := pipeEntry{
		direction:   direction,
		messageType: kind,
		timestamp:   time.Now(),
		body:        string(bodyBytes),
	}
	if err != nil {
		entry.body = fmt.Sprintf(`{"marshal_error":%q}`, err.Error())
	}
	if len(a.pipeHistory) >= pipeHistoryLimit {
		a.pipeHistory = append(a.pipeHistory[1:], entry)
	} else {
		a.pipeHistory = append(a.pipeHistory, entry)
	}
	if a.view == viewPipe {
		a.updateViewportContent()
	}
}

func (a *App) formatChatMessage(env protocol.Envelope) string {
	from := strings.TrimSpace(env.From)
	if from == "" {
		from = "unknown"
	}
	body := strings.TrimSpace(env.Text)
	if body == "" {
		body = "(empty)"
	}
	if ts := formatTimestamp(env.Ts); ts != "" {
		return fmt.Sprintf("[%s] %s: %s", ts, from, body)
	}
	return fmt.Sprintf("%s: %s", from, body)
}

func (a *App) formatPrivate(direction, peer string, env protocol.Envelope) string {
	peer = strings.TrimSpace(peer)
	if peer == "" {
		peer = "unknown"
	}
	body := strings.TrimSpace(env.Text)
	if body == "" {
		body = "(empty)"
	}
	if ts := formatTimestamp(env.Ts); ts != "" {
		return fmt.Sprintf("[%s] pm %s %s: %s", ts, direction, peer, body)
	}
	return fmt.Sprintf("pm %s %s: %s", direction, peer, body)
}

func formatTimestamp(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).Local().Format("15:04:05")
}
