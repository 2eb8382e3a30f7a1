package entities

import "time"

const (
	EventMessage             = "message"
	EventNotice              = "notice"
	EventAction              = "action"
	EventJoin                = "join"
	EventPart                = "part"
	EventQuit                = "quit"
	EventNick                = "nick"
	EventKick                = "kick"
	EventChannelModeChange   = "channel-mode-change"
	EventUserModeChange      = "user-mode-change"
	EventTopic               = "topic"
	EventBatchStart          = "batch-start"
	EventBatchEnd            = "batch-end"
	EventChatHistoryEnd      = "chathistory-end"
	EventHistoryEnd          = "history-end"
	EventBouncerPlaybackEnd  = "bouncer-playback-end"
	EventLabeledResponse     = "labeled-response"
	EventReactionReceived    = "reaction-received"
	EventTypingIndicator     = "typing-indicator"
	EventReadMarker          = "read-marker"
	EventRedaction           = "redaction"
	EventFail                = "fail"
	EventWarn                = "warn"
	EventNote                = "note"
	EventPong                = "pong"
	EventInvite              = "invite"
	EventAccount             = "account"
	EventAway                = "away"
	EventChghost             = "chghost"
	EventRegistered          = "registered"
	EventE2ERequest          = "e2e-request"
	EventE2EEstablished      = "e2e-established"
	EventE2ERejected         = "e2e-rejected"
	EventProtectionTriggered = "protection-triggered"
	EventDisconnected        = "disconnected"
)

// Event is a named notification with positional arguments.
type Event struct {
	ConnectionID string
	Name         string
	Args         []any
	Timestamp    time.Time
}

// Arg returns the positional argument at index i, or nil.
func (e *Event) Arg(i int) any {
	if i < 0 || i >= len(e.Args) {
		return nil
	}
	return e.Args[i]
}

// HistoryBatchSummary is the single argument of chathistory-end, history-end
// and bouncer-playback-end.
type HistoryBatchSummary struct {
	RefTag       string
	MessageCount int
	Messages     []*IrcMessage
	Params       []string
}
