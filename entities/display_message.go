package entities

import "time"

const (
	DisplayTypeMessage  = "message"
	DisplayTypeAction   = "action"
	DisplayTypeNotice   = "notice"
	DisplayTypeRaw      = "raw"
	DisplayTypeError    = "error"
	DisplayTypeJoin     = "join"
	DisplayTypePart     = "part"
	DisplayTypeQuit     = "quit"
	DisplayTypeNick     = "nick"
	DisplayTypeKick     = "kick"
	DisplayTypeMode     = "mode"
	DisplayTypeTopic    = "topic"
	DisplayTypeRedacted = "redacted"
	DisplayTypeE2E      = "e2e"
)

// DisplayMessage is a line of content destined for a buffer. An empty
// Channel means the server/status buffer.
type DisplayMessage struct {
	ConnectionID string
	Type         string
	Channel      string
	From         string
	Text         string
	MsgID        string
	Tags         map[string]string
	Timestamp    time.Time
	Encrypted    bool
}
