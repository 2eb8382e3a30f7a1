package entities

import "time"

const (
	BatchTypeNetsplit        = "netsplit"
	BatchTypeNetjoin         = "netjoin"
	BatchTypeChatHistory     = "chathistory"
	BatchTypeHistory         = "history"
	BatchTypeBouncerPlayback = "bouncer-playback"
	BatchTypeCapNotify       = "cap-notify"
	BatchTypeLabeledResponse = "labeled-response"
	BatchTypeMultiline       = "draft/multiline"
)

type Batch struct {
	RefID     string
	Type      string
	Params    []string
	Tags      map[string]string
	Messages  []*IrcMessage
	StartedAt time.Time
}
