package entities

import "time"

const (
	LabelErrorTimeout      = "timeout"
	LabelErrorDisconnected = "disconnected"
)

// LabelResult is delivered to a LabelCallback exactly once. Error is empty on
// success and holds LabelErrorTimeout or LabelErrorDisconnected otherwise.
type LabelResult struct {
	Label    string
	Command  string
	Response any
	Error    string
}

type LabelCallback func(result *LabelResult)

type PendingLabel struct {
	Label     string
	Command   string
	Callback  LabelCallback
	CreatedAt time.Time
	Timeout   *time.Timer
}
