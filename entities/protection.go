package entities

type ProtectionInput struct {
	ConnectionID string
	Network      string
	Command      string
	Source       *IrcMessageSource
	Target       string
	Text         string
}

type ProtectionVerdict struct {
	Block  bool
	Reason string
}
