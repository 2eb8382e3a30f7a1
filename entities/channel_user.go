package entities

// ChannelUser is one entry of a channel user map. Modes holds membership
// prefix characters such as "@" or "+".
type ChannelUser struct {
	Nick     string
	Username string
	Host     string
	Account  string
	Modes    string
}

type ModeChange struct {
	Adding bool
	Mode   rune
	Arg    string
}
