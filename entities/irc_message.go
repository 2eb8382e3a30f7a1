package entities

import (
	"strings"
	"time"
)

type IrcMessage struct {
	Command string
	Raw     string
	Params  []string
	Source  *IrcMessageSource
	Tags    map[string]string
	Time    time.Time
}

// Param returns the parameter at index i, or "" when the message is shorter.
func (m *IrcMessage) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// Trailing returns the last parameter, which is the only one allowed to
// contain spaces.
func (m *IrcMessage) Trailing() string {
	if len(m.Params) == 0 {
		return ""
	}
	return m.Params[len(m.Params)-1]
}

func (m *IrcMessage) Tag(key string) (string, bool) {
	if m.Tags == nil {
		return "", false
	}
	value, ok := m.Tags[key]
	return value, ok
}

// Nick returns the nickname of the sender, falling back to the server host
// for server-originated lines.
func (m *IrcMessage) Nick() string {
	if m.Source == nil {
		return ""
	}
	if m.Source.Nickname != "" {
		return m.Source.Nickname
	}
	return m.Source.Host
}

type IrcMessageSource struct {
	Nickname string
	Username string
	Host     string
}

// IsServer reports whether the prefix names a server rather than a user.
func (s *IrcMessageSource) IsServer() bool {
	return s.Nickname == "" && s.Username == "" && strings.Contains(s.Host, ".")
}

// Mask renders the source back into nick!user@host form.
func (s *IrcMessageSource) Mask() string {
	if s.Nickname == "" {
		return s.Host
	}
	mask := s.Nickname
	if s.Username != "" {
		mask += "!" + s.Username
	}
	if s.Host != "" {
		mask += "@" + s.Host
	}
	return mask
}
