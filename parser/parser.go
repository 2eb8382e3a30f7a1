// Package parser decodes raw IRC protocol lines into entities.IrcMessage
// values. Tag values are unescaped per the IRCv3 message-tags rules; a tag
// segment that cannot be parsed is discarded rather than failing the line.
package parser

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/ynotnauk/go-irc/entities"
)

var (
	ErrBlankRawIrcMessage error = errors.New("rawIrcMessage cannot be blank")
	ErrMissingCommand     error = errors.New("rawIrcMessage has no command")
)

var tagKeyPattern = regexp.MustCompile(`^\+?([A-Za-z0-9.\-]+/)?[A-Za-z0-9\-]+$`)

// ParseRawIrcMessage decodes one line. Trailing CR/LF is ignored.
func ParseRawIrcMessage(rawIrcMessage string) (*entities.IrcMessage, error) {
	rawIrcMessage = strings.TrimRight(rawIrcMessage, "\r\n")
	if strings.TrimSpace(rawIrcMessage) == "" {
		return nil, ErrBlankRawIrcMessage
	}
	parsedIrcMessage := &entities.IrcMessage{
		Raw: rawIrcMessage,
	}
	rest := strings.TrimLeft(rawIrcMessage, " ")
	// Tags
	if strings.HasPrefix(rest, "@") {
		index := strings.IndexByte(rest, ' ')
		if index < 0 {
			return nil, ErrMissingCommand
		}
		parsedIrcMessage.Tags = parseRawIrcMessageTags(rest[1:index])
		rest = strings.TrimLeft(rest[index+1:], " ")
	}
	// Source
	if strings.HasPrefix(rest, ":") {
		index := strings.IndexByte(rest, ' ')
		if index < 0 {
			return nil, ErrMissingCommand
		}
		parsedIrcMessage.Source = parseRawIrcMessageSource(rest[1:index])
		rest = strings.TrimLeft(rest[index+1:], " ")
	}
	// Command
	index := strings.IndexByte(rest, ' ')
	if index < 0 {
		parsedIrcMessage.Command = rest
		rest = ""
	} else {
		parsedIrcMessage.Command = rest[:index]
		rest = rest[index+1:]
	}
	if parsedIrcMessage.Command == "" {
		return nil, ErrMissingCommand
	}
	parsedIrcMessage.Params = parseRawIrcMessageParams(rest)
	parsedIrcMessage.Time = messageTime(parsedIrcMessage.Tags)
	return parsedIrcMessage, nil
}

func parseRawIrcMessageParams(rest string) []string {
	var parsedParams []string
	for {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			return parsedParams
		}
		// The trailing parameter absorbs the remainder verbatim
		if rest[0] == ':' {
			return append(parsedParams, rest[1:])
		}
		index := strings.IndexByte(rest, ' ')
		if index < 0 {
			return append(parsedParams, rest)
		}
		parsedParams = append(parsedParams, rest[:index])
		rest = rest[index+1:]
	}
}

func parseRawIrcMessageSource(rawIrcMessageSource string) *entities.IrcMessageSource {
	parsedIrcMessageSource := &entities.IrcMessageSource{}
	nuh, err := ircmsg.ParseNUH(rawIrcMessageSource)
	if err != nil {
		parsedIrcMessageSource.Host = rawIrcMessageSource
		return parsedIrcMessageSource
	}
	parsedIrcMessageSource.Nickname = nuh.Name
	parsedIrcMessageSource.Username = nuh.User
	parsedIrcMessageSource.Host = nuh.Host
	// A bare name with a dot is a server, otherwise a nick
	if nuh.User == "" && nuh.Host == "" && strings.Contains(nuh.Name, ".") {
		parsedIrcMessageSource.Nickname = ""
		parsedIrcMessageSource.Host = nuh.Name
	}
	return parsedIrcMessageSource
}

// parseRawIrcMessageTags returns nil when any tag in the segment is
// malformed.
func parseRawIrcMessageTags(rawIrcMessageTags string) map[string]string {
	if rawIrcMessageTags == "" {
		return nil
	}
	parsedIrcMessageTags := make(map[string]string)
	for _, rawIrcMessageTag := range strings.Split(rawIrcMessageTags, ";") {
		if rawIrcMessageTag == "" {
			continue
		}
		key, value, _ := strings.Cut(rawIrcMessageTag, "=")
		if !tagKeyPattern.MatchString(key) {
			return nil
		}
		parsedIrcMessageTags[key] = ircmsg.UnescapeTagValue(value)
	}
	return parsedIrcMessageTags
}

func messageTime(tags map[string]string) time.Time {
	if value, ok := tags["time"]; ok {
		if parsed, ok := ParseServerTime(value); ok {
			return parsed
		}
	}
	return time.Now()
}

// ParseServerTime parses an IRCv3 server-time value.
func ParseServerTime(value string) (time.Time, bool) {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
