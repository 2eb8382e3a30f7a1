package chat

import (
	"fmt"
	"strings"

	"github.com/ynotnauk/go-irc/entities"
)

func channelUserFrom(message *entities.IrcMessage) entities.ChannelUser {
	user := entities.ChannelUser{Nick: message.Nick()}
	if message.Source != nil {
		user.Username = message.Source.Username
		user.Host = message.Source.Host
	}
	// extended-join puts the account name in the second parameter.
	if account := message.Param(1); account != "" && account != "*" {
		user.Account = account
	}
	return user
}

// forgetUser removes nick from every tracked channel and returns the
// channels it was in.
func forgetUser(ctx *HandlerContext, nick string) []string {
	channels := ctx.Users.ChannelsWithUser(nick)
	for _, channel := range channels {
		ctx.Users.RemoveUser(channel, nick)
	}
	return channels
}

func withReason(text string, reason string) string {
	if reason == "" {
		return text
	}
	return fmt.Sprintf("%s (%s)", text, reason)
}

func handleJoin(ctx *HandlerContext, message *entities.IrcMessage) {
	channel := message.Param(0)
	nick := message.Nick()
	if channel == "" || nick == "" {
		return
	}
	text := fmt.Sprintf("%s joined %s", nick, channel)
	self := ctx.Users.IsSelf(nick)
	if self {
		text = fmt.Sprintf("You joined %s", channel)
	}
	if !ctx.replayed(message) {
		if self {
			ctx.Users.AddChannel(channel)
		}
		ctx.Users.AddUser(channel, channelUserFrom(message))
	}
	ctx.display(entities.DisplayTypeJoin, channel, nick, text, message)
	ctx.emit(entities.EventJoin, channel, nick)
}

func handlePart(ctx *HandlerContext, message *entities.IrcMessage) {
	channel := message.Param(0)
	nick := message.Nick()
	if channel == "" {
		return
	}
	reason := message.Param(1)
	text := withReason(fmt.Sprintf("%s left %s", nick, channel), reason)
	self := ctx.Users.IsSelf(nick)
	if self {
		text = withReason(fmt.Sprintf("You left %s", channel), reason)
	}
	switch {
	case ctx.replayed(message):
	case self:
		ctx.Users.DropChannel(channel)
	default:
		ctx.Users.RemoveUser(channel, nick)
	}
	ctx.display(entities.DisplayTypePart, channel, nick, text, message)
	ctx.emit(entities.EventPart, channel, nick)
}

// handleQuit shows the quit in every channel the user shared with us, or
// once in the status buffer when none are tracked.
func handleQuit(ctx *HandlerContext, message *entities.IrcMessage) {
	nick := message.Nick()
	if nick == "" {
		return
	}
	reason := message.Param(0)
	text := withReason(fmt.Sprintf("%s quit", nick), reason)
	var channels []string
	if ctx.replayed(message) {
		if channel := ctx.replayChannel(message); channel != "" {
			channels = []string{channel}
		}
	} else {
		channels = forgetUser(ctx, nick)
	}
	if len(channels) == 0 {
		ctx.display(entities.DisplayTypeQuit, "", nick, text, message)
	}
	for _, channel := range channels {
		ctx.display(entities.DisplayTypeQuit, channel, nick, text, message)
	}
	ctx.emit(entities.EventQuit, nick, reason)
}

func handleNick(ctx *HandlerContext, message *entities.IrcMessage) {
	oldNick := message.Nick()
	newNick := message.Param(0)
	if oldNick == "" || newNick == "" {
		return
	}
	text := fmt.Sprintf("%s is now known as %s", oldNick, newNick)
	self := ctx.Users.IsSelf(oldNick)
	if self {
		text = fmt.Sprintf("You are now known as %s", newNick)
	}
	if ctx.replayed(message) {
		ctx.display(entities.DisplayTypeNick, ctx.replayChannel(message), oldNick, text, message)
		ctx.emit(entities.EventNick, oldNick, newNick)
		return
	}
	if self {
		ctx.Users.SetCurrentNick(newNick)
	}
	channels := ctx.Users.ChannelsWithUser(oldNick)
	for _, channel := range channels {
		ctx.Users.RenameUser(channel, oldNick, newNick)
		ctx.display(entities.DisplayTypeNick, channel, oldNick, text, message)
	}
	if len(channels) == 0 {
		ctx.display(entities.DisplayTypeNick, "", oldNick, text, message)
	}
	ctx.emit(entities.EventNick, oldNick, newNick)
}

func handleKick(ctx *HandlerContext, message *entities.IrcMessage) {
	channel := message.Param(0)
	victim := message.Param(1)
	if channel == "" || victim == "" {
		return
	}
	kicker := message.Nick()
	reason := message.Param(2)
	self := ctx.Users.IsSelf(victim)
	switch {
	case ctx.replayed(message):
	case self:
		ctx.Users.DropChannel(channel)
	default:
		ctx.Users.RemoveUser(channel, victim)
	}
	text := withReason(fmt.Sprintf("%s was kicked by %s", victim, kicker), reason)
	if self {
		text = withReason(fmt.Sprintf("You were kicked from %s by %s", channel, kicker), reason)
		ctx.emit(entities.EventKick, channel)
	}
	ctx.display(entities.DisplayTypeKick, channel, kicker, text, message)
}

// handleNamesReply fills a channel user map from RPL_NAMREPLY:
// "<me> <symbol> <channel> :[prefix]nick[!user@host] ...".
func handleNamesReply(ctx *HandlerContext, message *entities.IrcMessage) {
	channel := message.Param(2)
	if channel == "" {
		return
	}
	prefixes := ""
	for prefix := range prefixModes(ctx) {
		prefixes += string(prefix)
	}
	for _, entry := range strings.Fields(message.Param(3)) {
		name := strings.TrimLeft(entry, prefixes)
		if name == "" {
			continue
		}
		user := entities.ChannelUser{Modes: entry[:len(entry)-len(name)]}
		nick, rest, _ := strings.Cut(name, "!")
		user.Nick = nick
		if rest != "" {
			user.Username, user.Host, _ = strings.Cut(rest, "@")
		}
		ctx.Users.AddUser(channel, user)
	}
}

type prefixModeSource interface {
	PrefixModes() map[rune]rune
}

// prefixModes maps membership prefixes to mode letters, from ISUPPORT when
// the user list tracks it.
func prefixModes(ctx *HandlerContext) map[rune]rune {
	if source, ok := ctx.Users.(prefixModeSource); ok {
		return source.PrefixModes()
	}
	return map[rune]rune{'~': 'q', '&': 'a', '@': 'o', '%': 'h', '+': 'v'}
}
