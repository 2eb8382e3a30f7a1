package chat

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ynotnauk/go-irc/entities"
	"github.com/ynotnauk/go-irc/parser"
)

var (
	reactTags  = []string{"+draft/react", "+react", "draft/react", "react"}
	replyTags  = []string{"+draft/reply", "+reply", "draft/reply", "reply"}
	typingTags = []string{"+typing", "+draft/typing", "typing", "draft/typing"}
)

func firstTag(message *entities.IrcMessage, keys []string) (string, bool) {
	for _, key := range keys {
		if value, ok := message.Tag(key); ok {
			return value, true
		}
	}
	return "", false
}

func parseUnixSeconds(value string, fallback time.Time) time.Time {
	seconds, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return time.Unix(seconds, 0)
}

func handleTagmsg(ctx *HandlerContext, message *entities.IrcMessage) {
	target := message.Param(0)
	sender := message.Nick()
	if ctx.isIgnored(message.Source) {
		return
	}
	channel, _ := ctx.conversation(sender, target)
	handled := false
	if react, ok := firstTag(message, reactTags); ok && react != "" {
		msgID, emoji, found := strings.Cut(react, ";")
		if !found {
			emoji = react
			msgID, _ = firstTag(message, replyTags)
		}
		ctx.emit(entities.EventReactionReceived, channel, sender, msgID, emoji)
		handled = true
	}
	if typing, ok := firstTag(message, typingTags); ok {
		ctx.emit(entities.EventTypingIndicator, channel, sender, typing)
		handled = true
	}
	if !handled {
		handleUnknown(ctx, message)
	}
}

// handleMarkread handles "MARKREAD <target> [timestamp=<value>]". The value
// is unix seconds or an RFC 3339 server time; anything else reads as now.
func handleMarkread(ctx *HandlerContext, message *entities.IrcMessage) {
	channel := message.Param(0)
	if channel == "" {
		return
	}
	timestamp := ctx.now()
	for _, param := range paramsFrom(message, 1) {
		value, ok := strings.CutPrefix(param, "timestamp=")
		if !ok {
			continue
		}
		if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
			timestamp = time.Unix(seconds, 0)
		} else if parsed, ok := parser.ParseServerTime(value); ok {
			timestamp = parsed
		}
	}
	ctx.emit(entities.EventReadMarker, channel, message.Nick(), timestamp)
}

func handleRedact(ctx *HandlerContext, message *entities.IrcMessage) {
	target := message.Param(0)
	msgID := message.Param(1)
	if target == "" || msgID == "" {
		return
	}
	redactor := message.Nick()
	channel, _ := ctx.conversation(redactor, target)
	ctx.emit(entities.EventRedaction, channel, msgID, redactor)
	if ctx.Display == nil {
		return
	}
	text := "Message deleted by " + redactor
	if reason := message.Param(2); reason != "" {
		text += ": " + reason
	}
	ctx.display(entities.DisplayTypeRedacted, channel, redactor, text, message)
}

// handleStandardReply renders FAIL, WARN and NOTE as
// "<command> <code> [context...] <description>".
func handleStandardReply(ctx *HandlerContext, message *entities.IrcMessage) {
	verb := strings.ToUpper(message.Command)
	text := strings.TrimSpace(verb + " " + strings.Join(message.Params, " "))
	displayType := entities.DisplayTypeRaw
	if verb == "FAIL" {
		displayType = entities.DisplayTypeError
	}
	ctx.display(displayType, "", message.Nick(), text, message)
	args := make([]any, len(message.Params))
	for i, param := range message.Params {
		args[i] = param
	}
	ctx.emit(strings.ToLower(verb), args...)
}

// handleAck exists so labeled ACKs skip raw display; the dispatcher
// resolves the label.
func handleAck(ctx *HandlerContext, message *entities.IrcMessage) {
	if _, ok := message.Tag("label"); !ok {
		ctx.logger().Debug("Received ACK without label")
	}
}

func handleInvite(ctx *HandlerContext, message *entities.IrcMessage) {
	inviter := message.Nick()
	invitee := message.Param(0)
	channel := message.Param(1)
	text := fmt.Sprintf("%s invited %s to %s", inviter, invitee, channel)
	if ctx.Users.IsSelf(invitee) {
		text = fmt.Sprintf("%s invited you to %s", inviter, channel)
	}
	ctx.display(entities.DisplayTypeRaw, "", inviter, text, message)
	ctx.emit(entities.EventInvite, channel, inviter, invitee)
}

func handleAccount(ctx *HandlerContext, message *entities.IrcMessage) {
	nick := message.Nick()
	account := message.Param(0)
	text := fmt.Sprintf("%s is now logged in as %s", nick, account)
	if account == "" || account == "*" {
		text = fmt.Sprintf("%s logged out", nick)
	}
	ctx.display(entities.DisplayTypeRaw, "", nick, text, message)
	ctx.emit(entities.EventAccount, nick, account)
}

func handleAway(ctx *HandlerContext, message *entities.IrcMessage) {
	nick := message.Nick()
	reason := message.Param(0)
	text := fmt.Sprintf("%s is now away: %s", nick, reason)
	if reason == "" {
		text = fmt.Sprintf("%s is no longer away", nick)
	}
	ctx.display(entities.DisplayTypeRaw, "", nick, text, message)
	ctx.emit(entities.EventAway, nick, reason)
}

func handleChghost(ctx *HandlerContext, message *entities.IrcMessage) {
	nick := message.Nick()
	username := message.Param(0)
	host := message.Param(1)
	text := fmt.Sprintf("%s changed host to %s@%s", nick, username, host)
	if !ctx.replayed(message) {
		for _, channel := range ctx.Users.ChannelsWithUser(nick) {
			ctx.Users.AddUser(channel, entities.ChannelUser{Nick: nick, Username: username, Host: host})
		}
	}
	ctx.display(entities.DisplayTypeRaw, "", nick, text, message)
	ctx.emit(entities.EventChghost, nick, username, host)
}
