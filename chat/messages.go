package chat

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ynotnauk/go-irc/entities"
)

const ctcpDelimiter = "\x01"

// playbackTimestampPattern matches the "[HH:MM:SS] " prefix bouncers such as
// ZNC put in front of replayed lines.
var playbackTimestampPattern = regexp.MustCompile(`^\[\d{1,2}:\d{2}(:\d{2})?\] `)

func stripPlaybackTimestamp(text string) string {
	return playbackTimestampPattern.ReplaceAllString(text, "")
}

// parseCTCP splits a "\x01COMMAND params\x01" payload. The closing
// delimiter is optional.
func parseCTCP(text string) (command string, params string, ok bool) {
	if !strings.HasPrefix(text, ctcpDelimiter) || len(text) < 2 {
		return "", "", false
	}
	body := strings.TrimSuffix(text[1:], ctcpDelimiter)
	command, params, _ = strings.Cut(body, " ")
	if command == "" {
		return "", "", false
	}
	return strings.ToUpper(command), params, true
}

func handlePrivmsg(ctx *HandlerContext, message *entities.IrcMessage) {
	target := message.Param(0)
	if target == "" {
		return
	}
	text := message.Param(1)
	sender := message.Nick()
	if ctx.isIgnored(message.Source) {
		return
	}
	channel, selfToSelf := ctx.conversation(sender, target)
	if selfToSelf {
		return
	}
	replay := ctx.replayed(message)
	if ctx.Protection != nil && !replay && !ctx.Users.IsSelf(sender) {
		verdict := ctx.Protection.Evaluate(&entities.ProtectionInput{
			ConnectionID: ctx.ConnectionID,
			Network:      ctx.Network,
			Command:      "PRIVMSG",
			Source:       message.Source,
			Target:       target,
			Text:         text,
		})
		if verdict != nil && verdict.Block {
			if ctx.Hooks.ProtectionTriggered != nil {
				ctx.Hooks.ProtectionTriggered(verdict, message)
			}
			ctx.emit(entities.EventProtectionTriggered, channel, sender, verdict.Reason)
			return
		}
	}
	if command, params, ok := parseCTCP(text); ok {
		if command != "ACTION" {
			// Old requests in a replay are not answered
			if !replay {
				routeCTCP(ctx, message, command, params, target)
			}
			return
		}
		action := stripPlaybackTimestamp(params)
		ctx.display(entities.DisplayTypeAction, channel, sender, action, message)
		ctx.emit(entities.EventAction, channel, sender, action)
		return
	}
	if ctx.Overlay != nil && ctx.Overlay.Intercept(channel, message.Source, text) {
		return
	}
	text = stripPlaybackTimestamp(text)
	ctx.display(entities.DisplayTypeMessage, channel, sender, text, message)
	ctx.emit(entities.EventMessage, channel, sender, text)
}

func routeCTCP(ctx *HandlerContext, message *entities.IrcMessage, command string, params string, target string) {
	if ctx.CTCP == nil || ctx.Users.IsSelf(message.Nick()) {
		return
	}
	sender := message.Nick()
	ctx.CTCP.HandleCTCP(&entities.CTCPRequest{
		ConnectionID:  ctx.ConnectionID,
		CommandName:   command,
		CommandParams: params,
		Source:        message.Source,
		Target:        target,
		Reply: func(response string) {
			ctx.send(fmt.Sprintf("NOTICE %s :%s%s%s", sender, ctcpDelimiter, response, ctcpDelimiter))
		},
	})
}

func handleNotice(ctx *HandlerContext, message *entities.IrcMessage) {
	target := message.Param(0)
	text := message.Param(1)
	sender := message.Nick()
	if ctx.isIgnored(message.Source) {
		return
	}
	channel := ""
	if message.Source != nil && !message.Source.IsServer() && message.Source.Nickname != "" {
		channel, _ = ctx.conversation(sender, target)
	} else if ctx.Users.IsChannel(target) {
		channel = target
	}
	if command, params, ok := parseCTCP(text); ok {
		summary := ctcpReplySummary(ctx, sender, command, params)
		ctx.display(entities.DisplayTypeNotice, channel, sender, summary, message)
		ctx.emit(entities.EventNotice, channel, sender, summary)
		return
	}
	if ctx.Overlay != nil && ctx.Overlay.Intercept(channel, message.Source, text) {
		return
	}
	text = stripPlaybackTimestamp(text)
	ctx.display(entities.DisplayTypeNotice, channel, sender, text, message)
	ctx.emit(entities.EventNotice, channel, sender, text)
}

// ctcpReplySummary renders a CTCP reply without its control bytes. PING
// replies carrying our epoch-millisecond token become a round-trip time.
func ctcpReplySummary(ctx *HandlerContext, sender string, command string, params string) string {
	switch command {
	case "PING":
		if sent, err := strconv.ParseInt(strings.TrimSpace(params), 10, 64); err == nil {
			rtt := ctx.now().UnixMilli() - sent
			return fmt.Sprintf("CTCP PING reply from %s: %d ms", sender, rtt)
		}
		return fmt.Sprintf("CTCP PING reply from %s: %s", sender, params)
	case "VERSION":
		return fmt.Sprintf("CTCP VERSION reply from %s: %s", sender, params)
	}
	return strings.TrimSpace(fmt.Sprintf("CTCP %s reply from %s: %s", command, sender, params))
}
