package chat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ynotnauk/go-irc/entities"
)

func handlePing(ctx *HandlerContext, message *entities.IrcMessage) {
	if len(message.Params) == 0 {
		ctx.send("PONG")
		return
	}
	ctx.send(fmt.Sprintf("PONG :%s", message.Trailing()))
}

// handlePong reads the round trip from "PONG <server> <epoch-ms>".
func handlePong(ctx *HandlerContext, message *entities.IrcMessage) {
	if len(message.Params) < 2 {
		return
	}
	sent, err := strconv.ParseInt(message.Param(1), 10, 64)
	if err != nil {
		return
	}
	ctx.emit(entities.EventPong, ctx.now().UnixMilli()-sent)
}

func handleWelcome(ctx *HandlerContext, message *entities.IrcMessage) {
	nick := message.Param(0)
	if nick != "" {
		ctx.Users.SetCurrentNick(nick)
	}
	if registrar, ok := ctx.Users.(interface{ SetRegistered(bool) }); ok {
		registrar.SetRegistered(true)
	}
	ctx.display(entities.DisplayTypeRaw, "", message.Nick(), message.Trailing(), message)
	ctx.emit(entities.EventRegistered, ctx.Users.CurrentNick())
	if ctx.Hooks.Registered != nil {
		ctx.Hooks.Registered(ctx.Users.CurrentNick())
	}
}

// handleISupport stores the KEY[=VALUE] tokens of RPL_ISUPPORT, skipping the
// leading nick and the trailing "are supported by this server".
func handleISupport(ctx *HandlerContext, message *entities.IrcMessage) {
	if ctx.ISupport != nil && len(message.Params) > 2 {
		for _, token := range message.Params[1 : len(message.Params)-1] {
			key, value, _ := strings.Cut(token, "=")
			ctx.ISupport.SetISupport(key, value)
		}
	}
	handleNumeric(ctx, message)
}

func handleEndOfMotd(ctx *HandlerContext, message *entities.IrcMessage) {
	handleNumeric(ctx, message)
	if ctx.Hooks.EndOfMotd != nil {
		ctx.Hooks.EndOfMotd()
	}
}

// handleCap applies "CAP <nick> ACK|NEW|DEL|NAK :<caps>" to the enabled
// capability set. Nothing is requested in response.
func handleCap(ctx *HandlerContext, message *entities.IrcMessage) {
	subcommand := strings.ToUpper(message.Param(1))
	capabilities := strings.Fields(message.Trailing())
	if len(message.Params) < 3 {
		capabilities = nil
	}
	var text string
	switch subcommand {
	case "ACK":
		for _, capability := range capabilities {
			name, _, _ := strings.Cut(capability, "=")
			if disabled, ok := strings.CutPrefix(name, "-"); ok {
				setCap(ctx, disabled, false)
			} else {
				setCap(ctx, name, true)
			}
		}
		text = "Capabilities acknowledged: " + strings.Join(capabilities, " ")
	case "DEL":
		for _, capability := range capabilities {
			setCap(ctx, capability, false)
		}
		text = "Capabilities removed: " + strings.Join(capabilities, " ")
	case "NEW":
		text = "Capabilities offered: " + strings.Join(capabilities, " ")
	case "NAK":
		text = "Capabilities rejected: " + strings.Join(capabilities, " ")
	case "LS", "LIST":
		text = "Capabilities available: " + strings.Join(capabilities, " ")
	default:
		handleUnknown(ctx, message)
		return
	}
	ctx.display(entities.DisplayTypeRaw, "", message.Nick(), strings.TrimSpace(text), message)
}

func setCap(ctx *HandlerContext, name string, enabled bool) {
	if ctx.Caps == nil || name == "" {
		return
	}
	ctx.Caps.SetCap(name, enabled)
}

func handleKill(ctx *HandlerContext, message *entities.IrcMessage) {
	victim := message.Param(0)
	killer := message.Nick()
	reason := message.Param(1)
	if ctx.Users.IsSelf(victim) {
		text := withReason(fmt.Sprintf("You were killed by %s", killer), reason)
		ctx.display(entities.DisplayTypeError, "", killer, text, message)
		if ctx.Hooks.Disconnect != nil {
			ctx.Hooks.Disconnect(withReason("Killed by "+killer, reason))
		}
		return
	}
	text := withReason(fmt.Sprintf("%s was killed by %s", victim, killer), reason)
	ctx.display(entities.DisplayTypeRaw, "", killer, text, message)
}

func handleError(ctx *HandlerContext, message *entities.IrcMessage) {
	reason := message.Trailing()
	ctx.display(entities.DisplayTypeError, "", message.Nick(), "Server error: "+reason, message)
	if ctx.Hooks.ConnectionLost != nil {
		ctx.Hooks.ConnectionLost(reason)
	}
}
