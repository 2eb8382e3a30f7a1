// Package chat routes decoded protocol messages to per-command handlers.
//
// Handlers are total: missing parameters read as empty strings and unknown
// commands fall back to a raw display line. Dispatch never returns an error
// and recovers from handler panics.
package chat

import (
	"strings"

	"go.uber.org/zap"

	"github.com/ynotnauk/go-irc/entities"
)

type HandlerFunc func(ctx *HandlerContext, message *entities.IrcMessage)

type Dispatcher struct {
	handlers map[string]HandlerFunc
}

func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
	}
	d.Handle("PRIVMSG", handlePrivmsg)
	d.Handle("NOTICE", handleNotice)
	d.Handle("NICK", handleNick)
	d.Handle("KICK", handleKick)
	d.Handle("MODE", handleMode)
	d.Handle("TOPIC", handleTopic)
	d.Handle("BATCH", d.handleBatch)
	d.Handle("TAGMSG", handleTagmsg)
	d.Handle("MARKREAD", handleMarkread)
	d.Handle("REDACT", handleRedact)
	d.Handle("KILL", handleKill)
	d.Handle("FAIL", handleStandardReply)
	d.Handle("WARN", handleStandardReply)
	d.Handle("NOTE", handleStandardReply)
	d.Handle("PONG", handlePong)
	d.Handle("INVITE", handleInvite)
	d.Handle("ACCOUNT", handleAccount)
	d.Handle("AWAY", handleAway)
	d.Handle("CHGHOST", handleChghost)
	d.Handle("JOIN", handleJoin)
	d.Handle("PART", handlePart)
	d.Handle("QUIT", handleQuit)
	d.Handle("PING", handlePing)
	d.Handle("CAP", handleCap)
	d.Handle("ERROR", handleError)
	d.Handle("ACK", handleAck)
	d.Handle("001", handleWelcome)
	d.Handle("005", handleISupport)
	d.Handle("221", handleUserModeIs)
	d.Handle("332", handleTopicReply)
	d.Handle("333", handleTopicWhoTime)
	d.Handle("353", handleNamesReply)
	d.Handle("366", handleSilent)
	d.Handle("376", handleEndOfMotd)
	d.Handle("422", handleEndOfMotd)
	return d
}

// Handle registers or replaces the handler for command.
func (d *Dispatcher) Handle(command string, handler HandlerFunc) {
	d.handlers[strings.ToUpper(command)] = handler
}

func (d *Dispatcher) Dispatch(ctx *HandlerContext, message *entities.IrcMessage) {
	if ctx == nil || message == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			ctx.logger().Error("Recovered from handler panic",
				zap.String("connection", ctx.ConnectionID),
				zap.String("command", message.Command),
				zap.Any("panic", r),
			)
		}
	}()
	command := strings.ToUpper(message.Command)
	if ctx.Services != nil {
		ctx.Services.Observe(ctx.Network, message)
	}
	if absorbIntoBatch(ctx, message) {
		return
	}
	handler, ok := d.handlers[command]
	switch {
	case ok:
		handler(ctx, message)
	case isNumeric(command):
		handleNumeric(ctx, message)
	default:
		handleUnknown(ctx, message)
	}
	// A labeled BATCH is resolved when the batch closes.
	if label, ok := message.Tag("label"); ok && command != "BATCH" && ctx.Batches != nil {
		ctx.Batches.ResolveLabel(label, message)
	}
}

// absorbIntoBatch records a batch member and reports whether the member is
// summarised at batch end instead of being handled on its own.
func absorbIntoBatch(ctx *HandlerContext, message *entities.IrcMessage) bool {
	ref, ok := message.Tag("batch")
	if !ok || ctx.Batches == nil {
		return false
	}
	// A nested BATCH must still open or close its own batch
	if strings.EqualFold(message.Command, "BATCH") {
		return false
	}
	if !ctx.Batches.Add(ref, message) {
		return false
	}
	open, ok := ctx.Batches.Lookup(ref)
	if !ok {
		return false
	}
	switch open.Type {
	case entities.BatchTypeNetsplit:
		if strings.EqualFold(message.Command, "QUIT") {
			forgetUser(ctx, message.Nick())
		}
		return true
	case entities.BatchTypeNetjoin:
		if strings.EqualFold(message.Command, "JOIN") {
			ctx.Users.AddUser(message.Param(0), channelUserFrom(message))
		}
		return true
	case entities.BatchTypeMultiline:
		return true
	}
	return false
}

func (d *Dispatcher) handleBatch(ctx *HandlerContext, message *entities.IrcMessage) {
	if len(message.Params) == 0 || ctx.Batches == nil {
		return
	}
	reference := message.Params[0]
	if len(reference) < 2 {
		return
	}
	switch reference[0] {
	case '+':
		ctx.Batches.Open(reference[1:], message.Param(1), paramsFrom(message, 2), message.Tags)
	case '-':
		closed, ok := ctx.Batches.Close(reference[1:])
		if !ok || closed.Type != entities.BatchTypeMultiline {
			return
		}
		d.replayMultiline(ctx, closed)
	}
}

// replayMultiline dispatches the reassembled message, or every member on its
// own when no assembler is configured.
func (d *Dispatcher) replayMultiline(ctx *HandlerContext, closed *entities.Batch) {
	if ctx.Multiline != nil {
		if combined, ok := ctx.Multiline.Assemble(closed); ok {
			d.Dispatch(ctx, withoutBatchTag(combined))
			return
		}
	}
	for _, member := range closed.Messages {
		d.Dispatch(ctx, withoutBatchTag(member))
	}
}

func withoutBatchTag(message *entities.IrcMessage) *entities.IrcMessage {
	if _, ok := message.Tag("batch"); !ok {
		return message
	}
	stripped := *message
	stripped.Tags = make(map[string]string, len(message.Tags))
	for key, value := range message.Tags {
		if key != "batch" {
			stripped.Tags[key] = value
		}
	}
	return &stripped
}

// handleNumeric renders "[NNN] params..." with the leading own-nick
// parameter removed.
func handleNumeric(ctx *HandlerContext, message *entities.IrcMessage) {
	text := "[" + message.Command + "]"
	if rest := paramsFrom(message, 1); len(rest) > 0 {
		text += " " + strings.Join(rest, " ")
	}
	displayType := entities.DisplayTypeRaw
	if message.Command[0] == '4' || message.Command[0] == '5' {
		displayType = entities.DisplayTypeError
	}
	ctx.display(displayType, "", message.Nick(), text, message)
}

func handleUnknown(ctx *HandlerContext, message *entities.IrcMessage) {
	text := message.Raw
	if text == "" {
		text = strings.TrimSpace(message.Command + " " + strings.Join(message.Params, " "))
	}
	ctx.display(entities.DisplayTypeRaw, "", message.Nick(), text, message)
}

func handleSilent(ctx *HandlerContext, message *entities.IrcMessage) {}

func isNumeric(command string) bool {
	if len(command) != 3 {
		return false
	}
	for i := 0; i < len(command); i++ {
		if command[i] < '0' || command[i] > '9' {
			return false
		}
	}
	return true
}

func paramsFrom(message *entities.IrcMessage, index int) []string {
	if index >= len(message.Params) {
		return nil
	}
	params := make([]string, len(message.Params)-index)
	copy(params, message.Params[index:])
	return params
}
