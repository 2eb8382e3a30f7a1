package chat

import (
	"time"

	"go.uber.org/zap"

	"github.com/ynotnauk/go-irc/batch"
	"github.com/ynotnauk/go-irc/entities"
	"github.com/ynotnauk/go-irc/interfaces"
)

// SideEffects are the calls a handler makes outside of the connection's own
// state. Every field is optional.
type SideEffects struct {
	// Disconnect tears the connection down, for example after a KILL.
	Disconnect func(reason string)
	// ConnectionLost marks the connection disconnected after an ERROR line.
	ConnectionLost func(reason string)
	// AnnounceChannel may surface a channel after its topic changed.
	AnnounceChannel func(channel string)
	// ProtectionTriggered replaces display for a blocked message.
	ProtectionTriggered func(verdict *entities.ProtectionVerdict, message *entities.IrcMessage)
	// Registered fires on 001 with the confirmed nick.
	Registered func(nick string)
	// EndOfMotd fires on 376 and 422.
	EndOfMotd func()
}

// HandlerContext is the capability surface a handler works against. Only
// Users is required; a nil collaborator disables the behaviour it backs.
type HandlerContext struct {
	ConnectionID string
	Network      string

	Users     interfaces.UserListAccessor
	Caps      interfaces.CapabilityTracker
	SelfModes interfaces.SelfModeTracker
	ISupport  interfaces.ISupportTracker

	Display interfaces.DisplayEmitter
	Events  interfaces.EventEmitter

	Protection interfaces.ProtectionEvaluator
	Ignores    interfaces.IgnoreChecker
	CTCP       interfaces.CTCPHandler
	Modes      interfaces.ModeParser
	Topics     interfaces.TopicStore
	Services   interfaces.ServiceDetector
	Multiline  interfaces.MultilineAssembler
	Overlay    interfaces.MarkerInterceptor
	Sender     interfaces.Sender
	Batches    *batch.Coordinator

	Hooks  SideEffects
	Logger *zap.Logger
	Now    func() time.Time
}

func (ctx *HandlerContext) now() time.Time {
	if ctx.Now != nil {
		return ctx.Now()
	}
	return time.Now()
}

func (ctx *HandlerContext) logger() *zap.Logger {
	if ctx.Logger != nil {
		return ctx.Logger
	}
	return zap.NewNop()
}

func (ctx *HandlerContext) emit(name string, args ...any) {
	if ctx.Events == nil {
		return
	}
	ctx.Events.Emit(&entities.Event{
		ConnectionID: ctx.ConnectionID,
		Name:         name,
		Args:         args,
		Timestamp:    ctx.now(),
	})
}

// display emits a line attributed to message, which supplies the timestamp,
// msgid and tags.
func (ctx *HandlerContext) display(displayType string, channel string, from string, text string, message *entities.IrcMessage) {
	if ctx.Display == nil {
		return
	}
	line := &entities.DisplayMessage{
		ConnectionID: ctx.ConnectionID,
		Type:         displayType,
		Channel:      channel,
		From:         from,
		Text:         text,
		Timestamp:    ctx.now(),
	}
	if message != nil {
		line.Tags = message.Tags
		line.MsgID, _ = message.Tag("msgid")
		if !message.Time.IsZero() {
			line.Timestamp = message.Time
		}
	}
	ctx.Display.Display(line)
}

func (ctx *HandlerContext) send(line string) {
	if ctx.Sender == nil {
		return
	}
	if err := ctx.Sender.Send(line); err != nil {
		ctx.logger().Warn("Unable to send line",
			zap.String("connection", ctx.ConnectionID),
			zap.Error(err),
		)
	}
}

func (ctx *HandlerContext) isIgnored(source *entities.IrcMessageSource) bool {
	if ctx.Ignores == nil || source == nil {
		return false
	}
	return ctx.Ignores.IsIgnored(ctx.Network, source)
}

// conversation picks the buffer for a message from sender to target. A
// channel target is its own buffer; a DM to us files under the sender and
// our own outgoing echo files under the target. selfToSelf is set when both
// ends are the local nick.
func (ctx *HandlerContext) conversation(sender string, target string) (channel string, selfToSelf bool) {
	if ctx.Users.IsChannel(target) {
		return target, false
	}
	targetIsSelf := ctx.Users.IsSelf(target)
	if targetIsSelf && ctx.Users.IsSelf(sender) {
		return target, true
	}
	if targetIsSelf && sender != "" {
		return sender, false
	}
	return target, false
}

// maxBatchNesting bounds the walk from a member to its outermost batch.
const maxBatchNesting = 8

// replayBatch returns the history batch enclosing message, following nested
// batch tags outward. Replayed lines are displayed and emitted but never
// change connection state.
func (ctx *HandlerContext) replayBatch(message *entities.IrcMessage) (*entities.Batch, bool) {
	if ctx.Batches == nil {
		return nil, false
	}
	ref, ok := message.Tag("batch")
	for depth := 0; ok && depth < maxBatchNesting; depth++ {
		open, found := ctx.Batches.Lookup(ref)
		if !found {
			return nil, false
		}
		switch open.Type {
		case entities.BatchTypeChatHistory, entities.BatchTypeHistory, entities.BatchTypeBouncerPlayback:
			return open, true
		}
		ref, ok = open.Tags["batch"]
	}
	return nil, false
}

func (ctx *HandlerContext) replayed(message *entities.IrcMessage) bool {
	_, ok := ctx.replayBatch(message)
	return ok
}

// replayChannel is the channel a history batch was requested for, or "".
func (ctx *HandlerContext) replayChannel(message *entities.IrcMessage) string {
	open, ok := ctx.replayBatch(message)
	if !ok || len(open.Params) == 0 || !ctx.Users.IsChannel(open.Params[0]) {
		return ""
	}
	return open.Params[0]
}
