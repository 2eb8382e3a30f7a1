package chat

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ynotnauk/go-irc/entities"
	"github.com/ynotnauk/go-irc/protection"
)

func TestDispatchNeverPanicsOnBareCommands(t *testing.T) {
	h := newHarness(t)
	for command := range h.dispatcher.handlers {
		h.dispatcher.Dispatch(h.ctx, &entities.IrcMessage{Command: command})
		h.dispatcher.Dispatch(h.ctx, &entities.IrcMessage{
			Command: command,
			Source:  &entities.IrcMessageSource{Nickname: "alice", Username: "u", Host: "h"},
		})
		h.dispatcher.Dispatch(h.ctx, &entities.IrcMessage{
			Command: command,
			Params:  []string{"tester"},
			Source:  &entities.IrcMessageSource{Host: "irc.example.net"},
		})
	}
	assert.Zero(t, h.logs.FilterMessage("Recovered from handler panic").Len())
}

func TestDispatchNeverPanicsWithoutCollaborators(t *testing.T) {
	ctx := &HandlerContext{Users: NewState("tester")}
	dispatcher := NewDispatcher()
	lines := []*entities.IrcMessage{
		{Command: "PRIVMSG", Params: []string{"#chan", "\x01VERSION\x01"}},
		{Command: "MODE", Params: []string{"tester", "+i"}},
		{Command: "TOPIC", Params: []string{"#chan", "hi"}},
		{Command: "BATCH", Params: []string{"+r", "netsplit"}},
		{Command: "KILL", Params: []string{"tester", "bye"}},
		{Command: "001", Params: []string{"tester", "welcome"}},
		{Command: "376", Params: []string{"tester", "end"}},
	}
	for _, line := range lines {
		assert.NotPanics(t, func() {
			dispatcher.Dispatch(ctx, line)
		})
	}
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	h := newHarness(t)
	h.dispatcher.Handle("BOOM", func(ctx *HandlerContext, message *entities.IrcMessage) {
		panic("boom")
	})
	assert.NotPanics(t, func() {
		h.feed(t, ":server BOOM")
	})
	assert.Equal(t, 1, h.logs.FilterMessage("Recovered from handler panic").Len())
}

func TestDispatchIsCaseInsensitive(t *testing.T) {
	h := newHarness(t)
	h.feed(t, ":alice!user@host privmsg #chan :Hello")
	require.Len(t, h.record.lines, 1)
	assert.Equal(t, entities.DisplayTypeMessage, h.record.lines[0].Type)
}

func TestUnknownCommandFallsBackToRaw(t *testing.T) {
	h := newHarness(t)
	h.feed(t, ":server.example WHATEVER a b :c d")
	require.Len(t, h.record.lines, 1)
	assert.Equal(t, entities.DisplayTypeRaw, h.record.lines[0].Type)
	assert.Equal(t, ":server.example WHATEVER a b :c d", h.record.lines[0].Text)
}

func TestNumericFallback(t *testing.T) {
	h := newHarness(t)
	h.feed(t,
		":server.example 251 tester :There are 3 users",
		":server.example 433 * tester :Nickname is already in use",
	)
	require.Len(t, h.record.lines, 2)
	assert.Equal(t, "[251] There are 3 users", h.record.lines[0].Text)
	assert.Equal(t, entities.DisplayTypeRaw, h.record.lines[0].Type)
	assert.Equal(t, "[433] tester Nickname is already in use", h.record.lines[1].Text)
	assert.Equal(t, entities.DisplayTypeError, h.record.lines[1].Type)
}

func TestNetsplitBatchSummarisesMembers(t *testing.T) {
	h := newHarness(t)
	h.state.AddChannel("#chan")
	h.state.AddUser("#chan", entities.ChannelUser{Nick: "bob"})
	h.state.AddUser("#chan", entities.ChannelUser{Nick: "carol"})
	h.feed(t,
		"BATCH +ref1 netsplit srvA srvB",
		"@batch=ref1 :bob!u@h QUIT :srvA srvB",
		"@batch=ref1 :carol!u@h QUIT :srvA srvB",
		"BATCH -ref1",
	)
	require.Len(t, h.record.lines, 1)
	assert.Contains(t, h.record.lines[0].Text, "Netsplit")
	assert.Empty(t, h.record.eventsNamed(entities.EventQuit))
	end := h.record.eventsNamed(entities.EventBatchEnd)
	require.Len(t, end, 1)
	assert.Equal(t, "ref1", end[0].Arg(0))
	assert.Equal(t, "netsplit", end[0].Arg(1))
	members, ok := end[0].Arg(2).([]*entities.IrcMessage)
	require.True(t, ok)
	assert.Len(t, members, 2)
	assert.Empty(t, h.state.Users("#chan"))
}

func TestChathistoryMembersDisplayIndividually(t *testing.T) {
	h := newHarness(t)
	h.feed(t,
		"BATCH +h1 chathistory #chan",
		"@batch=h1;time=2024-01-01T10:00:00.000Z :alice!u@h PRIVMSG #chan :one",
		"@batch=h1;time=2024-01-01T10:00:01.000Z :bob!u@h PRIVMSG #chan :two",
		"BATCH -h1",
	)
	require.Len(t, h.record.linesOfType(entities.DisplayTypeMessage), 2)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), h.record.lines[0].Timestamp.UTC())
	end := h.record.eventsNamed(entities.EventChatHistoryEnd)
	require.Len(t, end, 1)
	summary := end[0].Arg(0).(*entities.HistoryBatchSummary)
	assert.Equal(t, "h1", summary.RefTag)
	assert.Equal(t, 2, summary.MessageCount)
	assert.Equal(t, []string{"#chan"}, summary.Params)
}

func TestBatchEdgeCases(t *testing.T) {
	h := newHarness(t)
	h.feed(t, "BATCH", "BATCH -nope", "BATCH +")
	assert.Empty(t, h.record.lines)
	assert.Empty(t, h.record.events)
	assert.Zero(t, h.ctx.Batches.OpenBatches())
}

func TestMemberOfUnknownBatchDispatchesNormally(t *testing.T) {
	h := newHarness(t)
	h.feed(t, "@batch=ghost :alice!u@h PRIVMSG #chan :still here")
	require.Len(t, h.record.lines, 1)
	assert.Equal(t, "still here", h.record.lines[0].Text)
}

type joiningAssembler struct{}

func (joiningAssembler) Assemble(closed *entities.Batch) (*entities.IrcMessage, bool) {
	if len(closed.Messages) == 0 {
		return nil, false
	}
	text := ""
	for i, member := range closed.Messages {
		if i > 0 {
			text += "\n"
		}
		text += member.Param(1)
	}
	first := closed.Messages[0]
	return &entities.IrcMessage{
		Command: "PRIVMSG",
		Source:  first.Source,
		Params:  []string{closed.Params[0], text},
		Tags:    first.Tags,
		Time:    first.Time,
	}, true
}

func TestMultilineBatchDispatchedOnce(t *testing.T) {
	h := newHarness(t)
	h.ctx.Multiline = joiningAssembler{}
	h.feed(t,
		"BATCH +m1 draft/multiline #chan",
		"@batch=m1 :alice!u@h PRIVMSG #chan :first",
		"@batch=m1 :alice!u@h PRIVMSG #chan :second",
		"BATCH -m1",
	)
	messages := h.record.linesOfType(entities.DisplayTypeMessage)
	require.Len(t, messages, 1)
	assert.Equal(t, "first\nsecond", messages[0].Text)
	assert.Len(t, h.record.linesOfType(entities.DisplayTypeRaw), 0)
}

func TestMultilineWithoutAssemblerReplaysMembers(t *testing.T) {
	h := newHarness(t)
	h.feed(t,
		"BATCH +m1 draft/multiline #chan",
		"@batch=m1 :alice!u@h PRIVMSG #chan :first",
		"@batch=m1 :alice!u@h PRIVMSG #chan :second",
		"BATCH -m1",
	)
	assert.Len(t, h.record.linesOfType(entities.DisplayTypeMessage), 2)
}

func TestInboundLabelResolvesPendingCommand(t *testing.T) {
	h := newHarness(t)
	h.state.SetCap("labeled-response", true)
	var results []*entities.LabelResult
	label, err := h.ctx.Batches.SendWithLabel("WHOIS bob", func(result *entities.LabelResult) {
		results = append(results, result)
	})
	require.NoError(t, err)
	require.NotEmpty(t, label)
	h.feed(t, "@label="+label+" :server.example 318 tester bob :End of /WHOIS list")
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Error)
	assert.Equal(t, "WHOIS bob", results[0].Command)
	assert.Equal(t, "318", results[0].Response.(*entities.IrcMessage).Command)
	assert.Zero(t, h.ctx.Batches.PendingLabels())
}

func TestLabeledAckResolvesWithoutDisplay(t *testing.T) {
	h := newHarness(t)
	h.state.SetCap("labeled-response", true)
	resolved := 0
	label, err := h.ctx.Batches.SendWithLabel("PRIVMSG #chan :hi", func(result *entities.LabelResult) {
		resolved++
	})
	require.NoError(t, err)
	h.feed(t, "@label="+label+" :server.example ACK")
	assert.Equal(t, 1, resolved)
	assert.Empty(t, h.record.lines)
}

func TestLabeledResponseBatchResolvesAtClose(t *testing.T) {
	h := newHarness(t)
	h.state.SetCap("labeled-response", true)
	var result *entities.LabelResult
	label, err := h.ctx.Batches.SendWithLabel("WHOIS bob", func(r *entities.LabelResult) {
		result = r
	})
	require.NoError(t, err)
	h.feed(t,
		"@label="+label+" BATCH +w1 labeled-response",
		"@batch=w1 :server.example 311 tester bob u h * :Bob",
		"@batch=w1 :server.example 318 tester bob :End of /WHOIS list",
	)
	assert.Nil(t, result)
	h.feed(t, "BATCH -w1")
	require.NotNil(t, result)
	members, ok := result.Response.([]*entities.IrcMessage)
	require.True(t, ok)
	assert.Len(t, members, 2)
}

type observingDetector struct {
	seen []string
}

func (d *observingDetector) Observe(network string, message *entities.IrcMessage) {
	d.seen = append(d.seen, network+":"+message.Command)
}

func (d *observingDetector) ClearCache(network string) {}

func TestDispatchFeedsServiceDetector(t *testing.T) {
	h := newHarness(t)
	detector := &observingDetector{}
	h.ctx.Services = detector
	h.feed(t, ":server.example 005 tester NETWORK=Example :are supported by this server")
	assert.Equal(t, []string{"netA:005"}, detector.seen)
}

func TestHistoryReplayBypassesFloodGuard(t *testing.T) {
	h := newHarness(t)
	h.ctx.Protection = protection.NewFloodGuard(protection.DefaultMessagesPerSecond, protection.DefaultBurst)
	lines := []string{"BATCH +h1 chathistory #chan"}
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf("@batch=h1 :alice!u@h PRIVMSG #chan :line %d", i))
	}
	lines = append(lines, "BATCH -h1")
	h.feed(t, lines...)
	assert.Len(t, h.record.linesOfType(entities.DisplayTypeMessage), 10)
	assert.Empty(t, h.record.eventsNamed(entities.EventProtectionTriggered))

	// Live traffic is still limited
	for i := 0; i < 10; i++ {
		h.feed(t, fmt.Sprintf(":alice!u@h PRIVMSG #chan :live %d", i))
	}
	assert.NotEmpty(t, h.record.eventsNamed(entities.EventProtectionTriggered))
}

func TestHistoryReplayLeavesStateAlone(t *testing.T) {
	h := newHarness(t)
	h.state.AddChannel("#chan")
	h.state.AddUser("#chan", entities.ChannelUser{Nick: "bob"})
	h.state.AddUser("#chan", entities.ChannelUser{Nick: "carol"})
	h.state.AddUser("#chan", entities.ChannelUser{Nick: "tester"})
	h.feed(t,
		"BATCH +h1 chathistory #chan",
		"@batch=h1 :bob!u@h PART #chan :later",
		"@batch=h1 :carol!u@h QUIT :gone",
		"@batch=h1 :dave!u@h JOIN #chan",
		"@batch=h1 :tester!u@h NICK :oldme",
		"@batch=h1 :op!u@h KICK #chan tester",
		"@batch=h1 :op!u@h TOPIC #chan :old topic",
		"BATCH -h1",
	)

	assert.Equal(t, "tester", h.state.CurrentNick())
	assert.Contains(t, h.state.Channels(), "#chan")
	var nicks []string
	for _, user := range h.state.Users("#chan") {
		nicks = append(nicks, user.Nick)
	}
	assert.ElementsMatch(t, []string{"bob", "carol", "tester"}, nicks)
	assert.Empty(t, h.record.topics)

	quits := h.record.linesOfType(entities.DisplayTypeQuit)
	require.Len(t, quits, 1)
	assert.Equal(t, "#chan", quits[0].Channel)
	nickLines := h.record.linesOfType(entities.DisplayTypeNick)
	require.Len(t, nickLines, 1)
	assert.Equal(t, "#chan", nickLines[0].Channel)
	assert.Len(t, h.record.eventsNamed(entities.EventQuit), 1)
	assert.Len(t, h.record.eventsNamed(entities.EventNick), 1)
	assert.Len(t, h.record.eventsNamed(entities.EventKick), 1)
}

func TestNestedHistoryBatchIsReplay(t *testing.T) {
	h := newHarness(t)
	h.state.AddChannel("#chan")
	h.state.AddUser("#chan", entities.ChannelUser{Nick: "bob"})
	h.feed(t,
		"BATCH +outer chathistory #chan",
		"@batch=outer BATCH +inner labeled-response",
		"@batch=inner :bob!u@h PART #chan",
		"@batch=outer BATCH -inner",
		"BATCH -outer",
	)
	require.Len(t, h.state.Users("#chan"), 1)
	assert.Len(t, h.record.linesOfType(entities.DisplayTypePart), 1)
}

func TestNestedBatchInsideNetsplitOpens(t *testing.T) {
	h := newHarness(t)
	h.feed(t,
		"BATCH +outer netsplit srvA srvB",
		"@batch=outer BATCH +inner chathistory #chan",
	)
	inner, ok := h.ctx.Batches.Lookup("inner")
	require.True(t, ok)
	assert.Equal(t, entities.BatchTypeChatHistory, inner.Type)
	outer, ok := h.ctx.Batches.Lookup("outer")
	require.True(t, ok)
	assert.Empty(t, outer.Messages)

	h.feed(t, "@batch=outer BATCH -inner")
	_, ok = h.ctx.Batches.Lookup("inner")
	assert.False(t, ok)
	assert.Len(t, h.record.eventsNamed(entities.EventChatHistoryEnd), 1)
}
