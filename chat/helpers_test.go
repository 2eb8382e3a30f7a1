package chat

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ynotnauk/go-irc/batch"
	"github.com/ynotnauk/go-irc/entities"
	"github.com/ynotnauk/go-irc/parser"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu       sync.Mutex
	lines    []*entities.DisplayMessage
	events   []*entities.Event
	sent     []string
	sendErr  error
	kicked   []string
	topics   map[string]*entities.TopicInfo
	ctcp     []*entities.CTCPRequest
	announce []string
}

func (r *recorder) Display(message *entities.DisplayMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, message)
}

func (r *recorder) Emit(event *entities.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) Send(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.sent = append(r.sent, line)
	return nil
}

func (r *recorder) HandleCTCP(request *entities.CTCPRequest) {
	r.ctcp = append(r.ctcp, request)
}

func (r *recorder) SetTopic(network string, channel string, topic *entities.TopicInfo) error {
	if r.topics == nil {
		r.topics = make(map[string]*entities.TopicInfo)
	}
	r.topics[network+"/"+channel] = topic
	return nil
}

func (r *recorder) GetTopic(network string, channel string) (*entities.TopicInfo, error) {
	return r.topics[network+"/"+channel], nil
}

func (r *recorder) eventsNamed(name string) []*entities.Event {
	var found []*entities.Event
	for _, event := range r.events {
		if event.Name == name {
			found = append(found, event)
		}
	}
	return found
}

func (r *recorder) linesOfType(displayType string) []*entities.DisplayMessage {
	var found []*entities.DisplayMessage
	for _, line := range r.lines {
		if line.Type == displayType {
			found = append(found, line)
		}
	}
	return found
}

// modeParser understands only simple +x/-x runs, one argument per
// membership mode.
type modeParser struct {
	calls int
}

func (p *modeParser) ParseModes(channel string, modeString string, args []string) []entities.ModeChange {
	p.calls++
	var changes []entities.ModeChange
	adding := true
	argIndex := 0
	for _, mode := range modeString {
		switch mode {
		case '+':
			adding = true
		case '-':
			adding = false
		default:
			change := entities.ModeChange{Adding: adding, Mode: mode}
			if strings.ContainsRune("ovhaq", mode) && argIndex < len(args) {
				change.Arg = args[argIndex]
				argIndex++
			}
			changes = append(changes, change)
		}
	}
	return changes
}

type testHarness struct {
	ctx        *HandlerContext
	state      *State
	record     *recorder
	dispatcher *Dispatcher
	logs       *observer.ObservedLogs
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	record := &recorder{}
	state := NewState("tester")
	ctx := &HandlerContext{
		ConnectionID: "netA",
		Network:      "netA",
		Users:        state,
		Caps:         state,
		SelfModes:    state,
		ISupport:     state,
		Display:      record,
		Events:       record,
		CTCP:         record,
		Topics:       record,
		Modes:        NewModeParser(state),
		Sender:       record,
		Logger:       zap.New(core),
		Now:          func() time.Time { return testNow },
	}
	ctx.Batches = batch.NewCoordinator("netA",
		batch.WithEvents(record),
		batch.WithDisplay(record),
		batch.WithSender(record),
		batch.WithLabelSupport(func() bool { return state.HasCap("labeled-response") }),
		batch.WithClock(func() time.Time { return testNow }),
	)
	ctx.Hooks.AnnounceChannel = func(channel string) {
		record.announce = append(record.announce, channel)
	}
	t.Cleanup(func() {
		ctx.Batches.CleanupLabels()
	})
	return &testHarness{
		ctx:        ctx,
		state:      state,
		record:     record,
		dispatcher: NewDispatcher(),
		logs:       logs,
	}
}

func (h *testHarness) feed(t *testing.T, lines ...string) {
	t.Helper()
	for _, line := range lines {
		message, err := parser.ParseRawIrcMessage(line)
		require.NoError(t, err, line)
		h.dispatcher.Dispatch(h.ctx, message)
	}
}
