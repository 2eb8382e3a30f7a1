package ctcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/ynotnauk/go-irc/entities"
	"github.com/ynotnauk/go-irc/interfaces"
)

var _ interfaces.CTCPHandler = (*Responder)(nil)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func request(name string, params string, replies *[]string) *entities.CTCPRequest {
	return &entities.CTCPRequest{
		ConnectionID:  "netA",
		CommandName:   name,
		CommandParams: params,
		Source:        &entities.IrcMessageSource{Nickname: "alice"},
		Target:        "tester",
		Reply: func(response string) {
			*replies = append(*replies, response)
		},
	}
}

func newTestResponder(t *testing.T, opts ...Option) *Responder {
	opts = append([]Option{
		WithLogger(zaptest.NewLogger(t)),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	return NewResponder(opts...)
}

func TestResponderBuiltins(t *testing.T) {
	responder := newTestResponder(t, WithVersion("ircore 1.0"), WithReplyLimit(100, 100))
	tests := []struct {
		name   string
		params string
		want   string
	}{
		{"VERSION", "", "VERSION ircore 1.0"},
		{"ping", "1700000000000", "PING 1700000000000"},
		{"TIME", "", "TIME Fri, 01 Mar 2024 12:00:00 +0000"},
		{"CLIENTINFO", "", "CLIENTINFO ACTION CLIENTINFO PING TIME VERSION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var replies []string
			responder.HandleCTCP(request(tt.name, tt.params, &replies))
			assert.Equal(t, []string{tt.want}, replies)
		})
	}
}

func TestResponderIgnoresUnknown(t *testing.T) {
	responder := newTestResponder(t)
	var replies []string
	responder.HandleCTCP(request("FINGER", "", &replies))
	responder.HandleCTCP(nil)
	assert.Empty(t, replies)
}

func TestResponderCustomCommand(t *testing.T) {
	responder := newTestResponder(t, WithReplyLimit(100, 100))
	responder.On("source", CommandFunc(func(request *entities.CTCPRequest) {
		request.Reply("SOURCE https://example.invalid/ircore")
	}))
	var replies []string
	responder.HandleCTCP(request("SOURCE", "", &replies))
	assert.Equal(t, []string{"SOURCE https://example.invalid/ircore"}, replies)

	replies = nil
	responder.HandleCTCP(request("CLIENTINFO", "", &replies))
	assert.Equal(t, []string{"CLIENTINFO ACTION CLIENTINFO PING SOURCE TIME VERSION"}, replies)
}

func TestResponderReplyLimit(t *testing.T) {
	now := fixedNow
	responder := NewResponder(
		WithClock(func() time.Time { return now }),
		WithReplyLimit(1, 2),
	)
	var replies []string
	for i := 0; i < 5; i++ {
		responder.HandleCTCP(request("VERSION", "", &replies))
	}
	assert.Len(t, replies, 2)

	now = now.Add(time.Second)
	responder.HandleCTCP(request("VERSION", "", &replies))
	assert.Len(t, replies, 3)
	assert.Equal(t, "VERSION "+DefaultVersion, replies[2])
}
