// Package ctcp answers the client-to-client requests every IRC client is
// expected to handle.
package ctcp

import (
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ynotnauk/go-irc/entities"
)

const DefaultVersion = "go-irc"

// Command answers one CTCP request name.
type Command interface {
	Execute(request *entities.CTCPRequest)
}

type CommandFunc func(request *entities.CTCPRequest)

func (f CommandFunc) Execute(request *entities.CTCPRequest) {
	f(request)
}

type Responder struct {
	logger  *zap.Logger
	version string
	now     func() time.Time
	limiter *rate.Limiter

	mu       sync.RWMutex
	commands map[string][]Command
}

type Option func(*Responder)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Responder) {
		r.logger = logger
	}
}

func WithVersion(version string) Option {
	return func(r *Responder) {
		if version != "" {
			r.version = version
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Responder) {
		r.now = now
	}
}

// WithReplyLimit caps how many replies are sent per second across all
// senders. Requests over the limit are dropped.
func WithReplyLimit(perSecond float64, burst int) Option {
	return func(r *Responder) {
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewResponder returns a responder with VERSION, PING, TIME and CLIENTINFO
// registered.
func NewResponder(opts ...Option) *Responder {
	r := &Responder{
		logger:   zap.NewNop(),
		version:  DefaultVersion,
		now:      time.Now,
		limiter:  rate.NewLimiter(rate.Limit(2), 4),
		commands: make(map[string][]Command),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.On("VERSION", CommandFunc(r.answerVersion))
	r.On("PING", CommandFunc(answerPing))
	r.On("TIME", CommandFunc(r.answerTime))
	r.On("CLIENTINFO", CommandFunc(r.answerClientInfo))
	return r
}

// On adds a command for name. Several commands may answer the same name.
func (r *Responder) On(name string, command Command) {
	name = strings.ToUpper(name)
	r.mu.Lock()
	r.commands[name] = append(r.commands[name], command)
	r.mu.Unlock()
}

func (r *Responder) HandleCTCP(request *entities.CTCPRequest) {
	if request == nil {
		return
	}
	name := strings.ToUpper(request.CommandName)
	r.mu.RLock()
	commands := r.commands[name]
	r.mu.RUnlock()
	// Check if command(s) have been loaded for the request
	if len(commands) == 0 {
		r.logger.Debug("Ignoring unknown CTCP request",
			zap.String("connection", request.ConnectionID),
			zap.String("command", name),
		)
		return
	}
	if !r.limiter.AllowN(r.now(), 1) {
		r.logger.Info("Dropping CTCP request over reply limit",
			zap.String("connection", request.ConnectionID),
			zap.String("command", name),
		)
		return
	}
	for _, command := range commands {
		command.Execute(request)
	}
}

func (r *Responder) reply(request *entities.CTCPRequest, response string) {
	if request.Reply != nil {
		request.Reply(response)
	}
}

func (r *Responder) answerVersion(request *entities.CTCPRequest) {
	r.reply(request, "VERSION "+r.version)
}

func answerPing(request *entities.CTCPRequest) {
	if request.Reply == nil {
		return
	}
	request.Reply(strings.TrimSpace("PING " + request.CommandParams))
}

func (r *Responder) answerTime(request *entities.CTCPRequest) {
	r.reply(request, "TIME "+r.now().Format(time.RFC1123Z))
}

func (r *Responder) answerClientInfo(request *entities.CTCPRequest) {
	r.mu.RLock()
	names := make([]string, 0, len(r.commands)+1)
	for name := range r.commands {
		names = append(names, name)
	}
	r.mu.RUnlock()
	names = append(names, "ACTION")
	sort.Strings(names)
	r.reply(request, "CLIENTINFO "+strings.Join(names, " "))
}
