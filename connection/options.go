package connection

import (
	"time"

	"go.uber.org/zap"

	"github.com/ynotnauk/go-irc/chat"
	"github.com/ynotnauk/go-irc/interfaces"
)

type Option func(*Manager)

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithDialer(dialer interfaces.Dialer) Option {
	return func(m *Manager) {
		m.dialer = dialer
	}
}

func WithDisplay(display interfaces.DisplayEmitter) Option {
	return func(m *Manager) {
		m.display = display
	}
}

func WithEvents(events interfaces.EventEmitter) Option {
	return func(m *Manager) {
		m.events = events
	}
}

func WithReconnectRegistrar(registrar interfaces.ReconnectRegistrar) Option {
	return func(m *Manager) {
		m.reconnect = registrar
	}
}

func WithServiceDetector(detector interfaces.ServiceDetector) Option {
	return func(m *Manager) {
		m.detector = detector
	}
}

func WithIdentityProfiles(profiles interfaces.IdentityProfileStore) Option {
	return func(m *Manager) {
		m.profiles = profiles
	}
}

// WithCredentials overrides the NickServ credentials carried in the network
// config.
func WithCredentials(credentials interfaces.CredentialProvider) Option {
	return func(m *Manager) {
		m.credentials = credentials
	}
}

func WithProtection(protection interfaces.ProtectionEvaluator) Option {
	return func(m *Manager) {
		m.protection = protection
	}
}

func WithIgnores(ignores interfaces.IgnoreChecker) Option {
	return func(m *Manager) {
		m.ignores = ignores
	}
}

func WithCTCP(handler interfaces.CTCPHandler) Option {
	return func(m *Manager) {
		m.ctcp = handler
	}
}

func WithModeParser(parser interfaces.ModeParser) Option {
	return func(m *Manager) {
		m.modes = parser
	}
}

func WithTopicStore(topics interfaces.TopicStore) Option {
	return func(m *Manager) {
		m.topics = topics
	}
}

func WithMultiline(assembler interfaces.MultilineAssembler) Option {
	return func(m *Manager) {
		m.multiline = assembler
	}
}

// WithOverlay builds the marker interceptor for each new connection.
func WithOverlay(factory func(connection *Context) interfaces.MarkerInterceptor) Option {
	return func(m *Manager) {
		m.overlay = factory
	}
}

func WithChannelAnnouncer(announce func(connectionID string, channel string)) Option {
	return func(m *Manager) {
		m.announce = announce
	}
}

func WithDispatcher(dispatcher *chat.Dispatcher) Option {
	return func(m *Manager) {
		m.dispatcher = dispatcher
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}
