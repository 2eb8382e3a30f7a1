package interfaces

import "github.com/ynotnauk/go-irc/entities"

// CapabilityTracker exposes the consequences of capability negotiation.
type CapabilityTracker interface {
	HasCap(name string) bool
	SetCap(name string, enabled bool)
}

type SelfModeTracker interface {
	ApplySelfModes(modeString string)
	SelfModes() string
}

type ISupportTracker interface {
	SetISupport(key string, value string)
	ISupport(key string) (string, bool)
}

// MarkerInterceptor recognises out-of-band control markers inside message
// payloads. Intercept reports true when the payload was consumed and must
// not be displayed as a normal message.
type MarkerInterceptor interface {
	Intercept(conversation string, source *entities.IrcMessageSource, text string) bool
}
