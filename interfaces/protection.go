package interfaces

import "github.com/ynotnauk/go-irc/entities"

// ProtectionEvaluator returns a nil verdict, or a verdict with Block false,
// to let a message through.
type ProtectionEvaluator interface {
	Evaluate(input *entities.ProtectionInput) *entities.ProtectionVerdict
}

type IgnoreChecker interface {
	IsIgnored(network string, source *entities.IrcMessageSource) bool
}
