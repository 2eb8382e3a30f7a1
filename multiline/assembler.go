// Package multiline folds draft/multiline batches back into one message.
package multiline

import (
	"strings"

	"go.uber.org/zap"

	"github.com/ynotnauk/go-irc/entities"
)

const (
	concatTag = "draft/multiline-concat"

	DefaultMaxBytes = 4096
	DefaultMaxLines = 100
)

type Assembler struct {
	logger   *zap.Logger
	maxBytes int
	maxLines int
}

type Option func(*Assembler)

func WithLogger(logger *zap.Logger) Option {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// WithLimits mirrors the max-bytes and max-lines values of the
// draft/multiline capability. Zero keeps the default.
func WithLimits(maxBytes int, maxLines int) Option {
	return func(a *Assembler) {
		if maxBytes > 0 {
			a.maxBytes = maxBytes
		}
		if maxLines > 0 {
			a.maxLines = maxLines
		}
	}
}

func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{
		logger:   zap.NewNop(),
		maxBytes: DefaultMaxBytes,
		maxLines: DefaultMaxLines,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble joins the PRIVMSG or NOTICE members of a closed batch. Lines are
// joined with "\n" unless flagged with draft/multiline-concat. It reports
// false when the batch cannot be combined, leaving the caller to replay the
// members.
func (a *Assembler) Assemble(batch *entities.Batch) (*entities.IrcMessage, bool) {
	if batch == nil || batch.Type != entities.BatchTypeMultiline || len(batch.Messages) == 0 {
		return nil, false
	}
	if len(batch.Messages) > a.maxLines {
		a.logger.Debug("Multiline batch over line limit",
			zap.String("batch", batch.RefID),
			zap.Int("lines", len(batch.Messages)),
		)
		return nil, false
	}
	first := batch.Messages[0]
	target := first.Param(0)
	if len(batch.Params) > 0 {
		target = batch.Params[0]
	}
	var text strings.Builder
	for i, member := range batch.Messages {
		if member.Command != first.Command || (member.Command != "PRIVMSG" && member.Command != "NOTICE") {
			a.logger.Debug("Multiline batch has mixed commands",
				zap.String("batch", batch.RefID),
				zap.String("command", member.Command),
			)
			return nil, false
		}
		if !strings.EqualFold(member.Param(0), target) {
			return nil, false
		}
		if _, concat := member.Tag(concatTag); i > 0 && !concat {
			text.WriteByte('\n')
		}
		text.WriteString(member.Param(1))
	}
	if text.Len() > a.maxBytes {
		a.logger.Debug("Multiline batch over byte limit",
			zap.String("batch", batch.RefID),
			zap.Int("bytes", text.Len()),
		)
		return nil, false
	}

	tags := make(map[string]string, len(first.Tags)+len(batch.Tags))
	for key, value := range first.Tags {
		if key != concatTag {
			tags[key] = value
		}
	}
	// The opening BATCH line carries the msgid and time of the whole message
	for key, value := range batch.Tags {
		if key != "label" && key != "batch" {
			tags[key] = value
		}
	}
	combined := &entities.IrcMessage{
		Command: first.Command,
		Raw:     first.Raw,
		Params:  []string{target, text.String()},
		Source:  first.Source,
		Tags:    tags,
		Time:    first.Time,
	}
	return combined, true
}
