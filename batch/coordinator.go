// Package batch tracks open IRCv3 batches and outbound label correlation for
// one connection.
//
// A batch moves from absent to open on "BATCH +ref", accumulates member
// messages, and is finalized and removed on "BATCH -ref". Labels are issued
// by SendWithLabel and are settled exactly once: by ResolveLabel, by the
// label timeout, or by CleanupLabels.
package batch

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"go.uber.org/zap"

	"github.com/ynotnauk/go-irc/entities"
	"github.com/ynotnauk/go-irc/interfaces"
)

// LabelTimeout is how long a labeled command waits for its response.
const LabelTimeout = 30 * time.Second

type Coordinator struct {
	connectionID    string
	logger          *zap.Logger
	events          interfaces.EventEmitter
	display         interfaces.DisplayEmitter
	sender          interfaces.Sender
	labelsSupported func() bool
	labelTimeout    time.Duration
	now             func() time.Time

	mu           sync.Mutex
	batches      map[string]*entities.Batch
	labels       map[string]*entities.PendingLabel
	labelCounter uint64
}

type Option func(*Coordinator)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithEvents(events interfaces.EventEmitter) Option {
	return func(c *Coordinator) {
		c.events = events
	}
}

func WithDisplay(display interfaces.DisplayEmitter) Option {
	return func(c *Coordinator) {
		c.display = display
	}
}

func WithSender(sender interfaces.Sender) Option {
	return func(c *Coordinator) {
		c.sender = sender
	}
}

// WithLabelSupport reports whether labeled-response was negotiated. It is
// consulted on every send.
func WithLabelSupport(supported func() bool) Option {
	return func(c *Coordinator) {
		c.labelsSupported = supported
	}
}

func WithLabelTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		c.labelTimeout = timeout
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

func NewCoordinator(connectionID string, opts ...Option) *Coordinator {
	coordinator := &Coordinator{
		connectionID:    connectionID,
		logger:          zap.NewNop(),
		labelsSupported: func() bool { return false },
		labelTimeout:    LabelTimeout,
		now:             time.Now,
		batches:         make(map[string]*entities.Batch),
		labels:          make(map[string]*entities.PendingLabel),
	}
	for _, opt := range opts {
		opt(coordinator)
	}
	return coordinator
}

// Open starts tracking a batch. Reopening a live ref replaces it.
func (c *Coordinator) Open(refID string, batchType string, params []string, tags map[string]string) *entities.Batch {
	batch := &entities.Batch{
		RefID:     refID,
		Type:      batchType,
		Params:    params,
		Tags:      tags,
		StartedAt: c.now(),
	}
	c.mu.Lock()
	c.batches[refID] = batch
	c.mu.Unlock()
	c.emit(entities.EventBatchStart, refID, batchType, params)
	return batch
}

// Add accumulates a member message. It reports false, and does nothing, for
// a ref that is not open.
func (c *Coordinator) Add(refID string, message *entities.IrcMessage) bool {
	if refID == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	batch, ok := c.batches[refID]
	if !ok {
		return false
	}
	batch.Messages = append(batch.Messages, message)
	return true
}

// Lookup returns the open batch for refID.
func (c *Coordinator) Lookup(refID string) (*entities.Batch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch, ok := c.batches[refID]
	return batch, ok
}

// Close finalizes and removes a batch. Closing an unknown ref is a no-op.
func (c *Coordinator) Close(refID string) (*entities.Batch, bool) {
	c.mu.Lock()
	batch, ok := c.batches[refID]
	if ok {
		delete(c.batches, refID)
	}
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	c.finalize(batch)
	return batch, true
}

// DropBatches forgets every open batch without finalizing it.
func (c *Coordinator) DropBatches() int {
	c.mu.Lock()
	dropped := len(c.batches)
	c.batches = make(map[string]*entities.Batch)
	c.mu.Unlock()
	if dropped > 0 {
		c.logger.Debug("Dropped open batches", zap.String("connection", c.connectionID), zap.Int("count", dropped))
	}
	return dropped
}

func (c *Coordinator) OpenBatches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func (c *Coordinator) finalize(batch *entities.Batch) {
	switch batch.Type {
	case entities.BatchTypeNetsplit, entities.BatchTypeNetjoin:
		c.line(entities.DisplayTypeRaw, summarizeNetBatch(batch))
		c.emit(entities.EventBatchEnd, batch.RefID, batch.Type, batch.Messages)
	case entities.BatchTypeChatHistory:
		c.emit(entities.EventChatHistoryEnd, historySummary(batch))
	case entities.BatchTypeHistory:
		c.emit(entities.EventHistoryEnd, historySummary(batch))
	case entities.BatchTypeBouncerPlayback:
		c.emit(entities.EventBouncerPlaybackEnd, historySummary(batch))
	case entities.BatchTypeCapNotify:
		c.line(entities.DisplayTypeRaw, fmt.Sprintf("Server announced %d capability changes", len(batch.Messages)))
	case entities.BatchTypeMultiline:
		// Reassembled and dispatched by the caller
	case entities.BatchTypeLabeledResponse:
		if label, ok := batch.Tags["label"]; ok {
			c.ResolveLabel(label, batch.Messages)
		}
		c.line(entities.DisplayTypeRaw, genericEndLine(batch))
	default:
		c.line(entities.DisplayTypeRaw, genericEndLine(batch))
	}
}

func summarizeNetBatch(batch *entities.Batch) string {
	nicks := make([]string, 0, len(batch.Messages))
	for _, message := range batch.Messages {
		if nick := message.Nick(); nick != "" {
			nicks = append(nicks, nick)
		}
	}
	servers := strings.Join(batch.Params, " <-> ")
	if batch.Type == entities.BatchTypeNetsplit {
		return fmt.Sprintf("Netsplit %s: %d users quit: %s", servers, len(nicks), strings.Join(nicks, ", "))
	}
	return fmt.Sprintf("Netjoin %s: %d users rejoined: %s", servers, len(nicks), strings.Join(nicks, ", "))
}

func historySummary(batch *entities.Batch) *entities.HistoryBatchSummary {
	return &entities.HistoryBatchSummary{
		RefTag:       batch.RefID,
		MessageCount: len(batch.Messages),
		Messages:     batch.Messages,
		Params:       batch.Params,
	}
}

func genericEndLine(batch *entities.Batch) string {
	return fmt.Sprintf("BATCH END %s %s (%d messages)", batch.RefID, batch.Type, len(batch.Messages))
}

// SendWithLabel sends rawCommand, prefixed with a fresh label when
// labeled-response is available. Without label support the command is sent
// unmodified and the returned label is empty.
func (c *Coordinator) SendWithLabel(rawCommand string, callback entities.LabelCallback) (string, error) {
	if c.sender == nil {
		return "", ErrNoSender
	}
	if !c.labelsSupported() {
		return "", c.sender.Send(rawCommand)
	}
	pending := &entities.PendingLabel{
		Command:   rawCommand,
		Callback:  callback,
		CreatedAt: c.now(),
	}
	c.mu.Lock()
	c.labelCounter++
	pending.Label = fmt.Sprintf("%s-%d-%d", c.connectionID, pending.CreatedAt.UnixMilli(), c.labelCounter)
	c.labels[pending.Label] = pending
	pending.Timeout = time.AfterFunc(c.labelTimeout, func() {
		c.expire(pending)
	})
	c.mu.Unlock()

	if err := c.sender.Send(frameLabel(pending.Label, rawCommand)); err != nil {
		c.mu.Lock()
		if c.labels[pending.Label] == pending {
			delete(c.labels, pending.Label)
			pending.Timeout.Stop()
		}
		c.mu.Unlock()
		return "", fmt.Errorf("send labeled command: %w", err)
	}
	return pending.Label, nil
}

func frameLabel(label string, rawCommand string) string {
	tag := "label=" + ircmsg.EscapeTagValue(label)
	if strings.HasPrefix(rawCommand, "@") {
		return "@" + tag + ";" + rawCommand[1:]
	}
	return "@" + tag + " " + rawCommand
}

// ResolveLabel settles label with response. The callback runs at most once;
// a labeled-response event is emitted either way.
func (c *Coordinator) ResolveLabel(label string, response any) {
	c.mu.Lock()
	pending, ok := c.labels[label]
	if ok {
		delete(c.labels, label)
		pending.Timeout.Stop()
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("Response for unknown label", zap.String("connection", c.connectionID), zap.String("label", label))
		c.emit(entities.EventLabeledResponse, label, "", response)
		return
	}
	if pending.Callback != nil {
		pending.Callback(&entities.LabelResult{
			Label:    label,
			Command:  pending.Command,
			Response: response,
		})
	}
	c.emit(entities.EventLabeledResponse, label, pending.Command, response)
}

func (c *Coordinator) expire(pending *entities.PendingLabel) {
	c.mu.Lock()
	if c.labels[pending.Label] != pending {
		c.mu.Unlock()
		return
	}
	delete(c.labels, pending.Label)
	c.mu.Unlock()

	c.logger.Debug("Label timed out", zap.String("connection", c.connectionID), zap.String("label", pending.Label))
	if pending.Callback != nil {
		pending.Callback(&entities.LabelResult{
			Label:   pending.Label,
			Command: pending.Command,
			Error:   entities.LabelErrorTimeout,
		})
	}
}

// CleanupLabels fails every pending label with LabelErrorDisconnected and
// returns how many were pending.
func (c *Coordinator) CleanupLabels() int {
	c.mu.Lock()
	pendings := make([]*entities.PendingLabel, 0, len(c.labels))
	for _, pending := range c.labels {
		pending.Timeout.Stop()
		pendings = append(pendings, pending)
	}
	c.labels = make(map[string]*entities.PendingLabel)
	c.mu.Unlock()

	for _, pending := range pendings {
		if pending.Callback != nil {
			pending.Callback(&entities.LabelResult{
				Label:   pending.Label,
				Command: pending.Command,
				Error:   entities.LabelErrorDisconnected,
			})
		}
	}
	if len(pendings) > 0 {
		c.logger.Info("Cleared pending labels", zap.String("connection", c.connectionID), zap.Int("count", len(pendings)))
	}
	return len(pendings)
}

func (c *Coordinator) PendingLabels() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.labels)
}

func (c *Coordinator) emit(name string, args ...any) {
	if c.events == nil {
		return
	}
	c.events.Emit(&entities.Event{
		ConnectionID: c.connectionID,
		Name:         name,
		Args:         args,
		Timestamp:    c.now(),
	})
}

func (c *Coordinator) line(displayType string, text string) {
	if c.display == nil {
		return
	}
	c.display.Display(&entities.DisplayMessage{
		ConnectionID: c.connectionID,
		Type:         displayType,
		Text:         text,
		Timestamp:    c.now(),
	})
}
