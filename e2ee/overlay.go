// Package e2ee layers encrypted direct messages over ordinary PRIVMSG
// traffic. Control markers at the start of a payload drive the key
// exchange; every cryptographic operation is delegated to an
// interfaces.EncryptedDMProvider.
//
//	[e2e:request] <offer>   peer asks to start an encrypted conversation
//	[e2e:accept] <offer>    peer accepted and sent its key
//	[e2e:reject]            peer declined
//	[e2e:msg] <ciphertext>  encrypted message
package e2ee

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ynotnauk/go-irc/entities"
	"github.com/ynotnauk/go-irc/interfaces"
)

const (
	MarkerRequest = "[e2e:request]"
	MarkerAccept  = "[e2e:accept]"
	MarkerReject  = "[e2e:reject]"
	MarkerMessage = "[e2e:msg]"
)

var markers = []string{MarkerRequest, MarkerAccept, MarkerReject, MarkerMessage}

// ParseMarker splits a payload into its marker and the remainder.
func ParseMarker(text string) (marker string, payload string, ok bool) {
	for _, candidate := range markers {
		if rest, found := strings.CutPrefix(text, candidate); found {
			if rest != "" && rest[0] != ' ' {
				continue
			}
			return candidate, strings.TrimSpace(rest), true
		}
	}
	return "", "", false
}

// Overlay serves one connection.
type Overlay struct {
	connectionID string
	network      string
	provider     interfaces.EncryptedDMProvider
	sender       interfaces.Sender
	users        interfaces.UserListAccessor
	display      interfaces.DisplayEmitter
	events       interfaces.EventEmitter
	logger       *zap.Logger
	now          func() time.Time

	mu      sync.Mutex
	pending map[string]string
}

type Option func(*Overlay)

func WithLogger(logger *zap.Logger) Option {
	return func(o *Overlay) {
		o.logger = logger
	}
}

func WithDisplay(display interfaces.DisplayEmitter) Option {
	return func(o *Overlay) {
		o.display = display
	}
}

func WithEvents(events interfaces.EventEmitter) Option {
	return func(o *Overlay) {
		o.events = events
	}
}

// WithUsers lets the overlay recognise channels and our own echoed markers.
func WithUsers(users interfaces.UserListAccessor) Option {
	return func(o *Overlay) {
		o.users = users
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Overlay) {
		o.now = now
	}
}

func NewOverlay(connectionID string, network string, provider interfaces.EncryptedDMProvider, sender interfaces.Sender, opts ...Option) *Overlay {
	overlay := &Overlay{
		connectionID: connectionID,
		network:      network,
		provider:     provider,
		sender:       sender,
		logger:       zap.NewNop(),
		now:          time.Now,
		pending:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(overlay)
	}
	return overlay
}

// Intercept consumes marker payloads in direct conversations. conversation
// is the peer's nick in both directions, so our own echoed ciphertext
// decrypts with the same shared key.
func (o *Overlay) Intercept(conversation string, source *entities.IrcMessageSource, text string) bool {
	marker, payload, ok := ParseMarker(text)
	if !ok || conversation == "" {
		return false
	}
	if o.users != nil && o.users.IsChannel(conversation) {
		return false
	}
	from := conversation
	if source != nil && source.Nickname != "" {
		from = source.Nickname
	}
	fromSelf := o.users != nil && o.users.IsSelf(from)

	switch marker {
	case MarkerRequest:
		if fromSelf {
			return true
		}
		o.mu.Lock()
		o.pending[conversation] = payload
		o.mu.Unlock()
		o.notice(conversation, fmt.Sprintf("%s wants to start an encrypted conversation", conversation))
		o.emit(entities.EventE2ERequest, conversation)
	case MarkerAccept:
		if fromSelf {
			return true
		}
		if err := o.provider.AcceptOffer(o.network, conversation, payload); err != nil {
			o.logger.Warn("Rejected key offer", zap.String("connection", o.connectionID), zap.String("peer", conversation), zap.Error(err))
			o.notice(conversation, fmt.Sprintf("Unable to establish an encrypted conversation with %s", conversation))
			return true
		}
		o.established(conversation)
	case MarkerReject:
		if fromSelf {
			return true
		}
		o.mu.Lock()
		delete(o.pending, conversation)
		o.mu.Unlock()
		o.provider.Forget(o.network, conversation)
		o.notice(conversation, fmt.Sprintf("%s rejected the encrypted conversation", conversation))
		o.emit(entities.EventE2ERejected, conversation)
	case MarkerMessage:
		plaintext, err := o.provider.Decrypt(o.network, conversation, payload)
		if err != nil {
			o.notice(conversation, fmt.Sprintf("Unable to decrypt message from %s", from))
			return true
		}
		if o.display != nil {
			o.display.Display(&entities.DisplayMessage{
				ConnectionID: o.connectionID,
				Type:         entities.DisplayTypeMessage,
				Channel:      conversation,
				From:         from,
				Text:         plaintext,
				Timestamp:    o.now(),
				Encrypted:    true,
			})
		}
		o.emit(entities.EventMessage, conversation, from, plaintext)
	}
	return true
}

// RequestExchange sends our key offer to peer.
func (o *Overlay) RequestExchange(peer string) error {
	offer, err := o.provider.LocalOffer(o.network)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	return o.send(peer, MarkerRequest+" "+offer)
}

// AcceptExchange completes a pending request from peer and answers with our
// own offer.
func (o *Overlay) AcceptExchange(peer string) error {
	o.mu.Lock()
	offer, ok := o.pending[peer]
	delete(o.pending, peer)
	o.mu.Unlock()
	if !ok {
		return ErrNoPendingRequest
	}
	if err := o.provider.AcceptOffer(o.network, peer, offer); err != nil {
		return fmt.Errorf("accept offer from %s: %w", peer, err)
	}
	local, err := o.provider.LocalOffer(o.network)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := o.send(peer, MarkerAccept+" "+local); err != nil {
		return err
	}
	o.established(peer)
	return nil
}

func (o *Overlay) RejectExchange(peer string) error {
	o.mu.Lock()
	delete(o.pending, peer)
	o.mu.Unlock()
	o.provider.Forget(o.network, peer)
	return o.send(peer, MarkerReject)
}

func (o *Overlay) SendEncrypted(peer string, text string) error {
	ciphertext, err := o.provider.Encrypt(o.network, peer, text)
	if err != nil {
		return fmt.Errorf("encrypt for %s: %w", peer, err)
	}
	return o.send(peer, MarkerMessage+" "+ciphertext)
}

// PendingRequests lists peers whose requests await an answer.
func (o *Overlay) PendingRequests() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	peers := make([]string, 0, len(o.pending))
	for peer := range o.pending {
		peers = append(peers, peer)
	}
	return peers
}

func (o *Overlay) established(peer string) {
	o.notice(peer, fmt.Sprintf("Encrypted conversation with %s established", peer))
	o.emit(entities.EventE2EEstablished, peer)
}

func (o *Overlay) send(peer string, payload string) error {
	if o.sender == nil {
		return ErrNoSender
	}
	return o.sender.Send(fmt.Sprintf("PRIVMSG %s :%s", peer, payload))
}

func (o *Overlay) notice(conversation string, text string) {
	if o.display == nil {
		return
	}
	o.display.Display(&entities.DisplayMessage{
		ConnectionID: o.connectionID,
		Type:         entities.DisplayTypeE2E,
		Channel:      conversation,
		Text:         text,
		Timestamp:    o.now(),
	})
}

func (o *Overlay) emit(name string, args ...any) {
	if o.events == nil {
		return
	}
	o.events.Emit(&entities.Event{
		ConnectionID: o.connectionID,
		Name:         name,
		Args:         args,
		Timestamp:    o.now(),
	})
}
