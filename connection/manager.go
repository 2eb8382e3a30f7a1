// Package connection owns the set of live server connections.
//
// A Manager is constructed once and shared by reference. Connection ids are
// unique among live contexts; at most one is active, and the first
// connection made becomes the primary until it disconnects.
package connection

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ynotnauk/go-irc/batch"
	"github.com/ynotnauk/go-irc/chat"
	"github.com/ynotnauk/go-irc/entities"
	"github.com/ynotnauk/go-irc/interfaces"
)

type createdSubscription struct {
	id      string
	handler func(connection *Context)
}

type Manager struct {
	logger      *zap.Logger
	dialer      interfaces.Dialer
	display     interfaces.DisplayEmitter
	events      interfaces.EventEmitter
	reconnect   interfaces.ReconnectRegistrar
	detector    interfaces.ServiceDetector
	profiles    interfaces.IdentityProfileStore
	credentials interfaces.CredentialProvider
	protection  interfaces.ProtectionEvaluator
	ignores     interfaces.IgnoreChecker
	ctcp        interfaces.CTCPHandler
	modes       interfaces.ModeParser
	topics      interfaces.TopicStore
	multiline   interfaces.MultilineAssembler
	overlay     func(connection *Context) interfaces.MarkerInterceptor
	announce    func(connectionID string, channel string)
	dispatcher  *chat.Dispatcher
	now         func() time.Time

	mu          sync.RWMutex
	connections map[string]*Context
	order       []string
	activeID    string
	primaryID   string
	onCreated   []createdSubscription
}

func NewManager(opts ...Option) *Manager {
	manager := &Manager{
		logger:      zap.NewNop(),
		dispatcher:  chat.NewDispatcher(),
		now:         time.Now,
		connections: make(map[string]*Context),
	}
	for _, opt := range opts {
		opt(manager)
	}
	return manager
}

// Connect dials network and starts a new connection. The requested id is
// reused when it is free or its previous connection is disconnected;
// otherwise the smallest free "<id> (<n>)" is allocated.
func (m *Manager) Connect(ctx context.Context, requestedID string, network *entities.NetworkConfig, connection *entities.ConnectionConfig) (string, error) {
	if requestedID == "" {
		return "", ErrBlankConnectionID
	}
	if network == nil {
		return "", ErrMissingNetworkConfig
	}
	if m.dialer == nil {
		return "", ErrNoDialer
	}
	connection, profile := m.resolveIdentity(network, connection)
	if connection.Nick == "" {
		return "", ErrBlankNick
	}
	transport, err := m.dialer.Dial(ctx, network)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", network.Host, err)
	}

	m.mu.Lock()
	id, stale := m.allocateID(requestedID)
	c := m.newContext(id, network, connection, transport)
	m.connections[id] = c
	if stale == nil {
		m.order = append(m.order, id)
	}
	m.activeID = id
	if m.primaryID == "" {
		m.primaryID = id
	}
	subscribers := make([]createdSubscription, len(m.onCreated))
	copy(subscribers, m.onCreated)
	m.mu.Unlock()

	if stale != nil {
		if err := m.teardown(id, stale, ""); err != nil {
			m.logger.Debug("Closing stale connection failed", zap.String("connection", id), zap.Error(err))
		}
	}

	m.logger.Info("Connecting",
		zap.String("connection", id),
		zap.String("host", network.Host),
		zap.Int("port", network.Port),
		zap.Bool("tls", network.TLS),
	)
	if network.TLS && network.InsecureSkipVerify {
		c.line(entities.DisplayTypeError, fmt.Sprintf("Warning: TLS certificate verification is disabled for %s", network.Host))
	}
	m.registerNickServ(c)
	if profile != nil {
		registerOnConnectCommands(c, profile.OnConnectCommands)
	}
	if len(connection.AutoJoin) > 0 {
		channels := connection.AutoJoin
		c.AddPostMotdHook(func() {
			for _, channel := range channels {
				if err := c.Join(channel); err != nil {
					m.logger.Warn("Auto-join failed", zap.String("connection", c.ID), zap.String("channel", channel), zap.Error(err))
				}
			}
		})
	}
	if m.reconnect != nil {
		m.reconnect.Register(id, network)
	}

	go c.serve()

	for _, subscriber := range subscribers {
		subscriber.handler(c)
	}
	return id, nil
}

// allocateID must be called with m.mu held. A returned stale context is the
// disconnected previous owner of the id and must be closed by the caller.
func (m *Manager) allocateID(requestedID string) (string, *Context) {
	existing, ok := m.connections[requestedID]
	if !ok {
		return requestedID, nil
	}
	if !existing.Connected() {
		return requestedID, existing
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", requestedID, n)
		if _, taken := m.connections[candidate]; !taken {
			return candidate, nil
		}
	}
}

// resolveIdentity fills blank nick, username and realname from the
// network's identity profile.
func (m *Manager) resolveIdentity(network *entities.NetworkConfig, connection *entities.ConnectionConfig) (*entities.ConnectionConfig, *entities.IdentityProfile) {
	resolved := &entities.ConnectionConfig{}
	if connection != nil {
		*resolved = *connection
	}
	if network.IdentityProfile == "" || m.profiles == nil {
		return resolved, nil
	}
	profile, err := m.profiles.GetProfile(network.IdentityProfile)
	if err != nil {
		m.logger.Warn("Unable to load identity profile",
			zap.String("profile", network.IdentityProfile),
			zap.Error(err),
		)
		return resolved, nil
	}
	if resolved.Nick == "" {
		resolved.Nick = profile.Nick
	}
	if resolved.Username == "" {
		resolved.Username = profile.Username
	}
	if resolved.Realname == "" {
		resolved.Realname = profile.Realname
	}
	return resolved, profile
}

func (m *Manager) registerNickServ(c *Context) {
	account, password := c.Network.NickServAccount, c.Network.NickServPassword
	if m.credentials != nil {
		var err error
		account, password, err = m.credentials.GetAccountAndPassword(c.Network)
		if err != nil {
			m.logger.Warn("Unable to load NickServ credentials", zap.String("connection", c.ID), zap.Error(err))
			return
		}
	}
	if password == "" {
		return
	}
	identify := "PRIVMSG NickServ :IDENTIFY " + password
	if account != "" {
		identify = fmt.Sprintf("PRIVMSG NickServ :IDENTIFY %s %s", account, password)
	}
	c.AddPostMotdHook(func() {
		if err := c.Send(identify); err != nil {
			m.logger.Warn("NickServ identify failed", zap.String("connection", c.ID), zap.Error(err))
		}
	})
}

// registerOnConnectCommands queues profile commands. A leading "/" is
// optional and "/msg target text" is sent as a PRIVMSG.
func registerOnConnectCommands(c *Context, commands []string) {
	var lines []string
	for _, command := range commands {
		command = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(command), "/"))
		if command == "" {
			continue
		}
		verb, rest, _ := strings.Cut(command, " ")
		if strings.EqualFold(verb, "msg") {
			target, text, _ := strings.Cut(rest, " ")
			command = fmt.Sprintf("PRIVMSG %s :%s", target, text)
		}
		lines = append(lines, command)
	}
	if len(lines) == 0 {
		return
	}
	c.AddPostMotdHook(func() {
		for _, line := range lines {
			if err := c.Send(line); err != nil {
				c.logger.Warn("On-connect command failed", zap.String("connection", c.ID), zap.Error(err))
				return
			}
		}
	})
}

func (m *Manager) newContext(id string, network *entities.NetworkConfig, connection *entities.ConnectionConfig, transport interfaces.Transport) *Context {
	c := &Context{
		ID:         id,
		Network:    network,
		Connection: connection,
		CreatedAt:  m.now(),
		State:      chat.NewState(connection.Nick),
		logger:     m.logger,
		transport:  transport,
		dispatcher: m.dispatcher,
		events:     m.events,
		display:    m.display,
		now:        m.now,
		connected:  true,
		done:       make(chan struct{}),
	}
	c.Batches = batch.NewCoordinator(id,
		batch.WithLogger(m.logger),
		batch.WithEvents(m.events),
		batch.WithDisplay(m.display),
		batch.WithSender(c),
		batch.WithLabelSupport(func() bool {
			return c.State.HasCap("labeled-response")
		}),
		batch.WithClock(m.now),
	)
	c.handler = &chat.HandlerContext{
		ConnectionID: id,
		Network:      c.NetworkName(),
		Users:        c.State,
		Caps:         c.State,
		SelfModes:    c.State,
		ISupport:     c.State,
		Display:      m.display,
		Events:       m.events,
		Protection:   m.protection,
		Ignores:      m.ignores,
		CTCP:         m.ctcp,
		Modes:        m.modes,
		Topics:       m.topics,
		Services:     m.detector,
		Multiline:    m.multiline,
		Sender:       c,
		Batches:      c.Batches,
		Logger:       m.logger,
		Now:          m.now,
	}
	if c.handler.Modes == nil {
		c.handler.Modes = chat.NewModeParser(c.State)
	}
	if m.overlay != nil {
		c.handler.Overlay = m.overlay(c)
	}
	c.handler.Hooks = chat.SideEffects{
		Disconnect: func(reason string) {
			// The read loop is the caller; disconnect must not wait on it.
			go func() {
				if err := m.Disconnect(id, ""); err != nil {
					m.logger.Warn("Disconnect failed", zap.String("connection", id), zap.Error(err))
				}
			}()
		},
		ConnectionLost: c.markDisconnected,
		AnnounceChannel: func(channel string) {
			if m.announce != nil {
				m.announce(id, channel)
			}
		},
		ProtectionTriggered: func(verdict *entities.ProtectionVerdict, message *entities.IrcMessage) {
			m.logger.Info("Blocked message",
				zap.String("connection", id),
				zap.String("from", message.Nick()),
				zap.String("reason", verdict.Reason),
			)
		},
		Registered: func(nick string) {
			m.logger.Info("Registered", zap.String("connection", id), zap.String("nick", nick))
		},
		EndOfMotd: c.runPostMotdHooks,
	}
	return c
}

// Disconnect tears a connection down and forgets it. Unknown ids are a
// no-op.
func (m *Manager) Disconnect(id string, quitMessage string) error {
	m.mu.Lock()
	c, ok := m.connections[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.connections, id)
	m.removeFromOrder(id)
	if m.activeID == id {
		m.activeID = ""
		if len(m.order) > 0 {
			m.activeID = m.order[0]
		}
	}
	if m.primaryID == id {
		m.primaryID = ""
	}
	m.mu.Unlock()

	if quitMessage == "" {
		quitMessage = c.Connection.QuitMessage
	}
	err := m.teardown(id, c, quitMessage)
	m.logger.Info("Connection removed", zap.String("connection", id))
	return err
}

// teardown closes a context that is no longer in the connection map and
// releases what it held outside it.
func (m *Manager) teardown(id string, c *Context, quitMessage string) error {
	err := c.close(quitMessage)
	if m.reconnect != nil {
		m.reconnect.Unregister(id)
	}
	if m.detector != nil {
		m.detector.ClearCache(c.NetworkName())
	}
	if err != nil {
		return fmt.Errorf("close %s: %w", id, err)
	}
	return nil
}

func (m *Manager) removeFromOrder(id string) {
	for i, candidate := range m.order {
		if candidate == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

// DisconnectAll disconnects every connection concurrently and returns the
// first error.
func (m *Manager) DisconnectAll(quitMessage string) error {
	m.mu.RLock()
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	m.mu.RUnlock()

	var group errgroup.Group
	for _, id := range ids {
		id := id
		group.Go(func() error {
			return m.Disconnect(id, quitMessage)
		})
	}
	return group.Wait()
}

// ClearAll disconnects everything and resets active and primary state even
// when a disconnect fails.
func (m *Manager) ClearAll() error {
	err := m.DisconnectAll("")
	m.mu.Lock()
	m.activeID = ""
	m.primaryID = ""
	m.mu.Unlock()
	return err
}

// SetActiveConnection is a no-op for an unknown id.
func (m *Manager) SetActiveConnection(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.connections[id]; ok {
		m.activeID = id
	}
}

func (m *Manager) GetConnection(id string) (*Context, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.connections[id]
	return c, ok
}

func (m *Manager) GetActiveConnection() (*Context, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.connections[m.activeID]
	return c, ok
}

// GetAllConnections returns a snapshot in connect order.
func (m *Manager) GetAllConnections() []*Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	connections := make([]*Context, 0, len(m.order))
	for _, id := range m.order {
		connections = append(connections, m.connections[id])
	}
	return connections
}

func (m *Manager) HasConnection(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.connections[id]
	return ok
}

// GetActiveNetworkId returns the active connection id, or "" when there is
// none.
func (m *Manager) GetActiveNetworkId() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeID
}

func (m *Manager) PrimaryID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.primaryID
}

// OnConnectionCreated registers handler for every new connection. The
// returned id removes the subscription.
func (m *Manager) OnConnectionCreated(handler func(connection *Context)) string {
	id := uuid.NewString()
	m.mu.Lock()
	m.onCreated = append(m.onCreated, createdSubscription{id: id, handler: handler})
	m.mu.Unlock()
	return id
}

func (m *Manager) RemoveConnectionCreatedSubscriber(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, subscription := range m.onCreated {
		if subscription.id == id {
			m.onCreated = append(m.onCreated[:i], m.onCreated[i+1:]...)
			return
		}
	}
}
