package connection

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ynotnauk/go-irc/batch"
	"github.com/ynotnauk/go-irc/chat"
	"github.com/ynotnauk/go-irc/entities"
	"github.com/ynotnauk/go-irc/interfaces"
	"github.com/ynotnauk/go-irc/parser"
)

// Context is one live server connection: its configuration, protocol state
// and the goroutine reading lines from its transport.
type Context struct {
	ID         string
	Network    *entities.NetworkConfig
	Connection *entities.ConnectionConfig
	CreatedAt  time.Time
	State      *chat.State
	Batches    *batch.Coordinator

	logger     *zap.Logger
	transport  interfaces.Transport
	dispatcher *chat.Dispatcher
	handler    *chat.HandlerContext
	events     interfaces.EventEmitter
	display    interfaces.DisplayEmitter
	now        func() time.Time

	writeMu   sync.Mutex
	mu        sync.Mutex
	connected bool
	postMotd  []func()
	done      chan struct{}
}

// NetworkName is the key used for network-scoped stores and caches.
func (c *Context) NetworkName() string {
	if c.Network.Name != "" {
		return c.Network.Name
	}
	return c.Network.Host
}

func (c *Context) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Send writes one raw line. It is safe for concurrent use.
func (c *Context) Send(line string) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.logger.Debug("Sending line", zap.String("connection", c.ID), zap.String("line", redact(line)))
	return c.transport.WriteLine(line)
}

// SendWithLabel sends rawCommand with label correlation when the server
// supports labeled responses.
func (c *Context) SendWithLabel(rawCommand string, callback entities.LabelCallback) (string, error) {
	return c.Batches.SendWithLabel(rawCommand, callback)
}

// Ping sends a PING carrying the current epoch milliseconds; the PONG
// handler turns the echo into a round-trip time.
func (c *Context) Ping() error {
	return c.Send(fmt.Sprintf("PING %d", c.now().UnixMilli()))
}

func (c *Context) Join(channel string) error {
	if channel == "" {
		return chat.ErrBlankChannel
	}
	if !c.State.IsChannel(channel) {
		channel = "#" + channel
	}
	return c.Send("JOIN " + channel)
}

func (c *Context) Say(target string, text string) error {
	return c.Send(fmt.Sprintf("PRIVMSG %s :%s", target, text))
}

// AddPostMotdHook queues fn to run once when the server finishes sending
// its MOTD. Hooks run in the order they were added.
func (c *Context) AddPostMotdHook(fn func()) {
	c.mu.Lock()
	c.postMotd = append(c.postMotd, fn)
	c.mu.Unlock()
}

func (c *Context) runPostMotdHooks() {
	c.mu.Lock()
	hooks := c.postMotd
	c.postMotd = nil
	c.mu.Unlock()
	for _, hook := range hooks {
		hook()
	}
}

// Feed decodes and dispatches one raw line. Malformed lines are dropped.
func (c *Context) Feed(rawLine string) {
	message, err := parser.ParseRawIrcMessage(rawLine)
	if err != nil {
		c.logger.Debug("Dropping malformed line",
			zap.String("connection", c.ID),
			zap.String("line", rawLine),
			zap.Error(err),
		)
		return
	}
	c.dispatcher.Dispatch(c.handler, message)
}

func (c *Context) register() {
	nick := c.Connection.Nick
	username := c.Connection.Username
	if username == "" {
		username = nick
	}
	realname := c.Connection.Realname
	if realname == "" {
		realname = nick
	}
	var lines []string
	if len(c.Network.Capabilities) > 0 {
		lines = append(lines, "CAP REQ :"+strings.Join(c.Network.Capabilities, " "))
	}
	if c.Network.Password != "" {
		lines = append(lines, "PASS "+c.Network.Password)
	}
	lines = append(lines,
		"NICK "+nick,
		fmt.Sprintf("USER %s 0 * :%s", username, realname),
	)
	if len(c.Network.Capabilities) > 0 {
		lines = append(lines, "CAP END")
	}
	for _, line := range lines {
		if err := c.Send(line); err != nil {
			c.logger.Warn("Unable to send registration", zap.String("connection", c.ID), zap.Error(err))
			return
		}
	}
}

// serve registers and then reads until the transport fails or is closed.
func (c *Context) serve() {
	defer close(c.done)
	c.register()
	for {
		line, err := c.transport.ReadLine()
		if err != nil {
			c.markDisconnected(err.Error())
			return
		}
		c.Feed(line)
	}
}

// markDisconnected fails every pending label, forgets open batches and
// emits disconnected. Only the first call has any effect.
func (c *Context) markDisconnected(reason string) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.postMotd = nil
	c.mu.Unlock()

	labels := c.Batches.CleanupLabels()
	batches := c.Batches.DropBatches()
	c.State.SetRegistered(false)
	c.logger.Info("Disconnected",
		zap.String("connection", c.ID),
		zap.String("reason", reason),
		zap.Int("pendingLabels", labels),
		zap.Int("openBatches", batches),
	)
	if c.events != nil {
		c.events.Emit(&entities.Event{
			ConnectionID: c.ID,
			Name:         entities.EventDisconnected,
			Args:         []any{c.ID, reason},
			Timestamp:    c.now(),
		})
	}
}

// close sends QUIT when still connected, closes the transport and waits for
// the read loop to exit.
func (c *Context) close(quitMessage string) error {
	if c.Connected() {
		quit := "QUIT"
		if quitMessage != "" {
			quit += " :" + quitMessage
		}
		if err := c.Send(quit); err != nil {
			c.logger.Debug("Unable to send QUIT", zap.String("connection", c.ID), zap.Error(err))
		}
	}
	c.markDisconnected("quit")
	err := c.transport.Close()
	<-c.done
	return err
}

func (c *Context) line(displayType string, text string) {
	if c.display == nil {
		return
	}
	c.display.Display(&entities.DisplayMessage{
		ConnectionID: c.ID,
		Type:         displayType,
		Text:         text,
		Timestamp:    c.now(),
	})
}

// redact hides credentials in debug logs.
func redact(line string) string {
	upper := strings.ToUpper(line)
	switch {
	case strings.HasPrefix(upper, "PASS "):
		return "PASS ********"
	case strings.HasPrefix(upper, "PRIVMSG NICKSERV :IDENTIFY"):
		return "PRIVMSG NickServ :IDENTIFY ********"
	}
	return line
}
