// Package detect fingerprints networks from what their servers announce.
package detect

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ynotnauk/go-irc/entities"
)

// Fingerprint is what has been learned about one network.
type Fingerprint struct {
	Network       string
	NetworkName   string
	ServerName    string
	ServerVersion string
	ISupport      map[string]string
	Services      []string
}

// HasService reports whether a service nick such as NickServ was seen.
func (f *Fingerprint) HasService(nick string) bool {
	for _, service := range f.Services {
		if strings.EqualFold(service, nick) {
			return true
		}
	}
	return false
}

var knownServices = map[string]string{
	"nickserv": "NickServ",
	"chanserv": "ChanServ",
	"memoserv": "MemoServ",
	"operserv": "OperServ",
	"hostserv": "HostServ",
	"botserv":  "BotServ",
	"saslserv": "SaslServ",
	"q":        "Q",
}

type Cache struct {
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]*Fingerprint
}

type Option func(*Cache)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

func NewCache(opts ...Option) *Cache {
	c := &Cache{
		logger:  zap.NewNop(),
		entries: make(map[string]*Fingerprint),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Observe records 004 and 005 replies and any message sourced by a known
// service.
func (c *Cache) Observe(network string, message *entities.IrcMessage) {
	if network == "" || message == nil {
		return
	}
	switch message.Command {
	case "004":
		c.update(network, func(f *Fingerprint) {
			f.ServerName = message.Param(1)
			f.ServerVersion = message.Param(2)
		})
	case "005":
		if len(message.Params) < 3 {
			return
		}
		c.update(network, func(f *Fingerprint) {
			// Skip own nick and the trailing "are supported by this server"
			for _, token := range message.Params[1 : len(message.Params)-1] {
				observeToken(f, token)
			}
		})
	default:
		if message.Source == nil || message.Source.Nickname == "" {
			return
		}
		service, ok := knownServices[strings.ToLower(message.Source.Nickname)]
		if !ok {
			return
		}
		c.update(network, func(f *Fingerprint) {
			if f.HasService(service) {
				return
			}
			f.Services = append(f.Services, service)
			sort.Strings(f.Services)
			c.logger.Debug("Detected network service",
				zap.String("network", network),
				zap.String("service", service),
			)
		})
	}
}

func observeToken(f *Fingerprint, token string) {
	if strings.HasPrefix(token, "-") {
		delete(f.ISupport, strings.ToUpper(token[1:]))
		return
	}
	key, value, _ := strings.Cut(token, "=")
	key = strings.ToUpper(key)
	f.ISupport[key] = value
	if key == "NETWORK" {
		f.NetworkName = value
	}
}

func (c *Cache) update(network string, fn func(f *Fingerprint)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[network]
	if !ok {
		entry = &Fingerprint{Network: network, ISupport: make(map[string]string)}
		c.entries[network] = entry
	}
	fn(entry)
}

// Lookup returns a copy of the fingerprint for network.
func (c *Cache) Lookup(network string) (*Fingerprint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[network]
	if !ok {
		return nil, false
	}
	copied := *entry
	copied.ISupport = make(map[string]string, len(entry.ISupport))
	for key, value := range entry.ISupport {
		copied.ISupport[key] = value
	}
	copied.Services = append([]string(nil), entry.Services...)
	return &copied, true
}

func (c *Cache) ClearCache(network string) {
	c.mu.Lock()
	delete(c.entries, network)
	c.mu.Unlock()
}
