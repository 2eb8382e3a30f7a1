package transport

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ynotnauk/go-irc/entities"
	"github.com/ynotnauk/go-irc/interfaces"
)

const (
	DefaultPort    = 6667
	DefaultTLSPort = 6697
)

type Dialer struct {
	logger      *zap.Logger
	timeout     time.Duration
	keepAlive   time.Duration
	connOptions []ConnOption
}

type DialerOption func(*Dialer)

func WithLogger(logger *zap.Logger) DialerOption {
	return func(d *Dialer) {
		d.logger = logger
	}
}

func WithTimeout(timeout time.Duration) DialerOption {
	return func(d *Dialer) {
		d.timeout = timeout
	}
}

// WithConnOptions applies opts to every connection the dialer opens.
func WithConnOptions(opts ...ConnOption) DialerOption {
	return func(d *Dialer) {
		d.connOptions = append(d.connOptions, opts...)
	}
}

func NewDialer(opts ...DialerOption) *Dialer {
	d := &Dialer{
		logger:    zap.NewNop(),
		timeout:   30 * time.Second,
		keepAlive: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Address returns host:port, defaulting the port by TLS.
func Address(network *entities.NetworkConfig) string {
	port := network.Port
	if port <= 0 {
		port = DefaultPort
		if network.TLS {
			port = DefaultTLSPort
		}
	}
	return net.JoinHostPort(network.Host, strconv.Itoa(port))
}

func tlsConfig(network *entities.NetworkConfig) *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         network.Host,
		InsecureSkipVerify: network.InsecureSkipVerify,
	}
}

func (d *Dialer) Dial(ctx context.Context, network *entities.NetworkConfig) (interfaces.Transport, error) {
	if network == nil || network.Host == "" {
		return nil, ErrBlankHost
	}
	address := Address(network)
	d.logger.Info("Attempting to connect",
		zap.String("address", address),
		zap.Bool("tls", network.TLS),
	)

	// Create a dialer
	netDialer := &net.Dialer{
		Timeout:   d.timeout,
		KeepAlive: d.keepAlive,
	}

	var (
		conn net.Conn
		err  error
	)
	if network.TLS {
		tlsDialer := &tls.Dialer{NetDialer: netDialer, Config: tlsConfig(network)}
		conn, err = tlsDialer.DialContext(ctx, "tcp", address)
	} else {
		conn, err = netDialer.DialContext(ctx, "tcp", address)
	}
	if err != nil {
		return nil, err
	}
	d.logger.Info("Connected", zap.String("address", address))
	opts := append([]ConnOption{WithConnLogger(d.logger)}, d.connOptions...)
	return NewConn(conn, opts...), nil
}
