// Package transport carries IRC lines over TCP or TLS.
package transport

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	outgoingBuffer = 64
	drainTimeout   = 5 * time.Second
)

// Conn reads lines directly and writes through a single writer goroutine
// so callers never block on a slow socket.
type Conn struct {
	conn        net.Conn
	reader      *textproto.Reader
	logger      *zap.Logger
	limiter     *rate.Limiter
	readTimeout time.Duration

	outgoing  chan string
	closing   chan struct{}
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error

	mu       sync.Mutex
	writeErr error
}

type ConnOption func(*Conn)

func WithConnLogger(logger *zap.Logger) ConnOption {
	return func(c *Conn) {
		c.logger = logger
	}
}

// WithSendRate paces outgoing lines. Servers disconnect clients that write
// faster than they allow.
func WithSendRate(linesPerSecond float64, burst int) ConnOption {
	return func(c *Conn) {
		if linesPerSecond > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(linesPerSecond), burst)
		}
	}
}

// WithReadTimeout fails ReadLine when nothing arrives for timeout.
func WithReadTimeout(timeout time.Duration) ConnOption {
	return func(c *Conn) {
		c.readTimeout = timeout
	}
}

func NewConn(conn net.Conn, opts ...ConnOption) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		conn:     conn,
		reader:   textproto.NewReader(bufio.NewReader(conn)),
		logger:   zap.NewNop(),
		outgoing: make(chan string, outgoingBuffer),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.startConnectionWriter()
	return c
}

// ReadLine returns the next line without its CRLF.
func (c *Conn) ReadLine() (string, error) {
	if c.readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return "", err
		}
	}
	return c.reader.ReadLine()
}

// WriteLine queues line for writing. It returns the error of an earlier
// failed write, if any.
func (c *Conn) WriteLine(line string) error {
	if strings.ContainsAny(line, "\r\n") {
		return ErrLineBreak
	}
	c.mu.Lock()
	err := c.writeErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case <-c.closing:
		return ErrClosed
	default:
	}
	select {
	case <-c.closing:
		return ErrClosed
	case c.outgoing <- line + "\r\n":
		return nil
	}
}

// Close flushes queued lines, then closes the socket. It is safe to call
// more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closing)
		c.cancel()
		<-c.done
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *Conn) startConnectionWriter() {
	defer func() {
		c.logger.Debug("Connection writer has closed")
		close(c.done)
	}()
	for {
		select {
		case <-c.closing:
			c.drain()
			return
		case line := <-c.outgoing:
			if c.limiter != nil {
				if err := c.limiter.Wait(c.ctx); err != nil {
					// Closing; the line still goes out with the rest
					c.write(line)
					c.drain()
					return
				}
			}
			if !c.write(line) {
				return
			}
		}
	}
}

func (c *Conn) drain() {
	if err := c.conn.SetWriteDeadline(time.Now().Add(drainTimeout)); err != nil {
		return
	}
	for {
		select {
		case line := <-c.outgoing:
			if !c.write(line) {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) write(line string) bool {
	if _, err := io.WriteString(c.conn, line); err != nil {
		c.logger.Debug("Unable to write line", zap.Error(err))
		c.mu.Lock()
		c.writeErr = err
		c.mu.Unlock()
		return false
	}
	return true
}
