package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/ynotnauk/go-irc/entities"
	"github.com/ynotnauk/go-irc/interfaces"
)

var (
	_ interfaces.Transport = (*Conn)(nil)
	_ interfaces.Dialer    = (*Dialer)(nil)
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func pipe(t *testing.T, opts ...ConnOption) (*Conn, *bufio.Reader, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	conn := NewConn(client, append([]ConnOption{WithConnLogger(zaptest.NewLogger(t))}, opts...)...)
	t.Cleanup(func() {
		server.Close()
		conn.Close()
	})
	return conn, bufio.NewReader(server), server
}

func TestConnWriteLineAppendsCRLF(t *testing.T) {
	conn, server, _ := pipe(t)
	require.NoError(t, conn.WriteLine("NICK tester"))
	require.NoError(t, conn.WriteLine("USER tester 0 * :Tester"))

	line, err := server.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "NICK tester\r\n", line)
	line, err = server.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "USER tester 0 * :Tester\r\n", line)
}

func TestConnWriteLineRejectsLineBreaks(t *testing.T) {
	conn, _, _ := pipe(t)
	assert.ErrorIs(t, conn.WriteLine("PRIVMSG #a :hi\r\nQUIT"), ErrLineBreak)
	assert.ErrorIs(t, conn.WriteLine("PRIVMSG #a :hi\n"), ErrLineBreak)
}

func TestConnReadLine(t *testing.T) {
	conn, _, server := pipe(t)
	go func() {
		server.Write([]byte("PING :token\r\n:irc.example 001 tester :Welcome\r\n"))
	}()
	line, err := conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "PING :token", line)
	line, err = conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, ":irc.example 001 tester :Welcome", line)
}

func TestConnReadTimeout(t *testing.T) {
	conn, _, _ := pipe(t, WithReadTimeout(10*time.Millisecond))
	_, err := conn.ReadLine()
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestConnCloseFlushesQueuedLines(t *testing.T) {
	conn, server, _ := pipe(t)
	require.NoError(t, conn.WriteLine("QUIT :bye"))

	closed := make(chan error, 1)
	go func() {
		closed <- conn.Close()
	}()
	line, err := server.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "QUIT :bye\r\n", line)
	require.NoError(t, <-closed)

	assert.ErrorIs(t, conn.WriteLine("PRIVMSG #a :late"), ErrClosed)
	assert.NoError(t, conn.Close())
}

func TestConnSendRate(t *testing.T) {
	conn, server, _ := pipe(t, WithSendRate(1000, 1))
	for _, line := range []string{"PRIVMSG #a :1", "PRIVMSG #a :2", "PRIVMSG #a :3"} {
		require.NoError(t, conn.WriteLine(line))
	}
	for _, want := range []string{"PRIVMSG #a :1\r\n", "PRIVMSG #a :2\r\n", "PRIVMSG #a :3\r\n"} {
		line, err := server.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}
}

func TestDialerPlainTCP(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	received := make(chan string, 1)
	go func() {
		accepted, err := listener.Accept()
		if err != nil {
			close(received)
			return
		}
		defer accepted.Close()
		line, _ := bufio.NewReader(accepted).ReadString('\n')
		received <- line
	}()

	port := listener.Addr().(*net.TCPAddr).Port
	dialer := NewDialer(WithLogger(zaptest.NewLogger(t)), WithTimeout(time.Second))
	transport, err := dialer.Dial(context.Background(), &entities.NetworkConfig{Host: "127.0.0.1", Port: port})
	require.NoError(t, err)
	require.NoError(t, transport.WriteLine("PING :1"))
	assert.Equal(t, "PING :1\r\n", <-received)
	require.NoError(t, transport.Close())
}

func TestDialerRejectsBlankHost(t *testing.T) {
	_, err := NewDialer().Dial(context.Background(), &entities.NetworkConfig{})
	assert.ErrorIs(t, err, ErrBlankHost)
	_, err = NewDialer().Dial(context.Background(), nil)
	assert.ErrorIs(t, err, ErrBlankHost)
}

func TestAddress(t *testing.T) {
	assert.Equal(t, "irc.libera.chat:6697", Address(&entities.NetworkConfig{Host: "irc.libera.chat", TLS: true}))
	assert.Equal(t, "irc.libera.chat:6667", Address(&entities.NetworkConfig{Host: "irc.libera.chat"}))
	assert.Equal(t, "[::1]:7000", Address(&entities.NetworkConfig{Host: "::1", Port: 7000}))
}

func TestTLSConfig(t *testing.T) {
	config := tlsConfig(&entities.NetworkConfig{Host: "irc.example", InsecureSkipVerify: true})
	assert.Equal(t, uint16(tls.VersionTLS12), config.MinVersion)
	assert.Equal(t, "irc.example", config.ServerName)
	assert.True(t, config.InsecureSkipVerify)
}
