package client

import (
	"chat-relay/codec"
	"chat-relay/domain"
	"context"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (timeoutError) Error() string { return "i/o timeout" }

func (timeoutError) Timeout() bool { return true }

func (timeoutError) Temporary() bool { return true }

func TestKindOf(t *testing.T) {
	req := require.New(t)

	req.Equal(FailureTimeout, kindOf(context.DeadlineExceeded))
	req.Equal(FailureTimeout, kindOf(&net.OpError{Op: "dial", Err: timeoutError{}}))
	req.Equal(FailureIO, kindOf(errors.New("no route to host")))
}

func TestDial_Refused(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given a port nobody listens on anymore
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	port := ln.Addr().(*net.TCPAddr).Port
	req.NoError(ln.Close())

	// When dialing it
	_, err = Dial(context.Background(), log, Options{Host: "127.0.0.1", TCPPort: port, ConnectTimeout: time.Second})

	// Then the failure is classified as refused
	var dialErr *DialError
	req.True(errors.As(err, &dialErr))
	req.Equal(FailureRefused, dialErr.Kind)
	req.Contains(dialErr.Error(), "refused")
}

// fakeServer accepts one connection and hands it to serve.
func fakeServer(t *testing.T, serve func(conn net.Conn)) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		serve(conn)
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestDial_Handshake(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	identities := make(chan codec.Identity, 1)
	texts := make(chan domain.ChatRecord, 1)

	port := fakeServer(t, func(conn net.Conn) {
		if err := codec.WriteHeader(conn); err != nil {
			return
		}
		reader := codec.NewReader(conn, 0)
		identity, err := reader.ReadIdentity()
		if err != nil {
			return
		}
		identities <- identity
		_, _ = conn.Write(codec.RecordFrame(domain.NewSystem(domain.WelcomeText(identity.Username), domain.KindInfo)))
		record, err := reader.ReadRecord()
		if err != nil {
			return
		}
		texts <- record
	})

	// When the client connects with a datagram port announced
	c, err := Dial(context.Background(), log, Options{
		Host:            "127.0.0.1",
		TCPPort:         port,
		UDPPort:         port,
		Username:        "alice",
		ConnectTimeout:  time.Second,
		ListenDatagrams: true,
	})
	req.NoError(err)
	defer func() { _ = c.Close() }()

	// Then the server got its identity
	identity := <-identities
	req.Equal("alice", identity.Username)
	req.Positive(identity.DatagramPort)

	// And records flow both ways
	welcome, err := c.Receive()
	req.NoError(err)
	req.Equal("Welcome alice!", welcome.Content)

	req.NoError(c.Send("hello"))
	text := <-texts
	req.Equal("hello", text.Content)
	req.Equal("alice", text.Sender)
	req.Equal(domain.KindText, text.Kind)
}

func TestDial_Rejects_Foreign_Server(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	port := fakeServer(t, func(conn net.Conn) {
		_, _ = conn.Write([]byte("HTTP/1.1 400 Bad Request\r\n\r\n"))
	})

	_, err := Dial(context.Background(), log, Options{Host: "127.0.0.1", TCPPort: port, ConnectTimeout: time.Second})

	req.ErrorIs(err, codec.ErrBadHeader)
}

func TestSendDatagram_Without_Relay(t *testing.T) {
	req := require.New(t)
	c := &Client{}

	req.ErrorIs(c.SendDatagram("ping"), ErrNoRelay)
	_, err := c.ReceiveDatagram(time.Time{})
	req.ErrorIs(err, ErrNoRelay)
}
