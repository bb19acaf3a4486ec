// Package client talks to the chat server: it dials with classified failures,
// performs the handshake, exchanges records and sends or receives relayed datagrams.
package client

import (
	"chat-relay/codec"
	"chat-relay/domain"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"
)

// FailureKind tells why a connection could not be established.
type FailureKind int

const (
	FailureIO FailureKind = iota
	FailureTimeout
	FailureRefused
)

func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "timeout"
	case FailureRefused:
		return "refused"
	default:
		return "io"
	}
}

// DialError is returned by Dial when the server cannot be reached.
type DialError struct {
	Kind    FailureKind
	Address string
	Err     error
}

func (e *DialError) Error() string {
	switch e.Kind {
	case FailureTimeout:
		return fmt.Sprintf("connection to %s timed out", e.Address)
	case FailureRefused:
		return fmt.Sprintf("connection to %s refused, is the server running?", e.Address)
	default:
		return fmt.Sprintf("cannot connect to %s: %v", e.Address, e.Err)
	}
}

func (e *DialError) Unwrap() error {
	return e.Err
}

var ErrNoRelay = errors.New("no datagram relay address")

type Options struct {
	Host           string
	TCPPort        int
	UDPPort        int
	Username       string
	ConnectTimeout time.Duration
	// ListenDatagrams announces a local datagram port so the relay sends datagrams back.
	ListenDatagrams bool
	MaxFrameSize    int
}

type Client struct {
	log       *slog.Logger
	conn      net.Conn
	reader    *codec.Reader
	datagrams *net.UDPConn
	relayAddr *net.UDPAddr
	username  string
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial connects, reads the stream header and sends the identity frame.
func Dial(ctx context.Context, log *slog.Logger, opts Options) (*Client, error) {
	address := net.JoinHostPort(opts.Host, strconv.Itoa(opts.TCPPort))
	dialer := net.Dialer{Timeout: opts.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, classify(address, err)
	}

	c := &Client{
		log:      log,
		conn:     conn,
		reader:   codec.NewReader(conn, opts.MaxFrameSize),
		username: opts.Username,
	}
	if err := c.handshake(opts); err != nil {
		_ = c.Close()
		return nil, err
	}
	log.Debug("Connected", "address", address, "username", opts.Username)
	return c, nil
}

func (c *Client) handshake(opts Options) error {
	if opts.ConnectTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(opts.ConnectTimeout))
	}
	if err := c.reader.ReadHeader(); err != nil {
		return &DialError{Kind: kindOf(err), Address: c.conn.RemoteAddr().String(), Err: err}
	}
	_ = c.conn.SetReadDeadline(time.Time{})

	if opts.UDPPort > 0 {
		relayAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(opts.Host, strconv.Itoa(opts.UDPPort)))
		if err != nil {
			return fmt.Errorf("resolve relay address: %w", err)
		}
		c.relayAddr = relayAddr
		// Bound on the address the server sees for this connection
		local := c.conn.LocalAddr().(*net.TCPAddr)
		datagrams, err := net.ListenUDP("udp", &net.UDPAddr{IP: local.IP})
		if err != nil {
			return fmt.Errorf("open datagram socket: %w", err)
		}
		c.datagrams = datagrams
	}

	identity := codec.Identity{Username: opts.Username}
	if opts.ListenDatagrams && c.datagrams != nil {
		identity.DatagramPort = c.datagrams.LocalAddr().(*net.UDPAddr).Port
	}
	return c.WriteFrame(codec.MarshalIdentity(identity))
}

func classify(address string, err error) error {
	return &DialError{Kind: kindOf(err), Address: address, Err: err}
}

func kindOf(err error) FailureKind {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return FailureTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return FailureRefused
	default:
		return FailureIO
	}
}

func (c *Client) Username() string {
	return c.username
}

// Send sends content as a Text record. Commands are sent the same way.
func (c *Client) Send(content string) error {
	return c.SendRecord(domain.NewText(c.username, content))
}

func (c *Client) SendRecord(record domain.ChatRecord) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(codec.RecordFrame(record))
	return err
}

// WriteFrame sends payload as one frame, whatever it holds.
func (c *Client) WriteFrame(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return codec.WriteFrame(c.conn, payload)
}

// Receive blocks until the next record. Malformed frames are reported with an
// error wrapping codec.ErrMalformedFrame and the stream stays usable.
func (c *Client) Receive() (domain.ChatRecord, error) {
	return c.reader.ReadRecord()
}

func (c *Client) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// SendDatagram sends text to the relay.
func (c *Client) SendDatagram(text string) error {
	if c.relayAddr == nil || c.datagrams == nil {
		return ErrNoRelay
	}
	_, err := c.datagrams.WriteToUDP([]byte(text), c.relayAddr)
	return err
}

// ReceiveDatagram blocks until a relayed datagram arrives or the deadline passes.
// A zero deadline waits forever.
func (c *Client) ReceiveDatagram(deadline time.Time) (string, error) {
	if c.datagrams == nil {
		return "", ErrNoRelay
	}
	_ = c.datagrams.SetReadDeadline(deadline)
	buf := make([]byte, 64<<10)
	n, _, err := c.datagrams.ReadFromUDP(buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.datagrams != nil {
			_ = c.datagrams.Close()
		}
		err = c.conn.Close()
	})
	return err
}
