package session

import (
	"chat-relay/codec"
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State of a session. A session only moves forward.
type State int32

const (
	StateConnecting State = iota
	StateAwaitingIdentity
	StateActive
	StateDisconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingIdentity:
		return "awaiting_identity"
	case StateActive:
		return "active"
	case StateDisconnecting:
		return "disconnecting"
	case StateClosed:
		return "closed"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

const quitNoticeTimeout = 500 * time.Millisecond

type Settings struct {
	OutboxSize   int
	WriteTimeout time.Duration
	MaxFrameSize int
	// SendGrace is how long Send waits for room in a full outbox, zero never waits.
	SendGrace time.Duration
}

// Session is one connected client.
// Outgoing frames are queued in a bounded outbox and written by a single goroutine,
// so frames queued by one caller reach the client in queue order.
type Session struct {
	id            string
	log           *slog.Logger
	conn          net.Conn
	reader        *codec.Reader
	remoteAddress string
	remoteIP      net.IP
	remotePort    int
	writeTimeout  time.Duration
	sendGrace     time.Duration

	state atomic.Int32

	mu       sync.RWMutex
	username string
	datagram *net.UDPAddr

	outbox    chan []byte
	done      chan struct{}
	writeMu   sync.Mutex
	closeOnce sync.Once
	onClose   func(*Session)
	writerWg  sync.WaitGroup
}

func New(log *slog.Logger, conn net.Conn, settings Settings) *Session {
	if settings.OutboxSize <= 0 {
		settings.OutboxSize = 1
	}
	id := uuid.NewString()
	s := &Session{
		id:           id,
		conn:         conn,
		reader:       codec.NewReader(conn, settings.MaxFrameSize),
		writeTimeout: settings.WriteTimeout,
		sendGrace:    settings.SendGrace,
		outbox:       make(chan []byte, settings.OutboxSize),
		done:         make(chan struct{}),
	}
	s.remoteAddress, s.remoteIP, s.remotePort = splitRemote(conn.RemoteAddr())
	s.log = log.With("session_id", id, "remote", s.remoteAddress)
	s.state.Store(int32(StateConnecting))
	return s
}

func splitRemote(addr net.Addr) (string, net.IP, int) {
	if addr == nil {
		return "", nil, 0
	}
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.String(), tcp.IP, tcp.Port
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), nil, 0
	}
	p, _ := strconv.Atoi(port)
	return addr.String(), net.ParseIP(host), p
}

// OnClose registers the callback run once the session is closed.
// It must be set before Prime.
func (s *Session) OnClose(fn func(*Session)) {
	s.onClose = fn
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

func (s *Session) RemoteAddress() string {
	return s.remoteAddress
}

func (s *Session) RemotePort() int {
	return s.remotePort
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// DatagramTarget is where relayed datagrams go, nil when the client announced no port.
func (s *Session) DatagramTarget() *net.UDPAddr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.datagram
}

// Done is closed when the session starts disconnecting.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Prime writes the stream header and starts the writer.
// Nothing is read from the client before the header is on the wire.
func (s *Session) Prime() error {
	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateAwaitingIdentity)) {
		return fmt.Errorf("prime in state %s: %w", s.State(), errors.ErrNotActive)
	}
	if err := s.write(codec.Header()); err != nil {
		return err
	}
	s.writerWg.Add(1)
	go s.writeLoop()
	return nil
}

func (s *Session) ReadIdentity() (codec.Identity, error) {
	if s.State() != StateAwaitingIdentity {
		return codec.Identity{}, errors.ErrNotActive
	}
	return s.reader.ReadIdentity()
}

// Activate names the session and records its datagram target.
func (s *Session) Activate(username string, datagramPort int) error {
	if s.State() != StateAwaitingIdentity {
		return errors.ErrNotActive
	}
	s.mu.Lock()
	s.username = username
	if datagramPort > 0 && s.remoteIP != nil {
		s.datagram = &net.UDPAddr{IP: s.remoteIP, Port: datagramPort}
	}
	s.mu.Unlock()
	if !s.state.CompareAndSwap(int32(StateAwaitingIdentity), int32(StateActive)) {
		return errors.ErrNotActive
	}
	s.log.Debug("Session active", "username", username, "datagram_target", s.DatagramTarget())
	return nil
}

func (s *Session) ReadRecord() (domain.ChatRecord, error) {
	return s.reader.ReadRecord()
}

// Send queues an encoded frame. A full outbox is given SendGrace to drain
// before the frame is refused with ErrOutboxFull.
func (s *Session) Send(frame []byte) error {
	if s.State() >= StateDisconnecting {
		return errors.ErrSessionClosed
	}
	select {
	case <-s.done:
		return errors.ErrSessionClosed
	case s.outbox <- frame:
		return nil
	default:
	}
	if s.sendGrace <= 0 {
		return errors.ErrOutboxFull
	}

	timer := time.NewTimer(s.sendGrace)
	defer timer.Stop()
	select {
	case <-s.done:
		return errors.ErrSessionClosed
	case s.outbox <- frame:
		return nil
	case <-timer.C:
		return errors.ErrOutboxFull
	}
}

func (s *Session) SendRecord(record domain.ChatRecord) error {
	return s.Send(codec.RecordFrame(record))
}

func (s *Session) writeLoop() {
	defer s.writerWg.Done()
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.outbox:
			if s.State() >= StateDisconnecting {
				return
			}
			if err := s.write(frame); err != nil {
				s.log.Debug("Write failed", "error", err)
				s.Disconnect("write failed")
				return
			}
		}
	}
}

func (s *Session) write(b []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	_, err := s.conn.Write(b)
	return err
}

// Disconnect closes the session. Only the first call has an effect.
func (s *Session) Disconnect(reason string) {
	s.closeOnce.Do(func() {
		previous := State(s.state.Swap(int32(StateDisconnecting)))
		s.log.Info("Disconnecting session", "reason", reason, "state", previous)
		close(s.done)
		if previous >= StateAwaitingIdentity {
			s.sendQuitNotice()
		}
		if err := s.conn.Close(); err != nil {
			s.log.Debug("Close failed", "error", err)
		}
		if s.onClose != nil {
			s.onClose(s)
		}
		s.state.Store(int32(StateClosed))
	})
}

// sendQuitNotice is best effort: it gives up when the writer holds the stream.
func (s *Session) sendQuitNotice() {
	if !s.writeMu.TryLock() {
		return
	}
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(quitNoticeTimeout))
	_, _ = s.conn.Write(codec.RecordFrame(domain.NewSystem(domain.QuitNotice, domain.KindInfo)))
}

// Wait blocks until the writer goroutine has exited.
func (s *Session) Wait() {
	s.writerWg.Wait()
}
