package runtime

import (
	"chat-relay/codec"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/moderation"
	"chat-relay/session"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const acceptBackoff = 50 * time.Millisecond

// AnonymousPrefix starts the username given to clients without a usable identity.
const AnonymousPrefix = "Anonymous-"

// Acceptor accepts connections on the reliable transport and runs one
// goroutine per session for its handshake and receive loop.
type Acceptor struct {
	log         *slog.Logger
	listener    net.Listener
	registry    contract.IRegistry
	broadcaster contract.IBroadcaster
	interpreter *Interpreter
	moderator   *moderation.Moderator
	settings    session.Settings

	mu       sync.Mutex
	sessions map[string]*session.Session
	closing  bool
	wg       sync.WaitGroup
}

func NewAcceptor(log *slog.Logger, listener net.Listener, registry contract.IRegistry,
	broadcaster contract.IBroadcaster, interpreter *Interpreter,
	moderator *moderation.Moderator, settings session.Settings) *Acceptor {
	return &Acceptor{
		log:         log,
		listener:    listener,
		registry:    registry,
		broadcaster: broadcaster,
		interpreter: interpreter,
		moderator:   moderator,
		settings:    settings,
		sessions:    make(map[string]*session.Session),
	}
}

// Run accepts until the listener is closed.
func (a *Acceptor) Run(ctx context.Context) error {
	a.log.Info("Accepting connections", "address", a.listener.Addr().String())
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			a.log.Warn("Accept failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(acceptBackoff):
			}
			continue
		}
		a.handle(ctx, conn)
	}
}

func (a *Acceptor) handle(ctx context.Context, conn net.Conn) {
	s := session.New(a.log, conn, a.settings)
	s.OnClose(a.closed)

	a.mu.Lock()
	if a.closing {
		a.mu.Unlock()
		_ = conn.Close()
		return
	}
	a.sessions[s.ID()] = s
	a.wg.Add(1)
	a.mu.Unlock()

	a.log.Info("Connection accepted", "session_id", s.ID(), "remote", s.RemoteAddress())
	go func() {
		defer a.wg.Done()
		defer a.forget(s)
		a.serve(ctx, s)
	}()
}

func (a *Acceptor) serve(ctx context.Context, s *session.Session) {
	if err := s.Prime(); err != nil {
		a.log.Warn("Priming failed", "session_id", s.ID(), "error", err)
		s.Disconnect("priming failed")
		return
	}

	username, datagramPort, err := a.handshake(s)
	if err != nil {
		a.log.Info("Handshake aborted", "session_id", s.ID(), "error", err)
		s.Disconnect("handshake aborted")
		return
	}
	if err := s.Activate(username, datagramPort); err != nil {
		s.Disconnect("activation refused")
		return
	}

	// Queued before the insert so no broadcast overtakes the welcome
	a.reply(s, domain.WelcomeText(username))
	a.registry.Insert(s)
	if s.State() >= session.StateDisconnecting {
		// Closed while joining, its close callback ran before the insert.
		a.registry.Remove(s)
		return
	}
	a.log.Info("Session joined", "session_id", s.ID(), "username", username, "sessions", a.registry.Len())

	a.broadcaster.Broadcast(domain.NewSystem(domain.JoinedText(username), domain.KindConnect), s)
	a.reply(s, domain.UserListing(a.broadcaster.ListUsernames()))

	a.receive(ctx, s)
}

// handshake returns the username of the session. Only a transport failure is an error,
// an unusable identity gets an anonymous name.
func (a *Acceptor) handshake(s *session.Session) (string, int, error) {
	identity, err := s.ReadIdentity()
	if err != nil {
		if !codec.IsDecodeError(err) {
			return "", 0, err
		}
		a.log.Warn("Malformed identity frame", "session_id", s.ID(), "error", err)
		return anonymousName(), 0, nil
	}
	username := strings.TrimSpace(identity.Username)
	if username == "" {
		username = anonymousName()
	}
	return username, identity.DatagramPort, nil
}

func anonymousName() string {
	return AnonymousPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func (a *Acceptor) receive(ctx context.Context, s *session.Session) {
	for {
		record, err := s.ReadRecord()
		if err != nil {
			if codec.IsDecodeError(err) {
				a.log.Warn("Discarding malformed frame", "session_id", s.ID(), "error", err)
				continue
			}
			reason := "read failed"
			if errors.Is(err, io.EOF) {
				reason = "end of stream"
			}
			if ctx.Err() != nil {
				reason = "server shutdown"
			}
			s.Disconnect(reason)
			return
		}
		a.dispatch(s, record)
	}
}

func (a *Acceptor) dispatch(s *session.Session, record domain.ChatRecord) {
	content := record.Content
	if strings.TrimSpace(content) == "" {
		return
	}
	if domain.IsCommand(content) {
		a.interpreter.Handle(s, content)
		return
	}

	text := domain.ChatRecord{
		Sender:    s.Username(),
		Content:   content,
		Timestamp: record.Timestamp,
		Kind:      domain.KindText,
	}
	if text.Timestamp.IsZero() {
		text.Timestamp = time.Now()
	}
	if a.moderator != nil {
		text.Content, _ = a.moderator.Censor(text.Content)
	}
	a.log.Debug("Text received", "session_id", s.ID(), "username", text.Sender)
	a.broadcaster.Broadcast(text, s)
}

func (a *Acceptor) reply(s *session.Session, text string) {
	if err := s.SendRecord(domain.NewSystem(text, domain.KindInfo)); err != nil {
		s.Disconnect(err.Error())
	}
}

// closed runs once per session. Only a session that was still registered
// is announced, so a double disconnect never announces twice.
func (a *Acceptor) closed(s *session.Session) {
	if !a.registry.Remove(s) {
		return
	}
	a.log.Info("Session left", "session_id", s.ID(), "username", s.Username(), "sessions", a.registry.Len())
	a.broadcaster.Broadcast(domain.NewSystem(domain.LeftText(s.Username()), domain.KindDisconnect), nil)
}

func (a *Acceptor) forget(s *session.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, s.ID())
}

// DisconnectAll refuses new sessions and disconnects the current ones,
// including those still in their handshake.
func (a *Acceptor) DisconnectAll(reason string) {
	a.mu.Lock()
	a.closing = true
	sessions := make([]*session.Session, 0, len(a.sessions))
	for _, s := range a.sessions {
		sessions = append(sessions, s)
	}
	a.mu.Unlock()

	for _, s := range sessions {
		s.Disconnect(reason)
	}
}

// Wait blocks until every session goroutine has returned.
func (a *Acceptor) Wait() {
	a.wg.Wait()
}
