// Package runtime runs the chat server: it accepts sessions, relays their
// records and datagrams, and shuts everything down on request.
package runtime

import (
	"chat-relay/moderation"
	"chat-relay/runtime/workers"
	"chat-relay/session"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Options struct {
	Host            string
	TCPPort         int
	UDPPort         int
	Session         session.Settings
	MaxDatagramSize int
	RestartInterval time.Duration
	HealthInterval  time.Duration
	ShutdownTimeout time.Duration
	ModerationDir   string
	CharReplacement rune
}

// Server owns the registry and every loop of the chat server.
type Server struct {
	mu          sync.Mutex
	log         *slog.Logger
	opts        Options
	registry    *Registry
	broadcaster *Broadcaster
	supervisor  *workers.Supervisor
	listener    net.Listener
	datagrams   *net.UDPConn
	acceptor    *Acceptor
	stopped     chan struct{}
	shutdown    bool
}

func NewServer(log *slog.Logger, opts Options) *Server {
	registry := NewRegistry()
	return &Server{
		log:         log,
		opts:        opts,
		registry:    registry,
		broadcaster: NewBroadcaster(log, registry),
		supervisor:  workers.NewSupervisor(log, opts.RestartInterval),
		stopped:     make(chan struct{}),
	}
}

// Start binds both transports and runs the loops in the background.
// A reliable transport bind failure is returned as a *BindError. A datagram
// bind failure is logged and the server runs without a relay.
func (s *Server) Start(ctx context.Context) error {
	// Heavy preparation happens before anything is bound
	moderator, err := s.prepareModeration()
	if err != nil {
		return err
	}

	listener, err := ListenTCP(joinHostPort(s.opts.Host, s.opts.TCPPort))
	if err != nil {
		return err
	}

	interpreter := NewInterpreter(s.log, s.broadcaster)
	acceptor := NewAcceptor(s.log, listener, s.registry, s.broadcaster, interpreter, moderator, s.opts.Session)
	s.supervisor.Add(acceptor)

	datagrams, err := ListenUDP(joinHostPort(s.opts.Host, s.opts.UDPPort))
	if err != nil {
		s.log.Error("Datagram relay disabled", "error", err)
		var bindErr *BindError
		if errors.As(err, &bindErr) {
			s.log.Error(bindErr.Remediation())
		}
	} else {
		s.supervisor.Add(NewDatagramRelay(s.log, datagrams, s.registry, s.opts.MaxDatagramSize))
	}

	if s.opts.HealthInterval > 0 {
		health, err := workers.NewHealthWorker(s.log, s.registry, s.opts.HealthInterval)
		if err != nil {
			s.log.Warn("Health logging disabled", "error", err)
		} else {
			s.supervisor.Add(health)
		}
	}

	s.mu.Lock()
	s.listener = listener
	s.datagrams = datagrams
	s.acceptor = acceptor
	s.mu.Unlock()

	go func() {
		defer close(s.stopped)
		s.supervisor.Run(ctx)
	}()
	s.log.Info("Chat server started", "tcp", listener.Addr().String(), "udp", s.UDPAddr())
	return nil
}

// prepareModeration loads the censored word lists, nil when moderation is off.
func (s *Server) prepareModeration() (*moderation.Moderator, error) {
	if s.opts.ModerationDir == "" {
		return nil, nil
	}
	data, err := NewCensoredLoader(os.DirFS(s.opts.ModerationDir)).LoadAll(".")
	if err != nil {
		return nil, fmt.Errorf("load censored words from %s: %w", s.opts.ModerationDir, err)
	}
	s.log.Info(fmt.Sprintf("%d censored files loaded [%s]", len(data.Lists), strings.Join(data.Lists, ",")))
	s.log.Info(fmt.Sprintf("%d unique censored words loaded", len(data.Words)))

	replacement := s.opts.CharReplacement
	if replacement == 0 {
		replacement = '*'
	}
	return moderation.NewModerator(data.Words, replacement, s.log)
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// TCPAddr is the bound reliable transport address, nil before Start.
func (s *Server) TCPAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// UDPAddr is the bound datagram address, nil when the relay is disabled.
func (s *Server) UDPAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.datagrams == nil {
		return nil
	}
	return s.datagrams.LocalAddr()
}

func (s *Server) Registry() *Registry {
	return s.registry
}

// Shutdown disconnects every session, closes both transports and waits for
// the loops to end, at most ShutdownTimeout. Later calls do nothing.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if s.shutdown || s.acceptor == nil {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	listener, datagrams, acceptor := s.listener, s.datagrams, s.acceptor
	s.mu.Unlock()

	s.log.Info("Shutting down chat server", "sessions", s.registry.Len())
	acceptor.DisconnectAll("server shutdown")
	if err := listener.Close(); err != nil {
		s.log.Debug("Closing listener failed", "error", err)
	}
	if datagrams != nil {
		if err := datagrams.Close(); err != nil {
			s.log.Debug("Closing datagram socket failed", "error", err)
		}
	}
	s.supervisor.Stop()

	done := make(chan struct{})
	go func() {
		acceptor.Wait()
		<-s.stopped
		close(done)
	}()

	timeout := s.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-done:
		s.log.Info("Chat server stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown did not complete within %s", timeout)
	}
}
