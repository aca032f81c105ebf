package chat

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/andy6609/roomchat/internal/transport"
)

// Options configures a Server.
type Options struct {
	Addr        string
	MaxTextSize int
	Session     SessionOptions
	Recorder    Recorder
}

// Server is the listener. It owns the shared registries and the set of live
// sessions, whether they arrive over TCP or through the HTTP gateway.
type Server struct {
	addr       string
	logger     *slog.Logger
	users      *UserRegistry
	rooms      *RoomRegistry
	dispatcher *Dispatcher
	session    SessionOptions

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	stopping bool
	wg       sync.WaitGroup
}

func NewServer(opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	users := NewUserRegistry(logger)
	rooms := NewRoomRegistry(logger)
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:       opts.Addr,
		logger:     logger,
		users:      users,
		rooms:      rooms,
		dispatcher: NewDispatcher(users, rooms, opts.Recorder, opts.MaxTextSize, logger),
		session:    opts.Session,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (s *Server) Users() *UserRegistry { return s.users }

func (s *Server) Rooms() *RoomRegistry { return s.rooms }

// Addr returns the bound listen address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	if !s.track() {
		_ = ln.Close()
		return net.ErrClosed
	}
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ln)
	}()

	s.logger.Info("server started", "addr", ln.Addr().String())
	return nil
}

// Serve runs a session on conn until it ends. Connections offered after Stop
// are closed immediately.
func (s *Server) Serve(conn transport.Conn) {
	if !s.track() {
		_ = conn.Close()
		return
	}
	defer s.wg.Done()
	HandleSession(s.ctx, conn, s.dispatcher, s.session, s.logger)
}

// track adds one session to the wait group unless the server is stopping.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.wg.Add(1)
	return true
}

// Stop closes the listener, tells every session to close its connection and
// waits up to timeout for all of them to release their users.
func (s *Server) Stop(timeout time.Duration) error {
	s.logger.Info("shutting down")

	s.mu.Lock()
	s.stopping = true
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("shutdown complete")
		return nil
	case <-time.After(timeout):
		s.logger.Warn("shutdown timeout reached, some sessions may still be running")
		return context.DeadlineExceeded
	}
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if !s.track() {
			_ = conn.Close()
			return
		}
		go func() {
			defer s.wg.Done()
			HandleSession(s.ctx, transport.NewTCP(conn), s.dispatcher, s.session, s.logger)
		}()
	}
}
