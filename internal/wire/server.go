package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HandlerFunc processes one request on the node side.
type HandlerFunc func(Request) Response

// Server accepts wire connections on a node and dispatches them to a
// handler, one goroutine per connection.
type Server struct {
	handler HandlerFunc
	log     *zap.Logger

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

// NewServer builds a server; Listen starts it.
func NewServer(handler HandlerFunc, log *zap.Logger) *Server {
	return &Server{handler: handler, log: log}
}

// Listen binds addr and serves until Close. It returns once the listener is
// bound; accept errors after Close are swallowed.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("wire: listen %s: %w", addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.log.Debug("wire server listening", zap.String("addr", ln.Addr().String()))

	s.wg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

// Addr returns the bound listener address, or empty before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Close stops the listener and waits for in-flight connections.
func (s *Server) Close() error {
	s.mu.Lock()
	ln := s.ln
	s.ln = nil
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.Error("wire accept failed", zap.Error(err))
			}
			return
		}
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(dialTimeout))

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.log.Debug("wire request decode failed",
			zap.String("remote", conn.RemoteAddr().String()),
			zap.Error(err))
		return
	}
	s.log.Debug("wire request",
		zap.String("remote", conn.RemoteAddr().String()),
		zap.String("cmd", req.Cmd),
		zap.String("id", req.ID))

	var resp Response
	switch {
	case req.Cmd == CmdPing:
		resp = OK(req, "pong")
	case s.handler != nil:
		resp = s.safeHandle(req)
	default:
		resp = Fail(req, fmt.Sprintf("no handler for cmd %q", req.Cmd))
	}

	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.log.Debug("wire response write failed", zap.Error(err))
	}
}

// safeHandle keeps a panicking handler from taking down the agent.
func (s *Server) safeHandle(req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("wire handler panicked", zap.Any("panic", r), zap.String("cmd", req.Cmd))
			resp = Fail(req, fmt.Sprintf("handler panic: %v", r))
		}
	}()
	return s.handler(req)
}
