package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"
)

// Handler answers one decoded request.
type Handler func(*Request) *Response

// Server accepts command connections and feeds decoded requests to a
// handler, one goroutine per connection. Each connection carries a sequence
// of request/response frames, which is the contract redirects rely on.
type Server struct {
	addr    string
	handler Handler
	logger  *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

func NewServer(address string, handler Handler, logger *zap.Logger) *Server {
	return &Server{
		addr:    address,
		handler: handler,
		logger:  logger,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Start listens and serves until Stop is called. It blocks.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("command server listening", zap.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				s.wg.Wait()
				return nil
			}
			return err
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			continue
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

// Addr reports the bound listen address, useful with port 0 in tests.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop closes the listener and every open connection, then waits for the
// per-connection goroutines.
func (s *Server) Stop() {
	s.mu.Lock()
	s.closed = true
	ln := s.listener
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	s.wg.Wait()
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	for {
		payload, err := readFrame(conn, 0)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("connection read failed",
					zap.String("peer", conn.RemoteAddr().String()), zap.Error(err))
			}
			return
		}

		var req Request
		if err := json.Unmarshal(payload, &req); err != nil {
			s.logger.Warn("dropping undecodable request",
				zap.String("peer", conn.RemoteAddr().String()), zap.Error(err))
			return
		}

		resp := s.handler(&req)
		out, err := json.Marshal(resp)
		if err != nil {
			s.logger.Error("encode response failed", zap.Error(err))
			return
		}
		if err := writeFrame(conn, out, 0); err != nil {
			s.logger.Debug("connection write failed",
				zap.String("peer", conn.RemoteAddr().String()), zap.Error(err))
			return
		}
	}
}
