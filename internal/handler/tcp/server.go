// Package tcp is the primary transport: newline-delimited JSON envelopes
// over plain TCP, one goroutine per connection. It parses frames, feeds them
// to the routing engine's dispatch table, and reports dropped connections so
// presence stays consistent.
package tcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/relaychat/relayd/config"
	"github.com/relaychat/relayd/internal/domain/model"
	"github.com/relaychat/relayd/internal/service"
)

// maxFrame bounds a single request line.
const maxFrame = 1 << 20

type Server struct {
	log    *slog.Logger
	router *service.Router

	addr         string
	readTimeout  time.Duration
	writeTimeout time.Duration

	ln net.Listener
}

func NewServer(log *slog.Logger, cfg *config.Config, router *service.Router) *Server {
	return &Server{
		log:          log,
		router:       router,
		addr:         cfg.Server.TCPAddr,
		readTimeout:  cfg.Server.ReadTimeout,
		writeTimeout: cfg.Server.WriteTimeout,
	}
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.log.Info("tcp listener started", "addr", ln.Addr().String())
	go s.acceptLoop()
	return nil
}

// Stop closes the listener. In-flight connections finish on their own; no
// new logins can arrive once this returns, which is what the shutdown-time
// presence reset relies on.
func (s *Server) Stop() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

func (s *Server) acceptLoop() {
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept failed", "err", err)
			continue
		}
		go s.handle(nc)
	}
}

// handle runs one connection's read loop to completion. Every exit path
// funnels through the disconnect callback, so a connection that vanished
// mid-session releases its presence entry.
func (s *Server) handle(nc net.Conn) {
	c := newConn(nc, s.writeTimeout)
	ctx := context.Background()

	defer func() {
		s.router.HandleDisconnect(ctx, c)
		_ = nc.Close()
	}()

	s.log.Debug("client connected", "remote", c.RemoteAddr())

	reader := bufio.NewReaderSize(nc, 4096)
	for {
		if s.readTimeout > 0 {
			_ = nc.SetReadDeadline(time.Now().Add(s.readTimeout))
		}
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				s.log.Debug("read failed", "remote", c.RemoteAddr(), "err", err)
			}
			return
		}
		if len(line) > maxFrame {
			s.log.Warn("oversized frame dropped", "remote", c.RemoteAddr(), "size", len(line))
			return
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		env, err := model.Decode(line)
		if err != nil {
			// A malformed frame never takes the connection down.
			s.log.Warn("undecodable frame", "remote", c.RemoteAddr(), "err", err)
			continue
		}

		s.router.Dispatch(ctx, c, env)
	}
}
