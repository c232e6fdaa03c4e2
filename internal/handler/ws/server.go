// Package ws is the websocket transport. It carries the same envelope
// protocol as the TCP listener, one JSON envelope per text frame, through
// the same dispatch table, so browser clients get identical semantics.
package ws

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/relaychat/relayd/config"
	"github.com/relaychat/relayd/internal/domain/model"
	"github.com/relaychat/relayd/internal/service"
)

type Server struct {
	log    *slog.Logger
	router *service.Router

	addr         string
	readTimeout  time.Duration
	writeTimeout time.Duration

	httpSrv  *http.Server
	upgrader websocket.Upgrader
}

func NewServer(log *slog.Logger, cfg *config.Config, router *service.Router) *Server {
	return &Server{
		log:          log,
		router:       router,
		addr:         cfg.Server.WSAddr,
		readTimeout:  cfg.Server.ReadTimeout,
		writeTimeout: cfg.Server.WriteTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start is a no-op when no websocket address is configured.
func (s *Server) Start() error {
	if s.addr == "" {
		return nil
	}
	mux := chi.NewRouter()
	mux.Get("/ws", s.serveWS)

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.httpSrv = &http.Server{Handler: mux}
	s.log.Info("websocket listener started", "addr", ln.Addr().String())
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("websocket server failed", "err", err)
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	wsc, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := newConn(wsc, s.writeTimeout)
	ctx := context.Background()
	defer func() {
		s.router.HandleDisconnect(ctx, c)
		_ = wsc.Close()
	}()

	s.log.Debug("ws client connected", "remote", c.RemoteAddr())

	for {
		if s.readTimeout > 0 {
			_ = wsc.SetReadDeadline(time.Now().Add(s.readTimeout))
		}
		kind, frame, err := wsc.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage || len(frame) == 0 {
			continue
		}

		env, err := model.Decode(frame)
		if err != nil {
			s.log.Warn("undecodable ws frame", "remote", c.RemoteAddr(), "err", err)
			continue
		}
		s.router.Dispatch(ctx, c, env)
	}
}
