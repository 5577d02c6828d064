// Package wschat exposes the assistant over a websocket for local testing and
// web clients.
package wschat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"aide/internal/assistant"
)

type Handler interface {
	HandleCommand(ctx context.Context, userID, command string, out assistant.Replier) error
	HandleText(ctx context.Context, userID, text string, out assistant.Replier) error
	HandleVoice(ctx context.Context, userID string, audio io.Reader, ext string, out assistant.Replier) error
}

// Counter reports the number of live sessions for the health endpoint.
type Counter interface {
	Len(ctx context.Context) (int, error)
}

// Options guard the chat socket.
type Options struct {
	// Token must be presented by every client; an empty token locks /ws.
	Token          string
	AllowedOrigins []string
	MaxFrameBytes  int64
}

type Server struct {
	handler  Handler
	sessions Counter
	opts     Options
	upgrader websocket.Upgrader
	logger   *slog.Logger
	started  time.Time
}

func NewServer(handler Handler, sessions Counter, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		handler:  handler,
		sessions: sessions,
		opts:     opts,
		logger:   logger,
		started:  time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(recovery(s.logger))

	r.With(requestLogger(s.logger)).Get("/healthz", s.health)
	r.With(bearerAuth(s.opts.Token)).Get("/ws", s.serveWS)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("web chat listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	}
	code := http.StatusOK
	if s.sessions != nil {
		n, err := s.sessions.Len(r.Context())
		if err != nil {
			status["status"] = "degraded"
			status["error"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			status["sessions"] = n
		}
	}
	writeJSON(w, code, status)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err, "origin", r.Header.Get("Origin"))
		return
	}
	c := newConn(ws, s.opts.MaxFrameBytes)
	defer ws.Close()

	s.logger.Info("web chat client connected", "remote", r.RemoteAddr)
	ctx := r.Context()

	for {
		msg, err := c.read()
		if err != nil {
			if !isClosed(err) {
				s.logger.Warn("web chat read failed", "err", err)
			}
			return
		}

		f, err := decode(msg)
		if err != nil {
			c.write(&Frame{From: "aide", Kind: KindError, Content: "invalid frame: " + err.Error()})
			continue
		}
		s.dispatch(ctx, c, f)
	}
}

func (s *Server) dispatch(ctx context.Context, c *conn, f *Frame) {
	if f.From == "" {
		c.write(&Frame{From: "aide", Kind: KindError, Content: "frame has no sender"})
		return
	}

	userID := "web:" + f.From
	out := assistant.ReplierFunc(func(_ context.Context, text string) error {
		return c.write(&Frame{From: "aide", To: f.From, Kind: KindReply, Content: text})
	})

	var err error
	switch f.Kind {
	case KindText, "":
		text := strings.TrimSpace(f.Content)
		if strings.HasPrefix(text, "/") {
			cmd, _, _ := strings.Cut(text[1:], " ")
			err = s.handler.HandleCommand(ctx, userID, cmd, out)
		} else {
			err = s.handler.HandleText(ctx, userID, f.Content, out)
		}
	case KindVoice:
		err = s.handler.HandleVoice(ctx, userID, bytes.NewReader(f.Audio), f.Content, out)
	default:
		err = c.write(&Frame{From: "aide", To: f.From, Kind: KindError, Content: "unknown kind " + f.Kind})
	}
	if err != nil {
		s.logger.Error("web chat turn failed", "user", userID, "err", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
