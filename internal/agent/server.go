// Package agent exposes a speaker backend over HTTP so that a panel on
// another host, or in another process, can drive it.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tessro/spotpanel/internal/core"
	panelerrors "github.com/tessro/spotpanel/internal/errors"
	"github.com/tessro/spotpanel/internal/remote/httpapi"
)

const (
	callTimeout  = 5 * time.Second
	writeTimeout = 2 * time.Second
)

// Server serves a core.Remote.
type Server struct {
	remote   core.Remote
	log      *zap.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// New creates a server for remote.
func New(remote core.Remote, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		remote: remote,
		log:    log.With(zap.String("component", "agent")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		mux: http.NewServeMux(),
	}

	s.mux.HandleFunc("GET "+httpapi.PathStatus, s.handleStatus)
	s.mux.HandleFunc("GET "+httpapi.PathNowPlaying, s.handleNowPlaying)
	s.mux.HandleFunc("GET "+httpapi.PathSettings, s.handleGetSettings)
	s.mux.HandleFunc("POST "+httpapi.PathSettings, s.handleSaveSettings)
	s.mux.HandleFunc("POST "+httpapi.PathSetVolume, s.handleSetVolume)
	s.mux.HandleFunc("GET "+httpapi.PathLogs, s.handleLogs)
	s.mux.HandleFunc("GET "+httpapi.PathEvents, s.handleEvents)
	for _, name := range httpapi.Commands {
		s.mux.HandleFunc("POST "+httpapi.CommandPath(name), s.commandHandler(name))
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.log.Debug("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Duration("elapsed", time.Since(start)))
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("agent listening", zap.String("addr", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("graceful shutdown failed", zap.Error(err))
		return err
	}
	s.log.Info("agent stopped")
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), callTimeout)
	defer cancel()

	st, err := s.remote.FetchServiceState(ctx)
	if err != nil {
		s.writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, httpapi.FromServiceState(st))
}

func (s *Server) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), callTimeout)
	defer cancel()

	np, err := s.remote.FetchNowPlaying(ctx)
	if err != nil {
		s.writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, httpapi.FromNowPlaying(np))
}

// handleLogs answers GET /api/logs?lines=N. A missing count asks for the
// default.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	lines := 0
	if v := r.URL.Query().Get("lines"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid lines %q", v))
			return
		}
		lines = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), callTimeout)
	defer cancel()

	out, err := s.remote.Logs(ctx, core.ClampLogLines(lines))
	if err != nil {
		s.writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, httpapi.Logs{Lines: out})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), callTimeout)
	defer cancel()

	settings, err := s.remote.FetchSettings(ctx)
	if err != nil {
		s.writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, httpapi.FromSettings(settings))
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var body httpapi.Settings
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid settings body: %w", err))
		return
	}
	settings := body.ToCore()
	if err := settings.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), callTimeout)
	defer cancel()
	s.writeResult(w, "save settings", func() (bool, error) {
		return s.remote.SaveSettings(ctx, settings)
	})
}

func (s *Server) handleSetVolume(w http.ResponseWriter, r *http.Request) {
	var body httpapi.VolumeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid volume body: %w", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), callTimeout)
	defer cancel()
	s.writeResult(w, "set volume", func() (bool, error) {
		return s.remote.SetVolume(ctx, core.ClampFraction(body.Volume))
	})
}

func (s *Server) commandHandler(name string) http.HandlerFunc {
	call := s.commandFunc(name)
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), callTimeout)
		defer cancel()
		s.writeResult(w, name, func() (bool, error) {
			return call(ctx)
		})
	}
}

func (s *Server) commandFunc(name string) func(context.Context) (bool, error) {
	switch name {
	case httpapi.CommandStart:
		return s.remote.Start
	case httpapi.CommandStop:
		return s.remote.Stop
	case httpapi.CommandRestart:
		return s.remote.Restart
	case httpapi.CommandEnable:
		return s.remote.Enable
	case httpapi.CommandDisable:
		return s.remote.Disable
	case httpapi.CommandPlayPause:
		return s.remote.PlayPause
	case httpapi.CommandNext:
		return s.remote.Next
	case httpapi.CommandPrevious:
		return s.remote.Previous
	}
	panic("agent: unknown command " + name)
}

// writeResult runs call and answers {"ok": ...}. A backend error is logged
// and reported as ok=false so that clients see the command as declined.
func (s *Server) writeResult(w http.ResponseWriter, op string, call func() (bool, error)) {
	ok, err := call()
	if err != nil {
		s.log.Warn("command failed", zap.String("op", op), zap.Error(err))
		ok = false
	}
	writeJSON(w, http.StatusOK, httpapi.Result{OK: ok})
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.log.Warn("request failed", zap.Int("status", status), zap.Error(err))
	writeJSON(w, status, httpapi.NewAPIError(status, err.Error()))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// handleEvents streams now-playing snapshots. Every client gets its own
// backend subscription. Clients fetch the current snapshot themselves.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	client := &eventClient{conn: conn}
	ctx := r.Context()

	sub, err := s.remote.SubscribeNowPlaying(ctx, func(np core.NowPlaying) {
		if err := client.send(np); err != nil {
			s.log.Debug("event write failed", zap.Error(err))
		}
	})
	if err != nil {
		s.log.Warn("subscribe failed", zap.Error(err))
		_ = client.close(websocket.CloseInternalServerErr, "subscribe failed")
		return
	}
	defer sub.Unsubscribe()

	// Drain incoming frames to detect disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

type eventClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *eventClient) send(np core.NowPlaying) error {
	data, err := json.Marshal(httpapi.FromNowPlaying(np))
	if err != nil {
		return err
	}
	msg, err := json.Marshal(httpapi.Event{Event: httpapi.EventNowPlaying, Data: data})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *eventClient) close(code int, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, text)
	return c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}

// errorStatus maps a backend error to an HTTP status.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, panelerrors.ErrInvalidSettings):
		return http.StatusBadRequest
	case errors.Is(err, panelerrors.ErrServiceNotRunning), errors.Is(err, panelerrors.ErrPlayerNotFound):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
