// Package web is the browser host: an HTTP server whose page sends dropped
// files and control changes over a WebSocket and shows the frames rendered
// by the viewer core.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"io/fs"
	"mime"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/taigrr/stlview/pkg/viewer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

//go:embed static
var staticFiles embed.FS

const shutdownTimeout = 5 * time.Second

// Options configure a Server.
type Options struct {
	Scene        viewer.Options
	Params       viewer.Params // Display parameters new sessions start with
	Ingest       viewer.IngestOptions
	ThumbnailTTL time.Duration
	Width        int // Initial frame size in pixels
	Height       int
	FPS          int
}

// DefaultOptions returns the stock browser host setup.
func DefaultOptions() Options {
	return Options{
		Scene:        viewer.DefaultOptions(),
		Params:       viewer.DefaultParams(),
		ThumbnailTTL: viewer.DefaultThumbnailTTL,
		Width:        640,
		Height:       480,
		FPS:          30,
	}
}

// Server serves the viewer page, its WebSocket and the metrics endpoint.
type Server struct {
	opts     Options
	log      *zap.Logger
	metrics  *Metrics
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewServer creates a server.
func NewServer(opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	opts.Width = clampSize(opts.Width)
	opts.Height = clampSize(opts.Height)

	s := &Server{
		opts:     opts,
		log:      log,
		sessions: make(map[uuid.UUID]*Session),
	}
	s.metrics = NewMetrics(s.liveBuffers)

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}

	s.mux = http.NewServeMux()
	s.mux.Handle("GET /", http.FileServerFS(static))
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.HandleFunc("GET /export.glb", s.handleExport)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Run listens on addr and serves until ctx is canceled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled. Open sessions end with ctx.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Session returns the open session with the given ID.
func (s *Server) Session(id uuid.UUID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// SessionCount returns the number of open sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) liveBuffers() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, sess := range s.sessions {
		n, _ := sess.scene.Resources()
		total += n
	}
	return float64(total)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	limit := s.opts.Ingest.MaxFileSize
	if limit <= 0 {
		limit = viewer.DefaultMaxFileSize
	}
	conn.SetReadLimit(limit + 64<<10)

	sess := newSession(conn, s.opts, s.metrics, s.log)
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	s.metrics.ClientsActive.Inc()

	s.log.Info("client connected",
		zap.String("session", sess.id.String()),
		zap.String("remote", r.RemoteAddr),
	)

	if err := sess.Run(r.Context()); err != nil {
		s.log.Warn("session ended with error", zap.String("session", sess.id.String()), zap.Error(err))
	}

	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
	s.metrics.ClientsActive.Dec()
	s.log.Info("client disconnected", zap.String("session", sess.id.String()))
}

// handleExport serves the displayed object of a session as binary glTF.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.URL.Query().Get("session"))
	if err != nil {
		http.Error(w, "missing or bad session", http.StatusBadRequest)
		return
	}
	sess, ok := s.Session(id)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := sess.scene.Export(&buf); err != nil {
		if errors.Is(err, viewer.ErrNoModel) {
			http.Error(w, viewer.NoModelText, http.StatusNotFound)
			return
		}
		s.log.Error("export failed", zap.Error(err))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	name := "model"
	if obj, ok := sess.scene.Object(); ok && obj.Name != "" {
		name = obj.Name
	}
	w.Header().Set("Content-Type", "model/gltf-binary")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name + ".glb"}))
	w.Write(buf.Bytes())
}
