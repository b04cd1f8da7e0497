package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/taigrr/stlview/pkg/render"
	"github.com/taigrr/stlview/pkg/viewer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait     = 10 * time.Second
	minFrameSize  = 16
	maxFrameSize  = 2048
	progressSteps = 100
)

var errSessionClosed = errors.New("web: session closed")

// upload is a file received over the socket.
type upload struct {
	name string
	*bytes.Reader
}

func (u upload) Name() string { return u.name }

// Session is one connected page. Each session has its own scene, so two
// browser tabs never see each other's model.
type Session struct {
	id      uuid.UUID
	conn    *websocket.Conn
	log     *zap.Logger
	metrics *Metrics
	opts    Options

	scene    *viewer.Scene
	ingestor *viewer.Ingestor
	thumbs   *viewer.ThumbnailStore

	writeMu sync.Mutex

	mu      sync.Mutex
	params  viewer.Params // Applied to the next load
	pending *clientMessage
	width   int
	height  int

	dirty atomic.Bool
	loads sync.WaitGroup
}

func newSession(conn *websocket.Conn, opts Options, metrics *Metrics, log *zap.Logger) *Session {
	id := uuid.New()
	log = log.With(zap.String("session", id.String()))

	scene := viewer.NewScene(opts.Scene, log.Named("scene"))
	s := &Session{
		id:      id,
		conn:    conn,
		log:     log,
		metrics: metrics,
		opts:    opts,
		scene:   scene,
		params:  opts.Params,
		width:   opts.Width,
		height:  opts.Height,
	}
	s.thumbs = viewer.NewThumbnailStore(opts.ThumbnailTTL, s.thumbnailExpired, log.Named("thumbs"))
	s.thumbs.OnAdd(s.thumbnailAdded)
	s.ingestor = viewer.NewIngestor(viewer.NewPresenter(scene, log.Named("presenter")), s.thumbs, opts.Ingest, log.Named("ingest"))
	scene.OnStatus(s.statusChanged)
	s.dirty.Store(true)
	return s
}

// ID returns the session identifier sent to the page in the hello message.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Scene returns the session's scene.
func (s *Session) Scene() *viewer.Scene {
	return s.scene
}

// Run serves the connection until the page goes away or ctx is canceled.
func (s *Session) Run(ctx context.Context) error {
	if err := s.hello(); err != nil {
		return err
	}
	if err := s.send(newStatusMessage(s.scene.Status())); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(ctx) })
	g.Go(func() error { return s.renderLoop(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		// Unblocks the read loop
		s.conn.Close()
		return nil
	})

	err := g.Wait()
	s.close()
	if errors.Is(err, errSessionClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Session) close() {
	s.ingestor.Cancel()
	s.loads.Wait()
	s.thumbs.Close()
	s.scene.OnStatus(nil)
	s.scene.Reset()
}

func (s *Session) hello() error {
	light := s.scene.Lighting()
	s.mu.Lock()
	p := s.params
	s.mu.Unlock()
	return s.send(helloMessage{
		Type:    msgHello,
		Session: s.id.String(),
		Params: paramsMessage{
			Color:       viewer.FormatColor(p.Color),
			Wireframe:   p.Wireframe,
			Scale:       p.Scale,
			Ambient:     light.Ambient,
			Directional: light.Directional,
		},
	})
}

func (s *Session) readLoop(ctx context.Context) error {
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read failed", zap.Error(err))
			}
			return errSessionClosed
		}

		switch kind {
		case websocket.TextMessage:
			var msg clientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				s.sendError(fmt.Errorf("bad message: %w", err))
				continue
			}
			s.handle(ctx, msg)
		case websocket.BinaryMessage:
			s.receiveFile(ctx, data)
		}
	}
}

func (s *Session) handle(ctx context.Context, msg clientMessage) {
	s.log.Debug("message", zap.String("type", msg.Type))

	switch msg.Type {
	case msgFile:
		err := s.ingestor.Check(msg.Name, msg.Size)
		s.mu.Lock()
		s.pending = nil
		if err == nil {
			s.pending = &msg
		}
		s.mu.Unlock()
		if err != nil {
			s.metrics.RecordLoad(err, 0, 0)
			s.sendError(err)
			return
		}
	case msgControl:
		if err := s.control(msg.Name, msg.Value); err != nil {
			s.sendError(err)
			return
		}
		s.metrics.ControlsTotal.WithLabelValues(msg.Name).Inc()
	case msgReset:
		s.ingestor.Cancel()
		s.scene.Reset()
	case msgOrbit:
		s.scene.Orbit(msg.DX, msg.DY)
	case msgZoom:
		s.scene.Zoom(msg.Delta)
	case msgPan:
		s.scene.Pan(msg.DX, msg.DY)
	case msgResize:
		s.resize(msg.Width, msg.Height)
	case msgOpen:
		s.reopen(ctx, msg.ID)
	default:
		s.sendError(fmt.Errorf("unknown message type %q", msg.Type))
		return
	}
	s.dirty.Store(true)
}

// control applies one display control to the scene and remembers it for
// the next load.
func (s *Session) control(name string, raw json.RawMessage) error {
	switch name {
	case "color":
		var hex string
		if err := json.Unmarshal(raw, &hex); err != nil {
			return fmt.Errorf("%w: color must be a string", viewer.ErrInvalidValue)
		}
		c, err := viewer.ParseColor(hex)
		if err != nil {
			return err
		}
		if err := s.scene.SetColor(hex); err != nil {
			return err
		}
		s.mu.Lock()
		s.params.Color = c
		s.mu.Unlock()
	case "wireframe":
		var on bool
		if err := json.Unmarshal(raw, &on); err != nil {
			return fmt.Errorf("%w: wireframe must be a boolean", viewer.ErrInvalidValue)
		}
		s.scene.SetWireframe(on)
		s.mu.Lock()
		s.params.Wireframe = on
		s.mu.Unlock()
	case "scale", "ambient", "directional":
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%w: %s must be a number", viewer.ErrInvalidValue, name)
		}
		switch name {
		case "scale":
			if err := s.scene.SetScale(v); err != nil {
				return err
			}
			s.mu.Lock()
			s.params.Scale = v
			s.mu.Unlock()
		case "ambient":
			return s.scene.SetAmbient(v)
		case "directional":
			return s.scene.SetDirectional(v)
		}
	default:
		return fmt.Errorf("%w: unknown control %q", viewer.ErrInvalidValue, name)
	}
	return nil
}

func (s *Session) resize(w, h int) {
	s.mu.Lock()
	s.width = clampSize(w)
	s.height = clampSize(h)
	s.mu.Unlock()
}

func clampSize(v int) int {
	return min(max(v, minFrameSize), maxFrameSize)
}

// receiveFile ingests the bytes announced by the last file message.
func (s *Session) receiveFile(ctx context.Context, data []byte) {
	s.mu.Lock()
	hdr := s.pending
	s.pending = nil
	params := s.params
	s.mu.Unlock()

	if hdr == nil {
		s.sendError(errors.New("file data without a file message"))
		return
	}
	s.load(ctx, upload{name: hdr.Name, Reader: bytes.NewReader(data)}, params)
}

// reopen loads a file again from its thumbnail.
func (s *Session) reopen(ctx context.Context, id string) {
	tid, err := uuid.Parse(id)
	if err != nil {
		s.sendError(fmt.Errorf("bad thumbnail id %q", id))
		return
	}
	th, ok := s.thumbs.Get(tid)
	if !ok {
		s.sendError(fmt.Errorf("thumbnail %s has expired", id))
		return
	}
	s.mu.Lock()
	params := s.params
	s.mu.Unlock()
	s.load(ctx, upload{name: th.Name, Reader: bytes.NewReader(th.Data)}, params)
}

// load ingests f in the background so the read loop can keep serving
// controls and can start a newer load that supersedes this one.
func (s *Session) load(ctx context.Context, f upload, params viewer.Params) {
	s.loads.Add(1)
	go func() {
		defer s.loads.Done()

		start := time.Now()
		_, err := s.ingestor.Ingest(ctx, f, params, s.progress(f.name))
		s.metrics.RecordLoad(err, int(f.Size()), time.Since(start))
		if err != nil {
			if !isCanceled(err) {
				s.log.Info("load failed", zap.String("file", f.name), zap.Error(err))
				s.sendError(err)
			}
			return
		}
		s.dirty.Store(true)
	}()
}

// progress returns a ProgressFunc that reports at most progressSteps times.
func (s *Session) progress(name string) viewer.ProgressFunc {
	last := int64(-1)
	return func(read, total int64) {
		step := int64(0)
		if total > 0 {
			step = read * progressSteps / total
		}
		if step == last && read != total {
			return
		}
		last = step
		s.send(progressMessage{Type: msgProgress, Name: name, Read: read, Total: total})
	}
}

func (s *Session) renderLoop(ctx context.Context) error {
	fps := s.opts.FPS
	if fps <= 0 {
		fps = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	var fb *render.Framebuffer
	var png bytes.Buffer

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		moved := s.scene.Update()
		if !moved && !s.dirty.Swap(false) {
			continue
		}

		s.mu.Lock()
		w, h := s.width, s.height
		s.mu.Unlock()
		if fb == nil || fb.Width != w || fb.Height != h {
			fb = render.NewFramebuffer(w, h)
		}

		s.scene.Render(fb)
		png.Reset()
		if err := fb.EncodePNG(&png); err != nil {
			return fmt.Errorf("encode frame: %w", err)
		}
		if err := s.write(websocket.BinaryMessage, png.Bytes()); err != nil {
			return errSessionClosed
		}
		s.metrics.FramesTotal.Inc()
	}
}

func (s *Session) statusChanged(st viewer.Status) {
	s.dirty.Store(true)
	s.send(newStatusMessage(st))
}

func (s *Session) thumbnailAdded(th viewer.Thumbnail) {
	s.send(newThumbnailMessage(th))
}

func (s *Session) thumbnailExpired(th viewer.Thumbnail) {
	s.send(thumbnailMessage{Type: msgThumbnailExpired, ID: th.ID.String()})
}

func (s *Session) sendError(err error) {
	s.send(errorMessage{Type: msgError, Message: err.Error()})
}

// send writes v as a JSON text message. Write failures are logged; the read
// loop notices the broken connection.
func (s *Session) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("marshal message", zap.Error(err))
		return err
	}
	if err := s.write(websocket.TextMessage, data); err != nil {
		s.log.Debug("write failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *Session) write(kind int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(kind, data)
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
