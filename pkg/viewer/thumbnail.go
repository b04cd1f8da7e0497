package viewer

import (
	"bytes"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taigrr/stlview/pkg/render"
	"go.uber.org/zap"
)

// DefaultThumbnailTTL is how long a thumbnail is kept after it is added.
const DefaultThumbnailTTL = 60 * time.Second

// PreviewSize is the edge length in pixels of thumbnail previews.
const PreviewSize = 64

// Thumbnail is a short-lived record of a loaded file.
type Thumbnail struct {
	ID      uuid.UUID
	Name    string
	Data    []byte // Raw file contents
	Preview []byte // PNG image, may be nil
	Added   time.Time
}

type thumbEntry struct {
	thumb Thumbnail
	timer *time.Timer
}

// ThumbnailStore keeps thumbnails for a fixed time. Each record is released
// when its TTL runs out, whatever happens in the meantime.
type ThumbnailStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	entries  map[uuid.UUID]*thumbEntry
	onExpire func(Thumbnail)
	onAdd    func(Thumbnail)
	log      *zap.Logger
	closed   bool
}

// NewThumbnailStore creates a store whose records live for ttl. onExpire,
// if not nil, is called from a timer goroutine for every expired record.
func NewThumbnailStore(ttl time.Duration, onExpire func(Thumbnail), log *zap.Logger) *ThumbnailStore {
	if ttl <= 0 {
		ttl = DefaultThumbnailTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ThumbnailStore{
		ttl:      ttl,
		entries:  make(map[uuid.UUID]*thumbEntry),
		onExpire: onExpire,
		log:      log,
	}
}

// Add registers a thumbnail and starts its expiry timer.
func (s *ThumbnailStore) Add(name string, data, preview []byte) Thumbnail {
	t := Thumbnail{
		ID:      uuid.New(),
		Name:    name,
		Data:    data,
		Preview: preview,
		Added:   time.Now(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return t
	}
	e := &thumbEntry{thumb: t}
	e.timer = time.AfterFunc(s.ttl, func() { s.expire(t.ID) })
	s.entries[t.ID] = e
	fn := s.onAdd
	s.mu.Unlock()

	if fn != nil {
		fn(t)
	}
	return t
}

// OnAdd registers fn to be called with every stored thumbnail.
func (s *ThumbnailStore) OnAdd(fn func(Thumbnail)) {
	s.mu.Lock()
	s.onAdd = fn
	s.mu.Unlock()
}

func (s *ThumbnailStore) expire(id uuid.UUID) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	fn := s.onExpire
	s.mu.Unlock()

	if !ok {
		return
	}
	s.log.Debug("thumbnail expired", zap.String("id", id.String()), zap.String("name", e.thumb.Name))
	if fn != nil {
		fn(e.thumb)
	}
}

// Get returns the thumbnail with the given ID if it has not expired.
func (s *ThumbnailStore) Get(id uuid.UUID) (Thumbnail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return Thumbnail{}, false
	}
	return e.thumb, true
}

// List returns the live thumbnails, newest first.
func (s *ThumbnailStore) List() []Thumbnail {
	s.mu.Lock()
	out := make([]Thumbnail, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.thumb)
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b Thumbnail) int {
		return b.Added.Compare(a.Added)
	})
	return out
}

// Len returns the number of live thumbnails.
func (s *ThumbnailStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close releases every thumbnail without calling the expiry callback.
// Later calls to Add return records that are not stored.
func (s *ThumbnailStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, id)
	}
	s.closed = true
}

// Preview renders the displayed object into a size x size PNG, framed the
// same way a freshly loaded object is. It returns ErrNoModel when nothing is
// displayed.
func (s *Scene) Preview(size int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.object == nil {
		return nil, ErrNoModel
	}

	cam := render.NewCamera()
	cam.SetFOV(s.opts.FOV)
	FitCamera(cam, nil, s.object.WorldBounds(), s.opts.FitOffset)

	fb := render.NewFramebuffer(size, size)
	r := render.NewRasterizer(cam, fb)
	fb.Clear(s.opts.Background)
	r.ClearDepth()

	obj := s.object
	if obj.Wireframe {
		r.DrawBufferWireframe(obj.buffer, obj.Transform(), obj.Color)
	} else {
		r.DrawBuffer(obj.buffer, obj.Transform(), obj.Color, s.light)
	}

	var buf bytes.Buffer
	if err := fb.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
