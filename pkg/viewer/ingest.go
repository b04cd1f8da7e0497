package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/taigrr/stlview/pkg/models"
	"github.com/taigrr/stlview/pkg/stl"
	"go.uber.org/zap"
)

// DefaultMaxFileSize bounds how much of a file Ingest will read.
const DefaultMaxFileSize = 256 << 20

const readChunk = 64 << 10

// File is a user-supplied file. *os.File satisfies it.
type File interface {
	Name() string
	io.Reader
}

// ProgressFunc reports how many bytes of a file have been read. total is -1
// when the size is not known up front.
type ProgressFunc func(read, total int64)

// IngestOptions configure an Ingestor.
type IngestOptions struct {
	MaxFileSize   int64 // 0 means DefaultMaxFileSize
	MergeVertices bool  // Weld identical vertices for smooth shading
	PreviewSize   int   // 0 means PreviewSize
}

// Ingestor reads user files, decodes them and presents the result.
//
// Starting an ingestion cancels the one in flight, if any; only the most
// recently started ingestion can install its mesh.
type Ingestor struct {
	presenter *Presenter
	thumbs    *ThumbnailStore
	opts      IngestOptions
	log       *zap.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewIngestor creates an ingestor. thumbs may be nil to skip thumbnails.
func NewIngestor(p *Presenter, thumbs *ThumbnailStore, opts IngestOptions, log *zap.Logger) *Ingestor {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.PreviewSize <= 0 {
		opts.PreviewSize = PreviewSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingestor{presenter: p, thumbs: thumbs, opts: opts, log: log}
}

// CheckName returns ErrInvalidFileType unless name ends in ".stl", ignoring case.
func CheckName(name string) error {
	if !strings.EqualFold(filepath.Ext(name), ".stl") {
		return fmt.Errorf("%w: %q", ErrInvalidFileType, filepath.Base(name))
	}
	return nil
}

// Ingest reads f, decodes it and presents it with params.
//
// Files without an .stl extension are rejected before anything is read.
// Decode failures wrap ErrDecode and leave the displayed object alone. If a
// newer ingestion starts, or ctx is canceled, before this one presents, it
// returns context.Canceled and changes nothing.
func (in *Ingestor) Ingest(ctx context.Context, f File, params Params, progress ProgressFunc) (Status, error) {
	name := filepath.Base(f.Name())
	if err := CheckName(name); err != nil {
		return Status{}, err
	}
	if err := params.Validate(); err != nil {
		return Status{}, err
	}

	ctx, gen, done := in.begin(ctx)
	defer done()

	start := time.Now()
	data, err := in.read(ctx, f, progress)
	if err != nil {
		return Status{}, err
	}

	g, err := stl.Decode(data, stl.WithMergeVertices(in.opts.MergeVertices))
	if err != nil {
		return Status{}, fmt.Errorf("%w: %s: %w", ErrDecode, name, err)
	}
	g.Name = strings.TrimSuffix(name, filepath.Ext(name))

	st, preview, err := in.present(ctx, gen, g, params)
	if err != nil {
		return Status{}, err
	}

	in.log.Info("loaded mesh",
		zap.String("file", name),
		zap.Int("bytes", len(data)),
		zap.Int("triangles", st.Triangles),
		zap.Duration("elapsed", time.Since(start)),
	)

	if in.thumbs != nil {
		in.thumbs.Add(name, data, preview)
	}
	return st, nil
}

// begin cancels the ingestion in flight and registers a new one.
func (in *Ingestor) begin(parent context.Context) (context.Context, uint64, func()) {
	ctx, cancel := context.WithCancel(parent)

	in.mu.Lock()
	if in.cancel != nil {
		in.cancel()
	}
	in.gen++
	gen := in.gen
	in.cancel = cancel
	in.mu.Unlock()

	return ctx, gen, func() {
		in.mu.Lock()
		if in.gen == gen {
			in.cancel = nil
		}
		in.mu.Unlock()
		cancel()
	}
}

// present installs g unless a newer ingestion has started, and renders the
// thumbnail preview of it. Everything happens under one lock so a superseded
// ingestion can never win.
func (in *Ingestor) present(ctx context.Context, gen uint64, g *models.Geometry, params Params) (Status, []byte, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.gen != gen {
		return Status{}, nil, context.Canceled
	}
	if err := ctx.Err(); err != nil {
		return Status{}, nil, err
	}
	st, err := in.presenter.Present(g, params)
	if err != nil {
		return Status{}, nil, err
	}
	if in.thumbs == nil {
		return st, nil, nil
	}
	preview, err := in.presenter.scene.Preview(in.opts.PreviewSize)
	if err != nil {
		in.log.Warn("thumbnail preview failed", zap.String("name", g.Name), zap.Error(err))
	}
	return st, preview, nil
}

// Cancel aborts the ingestion in flight, if any.
func (in *Ingestor) Cancel() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.cancel != nil {
		in.cancel()
		in.cancel = nil
	}
}

// Check rejects a file by name and declared size before any of it is read.
// A negative size is treated as unknown.
func (in *Ingestor) Check(name string, size int64) error {
	if err := CheckName(name); err != nil {
		return err
	}
	if size > in.opts.MaxFileSize {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, size, in.opts.MaxFileSize)
	}
	return nil
}

func (in *Ingestor) read(ctx context.Context, f File, progress ProgressFunc) ([]byte, error) {
	total := fileSize(f)
	if total > in.opts.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, total, in.opts.MaxFileSize)
	}

	capacity := int64(readChunk)
	if total > 0 {
		capacity = total
	}
	buf := make([]byte, 0, capacity)
	chunk := make([]byte, readChunk)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := f.Read(chunk)
		if n > 0 {
			if int64(len(buf)+n) > in.opts.MaxFileSize {
				return nil, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, in.opts.MaxFileSize)
			}
			buf = append(buf, chunk[:n]...)
			if progress != nil {
				progress(int64(len(buf)), total)
			}
		}
		if errors.Is(err, io.EOF) {
			return buf, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name(), err)
		}
	}
}

// fileSize returns the size of f if it can tell, or -1.
func fileSize(f File) int64 {
	switch v := f.(type) {
	case interface{ Size() int64 }:
		return v.Size()
	case interface{ Stat() (fs.FileInfo, error) }:
		if fi, err := v.Stat(); err == nil && fi.Mode().IsRegular() {
			return fi.Size()
		}
	}
	return -1
}
