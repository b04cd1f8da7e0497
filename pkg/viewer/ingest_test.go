package viewer

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/taigrr/stlview/pkg/stl"
	"go.uber.org/zap"
)

// untouchedFile fails the test if it is read.
type untouchedFile struct {
	t    *testing.T
	name string
}

func (f untouchedFile) Name() string { return f.name }

func (f untouchedFile) Read([]byte) (int, error) {
	f.t.Error("rejected file was read")
	return 0, io.EOF
}

// gatedFile blocks its first Read until gate is closed.
type gatedFile struct {
	memFile
	reading chan struct{}
	gate    chan struct{}
}

func (f *gatedFile) Read(p []byte) (int, error) {
	if f.reading != nil {
		close(f.reading)
		f.reading = nil
		<-f.gate
	}
	return f.memFile.Read(p)
}

func TestIngestCube(t *testing.T) {
	scene, in := newTestIngestor(nil)

	st, err := in.Ingest(context.Background(), newMemFile("Cube.STL", cubeSTL(t)), DefaultParams(), nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if st.Triangles != 12 || st.Name != "Cube" {
		t.Errorf("status = %+v", st)
	}
	if got := scene.Status(); got != st {
		t.Errorf("scene status = %+v, want %+v", got, st)
	}
}

func TestIngestRejectsWrongExtension(t *testing.T) {
	scene, in := newTestIngestor(nil)
	if _, err := in.Ingest(context.Background(), newMemFile("part.stl", cubeSTL(t)), DefaultParams(), nil); err != nil {
		t.Fatal(err)
	}
	before, _ := scene.Object()

	for _, name := range []string{"model.obj", "model.stl.obj", "stl", "model"} {
		t.Run(name, func(t *testing.T) {
			_, err := in.Ingest(context.Background(), untouchedFile{t: t, name: name}, DefaultParams(), nil)
			if !errors.Is(err, ErrInvalidFileType) {
				t.Fatalf("err = %v, want ErrInvalidFileType", err)
			}
		})
	}

	after, ok := scene.Object()
	if !ok || after.Name != before.Name || after.Released() {
		t.Errorf("displayed object changed: %+v", after)
	}
	if n, _ := scene.Resources(); n != 1 {
		t.Errorf("%d live buffers, want 1", n)
	}
}

func TestIngestDecodeFailureKeepsObject(t *testing.T) {
	scene, in := newTestIngestor(nil)
	if _, err := in.Ingest(context.Background(), newMemFile("good.stl", cubeSTL(t)), DefaultParams(), nil); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data string
		want error
	}{
		{"garbage ascii", "solid x\n facet normal a b c\n", stl.ErrMalformed},
		{"empty ascii", "solid x\nendsolid x\n", stl.ErrEmpty},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := in.Ingest(context.Background(), newMemFile("bad.stl", []byte(tc.data)), DefaultParams(), nil)
			if !errors.Is(err, ErrDecode) || !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want ErrDecode wrapping %v", err, tc.want)
			}
			obj, ok := scene.Object()
			if !ok || obj.Name != "good" || obj.Released() {
				t.Errorf("displayed object changed: %+v", obj)
			}
		})
	}
}

func TestIngestProgress(t *testing.T) {
	_, in := newTestIngestor(nil)
	data := cubeSTL(t)

	var last, total int64
	calls := 0
	progress := func(read, size int64) {
		calls++
		if read < last {
			t.Errorf("progress went backwards: %d after %d", read, last)
		}
		last, total = read, size
	}

	if _, err := in.Ingest(context.Background(), newMemFile("cube.stl", data), DefaultParams(), progress); err != nil {
		t.Fatal(err)
	}
	if calls == 0 {
		t.Fatal("progress never reported")
	}
	if last != int64(len(data)) || total != int64(len(data)) {
		t.Errorf("final progress %d/%d, want %d/%d", last, total, len(data), len(data))
	}
}

func TestIngestTooLarge(t *testing.T) {
	scene, p := newTestScene()
	in := NewIngestor(p, nil, IngestOptions{MaxFileSize: 100}, zap.NewNop())

	_, err := in.Ingest(context.Background(), newMemFile("cube.stl", cubeSTL(t)), DefaultParams(), nil)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("err = %v, want ErrFileTooLarge", err)
	}
	if _, ok := scene.Object(); ok {
		t.Error("oversized file was presented")
	}
}

func TestIngestorCheck(t *testing.T) {
	_, p := newTestScene()
	in := NewIngestor(p, nil, IngestOptions{MaxFileSize: 100}, zap.NewNop())

	tests := []struct {
		name string
		size int64
		want error
	}{
		{"part.stl", 100, nil},
		{"PART.STL", -1, nil},
		{"part.obj", 10, ErrInvalidFileType},
		{"part.stl", 101, ErrFileTooLarge},
	}
	for _, tt := range tests {
		err := in.Check(tt.name, tt.size)
		if tt.want == nil && err != nil {
			t.Errorf("Check(%q, %d) = %v", tt.name, tt.size, err)
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("Check(%q, %d) = %v, want %v", tt.name, tt.size, err, tt.want)
		}
	}
}

func TestIngestSupersededLoadIsCanceled(t *testing.T) {
	scene, in := newTestIngestor(nil)

	first := &gatedFile{
		memFile: newMemFile("first.stl", cubeSTL(t)),
		reading: make(chan struct{}),
		gate:    make(chan struct{}),
	}
	reading := first.reading

	errc := make(chan error, 1)
	go func() {
		_, err := in.Ingest(context.Background(), first, DefaultParams(), nil)
		errc <- err
	}()
	<-reading

	if _, err := in.Ingest(context.Background(), newMemFile("second.stl", cubeSTL(t)), DefaultParams(), nil); err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	close(first.gate)

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("first Ingest err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first Ingest did not return")
	}

	obj, _ := scene.Object()
	if obj.Name != "second" {
		t.Errorf("displayed %q, want the most recently started load", obj.Name)
	}
	if n, _ := scene.Resources(); n != 1 {
		t.Errorf("%d live buffers, want 1", n)
	}
}

func TestIngestCanceledContext(t *testing.T) {
	scene, in := newTestIngestor(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := in.Ingest(ctx, newMemFile("cube.stl", cubeSTL(t)), DefaultParams(), nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if _, ok := scene.Object(); ok {
		t.Error("canceled load was presented")
	}
}

func TestIngestRegistersThumbnail(t *testing.T) {
	thumbs := NewThumbnailStore(time.Minute, nil, zap.NewNop())
	defer thumbs.Close()
	_, in := newTestIngestor(thumbs)

	data := cubeSTL(t)
	if _, err := in.Ingest(context.Background(), newMemFile("cube.stl", data), DefaultParams(), nil); err != nil {
		t.Fatal(err)
	}

	list := thumbs.List()
	if len(list) != 1 {
		t.Fatalf("%d thumbnails, want 1", len(list))
	}
	if list[0].Name != "cube.stl" || len(list[0].Data) != len(data) {
		t.Errorf("thumbnail = %q with %d bytes", list[0].Name, len(list[0].Data))
	}
	if len(list[0].Preview) == 0 {
		t.Error("thumbnail has no preview")
	}
}

func TestCheckName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"model.stl", true},
		{"MODEL.STL", true},
		{"dir/part.Stl", true},
		{"model.obj", false},
		{"model.stl.bak", false},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckName(tc.name)
			if (err == nil) != tc.ok {
				t.Errorf("CheckName(%q) = %v, want ok=%v", tc.name, err, tc.ok)
			}
		})
	}
}
