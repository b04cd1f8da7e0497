package viewer

import (
	"bytes"
	"testing"

	"github.com/taigrr/stlview/pkg/math3d"
	"github.com/taigrr/stlview/pkg/models"
	"github.com/taigrr/stlview/pkg/stl"
	"go.uber.org/zap"
)

// memFile is an in-memory File.
type memFile struct {
	name string
	*bytes.Reader
}

func (f memFile) Name() string { return f.name }

func newMemFile(name string, data []byte) memFile {
	return memFile{name: name, Reader: bytes.NewReader(data)}
}

// offsetCube is a 2x4x6 box centered at (11, 22, 33).
func offsetCube(name string) *models.Geometry {
	return models.NewBox(name, math3d.V3(10, 20, 30), math3d.V3(2, 4, 6))
}

func cubeSTL(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := stl.WriteBinary(&buf, offsetCube("cube")); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}
	return buf.Bytes()
}

func newTestScene() (*Scene, *Presenter) {
	scene := NewScene(DefaultOptions(), zap.NewNop())
	return scene, NewPresenter(scene, zap.NewNop())
}

func newTestIngestor(thumbs *ThumbnailStore) (*Scene, *Ingestor) {
	scene, p := newTestScene()
	return scene, NewIngestor(p, thumbs, IngestOptions{}, zap.NewNop())
}
