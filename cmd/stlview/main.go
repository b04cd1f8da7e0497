// stlview - Terminal STL Viewer
// View binary and ASCII STL files in your terminal with full 3D rendering.
//
// Controls:
//
//	Paste path  - Load an STL file (drag a file onto the terminal)
//	Mouse drag  - Orbit the camera
//	Scroll      - Zoom in/out
//	W/S/A/D     - Orbit up/down/left/right
//	+/-         - Zoom in/out
//	C           - Cycle mesh color
//	X           - Toggle wireframe
//	[ / ]       - Scale down/up
//	1/2         - Ambient light down/up
//	3/4         - Directional light down/up
//	B           - Reload the previous file (while its thumbnail lives)
//	E           - Export the model as <name>.glb
//	P           - Save a screenshot as <name>.png
//	K           - Keep the current color, scale and lights in the config file
//	R           - Reset (remove the model)
//	?           - Toggle HUD overlay
//	Esc         - Quit
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	uv "github.com/charmbracelet/ultraviolet"
	"github.com/taigrr/stlview/internal/config"
	"github.com/taigrr/stlview/internal/logger"
	"github.com/taigrr/stlview/pkg/render"
	"github.com/taigrr/stlview/pkg/viewer"
	"go.uber.org/zap"
)

const (
	scaleStep  = 1.1
	lightStep  = 0.1
	orbitStep  = 20
	messageTTL = 4 * time.Second
)

// palette is cycled by the C key.
var palette = []string{"#ff8a65", "#4fc3f7", "#aed581", "#ffd54f", "#ba68c8", "#e0e0e0"}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "stlview - Terminal STL Viewer\n\n")
		fmt.Fprintf(os.Stderr, "Usage: stlview [options] [model.stl]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nControls:\n")
		fmt.Fprintf(os.Stderr, "  Paste path  - Load an STL file (drag it onto the terminal)\n")
		fmt.Fprintf(os.Stderr, "  Mouse drag  - Orbit\n")
		fmt.Fprintf(os.Stderr, "  Scroll, +/- - Zoom in/out\n")
		fmt.Fprintf(os.Stderr, "  W/S/A/D     - Orbit\n")
		fmt.Fprintf(os.Stderr, "  C           - Cycle color\n")
		fmt.Fprintf(os.Stderr, "  X           - Toggle wireframe\n")
		fmt.Fprintf(os.Stderr, "  [ / ]       - Scale down/up\n")
		fmt.Fprintf(os.Stderr, "  1/2, 3/4    - Ambient, directional light down/up\n")
		fmt.Fprintf(os.Stderr, "  B           - Reload previous file\n")
		fmt.Fprintf(os.Stderr, "  E           - Export <name>.glb\n")
		fmt.Fprintf(os.Stderr, "  P           - Screenshot <name>.png\n")
		fmt.Fprintf(os.Stderr, "  K           - Save settings to the config file\n")
		fmt.Fprintf(os.Stderr, "  R           - Reset\n")
		fmt.Fprintf(os.Stderr, "  ?           - Toggle HUD overlay\n")
		fmt.Fprintf(os.Stderr, "  Esc         - Quit\n")
	}
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Logs go to a file only; stdout belongs to the frame
	var fileCfg logger.FileConfig
	if cfg.Logging.LogFile != "" {
		fileCfg = logger.DefaultFileConfig(cfg.Logging.LogFile)
	}
	log := logger.New(cfg.Logging.Level, fileCfg, nil)
	defer logger.Sync(log)

	if err := run(cfg, log, flag.Arg(0)); err != nil {
		log.Error("exiting", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the viewer core and the UI state shared by the input goroutine
// and the render loop.
type app struct {
	cfg      *config.Config // Touched by the input goroutine only
	log      *zap.Logger
	scene    *viewer.Scene
	ingestor *viewer.Ingestor
	thumbs   *viewer.ThumbnailStore

	mu         sync.Mutex
	params     viewer.Params // Applied to the next load
	colorIndex int
	showHUD    bool
	loading    bool
	progress   float64
	message    string
	messageErr bool
	messageAt  time.Time

	shot atomic.Bool // Screenshot requested for the next frame
}

func newApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	opts, err := cfg.SceneOptions()
	if err != nil {
		return nil, err
	}
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}

	scene := viewer.NewScene(opts, log.Named("scene"))
	thumbs := viewer.NewThumbnailStore(cfg.Ingest.ThumbnailTTL, nil, log.Named("thumbs"))
	a := &app{
		cfg:      cfg,
		log:      log,
		scene:    scene,
		thumbs:   thumbs,
		ingestor: viewer.NewIngestor(viewer.NewPresenter(scene, log.Named("presenter")), thumbs, cfg.IngestOptions(), log.Named("ingest")),
		params:   params,
		showHUD:  true,
	}
	return a, nil
}

func (a *app) notify(msg string, isErr bool) {
	a.mu.Lock()
	a.message, a.messageErr, a.messageAt = msg, isErr, time.Now()
	a.mu.Unlock()
}

// load ingests path in the background. A newer load supersedes it.
func (a *app) load(ctx context.Context, path string) {
	if err := viewer.CheckName(path); err != nil {
		a.notify(err.Error(), true)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		a.notify(err.Error(), true)
		return
	}
	a.ingest(ctx, f, f.Close)
}

// reopen loads the most recent thumbnail other than the displayed file.
func (a *app) reopen(ctx context.Context) {
	current := a.scene.Status().Name
	for _, th := range a.thumbs.List() {
		if strings.TrimSuffix(th.Name, filepath.Ext(th.Name)) == current {
			continue
		}
		a.ingest(ctx, &memFile{name: th.Name, Reader: bytes.NewReader(th.Data)}, nil)
		return
	}
	a.notify("no previous file", false)
}

type memFile struct {
	name string
	*bytes.Reader
}

func (f *memFile) Name() string { return f.name }

func (a *app) ingest(ctx context.Context, f viewer.File, done func() error) {
	a.mu.Lock()
	params := a.params
	a.loading, a.progress = true, 0
	a.mu.Unlock()

	go func() {
		if done != nil {
			defer done()
		}
		st, err := a.ingestor.Ingest(ctx, f, params, func(read, total int64) {
			if total <= 0 {
				return
			}
			a.mu.Lock()
			a.progress = float64(read) / float64(total)
			a.mu.Unlock()
		})

		switch {
		case errors.Is(err, context.Canceled):
			return
		case err != nil:
			a.log.Warn("load failed", zap.String("file", f.Name()), zap.Error(err))
			a.notify(err.Error(), true)
		default:
			a.notify("loaded "+st.Name, false)
		}
		a.mu.Lock()
		a.loading = false
		a.mu.Unlock()
	}()
}

func (a *app) cycleColor() {
	a.mu.Lock()
	a.colorIndex = (a.colorIndex + 1) % len(palette)
	hex := palette[a.colorIndex]
	c, _ := viewer.ParseColor(hex)
	a.params.Color = c
	a.mu.Unlock()
	a.scene.SetColor(hex)
}

func (a *app) toggleWireframe() {
	a.mu.Lock()
	a.params.Wireframe = !a.params.Wireframe
	on := a.params.Wireframe
	a.mu.Unlock()
	a.scene.SetWireframe(on)
}

func (a *app) scaleBy(f float64) {
	a.mu.Lock()
	s := a.params.Scale * f
	a.mu.Unlock()
	if err := a.scene.SetScale(s); err != nil {
		a.notify(err.Error(), true)
		return
	}
	a.mu.Lock()
	a.params.Scale = s
	a.mu.Unlock()
}

func (a *app) adjustLight(ambient, directional float64) {
	light := a.scene.Lighting()
	if ambient != 0 {
		a.scene.SetAmbient(max(light.Ambient+ambient, 0))
	}
	if directional != 0 {
		a.scene.SetDirectional(max(light.Directional+directional, 0))
	}
}

func (a *app) export() {
	st := a.scene.Status()
	if !st.Loaded {
		a.notify(viewer.NoModelText, true)
		return
	}
	path := st.Name + ".glb"
	if err := a.scene.ExportFile(path); err != nil {
		a.log.Warn("export failed", zap.String("path", path), zap.Error(err))
		a.notify(err.Error(), true)
		return
	}
	a.log.Info("exported", zap.String("path", path))
	a.notify("saved "+path, false)
}

// screenshot saves fb as <name>.png.
func (a *app) screenshot(fb *render.Framebuffer) {
	name := "stlview"
	if st := a.scene.Status(); st.Loaded {
		name = st.Name
	}
	path := name + ".png"
	if err := fb.SavePNG(path); err != nil {
		a.log.Warn("screenshot failed", zap.String("path", path), zap.Error(err))
		a.notify(err.Error(), true)
		return
	}
	a.log.Info("screenshot", zap.String("path", path))
	a.notify("saved "+path, false)
}

// saveSettings writes the current color, scale and lights to the config file.
func (a *app) saveSettings() {
	a.mu.Lock()
	params := a.params
	a.mu.Unlock()

	if err := a.cfg.SaveViewer(params, a.scene.Lighting()); err != nil {
		a.log.Warn("saving settings failed", zap.String("path", a.cfg.Path()), zap.Error(err))
		a.notify(err.Error(), true)
		return
	}
	a.log.Info("settings saved", zap.String("path", a.cfg.Path()))
	a.notify("settings saved to "+a.cfg.Path(), false)
}

// hud snapshots the overlay state and whether a load is in progress.
func (a *app) hud() (hudState, bool, float64) {
	light := a.scene.Lighting()
	status := a.scene.Status()

	a.mu.Lock()
	defer a.mu.Unlock()

	text := status.Text
	if status.Loaded {
		text = status.Name + " · " + status.Text
	}
	if a.message != "" && time.Since(a.messageAt) > messageTTL {
		a.message = ""
	}
	return hudState{
		Show:        a.showHUD,
		Status:      text,
		Color:       viewer.FormatColor(a.params.Color),
		Wireframe:   a.params.Wireframe,
		Scale:       a.params.Scale,
		Ambient:     light.Ambient,
		Directional: light.Directional,
		Message:     a.message,
		Error:       a.messageErr,
		Recent:      a.thumbs.Len(),
	}, a.loading, a.progress
}

// pastedPath turns a pasted string into a file path. Terminals paste
// dropped files as quoted or escaped paths, sometimes as file:// URLs.
func pastedPath(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, `"'`)
	if strings.HasPrefix(s, "file://") {
		if u, err := url.Parse(s); err == nil {
			s = u.Path
		}
	}
	return strings.ReplaceAll(s, `\ `, " ")
}

func run(cfg *config.Config, log *zap.Logger, modelPath string) error {
	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.thumbs.Close()

	// Create terminal
	term := uv.DefaultTerminal()

	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}

	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}

	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)

	fmt.Fprint(os.Stdout, "\x1b[?1003h") // Enable any-event mouse tracking
	fmt.Fprint(os.Stdout, "\x1b[?1006h") // Enable SGR extended mouse mode
	fmt.Fprint(os.Stdout, "\x1b[?2004h") // Enable bracketed paste

	// Context for clean shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if modelPath != "" {
		a.load(ctx, modelPath)
	}

	// Terminal size, written by the event goroutine
	var sizeMu sync.Mutex
	newW, newH := width, height

	// Mouse state
	var mouseDown bool
	var lastMouseX, lastMouseY int

	// Event handler
	go func() {
		for ev := range term.Events() {
			switch ev := ev.(type) {
			case uv.WindowSizeEvent:
				sizeMu.Lock()
				newW, newH = ev.Width, ev.Height
				sizeMu.Unlock()

			case uv.PasteEvent:
				a.load(ctx, pastedPath(ev.Content))

			case uv.KeyPressEvent:
				switch {
				case ev.MatchString("escape"), ev.MatchString("ctrl+c"):
					cancel()
					return
				case ev.MatchString("r"):
					a.ingestor.Cancel()
					a.mu.Lock()
					a.loading = false
					a.mu.Unlock()
					a.scene.Reset()
				case ev.MatchString("w", "up"):
					a.scene.Orbit(0, -orbitStep)
				case ev.MatchString("s", "down"):
					a.scene.Orbit(0, orbitStep)
				case ev.MatchString("a", "left"):
					a.scene.Orbit(-orbitStep, 0)
				case ev.MatchString("d", "right"):
					a.scene.Orbit(orbitStep, 0)
				case ev.MatchString("+", "="):
					a.scene.Zoom(1)
				case ev.MatchString("-", "_"):
					a.scene.Zoom(-1)
				case ev.MatchString("c"):
					a.cycleColor()
				case ev.MatchString("x"):
					a.toggleWireframe()
				case ev.MatchString("]"):
					a.scaleBy(scaleStep)
				case ev.MatchString("["):
					a.scaleBy(1 / scaleStep)
				case ev.MatchString("1"):
					a.adjustLight(-lightStep, 0)
				case ev.MatchString("2"):
					a.adjustLight(lightStep, 0)
				case ev.MatchString("3"):
					a.adjustLight(0, -lightStep)
				case ev.MatchString("4"):
					a.adjustLight(0, lightStep)
				case ev.MatchString("b"):
					a.reopen(ctx)
				case ev.MatchString("e"):
					a.export()
				case ev.MatchString("p"):
					a.shot.Store(true)
				case ev.MatchString("k"):
					a.saveSettings()
				case ev.MatchString("?"), ev.MatchString("shift+/"):
					a.mu.Lock()
					a.showHUD = !a.showHUD
					a.mu.Unlock()
				}

			case uv.MouseClickEvent:
				mouseDown = true
				lastMouseX, lastMouseY = ev.X, ev.Y

			case uv.MouseReleaseEvent:
				mouseDown = false

			case uv.MouseMotionEvent:
				if mouseDown {
					// Cells are twice as tall as they are wide
					a.scene.Orbit(float64(ev.X-lastMouseX)*4, float64(ev.Y-lastMouseY)*8)
					lastMouseX, lastMouseY = ev.X, ev.Y
				}

			case uv.MouseWheelEvent:
				switch ev.Button {
				case uv.MouseWheelUp:
					a.scene.Zoom(1)
				case uv.MouseWheelDown:
					a.scene.Zoom(-1)
				}
			}
		}
	}()

	termRenderer := render.NewTerminalRenderer(term, width, height)
	fb := render.NewFramebuffer(termRenderer.FramebufferSize())
	hud := NewHUD()

	// Main loop
	targetDuration := time.Second / time.Duration(cfg.Render.FPS)

	cleanup := func() {
		fmt.Fprint(os.Stdout, "\x1b[?2004l")
		fmt.Fprint(os.Stdout, "\x1b[?1003l")
		fmt.Fprint(os.Stdout, "\x1b[?1006l")
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}

	for {
		select {
		case <-ctx.Done():
			a.ingestor.Cancel()
			cleanup()
			return nil
		default:
		}

		now := time.Now()

		sizeMu.Lock()
		w, h := newW, newH
		sizeMu.Unlock()
		if w != width || h != height {
			width, height = w, h
			term.Erase()
			term.Resize(width, height)
			termRenderer = render.NewTerminalRenderer(term, width, height)
			fb = render.NewFramebuffer(termRenderer.FramebufferSize())
		}

		// Advance the damped camera, then draw
		a.scene.Update()
		a.scene.Render(fb)
		if a.shot.CompareAndSwap(true, false) {
			a.screenshot(fb)
		}

		state, loading, progress := a.hud()
		if loading {
			fb.DrawProgress(progress, render.RGB(0xff, 0x8a, 0x65), render.ColorWhite)
		}

		// Display
		termRenderer.Render(fb)
		if err := termRenderer.Flush(); err != nil {
			cleanup()
			return fmt.Errorf("flush: %w", err)
		}

		// HUD overlay (always update FPS, render clears lines when HUD off)
		hud.UpdateFPS()
		hud.Render(width, height, state)

		// Frame timing
		elapsed := time.Since(now)
		if elapsed < targetDuration {
			time.Sleep(targetDuration - elapsed)
		}
	}
}
