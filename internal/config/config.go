// Package config handles stlview configuration loading and management.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/taigrr/stlview/pkg/math3d"
	"github.com/taigrr/stlview/pkg/render"
	"github.com/taigrr/stlview/pkg/viewer"
)

// Config holds all stlview settings.
type Config struct {
	Viewer  ViewerConfig  `yaml:"viewer"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Render  RenderConfig  `yaml:"render"`
	Web     WebConfig     `yaml:"web"`
	Logging LoggingConfig `yaml:"logging"`

	path string // File the config was loaded from
}

// ViewerConfig holds the initial display and lighting settings.
type ViewerConfig struct {
	Color         string  `yaml:"color"`
	Wireframe     bool    `yaml:"wireframe"`
	Scale         float64 `yaml:"scale"`
	Ambient       float64 `yaml:"ambient"`
	Directional   float64 `yaml:"directional"`
	FitOffset     float64 `yaml:"fit_offset"`
	FOV           float64 `yaml:"fov"` // degrees
	Background    string  `yaml:"background"`
	Grid          bool    `yaml:"grid"`
	GridColor     string  `yaml:"grid_color"`
	CullBackfaces bool    `yaml:"cull_backfaces"`
}

// IngestConfig holds file loading settings.
type IngestConfig struct {
	MaxFileSize   int64         `yaml:"max_file_size"`
	MergeVertices bool          `yaml:"merge_vertices"`
	ThumbnailTTL  time.Duration `yaml:"thumbnail_ttl"`
}

// RenderConfig holds terminal rendering settings.
type RenderConfig struct {
	FPS int `yaml:"fps"`
}

// WebConfig holds browser host settings.
type WebConfig struct {
	Listen string `yaml:"listen"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	FPS    int    `yaml:"fps"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Viewer: ViewerConfig{
			Color:       viewer.DefaultColor,
			Wireframe:   false,
			Scale:       1,
			Ambient:     0.6,
			Directional: 1.0,
			FitOffset:   viewer.DefaultFitOffset,
			FOV:         45,
			Background:  "#071018",
			Grid:        true,
			GridColor:   "#0b2a36",
		},
		Ingest: IngestConfig{
			MaxFileSize:   viewer.DefaultMaxFileSize,
			MergeVertices: false,
			ThumbnailTTL:  viewer.DefaultThumbnailTTL,
		},
		Render: RenderConfig{
			FPS: 60,
		},
		Web: WebConfig{
			Listen: "127.0.0.1:8080",
			Width:  640,
			Height: 480,
			FPS:    30,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	if _, err := c.Params(); err != nil {
		return err
	}
	if _, err := c.SceneOptions(); err != nil {
		return err
	}
	if c.Ingest.MaxFileSize <= 0 {
		return fmt.Errorf("ingest.max_file_size must be positive, got %d", c.Ingest.MaxFileSize)
	}
	if c.Render.FPS <= 0 || c.Web.FPS <= 0 {
		return fmt.Errorf("fps must be positive (render %d, web %d)", c.Render.FPS, c.Web.FPS)
	}
	if c.Web.Width <= 0 || c.Web.Height <= 0 {
		return fmt.Errorf("web frame size must be positive, got %dx%d", c.Web.Width, c.Web.Height)
	}
	return nil
}

// Params returns the display parameters new meshes start with.
func (c *Config) Params() (viewer.Params, error) {
	color, err := viewer.ParseColor(c.Viewer.Color)
	if err != nil {
		return viewer.Params{}, fmt.Errorf("viewer.color: %w", err)
	}
	p := viewer.Params{
		Color:     color,
		Wireframe: c.Viewer.Wireframe,
		Scale:     c.Viewer.Scale,
	}
	if err := p.Validate(); err != nil {
		return viewer.Params{}, fmt.Errorf("viewer.scale: %w", err)
	}
	return p, nil
}

// SceneOptions converts the viewer settings into scene options.
func (c *Config) SceneOptions() (viewer.Options, error) {
	opts := viewer.DefaultOptions()

	bg, err := viewer.ParseColor(c.Viewer.Background)
	if err != nil {
		return opts, fmt.Errorf("viewer.background: %w", err)
	}
	grid, err := viewer.ParseColor(c.Viewer.GridColor)
	if err != nil {
		return opts, fmt.Errorf("viewer.grid_color: %w", err)
	}
	if c.Viewer.FOV <= 0 || c.Viewer.FOV >= 180 {
		return opts, fmt.Errorf("viewer.fov must be between 0 and 180 degrees, got %v", c.Viewer.FOV)
	}
	if c.Viewer.FitOffset <= 0 {
		return opts, fmt.Errorf("viewer.fit_offset must be positive, got %v", c.Viewer.FitOffset)
	}
	if err := viewer.ValidateLighting(c.Viewer.Ambient, c.Viewer.Directional); err != nil {
		return opts, fmt.Errorf("viewer: %w", err)
	}

	opts.Background = bg
	opts.GridColor = grid
	opts.ShowGrid = c.Viewer.Grid
	opts.FOV = c.Viewer.FOV * math.Pi / 180
	opts.FitOffset = c.Viewer.FitOffset
	opts.Ambient = c.Viewer.Ambient
	opts.Directional = c.Viewer.Directional
	opts.LightDirection = math3d.V3(50, 50, 50)
	opts.FPS = c.Render.FPS
	opts.CullBackfaces = c.Viewer.CullBackfaces
	return opts, nil
}

// SetViewer records the display and lighting settings in effect.
func (c *Config) SetViewer(p viewer.Params, light render.Lighting) {
	c.Viewer.Color = viewer.FormatColor(p.Color)
	c.Viewer.Wireframe = p.Wireframe
	c.Viewer.Scale = p.Scale
	c.Viewer.Ambient = light.Ambient
	c.Viewer.Directional = light.Directional
}

// IngestOptions converts the ingest settings into ingestor options.
func (c *Config) IngestOptions() viewer.IngestOptions {
	return viewer.IngestOptions{
		MaxFileSize:   c.Ingest.MaxFileSize,
		MergeVertices: c.Ingest.MergeVertices,
	}
}
