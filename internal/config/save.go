package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/taigrr/stlview/pkg/render"
	"github.com/taigrr/stlview/pkg/viewer"
	"gopkg.in/yaml.v3"
)

// Path returns the file Save writes to: the file the config was loaded
// from, or config.yaml in the user's config directory.
func (c *Config) Path() string {
	if c.path != "" {
		return c.path
	}
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Save writes the config to Path.
func (c *Config) Save() error {
	return c.SaveTo(c.Path())
}

// SaveTo writes the config to a specific path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// SaveViewer persists the display and lighting settings to Path. The rest
// of the file is kept as written, so flag overrides are not saved.
func (c *Config) SaveViewer(p viewer.Params, light render.Lighting) error {
	c.SetViewer(p, light)

	stored := Default()
	if err := loadFromFile(stored, c.Path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	stored.path = c.Path()
	stored.SetViewer(p, light)
	return stored.Save()
}
