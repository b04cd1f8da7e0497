package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagLogFile   = flag.String("log", "", "Write logs to this file")
	flagFPS       = flag.Int("fps", 0, "Target FPS")
	flagColor     = flag.String("color", "", "Mesh color (#rrggbb)")
	flagScale     = flag.Float64("scale", 0, "Mesh scale factor")
	flagWireframe = flag.Bool("wireframe", false, "Start in wireframe mode")
	flagSmooth    = flag.Bool("smooth", false, "Weld vertices for smooth shading")
	flagNoGrid    = flag.Bool("no-grid", false, "Hide the ground grid")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	if *flagFPS > 0 {
		cfg.Render.FPS = *flagFPS
		cfg.Web.FPS = *flagFPS
	}
	if *flagColor != "" {
		cfg.Viewer.Color = *flagColor
	}
	if *flagScale > 0 {
		cfg.Viewer.Scale = *flagScale
	}
	if *flagWireframe {
		cfg.Viewer.Wireframe = true
	}
	if *flagSmooth {
		cfg.Ingest.MergeVertices = true
	}
	if *flagNoGrid {
		cfg.Viewer.Grid = false
	}
}
