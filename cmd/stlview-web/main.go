// stlview-web - Browser STL Viewer
// Serves a page that accepts dropped STL files and shows them rendered by
// the stlview core, streamed over a WebSocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/taigrr/stlview/internal/config"
	"github.com/taigrr/stlview/internal/logger"
	"github.com/taigrr/stlview/internal/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var listenAddr = flag.String("listen", "", "HTTP listen address (overrides web.listen)")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "stlview-web - Browser STL Viewer\n\n")
		fmt.Fprintf(os.Stderr, "Usage: stlview-web [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Web.Listen = *listenAddr
	}

	var fileCfg logger.FileConfig
	if cfg.Logging.LogFile != "" {
		fileCfg = logger.DefaultFileConfig(cfg.Logging.LogFile)
	}
	log := logger.New(cfg.Logging.Level, fileCfg, os.Stderr)
	defer logger.Sync(log)

	if err := run(cfg, log); err != nil {
		log.Error("exiting", zap.Error(err))
		logger.Sync(log)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	sceneOpts, err := cfg.SceneOptions()
	if err != nil {
		return err
	}
	sceneOpts.FPS = cfg.Web.FPS
	params, err := cfg.Params()
	if err != nil {
		return err
	}

	srv := web.NewServer(web.Options{
		Scene:        sceneOpts,
		Params:       params,
		Ingest:       cfg.IngestOptions(),
		ThumbnailTTL: cfg.Ingest.ThumbnailTTL,
		Width:        cfg.Web.Width,
		Height:       cfg.Web.Height,
		FPS:          cfg.Web.FPS,
	}, log.Named("web"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx, cfg.Web.Listen)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down", zap.Int("sessions", srv.SessionCount()))
		return nil
	})

	log.Info("stlview-web starting",
		zap.String("listen", cfg.Web.Listen),
		zap.Int("fps", cfg.Web.FPS),
		zap.Int64("max_file_size", cfg.Ingest.MaxFileSize),
	)
	return g.Wait()
}
