// idlewatch - idle-shutdown sidecar proxy for long-running web applications
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/idlewatch/idlewatch/pkg/config"
	"github.com/idlewatch/idlewatch/pkg/health"
	"github.com/idlewatch/idlewatch/pkg/logger"
	"github.com/idlewatch/idlewatch/pkg/port"
	"github.com/idlewatch/idlewatch/pkg/server"
)

var (
	// Version information (set during build)
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	rootCmd, cfg := config.NewFromFlags(Version, BuildTime)
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return run(cfg)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if err := cfg.Normalize(); err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Level:      logger.Level(cfg.LogLevel),
		Format:     logger.Format(cfg.LogFormat),
		ShowCaller: cfg.ShowCaller,
		TimeFormat: "2006-01-02 15:04:05.000",
	})

	log.StartupBanner(Version, map[string]interface{}{
		"upstream":             cfg.Upstream,
		"port":                 cfg.Port,
		"shutdown_time":        cfg.ShutdownTime,
		"strip_prefix":         cfg.StripPrefix,
		"ready_check_path":     cfg.ReadyCheckPath,
		"log_level":            cfg.LogLevel,
		"log_format":           cfg.LogFormat,
		"activity_buffer_size": cfg.ActivityBufferSize,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server.SetupSignalHandling(ctx, cancel, log)

	listenPort, err := port.Allocate(cfg.Port)
	if err != nil {
		return fmt.Errorf("failed to allocate listen port: %w", err)
	}
	if listenPort != cfg.Port {
		log.Warn("configured port unavailable, using a free one",
			"configured_port", cfg.Port,
			"listen_port", listenPort)
	}

	// Wait for the upstream to answer before taking traffic. A slow-starting
	// app should not be culled because its first minutes look idle.
	healthCfg := health.DefaultCheckConfig(cfg.Upstream + cfg.ReadyCheckPath)
	healthCfg.Timeout = time.Duration(cfg.ReadyTimeout) * time.Second
	if err := health.NewChecker(healthCfg, log).WaitUntilReady(ctx); err != nil {
		return fmt.Errorf("upstream never became ready: %w", err)
	}

	srv, err := server.New(server.Config{
		AppConfig:  cfg,
		ListenPort: listenPort,
		Logger:     log,
		Version:    Version,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	srv.Start()
	defer srv.Shutdown()

	// Startup counts as activity: the idle clock runs from here even if no
	// request ever arrives, so an untouched app still gets culled.
	srv.Monitor().RecordActivity("startup")

	// Wait for shutdown signal (context will be cancelled by signal handler).
	// An idle timeout never reaches this point: the monitor exits the process
	// directly once the threshold is crossed.
	<-ctx.Done()
	return nil
}
