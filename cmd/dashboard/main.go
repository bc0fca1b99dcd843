// Package main is the entry point for the novadash state engine.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/novadash/engine/internal/app"
	"github.com/novadash/engine/internal/config"
	"github.com/novadash/engine/internal/ui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// The TUI owns the terminal, so logs go to a file while it runs.
	var out io.Writer = os.Stdout
	if cfg.EnableTUI && cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			slog.Error("failed to create log directory", "error", err)
			os.Exit(1)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			slog.Error("failed to open log file", "path", cfg.LogFile, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	slog.SetDefault(setupLogger(cfg.LogLevel, out))

	slog.Info("novadash starting", "version", "1.0.0")
	slog.Info("config_loaded",
		"ws_url", cfg.WSURL,
		"notifications_ws_url", cfg.NotificationsWSURL,
		"api_base_url", cfg.APIBaseURL,
		"session_token", cfg.MaskedSessionToken(),
		"update_rate", cfg.UpdateRate,
		"flush_interval", cfg.FlushInterval,
		"heartbeat_interval", cfg.HeartbeatInterval,
		"heartbeat_timeout", cfg.HeartbeatTimeout,
		"db_path", cfg.DBPath,
		"layout_file", cfg.LayoutFile,
		"prometheus_port", cfg.PrometheusPort,
		"enable_tui", cfg.EnableTUI,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	core, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	core.Run(ctx)

	if cfg.EnableTUI {
		slog.Info("starting_tui")
		tui := ui.NewApp(core)

		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := tui.Run(); err != nil {
				slog.Error("tui_error", "error", err)
			}
		}()

		select {
		case sig := <-sigChan:
			slog.Info("shutdown_signal_received", "signal", sig.String())
			tui.Stop()
		case <-done:
		}
	} else {
		sig := <-sigChan
		slog.Info("shutdown_signal_received", "signal", sig.String())
	}

	cancel()
	slog.Info("shutting_down")
	core.Shutdown()
	slog.Info("shutdown_complete")
}

// setupLogger creates a structured logger with the specified level.
// Format: time=2025-01-04 14:32:01 level=INFO msg=message key=value
func setupLogger(levelStr string, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format("2006-01-02 15:04:05"))
				}
			}
			return a
		},
	}

	return slog.New(slog.NewTextHandler(w, opts))
}
