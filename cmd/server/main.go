// Command server runs the scoregate OMR conversion gateway.
//
// Configuration is layered: defaults, a YAML file (SCOREGATE_CONFIG,
// ./config.yaml or /etc/scoregate/config.yaml), an optional .env file,
// then environment overrides. The most common variables:
//
//	SCOREGATE_PORT / PORT           - Listen port (default: 8080)
//	SCOREGATE_ENGINE_COMMAND        - Audiveris executable (also AUDIVERIS_CMD)
//	JAVA_TOOL_OPTIONS               - JVM options for the engine
//	SCOREGATE_ENGINE_TIMEOUT        - Per-run wall clock limit (default: 120s)
//	SCOREGATE_MAX_CONCURRENT        - Parallel engine runs (default: 2)
//	SCOREGATE_STORAGE               - "memory", "postgres" or "none"
//	SCOREGATE_AUTH_TYPE             - "none", "apikey" or "jwt"
//	SCOREGATE_MCP_ENABLED           - Serve the convert_score MCP tool
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rhuss/scoregate/pkg/auth"
	"github.com/rhuss/scoregate/pkg/config"
	"github.com/rhuss/scoregate/pkg/debug"
	"github.com/rhuss/scoregate/pkg/engine"
	"github.com/rhuss/scoregate/pkg/mcpserver"
	"github.com/rhuss/scoregate/pkg/omr"
	transporthttp "github.com/rhuss/scoregate/pkg/transport/http"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	engineCfg := cfg.OMR()
	invoker := omr.NewInvoker(engineCfg)

	eng, err := engine.New(invoker, store, engine.Config{
		MaxConcurrent:  cfg.Engine.MaxConcurrent,
		WorkDir:        cfg.Engine.WorkDir,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(":" + strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	}

	if cfg.Observability.Metrics.Enabled {
		opts = append(opts, transporthttp.WithMetrics(cfg.Observability.Metrics.Path))
	}

	chain, limiter, err := buildAuth(cfg.Auth)
	if err != nil {
		return err
	}
	if chain != nil {
		bypass := append([]string{}, auth.DefaultBypassEndpoints...)
		if cfg.Observability.Metrics.Enabled {
			bypass = append(bypass, cfg.Observability.Metrics.Path)
		}
		opts = append(opts, transporthttp.WithHTTPMiddleware(auth.Middleware(chain, limiter, bypass)))
		slog.Info("authentication enabled", "type", cfg.Auth.Type)
	}

	if cfg.MCP.Enabled {
		mcpSrv := mcpserver.New(eng, mcpserver.Options{Name: "scoregate", Version: version})
		opts = append(opts, transporthttp.WithRoute(cfg.MCP.Path, mcpserver.Handler(mcpSrv)))
		slog.Info("MCP endpoint enabled", "path", cfg.MCP.Path, "tool", mcpserver.ToolName)
	}

	srv := transporthttp.NewServer(eng, store, opts...)

	slog.Info("engine configured",
		"command", engineCfg.Command,
		"timeout", engineCfg.Timeout,
		"max_concurrent", cfg.Engine.MaxConcurrent,
		"max_upload_bytes", cfg.Server.MaxUploadBytes,
		"version", version,
	)

	return srv.Run(ctx)
}
