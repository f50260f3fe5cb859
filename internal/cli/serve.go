package cli

import (
	"context"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/dmmcquay/sgfrender/internal/cache"
	"github.com/dmmcquay/sgfrender/internal/config"
	"github.com/dmmcquay/sgfrender/internal/health"
	"github.com/dmmcquay/sgfrender/internal/logging"
	mcptools "github.com/dmmcquay/sgfrender/internal/mcp"
	"github.com/dmmcquay/sgfrender/internal/metrics"
	"github.com/dmmcquay/sgfrender/internal/pipeline"
	"github.com/dmmcquay/sgfrender/internal/ratelimit"
	"github.com/dmmcquay/sgfrender/internal/retry"
	httpserver "github.com/dmmcquay/sgfrender/internal/server"
	"github.com/dmmcquay/sgfrender/internal/shutdown"
)

const cacheStatsInterval = 15 * time.Second

// sgfrender serve
func Serve(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve renders over MCP (stdio) and HTTP",
		Args:  cobra.NoArgs,
		Long: heredoc.Doc(`serve starts the render server.

			MCP clients talk to it over stdin and stdout using the
			renderGame, describeGame, listThemes and serverStatus tools.
			The HTTP API on server.httpAddr offers POST /render,
			POST /describe, GET /themes, /health, /ready and /metrics.

			Logs go to stderr so they never mix with MCP traffic.`),

		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("http-addr"); cmd.Flags().Changed("http-addr") {
				a.cfg.Server.HTTPAddr = addr
			}
			noStdio, _ := cmd.Flags().GetBool("no-stdio")
			return a.serve(cmd.Context(), !noStdio)
		},
	}

	cmd.Flags().String("http-addr", "", "Listen address of the HTTP API; empty disables it")
	cmd.Flags().Bool("no-stdio", false, "Serve HTTP only, without MCP on stdio")

	return cmd
}

// stack holds the components of a running server.
type stack struct {
	service *pipeline.Service
	cache   *cache.Manager
	limiter *ratelimit.Limiter
	checker *health.Checker
	http    *httpserver.HTTPServer
	mcp     *server.MCPServer
}

func (a *app) serve(parent context.Context, stdio bool) error {
	logger := a.logger
	logger.Info("Starting sgfrender", "version", a.cfg.Server.Version,
		"commit", a.build.GitCommit, "built", a.build.BuildTime)

	sd := shutdown.NewManager(logger)
	ctx := sd.HandleSignals(parent)

	st, err := a.buildStack(ctx, sd)
	if err != nil {
		_ = sd.Shutdown(shutdown.DefaultTimeout)
		return err
	}

	if stdio {
		done := make(chan error, 1)
		go func() {
			done <- server.ServeStdio(st.mcp)
		}()

		logger.Info("sgfrender ready")
		select {
		case err := <-done:
			if err != nil {
				logger.Error("MCP server error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("Server stopped by context cancellation")
		}
	} else {
		logger.Info("sgfrender ready", "mcp", false)
		<-ctx.Done()
	}

	return sd.Shutdown(shutdown.DefaultTimeout)
}

// buildStack assembles and starts every component. Each one that holds
// resources is registered with sd in dependency order.
func (a *app) buildStack(ctx context.Context, sd *shutdown.Manager) (*stack, error) {
	cfg, logger := a.cfg, a.logger
	prom := metrics.NewPrometheusCollector()
	collector := metrics.NewCollector()

	cacheMgr := connectCache(ctx, &cfg.Cache, logger)
	sd.Register("cache", func(context.Context) error { return cacheMgr.Close() })
	if cacheMgr.IsEnabled() {
		go reportCacheStats(ctx, cacheMgr, prom, cacheStatsInterval)
	}

	limiter := ratelimit.NewLimiter(ctx, &cfg.RateLimit, logger)
	sd.Register("ratelimit", func(context.Context) error {
		limiter.Close()
		return nil
	})

	svc := pipeline.NewService(logger, pipeline.WithRecorder(prom), pipeline.WithCache(cacheMgr))

	checker := health.NewChecker(logger, cfg.Server.Version, a.build.GitCommit)
	checker.RegisterCheck("fonts", health.FontsCheck())
	checker.RegisterCheck("render", health.RenderCheck(logger))
	if cacheMgr.IsEnabled() {
		checker.RegisterOptionalCheck("cache", health.PingCheck(cacheMgr))
	}

	st := &stack{
		service: svc,
		cache:   cacheMgr,
		limiter: limiter,
		checker: checker,
	}

	if cfg.Server.HTTPAddr != "" {
		st.http = httpserver.NewHTTPServer(cfg.Server.HTTPAddr, httpserver.Deps{
			Logger:   logger,
			Checker:  checker,
			Service:  svc,
			Defaults: cfg.Render,
			Recorder: prom,
			Limiter:  limiter,
		})
		if err := st.http.Start(); err != nil {
			return nil, err
		}
		sd.Register("http", st.http.Stop)
	}

	st.mcp = server.NewMCPServer(
		cfg.Server.Name,
		cfg.Server.Version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	tools := mcptools.NewToolsHandler(svc, cfg.Render, cfg.Server.Version, logger)
	tools.SetMiddleware(mcptools.NewMiddleware(logger, collector, prom, limiter))
	tools.SetStatusSources(cacheMgr, collector, limiter)
	tools.RegisterTools(st.mcp)

	return st, nil
}

// connectCache opens the configured cache, retrying an unreachable redis
// backend. When redis stays down the server falls back to an in-process
// cache so renders keep working.
func connectCache(ctx context.Context, cfg *config.CacheConfig, logger logging.ContextLogger) *cache.Manager {
	policy := retry.DefaultConfig()
	policy.MaxAttempts = cfg.ConnectAttempts

	var mgr *cache.Manager
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		m, err := cache.NewManager(ctx, cfg, logger)
		if err != nil {
			return err
		}
		mgr = m
		return nil
	}, func(attempt int, delay time.Duration, err error) {
		logger.Warn("Cache connection failed, retrying",
			"attempt", attempt, "delay", delay.String(), "error", err)
	})
	if err == nil {
		return mgr
	}

	logger.Warn("Cache backend unavailable, using memory cache", "backend", cfg.Backend, "error", err)
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	return cache.NewManagerWithStore(cache.NewMemoryStore(cfg.MaxItems, cfg.MaxSizeBytes, ttl), logger)
}

// reportCacheStats publishes cache size gauges until ctx is done.
func reportCacheStats(ctx context.Context, m *cache.Manager, prom *metrics.PrometheusCollector, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		stats := m.Stats()
		prom.SetCacheStats(float64(stats.Items), float64(stats.Size))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
