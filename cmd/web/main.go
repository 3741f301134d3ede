package main

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"os"

	"ab-analyzer/internal/client"
	"ab-analyzer/internal/config"
	"ab-analyzer/internal/middleware"
	"ab-analyzer/internal/numfmt"
	"ab-analyzer/internal/observability"
	"ab-analyzer/internal/server"
	"ab-analyzer/internal/services"
)

const cacheMaxAge = "public, max-age=300"

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Experiment Dashboard</title>
<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0/bundles/datastar.js"></script>
</head>
<body>
<main data-signals="{radarData: [], outlierData: {}, summaries: {}}">
<h1>Experiment Dashboard</h1>
<section id="results-content" data-on-load="@get('/sse/results-table')">Loading results…</section>
<section id="radar-content" data-on-load="@get('/sse/revenue-radar')">Loading revenue radar…</section>
<section id="outliers-content" data-on-load="@get('/sse/outliers')">Loading outliers…</section>
<button data-on-click="@get('/sse/refresh-all')">Refresh</button>
</main>
</body>
</html>`))

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", cacheMaxAge)
	if err := dashboardTemplate.Execute(w, nil); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"config", cfg,
	)

	analyzer := services.NewAnalyzer(logger)
	if cur, ok := numfmt.ParseCurrency(cfg.Analysis.DefaultCurrency); ok {
		analyzer.SetCurrency(cur)
	}
	if cfg.Analysis.ControlKey != "" {
		analyzer.SetControlKey(cfg.Analysis.ControlKey)
	}

	var radar *client.Client
	if cfg.Analysis.ServiceURL != "" {
		radar = client.New(cfg.Analysis.ServiceURL, cfg.Analysis.RequestTimeout, logger)
		analyzer.SetRemote(radar)
		logger.Info("analysis service configured", "url", cfg.Analysis.ServiceURL)
	}

	coordinator := services.NewCoordinator(analyzer.Compute, logger)

	templateHandlers := &server.TemplateHandlers{
		Dashboard: handleDashboard,
	}

	srv := server.NewServer(analyzer, coordinator, radar, logger, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	handler := middlewareChain(srv)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("waiting for in-flight analyses")
		coordinator.Wait()
		return nil
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
