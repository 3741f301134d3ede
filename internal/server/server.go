package server

import (
	"log/slog"
	"net/http"

	"ab-analyzer/internal/client"
	"ab-analyzer/internal/handlers"
	"ab-analyzer/internal/services"
)

type Server struct {
	analyzer    *services.Analyzer
	coordinator *services.Coordinator
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(analyzer *services.Analyzer, coordinator *services.Coordinator, radar *client.Client, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		analyzer:    analyzer,
		coordinator: coordinator,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(analyzer, coordinator, radar, logger),
		sseHandlers: handlers.NewSSEHandlers(coordinator, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	s.mux.HandleFunc("GET /", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// REST API endpoints
	s.mux.HandleFunc("POST /api/data/overall", s.apiHandlers.HandleUploadOverall)
	s.mux.HandleFunc("POST /api/data/transactions", s.apiHandlers.HandleUploadTransactions)
	s.mux.HandleFunc("POST /api/filters", s.apiHandlers.HandleSetFilters)
	s.mux.HandleFunc("POST /api/currency", s.apiHandlers.HandleSetCurrency)
	s.mux.HandleFunc("POST /api/analyze", s.apiHandlers.HandleAnalyze)
	s.mux.HandleFunc("GET /api/results", s.apiHandlers.HandleResults)
	s.mux.HandleFunc("GET /api/outliers", s.apiHandlers.HandleOutliers)
	s.mux.HandleFunc("GET /api/ranges", s.apiHandlers.HandleRanges)
	s.mux.HandleFunc("GET /api/revenue-radar", s.apiHandlers.HandleRadar)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/results-table", s.sseHandlers.HandleResultsTable)
	s.mux.HandleFunc("GET /sse/revenue-radar", s.sseHandlers.HandleRadialSeries)
	s.mux.HandleFunc("GET /sse/outliers", s.sseHandlers.HandleOutliers)
	s.mux.HandleFunc("GET /sse/refresh-all", s.sseHandlers.HandleRefreshAll)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
