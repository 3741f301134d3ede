package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"ab-analyzer/internal/client"
	"ab-analyzer/internal/errors"
	"ab-analyzer/internal/models"
	"ab-analyzer/internal/numfmt"
	"ab-analyzer/internal/observability"
	"ab-analyzer/internal/presentation"
	"ab-analyzer/internal/services"
)

const maxUploadBytes = 64 << 20

type APIHandlers struct {
	analyzer    *services.Analyzer
	coordinator *services.Coordinator
	radar       *client.Client
	logger      *slog.Logger
}

// NewAPIHandlers wires the REST surface. The radar client is optional:
// when nil, the radar endpoint serves the locally computed series.
func NewAPIHandlers(analyzer *services.Analyzer, coordinator *services.Coordinator, radar *client.Client, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analyzer:    analyzer,
		coordinator: coordinator,
		radar:       radar,
		logger:      logger,
	}
}

func (h *APIHandlers) HandleUploadOverall(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	var records []models.OverallRecord
	if err := decodeUpload(w, r, &records); err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "invalid overall data upload"), requestID)
		return
	}

	count := h.analyzer.SetOverallData(records)
	h.coordinator.Trigger(context.WithoutCancel(r.Context()), h.analyzer.Params())

	errors.WriteSuccess(w, map[string]any{
		"records":           count,
		"available_filters": h.analyzer.AvailableFilters(),
	})
}

func (h *APIHandlers) HandleUploadTransactions(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	var txs []models.Transaction
	if err := decodeUpload(w, r, &txs); err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "invalid transaction data upload"), requestID)
		return
	}

	count := h.analyzer.SetTransactionData(txs)
	h.coordinator.Trigger(context.WithoutCancel(r.Context()), h.analyzer.Params())

	errors.WriteSuccess(w, map[string]any{
		"records":           count,
		"available_filters": h.analyzer.AvailableFilters(),
	})
}

func (h *APIHandlers) HandleSetFilters(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	var filters models.Filters
	if err := json.NewDecoder(r.Body).Decode(&filters); err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "invalid filters"), requestID)
		return
	}

	h.analyzer.SetFilters(filters)
	token := h.coordinator.Trigger(context.WithoutCancel(r.Context()), h.analyzer.Params())

	errors.WriteSuccess(w, map[string]any{"filters": filters, "token": token})
}

func (h *APIHandlers) HandleSetCurrency(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	var body struct {
		Currency string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "invalid currency payload"), requestID)
		return
	}

	cur, ok := numfmt.ParseCurrency(body.Currency)
	if !ok {
		errors.WriteError(w, h.logger, errors.Validation("unsupported currency "+body.Currency), requestID)
		return
	}

	h.analyzer.SetCurrency(cur)
	token := h.coordinator.Trigger(context.WithoutCancel(r.Context()), h.analyzer.Params())

	errors.WriteSuccess(w, map[string]any{"currency": cur, "token": token})
}

// HandleAnalyze issues an explicit recomputation with the current
// parameter set. Responses from older triggers are discarded by the
// coordinator, so clients may fire this freely while changing filters.
func (h *APIHandlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	token := h.coordinator.Trigger(context.WithoutCancel(r.Context()), h.analyzer.Params())

	errors.WriteSuccess(w, map[string]any{"token": token})
}

func (h *APIHandlers) HandleResults(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	snap, ok := h.coordinator.Current()
	if !ok {
		if err := h.coordinator.Err(); err != nil {
			errors.WriteError(w, h.logger, err, requestID)
			return
		}
		errors.WriteError(w, h.logger, errors.NotFound("no analysis available yet"), requestID)
		return
	}

	// A failed later run leaves the last good snapshot in place; the error
	// travels alongside so the dashboard can flag staleness.
	errors.WriteSuccess(w, map[string]any{
		"table":       presentation.TableRows(snap),
		"series":      presentation.Series(snap),
		"ranges":      snap.Ranges,
		"outliers":    snap.Outliers,
		"summaries":   snap.Summaries,
		"currency":    snap.Currency,
		"control_key": snap.ControlKey,
		"computed_at": snap.ComputedAt,
		"stale_error": errorMessage(h.coordinator.Err()),
	})
}

func (h *APIHandlers) HandleOutliers(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	snap, ok := h.coordinator.Current()
	if !ok {
		errors.WriteError(w, h.logger, errors.NotFound("no analysis available yet"), requestID)
		return
	}

	errors.WriteSuccess(w, snap.Outliers)
}

func (h *APIHandlers) HandleRanges(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	snap, ok := h.coordinator.Current()
	if !ok {
		errors.WriteError(w, h.logger, errors.NotFound("no analysis available yet"), requestID)
		return
	}

	errors.WriteSuccess(w, snap.Ranges)
}

// HandleRadar serves the per-range revenue series. With a revenue-radar
// collaborator configured it proxies the remote computation; otherwise it
// answers from the local aggregation.
func (h *APIHandlers) HandleRadar(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	snap, ok := h.coordinator.Current()
	if !ok {
		errors.WriteError(w, h.logger, errors.NotFound("no analysis available yet"), requestID)
		return
	}

	if h.radar == nil {
		errors.WriteSuccess(w, map[string]any{"data": presentation.Series(snap)})
		return
	}

	resp, err := h.radar.RevenueRadar(r.Context(), client.RadarRequest{
		AnalyzeRequest: client.AnalyzeRequest{
			OverallData:     snap.Overall,
			TransactionData: snap.Transactions,
			Filters:         snap.Filters,
			Currency:        string(snap.Currency),
		},
		Ranges: snap.Ranges,
	})
	if err != nil {
		errors.WriteError(w, h.logger, errors.UpstreamWrap(err, "revenue radar request failed"), requestID)
		return
	}

	errors.WriteSuccess(w, resp)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {

	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {

	stats := h.analyzer.Stats()
	stats["latest_token"] = h.coordinator.Latest()

	errors.WriteSuccess(w, stats)
}

func decodeUpload(w http.ResponseWriter, r *http.Request, out any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(out)
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
