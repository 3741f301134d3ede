// Package client talks to the remote analysis collaborators: the
// statistical-significance service and the revenue-radar service. Both are
// plain JSON-over-HTTP POST endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ab-analyzer/internal/models"
	"ab-analyzer/internal/numfmt"
	"ab-analyzer/internal/observability"
	"ab-analyzer/internal/services"
)

const maxErrorBody = 512

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// AnalyzeRequest is the analyze endpoint's body: both uploaded datasets
// plus the active parameter set.
type AnalyzeRequest struct {
	OverallData     []models.OverallRecord `json:"overall_data"`
	TransactionData []models.Transaction   `json:"transaction_data"`
	Filters         models.Filters         `json:"filters"`
	Currency        string                 `json:"currency"`
}

// VariationMetrics is one variation's entry in the analyze response.
// Uplift and confidence siblings are present only for non-control
// variations.
type VariationMetrics struct {
	Users                     float64                    `json:"users"`
	AddToCartRate             float64                    `json:"add_to_cart_rate"`
	AddToCartRateUplift       *float64                   `json:"add_to_cart_rate_uplift,omitempty"`
	AddToCartRateConfidence   *float64                   `json:"add_to_cart_rate_confidence,omitempty"`
	TransactionRate           float64                    `json:"transaction_rate"`
	TransactionRateUplift     *float64                   `json:"transaction_rate_uplift,omitempty"`
	TransactionRateConfidence *float64                   `json:"transaction_rate_confidence,omitempty"`
	Revenue                   float64                    `json:"revenue"`
	RevenueUplift             *float64                   `json:"revenue_uplift,omitempty"`
	RevenueConfidence         *float64                   `json:"revenue_confidence,omitempty"`
	AOV                       float64                    `json:"aov"`
	AOVUplift                 *float64                   `json:"aov_uplift,omitempty"`
	AOVConfidence             *float64                   `json:"aov_confidence,omitempty"`
	RPU                       float64                    `json:"rpu"`
	RPUUplift                 *float64                   `json:"rpu_uplift,omitempty"`
	RPUConfidence             *float64                   `json:"rpu_confidence,omitempty"`
	HighestTransaction        *models.TransactionExtreme `json:"highest_transaction,omitempty"`
	LowestTransaction         *models.TransactionExtreme `json:"lowest_transaction,omitempty"`
}

// AnalyzeResponse is a mapping from variation key to metrics, with the
// reserved "raw_data" key holding the per-variation transaction arrays.
type AnalyzeResponse struct {
	Variations map[string]VariationMetrics
	RawData    map[string][]models.Transaction
}

func (r *AnalyzeResponse) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Variations = make(map[string]VariationMetrics, len(raw))
	for key, msg := range raw {
		if key == "raw_data" {
			if err := json.Unmarshal(msg, &r.RawData); err != nil {
				return fmt.Errorf("raw_data: %w", err)
			}
			continue
		}
		var m VariationMetrics
		if err := json.Unmarshal(msg, &m); err != nil {
			return fmt.Errorf("variation %q: %w", key, err)
		}
		r.Variations[key] = m
	}
	return nil
}

// RadarRequest adds the revenue ranges to the analyze body. Unbounded
// range maxima travel as the literal string "Infinity".
type RadarRequest struct {
	AnalyzeRequest
	Ranges []models.Range `json:"ranges"`
}

type RadarPoint struct {
	Range        string                          `json:"range"`
	Revenues     map[string]float64              `json:"revenues"`
	Transactions map[string]float64              `json:"transactions"`
	Metrics      map[string]models.BucketMetrics `json:"metrics"`
}

type RadarResponse struct {
	Data []RadarPoint `json:"data"`
}

func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	var out AnalyzeResponse
	if err := c.post(ctx, "/analyze", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RevenueRadar(ctx context.Context, req RadarRequest) (*RadarResponse, error) {
	var out RadarResponse
	if err := c.post(ctx, "/revenue-radar", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MetricConfidence implements services.RemoteAnalysis: one analyze call,
// reduced to the per-variation confidence values the aggregator carries
// through.
func (c *Client) MetricConfidence(ctx context.Context, overall []models.OverallRecord, txs []models.Transaction,
	filters models.Filters, currency numfmt.Currency) (services.ConfidenceSource, error) {

	resp, err := c.Analyze(ctx, AnalyzeRequest{
		OverallData:     overall,
		TransactionData: txs,
		Filters:         filters,
		Currency:        string(currency),
	})
	if err != nil {
		return nil, err
	}

	source := make(services.ConfidenceSource, len(resp.Variations))
	for key, m := range resp.Variations {
		metrics := make(map[string]float64)
		if m.RevenueConfidence != nil {
			metrics["revenue"] = *m.RevenueConfidence
		}
		if m.AOVConfidence != nil {
			metrics["aov"] = *m.AOVConfidence
		}
		if m.RPUConfidence != nil {
			metrics["rpu"] = *m.RPUConfidence
		}
		if m.TransactionRateConfidence != nil {
			metrics["transactions"] = *m.TransactionRateConfidence
		}
		if len(metrics) > 0 {
			source[key] = metrics
		}
	}
	return source, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) (err error) {
	ctx, span := observability.StartSpan(ctx, "client.post")
	span.SetTag("path", path)
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("collaborator request",
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("post %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
