package services

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"ab-analyzer/internal/errors"
	"ab-analyzer/internal/models"
	"ab-analyzer/internal/numfmt"
	"ab-analyzer/internal/stats"

	"golang.org/x/sync/errgroup"
)

const maxWorkers = 4

// RemoteAnalysis is the external statistical-significance collaborator.
// It returns per-variation, per-metric confidence values in [0,100];
// significance is never computed locally.
type RemoteAnalysis interface {
	MetricConfidence(ctx context.Context, overall []models.OverallRecord, txs []models.Transaction,
		filters models.Filters, currency numfmt.Currency) (ConfidenceSource, error)
}

// AnalysisParams is the full parameter set one recomputation runs with,
// captured at trigger time so an in-flight request is unaffected by later
// user input.
type AnalysisParams struct {
	Filters  models.Filters
	Currency numfmt.Currency
}

// Snapshot is one complete, immutable recomputation result. Every trigger
// produces a fresh snapshot; nothing is mutated incrementally.
type Snapshot struct {
	Currency    numfmt.Currency                    `json:"currency"`
	Filters     models.Filters                     `json:"filters"`
	Ranges      []models.Range                     `json:"ranges"`
	Aggregate   *AggregateResult                   `json:"aggregate"`
	Outliers    map[string]models.OutlierSummary   `json:"outliers"`
	Summaries   map[string]models.VariationSummary `json:"summaries"`
	Variations  []string                           `json:"variations"`
	ControlKey  string                             `json:"control_key,omitempty"`
	Confidence  ConfidenceSource                   `json:"-"`
	RecordCount int                                `json:"record_count"`
	ComputedAt  time.Time                          `json:"computed_at"`

	// The datasets this snapshot was computed from, carried so the
	// revenue-radar proxy can forward the full collaborator body.
	// Transactions is the filtered population.
	Overall      []models.OverallRecord `json:"-"`
	Transactions []models.Transaction   `json:"-"`
}

// Analyzer owns the uploaded datasets and the active parameters, and
// recomputes the full result set on demand.
type Analyzer struct {
	mu           sync.RWMutex
	overall      []models.OverallRecord
	transactions []models.Transaction
	filters      models.Filters
	currency     numfmt.Currency
	controlKey   string
	remote       RemoteAnalysis
	logger       *slog.Logger
	recomputes   atomic.Int64
}

func NewAnalyzer(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		currency: numfmt.EUR,
		logger:   logger,
	}
}

// SetControlKey pins the control variation; empty falls back to the
// "control" substring heuristic.
func (a *Analyzer) SetControlKey(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.controlKey = key
}

func (a *Analyzer) SetRemote(remote RemoteAnalysis) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.remote = remote
}

func (a *Analyzer) SetOverallData(records []models.OverallRecord) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.overall = slices.Clone(records)
	return len(a.overall)
}

func (a *Analyzer) SetTransactionData(txs []models.Transaction) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transactions = slices.Clone(txs)
	return len(a.transactions)
}

func (a *Analyzer) SetFilters(f models.Filters) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.filters = f
}

func (a *Analyzer) SetCurrency(c numfmt.Currency) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currency = c
}

// Params captures the current parameter set for a trigger.
func (a *Analyzer) Params() AnalysisParams {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return AnalysisParams{Filters: a.filters, Currency: a.currency}
}

// AvailableFilters lists the filter values present in the uploaded data:
// device categories from the transaction export, item categories from the
// overall export (the ((Total)) sentinel rows excluded).
func (a *Analyzer) AvailableFilters() models.Filters {
	a.mu.RLock()
	defer a.mu.RUnlock()

	devices := make(map[string]struct{})
	for _, tx := range a.transactions {
		if tx.DeviceCategory != "" {
			devices[tx.DeviceCategory] = struct{}{}
		}
	}
	categories := make(map[string]struct{})
	for _, rec := range a.overall {
		if rec.ItemCategory2 != "" && rec.ItemCategory2 != models.TotalCategory {
			categories[rec.ItemCategory2] = struct{}{}
		}
	}

	f := models.Filters{
		DeviceCategory: make([]string, 0, len(devices)),
		ItemCategory2:  make([]string, 0, len(categories)),
	}
	for d := range devices {
		f.DeviceCategory = append(f.DeviceCategory, d)
	}
	for c := range categories {
		f.ItemCategory2 = append(f.ItemCategory2, c)
	}
	slices.Sort(f.DeviceCategory)
	slices.Sort(f.ItemCategory2)
	return f
}

// Compute runs one full recomputation with the given parameters. The
// datasets are read under lock, then everything downstream works on
// copies.
func (a *Analyzer) Compute(ctx context.Context, p AnalysisParams) (*Snapshot, error) {
	a.mu.RLock()
	overall := a.overall
	transactions := a.transactions
	controlKey := a.controlKey
	remote := a.remote
	a.mu.RUnlock()

	if len(transactions) == 0 {
		return nil, errors.Validation("transaction data not loaded")
	}
	if len(overall) == 0 {
		return nil, errors.Validation("overall data not loaded")
	}

	start := time.Now()

	filtered := applyFilters(transactions, p.Filters)
	groups := groupByVariation(filtered)
	ranges := stats.ComputeRanges(filtered, p.Currency)

	var confidence ConfidenceSource
	if remote != nil {
		var err error
		confidence, err = remote.MetricConfidence(ctx, overall, filtered, p.Filters, p.Currency)
		if err != nil {
			return nil, errors.UpstreamWrap(err, "analysis service request failed")
		}
	}

	aggregate := Aggregate(groups, ranges, AggregateOptions{
		ControlKey: controlKey,
		Style:      p.Currency.Style(),
		UserCounts: userCounts(overall),
		Confidence: confidence,
	})

	outliers, err := detectAllOutliers(ctx, groups, p.Currency.Style())
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Currency:    p.Currency,
		Filters:     p.Filters,
		Ranges:      ranges,
		Aggregate:   aggregate,
		Outliers:    outliers,
		Summaries:   summarize(overall, groups, p.Currency),
		Variations:  aggregate.Variations,
		ControlKey:  aggregate.ControlKey,
		Confidence:  confidence,
		RecordCount: len(filtered),
		ComputedAt:  time.Now(),

		Overall:      overall,
		Transactions: filtered,
	}

	a.recomputes.Add(1)
	a.logger.Debug("recomputation complete",
		"records", len(filtered),
		"variations", len(groups),
		"ranges", len(ranges),
		"duration", time.Since(start),
	)

	return snap, nil
}

// Stats reports dataset and recomputation counters for monitoring.
func (a *Analyzer) Stats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return map[string]any{
		"overall_records":     len(a.overall),
		"transaction_records": len(a.transactions),
		"currency":            a.currency,
		"filters":             a.filters,
		"recomputes":          a.recomputes.Load(),
	}
}

// applyFilters narrows the transaction population. Device filtering keeps
// every line of any transaction seen on a selected device; category
// filtering drops individual lines.
func applyFilters(txs []models.Transaction, f models.Filters) []models.Transaction {
	if f.IsZero() {
		return txs
	}

	out := txs
	if len(f.DeviceCategory) > 0 {
		keep := make(map[string]struct{})
		for _, tx := range out {
			if slices.Contains(f.DeviceCategory, tx.DeviceCategory) {
				keep[tx.TransactionID] = struct{}{}
			}
		}
		filtered := make([]models.Transaction, 0, len(out))
		for _, tx := range out {
			if _, ok := keep[tx.TransactionID]; ok {
				filtered = append(filtered, tx)
			}
		}
		out = filtered
	}

	if len(f.ItemCategory2) > 0 {
		filtered := make([]models.Transaction, 0, len(out))
		for _, tx := range out {
			if slices.Contains(f.ItemCategory2, tx.ItemCategory2) {
				filtered = append(filtered, tx)
			}
		}
		out = filtered
	}

	return out
}

func groupByVariation(txs []models.Transaction) map[string][]models.Transaction {
	groups := make(map[string][]models.Transaction)
	for _, tx := range txs {
		groups[tx.Variation] = append(groups[tx.Variation], tx)
	}
	return groups
}

// detectAllOutliers fans the per-variation detection out over a bounded
// worker group.
func detectAllOutliers(ctx context.Context, groups map[string][]models.Transaction, style numfmt.DecimalStyle) (map[string]models.OutlierSummary, error) {
	var mu sync.Mutex
	out := make(map[string]models.OutlierSummary, len(groups))

	var wg errgroup.Group
	wg.SetLimit(maxWorkers)

	for key, txs := range groups {
		wg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			summary := stats.DetectOutliers(txs, style)
			mu.Lock()
			out[key] = summary
			mu.Unlock()
			return nil
		})
	}

	if err := wg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// totalsByVariation indexes the ((Total)) sentinel rows of the overall
// export by variation key.
func totalsByVariation(overall []models.OverallRecord) map[string]models.OverallRecord {
	totals := make(map[string]models.OverallRecord)
	for _, rec := range overall {
		if rec.ItemCategory2 != models.TotalCategory {
			continue
		}
		if _, ok := totals[rec.Variation]; !ok {
			totals[rec.Variation] = rec
		}
	}
	return totals
}

// userCounts extracts the per-variation unique-user denominators used for
// RPU. Overall counts use comma grouping regardless of display locale, so
// they normalize under the dot-decimal style.
func userCounts(overall []models.OverallRecord) map[string]float64 {
	counts := make(map[string]float64)
	for key, rec := range totalsByVariation(overall) {
		if users, ok := numfmt.NormalizeAmount(rec.Users, numfmt.DotDecimal); ok && users > 0 {
			counts[key] = users
		}
	}
	return counts
}
