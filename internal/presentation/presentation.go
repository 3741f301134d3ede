// Package presentation reshapes analysis snapshots into the two shapes the
// rendering layer consumes: row-oriented table view-models and per-range
// series points for radial charts. Everything here is pure and never
// mutates its input.
package presentation

import (
	"maps"
	"slices"

	"ab-analyzer/internal/models"
	"ab-analyzer/internal/numfmt"
	"ab-analyzer/internal/services"
)

// MetricCell is one table cell: the raw value, its locale-formatted
// rendering, and the comparison against the control when applicable.
type MetricCell struct {
	Value      float64  `json:"value"`
	Formatted  string   `json:"formatted"`
	Uplift     *float64 `json:"uplift,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// TableRow is one variation's row in the results table, metrics keyed by
// name: users, add_to_cart_rate, transaction_rate, transactions, revenue,
// aov, rpu.
type TableRow struct {
	Variation string                `json:"variation"`
	IsControl bool                  `json:"is_control"`
	Metrics   map[string]MetricCell `json:"metrics"`
}

// SeriesPoint is one range's point for the radar chart, carrying the full
// bucket metrics per variation. This is also the hover payload: the caller
// reads tooltip data straight off the point instead of subscribing to an
// event bus.
type SeriesPoint struct {
	Range        string                          `json:"range"`
	Revenues     map[string]float64              `json:"revenues"`
	Transactions map[string]int                  `json:"transactions"`
	Metrics      map[string]models.BucketMetrics `json:"metrics"`
}

// TableRows builds one row per variation, control first. Uplift is
// computed against the control summary; confidence is attached only when
// the snapshot carries collaborator values.
func TableRows(snap *services.Snapshot) []TableRow {
	if snap == nil {
		return nil
	}

	control, hasControl := snap.Summaries[snap.ControlKey]

	// Filtering can empty a variation's transaction group while its
	// overall totals remain, so the row set is the union of both sources.
	keys := slices.Clone(snap.Variations)
	extra := make([]string, 0)
	for key := range snap.Summaries {
		if !slices.Contains(keys, key) {
			extra = append(extra, key)
		}
	}
	slices.Sort(extra)
	keys = append(keys, extra...)

	rows := make([]TableRow, 0, len(keys))
	for _, key := range keys {
		summary, ok := snap.Summaries[key]
		if !ok {
			continue
		}

		isControl := hasControl && key == snap.ControlKey
		cells := map[string]MetricCell{
			"users":             {Value: summary.Users, Formatted: numfmt.FormatCount(summary.Users, snap.Currency)},
			"add_to_cart_rate":  {Value: summary.AddToCartRate, Formatted: numfmt.FormatPercent(summary.AddToCartRate, snap.Currency)},
			"transaction_rate":  {Value: summary.TransactionRate, Formatted: numfmt.FormatPercent(summary.TransactionRate, snap.Currency)},
			"transactions":      {Value: float64(summary.Transactions), Formatted: numfmt.FormatCount(float64(summary.Transactions), snap.Currency)},
			"revenue":           {Value: summary.Revenue, Formatted: numfmt.FormatMoney(summary.Revenue, snap.Currency)},
			"aov":               {Value: summary.AOV, Formatted: numfmt.FormatMoney(summary.AOV, snap.Currency)},
			"rpu":               {Value: summary.RPU, Formatted: numfmt.FormatMoney(summary.RPU, snap.Currency)},
		}

		if hasControl && !isControl {
			attachUplift(cells, "users", summary.Users, control.Users)
			attachUplift(cells, "add_to_cart_rate", summary.AddToCartRate, control.AddToCartRate)
			attachUplift(cells, "transaction_rate", summary.TransactionRate, control.TransactionRate)
			attachUplift(cells, "transactions", float64(summary.Transactions), float64(control.Transactions))
			attachUplift(cells, "revenue", summary.Revenue, control.Revenue)
			attachUplift(cells, "aov", summary.AOV, control.AOV)
			attachUplift(cells, "rpu", summary.RPU, control.RPU)
			attachConfidence(cells, snap.Confidence[key])
		}

		rows = append(rows, TableRow{
			Variation: key,
			IsControl: isControl,
			Metrics:   cells,
		})
	}

	return rows
}

// Series builds one point per range in range order. The per-variation maps
// are fresh copies so callers can annotate them freely.
func Series(snap *services.Snapshot) []SeriesPoint {
	if snap == nil || snap.Aggregate == nil {
		return nil
	}

	agg := snap.Aggregate
	points := make([]SeriesPoint, 0, len(agg.Ranges))
	for i, r := range agg.Ranges {
		point := SeriesPoint{
			Range:        r.Label,
			Revenues:     make(map[string]float64, len(agg.Variations)),
			Transactions: make(map[string]int, len(agg.Variations)),
			Metrics:      maps.Clone(agg.Buckets[i]),
		}
		for key, m := range agg.Buckets[i] {
			point.Revenues[key] = m.Revenue
			point.Transactions[key] = m.Transactions
		}
		points = append(points, point)
	}

	return points
}

func attachUplift(cells map[string]MetricCell, name string, value, control float64) {
	cell := cells[name]
	u := 0.0
	if control != 0 {
		u = 100 * (value - control) / control
	}
	cell.Uplift = &u
	cells[name] = cell
}

// attachConfidence carries the collaborator's per-metric confidence into
// the matching cells. The collaborator names the transaction metric
// "transactions"; rates share their base metric's confidence.
func attachConfidence(cells map[string]MetricCell, metrics map[string]float64) {
	if metrics == nil {
		return
	}
	for name, c := range metrics {
		cell, ok := cells[name]
		if !ok {
			continue
		}
		conf := c
		cell.Confidence = &conf
		cells[name] = cell
	}
}
