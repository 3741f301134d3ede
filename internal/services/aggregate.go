package services

import (
	"slices"
	"strings"

	"ab-analyzer/internal/models"
	"ab-analyzer/internal/numfmt"
)

// ConfidenceSource carries the external analysis collaborator's per-metric
// confidence values: variation key -> metric name -> confidence in [0,100].
// This service only passes them through; significance is never computed
// locally.
type ConfidenceSource map[string]map[string]float64

// AggregateOptions configures one comparative aggregation pass.
type AggregateOptions struct {
	// ControlKey pins the control variation explicitly. When empty, the
	// first sorted key containing "control" (case-insensitive) is used;
	// when nothing matches, uplift and confidence are omitted everywhere.
	ControlKey string
	Style      numfmt.DecimalStyle
	// UserCounts supplies the per-variation unique-user denominators for
	// RPU. RPU is omitted for variations without an entry.
	UserCounts map[string]float64
	Confidence ConfidenceSource
}

// AggregateResult maps every range to the per-variation bucket metrics.
// Buckets[i] holds the metrics for Ranges[i], keyed by variation key;
// positional alignment keeps ranges distinct even when boundary rounding
// collapses two of them onto the same label. Variations lists the keys
// with the control first.
type AggregateResult struct {
	Ranges     []models.Range                    `json:"ranges"`
	Variations []string                          `json:"variations"`
	ControlKey string                            `json:"control_key,omitempty"`
	Buckets    []map[string]models.BucketMetrics `json:"buckets"`
}

// Bucket returns the per-variation metrics of the first range carrying the
// given label, nil when no range matches.
func (r *AggregateResult) Bucket(label string) map[string]models.BucketMetrics {
	for i, rng := range r.Ranges {
		if rng.Label == label {
			return r.Buckets[i]
		}
	}
	return nil
}

// ResolveControl picks the control variation from the given keys. An
// explicit key wins when present; otherwise the heuristic scans the sorted
// keys so resolution is deterministic when several match.
func ResolveControl(keys []string, explicit string) string {
	if explicit != "" && slices.Contains(keys, explicit) {
		return explicit
	}
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	for _, k := range sorted {
		if strings.Contains(strings.ToLower(k), "control") {
			return k
		}
	}
	return ""
}

// Aggregate buckets every transaction into its revenue range and computes
// count, revenue, AOV, optional RPU and transaction share per (range,
// variation), plus uplift against the control and pass-through confidence
// for non-control variations.
func Aggregate(variations map[string][]models.Transaction, ranges []models.Range, opts AggregateOptions) *AggregateResult {
	keys := make([]string, 0, len(variations))
	for k := range variations {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	control := ResolveControl(keys, opts.ControlKey)
	if control != "" {
		// Control first, the rest keep sorted order.
		ordered := make([]string, 0, len(keys))
		ordered = append(ordered, control)
		for _, k := range keys {
			if k != control {
				ordered = append(ordered, k)
			}
		}
		keys = ordered
	}

	buckets := make([]map[string]*bucket, len(ranges))
	for i := range ranges {
		buckets[i] = make(map[string]*bucket, len(keys))
		for _, k := range keys {
			buckets[i][k] = &bucket{}
		}
	}

	totals := make(map[string]int, len(keys))
	for _, k := range keys {
		for _, tx := range variations[k] {
			v, _ := numfmt.NormalizeAmount(tx.Revenue, opts.Style)
			for i, r := range ranges {
				if r.Contains(v) {
					buckets[i][k].count++
					buckets[i][k].revenue += v
					totals[k]++
					break
				}
			}
		}
	}

	result := &AggregateResult{
		Ranges:     ranges,
		Variations: keys,
		ControlKey: control,
		Buckets:    make([]map[string]models.BucketMetrics, len(ranges)),
	}

	for i := range ranges {
		perVariation := make(map[string]models.BucketMetrics, len(keys))

		var controlMetrics models.BucketMetrics
		if control != "" {
			controlMetrics = baseMetrics(buckets[i][control], totals[control], control, opts)
		}

		for _, k := range keys {
			m := baseMetrics(buckets[i][k], totals[k], k, opts)
			if control != "" && k != control {
				attachComparison(&m, controlMetrics, k, opts.Confidence)
			}
			perVariation[k] = m
		}
		result.Buckets[i] = perVariation
	}

	return result
}

type bucket struct {
	count   int
	revenue float64
}

func baseMetrics(b *bucket, total int, key string, opts AggregateOptions) models.BucketMetrics {
	m := models.BucketMetrics{
		Transactions: b.count,
		Revenue:      b.revenue,
	}
	divisor := b.count
	if divisor < 1 {
		divisor = 1
	}
	m.AOV = b.revenue / float64(divisor)
	if total > 0 {
		m.TransactionShare = float64(b.count) / float64(total)
	}
	if users, ok := opts.UserCounts[key]; ok && users > 0 {
		rpu := b.revenue / users
		m.RPU = &rpu
	}
	return m
}

func attachComparison(m *models.BucketMetrics, control models.BucketMetrics, key string, conf ConfidenceSource) {
	m.RevenueUplift = ptr(uplift(m.Revenue, control.Revenue))
	m.AOVUplift = ptr(uplift(m.AOV, control.AOV))
	m.TransactionsUplift = ptr(uplift(float64(m.Transactions), float64(control.Transactions)))
	if m.RPU != nil && control.RPU != nil {
		m.RPUUplift = ptr(uplift(*m.RPU, *control.RPU))
	}

	metrics := conf[key]
	if metrics == nil {
		return
	}
	if c, ok := metrics["revenue"]; ok {
		m.RevenueConfidence = ptr(c)
	}
	if c, ok := metrics["aov"]; ok {
		m.AOVConfidence = ptr(c)
	}
	if c, ok := metrics["rpu"]; ok {
		m.RPUConfidence = ptr(c)
	}
}

// uplift is the signed percentage difference against the control value,
// defined as 0 when the control value is 0.
func uplift(value, control float64) float64 {
	if control == 0 {
		return 0
	}
	return 100 * (value - control) / control
}

func ptr(v float64) *float64 { return &v }
