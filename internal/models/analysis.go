package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// Range is one revenue bucket. Ranges form a contiguous ascending partition
// of [0, +inf): a value belongs to a range when min <= v < max, except the
// terminal range which has no upper bound.
type Range struct {
	Min   float64
	Max   float64 // math.Inf(1) for the terminal range
	Label string
}

func (r Range) Unbounded() bool { return math.IsInf(r.Max, 1) }

func (r Range) Contains(v float64) bool {
	if r.Unbounded() {
		return v >= r.Min
	}
	return v >= r.Min && v < r.Max
}

// The wire format is text-based, so an unbounded max travels as the literal
// string "Infinity" rather than a native infinity.
type rangeJSON struct {
	Min   float64 `json:"min"`
	Max   any     `json:"max"`
	Label string  `json:"label"`
}

func (r Range) MarshalJSON() ([]byte, error) {
	out := rangeJSON{Min: r.Min, Max: r.Max, Label: r.Label}
	if r.Unbounded() {
		out.Max = "Infinity"
	}
	return json.Marshal(out)
}

func (r *Range) UnmarshalJSON(data []byte) error {
	var raw rangeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Min = raw.Min
	r.Label = raw.Label
	switch max := raw.Max.(type) {
	case nil:
		r.Max = math.Inf(1)
	case string:
		if max != "Infinity" {
			return fmt.Errorf("invalid range max %q", max)
		}
		r.Max = math.Inf(1)
	case float64:
		r.Max = max
	default:
		return fmt.Errorf("invalid range max type %T", raw.Max)
	}
	return nil
}

// BucketMetrics holds the comparable numbers for one (range, variation)
// pair. RPU is present only when the caller supplied a per-variation user
// count; uplift and confidence fields are present only for non-control
// variations.
type BucketMetrics struct {
	Transactions     int      `json:"transactions"`
	Revenue          float64  `json:"revenue"`
	AOV              float64  `json:"aov"`
	RPU              *float64 `json:"rpu,omitempty"`
	TransactionShare float64  `json:"transaction_share"`

	RevenueUplift      *float64 `json:"revenue_uplift,omitempty"`
	RevenueConfidence  *float64 `json:"revenue_confidence,omitempty"`
	AOVUplift          *float64 `json:"aov_uplift,omitempty"`
	AOVConfidence      *float64 `json:"aov_confidence,omitempty"`
	RPUUplift          *float64 `json:"rpu_uplift,omitempty"`
	RPUConfidence      *float64 `json:"rpu_confidence,omitempty"`
	TransactionsUplift *float64 `json:"transactions_uplift,omitempty"`
}

// OutlierSummary reports Tukey-fence outliers for one variation's
// transactions.
type OutlierSummary struct {
	Q1         float64       `json:"q1"`
	Q3         float64       `json:"q3"`
	LowerBound float64       `json:"lower_bound"`
	UpperBound float64       `json:"upper_bound"`
	Outliers   []Transaction `json:"outliers"`
	Percentage float64       `json:"percentage"`
}

// TransactionExtreme describes the highest or lowest purchase of a
// variation, grouped by transaction id.
type TransactionExtreme struct {
	TransactionID  string   `json:"transaction_id"`
	Revenue        float64  `json:"revenue"`
	Quantity       int      `json:"quantity"`
	MainProduct    string   `json:"main_product"`
	ItemCategories []string `json:"item_categories"`
}

// RangeStats is the fixed-partition revenue distribution entry attached to
// each variation summary.
type RangeStats struct {
	Count        int            `json:"count"`
	TotalRevenue float64        `json:"total_revenue"`
	AOV          float64        `json:"aov"`
	Categories   map[string]int `json:"categories"`
}

// VariationSummary is the per-variation headline block of the results
// table: engagement counts from the overall export, transaction metrics
// from the transaction export.
type VariationSummary struct {
	Users               float64               `json:"users"`
	AddToCarts          float64               `json:"add_to_carts"`
	AddToCartRate       float64               `json:"add_to_cart_rate"`
	Transactions        int                   `json:"transactions"`
	TransactionRate     float64               `json:"transaction_rate"`
	Revenue             float64               `json:"revenue"`
	AOV                 float64               `json:"aov"`
	RPU                 float64               `json:"rpu"`
	HighestTransaction  *TransactionExtreme   `json:"highest_transaction,omitempty"`
	LowestTransaction   *TransactionExtreme   `json:"lowest_transaction,omitempty"`
	RevenueDistribution map[string]RangeStats `json:"revenue_distribution"`
}
