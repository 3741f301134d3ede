package services

import (
	"math"
	"testing"

	"ab-analyzer/internal/models"
	"ab-analyzer/internal/numfmt"
)

func testRanges() []models.Range {
	return []models.Range{
		{Min: 0, Max: 100, Label: "0-100"},
		{Min: 100, Max: math.Inf(1), Label: "100+"},
	}
}

func tx(id, variation string, revenue float64) models.Transaction {
	return models.Transaction{
		TransactionID: id,
		Variation:     variation,
		Revenue:       models.NumberAmount(revenue),
	}
}

func TestResolveControl(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		explicit string
		want     string
	}{
		{"explicit wins", []string{"a", "b", "control"}, "b", "b"},
		{"explicit missing falls back", []string{"a", "Control"}, "z", "Control"},
		{"heuristic case-insensitive", []string{"Variant B", "CONTROL GROUP"}, "", "CONTROL GROUP"},
		{"heuristic substring", []string{"v1", "my-control-arm"}, "", "my-control-arm"},
		{"deterministic on ties", []string{"control-b", "control-a"}, "", "control-a"},
		{"no match", []string{"a", "b"}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveControl(tt.keys, tt.explicit); got != tt.want {
				t.Errorf("ResolveControl(%v, %q) = %q, want %q", tt.keys, tt.explicit, got, tt.want)
			}
		})
	}
}

func TestAggregate_BucketMetrics(t *testing.T) {
	variations := map[string][]models.Transaction{
		"control": {
			tx("C1", "control", 50),
			tx("C2", "control", 60),
			tx("C3", "control", 200),
		},
		"variant": {
			tx("V1", "variant", 55),
			tx("V2", "variant", 300),
		},
	}

	result := Aggregate(variations, testRanges(), AggregateOptions{Style: numfmt.DotDecimal})

	if result.ControlKey != "control" {
		t.Fatalf("control key = %q, want control", result.ControlKey)
	}
	if len(result.Variations) != 2 || result.Variations[0] != "control" {
		t.Fatalf("control should come first, got %v", result.Variations)
	}

	low := result.Bucket("0-100")["control"]
	if low.Transactions != 2 {
		t.Errorf("control low bucket count = %d, want 2", low.Transactions)
	}
	if low.Revenue != 110 {
		t.Errorf("control low bucket revenue = %v, want 110", low.Revenue)
	}
	if low.AOV != 55 {
		t.Errorf("control low bucket AOV = %v, want 55", low.AOV)
	}
	if math.Abs(low.TransactionShare-2.0/3.0) > 1e-9 {
		t.Errorf("control low bucket share = %v, want 2/3", low.TransactionShare)
	}

	// Control rows never carry uplift or confidence.
	if low.RevenueUplift != nil || low.AOVUplift != nil || low.TransactionsUplift != nil {
		t.Error("control bucket should not carry uplift")
	}

	high := result.Bucket("100+")["variant"]
	if high.Transactions != 1 || high.Revenue != 300 {
		t.Errorf("variant high bucket = %+v", high)
	}
	if high.RevenueUplift == nil {
		t.Fatal("variant bucket missing revenue uplift")
	}
	// control high revenue is 200, variant 300: +50%.
	if math.Abs(*high.RevenueUplift-50) > 1e-9 {
		t.Errorf("revenue uplift = %v, want 50", *high.RevenueUplift)
	}
}

func TestAggregate_UpliftEqualToControl(t *testing.T) {
	variations := map[string][]models.Transaction{
		"control": {tx("C1", "control", 80)},
		"variant": {tx("V1", "variant", 80)},
	}

	result := Aggregate(variations, testRanges(), AggregateOptions{Style: numfmt.DotDecimal})

	m := result.Bucket("0-100")["variant"]
	if m.RevenueUplift == nil || *m.RevenueUplift != 0 {
		t.Errorf("equal revenue should give 0%% uplift, got %v", m.RevenueUplift)
	}
	if m.AOVUplift == nil || *m.AOVUplift != 0 {
		t.Errorf("equal AOV should give 0%% uplift, got %v", m.AOVUplift)
	}
}

// A zero control value defines uplift as 0, not a division error.
func TestAggregate_UpliftZeroControl(t *testing.T) {
	variations := map[string][]models.Transaction{
		"control": {tx("C1", "control", 250)},
		"variant": {tx("V1", "variant", 50), tx("V2", "variant", 300)},
	}

	result := Aggregate(variations, testRanges(), AggregateOptions{Style: numfmt.DotDecimal})

	// The control has no transactions in the low bucket.
	m := result.Bucket("0-100")["variant"]
	if m.RevenueUplift == nil || *m.RevenueUplift != 0 {
		t.Errorf("uplift against an empty control bucket should be 0, got %v", m.RevenueUplift)
	}
}

func TestAggregate_EmptyBucketAOV(t *testing.T) {
	variations := map[string][]models.Transaction{
		"control": {tx("C1", "control", 250)},
	}

	result := Aggregate(variations, testRanges(), AggregateOptions{Style: numfmt.DotDecimal})

	m := result.Bucket("0-100")["control"]
	if m.AOV != 0 {
		t.Errorf("empty bucket AOV = %v, want 0", m.AOV)
	}
	if m.TransactionShare != 0 {
		t.Errorf("empty bucket share = %v, want 0", m.TransactionShare)
	}
}

func TestAggregate_RPU(t *testing.T) {
	variations := map[string][]models.Transaction{
		"control": {tx("C1", "control", 100)},
		"variant": {tx("V1", "variant", 150)},
	}

	result := Aggregate(variations, testRanges(), AggregateOptions{
		Style:      numfmt.DotDecimal,
		UserCounts: map[string]float64{"control": 50, "variant": 50},
	})

	c := result.Bucket("100+")["control"]
	if c.RPU == nil || *c.RPU != 2 {
		t.Errorf("control RPU = %v, want 2", c.RPU)
	}
	v := result.Bucket("100+")["variant"]
	if v.RPU == nil || *v.RPU != 3 {
		t.Errorf("variant RPU = %v, want 3", v.RPU)
	}
	if v.RPUUplift == nil || *v.RPUUplift != 50 {
		t.Errorf("variant RPU uplift = %v, want 50", v.RPUUplift)
	}
}

func TestAggregate_RPUOmittedWithoutUserCounts(t *testing.T) {
	variations := map[string][]models.Transaction{
		"control": {tx("C1", "control", 100)},
		"variant": {tx("V1", "variant", 150)},
	}

	result := Aggregate(variations, testRanges(), AggregateOptions{Style: numfmt.DotDecimal})

	if result.Bucket("100+")["variant"].RPU != nil {
		t.Error("RPU should be omitted without user counts")
	}
	if result.Bucket("100+")["variant"].RPUUplift != nil {
		t.Error("RPU uplift should be omitted without user counts")
	}
}

func TestAggregate_ConfidencePassthrough(t *testing.T) {
	variations := map[string][]models.Transaction{
		"control": {tx("C1", "control", 100)},
		"variant": {tx("V1", "variant", 150)},
	}

	result := Aggregate(variations, testRanges(), AggregateOptions{
		Style: numfmt.DotDecimal,
		Confidence: ConfidenceSource{
			"variant": {"revenue": 97.5, "aov": 88.1},
		},
	})

	m := result.Bucket("100+")["variant"]
	if m.RevenueConfidence == nil || *m.RevenueConfidence != 97.5 {
		t.Errorf("revenue confidence = %v, want 97.5", m.RevenueConfidence)
	}
	if m.AOVConfidence == nil || *m.AOVConfidence != 88.1 {
		t.Errorf("aov confidence = %v, want 88.1", m.AOVConfidence)
	}
	if m.RPUConfidence != nil {
		t.Error("rpu confidence should be absent when not supplied")
	}
	if c := result.Bucket("100+")["control"]; c.RevenueConfidence != nil {
		t.Error("control never carries confidence")
	}
}

func TestAggregate_NoControl(t *testing.T) {
	variations := map[string][]models.Transaction{
		"a": {tx("A1", "a", 100)},
		"b": {tx("B1", "b", 150)},
	}

	result := Aggregate(variations, testRanges(), AggregateOptions{Style: numfmt.DotDecimal})

	if result.ControlKey != "" {
		t.Fatalf("unexpected control key %q", result.ControlKey)
	}
	for i, perVariation := range result.Buckets {
		for key, m := range perVariation {
			if m.RevenueUplift != nil || m.RevenueConfidence != nil {
				t.Errorf("bucket %s/%s carries comparison without a control", result.Ranges[i].Label, key)
			}
		}
	}
}

// Boundary rounding can collapse adjacent ranges onto the same label; each
// range still gets its own bucket slot and transactions land by position.
func TestAggregate_CollapsedRangeLabels(t *testing.T) {
	ranges := []models.Range{
		{Min: 0, Max: 500, Label: "€0 - €500"},
		{Min: 500, Max: 500, Label: "€500 - €500"},
		{Min: 500, Max: 500, Label: "€500 - €500"},
		{Min: 500, Max: math.Inf(1), Label: "€500+"},
	}
	variations := map[string][]models.Transaction{
		"control": {tx("C1", "control", 700)},
	}

	result := Aggregate(variations, ranges, AggregateOptions{Style: numfmt.DotDecimal})

	if len(result.Buckets) != len(ranges) {
		t.Fatalf("bucket slots = %d, want %d", len(result.Buckets), len(ranges))
	}
	for i := 1; i <= 2; i++ {
		if m := result.Buckets[i]["control"]; m.Transactions != 0 || m.Revenue != 0 {
			t.Errorf("collapsed range %d should stay empty, got %+v", i, m)
		}
	}
	if m := result.Buckets[3]["control"]; m.Transactions != 1 || m.Revenue != 700 {
		t.Errorf("terminal bucket = %+v, want the 700 transaction", m)
	}
	if result.Bucket("€500 - €500") == nil {
		t.Error("label lookup should resolve the first collapsed range")
	}
}
