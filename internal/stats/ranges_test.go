package stats

import (
	"math"
	"strings"
	"testing"

	"ab-analyzer/internal/models"
	"ab-analyzer/internal/numfmt"
)

func TestSmartRound(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		// normalized < 2: nearest half step
		{1.2, 1},
		{1.3, 1.5},
		{17, 15},
		{130, 150},
		{1.9, 2},
		// normalized in [2, 5): nearest whole step
		{2.3, 2},
		{3.7, 4},
		{260, 300},
		{44, 40},
		// normalized >= 5: up to next multiple of five
		{5.1, 10},
		{7, 10},
		{62, 100},
		{500, 500},
		{999, 1000},
		// non-positive passthrough
		{0, 0},
		{-3, -3},
	}

	for _, tt := range tests {
		if got := SmartRound(tt.input); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("SmartRound(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSmartRound_Idempotent(t *testing.T) {
	inputs := []float64{1.2, 17, 260, 62, 500, 12345}
	for _, v := range inputs {
		once := SmartRound(v)
		twice := SmartRound(once)
		if once != twice {
			t.Errorf("SmartRound not idempotent at %v: %v then %v", v, once, twice)
		}
	}
}

func TestDefaultRanges(t *testing.T) {
	ranges := DefaultRanges()
	if len(ranges) != 4 {
		t.Fatalf("expected 4 fallback ranges, got %d", len(ranges))
	}

	wantLabels := []string{"0-500", "501-1000", "1001-2000", "2000+"}
	for i, want := range wantLabels {
		if ranges[i].Label != want {
			t.Errorf("range %d label = %q, want %q", i, ranges[i].Label, want)
		}
	}
	if !ranges[3].Unbounded() {
		t.Error("terminal fallback range should be unbounded")
	}
}

func TestComputeRanges_Fallback(t *testing.T) {
	tests := []struct {
		name string
		txs  []models.Transaction
	}{
		{"empty population", nil},
		{"all zero revenue", txsFromRevenues(0, 0, 0)},
		{"all unparseable", []models.Transaction{
			{Revenue: models.TextAmount("n/a")},
			{Revenue: models.TextAmount("")},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranges := ComputeRanges(tt.txs, numfmt.EUR)
			if len(ranges) != 4 {
				t.Fatalf("expected fallback partition, got %d ranges", len(ranges))
			}
			if ranges[0].Label != "0-500" || ranges[3].Label != "2000+" {
				t.Errorf("unexpected fallback labels: %q ... %q", ranges[0].Label, ranges[3].Label)
			}
		})
	}
}

func TestComputeRanges_Adaptive(t *testing.T) {
	revenues := make([]float64, 0, 100)
	for i := 1; i <= 100; i++ {
		revenues = append(revenues, float64(i)*10)
	}
	ranges := ComputeRanges(txsFromRevenues(revenues...), numfmt.EUR)

	if len(ranges) != 5 {
		t.Fatalf("expected 5 adaptive ranges, got %d", len(ranges))
	}

	// Partition starts at zero, stays contiguous, ends unbounded.
	if ranges[0].Min != 0 {
		t.Errorf("first range starts at %v, want 0", ranges[0].Min)
	}
	for i := 1; i < len(ranges); i++ {
		if ranges[i].Min != ranges[i-1].Max {
			t.Errorf("gap between range %d and %d: %v != %v", i-1, i, ranges[i-1].Max, ranges[i].Min)
		}
	}
	if !ranges[4].Unbounded() {
		t.Error("terminal range should be unbounded")
	}

	// Boundaries are smart-rounded percentiles and non-decreasing.
	for i, r := range ranges[:4] {
		if r.Max != SmartRound(r.Max) {
			t.Errorf("range %d max %v is not smart-rounded", i, r.Max)
		}
		if r.Max < r.Min {
			t.Errorf("range %d inverted: [%v, %v]", i, r.Min, r.Max)
		}
	}

	// Labels come from the locale formatter; assert structure, not exact
	// grouping characters.
	for i, r := range ranges {
		if r.Label == "" {
			t.Errorf("range %d has an empty label", i)
		}
		if !strings.Contains(r.Label, "€") {
			t.Errorf("range %d label %q missing currency symbol", i, r.Label)
		}
	}
	if !strings.HasSuffix(ranges[4].Label, "+") {
		t.Errorf("terminal label %q should end with +", ranges[4].Label)
	}
}

// Heavily skewed populations can round adjacent percentiles to the same
// boundary; the empty ranges are kept, not collapsed.
func TestComputeRanges_SkewedPopulation(t *testing.T) {
	revenues := []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 5000}
	ranges := ComputeRanges(txsFromRevenues(revenues...), numfmt.EUR)

	if len(ranges) != 5 {
		t.Fatalf("expected 5 ranges even when boundaries coincide, got %d", len(ranges))
	}
	for i := 1; i < len(ranges); i++ {
		if ranges[i].Min != ranges[i-1].Max {
			t.Errorf("partition must stay contiguous, gap at %d", i)
		}
	}
}

// Negative and zero revenues never contribute to percentile boundaries.
func TestComputeRanges_IgnoresNonPositive(t *testing.T) {
	with := ComputeRanges(txsFromRevenues(-50, 0, 100, 200, 300, 400), numfmt.EUR)
	without := ComputeRanges(txsFromRevenues(100, 200, 300, 400), numfmt.EUR)

	if len(with) != len(without) {
		t.Fatalf("range counts differ: %d vs %d", len(with), len(without))
	}
	for i := range with {
		if with[i].Min != without[i].Min || with[i].Max != without[i].Max {
			t.Errorf("range %d differs: [%v,%v] vs [%v,%v]",
				i, with[i].Min, with[i].Max, without[i].Min, without[i].Max)
		}
	}
}
