package stats

import (
	"math"
	"testing"

	"ab-analyzer/internal/models"
	"ab-analyzer/internal/numfmt"
)

func txsFromRevenues(revenues ...float64) []models.Transaction {
	txs := make([]models.Transaction, len(revenues))
	for i, r := range revenues {
		txs[i] = models.Transaction{
			TransactionID: "T" + string(rune('A'+i)),
			Revenue:       models.NumberAmount(r),
		}
	}
	return txs
}

func TestDetectOutliers(t *testing.T) {
	txs := txsFromRevenues(10, 12, 14, 15, 16, 18, 20, 100)
	summary := DetectOutliers(txs, numfmt.DotDecimal)

	if summary.Q1 != 12 {
		t.Errorf("Q1 = %v, want 12", summary.Q1)
	}
	if summary.Q3 != 18 {
		t.Errorf("Q3 = %v, want 18", summary.Q3)
	}
	if summary.LowerBound != 3 {
		t.Errorf("lower bound = %v, want 3", summary.LowerBound)
	}
	if summary.UpperBound != 27 {
		t.Errorf("upper bound = %v, want 27", summary.UpperBound)
	}
	if len(summary.Outliers) != 1 {
		t.Fatalf("expected 1 outlier, got %d", len(summary.Outliers))
	}
	if got, _ := numfmt.NormalizeAmount(summary.Outliers[0].Revenue, numfmt.DotDecimal); got != 100 {
		t.Errorf("outlier revenue = %v, want 100", got)
	}
	if summary.Percentage != 12.5 {
		t.Errorf("percentage = %v, want 12.5", summary.Percentage)
	}
}

// Values exactly on a fence are not outliers.
func TestDetectOutliers_BoundaryValues(t *testing.T) {
	txs := txsFromRevenues(10, 12, 14, 15, 16, 18, 20, 27)
	summary := DetectOutliers(txs, numfmt.DotDecimal)

	if summary.UpperBound != 27 {
		t.Fatalf("upper bound = %v, want 27", summary.UpperBound)
	}
	if len(summary.Outliers) != 0 {
		t.Errorf("boundary value flagged as outlier: %+v", summary.Outliers)
	}
}

func TestDetectOutliers_Empty(t *testing.T) {
	summary := DetectOutliers(nil, numfmt.DotDecimal)

	if summary.Outliers == nil {
		t.Error("expected empty slice, not nil")
	}
	if len(summary.Outliers) != 0 || summary.Percentage != 0 {
		t.Errorf("unexpected summary for empty input: %+v", summary)
	}
}

func TestDetectOutliers_SingleTransaction(t *testing.T) {
	summary := DetectOutliers(txsFromRevenues(50), numfmt.DotDecimal)

	if summary.Q1 != 50 || summary.Q3 != 50 {
		t.Errorf("quartiles of a single value should be the value itself, got q1=%v q3=%v", summary.Q1, summary.Q3)
	}
	if len(summary.Outliers) != 0 {
		t.Error("a single transaction can never be an outlier")
	}
}

func TestDetectOutliers_IdenticalValues(t *testing.T) {
	summary := DetectOutliers(txsFromRevenues(25, 25, 25, 25), numfmt.DotDecimal)

	if len(summary.Outliers) != 0 {
		t.Errorf("identical values produced outliers: %+v", summary.Outliers)
	}
	if summary.LowerBound != 25 || summary.UpperBound != 25 {
		t.Errorf("zero-IQR fences should collapse to the value, got [%v, %v]", summary.LowerBound, summary.UpperBound)
	}
}

// Locale-formatted revenue strings normalize before the fences apply.
func TestDetectOutliers_FormattedRevenue(t *testing.T) {
	txs := []models.Transaction{
		{TransactionID: "T1", Revenue: models.TextAmount("10,00")},
		{TransactionID: "T2", Revenue: models.TextAmount("12,00")},
		{TransactionID: "T3", Revenue: models.TextAmount("14,00")},
		{TransactionID: "T4", Revenue: models.TextAmount("15,00")},
		{TransactionID: "T5", Revenue: models.TextAmount("16,00")},
		{TransactionID: "T6", Revenue: models.TextAmount("18,00")},
		{TransactionID: "T7", Revenue: models.TextAmount("20,00")},
		{TransactionID: "T8", Revenue: models.TextAmount("100,00")},
	}
	summary := DetectOutliers(txs, numfmt.CommaDecimal)

	if len(summary.Outliers) != 1 || summary.Outliers[0].TransactionID != "T8" {
		t.Errorf("expected T8 as the only outlier, got %+v", summary.Outliers)
	}
}

func TestNearestRank(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}

	tests := []struct {
		p    float64
		want float64
	}{
		{25, 10},
		{50, 20},
		{75, 30},
		{90, 40},
		{100, 40},
	}

	for _, tt := range tests {
		if got := nearestRank(sorted, tt.p); got != tt.want {
			t.Errorf("nearestRank(p=%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func BenchmarkDetectOutliers(b *testing.B) {
	txs := make([]models.Transaction, 1000)
	for i := range txs {
		txs[i] = models.Transaction{
			TransactionID: "T",
			Revenue:       models.NumberAmount(math.Abs(float64(i*37%997)) + 1),
		}
	}
	b.ResetTimer()
	for b.Loop() {
		DetectOutliers(txs, numfmt.DotDecimal)
	}
}
