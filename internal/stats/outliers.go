package stats

import (
	"math"
	"slices"

	"ab-analyzer/internal/models"
	"ab-analyzer/internal/numfmt"
)

// nearestRank returns the p-th percentile of an ascending slice using the
// nearest-rank method: the value at 1-based rank ceil(p/100 * n).
func nearestRank(sorted []float64, p float64) float64 {
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// DetectOutliers computes the interquartile-range fences for one
// variation's transactions and flags every transaction whose normalized
// revenue falls strictly outside them. Boundary values are never outliers.
// The caller's slice order is preserved; sorting happens on a copy.
func DetectOutliers(txs []models.Transaction, style numfmt.DecimalStyle) models.OutlierSummary {
	if len(txs) == 0 {
		return models.OutlierSummary{Outliers: []models.Transaction{}}
	}

	revenues := make([]float64, len(txs))
	for i, tx := range txs {
		revenues[i], _ = numfmt.NormalizeAmount(tx.Revenue, style)
	}

	sorted := slices.Clone(revenues)
	slices.Sort(sorted)

	q1 := nearestRank(sorted, 25)
	q3 := nearestRank(sorted, 75)
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	outliers := make([]models.Transaction, 0)
	for i, tx := range txs {
		if revenues[i] < lower || revenues[i] > upper {
			outliers = append(outliers, tx)
		}
	}

	return models.OutlierSummary{
		Q1:         q1,
		Q3:         q3,
		LowerBound: lower,
		UpperBound: upper,
		Outliers:   outliers,
		Percentage: 100 * float64(len(outliers)) / float64(len(txs)),
	}
}
