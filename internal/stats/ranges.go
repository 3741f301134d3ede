package stats

import (
	"math"
	"slices"

	"ab-analyzer/internal/models"
	"ab-analyzer/internal/numfmt"
)

// DefaultRanges is the fixed partition used when the transaction population
// carries no positive revenue. Labels keep plain numerals so the fallback
// reads the same under any currency.
func DefaultRanges() []models.Range {
	return []models.Range{
		{Min: 0, Max: 500, Label: "0-500"},
		{Min: 500, Max: 1000, Label: "501-1000"},
		{Min: 1000, Max: 2000, Label: "1001-2000"},
		{Min: 2000, Max: math.Inf(1), Label: "2000+"},
	}
}

// SmartRound rounds v to a human-friendly boundary within its own order of
// magnitude: below twice the magnitude to the nearest half step, below five
// times to the nearest whole step, and above that up to the next multiple
// of five. Idempotent, and never changes the order of magnitude by more
// than one rounding step.
func SmartRound(v float64) float64 {
	if v <= 0 {
		return v
	}
	magnitude := math.Pow(10, math.Floor(math.Log10(v)))
	normalized := v / magnitude

	var rounded float64
	switch {
	case normalized < 2:
		rounded = math.Round(normalized*2) / 2
	case normalized < 5:
		rounded = math.Round(normalized)
	default:
		rounded = math.Ceil(normalized/5) * 5
	}
	return rounded * magnitude
}

// ComputeRanges derives five contiguous revenue ranges from the population:
// boundaries at the smart-rounded 25th, 50th, 75th and 90th percentiles of
// the strictly positive normalized revenues, with an unbounded terminal
// range. A degenerate population gets the fixed four-range fallback.
// Adjacent percentiles may round to the same boundary on skewed
// distributions; the resulting empty ranges are kept as-is.
func ComputeRanges(txs []models.Transaction, cur numfmt.Currency) []models.Range {
	revenues := make([]float64, 0, len(txs))
	for _, tx := range txs {
		if v, ok := numfmt.NormalizeAmount(tx.Revenue, cur.Style()); ok && v > 0 {
			revenues = append(revenues, v)
		}
	}
	if len(revenues) == 0 {
		return DefaultRanges()
	}
	slices.Sort(revenues)

	r25 := SmartRound(nearestRank(revenues, 25))
	r50 := SmartRound(nearestRank(revenues, 50))
	r75 := SmartRound(nearestRank(revenues, 75))
	r90 := SmartRound(nearestRank(revenues, 90))

	bounded := func(min, max float64) models.Range {
		return models.Range{
			Min:   min,
			Max:   max,
			Label: numfmt.FormatAmount(min, cur) + " - " + numfmt.FormatAmount(max, cur),
		}
	}

	return []models.Range{
		bounded(0, r25),
		bounded(r25, r50),
		bounded(r50, r75),
		bounded(r75, r90),
		{Min: r90, Max: math.Inf(1), Label: numfmt.FormatAmount(r90, cur) + "+"},
	}
}
