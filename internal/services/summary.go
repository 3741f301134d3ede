package services

import (
	"slices"

	"ab-analyzer/internal/models"
	"ab-analyzer/internal/numfmt"
	"ab-analyzer/internal/stats"
)

// groupedTransaction collapses the lines of one purchase: revenue and
// quantity summed, the priciest line kept as the main product.
type groupedTransaction struct {
	id          string
	revenue     float64
	quantity    int
	mainProduct string
	mainRevenue float64
	categories  []string
}

// summarize builds the per-variation headline metrics: engagement counts
// from the overall export's ((Total)) rows, transaction metrics and
// extremes from the (filtered) transaction lines.
func summarize(overall []models.OverallRecord, groups map[string][]models.Transaction, cur numfmt.Currency) map[string]models.VariationSummary {
	summaries := make(map[string]models.VariationSummary)

	for key, rec := range totalsByVariation(overall) {
		users, _ := numfmt.NormalizeAmount(rec.Users, numfmt.DotDecimal)
		addToCarts, _ := numfmt.NormalizeAmount(rec.UserAddToCarts, numfmt.DotDecimal)

		txs := groups[key]
		grouped := groupTransactions(txs, cur.Style())

		var revenue float64
		for _, g := range grouped {
			revenue += g.revenue
		}

		s := models.VariationSummary{
			Users:               users,
			AddToCarts:          addToCarts,
			Transactions:        len(grouped),
			Revenue:             revenue,
			RevenueDistribution: distribution(txs, cur.Style()),
		}
		if users > 0 {
			s.AddToCartRate = 100 * addToCarts / users
			s.TransactionRate = 100 * float64(len(grouped)) / users
			s.RPU = revenue / users
		}
		if len(grouped) > 0 {
			s.AOV = revenue / float64(len(grouped))
			s.HighestTransaction = extreme(grouped, true)
			s.LowestTransaction = extreme(grouped, false)
		}

		summaries[key] = s
	}

	return summaries
}

// groupTransactions collapses rows by transaction id, sorted by id so tied
// extremes resolve deterministically.
func groupTransactions(txs []models.Transaction, style numfmt.DecimalStyle) []groupedTransaction {
	byID := make(map[string]*groupedTransaction)
	order := make([]string, 0)

	for _, tx := range txs {
		v, _ := numfmt.NormalizeAmount(tx.Revenue, style)
		g, ok := byID[tx.TransactionID]
		if !ok {
			g = &groupedTransaction{id: tx.TransactionID}
			byID[tx.TransactionID] = g
			order = append(order, tx.TransactionID)
		}
		g.revenue += v
		g.quantity += tx.Quantity
		if name := productName(tx); name != "" && (g.mainProduct == "" || v > g.mainRevenue) {
			g.mainProduct = name
			g.mainRevenue = v
		}
		if tx.ItemCategory2 != "" && !slices.Contains(g.categories, tx.ItemCategory2) {
			g.categories = append(g.categories, tx.ItemCategory2)
		}
	}

	slices.Sort(order)
	grouped := make([]groupedTransaction, 0, len(order))
	for _, id := range order {
		grouped = append(grouped, *byID[id])
	}
	return grouped
}

func productName(tx models.Transaction) string {
	if tx.ItemName != "" {
		return tx.ItemName
	}
	return tx.MainProduct
}

func extreme(grouped []groupedTransaction, highest bool) *models.TransactionExtreme {
	best := grouped[0]
	for _, g := range grouped[1:] {
		if highest && g.revenue > best.revenue {
			best = g
		}
		if !highest && g.revenue < best.revenue {
			best = g
		}
	}

	name := best.mainProduct
	if name == "" {
		name = "N/A"
	}
	return &models.TransactionExtreme{
		TransactionID:  best.id,
		Revenue:        best.revenue,
		Quantity:       best.quantity,
		MainProduct:    name,
		ItemCategories: slices.Clone(best.categories),
	}
}

// distribution buckets the raw transaction lines over the fixed fallback
// partition, line-level like the table card expects.
func distribution(txs []models.Transaction, style numfmt.DecimalStyle) map[string]models.RangeStats {
	ranges := stats.DefaultRanges()
	out := make(map[string]models.RangeStats, len(ranges))

	for _, r := range ranges {
		rs := models.RangeStats{Categories: make(map[string]int)}
		for _, tx := range txs {
			v, _ := numfmt.NormalizeAmount(tx.Revenue, style)
			if !r.Contains(v) {
				continue
			}
			rs.Count++
			rs.TotalRevenue += v
			if tx.ItemCategory2 != "" {
				rs.Categories[tx.ItemCategory2]++
			}
		}
		if rs.Count > 0 {
			rs.AOV = rs.TotalRevenue / float64(rs.Count)
		}
		out[r.Label] = rs
	}

	return out
}
