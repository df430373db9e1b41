// Package analytics derives read-side projections from the sales ledger.
// Everything here is a pure function recomputed on demand; nothing is
// cached and nothing mutates state.
package analytics

import (
	"sort"
	"time"

	"gidipos/m/domain"
)

// RevenuePoint is one calendar-day bucket of completed sales.
type RevenuePoint struct {
	Label   string  `json:"label"`
	Revenue float64 `json:"revenue"`
	Count   int     `json:"count"`
}

// RevenueByDay groups sales into calendar-day buckets labeled like "Mon 2",
// ordered by first encounter, and returns the most recent seven buckets
// that contain at least one sale. Days without sales do not produce
// buckets.
func RevenueByDay(sales []domain.Sale) []RevenuePoint {
	var order []string
	byLabel := make(map[string]*RevenuePoint)
	for _, sale := range sales {
		label := time.UnixMilli(sale.Timestamp).Format("Mon 2")
		point, ok := byLabel[label]
		if !ok {
			point = &RevenuePoint{Label: label}
			byLabel[label] = point
			order = append(order, label)
		}
		point.Revenue += sale.TotalAmount
		point.Count++
	}
	if len(order) > 7 {
		order = order[len(order)-7:]
	}
	out := make([]RevenuePoint, 0, len(order))
	for _, label := range order {
		out = append(out, *byLabel[label])
	}
	return out
}

// ProductRank is a product's total units sold across the ledger.
type ProductRank struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// TopProducts sums sold quantity per product name across all sales and
// returns the top five, ties broken by first encounter.
func TopProducts(sales []domain.Sale) []ProductRank {
	var order []string
	totals := make(map[string]int)
	for _, sale := range sales {
		for _, item := range sale.Items {
			if _, ok := totals[item.Name]; !ok {
				order = append(order, item.Name)
			}
			totals[item.Name] += item.CartQuantity
		}
	}
	ranked := make([]ProductRank, 0, len(order))
	for _, name := range order {
		ranked = append(ranked, ProductRank{Name: name, Quantity: totals[name]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Quantity > ranked[j].Quantity
	})
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}
	return ranked
}

// PaymentMethodCounts returns the number of sales per payment method.
func PaymentMethodCounts(sales []domain.Sale) map[domain.PaymentMethod]int {
	counts := make(map[domain.PaymentMethod]int)
	for _, sale := range sales {
		counts[sale.PaymentMethod]++
	}
	return counts
}

// DashboardSummary is the at-a-glance view of the pharmacy's state.
type DashboardSummary struct {
	TotalRevenue  float64       `json:"total_revenue"`
	TotalProducts int           `json:"total_products"`
	LowStockCount int           `json:"low_stock_count"`
	ExpiredCount  int           `json:"expired_count"`
	ExpiringCount int           `json:"expiring_count"`
	RecentSales   []domain.Sale `json:"recent_sales"`
}

// Summarize computes the dashboard numbers from inventory and ledger.
// Recent sales are the last four, newest first.
func Summarize(inventory []domain.Drug, sales []domain.Sale, thresholdDays int, now time.Time) DashboardSummary {
	summary := DashboardSummary{
		TotalProducts: len(inventory),
		RecentSales:   []domain.Sale{},
	}
	for _, sale := range sales {
		summary.TotalRevenue += sale.TotalAmount
	}
	for _, d := range inventory {
		if d.LowStock() {
			summary.LowStockCount++
		}
		switch d.ExpiryStatusOn(now, thresholdDays) {
		case domain.ExpiryExpired:
			summary.ExpiredCount++
		case domain.ExpirySoon:
			summary.ExpiringCount++
		}
	}
	for i := len(sales) - 1; i >= 0 && len(summary.RecentSales) < 4; i-- {
		summary.RecentSales = append(summary.RecentSales, sales[i])
	}
	return summary
}
