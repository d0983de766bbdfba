// Package templates holds the templ components for the HTML pages.
package templates

import (
	"sort"

	"github.com/USFAkbari/Excel-Tools/internal/core"
)

// sortedNames returns the aggregated column names in lexical order.
func sortedNames(aggs core.Aggregations) []string {
	names := make([]string, 0, len(aggs))
	for name := range aggs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// totals lists Sum, Mean, Min and Max in table order.
func totals(a *core.ColumnAggregation) []float64 {
	return []float64{a.Sum, a.Mean, a.Min, a.Max}
}
