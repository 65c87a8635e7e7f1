package metric

import (
	"math"
	"slices"

	"github.com/raykavin/walkforward/pkg/core"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// Aggregate summarizes per-fold metrics by mean, median and sample standard
// deviation. NaN values are skipped; a metric with no defined value stays NaN.
func Aggregate(folds []core.Metrics) core.Aggregate {
	var aggregate core.Aggregate

	for _, name := range core.MetricNames() {
		values := lo.FilterMap(folds, func(m core.Metrics, _ int) (float64, bool) {
			v := m.Get(name)
			return v, !math.IsNaN(v)
		})

		aggregate.Mean = aggregate.Mean.Set(name, Mean(values))
		aggregate.Median = aggregate.Median.Set(name, Median(values))
		aggregate.StdDev = aggregate.StdDev.Set(name, StdDev(values))
	}

	return aggregate
}

// Mean returns the arithmetic mean, NaN for no values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}

// Median returns the middle value, averaging the two middle values of an even count
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// StdDev returns the sample standard deviation, NaN for fewer than two values
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	return stat.StdDev(values, nil)
}
