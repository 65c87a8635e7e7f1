package metric

import (
	"math/rand"
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// BootstrapInterval represents the confidence interval calculated by the bootstrap method.
type BootstrapInterval struct {
	Lower  float64 // Lower bound of the confidence interval
	Upper  float64 // Upper bound of the confidence interval
	StdDev float64 // Standard deviation of the bootstrap samples
	Mean   float64 // Mean of the bootstrap samples
}

// Bootstrap calculates the confidence interval of a statistic by resampling.
// Parameters:
//   - values: The original sample data
//   - measure: The statistic applied to each resample
//   - samples: Number of resamples
//   - confidence: Confidence level (e.g., 0.95 for 95% confidence)
//   - rng: Source of the resampling; nil uses the global source
func Bootstrap(values []float64, measure func([]float64) float64, samples int,
	confidence float64, rng *rand.Rand) BootstrapInterval {

	if len(values) == 0 || samples <= 0 {
		return BootstrapInterval{}
	}

	data := generateBootstrapSamples(values, measure, samples, rng)

	tail := 1 - confidence
	sort.Float64s(data)

	mean, stdDev := stat.MeanStdDev(data, nil)
	upper := stat.Quantile(1-tail/2, stat.LinInterp, data, nil)
	lower := stat.Quantile(tail/2, stat.LinInterp, data, nil)

	return BootstrapInterval{
		Lower:  lower,
		Upper:  upper,
		StdDev: stdDev,
		Mean:   mean,
	}
}

func generateBootstrapSamples(values []float64, measure func([]float64) float64, samples int, rng *rand.Rand) []float64 {
	data := make([]float64, 0, samples)
	pick := func() float64 { return lo.Sample(values) }
	if rng != nil {
		pick = func() float64 { return values[rng.Intn(len(values))] }
	}

	for range samples {
		resample := make([]float64, len(values))
		for j := range resample {
			resample[j] = pick()
		}
		data = append(data, measure(resample))
	}

	return data
}
