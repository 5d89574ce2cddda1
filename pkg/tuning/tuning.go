package tuning

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/satmihir/cbt/pkg/data"
)

const (
	// Upper quantile bound used when drawing synthetic samples so the tail
	// stays finite
	DefaultSampleQuantileHigh = 0.99
)

// Draws a build time from the fitted curve with its quantile uniformly
// picked in [qLo, qHi). rnd must return values in [0, 1).
//
// This is what a network looks like to the estimator if it really is
// Pareto; the CLI simulator and the tests use it to feed the tracker.
func GenerateSample(p data.Pareto, qLo, qHi float64, rnd func() float64) (uint32, error) {
	if qLo < 0 || qHi > 1 || qLo >= qHi {
		return 0, data.NewDataError(data.ErrInvalidQuantile, "sample range [%f, %f)", qLo, qHi)
	}

	// Keep the draw strictly below qHi
	qHi -= 1.0 / math.MaxInt32
	u := qLo + (qHi-qLo)*rnd()
	if u <= 0 {
		// The quantile function is undefined at 0; the smallest sample is Xm
		return p.Xm, nil
	}

	if p.Xm == 0 || !(p.Alpha > 0) {
		return 0, data.NewDataError(data.ErrInvalidAlpha, "cannot sample Xm %d alpha %f", p.Xm, p.Alpha)
	}

	ms := distuv.Pareto{Xm: float64(p.Xm), Alpha: p.Alpha}.Quantile(u)
	if math.IsNaN(ms) || ms > math.MaxInt32 {
		ms = math.MaxInt32
	}
	return uint32(math.Round(ms)), nil
}

// GenerateSamples draws n samples with GenerateSample
func GenerateSamples(p data.Pareto, n int, qLo, qHi float64, rnd func() float64) ([]uint32, error) {
	out := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		ms, err := GenerateSample(p, qLo, qHi, rnd)
		if err != nil {
			return nil, err
		}
		out = append(out, ms)
	}
	return out, nil
}

// Solves the quantile function for alpha so that Q(quantile) == timeoutMs:
//
// Q(u) = Xm/((1-u)^(1/a))
// a = ln(1-u)/(ln(Xm)-ln(timeout))
//
// The timeout must be above Xm for the curve to exist.
func InitialAlpha(xm uint32, quantile, timeoutMs float64) (float64, error) {
	if !(quantile > 0 && quantile < 1) {
		return 0, data.NewDataError(data.ErrInvalidQuantile, "quantile %f", quantile)
	}
	if xm == 0 || timeoutMs <= float64(xm) {
		return 0, data.NewDataError(data.ErrInvalidAlpha, "timeout %fms must exceed Xm %dms", timeoutMs, xm)
	}

	return math.Log(1.0-quantile) / (math.Log(float64(xm)) - math.Log(timeoutMs)), nil
}

// Clamps the network change threshold to the number of recent circuits we
// keep. A threshold above the capacity could never fire.
func ClampMaxTimeouts(maxTimeouts, numRecent int) int {
	if maxTimeouts > numRecent {
		return numRecent
	}
	return maxTimeouts
}

// CloseQuantile returns the close quantile raised to at least the timeout
// quantile, both as fractions
func CloseQuantile(closePercent, cutoffPercent int32) float64 {
	if closePercent < cutoffPercent {
		closePercent = cutoffPercent
	}
	return float64(closePercent) / 100.0
}
