package data

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Smallest value the quantile function returns, in milliseconds
const minQuantileMs = 1.0

// The fitted Pareto (Type I) distribution
type Pareto struct {
	// Scale, in milliseconds
	Xm uint32
	// Shape
	Alpha float64
}

// Alpha estimate output alongside the counts it was built from
type AlphaEstimate struct {
	Alpha          float64
	Samples        int
	AbandonedCount int
}

// EstimateAlpha is the maximum likelihood estimator of the Pareto shape for a
// given Xm. Samples below Xm are counted as Xm, which makes them a little more
// Pareto-like; abandoned samples are left out of the sum.
//
// The division is done as a subtraction outside the log to avoid the
// precision loss of logs of small ratios.
func EstimateAlpha(r *Ring, xm uint32) (AlphaEstimate, error) {
	if xm == 0 {
		return AlphaEstimate{}, NewDataError(ErrNoValidData, "cannot estimate alpha with Xm of 0")
	}

	lnXm := math.Log(float64(xm))

	var a float64
	var n, abandoned int
	r.Each(func(s Sample) {
		if s.IsAbandoned() {
			abandoned++
			return
		}

		ms, _ := s.Millis()
		if ms < xm {
			a += lnXm
		} else {
			a += math.Log(float64(ms))
		}
		n++
	})

	a -= float64(n) * lnXm
	alpha := float64(n) / a

	est := AlphaEstimate{Alpha: alpha, Samples: n, AbandonedCount: abandoned}
	if math.IsNaN(alpha) || alpha <= 0 {
		return est, NewDataError(ErrInvalidAlpha, "alpha %f from %d samples", alpha, n)
	}

	return est, nil
}

// Fit estimates Xm and then alpha from the ring
func Fit(r *Ring, binWidth uint32, numModes int) (Pareto, AlphaEstimate, error) {
	xm, err := EstimateXm(r, binWidth, numModes)
	if err != nil {
		return Pareto{}, AlphaEstimate{}, err
	}

	est, err := EstimateAlpha(r, xm)
	if err != nil {
		return Pareto{}, est, err
	}

	return Pareto{Xm: xm, Alpha: est.Alpha}, est, nil
}

func (p Pareto) dist() distuv.Pareto {
	return distuv.Pareto{Xm: float64(p.Xm), Alpha: p.Alpha}
}

// Quantile is the Pareto quantile function: the x for which CDF(x) == q.
// The result is in milliseconds, clamped to [1, INT32_MAX].
func (p Pareto) Quantile(q float64) (float64, error) {
	if !(q > 0 && q < 1) {
		return 0, NewDataError(ErrInvalidQuantile, "quantile %f", q)
	}
	if p.Xm == 0 {
		return 0, NewDataError(ErrNoValidData, "quantile of a curve with Xm of 0")
	}

	var ret float64
	switch {
	case math.IsInf(p.Alpha, 1):
		// All the mass sits at Xm
		ret = float64(p.Xm)
	case !(p.Alpha > 0):
		ret = math.MaxInt32
	default:
		ret = p.dist().Quantile(q)
	}

	if math.IsNaN(ret) || ret > math.MaxInt32 {
		ret = math.MaxInt32
	}
	if ret < minQuantileMs {
		ret = minQuantileMs
	}

	return ret, nil
}

// CDF returns the probability mass at or below x milliseconds
func (p Pareto) CDF(x float64) float64 {
	if p.Xm == 0 || x <= float64(p.Xm) {
		return 0
	}
	return p.dist().CDF(x)
}
