package metrics

import (
	"math"
	"sort"
	"time"
)

// Returns converts a value series into simple per-period returns. Periods
// starting from a non-positive value are skipped.
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 {
			continue
		}
		out = append(out, values[i]/values[i-1]-1)
	}
	return out
}

func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev is the sample standard deviation, 0 for fewer than two values.
func StdDev(xs []float64) float64 {
	return math.Sqrt(Covariance(xs, xs))
}

// Covariance is the sample covariance of the overlapping tails of a and b,
// 0 for fewer than two pairs.
func Covariance(a, b []float64) float64 {
	a, b = alignTails(a, b)
	n := len(a)
	if n < 2 {
		return 0
	}
	ma, mb := Mean(a), Mean(b)
	var sum float64
	for i := range a {
		sum += (a[i] - ma) * (b[i] - mb)
	}
	return sum / float64(n-1)
}

// Correlation is Pearson's r over the overlapping tails of a and b, 0 when
// either side has no variance.
func Correlation(a, b []float64) float64 {
	a, b = alignTails(a, b)
	sa, sb := StdDev(a), StdDev(b)
	if sa == 0 || sb == 0 {
		return 0
	}
	r := Covariance(a, b) / (sa * sb)
	return math.Max(-1, math.Min(1, r))
}

func alignTails(a, b []float64) ([]float64, []float64) {
	n := min(len(a), len(b))
	return a[len(a)-n:], b[len(b)-n:]
}

// Quantile returns the q-quantile (0..1) of xs using linear interpolation
// between closest ranks. xs is not modified.
func Quantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	if q <= 0 {
		return s[0]
	}
	if q >= 1 {
		return s[len(s)-1]
	}
	pos := q * float64(len(s)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return s[lo] + (s[hi]-s[lo])*frac
}

// Drawdown describes declines from a running peak, in percent.
// Duration counts observations from the peak to the deepest trough, Since
// counts observations from the latest peak to the last value.
type Drawdown struct {
	Current  float64
	Pct      float64
	Duration int
	Since    int
}

// DrawdownOf scans values oldest first. baseline, when positive, seeds the
// running peak. A value equal to the peak counts as a new peak.
func DrawdownOf(values []float64, baseline float64) Drawdown {
	var dd Drawdown
	peak := baseline
	peakIdx := -1
	for i, v := range values {
		if v >= peak {
			peak = v
			peakIdx = i
		}
		cur := drawdownPct(peak, v)
		if cur > dd.Pct {
			dd.Pct = cur
			dd.Duration = i - peakIdx
		}
		dd.Current = cur
		dd.Since = i - peakIdx
	}
	return dd
}

// MaxDrawdown runs DrawdownOf over the equity values of curve.
func MaxDrawdown(curve []EquityPoint) Drawdown {
	vals := make([]float64, len(curve))
	for i, pt := range curve {
		vals[i] = pt.Equity
	}
	return DrawdownOf(vals, 0)
}

func drawdownPct(peak, v float64) float64 {
	if peak <= 0 {
		return 0
	}
	pct := (peak - v) / peak * 100
	return math.Max(0, math.Min(100, pct))
}

// CurveBuilder appends equity points, tracking the running peak.
type CurveBuilder struct {
	peak   float64
	points []EquityPoint
}

func (b *CurveBuilder) Add(t time.Time, equity float64) EquityPoint {
	if equity > b.peak {
		b.peak = equity
	}
	pt := EquityPoint{Time: t, Equity: equity, DrawdownPct: drawdownPct(b.peak, equity)}
	b.points = append(b.points, pt)
	return pt
}

// Points returns the curve built so far. The builder keeps ownership of the
// backing array; callers that keep adding should copy.
func (b *CurveBuilder) Points() []EquityPoint {
	return b.points
}
