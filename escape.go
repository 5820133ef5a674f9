package julia

// Verdict is the binary classification of one sample point.
type Verdict uint8

const (
	Escaped Verdict = 0
	Bounded Verdict = 1
)

func (v Verdict) String() string {
	if v == Bounded {
		return "bounded"
	}
	return "escaped"
}

// Params fixes the recurrence z <- z^2 + c and its stopping rule.
//
// Threshold is compared against the squared modulus |z|^2, not |z|.
// With the default of 1000 a point is rejected once |z| passes ~31.6.
type Params struct {
	Cr, Ci    float32
	MaxIter   int
	Threshold float32
}

// DefaultParams is c = -0.8+0.156i, 200 steps, |z|^2 > 1000.
var DefaultParams = Params{
	Cr:        -0.8,
	Ci:        0.156,
	MaxIter:   200,
	Threshold: 1000,
}

// Escape iterates from z0 = x+yi and returns the 1-based step at which
// |z|^2 first exceeded the threshold. When the orbit stays inside for
// MaxIter steps it returns (MaxIter, false).
func (p Params) Escape(x, y float32) (step int, escaped bool) {
	ar, ai := x, y
	for k := 0; k < p.MaxIter; k++ {
		// each product is rounded on its own, so results do not depend on FMA
		t := float32(ar*ar) - float32(ai*ai) + p.Cr
		ai = float32(ar*ai) + float32(ai*ar) + p.Ci
		ar = t

		if p.Threshold < float32(ar*ar)+float32(ai*ai) {
			return k + 1, true
		}
	}
	return p.MaxIter, false
}

// Classify returns Bounded for points that never escape within MaxIter steps.
func (p Params) Classify(x, y float32) Verdict {
	if _, escaped := p.Escape(x, y); escaped {
		return Escaped
	}
	return Bounded
}
