package julia

import "context"

// Classifier decides whether one sample point belongs to the set.
type Classifier interface {
	Classify(x, y float32) Verdict
}

// FieldEvaluator produces the complete pixel buffer of a domain.
type FieldEvaluator interface {
	Evaluate(ctx context.Context, d Domain) (Buffer, error)
}

var (
	_ Classifier     = Params{}
	_ FieldEvaluator = (*Evaluator)(nil)
)
