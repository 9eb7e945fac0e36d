package mint

import (
	"errors"

	"mintrunner/internal/chain"
)

// Category is what a failed attempt means for the batch.
type Category int

const (
	CategoryNone Category = iota
	CategoryQuotaExhausted
	CategoryTransient
)

func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategoryQuotaExhausted:
		return "quota_exhausted"
	default:
		return "transient"
	}
}

// Classify reads the normalized kind off a chain.CallError. Anything that is not a
// quota exhaustion, including errors that never reached the chain, is transient.
func Classify(err error) Category {
	if err == nil {
		return CategoryNone
	}
	var ce *chain.CallError
	if errors.As(err, &ce) && ce.Kind == chain.KindQuotaExhausted {
		return CategoryQuotaExhausted
	}
	return CategoryTransient
}
