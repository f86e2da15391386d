package lipsync

import (
	"fmt"
	"math"
	"strings"
)

// EaseFunc maps the progress through a segment to an interpolation factor.
// Implementations return 0 at 0 and 1 at 1 and never decrease in between.
// Inputs slightly above 1 occur for one frame before a segment advances.
type EaseFunc func(t float64) float64

var expNorm = 1 - math.Exp(-2)

// ExponentialEase rises quickly and settles into the target pose:
// (1 - e^-2t) / (1 - e^-2).
func ExponentialEase(t float64) float64 {
	return (1 - math.Exp(-2*t)) / expNorm
}

// LinearEase returns t unchanged.
func LinearEase(t float64) float64 {
	return t
}

// Easing names accepted by EasingByName.
const (
	EasingExponential = "exponential"
	EasingLinear      = "linear"
)

// EasingByName resolves a configured easing name. An empty name selects the default.
func EasingByName(name string) (EaseFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EasingExponential, "exp":
		return ExponentialEase, nil
	case EasingLinear:
		return LinearEase, nil
	default:
		return nil, fmt.Errorf("unknown easing %q", name)
	}
}
