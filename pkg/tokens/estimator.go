// Package tokens estimates the token cost of rendered prompt text.
// The budgeter only talks to the Estimator interface so a real tokenizer
// can replace the character heuristic per model family.
package tokens

import "unicode/utf8"

// Estimator turns text into an approximate token count.
type Estimator interface {
	Estimate(text string) int
}

// CharEstimator uses the ~4 characters per token heuristic.
// Good enough for budget comparison. Not billing-accurate.
type CharEstimator struct{}

// Estimate returns ceil(characters / 4).
func (CharEstimator) Estimate(text string) int {
	return EstimateTokens(text)
}

// EstimateTokens counts characters (runes, not bytes) and rounds up.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	// Round up: (n + 3) / 4
	return (n + 3) / 4
}

// EstimatorFunc adapts a plain function to Estimator.
type EstimatorFunc func(text string) int

// Estimate calls f(text).
func (f EstimatorFunc) Estimate(text string) int {
	return f(text)
}

// Default is the estimator used when none is configured.
var Default Estimator = CharEstimator{}
