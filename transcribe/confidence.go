package transcribe

import "math"

// Confidence converts per-segment average log probabilities into a single
// [0, 1] score: the arithmetic mean of exp(avg_logprob) over all segments,
// clamped to the unit interval. Log probability is not literally a
// probability, so this is a heuristic quality signal, not a calibrated
// metric. No segments means no evidence of speech: confidence 0.
func Confidence(logprobs []float64) float64 {
	if len(logprobs) == 0 {
		return 0
	}

	var sum float64
	for _, lp := range logprobs {
		c := math.Exp(lp)
		if math.IsNaN(c) || c < 0 {
			c = 0
		}
		if c > 1 {
			c = 1
		}
		sum += c
	}

	return sum / float64(len(logprobs))
}
