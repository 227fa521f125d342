package scoring

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MeanLogProb averages per-token log-probabilities. Empty input scores -Inf.
func MeanLogProb(logProbs []float64) float64 {
	if len(logProbs) == 0 {
		return math.Inf(-1)
	}
	return stat.Mean(logProbs, nil)
}

// Softmax normalises log-space scores into a distribution. If every score is
// -Inf the result is uniform.
func Softmax(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	lse := floats.LogSumExp(scores)
	if math.IsInf(lse, -1) || math.IsNaN(lse) {
		return uniform(len(scores))
	}
	for i, s := range scores {
		out[i] = math.Exp(s - lse)
	}
	return out
}

// InversePerplexity turns perplexities into a distribution proportional to
// 1/ppl. Infinite perplexity gets zero mass; all-infinite input is uniform.
func InversePerplexity(ppl []float64) []float64 {
	out := make([]float64, len(ppl))
	for i, p := range ppl {
		if p > 0 && !math.IsInf(p, 1) && !math.IsNaN(p) {
			out[i] = 1 / p
		}
	}
	sum := floats.Sum(out)
	if sum == 0 || math.IsInf(sum, 1) {
		return uniform(len(ppl))
	}
	floats.Scale(1/sum, out)
	return out
}

func uniform(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1 / float64(n)
	}
	return out
}

// gapDistribution averages every candidate's token scores and softmaxes them.
func gapDistribution(tokenScores [][]float64) []float64 {
	means := make([]float64, len(tokenScores))
	for c, lps := range tokenScores {
		means[c] = MeanLogProb(lps)
	}
	return Softmax(means)
}
