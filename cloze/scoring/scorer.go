// Package scoring turns per-sentence gap problems into candidate
// probability distributions using a masked or causal language model.
package scoring

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SentenceScorer scores the candidates of every gap in one sentence.
// len(parts) == len(candidates)+1; result[g][c] is the probability of
// candidate c filling gap g, and each result[g] sums to 1.
type SentenceScorer interface {
	ScoreSentence(ctx context.Context, parts []string, candidates [][]string) ([][]float64, error)
}

// Options shares the knobs of every scorer. Zero values take defaults.
type Options struct {
	MaxContextTokens   int
	MaxCandidateTokens int
	BatchSize          int
	Stride             int
	Logger             *zerolog.Logger
}

func (o Options) withDefaults(contextTokens, candidateTokens int) Options {
	if o.MaxContextTokens <= 0 {
		o.MaxContextTokens = contextTokens
	}
	if o.MaxCandidateTokens <= 0 {
		o.MaxCandidateTokens = candidateTokens
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 16
	}
	if o.Stride <= 0 || o.Stride > o.MaxContextTokens {
		o.Stride = o.MaxContextTokens / 2
	}
	return o
}

func (o Options) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

func logDone(log zerolog.Logger, what string, gaps int, start time.Time) {
	log.Debug().
		Str("scorer", what).
		Int("gaps", gaps).
		Dur("took", time.Since(start)).
		Msg("Scored sentence")
}
