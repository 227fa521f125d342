package scoring

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/cloze-scorer/cloze/common"
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/model"
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/tokenizer"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
)

// PerplexityScorer fills one gap at a time, measures the perplexity of the
// whole sentence under a causal LM and weights candidates by 1/perplexity.
// Other gaps are filled with the tokenizer's unknown-token text. It holds no
// per-call state and is safe for concurrent use.
type PerplexityScorer struct {
	tok      tokenizer.Tokenizer
	lm       model.LanguageModel
	opts     Options
	filler   string
	reserved reservedIDs
	log      zerolog.Logger
}

func NewPerplexityScorer(tok tokenizer.Tokenizer, lm model.LanguageModel, opts Options) *PerplexityScorer {
	sp := tok.Special()
	opts = opts.withDefaults(1024, 128)
	return &PerplexityScorer{
		tok:      tok,
		lm:       lm,
		opts:     opts,
		filler:   sp.Unknown.Text,
		reserved: newReservedIDs(sp.Reserved()...),
		log:      opts.logger(),
	}
}

func (s *PerplexityScorer) ScoreSentence(ctx context.Context, parts []string, candidates [][]string) ([][]float64, error) {
	start := time.Now()
	if err := checkShape(parts, candidates); err != nil {
		return nil, err
	}
	if _, err := encodeCandidates(s.tok, candidates, s.opts.MaxCandidateTokens, s.reserved); err != nil {
		return nil, err
	}
	if _, _, err := encodeSentence(s.tok, parts, 0, s.reserved); err != nil {
		return nil, err
	}

	out := make([][]float64, len(candidates))
	fills := make([]string, len(candidates))
	for gap, cands := range candidates {
		ppl := make([]float64, len(cands))
		for c, cand := range cands {
			for j := range fills {
				fills[j] = s.filler
			}
			fills[gap] = cand
			ids, err := s.tok.Encode(fillGaps(parts, fills))
			if err != nil {
				return nil, err
			}
			p, err := s.Perplexity(ctx, ids)
			if err != nil {
				return nil, err
			}
			s.log.Trace().Int("gap", gap).Str("candidate", cand).Float64("perplexity", p).Msg("Candidate perplexity")
			ppl[c] = p
		}
		out[gap] = InversePerplexity(ppl)
	}
	logDone(s.log, "causal", len(out), start)
	return out, nil
}

// fillGaps joins parts with each fill surrounded by single spaces.
func fillGaps(parts, fills []string) string {
	var b strings.Builder
	for j, p := range parts {
		if j > 0 {
			b.WriteString(" ")
			b.WriteString(fills[j-1])
			b.WriteString(" ")
		}
		b.WriteString(p)
	}
	return b.String()
}

// Perplexity is exp(mean NLL) of ids under sliding windows of at most
// MaxContextTokens advanced by Stride. Each window only scores the tokens it
// adds; the first token has no prediction and sequences shorter than two
// tokens have perplexity 1.
func (s *PerplexityScorer) Perplexity(ctx context.Context, ids []int) (float64, error) {
	n := len(ids)
	if n < 2 {
		return 1, nil
	}
	maxLen, stride := s.opts.MaxContextTokens, s.opts.Stride

	var nll float64
	for i := 0; i < n; i += stride {
		begin := max(i+stride-maxLen, 0)
		end := min(i+stride, n)
		trg := end - i
		from := max(end-trg, begin+1)
		if from >= end {
			continue
		}

		win := ids[begin:end]
		batch := model.NewBatch(1, len(win), 0)
		if err := batch.SetRow(0, win, appendOnes(nil, len(win))); err != nil {
			return 0, common.WrapModelError(err, "build window")
		}
		logits, err := s.lm.Forward(ctx, batch)
		if err != nil {
			return 0, common.WrapModelError(err, "causal LM forward")
		}
		if err := logits.Check(batch); err != nil {
			return 0, common.WrapModelError(err, "causal LM output")
		}

		row := make([]float64, logits.Vocab)
		var sum float64
		for t := from; t < end; t++ {
			for v, x := range logits.At(0, t-1-begin) {
				row[v] = float64(x)
			}
			if ids[t] < 0 || ids[t] >= len(row) {
				return 0, common.Errorf(common.KindModel, common.NoGap, "token id %d outside vocabulary of %d", ids[t], len(row))
			}
			sum += floats.LogSumExp(row) - row[ids[t]]
		}
		nll += sum / float64(end-from) * float64(trg)
	}
	return math.Exp(nll / float64(n)), nil
}
