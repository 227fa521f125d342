package scoring

import (
	"context"
	"errors"
	"time"

	"github.com/ZanzyTHEbar/cloze-scorer/cloze/model"
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/tokenizer"

	"github.com/rs/zerolog"
)

var ErrNoMaskToken = errors.New("tokenizer has no mask token")

// MaskedScorer scores each candidate token at a [MASK] placed inside the
// gap, averaging log-probabilities over the candidate's tokens.
type MaskedScorer struct {
	tok      tokenizer.Tokenizer
	lm       model.LanguageModel
	opts     Options
	special  tokenizer.SpecialTokens
	reserved reservedIDs
	seq      sequenceBuilder
	log      zerolog.Logger
}

func NewMaskedScorer(tok tokenizer.Tokenizer, lm model.LanguageModel, opts Options) (*MaskedScorer, error) {
	sp := tok.Special()
	if !sp.Mask.Present() {
		return nil, ErrNoMaskToken
	}
	opts = opts.withDefaults(512, 128)
	return &MaskedScorer{
		tok:      tok,
		lm:       lm,
		opts:     opts,
		special:  sp,
		reserved: newReservedIDs(sp.Reserved()...).without(sp.Unknown),
		seq:      sequenceBuilder{begin: sp.Begin.ID, end: sp.End.ID},
		log:      opts.logger(),
	}, nil
}

// placeholder fills unscored gap slots. Without [UNK] the pad id serves,
// since the scored slots are unattended anyway.
func (s *MaskedScorer) placeholder() int {
	if s.special.Unknown.Present() {
		return s.special.Unknown.ID
	}
	return s.special.Pad.ID
}

func (s *MaskedScorer) ScoreSentence(ctx context.Context, parts []string, candidates [][]string) ([][]float64, error) {
	start := time.Now()
	if err := checkShape(parts, candidates); err != nil {
		return nil, err
	}
	candIDs, err := encodeCandidates(s.tok, candidates, s.opts.MaxCandidateTokens, s.reserved)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return [][]float64{}, nil
	}
	ids, gapPos, err := encodeSentence(s.tok, parts, s.placeholder(), s.reserved)
	if err != nil {
		return nil, err
	}

	g := newGrouper()
	for gap, pos := range gapPos {
		gapVariants(g, s.seq, ids, gap, pos, candIDs[gap], s.opts.MaxContextTokens, s.placeholder(), s.special.Mask.ID)
		if lo, hi := window(len(ids), pos, contextRadius(s.opts.MaxContextTokens, longest(candIDs[gap]))); lo > 0 || hi < len(ids) {
			if e := s.log.Debug(); e.Enabled() {
				e.Int("gap", gap).Str("window", s.tok.Decode(ids[lo:hi])).Msg("Truncated gap context")
			}
		}
	}
	groups := g.result()

	scores := make([][][]float64, len(candIDs))
	for gap, cands := range candIDs {
		scores[gap] = make([][]float64, len(cands))
		for c, toks := range cands {
			scores[gap][c] = make([]float64, len(toks))
		}
	}

	b := NewBatcher(s.lm, s.opts.BatchSize, s.special.Pad.ID, s.special.Mask.ID, s.log)
	err = b.Run(ctx, groups, func(v Variant, lp float64) {
		scores[v.Gap][v.Candidate][v.Position] = lp
	})
	if err != nil {
		return nil, err
	}

	out := make([][]float64, len(scores))
	for gap, tokenScores := range scores {
		out[gap] = gapDistribution(tokenScores)
	}
	logDone(s.log, "masked", len(out), start)
	return out, nil
}
