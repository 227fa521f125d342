package scoring

import (
	"context"
	"time"

	"github.com/ZanzyTHEbar/cloze-scorer/cloze/model"
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/tokenizer"
)

// PseudoLikelihoodScorer scores whole sentences with a masked LM: each
// candidate is spliced into its gap and every text token of the resulting
// window is masked in turn. The candidate's score is the mean log-probability
// over those tokens.
type PseudoLikelihoodScorer struct {
	*MaskedScorer
}

func NewPseudoLikelihoodScorer(tok tokenizer.Tokenizer, lm model.LanguageModel, opts Options) (*PseudoLikelihoodScorer, error) {
	m, err := NewMaskedScorer(tok, lm, opts)
	if err != nil {
		return nil, err
	}
	return &PseudoLikelihoodScorer{MaskedScorer: m}, nil
}

func (s *PseudoLikelihoodScorer) ScoreSentence(ctx context.Context, parts []string, candidates [][]string) ([][]float64, error) {
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
	scores := make([][][]float64, len(candIDs))
	for gap, pos := range gapPos {
		radius := contextRadius(s.opts.MaxContextTokens, longest(candIDs[gap]))
		lo, hi := window(len(ids), pos, radius)
		scores[gap] = make([][]float64, len(candIDs[gap]))
		for c, toks := range candIDs[gap] {
			filled, scored := s.splice(ids[lo:hi], pos-lo, toks, gapPos, lo, hi)
			scores[gap][c] = make([]float64, len(scored))
			for i, q := range scored {
				row := append([]int(nil), filled...)
				row[q] = s.special.Mask.ID
				full, att, off := s.seq.wrap(row, appendOnes(nil, len(row)))
				g.add(full, att, off+q, Variant{Gap: gap, Candidate: c, Position: i, Target: filled[q]})
			}
		}
	}

	b := NewBatcher(s.lm, s.opts.BatchSize, s.special.Pad.ID, s.special.Mask.ID, s.log)
	err = b.Run(ctx, g.result(), func(v Variant, lp float64) {
		scores[v.Gap][v.Candidate][v.Position] = lp
	})
	if err != nil {
		return nil, err
	}

	out := make([][]float64, len(scores))
	for gap, tokenScores := range scores {
		out[gap] = gapDistribution(tokenScores)
	}
	logDone(s.log, "masked-sentence", len(out), start)
	return out, nil
}

// splice replaces the placeholder at rel in win with toks. It returns the
// filled window and the positions to mask: every token except placeholders
// of other gaps.
func (s *PseudoLikelihoodScorer) splice(win []int, rel int, toks []int, gapPos []int, lo, hi int) ([]int, []int) {
	others := make(map[int]bool)
	for _, p := range gapPos {
		if p >= lo && p < hi && p-lo != rel {
			others[p-lo] = true
		}
	}
	filled := make([]int, 0, len(win)-1+len(toks))
	scored := make([]int, 0, cap(filled))
	for i, id := range win {
		if i == rel {
			for _, t := range toks {
				scored = append(scored, len(filled))
				filled = append(filled, t)
			}
			continue
		}
		if !others[i] {
			scored = append(scored, len(filled))
		}
		filled = append(filled, id)
	}
	return filled, scored
}
