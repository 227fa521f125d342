package scoring

import (
	"fmt"

	"github.com/ZanzyTHEbar/cloze-scorer/cloze/common"
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/tokenizer"
)

func checkShape(parts []string, candidates [][]string) error {
	if len(parts) != len(candidates)+1 {
		return common.Errorf(common.KindInputShape, common.NoGap,
			"got %d text parts for %d gaps, want %d", len(parts), len(candidates), len(candidates)+1)
	}
	return nil
}

// encodeCandidates tokenizes every candidate of every gap and enforces the
// token cap. It runs before any model call.
func encodeCandidates(tok tokenizer.Tokenizer, candidates [][]string, maxTokens int, reserved reservedIDs) ([][][]int, error) {
	out := make([][][]int, len(candidates))
	for g, gapCands := range candidates {
		out[g] = make([][]int, len(gapCands))
		for c, cand := range gapCands {
			ids, err := tok.Encode(cand)
			if err != nil {
				return nil, fmt.Errorf("encode candidate %q: %w", cand, err)
			}
			if len(ids) == 0 {
				return nil, common.Errorf(common.KindInvalidCandidates, g, "candidate %q encodes to no tokens", cand)
			}
			if len(ids) > maxTokens {
				return nil, common.Errorf(common.KindCandidateTooLong, g,
					"Too big candidate %q: %d tokens, limit %d", cand, len(ids), maxTokens)
			}
			if s, bad := reserved.find(ids); bad {
				return nil, common.Errorf(common.KindForbiddenToken, g, "candidate %q contains reserved token %s", cand, s)
			}
			out[g][c] = ids
		}
	}
	return out, nil
}

// encodeSentence tokenizes the parts and joins them with one placeholder id
// per gap. It returns the ids and each gap's position.
func encodeSentence(tok tokenizer.Tokenizer, parts []string, placeholder int, reserved reservedIDs) ([]int, []int, error) {
	ids := make([]int, 0, 64)
	gapPos := make([]int, 0, len(parts)-1)
	for j, p := range parts {
		if j > 0 {
			gapPos = append(gapPos, len(ids))
			ids = append(ids, placeholder)
		}
		pids, err := tok.Encode(p)
		if err != nil {
			return nil, nil, fmt.Errorf("encode text part %d: %w", j, err)
		}
		if s, bad := reserved.find(pids); bad {
			return nil, nil, common.Errorf(common.KindForbiddenToken, common.NoGap, "text part %d contains reserved token %s", j, s)
		}
		ids = append(ids, pids...)
	}
	return ids, gapPos, nil
}

func longest(cands [][]int) int {
	n := 0
	for _, c := range cands {
		n = max(n, len(c))
	}
	return n
}
