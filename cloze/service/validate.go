package service

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/cloze-scorer/cloze/common"
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/tokenizer"

	radix "github.com/armon/go-radix"
)

// validator enforces the request rules every backend shares. It runs before
// segmentation so that no model call happens for a bad request.
type validator struct {
	tok      tokenizer.Tokenizer
	maxCand  int
	reserved *radix.Tree
}

func newValidator(tok tokenizer.Tokenizer, maxCandidateTokens int) *validator {
	tree := radix.New()
	for _, t := range tok.Special().Reserved() {
		if t.Text != "" {
			tree.Insert(t.Text, t.ID)
		}
	}
	return &validator{tok: tok, maxCand: maxCandidateTokens, reserved: tree}
}

// findReserved returns the first reserved token text occurring in s.
func (v *validator) findReserved(s string) (string, bool) {
	if v.reserved.Len() == 0 {
		return "", false
	}
	for i := 0; i < len(s); i++ {
		if prefix, _, ok := v.reserved.LongestPrefix(s[i:]); ok {
			return prefix, true
		}
	}
	return "", false
}

func (v *validator) validate(req *Request) error {
	if len(req.TextParts) != len(req.Candidates)+1 {
		return common.Errorf(common.KindInputShape, common.NoGap,
			"got %d text parts for %d gaps, want %d", len(req.TextParts), len(req.Candidates), len(req.Candidates)+1)
	}
	for i, part := range req.TextParts {
		if tok, bad := v.findReserved(part); bad {
			return common.Errorf(common.KindForbiddenToken, common.NoGap, "text part %d contains reserved token %s", i, tok)
		}
	}
	for g, cands := range req.Candidates {
		if err := v.validateGap(g, cands); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) validateGap(g int, cands []string) error {
	if len(cands) < 2 {
		return common.Errorf(common.KindInvalidCandidates, g, "need at least 2 candidates, got %d", len(cands))
	}
	seen := make(map[string]struct{}, len(cands))
	for _, c := range cands {
		if strings.TrimSpace(c) == "" {
			return common.Errorf(common.KindInvalidCandidates, g, "empty candidate")
		}
		if _, dup := seen[c]; dup {
			return common.Errorf(common.KindInvalidCandidates, g, "duplicate candidate %q", c)
		}
		seen[c] = struct{}{}
		if tok, bad := v.findReserved(c); bad {
			return common.Errorf(common.KindForbiddenToken, g, "candidate %q contains reserved token %s", c, tok)
		}
		ids, err := v.tok.Encode(c)
		if err != nil {
			return fmt.Errorf("encode candidate %q: %w", c, err)
		}
		if len(ids) > v.maxCand {
			return common.Errorf(common.KindCandidateTooLong, g,
				"Too big candidate %q: %d tokens, limit %d", c, len(ids), v.maxCand)
		}
	}
	return nil
}
