package segment

import (
	"fmt"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// Punkt is the English punkt sentence detector with its bundled training data.
type Punkt struct {
	tok *sentences.DefaultSentenceTokenizer
}

func NewPunkt() (*Punkt, error) {
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load punkt english model: %w", err)
	}
	return &Punkt{tok: tok}, nil
}

func (p *Punkt) Split(text string) []string {
	ss := p.tok.Tokenize(text)
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, s.Text)
	}
	return out
}
