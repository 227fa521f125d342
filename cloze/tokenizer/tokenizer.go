package tokenizer

import (
	"fmt"
)

// Tokenizer converts text to token ids and back. Encode never adds special
// tokens; callers wrap sequences themselves.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) string
	Special() SpecialTokens
	VocabSize() int
}

// Token is a named special token. ID is NoToken when the vocabulary lacks it.
type Token struct {
	Text string
	ID   int
}

// NoToken marks an absent special token.
const NoToken = -1

// Present reports whether the vocabulary defines the token.
func (t Token) Present() bool { return t.ID != NoToken }

// SpecialTokens lists the reserved tokens the scorers rely on.
type SpecialTokens struct {
	Mask    Token
	Unknown Token
	Pad     Token
	Begin   Token // [CLS] for BERT
	End     Token // [SEP] for BERT, <|endoftext|> for GPT-2
}

// Reserved returns every present special token.
func (s SpecialTokens) Reserved() []Token {
	out := make([]Token, 0, 5)
	for _, t := range []Token{s.Mask, s.Unknown, s.Pad, s.Begin, s.End} {
		if t.Present() {
			out = append(out, t)
		}
	}
	return out
}

// ErrUnsupported indicates the tokenizer could not be initialized
var ErrUnsupported = fmt.Errorf("unsupported tokenizer configuration")
