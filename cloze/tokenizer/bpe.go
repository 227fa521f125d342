package tokenizer

import (
	"fmt"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/bpe"
	"github.com/sugarme/tokenizer/pretokenizer"
)

// ByteLevelBPE wraps sugarme/tokenizer byte-level BPE (GPT-2 style).
// GPT-2 has a single reserved token, <|endoftext|>, which doubles as the
// unknown, pad and end token.
type ByteLevelBPE struct {
	t       *tk.Tokenizer
	special SpecialTokens
	size    int
}

// NewByteLevelBPE loads vocab.json and merges.txt.
func NewByteLevelBPE(vocabPath, mergesPath string) (*ByteLevelBPE, error) {
	vocab, err := LoadJSONVocab(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	eot := vocab.Lookup("<|endoftext|>")
	if !eot.Present() {
		return nil, fmt.Errorf("%w: vocab %s lacks <|endoftext|>", ErrUnsupported, vocabPath)
	}

	model, err := bpe.NewBpeFromFiles(vocabPath, mergesPath)
	if err != nil {
		return nil, fmt.Errorf("load bpe %s: %w", vocabPath, err)
	}

	t := tk.NewTokenizer(model)
	bl := pretokenizer.NewByteLevel()
	bl.SetAddPrefixSpace(false)
	t.WithPreTokenizer(bl)
	t.WithDecoder(bl)
	t.AddSpecialTokens([]tk.AddedToken{tk.NewAddedToken(eot.Text, true)})

	return &ByteLevelBPE{
		t: t,
		special: SpecialTokens{
			Mask:    Token{ID: NoToken},
			Unknown: eot,
			Pad:     eot,
			Begin:   Token{ID: NoToken},
			End:     eot,
		},
		size: len(vocab),
	}, nil
}

func (b *ByteLevelBPE) Encode(text string) ([]int, error) {
	enc, err := b.t.Encode(tk.NewSingleEncodeInput(tk.NewInputSequence(text)), false)
	if err != nil {
		return nil, fmt.Errorf("bpe encode: %w", err)
	}
	return enc.GetIds(), nil
}

func (b *ByteLevelBPE) Decode(ids []int) string { return b.t.Decode(ids, false) }

func (b *ByteLevelBPE) Special() SpecialTokens { return b.special }

func (b *ByteLevelBPE) VocabSize() int { return b.size }
