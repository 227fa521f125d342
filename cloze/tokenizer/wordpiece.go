package tokenizer

import (
	"fmt"
	"os"
	"path/filepath"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
)

// WordPiece wraps sugarme/tokenizer WordPiece (BERT-style, uncased).
type WordPiece struct {
	t       *tk.Tokenizer
	special SpecialTokens
	size    int
}

// NewWordPiece loads vocab.txt (or a directory holding it) and builds a BERT
// WordPiece tokenizer. Reserved tokens are registered as special so literal
// "[MASK]" in text encodes to the mask id and can be rejected.
func NewWordPiece(vocabPath string, lowercase bool) (*WordPiece, error) {
	if fi, err := os.Stat(vocabPath); err == nil && fi.IsDir() {
		vocabPath = filepath.Join(vocabPath, "vocab.txt")
	}
	vocab, err := LoadVocab(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	special := SpecialTokens{
		Mask:    vocab.Lookup("[MASK]"),
		Unknown: vocab.Lookup("[UNK]"),
		Pad:     vocab.Lookup("[PAD]"),
		Begin:   vocab.Lookup("[CLS]"),
		End:     vocab.Lookup("[SEP]"),
	}
	if !special.Mask.Present() || !special.Unknown.Present() || !special.Pad.Present() {
		return nil, fmt.Errorf("%w: vocab %s lacks [MASK], [UNK] or [PAD]", ErrUnsupported, vocabPath)
	}

	wp, err := wordpiece.NewWordPieceFromFile(vocabPath, special.Unknown.Text)
	if err != nil {
		return nil, fmt.Errorf("load wordpiece %s: %w", vocabPath, err)
	}

	t := tk.NewTokenizer(wp)
	t.WithNormalizer(normalizer.NewBertNormalizer(true, true, true, lowercase))
	t.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())

	added := make([]tk.AddedToken, 0, 5)
	for _, s := range special.Reserved() {
		added = append(added, tk.NewAddedToken(s.Text, true))
	}
	t.AddSpecialTokens(added)

	return &WordPiece{t: t, special: special, size: len(vocab)}, nil
}

func (w *WordPiece) Encode(text string) ([]int, error) {
	enc, err := w.t.Encode(tk.NewSingleEncodeInput(tk.NewInputSequence(text)), false)
	if err != nil {
		return nil, fmt.Errorf("wordpiece encode: %w", err)
	}
	return enc.GetIds(), nil
}

func (w *WordPiece) Decode(ids []int) string { return w.t.Decode(ids, false) }

func (w *WordPiece) Special() SpecialTokens { return w.special }

func (w *WordPiece) VocabSize() int { return w.size }
