package scoring

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/cloze-scorer/cloze/model"
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/tokenizer"
)

var fakeWords = []string{
	"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]",
	"london", "is", "the", "of", "great", "britain", ".", "capital", "city",
	"metro", "polis", "mega", "lo", "a", "it", "big", "small", "and", "paris",
}

// fakeTokenizer splits on spaces and periods, lowercases everything but
// special tokens and expands a few words into several pieces.
type fakeTokenizer struct {
	vocab   map[string]int
	pieces  map[string][]string
	special tokenizer.SpecialTokens
}

func newFakeTokenizer() *fakeTokenizer {
	v := make(map[string]int, len(fakeWords))
	for i, w := range fakeWords {
		v[w] = i
	}
	return &fakeTokenizer{
		vocab: v,
		pieces: map[string][]string{
			"metropolis":  {"metro", "polis"},
			"megalopolis": {"mega", "lo", "polis"},
		},
		special: tokenizer.SpecialTokens{
			Pad:     tokenizer.Token{Text: "[PAD]", ID: 0},
			Unknown: tokenizer.Token{Text: "[UNK]", ID: 1},
			Begin:   tokenizer.Token{Text: "[CLS]", ID: 2},
			End:     tokenizer.Token{Text: "[SEP]", ID: 3},
			Mask:    tokenizer.Token{Text: "[MASK]", ID: 4},
		},
	}
}

// newFakeCausalTokenizer mimics GPT-2: one end-of-text token doubles as
// unknown and pad, and there is no mask.
func newFakeCausalTokenizer() *fakeTokenizer {
	t := newFakeTokenizer()
	eot := tokenizer.Token{Text: "[SEP]", ID: 3}
	t.special = tokenizer.SpecialTokens{
		Mask:    tokenizer.Token{ID: tokenizer.NoToken},
		Begin:   tokenizer.Token{ID: tokenizer.NoToken},
		Unknown: eot,
		Pad:     eot,
		End:     eot,
	}
	return t
}

func (t *fakeTokenizer) Encode(text string) ([]int, error) {
	text = strings.ReplaceAll(text, ".", " . ")
	var ids []int
	for _, w := range strings.Fields(text) {
		if id, ok := t.vocab[w]; ok {
			ids = append(ids, id)
			continue
		}
		w = strings.ToLower(w)
		ps, ok := t.pieces[w]
		if !ok {
			ps = []string{w}
		}
		for _, p := range ps {
			id, ok := t.vocab[p]
			if !ok {
				id = t.vocab["[UNK]"]
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (t *fakeTokenizer) Decode(ids []int) string {
	words := make([]string, len(ids))
	for i, id := range ids {
		words[i] = fakeWords[id]
	}
	return strings.Join(words, " ")
}

func (t *fakeTokenizer) Special() tokenizer.SpecialTokens { return t.special }
func (t *fakeTokenizer) VocabSize() int                   { return len(fakeWords) }

func (t *fakeTokenizer) id(word string) int { return t.vocab[word] }

// favourModel returns the same logits at every position: favour[id] for the
// listed ids and 0 elsewhere. It records every batch it sees.
type favourModel struct {
	vocab   int
	favour  map[int]float32
	batches []*model.Batch
}

func (m *favourModel) Forward(_ context.Context, b *model.Batch) (*model.Logits, error) {
	m.batches = append(m.batches, b)
	out := &model.Logits{Rows: b.Rows, Seq: b.Seq, Vocab: m.vocab, Data: make([]float32, b.Rows*b.Seq*m.vocab)}
	for r := 0; r < b.Rows; r++ {
		for p := 0; p < b.Seq; p++ {
			row := out.At(r, p)
			for id, v := range m.favour {
				row[id] = v
			}
		}
	}
	return out, nil
}

func (m *favourModel) Close() error { return nil }

func (m *favourModel) calls() int { return len(m.batches) }
