package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// LanguageModel runs one forward pass over a batch and returns logits for
// every position of every row.
type LanguageModel interface {
	Forward(ctx context.Context, batch *Batch) (*Logits, error)
	Close() error
}

// Kind selects the architecture an ONNX graph is driven as.
type Kind int

const (
	// Masked: BERT-style, bidirectional, input_ids + attention_mask + token_type_ids.
	Masked Kind = iota
	// Causal: GPT-2 style, left-to-right, input_ids (+ attention_mask, position_ids).
	Causal
)

func (k Kind) String() string {
	if k == Causal {
		return "causal"
	}
	return "masked"
}

var (
	ErrModelPathRequired = errors.New("onnx model path is required")
	ErrUnknownBackend    = errors.New("unknown model backend")
	ErrModelClosed       = errors.New("model is closed")
)

// Options configures New.
type Options struct {
	Backend   string // "hash" | "onnx"
	Kind      Kind
	ModelPath string
	VocabSize int // required by the hash backend
	Runtime   RuntimeOptions
}

// New selects a model implementation by backend name.
func New(opts Options) (LanguageModel, error) {
	name := strings.ToLower(strings.TrimSpace(opts.Backend))
	switch name {
	case "hash", "dev":
		return NewHashModel(opts.VocabSize), nil
	case "onnx", "":
		if opts.ModelPath == "" {
			return nil, ErrModelPathRequired
		}
		return newONNXModel(opts.Kind, opts.ModelPath, opts.Runtime), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

// Batch holds row-major [Rows x Seq] int64 inputs ready for tensor creation.
type Batch struct {
	Rows          int
	Seq           int
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
}

// NewBatch allocates a batch whose rows are pre-filled with padID and
// attention 0.
func NewBatch(rows, seq, padID int) *Batch {
	b := &Batch{
		Rows:          rows,
		Seq:           seq,
		InputIDs:      make([]int64, rows*seq),
		AttentionMask: make([]int64, rows*seq),
		TokenTypeIDs:  make([]int64, rows*seq),
	}
	if padID != 0 {
		for i := range b.InputIDs {
			b.InputIDs[i] = int64(padID)
		}
	}
	return b
}

// SetRow copies ids and attention into row r. Shorter rows keep padding.
func (b *Batch) SetRow(r int, ids, attention []int) error {
	if r < 0 || r >= b.Rows {
		return fmt.Errorf("row %d out of range [0,%d)", r, b.Rows)
	}
	if len(ids) > b.Seq || len(attention) != len(ids) {
		return fmt.Errorf("row %d: %d ids / %d attention do not fit seq %d", r, len(ids), len(attention), b.Seq)
	}
	off := r * b.Seq
	for j, id := range ids {
		b.InputIDs[off+j] = int64(id)
		b.AttentionMask[off+j] = int64(attention[j])
	}
	return nil
}

// Row returns the ids of row r, including padding.
func (b *Batch) Row(r int) []int64 {
	return b.InputIDs[r*b.Seq : (r+1)*b.Seq]
}

// RowAttention returns the attention mask of row r.
func (b *Batch) RowAttention(r int) []int64 {
	return b.AttentionMask[r*b.Seq : (r+1)*b.Seq]
}

// Logits is a row-major [Rows x Seq x Vocab] float32 block.
type Logits struct {
	Rows  int
	Seq   int
	Vocab int
	Data  []float32
}

// At returns the vocabulary logits for row r at position pos.
func (l *Logits) At(r, pos int) []float32 {
	start := (r*l.Seq + pos) * l.Vocab
	return l.Data[start : start+l.Vocab]
}

// Check verifies the logits cover the batch.
func (l *Logits) Check(b *Batch) error {
	if l.Rows != b.Rows || l.Seq != b.Seq {
		return fmt.Errorf("logits shape [%d %d %d] does not match batch [%d %d]", l.Rows, l.Seq, l.Vocab, b.Rows, b.Seq)
	}
	if len(l.Data) != l.Rows*l.Seq*l.Vocab {
		return fmt.Errorf("logits data length %d does not match shape [%d %d %d]", len(l.Data), l.Rows, l.Seq, l.Vocab)
	}
	return nil
}
