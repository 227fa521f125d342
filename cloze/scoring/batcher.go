package scoring

import (
	"context"

	"github.com/ZanzyTHEbar/cloze-scorer/cloze/common"
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/model"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
)

// Sink receives the log-probability of each member variant.
type Sink func(v Variant, logProb float64)

// Batcher runs groups through a masked LM in fixed-size batches.
type Batcher struct {
	lm        model.LanguageModel
	batchSize int
	pad       int
	mask      int
	log       zerolog.Logger

	// Calls counts Forward invocations over the Batcher's lifetime.
	Calls int
}

func NewBatcher(lm model.LanguageModel, batchSize, pad, mask int, log zerolog.Logger) *Batcher {
	if batchSize < 1 {
		batchSize = 1
	}
	if pad < 0 {
		pad = 0
	}
	return &Batcher{lm: lm, batchSize: batchSize, pad: pad, mask: mask, log: log}
}

// Run scores every group. Pending groups are flushed once there are more
// than batchSize of them, and once more at the end.
func (b *Batcher) Run(ctx context.Context, groups []Group, sink Sink) error {
	pending := make([]Group, 0, b.batchSize+1)
	for _, g := range groups {
		pending = append(pending, g)
		if len(pending) > b.batchSize {
			if err := b.flush(ctx, pending, sink); err != nil {
				return err
			}
			pending = pending[:0]
		}
	}
	if len(pending) > 0 {
		return b.flush(ctx, pending, sink)
	}
	return nil
}

func (b *Batcher) flush(ctx context.Context, pending []Group, sink Sink) error {
	seq := 0
	for _, g := range pending {
		if err := b.checkMask(g); err != nil {
			return err
		}
		seq = max(seq, len(g.InputIDs))
	}

	batch := model.NewBatch(len(pending), seq, b.pad)
	for r, g := range pending {
		if err := batch.SetRow(r, g.InputIDs, g.Attention); err != nil {
			return common.WrapModelError(err, "build batch row %d", r)
		}
	}

	b.Calls++
	b.log.Debug().Int("batch_rows", batch.Rows).Int("seq", seq).Msg("Scoring batch")
	logits, err := b.lm.Forward(ctx, batch)
	if err != nil {
		return common.WrapModelError(err, "masked LM forward")
	}
	if err := logits.Check(batch); err != nil {
		return common.WrapModelError(err, "masked LM output")
	}

	row := make([]float64, logits.Vocab)
	for r, g := range pending {
		for i, v := range logits.At(r, g.MaskPos) {
			row[i] = float64(v)
		}
		lse := floats.LogSumExp(row)
		for _, m := range g.Members {
			if m.Target < 0 || m.Target >= len(row) {
				return common.Errorf(common.KindModel, m.Gap, "target id %d outside vocabulary of %d", m.Target, len(row))
			}
			sink(m, row[m.Target]-lse)
		}
	}
	return nil
}

// checkMask requires exactly one mask id, at MaskPos.
func (b *Batcher) checkMask(g Group) error {
	n := 0
	for _, id := range g.InputIDs {
		if id == b.mask {
			n++
		}
	}
	if n != 1 || g.MaskPos < 0 || g.MaskPos >= len(g.InputIDs) || g.InputIDs[g.MaskPos] != b.mask {
		gap := common.NoGap
		if len(g.Members) > 0 {
			gap = g.Members[0].Gap
		}
		return common.Errorf(common.KindMaskCount, gap, "input row has %d mask tokens, want exactly 1", n)
	}
	return nil
}
