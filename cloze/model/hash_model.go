package model

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// hashModel is a deterministic development model: logits at a position are a
// pure function of the attended ids of the row and the position. It needs no
// weights, so the CLI and tests can run the full pipeline.
type hashModel struct{ vocab int }

func NewHashModel(vocabSize int) *hashModel {
	if vocabSize <= 0 {
		vocabSize = 1024
	}
	return &hashModel{vocab: vocabSize}
}

func (h *hashModel) Forward(ctx context.Context, batch *Batch) (*Logits, error) {
	out := &Logits{Rows: batch.Rows, Seq: batch.Seq, Vocab: h.vocab, Data: make([]float32, batch.Rows*batch.Seq*h.vocab)}
	buf := make([]byte, 8)
	for r := 0; r < batch.Rows; r++ {
		ids := batch.Row(r)
		att := batch.RowAttention(r)
		for p := 0; p < batch.Seq; p++ {
			hs := sha256.New()
			for j, id := range ids {
				if att[j] == 0 {
					continue
				}
				binary.LittleEndian.PutUint64(buf, uint64(id))
				hs.Write(buf)
			}
			binary.LittleEndian.PutUint64(buf, uint64(p))
			hs.Write(buf)
			seed := binary.LittleEndian.Uint64(hs.Sum(nil))

			row := out.At(r, p)
			for v := range row {
				row[v] = float32(splitmix(seed+uint64(v))>>40)/float32(1<<24)*8 - 4
			}
		}
	}
	return out, nil
}

func (h *hashModel) Close() error { return nil }

func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
