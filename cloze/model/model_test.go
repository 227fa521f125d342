package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m, err := New(Options{Backend: "hash", VocabSize: 32})
	require.NoError(t, err)
	assert.IsType(t, &hashModel{}, m)

	_, err = New(Options{Backend: "onnx"})
	assert.ErrorIs(t, err, ErrModelPathRequired)

	_, err = New(Options{Backend: "tflite", ModelPath: "m.tflite"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestBatchSetRow(t *testing.T) {
	b := NewBatch(2, 4, 9)

	require.NoError(t, b.SetRow(0, []int{1, 2, 3}, []int{1, 0, 1}))
	assert.Equal(t, []int64{1, 2, 3, 9}, b.Row(0))
	assert.Equal(t, []int64{1, 0, 1, 0}, b.RowAttention(0))
	assert.Equal(t, []int64{9, 9, 9, 9}, b.Row(1), "untouched rows stay padded")
	assert.Equal(t, []int64{0, 0, 0, 0}, b.TokenTypeIDs[4:])

	assert.Error(t, b.SetRow(2, []int{1}, []int{1}))
	assert.Error(t, b.SetRow(0, []int{1, 2, 3, 4, 5}, []int{1, 1, 1, 1, 1}))
	assert.Error(t, b.SetRow(0, []int{1, 2}, []int{1}))
}

func TestLogitsCheck(t *testing.T) {
	b := NewBatch(2, 3, 0)
	l := &Logits{Rows: 2, Seq: 3, Vocab: 5, Data: make([]float32, 30)}
	require.NoError(t, l.Check(b))

	l.Data[(1*3+2)*5+4] = 7
	assert.Equal(t, float32(7), l.At(1, 2)[4])
	assert.Len(t, l.At(0, 0), 5)

	assert.Error(t, (&Logits{Rows: 1, Seq: 3, Vocab: 5, Data: make([]float32, 15)}).Check(b))
	assert.Error(t, (&Logits{Rows: 2, Seq: 3, Vocab: 5, Data: make([]float32, 29)}).Check(b))
}

func TestHashModelDeterministic(t *testing.T) {
	m := NewHashModel(64)
	ctx := context.Background()

	b := NewBatch(3, 4, 0)
	require.NoError(t, b.SetRow(0, []int{5, 6, 7, 8}, []int{1, 1, 1, 1}))
	require.NoError(t, b.SetRow(1, []int{5, 6, 7, 8}, []int{1, 1, 1, 1}))
	require.NoError(t, b.SetRow(2, []int{5, 6, 7}, []int{1, 1, 1}))

	out, err := m.Forward(ctx, b)
	require.NoError(t, err)
	require.NoError(t, out.Check(b))

	assert.Equal(t, out.At(0, 1), out.At(1, 1), "identical rows give identical logits")
	assert.NotEqual(t, out.At(0, 1), out.At(2, 1), "different context gives different logits")
	assert.NotEqual(t, out.At(0, 1), out.At(0, 2), "different positions give different logits")

	again, err := m.Forward(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, out.Data, again.Data)

	for _, v := range out.At(0, 0) {
		assert.GreaterOrEqual(t, v, float32(-4))
		assert.Less(t, v, float32(4))
	}
}

func TestHashModelIgnoresUnattended(t *testing.T) {
	m := NewHashModel(16)
	b := NewBatch(2, 3, 0)
	require.NoError(t, b.SetRow(0, []int{1, 2, 3}, []int{1, 0, 1}))
	require.NoError(t, b.SetRow(1, []int{1, 99, 3}, []int{1, 0, 1}))

	out, err := m.Forward(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, out.At(0, 1), out.At(1, 1))
}
