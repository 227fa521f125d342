package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalKey(t *testing.T) {
	a := canonicalKey([]int{2, 300, 4}, []int{1, 1, 1})
	assert.Equal(t, a, canonicalKey([]int{2, 300, 4}, []int{1, 1, 1}))
	assert.NotEqual(t, a, canonicalKey([]int{2, 300, 4}, []int{1, 0, 1}), "attention is part of the key")
	assert.NotEqual(t, a, canonicalKey([]int{2, 44, 4}, []int{1, 1, 1}))
	assert.NotEqual(t, canonicalKey([]int{1}, []int{1}), canonicalKey([]int{1, 1}, []int{1, 1}))
}

func TestContextRadius(t *testing.T) {
	assert.Equal(t, 185, contextRadius(512, 128))
	assert.Equal(t, 249, contextRadius(512, 1))
	assert.Equal(t, 1, contextRadius(10, 10), "radius never drops below one token")
}

func TestWindow(t *testing.T) {
	tests := []struct {
		n, pos, radius int
		start, end     int
	}{
		{100, 50, 10, 40, 60},
		{5, 0, 3, 0, 3},
		{5, 4, 1, 3, 5},
		{5, 2, 100, 0, 5},
	}
	for _, tt := range tests {
		s, e := window(tt.n, tt.pos, tt.radius)
		assert.Equal(t, tt.start, s)
		assert.Equal(t, tt.end, e)
		assert.True(t, s <= tt.pos && tt.pos < e, "window keeps the gap")
	}
}

func TestGapVariantsMultiToken(t *testing.T) {
	tok := newFakeTokenizer()
	ids, gapPos, err := encodeSentence(tok, []string{"London is the", "of Great Britain."}, 1, reservedIDs{})
	require.NoError(t, err)
	require.Equal(t, []int{3}, gapPos)

	capital := tok.id("capital")
	metro, polis := tok.id("metro"), tok.id("polis")

	g := newGrouper()
	gapVariants(g, sequenceBuilder{begin: 2, end: 3}, ids, 0, 3, [][]int{{capital}, {metro, polis}}, 512, 1, 4)
	groups := g.result()
	require.Len(t, groups, 3)

	assert.Equal(t, []int{2, 5, 6, 7, 4, 8, 9, 10, 11, 3}, groups[0].InputIDs)
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, groups[0].Attention)
	assert.Equal(t, 4, groups[0].MaskPos)
	assert.Equal(t, []Variant{{Gap: 0, Candidate: 0, Position: 0, Target: capital}}, groups[0].Members)

	assert.Equal(t, []int{2, 5, 6, 7, 4, 1, 8, 9, 10, 11, 3}, groups[1].InputIDs)
	assert.Equal(t, []int{1, 1, 1, 1, 1, 0, 1, 1, 1, 1, 1}, groups[1].Attention)
	assert.Equal(t, 4, groups[1].MaskPos)
	assert.Equal(t, metro, groups[1].Members[0].Target)

	assert.Equal(t, []int{2, 5, 6, 7, 1, 4, 8, 9, 10, 11, 3}, groups[2].InputIDs)
	assert.Equal(t, []int{1, 1, 1, 1, 0, 1, 1, 1, 1, 1, 1}, groups[2].Attention)
	assert.Equal(t, 5, groups[2].MaskPos)
	assert.Equal(t, Variant{Gap: 0, Candidate: 1, Position: 1, Target: polis}, groups[2].Members[0])
}

func TestGapVariantsShareGroups(t *testing.T) {
	ids := []int{5, 6, 1, 8}
	g := newGrouper()
	gapVariants(g, sequenceBuilder{begin: 2, end: 3}, ids, 0, 2, [][]int{{12}, {13}, {12}}, 512, 1, 4)
	groups := g.result()

	require.Len(t, groups, 1, "every single-token candidate of a gap shares the masked row")
	assert.Equal(t, []Variant{
		{Gap: 0, Candidate: 0, Position: 0, Target: 12},
		{Gap: 0, Candidate: 1, Position: 0, Target: 13},
		{Gap: 0, Candidate: 2, Position: 0, Target: 12},
	}, groups[0].Members)
}

func TestGapVariantsOtherGapsStayAttended(t *testing.T) {
	// a [UNK] b [UNK]
	ids := []int{18, 1, 20, 1}
	g := newGrouper()
	gapVariants(g, sequenceBuilder{begin: 2, end: 3}, ids, 0, 1, [][]int{{12, 13}}, 512, 1, 4)
	gapVariants(g, sequenceBuilder{begin: 2, end: 3}, ids, 1, 3, [][]int{{12}}, 512, 1, 4)
	groups := g.result()
	require.Len(t, groups, 3)

	// gap 0, first token: [CLS] a [MASK] [UNK]* b [UNK] [SEP]
	assert.Equal(t, []int{2, 18, 4, 1, 20, 1, 3}, groups[0].InputIDs)
	assert.Equal(t, []int{1, 1, 1, 0, 1, 1, 1}, groups[0].Attention)

	// gap 1: the placeholder left at gap 0 is attended
	assert.Equal(t, []int{2, 18, 1, 20, 4, 3}, groups[2].InputIDs)
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1}, groups[2].Attention)
	assert.Equal(t, 4, groups[2].MaskPos)
}

func TestGapVariantsTruncate(t *testing.T) {
	ids := make([]int, 100)
	for i := range ids {
		ids[i] = 5 + i%10
	}
	ids[50] = 1

	g := newGrouper()
	gapVariants(g, sequenceBuilder{begin: 2, end: 3}, ids, 0, 50, [][]int{{12}}, 20, 1, 4)
	groups := g.result()
	require.Len(t, groups, 1)

	// radius 20/2 - 0 - 7 = 3 keeps ids[47:53]
	want := append([]int{2}, ids[47:50]...)
	want = append(want, 4)
	want = append(want, ids[51:53]...)
	want = append(want, 3)
	assert.Equal(t, want, groups[0].InputIDs)
	assert.Equal(t, 4, groups[0].MaskPos)
}
