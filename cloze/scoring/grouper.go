package scoring

import (
	"encoding/binary"
)

const (
	// windowRounding and windowMargin keep room for [CLS]/[SEP] and for
	// tokenizer drift when sizing the context window around a gap.
	windowRounding = 2
	windowMargin   = 5
)

// Variant is one scored token: token Position of candidate Candidate in gap
// Gap, predicted at a mask whose expected id is Target.
type Variant struct {
	Gap       int
	Candidate int
	Position  int
	Target    int
}

// Group is one model input row shared by every member variant.
type Group struct {
	InputIDs  []int
	Attention []int
	MaskPos   int
	Members   []Variant
}

// grouper deduplicates identical input rows. Groups keep first-appearance
// order and members keep insertion order.
type grouper struct {
	index  map[string]int
	groups []Group
}

func newGrouper() *grouper {
	return &grouper{index: make(map[string]int)}
}

func (g *grouper) add(ids, attention []int, maskPos int, v Variant) {
	key := canonicalKey(ids, attention)
	if i, ok := g.index[key]; ok {
		g.groups[i].Members = append(g.groups[i].Members, v)
		return
	}
	g.index[key] = len(g.groups)
	g.groups = append(g.groups, Group{
		InputIDs:  ids,
		Attention: attention,
		MaskPos:   maskPos,
		Members:   []Variant{v},
	})
}

func (g *grouper) result() []Group { return g.groups }

// canonicalKey packs ids and attention so that two rows share a key exactly
// when both sequences are equal.
func canonicalKey(ids, attention []int) string {
	buf := make([]byte, 0, len(ids)*5)
	for i, id := range ids {
		buf = binary.AppendUvarint(buf, uint64(id))
		a := byte(0)
		if attention[i] != 0 {
			a = 1
		}
		buf = append(buf, a)
	}
	return string(buf)
}

// contextRadius is how many tokens each side of a gap fit in maxContext when
// the longest candidate has maxCand tokens.
func contextRadius(maxContext, maxCand int) int {
	r := maxContext/2 - maxCand/2 - windowRounding - windowMargin
	if r < 1 {
		r = 1
	}
	return r
}

// window returns the [start, end) slice of n tokens kept around pos.
func window(n, pos, radius int) (int, int) {
	start := max(0, pos-radius)
	end := min(n, pos+radius)
	if end <= pos {
		end = min(n, pos+1)
	}
	return start, end
}

// sequenceBuilder wraps token ids in the model's begin/end tokens.
type sequenceBuilder struct {
	begin, end int
}

func (s sequenceBuilder) wrap(ids, attention []int) ([]int, []int, int) {
	n := len(ids)
	offset := 0
	if s.begin >= 0 {
		n++
		offset = 1
	}
	if s.end >= 0 {
		n++
	}
	outIDs := make([]int, 0, n)
	outAtt := make([]int, 0, n)
	if s.begin >= 0 {
		outIDs = append(outIDs, s.begin)
		outAtt = append(outAtt, 1)
	}
	outIDs = append(outIDs, ids...)
	outAtt = append(outAtt, attention...)
	if s.end >= 0 {
		outIDs = append(outIDs, s.end)
		outAtt = append(outAtt, 1)
	}
	return outIDs, outAtt, offset
}

// gapVariants adds one row per candidate token for the gap at pos in ids.
// The candidate occupies k placeholder slots, all unattended except the
// masked one; placeholders of other gaps stay attended.
func gapVariants(g *grouper, seq sequenceBuilder, ids []int, gap, pos int, cands [][]int,
	maxContext, placeholder, mask int,
) {
	radius := contextRadius(maxContext, longest(cands))
	start, end := window(len(ids), pos, radius)
	prefix, suffix := ids[start:pos], ids[pos+1:end]

	for c, toks := range cands {
		k := len(toks)
		for i, target := range toks {
			row := make([]int, 0, len(prefix)+k+len(suffix))
			att := make([]int, 0, cap(row))
			row = append(row, prefix...)
			att = appendOnes(att, len(prefix))
			for j := 0; j < k; j++ {
				if j == i {
					row = append(row, mask)
					att = append(att, 1)
				} else {
					row = append(row, placeholder)
					att = append(att, 0)
				}
			}
			row = append(row, suffix...)
			att = appendOnes(att, len(suffix))

			full, fullAtt, off := seq.wrap(row, att)
			g.add(full, fullAtt, off+len(prefix)+i, Variant{Gap: gap, Candidate: c, Position: i, Target: target})
		}
	}
}

func appendOnes(dst []int, n int) []int {
	for i := 0; i < n; i++ {
		dst = append(dst, 1)
	}
	return dst
}
