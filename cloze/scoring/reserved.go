package scoring

import (
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/tokenizer"

	roaring "github.com/RoaringBitmap/roaring"
)

// reservedIDs is the set of special-token ids that must never come out of
// encoding caller text.
type reservedIDs struct {
	bm   *roaring.Bitmap
	text map[int]string
}

func newReservedIDs(tokens ...tokenizer.Token) reservedIDs {
	r := reservedIDs{bm: roaring.New(), text: make(map[int]string, len(tokens))}
	for _, t := range tokens {
		if !t.Present() {
			continue
		}
		r.bm.Add(uint32(t.ID))
		r.text[t.ID] = t.Text
	}
	return r
}

// without drops ids from the set (e.g. [UNK], which plain rare words map to).
func (r reservedIDs) without(tokens ...tokenizer.Token) reservedIDs {
	out := reservedIDs{bm: r.bm.Clone(), text: make(map[int]string, len(r.text))}
	for id, s := range r.text {
		out.text[id] = s
	}
	for _, t := range tokens {
		if t.Present() {
			out.bm.Remove(uint32(t.ID))
			delete(out.text, t.ID)
		}
	}
	return out
}

// find returns the first reserved token in ids.
func (r reservedIDs) find(ids []int) (string, bool) {
	if r.bm == nil {
		return "", false
	}
	for _, id := range ids {
		if id >= 0 && r.bm.Contains(uint32(id)) {
			return r.text[id], true
		}
	}
	return "", false
}
