// Package segment splits a gapped passage into per-sentence sub-problems.
package segment

import (
	"strings"

	"github.com/ZanzyTHEbar/cloze-scorer/cloze/common"

	"github.com/google/uuid"
)

// Detector finds sentence boundaries. Returned sentences must appear in the
// input, in order; surrounding whitespace may be trimmed.
type Detector interface {
	Split(text string) []string
}

// Sentence is one sub-problem: len(Parts) == len(Candidates)+1.
type Sentence struct {
	Parts      []string
	Candidates [][]string
	// FirstGap is the passage index of the sentence's first gap.
	FirstGap int
}

// Gaps returns the number of gaps in the sentence.
func (s Sentence) Gaps() int { return len(s.Candidates) }

// Segmenter joins parts around a gap marker, runs the detector and
// partitions gaps by sentence.
type Segmenter struct {
	detector  Detector
	newMarker func() string
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithMarker fixes the gap marker instead of generating one per call.
func WithMarker(marker string) Option {
	return func(s *Segmenter) { s.newMarker = func() string { return marker } }
}

func New(detector Detector, opts ...Option) *Segmenter {
	s := &Segmenter{detector: detector, newMarker: randomMarker}
	for _, o := range opts {
		o(s)
	}
	return s
}

// randomMarker is a single alphanumeric word, so detectors never split it.
func randomMarker() string {
	return "clozegap" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

type span struct{ start, end int }

// Split partitions parts/candidates by sentence. Every gap lands in exactly
// one sentence, in order; sentences without gaps are returned with no
// candidates. Concatenating the parts of consecutive sentences (last part of
// one with the first part of the next) reconstructs the input parts.
func (s *Segmenter) Split(parts []string, candidates [][]string) ([]Sentence, error) {
	if len(parts) != len(candidates)+1 {
		return nil, common.Errorf(common.KindInputShape, common.NoGap,
			"got %d text parts for %d gaps, want %d", len(parts), len(candidates), len(candidates)+1)
	}
	marker := s.newMarker()
	sep := " " + marker + " "

	var b strings.Builder
	partSpans := make([]span, len(parts))
	markerSpans := make([]span, len(candidates))
	for j, p := range parts {
		if j > 0 {
			start := b.Len() + 1
			markerSpans[j-1] = span{start, start + len(marker)}
			b.WriteString(sep)
		}
		partSpans[j] = span{b.Len(), b.Len() + len(p)}
		b.WriteString(p)
	}
	text := b.String()

	if got := strings.Count(text, marker); got != len(candidates) {
		return nil, common.Errorf(common.KindMalformedInput, common.NoGap,
			"gap marker found %d times for %d gaps; text collides with the marker", got, len(candidates))
	}

	bounds, err := s.sentenceSpans(text)
	if err != nil {
		return nil, err
	}

	out := make([]Sentence, 0, len(bounds))
	gap := 0
	for _, sb := range bounds {
		first := gap
		for gap < len(markerSpans) && markerSpans[gap].start < sb.end {
			if markerSpans[gap].start < sb.start || markerSpans[gap].end > sb.end {
				return nil, common.Errorf(common.KindMalformedInput, gap, "sentence boundary splits the gap marker")
			}
			gap++
		}
		sent := Sentence{FirstGap: first, Candidates: candidates[first:gap]}
		for j := first; j <= gap; j++ {
			sent.Parts = append(sent.Parts, intersect(text, partSpans[j], sb))
		}
		out = append(out, sent)
	}
	return out, nil
}

// sentenceSpans locates detector output in text and widens each sentence to
// start where the previous one ended, so the spans tile [0, len(text)).
func (s *Segmenter) sentenceSpans(text string) ([]span, error) {
	var starts []int
	cursor := 0
	for _, sent := range s.detector.Split(text) {
		t := strings.TrimSpace(sent)
		if t == "" {
			continue
		}
		idx := strings.Index(text[cursor:], t)
		if idx < 0 {
			return nil, common.Errorf(common.KindMalformedInput, common.NoGap,
				"sentence detector returned text not present in the passage: %q", t)
		}
		starts = append(starts, cursor+idx)
		cursor += idx + len(t)
	}
	if len(starts) == 0 {
		return []span{{0, len(text)}}, nil
	}
	starts[0] = 0
	spans := make([]span, len(starts))
	for i, st := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		spans[i] = span{st, end}
	}
	return spans, nil
}

func intersect(text string, a, b span) string {
	start := max(a.start, b.start)
	end := min(a.end, b.end)
	if start >= end {
		return ""
	}
	return text[start:end]
}
