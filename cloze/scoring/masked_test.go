package scoring

import (
	"context"
	"io"
	"math"
	"testing"

	"github.com/ZanzyTHEbar/cloze-scorer/cloze/common"
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type MaskedScorerTestSuite struct {
	suite.Suite
	tok    *fakeTokenizer
	lm     *favourModel
	scorer *MaskedScorer
	ctx    context.Context
}

func (s *MaskedScorerTestSuite) SetupTest() {
	s.tok = newFakeTokenizer()
	s.lm = &favourModel{vocab: s.tok.VocabSize(), favour: map[int]float32{s.tok.id("capital"): 5}}
	scorer, err := NewMaskedScorer(s.tok, s.lm, Options{MaxCandidateTokens: 3, BatchSize: 4})
	s.Require().NoError(err)
	s.scorer = scorer
	s.ctx = context.Background()
}

func TestMaskedScorerTestSuite(t *testing.T) {
	suite.Run(t, new(MaskedScorerTestSuite))
}

func (s *MaskedScorerTestSuite) TestCapitalBeatsCity() {
	out, err := s.scorer.ScoreSentence(s.ctx, []string{"London is the", "of Great Britain."}, [][]string{{"capital", "city"}})
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Require().Len(out[0], 2)

	s.Greater(out[0][0], out[0][1])
	s.InDelta(1.0, out[0][0]+out[0][1], 1e-6)

	// single-token candidates: probabilities are a softmax of raw logits
	want := math.Exp(5) / (math.Exp(5) + 1)
	s.InDelta(want, out[0][0], 1e-9)
	s.Equal(1, s.lm.calls())
}

func (s *MaskedScorerTestSuite) TestCandidateOrderPreserved() {
	out, err := s.scorer.ScoreSentence(s.ctx, []string{"London is the", "of Great Britain."}, [][]string{{"city", "big", "capital"}})
	s.Require().NoError(err)
	s.Require().Len(out[0], 3)
	s.InDelta(out[0][0], out[0][1], 1e-12)
	s.Greater(out[0][2], out[0][0])
}

func (s *MaskedScorerTestSuite) TestIdenticalTokenizationScoresEqual() {
	out, err := s.scorer.ScoreSentence(s.ctx, []string{"London is the", "of Great Britain."},
		[][]string{{"Metropolis", "metropolis", "city"}})
	s.Require().NoError(err)
	s.Equal(out[0][0], out[0][1])
}

func (s *MaskedScorerTestSuite) TestMultiTokenMean() {
	// favour only "polis": metro-polis averages a high and a low token
	s.lm.favour = map[int]float32{s.tok.id("polis"): 4}
	out, err := s.scorer.ScoreSentence(s.ctx, []string{"the", "."}, [][]string{{"metropolis", "megalopolis", "city"}})
	s.Require().NoError(err)

	lse := func(f float64) float64 { return math.Log(math.Exp(f) + float64(s.tok.VocabSize()-1)) }
	base := -lse(4)
	metro := (base + (4 - lse(4))) / 2
	mega := (base + base + (4 - lse(4))) / 3
	want := Softmax([]float64{metro, mega, base})
	for c := range want {
		s.InDelta(want[c], out[0][c], 1e-9)
	}
	s.Greater(out[0][0], out[0][1])
}

func (s *MaskedScorerTestSuite) TestMultipleGaps() {
	parts := []string{"London is the", "of Great Britain and a", "city."}
	cands := [][]string{{"capital", "city"}, {"big", "small", "capital"}}
	out, err := s.scorer.ScoreSentence(s.ctx, parts, cands)
	s.Require().NoError(err)
	s.Require().Len(out, 2)
	for g := range out {
		s.Len(out[g], len(cands[g]))
		sum := 0.0
		for _, p := range out[g] {
			s.GreaterOrEqual(p, 0.0)
			sum += p
		}
		s.InDelta(1.0, sum, 1e-6)
	}
	s.Greater(out[1][2], out[1][0])
}

func (s *MaskedScorerTestSuite) TestNoGaps() {
	out, err := s.scorer.ScoreSentence(s.ctx, []string{"London is big."}, nil)
	s.Require().NoError(err)
	s.Empty(out)
	s.Zero(s.lm.calls())
}

func (s *MaskedScorerTestSuite) TestRejectsBeforeModel() {
	tests := []struct {
		name  string
		parts []string
		cands [][]string
		err   error
	}{
		{"shape", []string{"London is the", "of", "Britain"}, [][]string{{"capital", "city"}}, common.ErrInputShape},
		{"too long", []string{"London is the", "."}, [][]string{{"capital", "the great big city"}}, common.ErrCandidateTooLong},
		{"empty candidate", []string{"London is the", "."}, [][]string{{"capital", "  "}}, common.ErrInvalidCandidates},
		{"mask in text", []string{"London [MASK] the", "."}, [][]string{{"capital", "city"}}, common.ErrForbiddenToken},
		{"sep in candidate", []string{"London is the", "."}, [][]string{{"capital", "[SEP]"}}, common.ErrForbiddenToken},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.lm.batches = nil
			_, err := s.scorer.ScoreSentence(s.ctx, tt.parts, tt.cands)
			s.Require().Error(err)
			s.ErrorIs(err, tt.err)
			s.Zero(s.lm.calls())
		})
	}
}

func (s *MaskedScorerTestSuite) TestUnknownWordsAreNotForbidden() {
	out, err := s.scorer.ScoreSentence(s.ctx, []string{"Zanzibar is the", "."}, [][]string{{"capital", "Xyzzy"}})
	s.Require().NoError(err)
	s.Greater(out[0][0], out[0][1])
}

func TestMaskedScorerNeedsMask(t *testing.T) {
	_, err := NewMaskedScorer(newFakeCausalTokenizer(), &favourModel{vocab: 24}, Options{})
	assert.ErrorIs(t, err, ErrNoMaskToken)
}

func TestMaskedScorerWithHashModel(t *testing.T) {
	tok := newFakeTokenizer()
	scorer, err := NewMaskedScorer(tok, model.NewHashModel(tok.VocabSize()), Options{BatchSize: 1})
	require.NoError(t, err)

	parts := []string{"London is the", "of Great Britain and a", "city."}
	cands := [][]string{{"capital", "city", "metropolis"}, {"big", "small"}}
	first, err := scorer.ScoreSentence(context.Background(), parts, cands)
	require.NoError(t, err)
	again, err := scorer.ScoreSentence(context.Background(), parts, cands)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	for _, dist := range first {
		sum := 0.0
		for _, p := range dist {
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-6)
	}
}

// decodeCounter counts Decode calls, which only debug logging needs.
type decodeCounter struct {
	*fakeTokenizer
	decodes int
}

func (d *decodeCounter) Decode(ids []int) string {
	d.decodes++
	return d.fakeTokenizer.Decode(ids)
}

func TestMaskedScorerDecodesOnlyForDebug(t *testing.T) {
	parts := []string{"London is the", "of Great Britain."}
	cands := [][]string{{"capital", "city"}}
	// radius clamps to one token, so the gap context is truncated
	opts := Options{MaxContextTokens: 16, MaxCandidateTokens: 3}

	quiet := &decodeCounter{fakeTokenizer: newFakeTokenizer()}
	s, err := NewMaskedScorer(quiet, model.NewHashModel(quiet.VocabSize()), opts)
	require.NoError(t, err)
	_, err = s.ScoreSentence(context.Background(), parts, cands)
	require.NoError(t, err)
	assert.Zero(t, quiet.decodes)

	info := zerolog.New(io.Discard).Level(zerolog.InfoLevel)
	opts.Logger = &info
	s, err = NewMaskedScorer(quiet, model.NewHashModel(quiet.VocabSize()), opts)
	require.NoError(t, err)
	_, err = s.ScoreSentence(context.Background(), parts, cands)
	require.NoError(t, err)
	assert.Zero(t, quiet.decodes)

	debug := zerolog.New(io.Discard).Level(zerolog.DebugLevel)
	opts.Logger = &debug
	verbose := &decodeCounter{fakeTokenizer: newFakeTokenizer()}
	s, err = NewMaskedScorer(verbose, model.NewHashModel(verbose.VocabSize()), opts)
	require.NoError(t, err)
	_, err = s.ScoreSentence(context.Background(), parts, cands)
	require.NoError(t, err)
	assert.Equal(t, 1, verbose.decodes)
}
