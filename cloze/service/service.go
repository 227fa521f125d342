// Package service is the library-first entry point: it validates cloze
// requests, splits them into sentences and dispatches each sentence to the
// configured scorer.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/cloze-scorer/cloze/common"
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/config"
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/model"
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/scoring"
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/segment"
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/tokenizer"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrUnknownBackend = errors.New("unknown scoring backend")

// Request is one cloze item: len(TextParts) == len(Candidates)+1.
type Request struct {
	TextParts  []string   `json:"text_parts"`
	Candidates [][]string `json:"candidates"`
}

// Response holds one distribution per gap, in request order.
type Response struct {
	RequestID string      `json:"request_id"`
	Backend   string      `json:"backend"`
	Results   [][]float64 `json:"results"`
}

type backend struct {
	scorer    scoring.SentenceScorer
	validator *validator
}

// Service is safe for concurrent Score calls once constructed.
type Service struct {
	seg      *segment.Segmenter
	log      zerolog.Logger
	backends map[string]backend
	models   []model.LanguageModel
}

// New returns a Service with no backends; see Register.
func New(seg *segment.Segmenter, log zerolog.Logger) *Service {
	return &Service{seg: seg, log: log, backends: make(map[string]backend)}
}

// Register adds a scorer under name. tok and maxCandidateTokens drive the
// request validation for that backend.
func (s *Service) Register(name string, scorer scoring.SentenceScorer, tok tokenizer.Tokenizer, maxCandidateTokens int) {
	s.backends[name] = backend{scorer: scorer, validator: newValidator(tok, maxCandidateTokens)}
}

// NewService builds tokenizers, models and the sentence detector once for the
// requested backends (all of them when none are named).
func NewService(cfg *config.Config, log zerolog.Logger, names ...string) (*Service, error) {
	punkt, err := segment.NewPunkt()
	if err != nil {
		return nil, err
	}
	s := New(segment.New(punkt), log)
	if len(names) == 0 {
		names = Backends
	}

	var maskedTok tokenizer.Tokenizer
	var maskedLM model.LanguageModel
	masked := func() (tokenizer.Tokenizer, model.LanguageModel, error) {
		if maskedTok != nil {
			return maskedTok, maskedLM, nil
		}
		tok, err := tokenizer.NewWordPiece(cfg.Masked.VocabPath, true)
		if err != nil {
			return nil, nil, fmt.Errorf("masked tokenizer: %w", err)
		}
		lm, err := model.New(modelOptions(model.Masked, cfg.Masked.ModelKind, cfg.Masked.ModelPath, tok.VocabSize(), cfg.ONNX))
		if err != nil {
			return nil, nil, fmt.Errorf("masked model: %w", err)
		}
		maskedTok, maskedLM = tok, lm
		s.models = append(s.models, lm)
		return tok, lm, nil
	}

	for _, name := range names {
		var err error
		switch name {
		case BackendMasked:
			err = s.registerMasked(cfg, masked, false)
		case BackendMaskedSentence:
			err = s.registerMasked(cfg, masked, true)
		case BackendCausal:
			err = s.registerCausal(cfg)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownBackend, name)
		}
		if err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Service) registerMasked(cfg *config.Config, build func() (tokenizer.Tokenizer, model.LanguageModel, error), sentence bool) error {
	tok, lm, err := build()
	if err != nil {
		return err
	}
	name := BackendMasked
	if sentence {
		name = BackendMaskedSentence
	}
	l := s.log.With().Str("backend", name).Logger()
	opts := maskedScoringOptions(cfg.Masked, &l)

	var scorer scoring.SentenceScorer
	if sentence {
		scorer, err = scoring.NewPseudoLikelihoodScorer(tok, lm, opts)
	} else {
		scorer, err = scoring.NewMaskedScorer(tok, lm, opts)
	}
	if err != nil {
		return err
	}
	s.Register(name, scorer, tok, cfg.Masked.MaxCandidateTokens)
	return nil
}

func (s *Service) registerCausal(cfg *config.Config) error {
	tok, err := tokenizer.NewByteLevelBPE(cfg.Causal.VocabPath, cfg.Causal.MergesPath)
	if err != nil {
		return fmt.Errorf("causal tokenizer: %w", err)
	}
	lm, err := model.New(modelOptions(model.Causal, cfg.Causal.ModelKind, cfg.Causal.ModelPath, tok.VocabSize(), cfg.ONNX))
	if err != nil {
		return fmt.Errorf("causal model: %w", err)
	}
	s.models = append(s.models, lm)
	l := s.log.With().Str("backend", BackendCausal).Logger()
	s.Register(BackendCausal, scoring.NewPerplexityScorer(tok, lm, causalScoringOptions(cfg.Causal, &l)), tok, cfg.Causal.MaxCandidateTokens)
	return nil
}

// Close releases every model the service built.
func (s *Service) Close() error {
	var errs []error
	for _, m := range s.models {
		errs = append(errs, m.Close())
	}
	s.models = nil
	return errors.Join(errs...)
}

// Score validates req, splits it into sentences and scores every gap with the
// named backend.
func (s *Service) Score(ctx context.Context, name string, req *Request) (*Response, error) {
	start := time.Now()
	b, ok := s.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	id := uuid.NewString()
	log := s.log.With().Str("request_id", id).Str("backend", name).Logger()

	if err := b.validator.validate(req); err != nil {
		log.Debug().Err(err).Msg("Rejected request")
		return nil, err
	}
	sents, err := s.seg.Split(req.TextParts, req.Candidates)
	if err != nil {
		return nil, err
	}

	results := make([][]float64, len(req.Candidates))
	for _, sent := range sents {
		if sent.Gaps() == 0 {
			continue
		}
		out, err := b.scorer.ScoreSentence(ctx, sent.Parts, sent.Candidates)
		if err != nil {
			return nil, passageGap(err, sent.FirstGap)
		}
		copy(results[sent.FirstGap:], out)
	}

	log.Info().
		Int("gaps", len(req.Candidates)).
		Int("sentences", len(sents)).
		Dur("took", time.Since(start)).
		Msg("Scored request")
	return &Response{RequestID: id, Backend: name, Results: results}, nil
}

// passageGap rewrites a sentence-local gap index to the passage index.
func passageGap(err error, firstGap int) error {
	var e *common.Error
	if errors.As(err, &e) && e.Gap != common.NoGap {
		e.Gap += firstGap
	}
	return err
}
