package service

import (
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/config"
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/model"
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/scoring"

	"github.com/rs/zerolog"
)

// Backend names accepted by Score.
const (
	BackendMasked         = "masked"
	BackendCausal         = "causal"
	BackendMaskedSentence = "masked-sentence"
)

// Backends lists every backend in a stable order.
var Backends = []string{BackendMasked, BackendCausal, BackendMaskedSentence}

func maskedScoringOptions(c config.MaskedConfig, log *zerolog.Logger) scoring.Options {
	return scoring.Options{
		MaxContextTokens:   c.MaxContextTokens,
		MaxCandidateTokens: c.MaxCandidateTokens,
		BatchSize:          c.BatchSize,
		Logger:             log,
	}
}

func causalScoringOptions(c config.CausalConfig, log *zerolog.Logger) scoring.Options {
	return scoring.Options{
		MaxContextTokens:   c.MaxContextTokens,
		MaxCandidateTokens: c.MaxCandidateTokens,
		Stride:             c.Stride,
		Logger:             log,
	}
}

func runtimeOptions(c config.ONNXConfig) model.RuntimeOptions {
	return model.RuntimeOptions{
		SharedLibraryPath: c.SharedLibraryPath,
		ExecutionProvider: c.ExecutionProvider,
		DeviceID:          c.DeviceID,
		IntraOpThreads:    c.IntraOpThreads,
	}
}

func modelOptions(kind model.Kind, backend, path string, vocab int, onnx config.ONNXConfig) model.Options {
	return model.Options{
		Backend:   backend,
		Kind:      kind,
		ModelPath: path,
		VocabSize: vocab,
		Runtime:   runtimeOptions(onnx),
	}
}
