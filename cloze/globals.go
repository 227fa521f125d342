package internal

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

var (
	DefaultAppName        = "clozescore"
	DefaultAppCMDShortCut = "clozescore"
	DefaultConfigPath     = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultModelDir       = filepath.Join(DefaultConfigPath, "models")
	DefaultGlobalConfig   = filepath.Join(DefaultConfigPath, "config.yaml")

	// Masked (BERT) backend defaults
	DefaultMaskedVocabPath        = filepath.Join(DefaultModelDir, "bert-base-uncased", "vocab.txt")
	DefaultMaskedModelPath        = filepath.Join(DefaultModelDir, "bert-base-uncased", "model.onnx")
	DefaultMaskedMaxContextTokens = 512
	DefaultMaxCandidateTokens     = 128
	DefaultBatchSize              = 16

	// Causal (GPT-2) backend defaults
	DefaultCausalVocabPath        = filepath.Join(DefaultModelDir, "gpt2", "vocab.json")
	DefaultCausalMergesPath       = filepath.Join(DefaultModelDir, "gpt2", "merges.txt")
	DefaultCausalModelPath        = filepath.Join(DefaultModelDir, "gpt2", "model.onnx")
	DefaultCausalMaxContextTokens = 1024
	DefaultStride                 = 512

	DefaultModelKind = "onnx"
	DefaultLogLevel  = "info"
)

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// GetLogger returns a properly configured zerolog logger instance
func GetLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// GetLeveledLogger returns GetLogger filtered at the named level.
// Unknown level names fall back to info.
func GetLeveledLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return GetLogger().Level(lvl)
}
