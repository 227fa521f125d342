package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/cloze-scorer/cloze"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Masked MaskedConfig `mapstructure:"masked"`
	Causal CausalConfig `mapstructure:"causal"`
	ONNX   ONNXConfig   `mapstructure:"onnx"`
}

// LogConfig stores logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// MaskedConfig stores the masked language model (BERT) backend settings.
type MaskedConfig struct {
	VocabPath          string `mapstructure:"vocabPath"`
	ModelPath          string `mapstructure:"modelPath"`
	ModelKind          string `mapstructure:"modelKind"`
	MaxContextTokens   int    `mapstructure:"maxContextTokens"`
	MaxCandidateTokens int    `mapstructure:"maxCandidateTokens"`
	BatchSize          int    `mapstructure:"batchSize"`
}

// CausalConfig stores the causal language model (GPT-2) backend settings.
type CausalConfig struct {
	VocabPath          string `mapstructure:"vocabPath"`
	MergesPath         string `mapstructure:"mergesPath"`
	ModelPath          string `mapstructure:"modelPath"`
	ModelKind          string `mapstructure:"modelKind"`
	MaxContextTokens   int    `mapstructure:"maxContextTokens"`
	MaxCandidateTokens int    `mapstructure:"maxCandidateTokens"`
	Stride             int    `mapstructure:"stride"`
}

// ONNXConfig stores ONNX Runtime settings shared by both backends.
type ONNXConfig struct {
	SharedLibraryPath string `mapstructure:"sharedLibraryPath"`
	ExecutionProvider string `mapstructure:"executionProvider"`
	DeviceID          int    `mapstructure:"deviceID"`
	IntraOpThreads    int    `mapstructure:"intraOpThreads"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("..")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetDefault("log.level", internal.DefaultLogLevel)

	v.SetDefault("masked.vocabPath", internal.DefaultMaskedVocabPath)
	v.SetDefault("masked.modelPath", internal.DefaultMaskedModelPath)
	v.SetDefault("masked.modelKind", internal.DefaultModelKind)
	v.SetDefault("masked.maxContextTokens", internal.DefaultMaskedMaxContextTokens)
	v.SetDefault("masked.maxCandidateTokens", internal.DefaultMaxCandidateTokens)
	v.SetDefault("masked.batchSize", internal.DefaultBatchSize)

	v.SetDefault("causal.vocabPath", internal.DefaultCausalVocabPath)
	v.SetDefault("causal.mergesPath", internal.DefaultCausalMergesPath)
	v.SetDefault("causal.modelPath", internal.DefaultCausalModelPath)
	v.SetDefault("causal.modelKind", internal.DefaultModelKind)
	v.SetDefault("causal.maxContextTokens", internal.DefaultCausalMaxContextTokens)
	v.SetDefault("causal.maxCandidateTokens", internal.DefaultMaxCandidateTokens)
	v.SetDefault("causal.stride", internal.DefaultStride)

	v.SetDefault("onnx.executionProvider", "cpu")
	v.SetDefault("onnx.deviceID", 0)
	v.SetDefault("onnx.intraOpThreads", 0)

	v.AutomaticEnv()                                   // Read in environment variables that match
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // masked.batchSize becomes MASKED_BATCHSIZE

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults are used.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects knobs the scorers cannot work with.
func (c *Config) Validate() error {
	m := c.Masked
	if m.MaxContextTokens <= 0 || m.MaxCandidateTokens <= 0 || m.BatchSize <= 0 {
		return fmt.Errorf("masked: maxContextTokens, maxCandidateTokens and batchSize must be positive")
	}
	// [CLS] + at least one context token on each side + [SEP]
	if m.MaxCandidateTokens+4 > m.MaxContextTokens {
		return fmt.Errorf("masked: maxCandidateTokens %d does not fit in maxContextTokens %d", m.MaxCandidateTokens, m.MaxContextTokens)
	}
	cz := c.Causal
	if cz.MaxContextTokens <= 0 || cz.MaxCandidateTokens <= 0 || cz.Stride <= 0 {
		return fmt.Errorf("causal: maxContextTokens, maxCandidateTokens and stride must be positive")
	}
	if cz.Stride > cz.MaxContextTokens {
		return fmt.Errorf("causal: stride %d exceeds maxContextTokens %d", cz.Stride, cz.MaxContextTokens)
	}
	return nil
}
