package main

import (
	"context"
	"fmt"

	internal "github.com/ZanzyTHEbar/cloze-scorer/cloze"
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/config"
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/model"
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/service"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	backend    string
	logLevel   string
}

// scorer is the part of *service.Service the commands drive.
type scorer interface {
	Score(ctx context.Context, backend string, req *service.Request) (*service.Response, error)
}

func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           internal.DefaultAppCMDShortCut,
		Short:         "Score cloze test candidates with masked or causal language models",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (default searches ./config.yaml and "+internal.DefaultGlobalConfig+")")
	root.PersistentFlags().StringVarP(&flags.backend, "backend", "b", service.BackendMasked, "scoring backend: masked, causal or masked-sentence")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log.level from the config")

	root.AddCommand(newScoreCmd(flags), newBatchCmd(flags), newProvidersCmd(flags))
	return root
}

func loadConfig(flags *rootFlags) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	level := cfg.Log.Level
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	return cfg, internal.GetLeveledLogger(level), nil
}

// openService builds a service with only the selected backend.
func openService(flags *rootFlags) (*service.Service, zerolog.Logger, error) {
	cfg, log, err := loadConfig(flags)
	if err != nil {
		return nil, log, err
	}
	svc, err := service.NewService(cfg, log, flags.backend)
	if err != nil {
		return nil, log, fmt.Errorf("start %s backend: %w", flags.backend, err)
	}
	return svc, log, nil
}

func newProvidersCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List ONNX Runtime execution providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(flags)
			if err != nil {
				return err
			}
			eps, err := model.ListONNXProviders(model.RuntimeOptions{
				SharedLibraryPath: cfg.ONNX.SharedLibraryPath,
				ExecutionProvider: cfg.ONNX.ExecutionProvider,
				DeviceID:          cfg.ONNX.DeviceID,
			})
			if err != nil {
				return err
			}
			for _, ep := range eps {
				fmt.Fprintln(cmd.OutOrStdout(), ep)
			}
			return nil
		},
	}
}
