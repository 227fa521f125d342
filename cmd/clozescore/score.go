package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ZanzyTHEbar/cloze-scorer/cloze/service"

	"github.com/spf13/cobra"
)

func newScoreCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "score [request.json]",
		Short: "Score one JSON request read from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, closeIn, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer closeIn()

			svc, _, err := openService(flags)
			if err != nil {
				return err
			}
			defer svc.Close()

			return scoreOne(cmd.Context(), svc, flags.backend, in, cmd.OutOrStdout())
		},
	}
}

// openInput returns the named file, or stdin when no argument or "-" is given.
func openInput(cmd *cobra.Command, args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("open request: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func scoreOne(ctx context.Context, svc scorer, backend string, in io.Reader, out io.Writer) error {
	var req service.Request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	resp, err := svc.Score(ctx, backend, &req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
