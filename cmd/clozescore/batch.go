package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/ZanzyTHEbar/cloze-scorer/cloze/common"
	"github.com/ZanzyTHEbar/cloze-scorer/cloze/service"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
)

// batchLine is one output line: either a response or the error for that
// input line.
type batchLine struct {
	Line     int               `json:"line"`
	Response *service.Response `json:"response,omitempty"`
	Error    string            `json:"error,omitempty"`
	Kind     string            `json:"kind,omitempty"`
}

func newBatchCmd(flags *rootFlags) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "batch [requests.jsonl]",
		Short: "Score JSON-lines requests concurrently; output keeps input order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, closeIn, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer closeIn()

			svc, log, err := openService(flags)
			if err != nil {
				return err
			}
			defer svc.Close()

			return scoreBatch(cmd.Context(), svc, flags.backend, in, cmd.OutOrStdout(), workers, log)
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", min(runtime.NumCPU(), 8), "requests scored concurrently")
	return cmd
}

// scoreBatch scores every non-blank line with a bounded pool sharing svc.
// A bad line yields an error entry and does not stop the batch.
func scoreBatch(ctx context.Context, svc scorer, backend string, in io.Reader, out io.Writer, workers int, log zerolog.Logger) error {
	var lines []string
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read requests: %w", err)
	}

	results := make([]*batchLine, len(lines))
	p := pool.New().WithMaxGoroutines(max(workers, 1)).WithContext(ctx)
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		p.Go(func(ctx context.Context) error {
			results[i] = scoreLine(ctx, svc, backend, i+1, line)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	failed := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Error != "" {
			failed++
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	log.Info().Int("requests", len(lines)).Int("failed", failed).Msg("Batch finished")
	return nil
}

func scoreLine(ctx context.Context, svc scorer, backend string, n int, line string) *batchLine {
	var req service.Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return &batchLine{Line: n, Error: fmt.Sprintf("decode request: %v", err), Kind: common.KindMalformedInput.String()}
	}
	resp, err := svc.Score(ctx, backend, &req)
	if err != nil {
		return &batchLine{Line: n, Error: err.Error(), Kind: common.KindOf(err).String()}
	}
	return &batchLine{Line: n, Response: resp}
}
