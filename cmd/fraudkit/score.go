package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rushteam/fraudkit/audit"
	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/server"
	"github.com/rushteam/fraudkit/store"
)

var scoreInput string

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score JSON-lines transactions with the persisted artifacts",
	Long: `Read one JSON object per line (stdin by default) and print one
{"probability":..,"prediction":..} line per input.

Example:
  echo '{"amt":812.4,"age":37,"gender":"F",...}' | fraudkit score`,
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVar(&scoreInput, "input", "", "Input file (default: stdin)")
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var in io.Reader = cmd.InOrStdin()
	if scoreInput != "" {
		f, err := os.Open(scoreInput)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	s, err := store.Open(ctx, app.StoreOptions())
	if err != nil {
		return err
	}
	defer s.Close()

	svc, err := loadService(ctx, s, audit.Nop{}, nil)
	if err != nil {
		return err
	}

	return scoreLines(ctx, svc, in, cmd.OutOrStdout())
}

// scoreLines 每行一个 JSON 记录，输出未经舍入的概率
func scoreLines(ctx context.Context, scorer server.Scorer, in io.Reader, out io.Writer) error {
	enc := json.NewEncoder(out)
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for line := 1; sc.Scan(); line++ {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var rec core.Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		res, err := scorer.Score(ctx, rec)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := enc.Encode(server.PredictResponse{
			Probability: res.Probability,
			Prediction:  res.Prediction,
		}); err != nil {
			return err
		}
	}
	return sc.Err()
}
