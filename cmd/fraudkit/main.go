// Command fraudkit 训练欺诈检测模型并提供在线打分。
//
//	fraudkit train [--config pipeline.yaml] [--search]
//	fraudkit serve
//	fraudkit score [--input requests.jsonl]
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rushteam/fraudkit/config"
	"github.com/rushteam/fraudkit/pkg/logx"
)

var (
	app    *config.App
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "fraudkit",
	Short: "Credit-card fraud detection: training pipeline and scoring service",
	Long: `fraudkit trains a gradient-boosted fraud classifier from transaction CSVs,
calibrates an F1-optimal decision threshold, persists the artifacts and serves
predictions over HTTP.

Configuration is read from the environment (and an optional .env file).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if app, err = config.LoadApp(); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger = logx.New(app.LogLevel, app.LogFormat)
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
