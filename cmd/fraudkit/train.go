package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rushteam/fraudkit/config"
	_ "github.com/rushteam/fraudkit/config/builders"
	"github.com/rushteam/fraudkit/pipeline"
	"github.com/rushteam/fraudkit/store"
)

var (
	trainConfigPath string
	trainSearch     bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run the training pipeline and persist artifacts",
	Long: `Run ingest -> validate -> transform -> train -> evaluate -> persist.

Without --config the built-in pipeline reads artifacts/train.csv and
artifacts/test.csv. --search replaces the fixed-parameter training stage
with randomized hyperparameter search.

Examples:
  fraudkit train
  fraudkit train --search
  fraudkit train --config pipeline.yaml`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().StringVar(&trainConfigPath, "config", "", "Pipeline config file (.yaml/.yml/.json)")
	trainCmd.Flags().BoolVar(&trainSearch, "search", false, "Use hyperparameter search (ignored with --config)")
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg, err := loadPipelineConfig()
	if err != nil {
		return err
	}
	if err := config.ValidatePipelineConfig(cfg); err != nil {
		return err
	}
	for i := range cfg.Pipeline.Stages {
		sc := &cfg.Pipeline.Stages[i]
		if sc.Type != "persist" {
			continue
		}
		if sc.Config == nil {
			sc.Config = map[string]any{}
		}
		if _, ok := sc.Config["prefix"]; !ok {
			sc.Config["prefix"] = app.ArtifactPrefix
		}
	}

	p, err := cfg.BuildPipeline(config.DefaultFactory())
	if err != nil {
		return err
	}
	p.Logger = logger

	s, err := store.Open(ctx, app.StoreOptions())
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := p.Run(ctx, &pipeline.State{Store: s})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run_id:         %s\n", st.RunID)
	fmt.Fprintf(out, "model:          %s\n", st.ModelKey)
	fmt.Fprintf(out, "best_threshold: %.6f\n", st.Threshold)
	fmt.Fprintf(out, "pr_auc:         %.4f\n", st.Report.PRAUC)
	if st.Search != nil {
		fmt.Fprintf(out, "cv_score:       %.4f\n", st.Search.CVScore)
	}
	csv, err := st.Report.CSV()
	if err != nil {
		return err
	}
	_, err = out.Write(csv)
	return err
}

func loadPipelineConfig() (*pipeline.Config, error) {
	if trainConfigPath == "" {
		return config.DefaultPipelineConfig(trainSearch), nil
	}
	switch strings.ToLower(filepath.Ext(trainConfigPath)) {
	case ".json":
		return pipeline.LoadFromJSON(trainConfigPath)
	default:
		return pipeline.LoadFromYAML(trainConfigPath)
	}
}
