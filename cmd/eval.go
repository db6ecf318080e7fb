package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jackychen-2/job-application-monitor/internal/eval"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Replay a labeled email dataset and report linking accuracy",
	Run: func(cmd *cobra.Command, _ []string) {
		runEval(cmd)
	},
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringP("dataset", "f", "", "path to the labeled dataset file")
	evalCmd.MarkFlagRequired("dataset")
}

func runEval(cmd *cobra.Command) {
	ctx := context.Background()

	logger := newLogger()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	cases, err := eval.LoadCases(cmd.Flag("dataset").Value.String())
	if err != nil {
		logger.Fatal("loading the dataset", zap.Error(err))
	}
	logger.Info("dataset loaded", zap.Int("cases", len(cases)))

	resolver := newResolver(ctx, config, logger)
	harness := eval.NewHarness(resolver, logger)

	report, err := harness.Run(ctx, cases)
	if err != nil {
		logger.Fatal("replay failed", zap.Error(err))
	}

	fmt.Printf("cases: %d\ncorrect: %d\naccuracy: %.1f%%\n",
		report.Total, report.Correct, report.Accuracy()*100,
	)
	for _, m := range report.Mismatches {
		fmt.Printf("case %d (%s): expected %s, got %s via %s\n",
			m.Index, m.Subject, m.Expected, m.Actual, m.Method,
		)
	}
}
