package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked applications",
	Run: func(cmd *cobra.Command, _ []string) {
		list(cmd)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolP("history", "H", false, "show the status history of each application")
}

func list(cmd *cobra.Command) {
	logger := newLogger()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	st := openStore(config, logger)

	apps, err := st.Applications()
	if err != nil {
		logger.Fatal("listing applications", zap.Error(err))
	}

	withHistory := cmd.Flag("history").Value.String() == "true"
	for _, a := range apps {
		lastEmail := "-"
		if a.EmailDate != nil {
			lastEmail = a.EmailDate.UTC().Format("2006-01-02")
		}
		fmt.Printf("%d\t%s\t%s\t%s\tlast email %s\n", a.ID, a.Company, a.JobTitle, a.Status, lastEmail)

		if !withHistory {
			continue
		}
		history, err := st.HistoryFor(a.ID)
		if err != nil {
			logger.Fatal("listing status history", zap.Int64("application_id", a.ID), zap.Error(err))
		}
		for _, h := range history {
			old := h.OldStatus
			if old == "" {
				old = "-"
			}
			fmt.Printf("\t%s\t%s -> %s\t%s\n",
				h.ChangedAt.UTC().Format("2006-01-02 15:04"), old, h.NewStatus, h.ChangeSource,
			)
		}
	}
	fmt.Printf("%d applications\n", len(apps))
}
