package cmd

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jackychen-2/job-application-monitor/internal/store"
)

const (
	PromptLink    = "Link to an application"
	PromptDismiss = "Dismiss review flag"
	PromptSkip    = "Skip"
	PromptExit    = "Exit"
)

var errExit = errors.New("exit requested")

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review low-confidence email links interactively",
	Run: func(_ *cobra.Command, _ []string) {
		review()
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}

func review() {
	logger := newLogger()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	st := openStore(config, logger)

	for {
		pending, err := st.PendingReview()
		if err != nil {
			logger.Fatal("listing pending reviews", zap.Error(err))
		}
		if len(pending) == 0 {
			logger.Info("nothing left to review")
			return
		}

		items := make([]string, 0, len(pending)+1)
		for _, email := range pending {
			items = append(items, fmt.Sprintf("%d: %s / %s / %s",
				email.ID, email.Subject, email.Sender, email.LinkMethod,
			))
		}
		items = append(items, PromptExit)

		selectEmail := promptui.Select{
			Label: fmt.Sprintf("%d emails need review", len(pending)),
			Items: items,
			Size:  10,
		}
		idx, _, err := selectEmail.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if idx == len(pending) {
			return
		}

		if err := reviewOne(st, &pending[idx], logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func reviewOne(st *store.Store, email *store.ProcessedEmail, logger *zap.Logger) error {
	action := promptui.Select{
		Label: fmt.Sprintf("Email %d: %s", email.ID, email.Subject),
		Items: []string{PromptLink, PromptDismiss, PromptSkip, PromptExit},
	}
	_, choice, err := action.Run()
	if err != nil {
		return err
	}

	switch choice {
	case PromptLink:
		return linkInteractively(st, email, logger)
	case PromptDismiss:
		if err := st.DismissReview(email.ID); err != nil {
			return err
		}
		logger.Info("review dismissed", zap.Int64("email_id", email.ID))
		return nil
	case PromptSkip:
		return nil
	case PromptExit:
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", choice)
	}
}

func linkInteractively(st *store.Store, email *store.ProcessedEmail, logger *zap.Logger) error {
	apps, err := st.Applications()
	if err != nil {
		return err
	}
	if len(apps) == 0 {
		logger.Info("no applications to link against")
		return nil
	}

	items := make([]string, 0, len(apps))
	for _, a := range apps {
		items = append(items, fmt.Sprintf("%d: %s / %s / %s", a.ID, a.Company, a.JobTitle, a.Status))
	}

	selectApp := promptui.Select{
		Label: "Link to which application?",
		Items: items,
		Size:  10,
	}
	idx, _, err := selectApp.Run()
	if err != nil {
		return err
	}

	if err := st.LinkManually(email.ID, apps[idx].ID); err != nil {
		return err
	}
	logger.Info("email linked",
		zap.Int64("email_id", email.ID),
		zap.Int64("application_id", apps[idx].ID),
	)
	return nil
}
