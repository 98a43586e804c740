package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/budget-tracker/internal/app"
	"github.com/dvloznov/budget-tracker/internal/config"
	"github.com/dvloznov/budget-tracker/internal/logger"
)

var (
	userID  string
	timeout time.Duration

	application *app.App
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "budget",
	Short:         "Import bank exports and report on spending",
	Long:          `A CLI tool to import bank CSV/XLSX exports, categorize transactions and report on budgets.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		// console output is for results; logs only when something is off
		if os.Getenv("LOG_LEVEL") == "" {
			cfg.LogLevel = "warn"
		}
		log := logger.New(cfg.LogLevel)

		ctx := logger.WithContext(cmd.Context(), log)
		cmd.SetContext(ctx)

		application, err = app.New(ctx, cfg, log)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if application == nil {
			return nil
		}
		return application.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", os.Getenv("BUDGET_USER"), "User id (or set BUDGET_USER env)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Abort the command after this long")

	rootCmd.AddCommand(importCmd, uploadCmd, summaryCmd, transactionsCmd, categoriesCmd, learnCmd, rehashCmd)
}

// commandContext bounds a command by --timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func requireUser() error {
	if userID == "" {
		return errUserRequired
	}
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		printError(err.Error())
		if application != nil {
			_ = application.Close()
		}
		os.Exit(1)
	}
}
