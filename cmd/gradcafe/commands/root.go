package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"gradcafe_scraper/internal/app"
	"gradcafe_scraper/internal/config"
	"gradcafe_scraper/internal/logger"
)

var (
	cfg      *config.Config
	appLog   *slog.Logger
	logLevel *slog.LevelVar
)

var rootCmd = &cobra.Command{
	Use:           "gradcafe",
	Short:         "gradcafe scrapes, cleans and loads GradCafe admission results.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Init(func(c *config.Config) {
			if logLevel != nil {
				logLevel.Set(logger.ParseLevel(c.LogLevel))
			}
		})
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		appLog, logLevel = logger.New(cfg.LogLevel)
		slog.SetDefault(appLog)
		return nil
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp builds the application for one command and closes it afterwards.
func withApp(ctx context.Context, fn func(*app.App) error) error {
	a, err := app.New(ctx, cfg, appLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			appLog.Warn("closing database", "err", err)
		}
	}()
	return fn(a)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
