package cmd

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/nfrund/serialbus/internal/app"
	"github.com/nfrund/serialbus/internal/config"
	"github.com/nfrund/serialbus/internal/demo"
	"github.com/nfrund/serialbus/internal/logging"
)

var (
	cfg    *config.Config
	logger *slog.Logger

	// scenarioFS is where --scenario paths are read from.
	scenarioFS afero.Fs = afero.NewOsFs()
)

var rootCmd = &cobra.Command{
	Use:   "serialbus",
	Short: "Serialized publish/subscribe demo and admin server",
	Long: `serialbus runs typed topics whose subscribers all share one serial executor.

Available commands:
  run       Play a scenario and print one line per subscriber call
  serve     Expose the scenario's topics over HTTP
  topics    List or validate the scenario's topics
  version   Print the version

Use "serialbus [command] --help" for more information about a specific command.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.New(); err != nil {
			return err
		}
		logger = logging.New(cmd.ErrOrStderr(), cfg.LogFormat, cfg.LogLevel)
		return nil
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadScenario returns the built-in scenario when path is empty.
func loadScenario(path string) (*demo.Scenario, error) {
	if path == "" {
		return demo.DefaultScenario(), nil
	}
	return demo.LoadScenario(scenarioFS, path)
}

// withApp wires the application, hands it to fn and drains it afterwards.
func withApp(ctx context.Context, fn func(*app.App) error) (err error) {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if cerr := a.Close(closeCtx); err == nil {
			err = cerr
		}
	}()
	return fn(a)
}
