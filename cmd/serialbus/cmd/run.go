package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/nfrund/serialbus/internal/app"
	"github.com/nfrund/serialbus/internal/demo"
	"github.com/nfrund/serialbus/internal/server"
)

var (
	runScenario string
	runTimeUnit time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Play a scenario against the shared executor",
	Long: `Build the scenario's topics, publish at each emission's offset and print a
line per subscriber call:

  <elapsed>s:	<event>	<subscriber>

Without --scenario the built-in one is used: ten immediate subscribers, a
hundred batched ones, the batched event emitted at 0 and the immediate one at
10, 20 and 50 time units.

Examples:
  serialbus run
  serialbus run --time-unit 100ms
  serialbus run --scenario scenarios/orders.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := loadScenario(runScenario)
		if err != nil {
			return err
		}
		unit := runTimeUnit
		if unit <= 0 {
			unit = cfg.TimeUnit
		}

		ctx, stop := server.SignalContext(cmd.Context())
		defer stop()

		return withApp(ctx, func(a *app.App) error {
			runner, err := demo.NewRunner(a.Factory, sc, cmd.OutOrStdout(),
				demo.WithTimeUnit(unit),
				demo.WithLogger(logger))
			if err != nil {
				return err
			}
			return runner.Run(ctx)
		})
	},
}

func init() {
	runCmd.Flags().StringVar(&runScenario, "scenario", "", "YAML scenario file (default: built-in scenario)")
	runCmd.Flags().DurationVar(&runTimeUnit, "time-unit", 0, "length of one scenario time unit (default: SERIALBUS_TIME_UNIT)")
	rootCmd.AddCommand(runCmd)
}
