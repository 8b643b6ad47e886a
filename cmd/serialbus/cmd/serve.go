package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nfrund/serialbus/internal/app"
	"github.com/nfrund/serialbus/internal/demo"
	"github.com/nfrund/serialbus/internal/server"
)

var (
	serveAddr     string
	serveScenario string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scenario's topics over HTTP",
	Long: `Build the scenario's topics without playing its emissions and start the
admin server. Publishes posted to /topics/<name>/publish reach the topic
through the in-memory bridge and print like "run" does.

Endpoints:
  GET  /topics                 registered topics (?priority=immediate|batched)
  GET  /topics/:name           one topic
  POST /topics/:name/publish   {"payload": "..."}
  GET  /stats                  executor and catalogue statistics
  GET  /metrics                Prometheus metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := loadScenario(serveScenario)
		if err != nil {
			return err
		}
		addr := serveAddr
		if addr == "" {
			addr = cfg.HTTPAddr
		}

		ctx, stop := server.SignalContext(cmd.Context())
		defer stop()

		return withApp(ctx, func(a *app.App) error {
			runner, err := demo.NewRunner(a.Factory, sc, cmd.OutOrStdout(),
				demo.WithTimeUnit(cfg.TimeUnit),
				demo.WithLogger(logger))
			if err != nil {
				return err
			}
			if err := runner.Attach(ctx, a.Bridge); err != nil {
				return err
			}
			logger.Info("Topics attached to bridge", "count", a.Manager.Count())

			srv := server.New(server.Deps{
				Manager:      a.Manager,
				Executor:     a.Executor,
				Bridge:       a.Bridge,
				Gatherer:     a.Registry,
				Logger:       logger,
				PublishRate:  cfg.PublishRate,
				PublishBurst: cfg.PublishBurst,
			})
			return srv.Run(ctx, addr)
		})
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: SERIALBUS_HTTP_ADDR)")
	serveCmd.Flags().StringVar(&serveScenario, "scenario", "", "YAML scenario file (default: built-in scenario)")
	rootCmd.AddCommand(serveCmd)
}
