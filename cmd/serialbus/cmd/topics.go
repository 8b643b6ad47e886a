package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nfrund/serialbus/internal/app"
	"github.com/nfrund/serialbus/internal/demo"
	"github.com/nfrund/serialbus/internal/topicmgr"
)

var (
	topicsFormat   string
	topicsScenario string
	topicsPriority string
)

// topicsCmd represents the topics command
var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List the topics a scenario registers",
	Long: `Build the scenario's topics without publishing anything and list them as
registered in the topic catalogue.

Examples:
  serialbus topics
  serialbus topics --format json
  serialbus topics --priority batched
  serialbus topics validate orders.created

Output formats:
  table - Human-readable table format (default)
  json  - Machine-readable JSON format`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if topicsFormat != "table" && topicsFormat != "json" {
			return fmt.Errorf("unsupported output format %q, use table or json", topicsFormat)
		}
		sc, err := loadScenario(topicsScenario)
		if err != nil {
			return err
		}

		return withApp(context.Background(), func(a *app.App) error {
			if _, err := demo.NewRunner(a.Factory, sc, io.Discard); err != nil {
				return err
			}

			entries := a.Manager.List()
			if topicsPriority != "" {
				entries = a.Manager.ListByPriority(topicsPriority)
			}

			out := cmd.OutOrStdout()
			if topicsFormat == "json" {
				return displayTopicsJSON(out, entries)
			}
			displayTopicsTable(out, entries)
			return nil
		})
	},
}

var topicsValidateCmd = &cobra.Command{
	Use:   "validate <topic-name>",
	Short: "Validate a topic name",
	Long: `Check a topic name against the catalogue's naming rules: lowercase
dot-separated segments, each starting with a letter, no reserved prefix
(system., internal., debug.).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := topicmgr.NewManager().ValidateTopicName(args[0]); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "❌ Topic name validation failed: %v\n", err)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Topic name '%s' is valid\n", args[0])
		return nil
	},
}

func init() {
	topicsCmd.Flags().StringVar(&topicsFormat, "format", "table", "output format: table or json")
	topicsCmd.Flags().StringVar(&topicsScenario, "scenario", "", "YAML scenario file (default: built-in scenario)")
	topicsCmd.Flags().StringVar(&topicsPriority, "priority", "", "only list topics of this priority")
	topicsCmd.AddCommand(topicsValidateCmd)
	rootCmd.AddCommand(topicsCmd)
}
