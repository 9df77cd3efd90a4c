package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/aretw0/parley/internal/cli"
	httpAdapter "github.com/aretw0/parley/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var handlersCmd = &cobra.Command{
	Use:   "handlers",
	Short: "List the handlers the engine would load",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx := context.Background()
		app, err := cli.Build(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to build engine: %w", err)
		}
		defer app.Close(ctx)

		summaries := httpAdapter.Summarize(app.Engine.Handlers())
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summaries)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tVERSION\tDOMAIN\tGRAPH\tNAME")
		for _, s := range summaries {
			graph := "-"
			if s.HasGraph {
				graph = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Version, s.Domain, graph, strings.TrimSpace(s.Name))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(handlersCmd)
	handlersCmd.Flags().Bool("json", false, "Print JSON instead of a table")
}
