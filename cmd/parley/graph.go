package main

import (
	"context"
	"fmt"

	"github.com/aretw0/parley/internal/cli"
	"github.com/aretw0/parley/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <handler-id>",
	Short: "Export a handler's conversation graph as a Mermaid diagram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		current, _ := cmd.Flags().GetString("node")

		ctx := context.Background()
		app, err := cli.Build(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to build engine: %w", err)
		}
		defer app.Close(ctx)

		for _, md := range app.Engine.Handlers() {
			if md.Identity.ID != args[0] {
				continue
			}
			if md.Graph == nil {
				return fmt.Errorf("handler %s has no conversation graph", md.Identity)
			}
			var overlay *graph.Overlay
			if current != "" {
				overlay = &graph.Overlay{CurrentNode: current}
			}
			fmt.Print(graph.GenerateMermaid(md.Graph, overlay))
			return nil
		}
		return fmt.Errorf("handler %q not found", args[0])
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("node", "", "Highlight this node as the current position")
}
