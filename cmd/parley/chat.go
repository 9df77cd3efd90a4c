package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/cli"
	"github.com/aretw0/parley/internal/presentation/tui"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the loaded handlers from the terminal",
	Long: `Starts an interactive session. Each line is one turn, written as
"domain.intent slot=value ... @confidence", with alternatives separated by "|".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		user, _ := cmd.Flags().GetString("user")
		client, _ := cmd.Flags().GetString("client")
		plain, _ := cmd.Flags().GetBool("plain")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		app, err := cli.Build(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to build engine: %w", err)
		}
		defer func() {
			if err := app.Close(context.Background()); err != nil {
				logger.Error("Engine close failed", "error", err)
			}
		}()

		styled := !plain && tui.IsTerminal(os.Stdout)
		if styled {
			tui.PrintBanner(os.Stdout, parley.Version)
		}
		chat := &cli.Chat{
			Proc:   app.Engine,
			Client: domain.ClientContext{UserID: user, ClientID: client},
			Render: tui.NewRenderer(styled),
			Wait:   app.Engine.Wait,
		}
		return chat.Run(ctx, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().String("user", "local", "User ID for the session")
	chatCmd.Flags().String("client", "terminal", "Client ID for the session")
	chatCmd.Flags().Bool("plain", false, "Disable styled output")
}
