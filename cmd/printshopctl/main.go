package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"printshop/internal/app"
	"printshop/internal/config"
	"printshop/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand(openFromEnv)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "printshopctl: %v\n", err)
		os.Exit(1)
	}
}

// opener connects to the configured backends.
type opener func(ctx context.Context) (*app.App, error)

func openFromEnv(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// Keep stdout clean for command output.
	log, err := logger.New(cfg.Env, "warn")
	if err != nil {
		return nil, err
	}
	return app.Open(ctx, cfg, log)
}

func newRootCommand(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "printshopctl",
		Short: "Admin CLI for certificates, careers and the shop",
		Long: `printshopctl talks to the same store as the API server. It verifies certificates,
renders or archives verification reports, exports collections as CSV and manages admin accounts.
Backends are selected with the same environment variables the server reads.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newVerifyCmd(open),
		newReportCmd(open),
		newArchiveCmd(open),
		newExportCmd(open),
		newAdminCmd(open),
	)
	return cmd
}

// withApp opens the backends for the duration of fn.
func withApp(cmd *cobra.Command, open opener, fn func(a *app.App) error) error {
	a, err := open(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
