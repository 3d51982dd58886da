// Command campuscms runs the school site and offers maintenance commands
// for its home page content.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eringen/campuscms"
	"github.com/eringen/campuscms/reconcile"
)

// version is set at build time via ldflags.
var version = "dev"

var envFile string

var rootCmd = &cobra.Command{
	Use:           "campuscms",
	Short:         "School web site with an editable home page",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the site over HTTP",
	RunE:  runServe,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored home page content as JSON",
	RunE:  runShow,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default home page and delete its uploaded assets",
	RunE:  runReset,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the campuscms version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "campuscms %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", campuscms.EnvOr("CAMPUSCMS_ENV_FILE", ".env"), "dotenv file to load before reading the environment")
	resetCmd.Flags().Bool("yes", false, "confirm the reset")
	rootCmd.AddCommand(serveCmd, showCmd, resetCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openApp(ctx context.Context) (*campuscms.App, error) {
	cfg, err := campuscms.LoadConfig(envFile)
	if err != nil {
		return nil, err
	}
	app := campuscms.New(cfg, campuscms.ViewFuncs{})
	if err := app.Init(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	errc := make(chan error, 1)
	go func() { errc <- app.Serve() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	app.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		app.Log.Error("shutdown", zap.Error(err))
		return err
	}
	return <-errc
}

func runShow(cmd *cobra.Command, _ []string) error {
	app, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	content, err := app.Engine.Load(cmd.Context())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(content)
}

func runReset(cmd *cobra.Command, _ []string) error {
	if ok, _ := cmd.Flags().GetBool("yes"); !ok {
		return errors.New("reset deletes all home page content; rerun with --yes")
	}
	app, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	content, err := app.Engine.Reset(cmd.Context(), reconcile.Editor{Name: "cli"})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "home content reset (version %d)\n", content.Version)
	return nil
}
