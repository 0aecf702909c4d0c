package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ORBScanner/internal/di"
	"ORBScanner/internal/services/session"
	"ORBScanner/pkg/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "orbscanner",
	Short: "Intraday opening range breakout scanner",
	Long: `orbscanner builds 15/30/60 minute opening ranges for index ETFs,
detects breakouts, scores them and serves the latest scan over HTTP.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scanners, tick feed and HTTP API until interrupted",
	RunE:  runServe,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one ORB scan and print the result as JSON",
	RunE:  runScan,
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Print the current session phase and countdown",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printJSON(cmd, session.Status(time.Now()))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
	rootCmd.AddCommand(serveCmd, scanCmd, sessionCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()
	return app.Run(cmd.Context())
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	// a one-shot scan has no live ticks, so ranges must come from stored bars
	if cfg.ClickHouse.Enabled {
		cfg.Scanner.WarmStart = true
	}
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Scanner.Interval)
	defer cancel()
	res, err := app.ORB().Scan(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
