package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lifedash/lifedash/internal/assistant"
	"github.com/lifedash/lifedash/internal/config"
	"github.com/lifedash/lifedash/internal/gateway"
	"github.com/lifedash/lifedash/internal/logger"
	"github.com/lifedash/lifedash/internal/store"
	"github.com/lifedash/lifedash/internal/tools"
	"github.com/lifedash/lifedash/internal/usage"
)

const version = "0.1.0"

var configPath string

func main() {
	// A missing .env file is fine; the environment may already be set.
	godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "lifedash",
		Short: "LifeDash assistant backend",
		Long:  "LifeDash is the assistant backend for a personal dashboard: weather, stocks, crypto, and navigation over a tool-calling chat pipeline.",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default ~/.lifedash/config.yaml)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the assistant HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			result := cfg.Validate()
			for _, w := range result.Warnings {
				fmt.Fprintf(os.Stderr, "warning: %s\n", w)
			}
			if !result.IsValid() {
				for _, e := range result.Errors {
					fmt.Fprintf(os.Stderr, "error: %s\n", e)
				}
				return fmt.Errorf("invalid configuration")
			}

			log := logger.New("lifedash", cfg.Log.Level)

			usageStore, err := store.NewSQLiteStore(cfg.Storage.Path)
			if err != nil {
				return fmt.Errorf("failed to open usage store: %w", err)
			}
			defer usageStore.Close()
			recorder := usage.NewRecorder(usageStore, log.WithComponent("usage"))

			registry := tools.NewRegistry()
			tools.RegisterBuiltins(registry,
				tools.NewWeatherClient(),
				tools.NewStockClient(),
				tools.NewCryptoClient(),
			)
			executor := tools.NewExecutor(registry, log.WithComponent("tools"))

			asst, err := assistant.New(cfg, executor, recorder, log.WithComponent("assistant"))
			if err != nil {
				return err
			}

			gw := gateway.New(cfg, asst, recorder, log.WithComponent("gateway"))
			return gw.Start()
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			result := cfg.Validate()
			for _, w := range result.Warnings {
				fmt.Printf("warning: %s\n", w)
			}
			for _, e := range result.Errors {
				fmt.Printf("error: %s\n", e)
			}
			if !result.IsValid() {
				return fmt.Errorf("configuration is invalid")
			}
			fmt.Println("configuration ok")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lifedash %s\n", version)
		},
	}
}
