package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"locallibrary/internal/config"
	"locallibrary/internal/util"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "catalog",
	Short:         "LocalLibrary catalog server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.ConfigPath, "Path to the YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd, feedCmd)
}

// loadConfig reads the config file with load and installs the JSON logger it
// names.
func loadConfig(load func(string) (config.FileConfig, error)) (config.FileConfig, error) {
	cfg, err := load(configPath)
	if err != nil {
		return cfg, err
	}
	util.InitLogger(cfg.LogLevel)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
