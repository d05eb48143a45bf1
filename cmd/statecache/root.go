package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/foldline/statecache"
)

var rootCmd = &cobra.Command{
	Use:   "statecache",
	Short: "Minimize and cache document-tree state machines",
	Long:  `statecache operates on automata serialized as JSON: it minimizes them offline and pre-warms their durable transition caches.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML options file")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
}

func loadOptions(cmd *cobra.Command) (statecache.Options, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return statecache.DefaultOptions(), nil
	}
	return statecache.LoadOptions(path)
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
