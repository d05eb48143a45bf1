package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/foldline/statecache"
)

var warmCmd = &cobra.Command{
	Use:   "warm <automaton.json>",
	Short: "Pre-populate the durable transition cache",
	Long:  `Samples random walks over the automaton and persists the hottest transitions, so a service starting against the same store begins warm.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		samples, _ := cmd.Flags().GetInt("samples")
		return runWarm(cmd, args[0], samples)
	},
}

func init() {
	warmCmd.Flags().Int("samples", 4096, "Number of random-walk steps to sample")
	rootCmd.AddCommand(warmCmd)
}

func runWarm(cmd *cobra.Command, in string, samples int) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if !opts.PersistToStorage {
		return fmt.Errorf("warm requires persistToStorage in the options file; seeding only memory is pointless")
	}

	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	m, err := statecache.NewFromJSON(data, opts, newLogger(cmd))
	if err != nil {
		return err
	}

	seeded, err := m.Warmup(context.Background(), samples)
	if err != nil {
		m.Close()
		return err
	}
	if err := m.Close(); err != nil {
		return err
	}

	fmt.Printf("seeded %d transitions from %d samples\n", seeded, samples)
	return nil
}
