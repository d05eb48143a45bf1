package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/foldline/statecache"
	"github.com/foldline/statecache/automaton"
)

var minimizeCmd = &cobra.Command{
	Use:   "minimize <automaton.json>",
	Short: "Collapse behaviorally equivalent states",
	Long:  `Reads a JSON-serialized automaton, merges states with identical behavior, and writes the minimized automaton back out.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = args[0]
		}
		return runMinimize(cmd, args[0], out)
	},
}

func init() {
	minimizeCmd.Flags().String("out", "", "Output path (defaults to overwriting the input)")
	rootCmd.AddCommand(minimizeCmd)
}

func runMinimize(cmd *cobra.Command, in, out string) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	// Offline minimization never needs the durable tier.
	opts.PersistToStorage = false

	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	m, err := statecache.NewFromJSON(data, opts, newLogger(cmd))
	if err != nil {
		return err
	}
	defer m.Close()

	stats, err := m.Minimize(context.Background())
	if err != nil {
		return err
	}
	if stats.Aborted {
		return fmt.Errorf("refinement exceeded %d equivalence classes; automaton left unminimized", opts.MaxEquivalenceClasses)
	}

	encoded, err := automaton.EncodeJSON(m.Automaton())
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, encoded, 0o644); err != nil {
		return err
	}

	fmt.Printf("states: %d -> %d (merged %d, %d classes, %d iterations)\n",
		stats.StatesBefore, stats.StatesAfter, stats.Merged, stats.Classes, stats.Iterations)
	if !stats.Stable {
		fmt.Println("warning: iteration cap reached; partition is coarser than optimal")
	}
	return nil
}
