package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/foldline/statecache/automaton"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <automaton.json>",
	Short: "Summarize a serialized automaton",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		a, err := automaton.DecodeJSON(data)
		if err != nil {
			return err
		}

		accepts, frozen := 0, 0
		kinds := make(map[string]int)
		for s := 0; s < a.NumStates(); s++ {
			if a.IsAccept(s) {
				accepts++
			}
			if a.IsMinimized(s) {
				frozen++
			}
			kinds[a.Kind(s).String()]++
		}

		fmt.Printf("states:        %d\n", a.NumStates())
		fmt.Printf("transitions:   %d\n", a.NumTransitions())
		fmt.Printf("accepting:     %d\n", accepts)
		fmt.Printf("deterministic: %v\n", a.IsDeterministic())
		fmt.Printf("minimized:     %d/%d\n", frozen, a.NumStates())
		for kind, n := range kinds {
			fmt.Printf("kind %-9s %d\n", kind+":", n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
