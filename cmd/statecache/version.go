package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foldline/statecache"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of statecache",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("statecache version %s\n", statecache.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
