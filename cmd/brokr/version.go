package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show BrokR version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("BrokR %s\n", Version)
	},
}
