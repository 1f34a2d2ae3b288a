package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(*cobra.Command, []string) {
		fmt.Printf("tradelab version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
