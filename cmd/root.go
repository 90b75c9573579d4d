package cmd

import (
	"fmt"
	"os"

	"beatvault/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "beatvault",
	Short: "BeatVault is a shared media vault for audio tracks.",
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
