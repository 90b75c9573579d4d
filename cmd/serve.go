package cmd

import (
	"beatvault/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the BeatVault HTTP server",
	Long:  `Start the HTTP server exposing the record API and the stored-file proxy.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
