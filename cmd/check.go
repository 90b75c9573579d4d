package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"beatvault/config"
	"beatvault/db"
	"beatvault/storage"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify configuration and backend connectivity",
	Long:  `Verify that the database connection string is well formed and that the database and object storage are reachable.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		failed := false

		if err := cfg.ValidateDSN(); err != nil {
			fmt.Printf("database config: FAIL (%v)\n", err)
			failed = true
		} else if _, err := mysql.ParseDSN(cfg.DatabaseDSN); err != nil {
			fmt.Printf("database config: FAIL (malformed DSN: %v)\n", err)
			failed = true
		} else {
			fmt.Println("database config: OK")

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := db.Connect(ctx, cfg); err != nil {
				fmt.Printf("database connection: FAIL (%v)\n", err)
				failed = true
			} else {
				fmt.Println("database connection: OK")
			}
		}

		if err := storage.Init(cfg); err != nil {
			fmt.Printf("object storage: FAIL (%v)\n", err)
			failed = true
		} else {
			fmt.Println("object storage: OK")
		}

		if failed {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
