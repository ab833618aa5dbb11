package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <source-path>",
	Short: "Merge another .hmem file into this store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		which, _ := cmd.Flags().GetString("store")
		s, err := openStore(which)
		if err != nil {
			return err
		}
		defer s.Close()

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		report, err := s.ImportFromHmem(context.Background(), args[0], dryRun)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(report)
	},
}

func init() {
	importCmd.Flags().String("store", "self", "which store: self or company")
	importCmd.Flags().Bool("dry-run", false, "report what would change without writing anything")
}
