package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-prefix counts and an integrity report for a store",
	RunE: func(cmd *cobra.Command, args []string) error {
		which, _ := cmd.Flags().GetString("store")
		s, err := openStore(which)
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := s.Stats()
		if err != nil {
			return err
		}

		integrity, _ := cmd.Flags().GetBool("integrity")
		if !integrity {
			return json.NewEncoder(os.Stdout).Encode(stats)
		}

		report, err := s.IntegrityReport()
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"stats":     stats,
			"integrity": report,
		})
	},
}

func init() {
	statsCmd.Flags().String("store", "self", "which store: self or company")
	statsCmd.Flags().Bool("integrity", false, "also run PRAGMA integrity_check and orphan scans")
}
