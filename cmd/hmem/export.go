package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <dest-path>",
	Short: "Export every real entry, node, and tag into a new standalone .hmem file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		which, _ := cmd.Flags().GetString("store")
		s, err := openStore(which)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.ExportToHmem(context.Background(), args[0]); err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(map[string]any{"ok": true, "dest": args[0]})
	},
}

func init() {
	exportCmd.Flags().String("store", "self", "which store: self or company")
}
