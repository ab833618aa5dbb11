package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/hmemdev/hmem/internal/hmemerr"
	"github.com/hmemdev/hmem/internal/role"
)

var appendCmd = &cobra.Command{
	Use:   "append <parent-id> <content>",
	Short: "Append child nodes under an existing entry or node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		which, _ := cmd.Flags().GetString("store")
		if which == "company" && !role.CanWriteCompany(envRole()) {
			return hmemerr.New(hmemerr.RoleDenied, "role %q may not write to the company store", envRole())
		}

		s, err := openStore(which)
		if err != nil {
			return err
		}
		defer s.Close()

		result, err := s.AppendChildren(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"count": result.Count, "newChildIds": result.NewChildIDs,
		})
	},
}

func init() {
	appendCmd.Flags().String("store", "self", "which store: self or company")
}
