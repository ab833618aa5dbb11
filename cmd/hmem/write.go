package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/hmemdev/hmem/internal/hmemerr"
	"github.com/hmemdev/hmem/internal/role"
	"github.com/hmemdev/hmem/internal/store"
)

var writeCmd = &cobra.Command{
	Use:   "write <prefix> <content>",
	Short: "Create a new root memory entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		which, _ := cmd.Flags().GetString("store")
		links, _ := cmd.Flags().GetStringSlice("links")
		favorite, _ := cmd.Flags().GetBool("favorite")
		pinned, _ := cmd.Flags().GetBool("pinned")
		minRole, _ := cmd.Flags().GetString("min-role")
		tags, _ := cmd.Flags().GetStringSlice("tags")

		if which == "company" && !role.CanWriteCompany(envRole()) {
			return hmemerr.New(hmemerr.RoleDenied, "role %q may not write to the company store", envRole())
		}

		s, err := openStore(which)
		if err != nil {
			return err
		}
		defer s.Close()

		result, err := s.Write(context.Background(), args[0], args[1], store.WriteOptions{
			Links: links, MinRole: minRole, Favorite: favorite, Pinned: pinned, Tags: tags,
		})
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"id": result.ID, "createdAt": result.CreatedAt, "nodeCount": result.NodeCount,
		})
	},
}

func init() {
	writeCmd.Flags().String("store", "self", "which store: self or company")
	writeCmd.Flags().StringSlice("links", nil, "cross-reference IDs")
	writeCmd.Flags().Bool("favorite", false, "mark as favorite")
	writeCmd.Flags().Bool("pinned", false, "mark as pinned")
	writeCmd.Flags().String("min-role", "", "minimum role allowed to read this entry")
	writeCmd.Flags().StringSlice("tags", nil, "tags, e.g. #backend")
}
