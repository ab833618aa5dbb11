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

var updateCmd = &cobra.Command{
	Use:   "update <id> <content>",
	Short: "Update an existing entry's content, links, or flags",
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

		opts, err := updateOptionsFromFlags(cmd)
		if err != nil {
			return err
		}
		if err := s.UpdateNode(context.Background(), args[0], args[1], opts); err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(map[string]any{"ok": true})
	},
}

func updateOptionsFromFlags(cmd *cobra.Command) (store.UpdateOptions, error) {
	var opts store.UpdateOptions
	if cmd.Flags().Changed("links") {
		links, _ := cmd.Flags().GetStringSlice("links")
		opts.Links = &links
	}
	if cmd.Flags().Changed("obsolete") {
		v, _ := cmd.Flags().GetBool("obsolete")
		opts.Obsolete = &v
	}
	if cmd.Flags().Changed("favorite") {
		v, _ := cmd.Flags().GetBool("favorite")
		opts.Favorite = &v
	}
	if cmd.Flags().Changed("irrelevant") {
		v, _ := cmd.Flags().GetBool("irrelevant")
		opts.Irrelevant = &v
	}
	if cmd.Flags().Changed("pinned") {
		v, _ := cmd.Flags().GetBool("pinned")
		opts.Pinned = &v
	}
	if cmd.Flags().Changed("tags") {
		tags, _ := cmd.Flags().GetStringSlice("tags")
		opts.Tags = &tags
	}
	if cmd.Flags().Changed("min-role") {
		v, _ := cmd.Flags().GetString("min-role")
		opts.MinRole = &v
	}
	curatorBypass, _ := cmd.Flags().GetBool("curator-bypass")
	opts.CuratorBypass = curatorBypass
	return opts, nil
}

func init() {
	updateCmd.Flags().String("store", "self", "which store: self or company")
	updateCmd.Flags().StringSlice("links", nil, "replace cross-reference IDs")
	updateCmd.Flags().Bool("obsolete", false, "mark obsolete (requires a [✓ID] token in content unless --curator-bypass)")
	updateCmd.Flags().Bool("favorite", false, "mark as favorite")
	updateCmd.Flags().Bool("irrelevant", false, "mark as irrelevant")
	updateCmd.Flags().Bool("pinned", false, "mark as pinned")
	updateCmd.Flags().StringSlice("tags", nil, "replace tags")
	updateCmd.Flags().String("min-role", "", "minimum role allowed to read this entry")
	updateCmd.Flags().Bool("curator-bypass", false, "bypass the obsolete-correction requirement (curator only)")
}
