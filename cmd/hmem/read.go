package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hmemdev/hmem/internal/format"
	"github.com/hmemdev/hmem/internal/read"
	"github.com/hmemdev/hmem/internal/role"
	"github.com/hmemdev/hmem/internal/session"
	"github.com/hmemdev/hmem/internal/types"
)

// sharedSession is the process-lifetime session cache for the read
// path. A CLI invocation is one connection in spec.md §4.5's terms, so
// one cache per process is sufficient; a long-lived transport
// (serve.go) keeps one cache per connection instead.
var sharedSession *session.Cache

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read memory entries: by ID, around a reference ID in time, by search, or bulk",
	RunE: func(cmd *cobra.Command, args []string) error {
		which, _ := cmd.Flags().GetString("store")

		s, err := openStore(which)
		if err != nil {
			return err
		}
		defer s.Close()

		if sharedSession == nil {
			sharedSession = session.New(s.Config().SessionWindows)
		}

		opts, err := readOptionsFromFlags(cmd)
		if err != nil {
			return err
		}

		switch which {
		case "company":
			opts.CallerRole = envRole()
			if !role.IsCurator(envRole()) {
				opts.ShowAll = false
			}
		default:
			// Self/agent stores are not role-gated: every caller sees
			// everything they own.
			opts.CallerRole = types.RoleCEO
		}

		engine := read.New(s, sharedSession)
		result, err := engine.Read(opts)
		if err != nil {
			return err
		}

		plain, _ := cmd.Flags().GetBool("plain")
		if !cmd.Flags().Changed("plain") {
			plain = !term.IsTerminal(int(os.Stdout.Fd()))
		}
		renderer := format.New(role.IsCurator(envRole()), s.Config().PrefixDescriptions)
		renderer.Plain = plain

		var out string
		if opts.ID != "" {
			out = renderer.RenderByID(result.Entries)
		} else {
			out = renderer.RenderBulk(result.Entries, 0)
		}
		if result.Warning != "" {
			fmt.Println("# warning:", result.Warning)
		}
		fmt.Print(out)
		return nil
	},
}

func readOptionsFromFlags(cmd *cobra.Command) (read.Options, error) {
	var opts read.Options

	opts.ID, _ = cmd.Flags().GetString("id")
	opts.Expand, _ = cmd.Flags().GetBool("expand")
	opts.ShowObsoletePath, _ = cmd.Flags().GetBool("show-obsolete-path")
	if cmd.Flags().Changed("follow-obsolete") {
		v, _ := cmd.Flags().GetBool("follow-obsolete")
		opts.FollowObsolete = &v
	}

	opts.TimeAround, _ = cmd.Flags().GetString("time-around")
	opts.Period, _ = cmd.Flags().GetString("period")

	opts.Search, _ = cmd.Flags().GetString("search")

	opts.Prefix, _ = cmd.Flags().GetString("prefix")
	opts.Tag, _ = cmd.Flags().GetString("tag")
	opts.ShowObsolete, _ = cmd.Flags().GetBool("show-obsolete")
	opts.ShowAll, _ = cmd.Flags().GetBool("show-all")
	opts.TitlesOnly, _ = cmd.Flags().GetBool("titles-only")
	opts.Limit, _ = cmd.Flags().GetInt("limit")

	if after, _ := cmd.Flags().GetString("after"); after != "" {
		t, err := time.Parse(time.RFC3339, after)
		if err != nil {
			return opts, fmt.Errorf("invalid --after: %w", err)
		}
		opts.After = &t
	}
	if before, _ := cmd.Flags().GetString("before"); before != "" {
		t, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return opts, fmt.Errorf("invalid --before: %w", err)
		}
		opts.Before = &t
	}
	return opts, nil
}

func init() {
	readCmd.Flags().String("store", "self", "which store: self or company")
	readCmd.Flags().String("id", "", "read a specific entry or node by ID")
	readCmd.Flags().Bool("expand", false, "expand one extra level when reading by ID")
	readCmd.Flags().Bool("show-obsolete-path", false, "show every hop of an obsolete-correction chain")
	readCmd.Flags().Bool("follow-obsolete", true, "follow obsolete-correction chains")

	readCmd.Flags().String("time-around", "", "reference ID to read entries created around")
	readCmd.Flags().String("period", "", "time window: +Nh, -Nh, Nh, or both (default both, 2h)")

	readCmd.Flags().String("search", "", "full-text search query")

	readCmd.Flags().String("prefix", "", "restrict bulk read to one prefix")
	readCmd.Flags().String("tag", "", "restrict bulk read to entries carrying this tag")
	readCmd.Flags().Bool("show-obsolete", false, "include obsolete entries in a bulk read")
	readCmd.Flags().Bool("show-all", false, "curator shortcut: render everything expanded")
	readCmd.Flags().Bool("titles-only", false, "render bulk results as titles only")
	readCmd.Flags().Int("limit", 0, "cap the number of bulk results")
	readCmd.Flags().String("after", "", "RFC3339 lower bound for bulk reads")
	readCmd.Flags().String("before", "", "RFC3339 upper bound for bulk reads")
	readCmd.Flags().Bool("plain", false, "disable color styling")
}
