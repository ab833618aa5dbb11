package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/hmemdev/hmem/internal/hmemerr"
	"github.com/hmemdev/hmem/internal/treeparse"
	"github.com/hmemdev/hmem/internal/types"
)

// WriteOptions carries the optional fields accepted by Write (spec.md
// §4.2's write operation), mirrored as a single struct in the teacher's
// style of one Options type per multi-flag command (cmd/bd's create
// command flags).
type WriteOptions struct {
	Links    []string
	MinRole  string
	Favorite bool
	Pinned   bool
	Tags     []string
}

// WriteResult is what Write reports back to the caller.
type WriteResult struct {
	ID        string
	CreatedAt string
	NodeCount int
}

// Write creates a brand-new root entry under prefix, parsing content into
// a level_1 summary plus any indented child nodes (spec.md §4.2). prefix
// must already be registered in the store's configuration.
func (s *Store) Write(ctx context.Context, prefix, content string, opts WriteOptions) (WriteResult, error) {
	if err := s.refuseIfCorrupted(); err != nil {
		return WriteResult{}, err
	}
	prefix = strings.ToUpper(prefix)
	if _, ok := s.cfg.Prefixes[prefix]; !ok {
		return WriteResult{}, hmemerr.New(hmemerr.InvalidPrefix, "prefix %q is not registered", prefix)
	}
	if strings.TrimSpace(content) == "" {
		return WriteResult{}, hmemerr.New(hmemerr.EmptyContent, "content must not be empty")
	}
	if err := validateTags(opts.Tags); err != nil {
		return WriteResult{}, err
	}

	minRole := types.RoleWorker
	if opts.MinRole != "" {
		minRole = types.ParseRole(opts.MinRole)
	}

	var result WriteResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		seq, err := nextSequence(tx, prefix)
		if err != nil {
			return err
		}
		id := formatRootID(prefix, seq)

		parsed, ok := treeparse.ParseAbsolute(content, id, s.cfg.MaxDepth, s.cfg.MaxTitleChars)
		if !ok {
			return hmemerr.New(hmemerr.EmptyContent, "content must not be empty")
		}
		if limit := s.cfg.MaxCharsPerLevel; len(limit) > 0 && limit[0] > 0 && len([]rune(parsed.Level1)) > charTolerance(limit[0]) {
			return hmemerr.New(hmemerr.CharLimitExceeded, "level 1 content exceeds %d characters", limit[0])
		}

		linksJSON, err := json.Marshal(opts.Links)
		if err != nil {
			return err
		}
		now := nowISO()

		if _, err := tx.Exec(
			`INSERT INTO root_entries (id, prefix, sequence, created_at, level1, title, links, min_role, favorite, pinned)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, prefix, seq, now, parsed.Level1, parsed.Title, string(linksJSON), minRole.String(), boolToInt(opts.Favorite), boolToInt(opts.Pinned),
		); err != nil {
			return err
		}

		for _, n := range parsed.Nodes {
			if limit := s.cfg.MaxCharsPerLevel; n.Depth-1 < len(limit) && limit[n.Depth-1] > 0 && len([]rune(n.Content)) > charTolerance(limit[n.Depth-1]) {
				return hmemerr.New(hmemerr.CharLimitExceeded, "level %d content exceeds %d characters", n.Depth, limit[n.Depth-1])
			}
			seq, err := parseNodeSeq(n.ID)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(
				`INSERT INTO nodes (id, parent_id, root_id, depth, seq, content, title, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				n.ID, n.ParentID, id, n.Depth, seq, n.Content, n.Title, now,
			); err != nil {
				return err
			}
		}

		for _, t := range opts.Tags {
			if _, err := tx.Exec(`INSERT OR IGNORE INTO tags (owner_id, tag) VALUES (?, ?)`, id, t); err != nil {
				return err
			}
		}

		result = WriteResult{ID: id, CreatedAt: now, NodeCount: len(parsed.Nodes)}
		return nil
	})
	if err != nil {
		return WriteResult{}, err
	}
	return result, nil
}

func parseNodeSeq(id string) (int, error) {
	idx := strings.LastIndexByte(id, '.')
	if idx < 0 {
		return 0, hmemerr.New(hmemerr.InvalidID, "%q is not a valid node ID", id)
	}
	n, err := strconv.Atoi(id[idx+1:])
	if err != nil || n < 0 {
		return 0, hmemerr.New(hmemerr.InvalidID, "%q is not a valid node ID", id)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// charTolerance applies spec.md §3's 25% tolerance above the advisory
// per-level character limit.
func charTolerance(limit int) int {
	return limit + limit/4
}
