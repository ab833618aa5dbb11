package store

import (
	"context"
	"database/sql"

	"github.com/hmemdev/hmem/internal/hmemerr"
	"github.com/hmemdev/hmem/internal/treeparse"
)

// AppendResult reports how many child nodes were created and their IDs.
type AppendResult struct {
	Count       int
	NewChildIDs []string
}

// AppendChildren parses content as a relative tree anchored under
// parentID and inserts the resulting nodes as new children, bubbling
// access_count up to the parent (and its root, if parent is itself a
// node) per spec.md §4.3.
func (s *Store) AppendChildren(ctx context.Context, parentID, content string) (AppendResult, error) {
	if err := s.refuseIfCorrupted(); err != nil {
		return AppendResult{}, err
	}

	var result AppendResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		parentDepth, rootID, err := resolveParent(tx, parentID)
		if err != nil {
			return err
		}

		startSeq, err := nextChildSeqTx(tx, parentID)
		if err != nil {
			return err
		}

		nodes := treeparse.ParseRelative(content, parentID, parentDepth, startSeq, s.cfg.MaxDepth, s.cfg.MaxTitleChars)
		if len(nodes) == 0 {
			return hmemerr.New(hmemerr.EmptyContent, "content produced no appendable lines")
		}

		limit := s.cfg.MaxCharsPerLevel
		now := nowISO()
		for _, n := range nodes {
			if n.Depth-1 < len(limit) && limit[n.Depth-1] > 0 && len([]rune(n.Content)) > charTolerance(limit[n.Depth-1]) {
				return hmemerr.New(hmemerr.CharLimitExceeded, "level %d content exceeds %d characters", n.Depth, limit[n.Depth-1])
			}
			seq, err := parseNodeSeq(n.ID)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(
				`INSERT INTO nodes (id, parent_id, root_id, depth, seq, content, title, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				n.ID, n.ParentID, rootID, n.Depth, seq, n.Content, n.Title, now,
			); err != nil {
				return err
			}
			result.NewChildIDs = append(result.NewChildIDs, n.ID)
		}
		result.Count = len(nodes)

		if err := bumpAccess(tx, parentID, now); err != nil {
			return err
		}
		if isNodeID(parentID) {
			if err := bumpAccess(tx, rootID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return AppendResult{}, err
	}
	return result, nil
}

// resolveParent returns parentID's tree depth (1 for a root, 1+dots for a
// node) and its owning root ID, failing with NotFound if parentID does
// not exist.
func resolveParent(tx *sql.Tx, parentID string) (depth int, rootID string, err error) {
	if isNodeID(parentID) {
		var rid string
		var d int
		row := tx.QueryRow(`SELECT root_id, depth FROM nodes WHERE id = ?`, parentID)
		if scanErr := row.Scan(&rid, &d); scanErr == sql.ErrNoRows {
			return 0, "", hmemerr.New(hmemerr.NotFound, "parent %q not found", parentID)
		} else if scanErr != nil {
			return 0, "", scanErr
		}
		return d, rid, nil
	}
	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM root_entries WHERE id = ? AND sequence > 0`, parentID).Scan(&exists); err != nil {
		return 0, "", err
	}
	if exists == 0 {
		return 0, "", hmemerr.New(hmemerr.NotFound, "parent %q not found", parentID)
	}
	return 1, parentID, nil
}

func nextChildSeqTx(tx *sql.Tx, parentID string) (int, error) {
	return nextChildSeq(tx, parentID)
}

func bumpAccess(tx *sql.Tx, id, now string) error {
	if isNodeID(id) {
		_, err := tx.Exec(`UPDATE nodes SET access_count = access_count + 1, last_accessed = ? WHERE id = ?`, now, id)
		return err
	}
	_, err := tx.Exec(`UPDATE root_entries SET access_count = access_count + 1, last_accessed = ? WHERE id = ?`, now, id)
	return err
}
