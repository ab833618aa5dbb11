package store

import (
	"context"
	"database/sql"
)

// ExportOptions carries a MinRole value. ExportToHmem takes no options
// and copies every entry regardless of role; nothing in this package
// reads ExportOptions.
type ExportOptions struct {
	MinRole string
}

// ExportToHmem writes every real (sequence > 0) root entry, its nodes,
// and its tags into a brand-new .hmem file at destPath, preserving IDs
// verbatim — the destination is a standalone store later merged
// elsewhere with ImportFromHmem (spec.md §4.7).
func (s *Store) ExportToHmem(ctx context.Context, destPath string) error {
	dest, err := Open(destPath, s.cfg)
	if err != nil {
		return err
	}
	defer dest.Close()

	rows, err := s.db.Query(`
		SELECT id, prefix, sequence, created_at, level1, title, access_count,
		       last_accessed, links, min_role, obsolete, favorite, irrelevant, pinned
		FROM root_entries WHERE sequence > 0 ORDER BY prefix, sequence`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type rootRow struct {
		id, prefix, createdAt, level1, title, linksJSON, minRole string
		seq, accessCount                                        int
		lastAccessed                                             sql.NullString
		obsolete, favorite, irrelevant, pinned                   int
	}
	var roots []rootRow
	for rows.Next() {
		var r rootRow
		if err := rows.Scan(&r.id, &r.prefix, &r.seq, &r.createdAt, &r.level1, &r.title, &r.accessCount,
			&r.lastAccessed, &r.linksJSON, &r.minRole, &r.obsolete, &r.favorite, &r.irrelevant, &r.pinned); err != nil {
			return err
		}
		roots = append(roots, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	return dest.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range roots {
			if _, err := tx.Exec(
				`INSERT OR REPLACE INTO root_entries (id, prefix, sequence, created_at, level1, title,
				   access_count, last_accessed, links, min_role, obsolete, favorite, irrelevant, pinned)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.id, r.prefix, r.seq, r.createdAt, r.level1, r.title, r.accessCount,
				r.lastAccessed, r.linksJSON, r.minRole, r.obsolete, r.favorite, r.irrelevant, r.pinned,
			); err != nil {
				return err
			}

			nodeRows, err := s.db.Query(`
				SELECT id, parent_id, depth, seq, content, title, created_at, access_count, last_accessed, favorite, irrelevant
				FROM nodes WHERE root_id = ?`, r.id)
			if err != nil {
				return err
			}
			for nodeRows.Next() {
				var id, parentID, createdAt, content, title string
				var depth, seq, accessCount int
				var lastAccessed sql.NullString
				var favorite, irrelevant int
				if err := nodeRows.Scan(&id, &parentID, &depth, &seq, &content, &title, &createdAt,
					&accessCount, &lastAccessed, &favorite, &irrelevant); err != nil {
					nodeRows.Close()
					return err
				}
				if _, err := tx.Exec(
					`INSERT OR REPLACE INTO nodes (id, parent_id, root_id, depth, seq, content, title,
					   created_at, access_count, last_accessed, favorite, irrelevant)
					 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					id, parentID, r.id, depth, seq, content, title, createdAt, accessCount, lastAccessed, favorite, irrelevant,
				); err != nil {
					nodeRows.Close()
					return err
				}
			}
			if err := nodeRows.Err(); err != nil {
				nodeRows.Close()
				return err
			}
			nodeRows.Close()

			tagRows, err := s.db.Query(`SELECT tag FROM tags WHERE owner_id = ?`, r.id)
			if err != nil {
				return err
			}
			for tagRows.Next() {
				var tag string
				if err := tagRows.Scan(&tag); err != nil {
					tagRows.Close()
					return err
				}
				if _, err := tx.Exec(`INSERT OR IGNORE INTO tags (owner_id, tag) VALUES (?, ?)`, r.id, tag); err != nil {
					tagRows.Close()
					return err
				}
			}
			if err := tagRows.Err(); err != nil {
				tagRows.Close()
				return err
			}
			tagRows.Close()
		}
		return nil
	})
}
