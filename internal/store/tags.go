package store

import (
	"context"
	"database/sql"
	"regexp"

	"github.com/hmemdev/hmem/internal/hmemerr"
	"github.com/hmemdev/hmem/internal/types"
)

// tagPattern enforces spec.md §4.6's tag grammar: lowercase letters,
// digits, underscore and hyphen, 1-49 characters after the leading '#'.
var tagPattern = regexp.MustCompile(`^#[a-z0-9_-]{1,49}$`)

const maxTagsPerOwner = 10

func validateTags(tags []string) error {
	if len(tags) > maxTagsPerOwner {
		return hmemerr.New(hmemerr.InvalidTag, "at most %d tags are allowed, got %d", maxTagsPerOwner, len(tags))
	}
	for _, t := range tags {
		if !tagPattern.MatchString(t) {
			return hmemerr.New(hmemerr.InvalidTag, "%q is not a valid tag", t)
		}
	}
	return nil
}

// SetTags replaces every tag currently on ownerID with tags.
func (s *Store) SetTags(ctx context.Context, ownerID string, tags []string) error {
	if err := s.refuseIfCorrupted(); err != nil {
		return err
	}
	if err := validateTags(tags); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM tags WHERE owner_id = ?`, ownerID); err != nil {
			return err
		}
		for _, t := range tags {
			if _, err := tx.Exec(`INSERT OR IGNORE INTO tags (owner_id, tag) VALUES (?, ?)`, ownerID, t); err != nil {
				return err
			}
		}
		return nil
	})
}

// TagsFor returns every tag currently attached to ownerID, in insertion
// order as SQLite's rowid ordering naturally provides.
func (s *Store) TagsFor(ownerID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT tag FROM tags WHERE owner_id = ? ORDER BY rowid`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RelatedByTag finds up to limit root entries that share at least
// minShared tags with ownerID, excluding ownerID itself and its own
// descendant nodes, ranked by number of shared tags descending (spec.md
// §4.6's related-by-tag behavior: "at least 2 shared tags, up to 5
// results").
func (s *Store) RelatedByTag(ownerID string, minShared, limit int) ([]*types.MemoryEntry, error) {
	selfRoot, err := rootIDOf(ownerID)
	if err != nil {
		selfRoot = ownerID
	}

	rows, err := s.db.Query(`
		SELECT t2.owner_id, COUNT(*) AS shared
		FROM tags t1
		JOIN tags t2 ON t1.tag = t2.tag AND t2.owner_id != t1.owner_id
		JOIN root_entries re ON re.id = t2.owner_id
		WHERE t1.owner_id = ? AND t2.owner_id != ?
		GROUP BY t2.owner_id
		HAVING shared >= ?
		ORDER BY shared DESC
		LIMIT ?`, ownerID, selfRoot, minShared, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		var shared int
		if err := rows.Scan(&id, &shared); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*types.MemoryEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := s.loadEntryByID(id)
		if err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
