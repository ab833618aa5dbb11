package store

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/hmemdev/hmem/internal/types"
)

// GetRoot exposes loadRoot to other packages (the read engine).
func (s *Store) GetRoot(id string) (*types.RootEntry, error) { return s.loadRoot(id) }

// GetNode exposes loadNode to other packages.
func (s *Store) GetNode(id string) (*types.Node, error) { return s.loadNode(id) }

// Children exposes childrenOf to other packages.
func (s *Store) Children(parentID string) ([]*types.Node, error) { return s.childrenOf(parentID) }

// BumpAccess increments access_count and sets last_accessed = now on the
// given compound ID (root or node).
func (s *Store) BumpAccess(id string) error {
	now := nowISO()
	if isNodeID(id) {
		_, err := s.db.Exec(`UPDATE nodes SET access_count = access_count + 1, last_accessed = ? WHERE id = ?`, now, id)
		return err
	}
	_, err := s.db.Exec(`UPDATE root_entries SET access_count = access_count + 1, last_accessed = ? WHERE id = ?`, now, id)
	return err
}

// RootFilter narrows the bulk-query candidate set.
type RootFilter struct {
	Prefix       string
	After        *time.Time
	Before       *time.Time
	Tag          string
	AllowedRoles []types.Role
}

// QueryRoots returns root entries matching filter, ordered by
// effective_date (max of the root's own created_at and its most-recently
// created child) descending — spec.md §4.4.4's ordering rule so a fresh
// append surfaces its root as if newly created.
func (s *Store) QueryRoots(filter RootFilter) ([]*types.RootEntry, error) {
	q := `
		SELECT r.id, r.prefix, r.sequence, r.created_at, r.level1, r.title, r.access_count,
		       r.last_accessed, r.links, r.min_role, r.obsolete, r.favorite, r.irrelevant, r.pinned
		FROM root_entries r
		WHERE r.sequence > 0`
	var args []any

	if filter.Prefix != "" {
		q += ` AND r.prefix = ?`
		args = append(args, strings.ToUpper(filter.Prefix))
	}
	if filter.After != nil {
		q += ` AND r.created_at >= ?`
		args = append(args, filter.After.UTC().Format("2006-01-02T15:04:05.000Z"))
	}
	if filter.Before != nil {
		q += ` AND r.created_at <= ?`
		args = append(args, filter.Before.UTC().Format("2006-01-02T15:04:05.000Z"))
	}
	if filter.Tag != "" {
		q += ` AND r.id IN (SELECT owner_id FROM tags WHERE tag = ?)`
		args = append(args, filter.Tag)
	}
	if roles := roleClause(filter.AllowedRoles); roles != "" {
		q += ` AND r.min_role IN (` + roles + `)`
	}
	q += `
		ORDER BY (
			SELECT MAX(x) FROM (
				SELECT r.created_at AS x
				UNION ALL
				SELECT MAX(n.created_at) FROM nodes n WHERE n.root_id = r.id
			)
		) DESC`

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoots(rows)
}

// SearchRoots implements spec.md §4.4.3: case-insensitive substring match
// across root level_1, node content, and tag strings, unioned at the
// root level.
func (s *Store) SearchRoots(query string, allowedRoles []types.Role) ([]*types.RootEntry, error) {
	like := "%" + strings.ToLower(query) + "%"
	q := `
		SELECT DISTINCT r.id, r.prefix, r.sequence, r.created_at, r.level1, r.title, r.access_count,
		       r.last_accessed, r.links, r.min_role, r.obsolete, r.favorite, r.irrelevant, r.pinned
		FROM root_entries r
		WHERE r.sequence > 0 AND (
			LOWER(r.level1) LIKE ?
			OR r.id IN (SELECT root_id FROM nodes WHERE LOWER(content) LIKE ?)
			OR r.id IN (SELECT owner_id FROM tags WHERE LOWER(tag) LIKE ?)
		)`
	args := []any{like, like, like}
	if roles := roleClause(allowedRoles); roles != "" {
		q += ` AND r.min_role IN (` + roles + `)`
	}
	q += ` ORDER BY r.created_at DESC`

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoots(rows)
}

func roleClause(roles []types.Role) string {
	if len(roles) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, r := range roles {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("'" + r.String() + "'")
	}
	return sb.String()
}

func scanRoots(rows *sql.Rows) ([]*types.RootEntry, error) {
	var out []*types.RootEntry
	for rows.Next() {
		var id, prefix, createdAt, level1, title, linksJSON, minRole string
		var seq, accessCount int
		var lastAccessed sql.NullString
		var obsolete, favorite, irrelevant, pinned int
		if err := rows.Scan(&id, &prefix, &seq, &createdAt, &level1, &title, &accessCount,
			&lastAccessed, &linksJSON, &minRole, &obsolete, &favorite, &irrelevant, &pinned); err != nil {
			return nil, err
		}
		r := &types.RootEntry{ID: id, Prefix: prefix, Sequence: seq, Level1: level1, Title: title, AccessCount: accessCount}
		ts, err := parseISO(createdAt)
		if err != nil {
			return nil, err
		}
		r.CreatedAt = ts
		if lastAccessed.Valid {
			t, err := parseISO(lastAccessed.String)
			if err != nil {
				return nil, err
			}
			r.LastAccessed = &t
		}
		unmarshalLinks(linksJSON, &r.Links)
		r.MinRole = types.ParseRole(minRole)
		r.Obsolete = obsolete != 0
		r.Favorite = favorite != 0
		r.Irrelevant = irrelevant != 0
		r.Pinned = pinned != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func unmarshalLinks(raw string, out *[]string) {
	if raw == "" {
		return
	}
	_ = json.Unmarshal([]byte(raw), out)
}
