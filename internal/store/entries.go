package store

import (
	"database/sql"
	"encoding/json"

	"github.com/hmemdev/hmem/internal/hmemerr"
	"github.com/hmemdev/hmem/internal/types"
)

// loadRoot fetches one root_entries row by ID, or NotFound.
func (s *Store) loadRoot(id string) (*types.RootEntry, error) {
	return loadRootTx(s.db, id)
}

func loadRootTx(q queryer, id string) (*types.RootEntry, error) {
	row := q.QueryRow(`
		SELECT id, prefix, sequence, created_at, level1, title, access_count,
		       last_accessed, links, min_role, obsolete, favorite, irrelevant, pinned
		FROM root_entries WHERE id = ? AND sequence > 0`, id)
	return scanRoot(row, id)
}

func scanRoot(row *sql.Row, id string) (*types.RootEntry, error) {
	var r types.RootEntry
	var createdAt string
	var lastAccessed sql.NullString
	var linksJSON string
	var minRole string
	var obsolete, favorite, irrelevant, pinned int

	err := row.Scan(&r.ID, &r.Prefix, &r.Sequence, &createdAt, &r.Level1, &r.Title, &r.AccessCount,
		&lastAccessed, &linksJSON, &minRole, &obsolete, &favorite, &irrelevant, &pinned)
	if err == sql.ErrNoRows {
		return nil, hmemerr.New(hmemerr.NotFound, "entry %q not found", id)
	}
	if err != nil {
		return nil, err
	}

	if r.CreatedAt, err = parseISO(createdAt); err != nil {
		return nil, err
	}
	if lastAccessed.Valid {
		t, err := parseISO(lastAccessed.String)
		if err != nil {
			return nil, err
		}
		r.LastAccessed = &t
	}
	_ = json.Unmarshal([]byte(linksJSON), &r.Links)
	r.MinRole = types.ParseRole(minRole)
	r.Obsolete = obsolete != 0
	r.Favorite = favorite != 0
	r.Irrelevant = irrelevant != 0
	r.Pinned = pinned != 0
	return &r, nil
}

// loadNode fetches one nodes row by ID, or NotFound.
func (s *Store) loadNode(id string) (*types.Node, error) {
	row := s.db.QueryRow(`
		SELECT id, parent_id, root_id, depth, seq, content, title, created_at,
		       access_count, last_accessed, favorite, irrelevant
		FROM nodes WHERE id = ?`, id)
	return scanNode(row, id)
}

func scanNode(row *sql.Row, id string) (*types.Node, error) {
	var n types.Node
	var createdAt string
	var lastAccessed sql.NullString
	var favorite, irrelevant int

	err := row.Scan(&n.ID, &n.ParentID, &n.RootID, &n.Depth, &n.Seq, &n.Content, &n.Title, &createdAt,
		&n.AccessCount, &lastAccessed, &favorite, &irrelevant)
	if err == sql.ErrNoRows {
		return nil, hmemerr.New(hmemerr.NotFound, "entry %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	if n.CreatedAt, err = parseISO(createdAt); err != nil {
		return nil, err
	}
	if lastAccessed.Valid {
		t, err := parseISO(lastAccessed.String)
		if err != nil {
			return nil, err
		}
		n.LastAccessed = &t
	}
	n.Favorite = favorite != 0
	n.Irrelevant = irrelevant != 0
	return &n, nil
}

// loadEntryByID loads any compound ID (root or node) into the uniform
// MemoryEntry view, without resolving children/links/tags.
func (s *Store) loadEntryByID(id string) (*types.MemoryEntry, error) {
	if isNodeID(id) {
		n, err := s.loadNode(id)
		if err != nil {
			return nil, err
		}
		prefix, _, err := parseRootID(n.RootID)
		if err != nil {
			return nil, err
		}
		return types.FromNode(n, prefix), nil
	}
	r, err := s.loadRoot(id)
	if err != nil {
		return nil, err
	}
	return types.FromRoot(r), nil
}

// childrenOf returns every direct child node of parentID, ordered by seq.
func (s *Store) childrenOf(parentID string) ([]*types.Node, error) {
	rows, err := s.db.Query(`
		SELECT id, parent_id, root_id, depth, seq, content, title, created_at,
		       access_count, last_accessed, favorite, irrelevant
		FROM nodes WHERE parent_id = ? ORDER BY seq`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.Node
	for rows.Next() {
		var n types.Node
		var createdAt string
		var lastAccessed sql.NullString
		var favorite, irrelevant int
		if err := rows.Scan(&n.ID, &n.ParentID, &n.RootID, &n.Depth, &n.Seq, &n.Content, &n.Title, &createdAt,
			&n.AccessCount, &lastAccessed, &favorite, &irrelevant); err != nil {
			return nil, err
		}
		if n.CreatedAt, err = parseISO(createdAt); err != nil {
			return nil, err
		}
		if lastAccessed.Valid {
			t, err := parseISO(lastAccessed.String)
			if err != nil {
				return nil, err
			}
			n.LastAccessed = &t
		}
		n.Favorite = favorite != 0
		n.Irrelevant = irrelevant != 0
		out = append(out, &n)
	}
	return out, rows.Err()
}

// queryer is satisfied by both *sql.DB and *sql.Tx for read helpers that
// run either standalone or inside an existing transaction.
type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
}
