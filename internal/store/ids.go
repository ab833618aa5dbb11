package store

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hmemdev/hmem/internal/hmemerr"
)

// rootIDPattern matches a root entry ID: a configured prefix letter
// followed by a zero-padded 4-digit sequence, e.g. "L0023".
var rootIDPattern = regexp.MustCompile(`^([A-Za-z])(\d{4,})$`)

// nodeIDPattern matches a node ID: a root ID followed by one or more
// dot-separated sibling indices, e.g. "L0023.2.1".
var nodeIDPattern = regexp.MustCompile(`^([A-Za-z]\d{4,})((?:\.\d+)+)$`)

// nextSequence allocates the next sequence number for prefix inside tx,
// grounded on the teacher's internal/storage/sqlite sequence-allocation
// query (SELECT MAX(seq)+1 under the write transaction's lock).
func nextSequence(tx *sql.Tx, prefix string) (int, error) {
	var max sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(sequence) FROM root_entries WHERE prefix = ?`, prefix).Scan(&max); err != nil {
		return 0, err
	}
	if !max.Valid || max.Int64 < 1 {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

// formatRootID renders prefix + sequence as a zero-padded compound ID.
func formatRootID(prefix string, seq int) string {
	return fmt.Sprintf("%s%04d", prefix, seq)
}

// parseRootID validates and splits a root ID into its prefix and sequence.
func parseRootID(id string) (prefix string, seq int, err error) {
	m := rootIDPattern.FindStringSubmatch(id)
	if m == nil {
		return "", 0, hmemerr.New(hmemerr.InvalidID, "%q is not a valid entry ID", id)
	}
	n, convErr := strconv.Atoi(m[2])
	if convErr != nil {
		return "", 0, hmemerr.New(hmemerr.InvalidID, "%q is not a valid entry ID", id)
	}
	return strings.ToUpper(m[1]), n, nil
}

// isNodeID reports whether id addresses a node rather than a root entry.
func isNodeID(id string) bool {
	return nodeIDPattern.MatchString(id)
}

// rootIDOf returns the root ID portion of any valid compound ID — itself
// for a root ID, or the prefix before the first dot for a node ID.
func rootIDOf(id string) (string, error) {
	if rootIDPattern.MatchString(id) {
		return id, nil
	}
	if m := nodeIDPattern.FindStringSubmatch(id); m != nil {
		return m[1], nil
	}
	return "", hmemerr.New(hmemerr.InvalidID, "%q is not a valid entry ID", id)
}

// depthOf returns the tree depth implied by a compound ID: 1 for a root,
// or 1+segments for a node (L0023.2 is depth 2, L0023.2.1 is depth 3).
func depthOf(id string) (int, error) {
	if rootIDPattern.MatchString(id) {
		return 1, nil
	}
	if m := nodeIDPattern.FindStringSubmatch(id); m != nil {
		return 1 + strings.Count(m[2], "."), nil
	}
	return 0, hmemerr.New(hmemerr.InvalidID, "%q is not a valid entry ID", id)
}

// parentIDOf returns the direct parent of a compound ID: the root ID for
// a depth-2 node, or the ID with its last dotted segment removed for
// anything deeper. Returns an error for a root ID, which has no parent.
func parentIDOf(id string) (string, error) {
	m := nodeIDPattern.FindStringSubmatch(id)
	if m == nil {
		return "", hmemerr.New(hmemerr.InvalidID, "%q has no parent", id)
	}
	segs := strings.Split(strings.TrimPrefix(m[2], "."), ".")
	if len(segs) == 1 {
		return m[1], nil
	}
	return m[1] + "." + strings.Join(segs[:len(segs)-1], "."), nil
}

// nextChildSeq allocates the next sibling sequence under parentID inside
// tx from the IDs of the nodes already stored under it.
func nextChildSeq(tx *sql.Tx, parentID string) (int, error) {
	rows, err := tx.Query(`SELECT id FROM nodes WHERE parent_id = ?`, parentID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	max := 0
	prefix := parentID + "."
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		rest := strings.TrimPrefix(id, prefix)
		if rest == id {
			continue
		}
		// rest may itself contain further dots if IDs were ever
		// malformed; only the first segment is this child's index.
		if idx := strings.IndexByte(rest, '.'); idx >= 0 {
			rest = rest[:idx]
		}
		if n, convErr := strconv.Atoi(rest); convErr == nil && n > max {
			max = n
		}
	}
	return max + 1, nil
}
