package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"strconv"
)

// importTokenPattern matches any correction/link token of the form
// "[✓PREFIX####(.digits)*]" that must be rewritten under ID remapping
// (spec.md §4.7), grounded on the teacher's internal/importer/utils.go
// token-rewrite helpers (there applied to issue cross-references instead
// of memory correction tokens).
var importTokenPattern = regexp.MustCompile(`\[✓([A-Za-z]\d{4}(?:\.\d+)*)\]`)

// ImportReport is the structured result of ImportFromHmem, a superset of
// spec.md §4.7's literal (inserted, merged, nodesInserted, nodesSkipped,
// tagsImported, remapped, conflicts) tuple — carried as a struct instead
// of bare integers, following the teacher's --dry-run reporting pattern
// on cmd/bd's import command.
type ImportReport struct {
	Inserted      int
	Merged        int
	NodesInserted int
	NodesSkipped  int
	TagsImported  int
	Remapped      bool
	Conflicts     int
	DryRun        bool
}

type sourceRoot struct {
	id, prefix, createdAt, level1, title, linksJSON, minRole string
	seq, accessCount                                         int
	lastAccessed                                              sql.NullString
	obsolete, favorite, irrelevant, pinned                    int
}

type sourceNode struct {
	id, parentID, content, title, createdAt string
	depth, seq, accessCount                 int
	favorite, irrelevant                    int
}

// ImportFromHmem merges sourcePath's store into s in three phases:
// analyze (classify new vs duplicate, detect ID conflicts), plan
// (schedule node re-parenting for duplicates, verbatim copy for new
// roots), commit (one transaction, skipped entirely when dryRun).
func (s *Store) ImportFromHmem(ctx context.Context, sourcePath string, dryRun bool) (ImportReport, error) {
	if !dryRun {
		if err := s.refuseIfCorrupted(); err != nil {
			return ImportReport{}, err
		}
	}

	source, err := Open(sourcePath, s.cfg)
	if err != nil {
		return ImportReport{}, err
	}
	defer source.Close()

	roots, err := loadAllRoots(source.db)
	if err != nil {
		return ImportReport{}, err
	}

	report := ImportReport{DryRun: dryRun}

	// Phase 1 — analyze: classify duplicate vs new, detect ID conflicts.
	type classified struct {
		root       sourceRoot
		duplicate  bool
		targetID   string // for duplicates, the existing target root ID
		conflicted bool
	}
	items := make([]classified, 0, len(roots))
	for _, r := range roots {
		targetID, isDup, err := findDuplicate(s.db, r.prefix, r.level1)
		if err != nil {
			return ImportReport{}, err
		}
		c := classified{root: r, duplicate: isDup, targetID: targetID}
		if !isDup {
			if exists, err := rootExists(s.db, r.id); err != nil {
				return ImportReport{}, err
			} else if exists {
				c.conflicted = true
				report.Conflicts++
			}
		}
		items = append(items, c)
	}

	remapped := report.Conflicts > 0
	report.Remapped = remapped

	idMap := make(map[string]string)
	for _, c := range items {
		if c.duplicate {
			idMap[c.root.id] = c.targetID
		}
	}
	if remapped {
		nextSeqByPrefix := make(map[string]int)
		for _, c := range items {
			if c.duplicate {
				continue
			}
			if _, ok := nextSeqByPrefix[c.root.prefix]; !ok {
				n, err := nextSequenceDB(s.db, c.root.prefix)
				if err != nil {
					return ImportReport{}, err
				}
				nextSeqByPrefix[c.root.prefix] = n
			}
			newID := formatRootID(c.root.prefix, nextSeqByPrefix[c.root.prefix])
			nextSeqByPrefix[c.root.prefix]++
			idMap[c.root.id] = newID
		}
	} else {
		for _, c := range items {
			if !c.duplicate {
				idMap[c.root.id] = c.root.id
			}
		}
	}

	rewrite := func(text string) string {
		if !remapped {
			return text
		}
		return importTokenPattern.ReplaceAllStringFunc(text, func(tok string) string {
			m := importTokenPattern.FindStringSubmatch(tok)
			if m == nil {
				return tok
			}
			if mapped, ok := idMap[m[1]]; ok {
				return "[✓" + mapped + "]"
			}
			if root, err := rootIDOf(m[1]); err == nil {
				if mapped, ok := idMap[root]; ok {
					return "[✓" + mapped + "]"
				}
			}
			return tok
		})
	}

	// Phase 2 & 3 — plan + commit, combined into one transaction (or
	// skipped entirely under dryRun, counting what would have happened).
	apply := func(tx *sql.Tx) error {
		for _, c := range items {
			nodes, err := loadNodesForRoot(source.db, c.root.id)
			if err != nil {
				return err
			}

			if c.duplicate {
				report.Merged++
				existingContents, err := existingChildContents(dbOrTx(s.db, tx, dryRun), c.targetID)
				if err != nil {
					return err
				}
				startSeq, err := nextChildSeqDB(dbOrTx(s.db, tx, dryRun), c.targetID)
				if err != nil {
					return err
				}
				reparented := make(map[string]string)
				for _, n := range nodes {
					if n.depth != 2 {
						// only direct L2 children are re-parented; deeper descendants follow their parent
						newParent, ok := reparented[n.parentID]
						if !ok {
							continue
						}
						newID := newParent + n.id[len(n.parentID):]
						reparented[n.id] = newID
						report.NodesInserted++
						if !dryRun {
							if err := insertNode(tx, newID, newParent, c.targetID, n.depth, n.seq, rewrite(n.content), n.title, n.createdAt); err != nil {
								return err
							}
						}
						continue
					}
					if existingContents[n.content] {
						report.NodesSkipped++
						continue
					}
					newID := c.targetID + "." + strconv.Itoa(startSeq)
					reparented[n.id] = newID
					startSeq++
					report.NodesInserted++
					if !dryRun {
						if err := insertNode(tx, newID, c.targetID, c.targetID, 2, startSeq-1, rewrite(n.content), n.title, n.createdAt); err != nil {
							return err
						}
					}
				}
				continue
			}

			targetRootID := idMap[c.root.id]
			report.Inserted++
			if !dryRun {
				linksJSON := rewriteLinksJSON(c.root.linksJSON, idMap, remapped)
				if _, err := tx.Exec(
					`INSERT OR IGNORE INTO root_entries (id, prefix, sequence, created_at, level1, title,
					   access_count, last_accessed, links, min_role, obsolete, favorite, irrelevant, pinned)
					 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					targetRootID, c.root.prefix, extractSeq(targetRootID), c.root.createdAt,
					rewrite(c.root.level1), c.root.title, c.root.accessCount, c.root.lastAccessed,
					linksJSON, c.root.minRole, c.root.obsolete, c.root.favorite, c.root.irrelevant, c.root.pinned,
				); err != nil {
					return err
				}
				if err := copyTags(source.db, tx, c.root.id, targetRootID, &report.TagsImported); err != nil {
					return err
				}
			}

			for _, n := range nodes {
				newID := remapNodeID(n.id, c.root.id, targetRootID)
				newParent := remapNodeID(n.parentID, c.root.id, targetRootID)
				report.NodesInserted++
				if !dryRun {
					if err := insertNode(tx, newID, newParent, targetRootID, n.depth, n.seq, rewrite(n.content), n.title, n.createdAt); err != nil {
						return err
					}
					if err := copyTags(source.db, tx, n.id, newID, &report.TagsImported); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}

	if dryRun {
		if err := apply(nil); err != nil {
			return ImportReport{}, err
		}
		return report, nil
	}

	if err := s.withTx(ctx, apply); err != nil {
		return ImportReport{}, err
	}
	return report, nil
}

func dbOrTx(db *sql.DB, tx *sql.Tx, dryRun bool) queryer {
	if dryRun {
		return db
	}
	return tx
}

func loadAllRoots(db *sql.DB) ([]sourceRoot, error) {
	rows, err := db.Query(`
		SELECT id, prefix, sequence, created_at, level1, title, access_count,
		       last_accessed, links, min_role, obsolete, favorite, irrelevant, pinned
		FROM root_entries WHERE sequence > 0 ORDER BY prefix, sequence`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []sourceRoot
	for rows.Next() {
		var r sourceRoot
		if err := rows.Scan(&r.id, &r.prefix, &r.seq, &r.createdAt, &r.level1, &r.title, &r.accessCount,
			&r.lastAccessed, &r.linksJSON, &r.minRole, &r.obsolete, &r.favorite, &r.irrelevant, &r.pinned); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func loadNodesForRoot(db *sql.DB, rootID string) ([]sourceNode, error) {
	rows, err := db.Query(`
		SELECT id, parent_id, depth, seq, content, title, created_at, access_count, favorite, irrelevant
		FROM nodes WHERE root_id = ? ORDER BY depth, seq`, rootID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []sourceNode
	for rows.Next() {
		var n sourceNode
		if err := rows.Scan(&n.id, &n.parentID, &n.depth, &n.seq, &n.content, &n.title, &n.createdAt, &n.accessCount, &n.favorite, &n.irrelevant); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// findDuplicate implements spec.md §4.7's exact-match duplicate rule:
// same prefix and byte-identical level_1 (open question (c): tight, not
// normalized).
func findDuplicate(db *sql.DB, prefix, level1 string) (targetID string, found bool, err error) {
	row := db.QueryRow(`SELECT id FROM root_entries WHERE prefix = ? AND level1 = ? AND sequence > 0 LIMIT 1`, prefix, level1)
	err = row.Scan(&targetID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return targetID, true, nil
}

func rootExists(db *sql.DB, id string) (bool, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM root_entries WHERE id = ?`, id).Scan(&count)
	return count > 0, err
}

func nextSequenceDB(db *sql.DB, prefix string) (int, error) {
	var max sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(sequence) FROM root_entries WHERE prefix = ?`, prefix).Scan(&max); err != nil {
		return 0, err
	}
	if !max.Valid || max.Int64 < 1 {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

func nextChildSeqDB(q queryer, parentID string) (int, error) {
	rows, err := q.Query(`SELECT seq FROM nodes WHERE parent_id = ?`, parentID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	max := 0
	for rows.Next() {
		var seq int
		if err := rows.Scan(&seq); err != nil {
			return 0, err
		}
		if seq > max {
			max = seq
		}
	}
	return max + 1, rows.Err()
}

func existingChildContents(q queryer, parentID string) (map[string]bool, error) {
	rows, err := q.Query(`SELECT content FROM nodes WHERE parent_id = ?`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		out[content] = true
	}
	return out, rows.Err()
}

func insertNode(tx *sql.Tx, id, parentID, rootID string, depth, seq int, content, title, createdAt string) error {
	_, err := tx.Exec(
		`INSERT OR IGNORE INTO nodes (id, parent_id, root_id, depth, seq, content, title, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, parentID, rootID, depth, seq, content, title, createdAt,
	)
	return err
}

func copyTags(srcDB *sql.DB, tx *sql.Tx, srcOwner, destOwner string, counter *int) error {
	rows, err := srcDB.Query(`SELECT tag FROM tags WHERE owner_id = ?`, srcOwner)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return err
		}
		res, err := tx.Exec(`INSERT OR IGNORE INTO tags (owner_id, tag) VALUES (?, ?)`, destOwner, tag)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			*counter++
		}
	}
	return rows.Err()
}

// remapNodeID rewrites a node ID's root-ID prefix when the root itself
// was remapped, preserving the dotted sibling-sequence suffix verbatim.
func remapNodeID(id, oldRoot, newRoot string) string {
	if oldRoot == newRoot {
		return id
	}
	if len(id) > len(oldRoot) && id[:len(oldRoot)] == oldRoot {
		return newRoot + id[len(oldRoot):]
	}
	return id
}

func rewriteLinksJSON(linksJSON string, idMap map[string]string, remapped bool) string {
	if !remapped || linksJSON == "" {
		return linksJSON
	}
	var links []string
	if err := json.Unmarshal([]byte(linksJSON), &links); err != nil {
		return linksJSON
	}
	for i, l := range links {
		if mapped, ok := idMap[l]; ok {
			links[i] = mapped
			continue
		}
		if root, err := rootIDOf(l); err == nil {
			if mapped, ok := idMap[root]; ok {
				links[i] = remapNodeID(l, root, mapped)
			}
		}
	}
	out, err := json.Marshal(links)
	if err != nil {
		return linksJSON
	}
	return string(out)
}

func extractSeq(rootID string) int {
	_, seq, err := parseRootID(rootID)
	if err != nil {
		return 0
	}
	return seq
}
