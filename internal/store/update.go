package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/hmemdev/hmem/internal/hmemerr"
	"github.com/hmemdev/hmem/internal/treeparse"
	"github.com/hmemdev/hmem/internal/types"
)

// correctionTokenPattern matches a "[✓ID]" correction reference anywhere
// in an obsolete entry's level_1 text (spec.md §4.3's obsolete protocol).
var correctionTokenPattern = regexp.MustCompile(`\[✓([A-Za-z0-9.]+)\]`)

// UpdateOptions carries updateNode's optional fields. Pointers distinguish
// "not supplied" (nil) from an explicit false/empty value, matching the
// teacher's update-command flag-presence convention (cmd/bd's edit.go).
type UpdateOptions struct {
	Links         *[]string
	Obsolete      *bool
	Favorite      *bool
	Irrelevant    *bool
	Pinned        *bool
	Tags          *[]string
	MinRole       *string // root entries only; curator's fix_agent_memory surfaces this
	CuratorBypass bool
}

// UpdateNode mutates an existing root entry or node in place (spec.md
// §4.3). id's shape (dotted or not) selects the branch.
func (s *Store) UpdateNode(ctx context.Context, id, newContent string, opts UpdateOptions) error {
	if err := s.refuseIfCorrupted(); err != nil {
		return err
	}
	if strings.TrimSpace(newContent) == "" {
		return hmemerr.New(hmemerr.EmptyContent, "content must not be empty")
	}
	if opts.Tags != nil {
		if err := validateTags(*opts.Tags); err != nil {
			return err
		}
	}

	if isNodeID(id) {
		return s.updateNodeBranch(ctx, id, newContent, opts)
	}
	return s.updateRootBranch(ctx, id, newContent, opts)
}

func (s *Store) updateNodeBranch(ctx context.Context, id, newContent string, opts UpdateOptions) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		n, err := loadNodeTx(tx, id)
		if err != nil {
			return err
		}
		limit := s.cfg.MaxCharsPerLevel
		if n.Depth-1 < len(limit) && limit[n.Depth-1] > 0 && len([]rune(newContent)) > charTolerance(limit[n.Depth-1]) {
			return hmemerr.New(hmemerr.CharLimitExceeded, "level %d content exceeds %d characters", n.Depth, limit[n.Depth-1])
		}
		title := treeparse.ExtractTitle(newContent, s.cfg.MaxTitleChars)

		favorite := n.Favorite
		if opts.Favorite != nil {
			favorite = *opts.Favorite
		}
		irrelevant := n.Irrelevant
		if opts.Irrelevant != nil {
			irrelevant = *opts.Irrelevant
		}

		if _, err := tx.Exec(
			`UPDATE nodes SET content = ?, title = ?, favorite = ?, irrelevant = ? WHERE id = ?`,
			newContent, title, boolToInt(favorite), boolToInt(irrelevant), id,
		); err != nil {
			return err
		}
		if opts.Tags != nil {
			if err := replaceTagsTx(tx, id, *opts.Tags); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) updateRootBranch(ctx context.Context, id, newContent string, opts UpdateOptions) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		r, err := loadRootTx(tx, id)
		if err != nil {
			return err
		}

		becomingObsolete := opts.Obsolete != nil && *opts.Obsolete && !r.Obsolete
		var correctionTarget string
		if becomingObsolete && !opts.CuratorBypass {
			m := correctionTokenPattern.FindStringSubmatch(newContent)
			if m == nil {
				return hmemerr.New(hmemerr.ObsoleteWithoutCorrection,
					"marking %q obsolete requires a [✓ID] correction reference", id)
			}
			target := m[1]
			if _, err := rootIDOf(target); err != nil {
				return hmemerr.New(hmemerr.CorrectionTargetMissing, "correction target %q is not a valid ID", target)
			}
			if _, err := loadEntryByIDTx(tx, target); err != nil {
				return hmemerr.Wrap(hmemerr.CorrectionTargetMissing, err, "correction target %q does not exist", target)
			}
			correctionTarget = target
		}

		title := treeparse.ExtractTitle(newContent, s.cfg.MaxTitleChars)
		limit := s.cfg.MaxCharsPerLevel
		if len(limit) > 0 && limit[0] > 0 && len([]rune(newContent)) > charTolerance(limit[0]) {
			return hmemerr.New(hmemerr.CharLimitExceeded, "level 1 content exceeds %d characters", limit[0])
		}

		links := r.Links
		if opts.Links != nil {
			links = *opts.Links
		}

		obsolete := r.Obsolete
		if opts.Obsolete != nil {
			obsolete = *opts.Obsolete
		}
		favorite := r.Favorite
		if opts.Favorite != nil {
			favorite = *opts.Favorite
		}
		irrelevant := r.Irrelevant
		if opts.Irrelevant != nil {
			irrelevant = *opts.Irrelevant
		}
		pinned := r.Pinned
		if opts.Pinned != nil {
			pinned = *opts.Pinned
		}
		minRole := r.MinRole
		if opts.MinRole != nil {
			minRole = types.ParseRole(*opts.MinRole)
		}

		if correctionTarget != "" {
			if err := addBidirectionalLink(tx, id, correctionTarget); err != nil {
				return err
			}
			if err := transferAccessCount(tx, id, correctionTarget); err != nil {
				return err
			}
			links = append(links, correctionTarget)
		}

		accessCount := r.AccessCount
		if obsolete {
			accessCount = 0
		}

		linksJSON, err := json.Marshal(dedupeStrings(links))
		if err != nil {
			return err
		}

		if _, err := tx.Exec(
			`UPDATE root_entries SET level1 = ?, title = ?, links = ?, obsolete = ?, favorite = ?,
			 irrelevant = ?, pinned = ?, access_count = ?, min_role = ? WHERE id = ?`,
			newContent, title, string(linksJSON), boolToInt(obsolete), boolToInt(favorite),
			boolToInt(irrelevant), boolToInt(pinned), accessCount, minRole.String(), id,
		); err != nil {
			return err
		}
		if opts.Tags != nil {
			if err := replaceTagsTx(tx, id, *opts.Tags); err != nil {
				return err
			}
		}
		return nil
	})
}

func loadNodeTx(tx *sql.Tx, id string) (*nodeRow, error) {
	row := tx.QueryRow(`
		SELECT id, parent_id, root_id, depth, seq, content, title, created_at,
		       access_count, last_accessed, favorite, irrelevant
		FROM nodes WHERE id = ?`, id)
	var n nodeRow
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
	n.Favorite = favorite != 0
	n.Irrelevant = irrelevant != 0
	return &n, nil
}

// nodeRow is a minimal scan target for update's node branch; it avoids
// pulling in the timestamp-parsing helpers loadNode needs for read paths.
type nodeRow struct {
	ID          string
	ParentID    string
	RootID      string
	Depth       int
	Seq         int
	Content     string
	Title       string
	AccessCount int
	Favorite    bool
	Irrelevant  bool
}

func loadEntryByIDTx(tx *sql.Tx, id string) (bool, error) {
	if isNodeID(id) {
		var exists int
		err := tx.QueryRow(`SELECT COUNT(*) FROM nodes WHERE id = ?`, id).Scan(&exists)
		if err != nil {
			return false, err
		}
		if exists == 0 {
			return false, hmemerr.New(hmemerr.NotFound, "entry %q not found", id)
		}
		return true, nil
	}
	var exists int
	err := tx.QueryRow(`SELECT COUNT(*) FROM root_entries WHERE id = ? AND sequence > 0`, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists == 0 {
		return false, hmemerr.New(hmemerr.NotFound, "entry %q not found", id)
	}
	return true, nil
}

// addBidirectionalLink adds b to a's links and a to b's links. Links live
// only on root entries' links column; per spec.md §9 open question (b)
// this step is silently skipped whenever either side is a node ID — that
// asymmetry with the access-count transfer below is intentional, not a
// bug to "fix".
func addBidirectionalLink(tx *sql.Tx, a, b string) error {
	if isNodeID(a) || isNodeID(b) {
		return nil
	}
	if err := appendLinkTx(tx, a, b); err != nil {
		return err
	}
	return appendLinkTx(tx, b, a)
}

func appendLinkTx(tx *sql.Tx, rootID, link string) error {
	var linksJSON string
	if err := tx.QueryRow(`SELECT links FROM root_entries WHERE id = ?`, rootID).Scan(&linksJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return err
	}
	var links []string
	_ = json.Unmarshal([]byte(linksJSON), &links)
	links = dedupeStrings(append(links, link))
	out, err := json.Marshal(links)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`UPDATE root_entries SET links = ? WHERE id = ?`, string(out), rootID)
	return err
}

// transferAccessCount moves obsoleteID's access_count onto the correction
// target itself — a node target's own access_count column, not its root
// (spec.md §4.3; unlike the bidirectional link, this transfer is not
// subject to the root-only restriction of open question (b)).
func transferAccessCount(tx *sql.Tx, obsoleteID, target string) error {
	var count int
	if err := tx.QueryRow(`SELECT access_count FROM root_entries WHERE id = ?`, obsoleteID).Scan(&count); err != nil {
		return err
	}
	if isNodeID(target) {
		_, err := tx.Exec(`UPDATE nodes SET access_count = access_count + ? WHERE id = ?`, count, target)
		return err
	}
	_, err := tx.Exec(`UPDATE root_entries SET access_count = access_count + ? WHERE id = ?`, count, target)
	return err
}

func replaceTagsTx(tx *sql.Tx, ownerID string, tags []string) error {
	if _, err := tx.Exec(`DELETE FROM tags WHERE owner_id = ?`, ownerID); err != nil {
		return err
	}
	for _, t := range tags {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO tags (owner_id, tag) VALUES (?, ?)`, ownerID, t); err != nil {
			return err
		}
	}
	return nil
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
