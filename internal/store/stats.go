package store

// PrefixStats summarizes one prefix's real (sequence > 0) entries.
type PrefixStats struct {
	Prefix       string
	Label        string
	RootCount    int
	ObsoleteCount int
	NodeCount    int
	TagCount     int
}

// Stats aggregates per-prefix counts across the whole store, grounded on
// the teacher's cmd/bd/status.go and count.go aggregate-reporting style.
type Stats struct {
	Prefixes  []PrefixStats
	TotalRoot int
	TotalNode int
	TotalTag  int
}

// Stats computes aggregate counts over every configured prefix.
func (s *Store) Stats() (Stats, error) {
	var out Stats
	for prefix, label := range s.cfg.Prefixes {
		var ps PrefixStats
		ps.Prefix = prefix
		ps.Label = label

		if err := s.db.QueryRow(
			`SELECT COUNT(*), COALESCE(SUM(obsolete), 0) FROM root_entries WHERE prefix = ? AND sequence > 0`,
			prefix,
		).Scan(&ps.RootCount, &ps.ObsoleteCount); err != nil {
			return Stats{}, err
		}

		if err := s.db.QueryRow(
			`SELECT COUNT(*) FROM nodes WHERE root_id IN (SELECT id FROM root_entries WHERE prefix = ? AND sequence > 0)`,
			prefix,
		).Scan(&ps.NodeCount); err != nil {
			return Stats{}, err
		}

		if err := s.db.QueryRow(
			`SELECT COUNT(*) FROM tags WHERE owner_id IN (
			   SELECT id FROM root_entries WHERE prefix = ? AND sequence > 0
			   UNION
			   SELECT id FROM nodes WHERE root_id IN (SELECT id FROM root_entries WHERE prefix = ? AND sequence > 0)
			 )`,
			prefix, prefix,
		).Scan(&ps.TagCount); err != nil {
			return Stats{}, err
		}

		out.Prefixes = append(out.Prefixes, ps)
		out.TotalRoot += ps.RootCount
		out.TotalNode += ps.NodeCount
		out.TotalTag += ps.TagCount
	}
	return out, nil
}

// IntegrityReport is a structural view of the store's health, beyond the
// boolean corrupted flag: the raw integrity_check output plus orphan
// counts, grounded on the teacher's doctor/deep.go orphan-scan pattern
// adapted from issue/dependency orphans to node/tag orphans.
type IntegrityReport struct {
	IntegrityCheckResult string
	OrphanNodes          int
	OrphanTags           int
}

// IntegrityReport runs PRAGMA integrity_check plus orphan scans (nodes
// whose root_id no longer exists, tags whose owner no longer exists) —
// the foreign key constraint prevents orphan nodes going forward, but a
// store migrated from an older schema may still carry them.
func (s *Store) IntegrityReport() (IntegrityReport, error) {
	var report IntegrityReport
	if err := s.db.QueryRow("PRAGMA integrity_check").Scan(&report.IntegrityCheckResult); err != nil {
		return IntegrityReport{}, err
	}
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM nodes WHERE root_id NOT IN (SELECT id FROM root_entries)`,
	).Scan(&report.OrphanNodes); err != nil {
		return IntegrityReport{}, err
	}
	if err := s.db.QueryRow(`
		SELECT COUNT(*) FROM tags
		WHERE owner_id NOT IN (SELECT id FROM root_entries)
		  AND owner_id NOT IN (SELECT id FROM nodes)`,
	).Scan(&report.OrphanTags); err != nil {
		return IntegrityReport{}, err
	}
	return report, nil
}
