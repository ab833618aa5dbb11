package read

import (
	"math"
	"sort"
	"time"

	"github.com/hmemdev/hmem/internal/config"
	"github.com/hmemdev/hmem/internal/session"
	"github.com/hmemdev/hmem/internal/store"
	"github.com/hmemdev/hmem/internal/types"
)

// readBulk implements spec.md §4.4.4's V2 selection algorithm.
func (e *Engine) readBulk(opts Options) ([]*types.MemoryEntry, error) {
	roots, err := e.Store.QueryRoots(store.RootFilter{
		Prefix:       opts.Prefix,
		After:        opts.After,
		Before:       opts.Before,
		Tag:          opts.Tag,
		AllowedRoles: e.allowedRoles(opts),
	})
	if err != nil {
		return nil, err
	}

	// spec.md §4.3: bulk queries bump access only when the caller supplied
	// a narrowing filter (prefix, after, or before) — an unfiltered bulk
	// read is a broad browse, not a deliberate lookup.
	if opts.Prefix != "" || opts.After != nil || opts.Before != nil {
		for _, r := range roots {
			_ = e.Store.BumpAccess(r.ID)
		}
	}

	// Step 1: drop irrelevant, partition obsolete/non-obsolete.
	var nonObsolete, obsolete []*types.RootEntry
	for _, r := range roots {
		if r.Irrelevant {
			continue
		}
		if r.Obsolete {
			obsolete = append(obsolete, r)
		} else {
			nonObsolete = append(nonObsolete, r)
		}
	}

	cfg := e.Store.Config()

	// Step 2: curator shortcut.
	if opts.ShowAll {
		out := e.renderCuratorShortcut(nonObsolete, opts)
		if opts.ShowObsolete {
			out = append(out, e.renderCuratorShortcut(obsolete, opts)...)
		}
		return out, nil
	}

	// Step 3: group non-obsolete by prefix.
	groups := groupByPrefix(nonObsolete)
	prefixes := sortedKeys(groups)

	fraction := 1.0
	if e.Session != nil {
		fraction = e.Session.SlotFraction()
	}

	var deliveredIDs []string
	promoted := map[string]bool{}
	var out []*types.MemoryEntry

	globalAccessSelected := globalAccessSelection(nonObsolete)

	for _, prefix := range prefixes {
		group := groups[prefix]
		newestCount, accessCount := slotCounts(cfg.BulkReadV2, len(group), fraction)

		hidden := map[string]bool{}
		titleOnly := map[string]bool{}
		if e.Session != nil {
			for _, r := range group {
				switch e.Session.PhaseOf(r.ID) {
				case session.Hidden:
					hidden[r.ID] = true
				case session.TitleOnly:
					titleOnly[r.ID] = true
				}
			}
		}

		eligible := make([]*types.RootEntry, 0, len(group))
		for _, r := range group {
			if hidden[r.ID] || titleOnly[r.ID] {
				continue
			}
			eligible = append(eligible, r)
		}

		expand := map[string]bool{}

		newest := append([]*types.RootEntry(nil), eligible...)
		sort.Slice(newest, func(i, j int) bool { return newest[i].CreatedAt.After(newest[j].CreatedAt) })
		for i := 0; i < newestCount && i < len(newest); i++ {
			expand[newest[i].ID] = true
		}

		byAccess := append([]*types.RootEntry(nil), eligible...)
		sort.Slice(byAccess, func(i, j int) bool {
			return timeWeightedScore(byAccess[i]) > timeWeightedScore(byAccess[j])
		})
		picked := 0
		for _, r := range byAccess {
			if picked >= accessCount {
				break
			}
			if expand[r.ID] || r.AccessCount < 2 {
				continue
			}
			expand[r.ID] = true
			picked++
		}

		// Step 6: favorites/pinned always expand unless suppressed.
		for _, r := range group {
			if (r.Favorite || r.Pinned) && !hidden[r.ID] {
				expand[r.ID] = true
			}
		}

		for _, r := range group {
			if hidden[r.ID] {
				continue
			}
			// Only entries selected for expansion this round, entries
			// still in the session cache's title-only phase, or
			// unconditional favorites/pinned are rendered at all.
			if !expand[r.ID] && !titleOnly[r.ID] {
				continue
			}

			me := types.FromRoot(r)
			me.GroupTotal = len(group)
			if r.Favorite {
				me.Promoted = types.PromotedFavorite
			} else if globalAccessSelected[r.ID] {
				me.Promoted = types.PromotedAccess
			}
			if me.Promoted != "" {
				promoted[r.ID] = true
			}

			if expand[r.ID] && !titleOnly[r.ID] {
				e.fillExpandedBulkEntry(me, r, opts)
			}
			deliveredIDs = append(deliveredIDs, r.ID)
			out = append(out, me)
		}
	}

	if opts.ShowObsolete {
		for _, r := range obsolete {
			out = append(out, types.FromRoot(r))
		}
	}

	if e.Session != nil {
		e.Session.RegisterDelivered(deliveredIDs, promoted)
	}

	return out, nil
}

// fillExpandedBulkEntry attaches L2 children (recursively re-selected),
// resolves links, and counts hidden obsolete/irrelevant links. In
// titlesOnly mode the children are still attached, but link resolution
// and the hidden-link counts are skipped.
func (e *Engine) fillExpandedBulkEntry(me *types.MemoryEntry, r *types.RootEntry, opts Options) {
	me.Expanded = true
	children, err := e.Store.Children(r.ID)
	if err == nil {
		me.Children = e.selectChildrenForExpansion(children, r.Prefix, 3)
	}
	if opts.TitlesOnly {
		return
	}
	visited := map[string]bool{r.ID: true}
	linked, hiddenObsolete, hiddenIrrelevant, _ := e.resolveLinks(r.Links, visited, maxLinkDepth)
	me.LinkedEntries = linked
	me.HiddenObsoleteLinks = hiddenObsolete
	me.HiddenIrrelevantLinks = hiddenIrrelevant
}

// selectChildrenForExpansion implements spec.md §4.4.4 step 7's note that
// an expanded entry's children "apply the same V2 selection recursively
// at child level": direct children compete for the same newest/
// most-accessed/favorite slots a root entry's siblings do, rather than
// being expanded unconditionally. Session-cache hidden/title-only phases
// don't apply at node granularity, so fraction is always 1.0 here.
func (e *Engine) selectChildrenForExpansion(nodes []*types.Node, prefix string, maxDepth int) []*types.MemoryEntry {
	cfg := e.Store.Config()

	relevant := make([]*types.Node, 0, len(nodes))
	for _, n := range nodes {
		if !n.Irrelevant {
			relevant = append(relevant, n)
		}
	}

	newestCount, accessCount := slotCounts(cfg.BulkReadV2, len(relevant), 1.0)

	expand := map[string]bool{}
	newest := append([]*types.Node(nil), relevant...)
	sort.Slice(newest, func(i, j int) bool { return newest[i].CreatedAt.After(newest[j].CreatedAt) })
	for i := 0; i < newestCount && i < len(newest); i++ {
		expand[newest[i].ID] = true
	}

	byAccess := append([]*types.Node(nil), relevant...)
	sort.Slice(byAccess, func(i, j int) bool { return nodeTimeWeightedScore(byAccess[i]) > nodeTimeWeightedScore(byAccess[j]) })
	picked := 0
	for _, n := range byAccess {
		if picked >= accessCount {
			break
		}
		if expand[n.ID] || n.AccessCount < 2 {
			continue
		}
		expand[n.ID] = true
		picked++
	}

	for _, n := range relevant {
		if n.Favorite {
			expand[n.ID] = true
		}
	}

	out := make([]*types.MemoryEntry, 0, len(relevant))
	for _, n := range relevant {
		me := types.FromNode(n, prefix)
		if expand[n.ID] {
			if grand, err := e.Store.Children(n.ID); err == nil && len(grand) > 0 {
				me.Children = e.expandChildren(grand, prefix, maxDepth, n.Depth+1)
			}
		} else if children, err := e.Store.Children(n.ID); err == nil {
			me.HiddenChildrenCount = countRelevant(children)
		}
		out = append(out, me)
	}
	return out
}

func nodeTimeWeightedScore(n *types.Node) float64 {
	ageDays := time.Since(n.CreatedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return float64(n.AccessCount) / math.Log2(ageDays+2)
}

// renderCuratorShortcut expands every row to depth 3 with resolved links,
// skipping session-cache filtering entirely (spec.md §4.4.4 step 2).
func (e *Engine) renderCuratorShortcut(roots []*types.RootEntry, opts Options) []*types.MemoryEntry {
	out := make([]*types.MemoryEntry, 0, len(roots))
	for _, r := range roots {
		me := types.FromRoot(r)
		me.Expanded = true
		children, err := e.Store.Children(r.ID)
		if err == nil {
			me.Children = e.expandChildren(children, r.Prefix, 3, 2)
		}
		visited := map[string]bool{r.ID: true}
		linked, hiddenObsolete, hiddenIrrelevant, _ := e.resolveLinks(r.Links, visited, maxLinkDepth)
		me.LinkedEntries = linked
		me.HiddenObsoleteLinks = hiddenObsolete
		me.HiddenIrrelevantLinks = hiddenIrrelevant
		out = append(out, me)
	}
	return out
}

func groupByPrefix(roots []*types.RootEntry) map[string][]*types.RootEntry {
	groups := make(map[string][]*types.RootEntry)
	for _, r := range roots {
		groups[r.Prefix] = append(groups[r.Prefix], r)
	}
	return groups
}

func sortedKeys(groups map[string][]*types.RootEntry) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// slotCounts derives the per-prefix newest/access slot sizes from the V2
// config (fixed or percentage form) and the session's halving fraction.
func slotCounts(v2 config.BulkReadV2, groupSize int, fraction float64) (newest, access int) {
	if !v2.UsesPercent() {
		newest = scaleSlot(v2.TopNewestCount, fraction)
		access = scaleSlot(v2.TopAccessCount, fraction)
		return
	}
	newest = clamp(int(math.Ceil(v2.NewestPercent*float64(groupSize)*fraction)), v2.NewestMin, v2.NewestMax)
	access = clamp(int(math.Ceil(v2.AccessPercent*float64(groupSize)*fraction)), v2.AccessMin, v2.AccessMax)
	return
}

func scaleSlot(base int, fraction float64) int {
	n := int(math.Ceil(float64(base) * fraction))
	if n < 0 {
		return 0
	}
	return n
}

func clamp(n, min, max int) int {
	if min > 0 && n < min {
		n = min
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}

// timeWeightedScore implements spec.md §4.4.4's access_count /
// log2(age_days + 2) scoring.
func timeWeightedScore(r *types.RootEntry) float64 {
	ageDays := time.Since(r.CreatedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return float64(r.AccessCount) / math.Log2(ageDays+2)
}

// globalAccessSelection independently computes, across the whole
// non-obsolete set, which entries would be chosen by the most-accessed
// criterion — used only to decide the "access" promoted marker, per
// spec.md §4.4.4 step 8 ("independent of per-prefix selection").
func globalAccessSelection(roots []*types.RootEntry) map[string]bool {
	eligible := make([]*types.RootEntry, 0, len(roots))
	for _, r := range roots {
		if r.AccessCount >= 2 {
			eligible = append(eligible, r)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return timeWeightedScore(eligible[i]) > timeWeightedScore(eligible[j]) })
	n := len(eligible) / 5
	if n < 1 && len(eligible) > 0 {
		n = 1
	}
	out := make(map[string]bool, n)
	for i := 0; i < n && i < len(eligible); i++ {
		out[eligible[i].ID] = true
	}
	return out
}
