// Package read implements C4: the single read(opts) dispatcher over by-ID
// (with obsolete-chain following and link resolution), time-around,
// search, and bulk V2 selection, all filtered by the caller's visible
// roles (spec.md §4.4).
package read

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hmemdev/hmem/internal/hmemerr"
	"github.com/hmemdev/hmem/internal/session"
	"github.com/hmemdev/hmem/internal/store"
	"github.com/hmemdev/hmem/internal/types"
)

// correctionTokenPattern matches the "[✓ID]" token an obsolete root's
// level_1 carries, mirrored from the same grammar store/update.go
// validates on write.
var correctionTokenPattern = regexp.MustCompile(`\[✓([A-Za-z0-9.]+)\]`)

const maxObsoleteHops = 10
const maxLinkDepth = 1
const relatedTagThreshold = 2
const relatedLimit = 5

// Options is the union of every field read(opts) dispatches on —
// exactly one of ID, TimeAround, or Search is normally set; otherwise
// the call is a bulk read.
type Options struct {
	ID               string
	FollowObsolete   *bool // nil means default true
	ShowObsoletePath bool
	Expand           bool

	TimeAround string // reference ID
	Period     string // "+Nh", "-Nh", "Nh", or "both"

	Search string

	Prefix string
	After  *time.Time
	Before *time.Time
	Tag    string

	ShowObsolete bool
	ShowAll      bool // curator shortcut
	TitlesOnly   bool
	Limit        int

	CallerRole types.Role
}

// Engine wires a store and a session cache together to answer read(opts).
type Engine struct {
	Store   *store.Store
	Session *session.Cache
}

func New(s *store.Store, sess *session.Cache) *Engine {
	return &Engine{Store: s, Session: sess}
}

// Result is what Read returns.
type Result struct {
	Entries []*types.MemoryEntry
	Warning string
}

// Read dispatches to the correct branch based on which option is set.
func (e *Engine) Read(opts Options) (Result, error) {
	switch {
	case opts.ID != "":
		entries, err := e.readByID(opts)
		if err != nil {
			return Result{}, err
		}
		res := Result{Entries: entries}
		if e.Store.Corrupted() {
			res.Warning = "store failed its last integrity check; results may be incomplete"
		}
		return res, nil
	case opts.TimeAround != "":
		entries, err := e.readTimeAround(opts)
		if err != nil {
			return Result{}, err
		}
		return Result{Entries: entries}, nil
	case opts.Search != "":
		entries, err := e.readSearch(opts)
		if err != nil {
			return Result{}, err
		}
		return Result{Entries: entries}, nil
	default:
		entries, err := e.readBulk(opts)
		if err != nil {
			return Result{}, err
		}
		return Result{Entries: entries}, nil
	}
}

func (e *Engine) allowedRoles(opts Options) []types.Role {
	return types.VisibleRoles(opts.CallerRole)
}

// readByID implements spec.md §4.4.1.
func (e *Engine) readByID(opts Options) ([]*types.MemoryEntry, error) {
	if isNodeID(opts.ID) {
		n, err := e.Store.GetNode(opts.ID)
		if err != nil {
			return nil, err
		}
		if err := e.Store.BumpAccess(opts.ID); err != nil {
			return nil, err
		}
		prefix, _, err := splitRootPrefix(n.RootID)
		if err != nil {
			return nil, err
		}
		entry := types.FromNode(n, prefix)
		children, err := e.Store.Children(n.ID)
		if err != nil {
			return nil, err
		}
		entry.Children = wrapNodes(children, prefix)
		entry.Expanded = true
		tags, _ := e.Store.TagsFor(n.ID)
		entry.Tags = tags
		return []*types.MemoryEntry{entry}, nil
	}

	r, err := e.Store.GetRoot(opts.ID)
	if err != nil {
		return nil, err
	}

	followObsolete := true
	if opts.FollowObsolete != nil {
		followObsolete = *opts.FollowObsolete
	}

	if r.Obsolete && followObsolete {
		chain, err := e.walkObsoleteChain(r.ID)
		if err != nil {
			return nil, err
		}
		if len(chain) > 1 {
			if opts.ShowObsoletePath {
				out := make([]*types.MemoryEntry, 0, len(chain))
				for _, id := range chain {
					entry, err := e.buildRootEntry(id, opts, false)
					if err != nil {
						continue
					}
					entry.ObsoleteChain = chain
					out = append(out, entry)
				}
				// Access is bumped only on the final entry, not the
				// intermediate obsolete hops (spec.md §4.4.1).
				_ = e.Store.BumpAccess(chain[len(chain)-1])
				return out, nil
			}
			final := chain[len(chain)-1]
			entry, err := e.buildRootEntry(final, opts, true)
			if err != nil {
				return nil, err
			}
			entry.ObsoleteChain = chain
			return []*types.MemoryEntry{entry}, nil
		}
	}

	entry, err := e.buildRootEntry(r.ID, opts, true)
	if err != nil {
		return nil, err
	}
	return []*types.MemoryEntry{entry}, nil
}

// buildRootEntry loads root id fresh, optionally bumps access, attaches
// children/links/tags/related-entries — the common tail of the
// non-chained and chain-resolved root read paths.
func (e *Engine) buildRootEntry(id string, opts Options, bumpAccess bool) (*types.MemoryEntry, error) {
	r, err := e.Store.GetRoot(id)
	if err != nil {
		return nil, err
	}
	if bumpAccess {
		if err := e.Store.BumpAccess(id); err != nil {
			return nil, err
		}
		if r, err = e.Store.GetRoot(id); err != nil {
			return nil, err
		}
	}
	entry := types.FromRoot(r)

	depth := 2
	if opts.Expand {
		depth = 3
	}
	children, err := e.Store.Children(id)
	if err != nil {
		return nil, err
	}
	entry.Children = e.expandChildren(children, r.Prefix, depth, 2)
	entry.Expanded = true

	visited := map[string]bool{id: true}
	linked, hiddenObsolete, hiddenIrrelevant, err := e.resolveLinks(r.Links, visited, maxLinkDepth)
	if err != nil {
		return nil, err
	}
	entry.LinkedEntries = linked
	entry.HiddenObsoleteLinks = hiddenObsolete
	entry.HiddenIrrelevantLinks = hiddenIrrelevant

	tags, err := e.Store.TagsFor(id)
	if err != nil {
		return nil, err
	}
	entry.Tags = tags
	if len(tags) >= relatedTagThreshold {
		related, err := e.Store.RelatedByTag(id, relatedTagThreshold, relatedLimit)
		if err == nil {
			entry.RelatedEntries = related
		}
	}
	return entry, nil
}

// expandChildren recursively wraps nodes up to maxDepth, attaching
// grandchildren-hint counts without fully resolving every level (the
// formatter renders drill-down hints from HiddenChildrenCount).
func (e *Engine) expandChildren(nodes []*types.Node, prefix string, maxDepth, currentDepth int) []*types.MemoryEntry {
	out := make([]*types.MemoryEntry, 0, len(nodes))
	for _, n := range nodes {
		if n.Irrelevant {
			continue
		}
		me := types.FromNode(n, prefix)
		if currentDepth < maxDepth {
			grand, err := e.Store.Children(n.ID)
			if err == nil && len(grand) > 0 {
				me.Children = e.expandChildren(grand, prefix, maxDepth, currentDepth+1)
			}
		} else if children, err := e.Store.Children(n.ID); err == nil {
			me.HiddenChildrenCount = countRelevant(children)
		}
		out = append(out, me)
	}
	return out
}

func countRelevant(nodes []*types.Node) int {
	n := 0
	for _, c := range nodes {
		if !c.Irrelevant {
			n++
		}
	}
	return n
}

func wrapNodes(nodes []*types.Node, prefix string) []*types.MemoryEntry {
	out := make([]*types.MemoryEntry, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, types.FromNode(n, prefix))
	}
	return out
}

// walkObsoleteChain follows "[✓ID]" tokens from id until a non-obsolete
// entry or a cycle/hop-limit is hit (spec.md §4.4.1, §9's cycle
// handling).
func (e *Engine) walkObsoleteChain(id string) ([]string, error) {
	chain := []string{id}
	visited := map[string]bool{id: true}
	current := id

	for hop := 0; hop < maxObsoleteHops; hop++ {
		r, err := e.Store.GetRoot(current)
		if err != nil {
			return chain, nil
		}
		if !r.Obsolete {
			return chain, nil
		}
		m := correctionTokenPattern.FindStringSubmatch(r.Level1)
		if m == nil {
			return chain, nil
		}
		next, err := rootOf(m[1])
		if err != nil {
			return chain, nil
		}
		if visited[next] {
			// Cycle: truncate the chain here rather than erroring
			// (spec.md §7's CycleDetected is "silently broken with a
			// chain-truncation marker").
			return chain, nil
		}
		visited[next] = true
		chain = append(chain, next)
		current = next
	}
	return chain, nil
}

// resolveLinks implements spec.md §4.4.5: follow each link with
// followObsolete=false, partition into obsolete/irrelevant/visible,
// skipping anything already in the visited set.
func (e *Engine) resolveLinks(links []string, visited map[string]bool, linkDepth int) (visible []*types.MemoryEntry, hiddenObsolete, hiddenIrrelevant int, err error) {
	if linkDepth <= 0 {
		return nil, 0, 0, nil
	}
	for _, link := range links {
		if visited[link] {
			continue
		}
		visited[link] = true

		if isNodeID(link) {
			n, getErr := e.Store.GetNode(link)
			if getErr != nil {
				continue
			}
			if n.Irrelevant {
				hiddenIrrelevant++
				continue
			}
			prefix, _, perr := splitRootPrefix(n.RootID)
			if perr != nil {
				continue
			}
			visible = append(visible, types.FromNode(n, prefix))
			continue
		}

		r, getErr := e.Store.GetRoot(link)
		if getErr != nil {
			continue
		}
		if r.Obsolete {
			hiddenObsolete++
			continue
		}
		if r.Irrelevant {
			hiddenIrrelevant++
			continue
		}
		entry := types.FromRoot(r)
		children, cErr := e.Store.Children(link)
		if cErr == nil && len(children) > 0 {
			entry.HiddenChildrenCount = countRelevant(children)
		}
		visible = append(visible, entry)
	}
	return visible, hiddenObsolete, hiddenIrrelevant, nil
}

// readTimeAround implements spec.md §4.4.2.
func (e *Engine) readTimeAround(opts Options) ([]*types.MemoryEntry, error) {
	r, err := e.Store.GetRoot(opts.TimeAround)
	if err != nil {
		return nil, err
	}
	before, after := timeWindow(r.CreatedAt, opts.Period)

	roots, err := e.Store.QueryRoots(store.RootFilter{After: &after, Before: &before, AllowedRoles: e.allowedRoles(opts)})
	if err != nil {
		return nil, err
	}
	out := make([]*types.MemoryEntry, 0, len(roots))
	for _, root := range roots {
		out = append(out, types.FromRoot(root))
	}
	return out, nil
}

// timeWindow parses spec.md §4.4.2's period grammar: "+Nh", "-Nh", "Nh"
// (symmetric ±Nh), or "both" (±2h default).
func timeWindow(ref time.Time, period string) (before, after time.Time) {
	hours := 2.0
	switch {
	case period == "" || period == "both":
		hours = 2
		return ref.Add(time.Duration(hours * float64(time.Hour))), ref.Add(-time.Duration(hours * float64(time.Hour)))
	case strings.HasPrefix(period, "+"):
		if n, err := strconv.ParseFloat(strings.TrimSuffix(period[1:], "h"), 64); err == nil {
			return ref.Add(time.Duration(n * float64(time.Hour))), ref
		}
	case strings.HasPrefix(period, "-"):
		if n, err := strconv.ParseFloat(strings.TrimSuffix(period[1:], "h"), 64); err == nil {
			return ref, ref.Add(-time.Duration(n * float64(time.Hour)))
		}
	default:
		if n, err := strconv.ParseFloat(strings.TrimSuffix(period, "h"), 64); err == nil {
			return ref.Add(time.Duration(n * float64(time.Hour))), ref.Add(-time.Duration(n * float64(time.Hour)))
		}
	}
	return ref.Add(time.Duration(hours * float64(time.Hour))), ref.Add(-time.Duration(hours * float64(time.Hour)))
}

// readSearch implements spec.md §4.4.3.
func (e *Engine) readSearch(opts Options) ([]*types.MemoryEntry, error) {
	roots, err := e.Store.SearchRoots(opts.Search, e.allowedRoles(opts))
	if err != nil {
		return nil, err
	}
	out := make([]*types.MemoryEntry, 0, len(roots))
	for _, r := range roots {
		_ = e.Store.BumpAccess(r.ID)
		out = append(out, types.FromRoot(r))
	}
	return out, nil
}

func isNodeID(id string) bool {
	return strings.Contains(id, ".")
}

func splitRootPrefix(rootID string) (string, int, error) {
	if len(rootID) < 2 {
		return "", 0, hmemerr.New(hmemerr.InvalidID, "%q is not a valid root ID", rootID)
	}
	i := 0
	for i < len(rootID) && !(rootID[i] >= '0' && rootID[i] <= '9') {
		i++
	}
	if i == 0 {
		return "", 0, hmemerr.New(hmemerr.InvalidID, "%q is not a valid root ID", rootID)
	}
	prefix := strings.ToUpper(rootID[:i])
	seq, err := strconv.Atoi(rootID[i:])
	if err != nil {
		return "", 0, hmemerr.New(hmemerr.InvalidID, "%q is not a valid root ID", rootID)
	}
	return prefix, seq, nil
}

func rootOf(id string) (string, error) {
	idx := strings.IndexByte(id, '.')
	if idx < 0 {
		return id, nil
	}
	return id[:idx], nil
}
