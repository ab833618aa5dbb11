// Package types holds the persisted entities and in-memory views shared by
// every hmem component: root entries, nodes, tags, and the flattened
// MemoryEntry view returned to callers.
package types

import "time"

// Role is the caller's position in the fixed total order used to gate
// access to the shared company store: worker < al < pl < ceo.
type Role int

const (
	RoleWorker Role = iota
	RoleAL
	RolePL
	RoleCEO
)

// ParseRole maps a role name to its Role value, defaulting to RoleWorker
// for anything unrecognized (callers that omit min_role get the least
// restrictive gate).
func ParseRole(s string) Role {
	switch s {
	case "al":
		return RoleAL
	case "pl":
		return RolePL
	case "ceo":
		return RoleCEO
	default:
		return RoleWorker
	}
}

func (r Role) String() string {
	switch r {
	case RoleAL:
		return "al"
	case RolePL:
		return "pl"
	case RoleCEO:
		return "ceo"
	default:
		return "worker"
	}
}

// VisibleRoles returns every role level at or below caller, inclusive —
// the set a `min_role IN (...)` filter is built from.
func VisibleRoles(caller Role) []Role {
	roles := make([]Role, 0, 4)
	for r := RoleWorker; r <= caller; r++ {
		roles = append(roles, r)
	}
	return roles
}

// RootEntry is one atomic memory: a lesson, project summary, task, etc.
type RootEntry struct {
	ID           string
	Prefix       string
	Sequence     int
	CreatedAt    time.Time
	Level1       string
	Title        string
	AccessCount  int
	LastAccessed *time.Time
	Links        []string
	MinRole      Role
	Obsolete     bool
	Favorite     bool
	Irrelevant   bool
	Pinned       bool
}

// Node is one indented line of detail under a root entry, identified by a
// dotted compound ID (root_id.seq1.seq2...).
type Node struct {
	ID           string
	ParentID     string
	RootID       string
	Depth        int
	Seq          int
	Content      string
	Title        string
	CreatedAt    time.Time
	AccessCount  int
	LastAccessed *time.Time
	Favorite     bool
	Irrelevant   bool
}

// Tag is a (owner_id, tag) association; owner is either a root or node ID.
type Tag struct {
	OwnerID string
	Tag     string
}

// Promoted marker values rendered by the formatter.
const (
	PromotedFavorite = "favorite"
	PromotedAccess   = "access"
)

// MemoryEntry is the uniform object handed back to callers, whether it
// wraps a root entry, a node (for appendChildren / node-ID reads), or a
// chain-resolved obsolete entry. It is a tagged record, not a subclass
// hierarchy — which shape it represents is visible only through which
// optional fields are populated.
type MemoryEntry struct {
	ID           string
	Prefix       string
	CreatedAt    time.Time
	Level1       string
	Title        string
	AccessCount  int
	LastAccessed *time.Time
	Links        []string
	MinRole      Role
	Obsolete     bool
	Favorite     bool
	Irrelevant   bool
	Pinned       bool

	// IsNode is true when this entry wraps a Node rather than a RootEntry.
	IsNode bool
	Depth  int

	Children              []*MemoryEntry
	LinkedEntries         []*MemoryEntry
	Promoted              string
	Expanded              bool
	HiddenChildrenCount   int
	HiddenObsoleteLinks   int
	HiddenIrrelevantLinks int
	ObsoleteChain         []string
	RelatedEntries        []*MemoryEntry
	Tags                  []string

	// GroupTotal is the total number of non-obsolete entries sharing this
	// entry's prefix before hidden/title-only session filtering narrowed
	// the set down to what's actually rendered — the "total" half of a
	// bulk render's "(shown/total)" header. Zero means "unknown", which
	// the renderer treats as shown == total.
	GroupTotal int
}

// FromRoot builds the uniform view from a root entry row.
func FromRoot(r *RootEntry) *MemoryEntry {
	return &MemoryEntry{
		ID:           r.ID,
		Prefix:       r.Prefix,
		CreatedAt:    r.CreatedAt,
		Level1:       r.Level1,
		Title:        r.Title,
		AccessCount:  r.AccessCount,
		LastAccessed: r.LastAccessed,
		Links:        r.Links,
		MinRole:      r.MinRole,
		Obsolete:     r.Obsolete,
		Favorite:     r.Favorite,
		Irrelevant:   r.Irrelevant,
		Pinned:       r.Pinned,
	}
}

// FromNode wraps a node as a MemoryEntry for uniform return shape: level_1
// carries the node's content, and prefix is extracted from the root ID.
func FromNode(n *Node, prefix string) *MemoryEntry {
	return &MemoryEntry{
		ID:           n.ID,
		Prefix:       prefix,
		CreatedAt:    n.CreatedAt,
		Level1:       n.Content,
		Title:        n.Title,
		AccessCount:  n.AccessCount,
		LastAccessed: n.LastAccessed,
		Favorite:     n.Favorite,
		Irrelevant:   n.Irrelevant,
		IsNode:       true,
		Depth:        n.Depth,
	}
}
