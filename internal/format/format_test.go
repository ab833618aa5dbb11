package format_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hmemdev/hmem/internal/format"
	"github.com/hmemdev/hmem/internal/types"
)

func sampleEntry() *types.MemoryEntry {
	return &types.MemoryEntry{
		ID:        "L0001",
		Prefix:    "L",
		CreatedAt: time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC),
		Level1:    "a lesson learned",
		MinRole:   types.RoleWorker,
	}
}

func TestPlainRendererPassesMarkerTextThroughUnstyled(t *testing.T) {
	e := sampleEntry()
	e.Favorite = true
	e.Promoted = types.PromotedFavorite

	plain := &format.Renderer{Plain: true}
	plainOut := plain.RenderByID([]*types.MemoryEntry{e})

	// Plain bypasses lipgloss.Render entirely, so the marker appears
	// byte-for-byte rather than wrapped in a color profile's escapes.
	assert.Contains(t, plainOut, "L0001 07-31 [♥]  a lesson learned")
}

func TestRenderByIDIncludesObsoleteChainFooter(t *testing.T) {
	e := sampleEntry()
	e.ObsoleteChain = []string{"L0001", "L0002"}

	r := &format.Renderer{Plain: true}
	out := r.RenderByID([]*types.MemoryEntry{e})
	assert.Contains(t, out, "resolved via chain: L0001 -> L0002")
}

func TestRenderBulkGroupsByPrefixWithCounts(t *testing.T) {
	a := sampleEntry()
	b := sampleEntry()
	b.ID = "L0002"
	c := sampleEntry()
	c.ID = "T0001"
	c.Prefix = "T"

	r := &format.Renderer{Plain: true, PrefixDescriptions: map[string]string{"L": "Lessons", "T": "Tasks"}}
	out := r.RenderBulk([]*types.MemoryEntry{a, b, c}, 0)
	assert.Contains(t, out, "Lessons (2/2)")
	assert.Contains(t, out, "Tasks (1/1)")
}

func TestRenderBulkHeaderShowsTotalWiderThanShownCount(t *testing.T) {
	a := sampleEntry()
	a.GroupTotal = 5
	b := sampleEntry()
	b.ID = "L0002"
	b.GroupTotal = 5

	r := &format.Renderer{Plain: true, PrefixDescriptions: map[string]string{"L": "Lessons"}}
	out := r.RenderBulk([]*types.MemoryEntry{a, b}, 0)
	assert.Contains(t, out, "Lessons (2/5)")
}

func TestRenderBulkShowsHiddenObsoleteCount(t *testing.T) {
	r := &format.Renderer{Plain: true}
	out := r.RenderBulk(nil, 3)
	assert.Contains(t, out, "(3 obsolete entries hidden)")
}

func TestCuratorHeaderShowsObsoleteBadgeAndRole(t *testing.T) {
	e := sampleEntry()
	e.Obsolete = true
	e.MinRole = types.RolePL

	r := &format.Renderer{Curator: true, Plain: true}
	out := r.RenderByID([]*types.MemoryEntry{e})
	assert.Contains(t, out, "[pl]")
	assert.Contains(t, out, "OBSOLETE")
}

func TestCompactHeaderMarksObsoleteWithBang(t *testing.T) {
	e := sampleEntry()
	e.Obsolete = true

	r := &format.Renderer{Plain: true}
	out := r.RenderByID([]*types.MemoryEntry{e})
	assert.Contains(t, out, "[!]")
}
