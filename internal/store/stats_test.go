package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmemdev/hmem/internal/store"
)

func TestStatsCountsRootsNodesAndTags(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Write(ctx, "l", "a lesson\n\tdetail", store.WriteOptions{Tags: []string{"#retro"}})
	require.NoError(t, err)
	_, err = s.Write(ctx, "t", "a task", store.WriteOptions{})
	require.NoError(t, err)

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRoot)
	assert.Equal(t, 1, stats.TotalNode)
	assert.Equal(t, 1, stats.TotalTag)
}

func TestStatsCountsObsoleteEntriesSeparately(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old, err := s.Write(ctx, "l", "outdated", store.WriteOptions{})
	require.NoError(t, err)
	fresh, err := s.Write(ctx, "l", "fresh", store.WriteOptions{})
	require.NoError(t, err)
	obsolete := true
	require.NoError(t, s.UpdateNode(ctx, old.ID, "old, see [✓"+fresh.ID+"]", store.UpdateOptions{Obsolete: &obsolete}))

	stats, err := s.Stats()
	require.NoError(t, err)
	for _, ps := range stats.Prefixes {
		if ps.Prefix == "L" {
			assert.Equal(t, 2, ps.RootCount)
			assert.Equal(t, 1, ps.ObsoleteCount)
		}
	}
}

func TestIntegrityReportOnFreshStoreHasNoOrphans(t *testing.T) {
	s := openTestStore(t)
	report, err := s.IntegrityReport()
	require.NoError(t, err)
	assert.Equal(t, "ok", report.IntegrityCheckResult)
	assert.Equal(t, 0, report.OrphanNodes)
	assert.Equal(t, 0, report.OrphanTags)
}
