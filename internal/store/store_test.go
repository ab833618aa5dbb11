package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmemdev/hmem/internal/config"
	"github.com/hmemdev/hmem/internal/hmemerr"
	"github.com/hmemdev/hmem/internal/store"
	"github.com/hmemdev/hmem/internal/types"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.hmem")
	s, err := store.Open(path, config.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestWriteCreatesRootEntryWithSequentialID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r1, err := s.Write(ctx, "l", "learned something", store.WriteOptions{})
	require.NoError(t, err)
	assert.Equal(t, "L0001", r1.ID)

	r2, err := s.Write(ctx, "l", "learned something else", store.WriteOptions{})
	require.NoError(t, err)
	assert.Equal(t, "L0002", r2.ID)
}

func TestWriteRejectsUnregisteredPrefix(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Write(context.Background(), "zz", "content", store.WriteOptions{})
	require.Error(t, err)
	assert.True(t, hmemerr.Is(err, hmemerr.InvalidPrefix))
}

func TestWriteRejectsEmptyContent(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Write(context.Background(), "l", "   ", store.WriteOptions{})
	require.Error(t, err)
	assert.True(t, hmemerr.Is(err, hmemerr.EmptyContent))
}

func TestWriteAcceptsContentAtTolerancedLimit(t *testing.T) {
	s := openTestStore(t)
	cfg := s.Config()
	limit := cfg.MaxCharsPerLevel[0]
	tolerated := limit + limit/4

	content := make([]byte, tolerated)
	for i := range content {
		content[i] = 'a'
	}
	_, err := s.Write(context.Background(), "l", string(content), store.WriteOptions{})
	assert.NoError(t, err)
}

func TestWriteRejectsContentOneByteOverTolerance(t *testing.T) {
	s := openTestStore(t)
	cfg := s.Config()
	limit := cfg.MaxCharsPerLevel[0]
	tolerated := limit + limit/4

	content := make([]byte, tolerated+1)
	for i := range content {
		content[i] = 'a'
	}
	_, err := s.Write(context.Background(), "l", string(content), store.WriteOptions{})
	require.Error(t, err)
	assert.True(t, hmemerr.Is(err, hmemerr.CharLimitExceeded))
}

func TestWriteWithChildNodesParsesTabIndentation(t *testing.T) {
	s := openTestStore(t)
	content := "root summary\n\tchild one\n\t\tgrandchild\n\tchild two"
	r, err := s.Write(context.Background(), "l", content, store.WriteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, r.NodeCount)

	children, err := s.Children(r.ID)
	require.NoError(t, err)
	assert.Len(t, children, 2)
}

func TestUpdateNodeMarkingObsoleteRequiresCorrectionReference(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	r, err := s.Write(ctx, "l", "original lesson", store.WriteOptions{})
	require.NoError(t, err)

	obsolete := true
	err = s.UpdateNode(ctx, r.ID, "this is now wrong", store.UpdateOptions{Obsolete: &obsolete})
	require.Error(t, err)
	assert.True(t, hmemerr.Is(err, hmemerr.ObsoleteWithoutCorrection))
}

func TestUpdateNodeObsoleteWithCorrectionZeroesAccessCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	old, err := s.Write(ctx, "l", "old lesson", store.WriteOptions{})
	require.NoError(t, err)
	require.NoError(t, s.BumpAccess(old.ID))
	require.NoError(t, s.BumpAccess(old.ID))

	newEntry, err := s.Write(ctx, "l", "corrected lesson", store.WriteOptions{})
	require.NoError(t, err)

	obsolete := true
	err = s.UpdateNode(ctx, old.ID, "wrong, see [✓"+newEntry.ID+"]", store.UpdateOptions{Obsolete: &obsolete})
	require.NoError(t, err)

	got, err := s.GetRoot(old.ID)
	require.NoError(t, err)
	assert.True(t, got.Obsolete)
	assert.Equal(t, 0, got.AccessCount)
	assert.Contains(t, got.Links, newEntry.ID)

	correction, err := s.GetRoot(newEntry.ID)
	require.NoError(t, err)
	assert.Contains(t, correction.Links, old.ID)
}

func TestUpdateNodeObsoleteWithCuratorBypassSkipsCorrectionCheck(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	r, err := s.Write(ctx, "l", "lesson to retire", store.WriteOptions{})
	require.NoError(t, err)

	obsolete := true
	err = s.UpdateNode(ctx, r.ID, "retired, no longer relevant", store.UpdateOptions{
		Obsolete:      &obsolete,
		CuratorBypass: true,
	})
	assert.NoError(t, err)
}

func TestUpdateNodeOnMissingIDReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	err := s.UpdateNode(context.Background(), "L999", "content", store.UpdateOptions{})
	require.Error(t, err)
	assert.True(t, hmemerr.Is(err, hmemerr.NotFound))
}

func TestAppendChildrenBumpsParentAccessCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	r, err := s.Write(ctx, "l", "root lesson", store.WriteOptions{})
	require.NoError(t, err)

	res, err := s.AppendChildren(ctx, r.ID, "a new detail")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	require.Len(t, res.NewChildIDs, 1)
	assert.Equal(t, r.ID+".1", res.NewChildIDs[0])

	got, err := s.GetRoot(r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AccessCount)
}

func TestAppendChildrenOnMissingParentReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.AppendChildren(context.Background(), "L999", "detail")
	require.Error(t, err)
	assert.True(t, hmemerr.Is(err, hmemerr.NotFound))
}

func TestDeleteRemovesRootAndDescendants(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	r, err := s.Write(ctx, "l", "root\n\tchild", store.WriteOptions{})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, r.ID))

	_, err = s.GetRoot(r.ID)
	require.Error(t, err)
	assert.True(t, hmemerr.Is(err, hmemerr.NotFound))

	children, err := s.Children(r.ID)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestQueryRootsFiltersByAllowedRoles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Write(ctx, "l", "worker-visible lesson", store.WriteOptions{})
	require.NoError(t, err)
	_, err = s.Write(ctx, "l", "ceo-only lesson", store.WriteOptions{MinRole: "ceo"})
	require.NoError(t, err)

	visible, err := s.QueryRoots(store.RootFilter{AllowedRoles: []types.Role{types.RoleWorker}})
	require.NoError(t, err)
	for _, r := range visible {
		assert.NotEqual(t, types.RoleCEO, r.MinRole)
	}
}
