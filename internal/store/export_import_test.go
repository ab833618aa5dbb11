package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmemdev/hmem/internal/store"
)

func TestExportThenImportPreservesEntryCount(t *testing.T) {
	ctx := context.Background()
	src := openTestStore(t)
	_, err := src.Write(ctx, "l", "first lesson\n\tdetail one", store.WriteOptions{})
	require.NoError(t, err)
	_, err = src.Write(ctx, "l", "second lesson", store.WriteOptions{})
	require.NoError(t, err)

	exportPath := filepath.Join(t.TempDir(), "export.hmem")
	require.NoError(t, src.ExportToHmem(ctx, exportPath))

	dest := openTestStore(t)
	report, err := dest.ImportFromHmem(ctx, exportPath, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, 0, report.Merged)
	assert.Equal(t, 1, report.NodesInserted)

	roots, err := dest.QueryRoots(store.RootFilter{})
	require.NoError(t, err)
	assert.Len(t, roots, 2)
}

func TestImportDryRunMakesNoChanges(t *testing.T) {
	ctx := context.Background()
	src := openTestStore(t)
	_, err := src.Write(ctx, "l", "a lesson to export", store.WriteOptions{})
	require.NoError(t, err)

	exportPath := filepath.Join(t.TempDir(), "export.hmem")
	require.NoError(t, src.ExportToHmem(ctx, exportPath))

	dest := openTestStore(t)
	report, err := dest.ImportFromHmem(ctx, exportPath, true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Inserted)

	roots, err := dest.QueryRoots(store.RootFilter{})
	require.NoError(t, err)
	assert.Empty(t, roots)
}

func TestImportMergesExactDuplicateLevel1WithoutConflict(t *testing.T) {
	ctx := context.Background()
	dest := openTestStore(t)
	existing, err := dest.Write(ctx, "l", "shared lesson text", store.WriteOptions{})
	require.NoError(t, err)

	src := openTestStore(t)
	_, err = src.Write(ctx, "l", "shared lesson text\n\tnew nuance", store.WriteOptions{})
	require.NoError(t, err)

	exportPath := filepath.Join(t.TempDir(), "export.hmem")
	require.NoError(t, src.ExportToHmem(ctx, exportPath))

	report, err := dest.ImportFromHmem(ctx, exportPath, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Merged)
	assert.Equal(t, 0, report.Conflicts)

	children, err := dest.Children(existing.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "new nuance", children[0].Content)
}

func TestExportRejectsWhenDestinationStoreOpenFails(t *testing.T) {
	s := openTestStore(t)

	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o640))

	err := s.ExportToHmem(context.Background(), filepath.Join(blocker, "export.hmem"))
	assert.Error(t, err)
}
