package read_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmemdev/hmem/internal/config"
	"github.com/hmemdev/hmem/internal/read"
	"github.com/hmemdev/hmem/internal/session"
	"github.com/hmemdev/hmem/internal/store"
	"github.com/hmemdev/hmem/internal/types"
)

func openTestEngine(t *testing.T) (*store.Store, *read.Engine) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.hmem")
	s, err := store.Open(path, config.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, read.New(s, session.New(s.Config().SessionWindows))
}

func TestReadByIDReturnsSingleEntryAndBumpsAccess(t *testing.T) {
	s, eng := openTestEngine(t)
	ctx := context.Background()
	r, err := s.Write(ctx, "l", "a lesson learned", store.WriteOptions{})
	require.NoError(t, err)

	result, err := eng.Read(read.Options{ID: r.ID, CallerRole: types.RoleCEO})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, r.ID, result.Entries[0].ID)
	assert.Equal(t, 1, result.Entries[0].AccessCount)
}

func TestReadByIDFollowsObsoleteChainToLatestCorrection(t *testing.T) {
	s, eng := openTestEngine(t)
	ctx := context.Background()

	original, err := s.Write(ctx, "l", "outdated approach", store.WriteOptions{})
	require.NoError(t, err)
	correction, err := s.Write(ctx, "l", "the right approach", store.WriteOptions{})
	require.NoError(t, err)

	obsolete := true
	require.NoError(t, s.UpdateNode(ctx, original.ID, "wrong, see [✓"+correction.ID+"]", store.UpdateOptions{Obsolete: &obsolete}))

	result, err := eng.Read(read.Options{ID: original.ID, CallerRole: types.RoleCEO})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, correction.ID, result.Entries[0].ID)
	assert.Equal(t, []string{original.ID, correction.ID}, result.Entries[0].ObsoleteChain)
}

func TestReadByIDWithShowObsoletePathReturnsEveryHop(t *testing.T) {
	s, eng := openTestEngine(t)
	ctx := context.Background()

	original, err := s.Write(ctx, "l", "outdated approach", store.WriteOptions{})
	require.NoError(t, err)
	correction, err := s.Write(ctx, "l", "the right approach", store.WriteOptions{})
	require.NoError(t, err)
	obsolete := true
	require.NoError(t, s.UpdateNode(ctx, original.ID, "wrong, see [✓"+correction.ID+"]", store.UpdateOptions{Obsolete: &obsolete}))

	result, err := eng.Read(read.Options{ID: original.ID, ShowObsoletePath: true, CallerRole: types.RoleCEO})
	require.NoError(t, err)
	assert.Len(t, result.Entries, 2)
}

func TestReadSearchFindsSubstringMatchCaseInsensitive(t *testing.T) {
	s, eng := openTestEngine(t)
	ctx := context.Background()
	_, err := s.Write(ctx, "l", "Debugging the RETRY logic", store.WriteOptions{})
	require.NoError(t, err)
	_, err = s.Write(ctx, "l", "unrelated content", store.WriteOptions{})
	require.NoError(t, err)

	result, err := eng.Read(read.Options{Search: "retry", CallerRole: types.RoleCEO})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Contains(t, result.Entries[0].Level1, "RETRY")
}

func TestReadFiltersCompanyStoreByCallerRole(t *testing.T) {
	s, eng := openTestEngine(t)
	ctx := context.Background()
	_, err := s.Write(ctx, "l", "worker-visible lesson", store.WriteOptions{})
	require.NoError(t, err)
	_, err = s.Write(ctx, "l", "ceo-only lesson", store.WriteOptions{MinRole: "ceo"})
	require.NoError(t, err)

	result, err := eng.Read(read.Options{Search: "lesson", CallerRole: types.RoleWorker})
	require.NoError(t, err)
	for _, e := range result.Entries {
		assert.NotContains(t, e.Level1, "ceo-only")
	}
}

func TestReadOnMissingIDReturnsNotFound(t *testing.T) {
	_, eng := openTestEngine(t)
	_, err := eng.Read(read.Options{ID: "L9999", CallerRole: types.RoleCEO})
	assert.Error(t, err)
}

func TestReadBulkAlwaysPromotesFavorites(t *testing.T) {
	s, eng := openTestEngine(t)
	ctx := context.Background()
	r, err := s.Write(ctx, "l", "a favorited lesson", store.WriteOptions{Favorite: true})
	require.NoError(t, err)

	result, err := eng.Read(read.Options{CallerRole: types.RoleCEO})
	require.NoError(t, err)

	var found *types.MemoryEntry
	for _, e := range result.Entries {
		if e.ID == r.ID {
			found = e
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, types.PromotedFavorite, found.Promoted)
}

func TestReadBulkSuppressesEntryDeliveredInHiddenWindow(t *testing.T) {
	s, eng := openTestEngine(t)
	ctx := context.Background()
	_, err := s.Write(ctx, "l", "first bulk read candidate", store.WriteOptions{})
	require.NoError(t, err)

	first, err := eng.Read(read.Options{CallerRole: types.RoleCEO})
	require.NoError(t, err)
	require.NotEmpty(t, first.Entries)

	second, err := eng.Read(read.Options{CallerRole: types.RoleCEO})
	require.NoError(t, err)
	for _, e := range second.Entries {
		assert.NotEqual(t, first.Entries[0].ID, e.ID)
	}
}

func TestReadBulkWithPrefixFilterBumpsAccess(t *testing.T) {
	s, eng := openTestEngine(t)
	ctx := context.Background()
	r, err := s.Write(ctx, "l", "a lesson under a narrowed bulk read", store.WriteOptions{})
	require.NoError(t, err)

	_, err = eng.Read(read.Options{Prefix: "L", CallerRole: types.RoleCEO})
	require.NoError(t, err)

	byID, err := eng.Read(read.Options{ID: r.ID, CallerRole: types.RoleCEO})
	require.NoError(t, err)
	require.Len(t, byID.Entries, 1)
	assert.Equal(t, 2, byID.Entries[0].AccessCount)
}

func TestReadBulkWithoutFilterDoesNotBumpAccess(t *testing.T) {
	s, eng := openTestEngine(t)
	ctx := context.Background()
	r, err := s.Write(ctx, "l", "a lesson under an unfiltered bulk read", store.WriteOptions{})
	require.NoError(t, err)

	_, err = eng.Read(read.Options{CallerRole: types.RoleCEO})
	require.NoError(t, err)

	byID, err := eng.Read(read.Options{ID: r.ID, CallerRole: types.RoleCEO})
	require.NoError(t, err)
	require.Len(t, byID.Entries, 1)
	assert.Equal(t, 1, byID.Entries[0].AccessCount)
}

func TestReadBulkRegistersDeliveryExactlyOnce(t *testing.T) {
	s, _ := openTestEngine(t)
	ctx := context.Background()
	_, err := s.Write(ctx, "l", "a lesson for slot fraction", store.WriteOptions{})
	require.NoError(t, err)

	sess := session.New(s.Config().SessionWindows)
	engine := read.New(s, sess)

	_, err = engine.Read(read.Options{CallerRole: types.RoleCEO})
	require.NoError(t, err)
	assert.Equal(t, 0.5, sess.SlotFraction())
}

func TestReadByIDDoesNotAdvanceBulkSlotFraction(t *testing.T) {
	s, _ := openTestEngine(t)
	ctx := context.Background()
	r, err := s.Write(ctx, "l", "a lesson read by id", store.WriteOptions{})
	require.NoError(t, err)

	sess := session.New(s.Config().SessionWindows)
	engine := read.New(s, sess)

	_, err = engine.Read(read.Options{ID: r.ID, CallerRole: types.RoleCEO})
	require.NoError(t, err)
	assert.Equal(t, 1.0, sess.SlotFraction())
}

func TestReadBulkShowAllBypassesSessionCacheForCurator(t *testing.T) {
	s, eng := openTestEngine(t)
	ctx := context.Background()
	r, err := s.Write(ctx, "l", "curator visible entry", store.WriteOptions{})
	require.NoError(t, err)

	_, err = eng.Read(read.Options{CallerRole: types.RoleCEO})
	require.NoError(t, err)

	result, err := eng.Read(read.Options{CallerRole: types.RoleCEO, ShowAll: true})
	require.NoError(t, err)

	var found bool
	for _, e := range result.Entries {
		if e.ID == r.ID {
			found = true
		}
	}
	assert.True(t, found)
}
