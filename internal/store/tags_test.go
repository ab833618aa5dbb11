package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmemdev/hmem/internal/hmemerr"
	"github.com/hmemdev/hmem/internal/store"
)

func TestSetTagsReplacesPriorTagSet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r, err := s.Write(ctx, "l", "a lesson", store.WriteOptions{Tags: []string{"#retro", "#q3"}})
	require.NoError(t, err)

	require.NoError(t, s.SetTags(ctx, r.ID, []string{"#onboarding"}))

	tags, err := s.TagsFor(r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"#onboarding"}, tags)
}

func TestSetTagsRejectsMalformedTag(t *testing.T) {
	s := openTestStore(t)
	err := s.SetTags(context.Background(), "L0001", []string{"NotLowercase"})
	require.Error(t, err)
	assert.True(t, hmemerr.Is(err, hmemerr.InvalidTag))
}

func TestSetTagsRejectsMoreThanTenTags(t *testing.T) {
	s := openTestStore(t)
	tags := make([]string, 11)
	for i := range tags {
		tags[i] = "#t"
	}
	// distinct tags so the count check fires rather than a dedup
	for i := range tags {
		tags[i] = tags[i] + string(rune('a'+i))
	}
	err := s.SetTags(context.Background(), "L0001", tags)
	require.Error(t, err)
	assert.True(t, hmemerr.Is(err, hmemerr.InvalidTag))
}

func TestRelatedByTagExcludesOwnDescendantNodes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r, err := s.Write(ctx, "l", "alpha\n\ta detail line", store.WriteOptions{Tags: []string{"#x", "#y"}})
	require.NoError(t, err)
	require.NoError(t, s.SetTags(ctx, r.ID+".1", []string{"#x", "#y"}))

	related, err := s.RelatedByTag(r.ID, 2, 5)
	require.NoError(t, err)
	assert.Empty(t, related)
}

func TestRelatedByTagRequiresMinimumSharedCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.Write(ctx, "l", "alpha", store.WriteOptions{Tags: []string{"#x", "#y"}})
	require.NoError(t, err)
	b, err := s.Write(ctx, "l", "bravo", store.WriteOptions{Tags: []string{"#x", "#y"}})
	require.NoError(t, err)
	_, err = s.Write(ctx, "l", "charlie", store.WriteOptions{Tags: []string{"#x"}})
	require.NoError(t, err)

	related, err := s.RelatedByTag(a.ID, 2, 5)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, b.ID, related[0].ID)
}
