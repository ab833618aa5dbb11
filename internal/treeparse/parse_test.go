package treeparse_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmemdev/hmem/internal/treeparse"
)

func TestParseAbsoluteSingleLineBecomesLevel1AndTitle(t *testing.T) {
	result, ok := treeparse.ParseAbsolute("a short lesson", "L0001", 5, 50)
	require.True(t, ok)
	assert.Equal(t, "a short lesson", result.Level1)
	assert.Equal(t, "a short lesson", result.Title)
	assert.Empty(t, result.Nodes)
}

func TestParseAbsoluteOnBlankContentReturnsFalse(t *testing.T) {
	_, ok := treeparse.ParseAbsolute("   \n\n", "L0001", 5, 50)
	assert.False(t, ok)
}

func TestParseAbsoluteAssignsSequentialDottedIDsPerLevel(t *testing.T) {
	content := "summary\n\tfirst child\n\tsecond child\n\t\tgrandchild"
	result, ok := treeparse.ParseAbsolute(content, "L0001", 5, 50)
	require.True(t, ok)
	require.Len(t, result.Nodes, 3)
	assert.Equal(t, "L0001.1", result.Nodes[0].ID)
	assert.Equal(t, "L0001.2", result.Nodes[1].ID)
	assert.Equal(t, "L0001.2.1", result.Nodes[2].ID)
	assert.Equal(t, "L0001.2", result.Nodes[2].ParentID)
}

func TestParseAbsoluteCollapsesOverDeepLinesOntoMaxDepth(t *testing.T) {
	content := "summary\n" + strings.Repeat("\t", 10) + "too deep"
	result, ok := treeparse.ParseAbsolute(content, "L0001", 3, 50)
	require.True(t, ok)
	require.Len(t, result.Nodes, 1)
	assert.Equal(t, 3, result.Nodes[0].Depth)
}

func TestParseAbsoluteAutoDetectsSpaceIndentUnit(t *testing.T) {
	content := "summary\n  first child\n  second child"
	result, ok := treeparse.ParseAbsolute(content, "L0001", 5, 50)
	require.True(t, ok)
	require.Len(t, result.Nodes, 2)
	assert.Equal(t, 2, result.Nodes[0].Depth)
}

func TestParseRelativeContinuesSiblingSequenceFromStartSeq(t *testing.T) {
	nodes := treeparse.ParseRelative("third child\nfourth child", "L0001", 1, 3, 5, 50)
	require.Len(t, nodes, 2)
	assert.Equal(t, "L0001.3", nodes[0].ID)
	assert.Equal(t, "L0001.4", nodes[1].ID)
}

func TestParseRelativeDiscardsLinesThatOverflowMaxDepth(t *testing.T) {
	content := "direct child\n" + strings.Repeat("\t", 10) + "way too deep"
	nodes := treeparse.ParseRelative(content, "L0001", 1, 1, 2, 50)
	require.Len(t, nodes, 1)
	assert.Equal(t, "direct child", nodes[0].Content)
}

func TestExtractTitlePrefersEmDashSeparator(t *testing.T) {
	title := treeparse.ExtractTitle("short title — the rest of the detail goes here", 50)
	assert.Equal(t, "short title", title)
}

func TestExtractTitleTruncatesAtWordBoundary(t *testing.T) {
	title := treeparse.ExtractTitle("this sentence has no dash separator in it at all", 20)
	assert.LessOrEqual(t, len(title), 20)
	assert.NotContains(t, title, "  ")
}
