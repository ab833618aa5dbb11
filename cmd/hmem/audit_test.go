package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverAgentStoresFindsBothDirectoryConventions(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Agents", "alice"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Assistenten", "bob"), 0o750))

	found, err := discoverAgentStores(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Agents", "alice", "alice.hmem"), found["alice"])
	assert.Equal(t, filepath.Join(root, "Assistenten", "bob", "bob.hmem"), found["bob"])
}

func TestDiscoverAgentStoresOnMissingDirsReturnsEmptyMap(t *testing.T) {
	found, err := discoverAgentStores(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestDiscoverAgentStoresPrefersAgentsOverAssistentenOnNameCollision(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Agents", "carol"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Assistenten", "carol"), 0o750))

	found, err := discoverAgentStores(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Agents", "carol", "carol.hmem"), found["carol"])
}
