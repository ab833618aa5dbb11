package audit_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmemdev/hmem/internal/audit"
)

func TestReadOnMissingFileReturnsEmptyState(t *testing.T) {
	s := audit.New(filepath.Join(t.TempDir(), "audit_state.json"))
	state, err := s.Read()
	require.NoError(t, err)
	assert.Empty(t, state)
}

func TestMarkAuditedPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit_state.json")
	s := audit.New(path)
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkAudited("alice", now))

	reopened := audit.New(path)
	state, err := reopened.Read()
	require.NoError(t, err)
	assert.Equal(t, "2026-07-31T12:00:00.000Z", state["alice"])
}

func TestBuildQueueIncludesFileModifiedAfterLastAudit(t *testing.T) {
	dir := t.TempDir()
	agentFile := filepath.Join(dir, "alice.hmem")
	require.NoError(t, os.WriteFile(agentFile, []byte("data"), 0o640))

	s := audit.New(filepath.Join(dir, "audit_state.json"))
	past := time.Now().Add(-1 * time.Hour)
	require.NoError(t, s.MarkAudited("alice", past))

	queue, err := s.BuildQueue(map[string]string{"alice": agentFile})
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "alice", queue[0].Name)
}

func TestBuildQueueExcludesFileUntouchedSinceLastAudit(t *testing.T) {
	dir := t.TempDir()
	agentFile := filepath.Join(dir, "bob.hmem")
	require.NoError(t, os.WriteFile(agentFile, []byte("data"), 0o640))

	s := audit.New(filepath.Join(dir, "audit_state.json"))
	future := time.Now().Add(1 * time.Hour)
	require.NoError(t, s.MarkAudited("bob", future))

	queue, err := s.BuildQueue(map[string]string{"bob": agentFile})
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestBuildQueueSkipsCandidateWithNoFile(t *testing.T) {
	s := audit.New(filepath.Join(t.TempDir(), "audit_state.json"))
	queue, err := s.BuildQueue(map[string]string{"ghost": "/does/not/exist.hmem"})
	require.NoError(t, err)
	assert.Empty(t, queue)
}
