package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestLine(t *testing.T, op string, params any) []byte {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	line, err := json.Marshal(rpcRequest{Op: op, Params: raw})
	require.NoError(t, err)
	return append(line, '\n')
}

func decodeResponses(t *testing.T, out *bytes.Buffer) []rpcResponse {
	t.Helper()
	var resps []rpcResponse
	for _, line := range strings.Split(strings.TrimRight(out.String(), "\n"), "\n") {
		if line == "" {
			continue
		}
		var r rpcResponse
		require.NoError(t, json.Unmarshal([]byte(line), &r))
		resps = append(resps, r)
	}
	return resps
}

func TestRunServerWriteThenReadMemoryRoundTrip(t *testing.T) {
	t.Setenv("HMEM_ROOT", t.TempDir())
	t.Setenv("HMEM_ROLE", "ceo")
	t.Setenv("HMEM_AGENT", "")

	var in bytes.Buffer
	in.Write(requestLine(t, "write_memory", writeParams{Prefix: "l", Content: "a lesson learned"}))
	in.Write(requestLine(t, "read_memory", readParams{}))

	var out bytes.Buffer
	require.NoError(t, runServer(&in, &out))

	resps := decodeResponses(t, &out)
	require.Len(t, resps, 2)
	assert.True(t, resps[0].OK)
	assert.True(t, resps[1].OK)
}

func TestRunServerCompanyWriteDeniedForWorkerRole(t *testing.T) {
	t.Setenv("HMEM_ROOT", t.TempDir())
	t.Setenv("HMEM_ROLE", "")
	t.Setenv("HMEM_AGENT", "")

	var in bytes.Buffer
	in.Write(requestLine(t, "write_memory", writeParams{Prefix: "l", Content: "a lesson", Store: "company"}))

	var out bytes.Buffer
	require.NoError(t, runServer(&in, &out))

	resps := decodeResponses(t, &out)
	require.Len(t, resps, 1)
	assert.False(t, resps[0].OK)
	assert.Equal(t, "RoleDenied", resps[0].Kind)
}

func TestRunServerUnknownOpReturnsError(t *testing.T) {
	t.Setenv("HMEM_ROOT", t.TempDir())
	t.Setenv("HMEM_ROLE", "ceo")

	var in bytes.Buffer
	in.Write(requestLine(t, "not_a_real_op", struct{}{}))

	var out bytes.Buffer
	require.NoError(t, runServer(&in, &out))

	resps := decodeResponses(t, &out)
	require.Len(t, resps, 1)
	assert.False(t, resps[0].OK)
}

func TestRunServerMalformedJSONLineStillProducesErrorResponse(t *testing.T) {
	var in bytes.Buffer
	in.WriteString("{not json\n")

	var out bytes.Buffer
	require.NoError(t, runServer(&in, &out))

	resps := decodeResponses(t, &out)
	require.Len(t, resps, 1)
	assert.False(t, resps[0].OK)
}

func TestRunServerGetAuditQueueRequiresCurator(t *testing.T) {
	t.Setenv("HMEM_ROOT", t.TempDir())
	t.Setenv("HMEM_ROLE", "worker")

	var in bytes.Buffer
	in.Write(requestLine(t, "get_audit_queue", struct{}{}))

	var out bytes.Buffer
	require.NoError(t, runServer(&in, &out))

	resps := decodeResponses(t, &out)
	require.Len(t, resps, 1)
	assert.False(t, resps[0].OK)
	assert.Equal(t, "RoleDenied", resps[0].Kind)
}
