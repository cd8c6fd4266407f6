package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCmd_JSON(t *testing.T) {
	// Given: an indexed environment
	dataDir := indexedEnv(t)

	// When: running status --json
	out, err := runCmd(t, "status", "--json")

	// Then: counts and metadata are reported
	require.NoError(t, err)
	var info statusInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, dataDir, info.DataDir)
	assert.Equal(t, "en_US", info.Locale)
	assert.Positive(t, info.Rows)
	assert.Positive(t, info.EnabledRows)
	assert.NotEmpty(t, info.LastIndexed)
	assert.False(t, info.Indexing)
	assert.Equal(t, "ok", info.Integrity)
}

func TestStatusCmd_Text(t *testing.T) {
	// Given: an indexed environment
	indexedEnv(t)

	// When: running status
	out, err := runCmd(t, "status")

	// Then: the header and row counts are printed
	require.NoError(t, err)
	assert.Contains(t, out, "Index status")
	assert.Contains(t, out, "enabled")
	assert.Contains(t, out, "Integrity")
}

func TestStatusCmd_RequiresIndex(t *testing.T) {
	// Given: no index
	testEnv(t)

	// When: running status
	_, err := runCmd(t, "status")

	// Then: it fails
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
}
