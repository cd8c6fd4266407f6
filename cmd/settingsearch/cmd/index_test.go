package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/settingsearch/internal/config"
)

func TestIndexCmd_BuildsIndex(t *testing.T) {
	// Given: a descriptor in the descriptor dir
	dataDir := testEnv(t)
	writeDescriptor(t, dataDir, "network.yaml", networkDescriptor)

	// When: running index
	out, err := runCmd(t, "index")

	// Then: the store exists and the summary is printed
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(dataDir, config.StoreFileName))
	assert.NoError(t, statErr)
	assert.Contains(t, out, "Indexed")
	assert.Contains(t, out, "full")
}

func TestIndexCmd_SecondPassIsIncremental(t *testing.T) {
	// Given: an index built from an unchanged descriptor set
	indexedEnv(t)

	// When: indexing again
	out, err := runCmd(t, "index")

	// Then: the pass updates in place
	require.NoError(t, err)
	assert.Contains(t, out, "incremental")
}

func TestIndexCmd_FullFlagForcesRebuild(t *testing.T) {
	// Given: an existing index
	indexedEnv(t)

	// When: indexing with --full
	out, err := runCmd(t, "index", "--full")

	// Then: the pass rebuilds from scratch
	require.NoError(t, err)
	assert.Contains(t, out, "full")
	assert.NotContains(t, out, "incremental")
}

func TestIndexCmd_ResetWipesAndRebuilds(t *testing.T) {
	// Given: an index and a saved query
	indexedEnv(t)
	_, err := runCmd(t, "search", "data saver", "--record")
	require.NoError(t, err)

	// When: indexing with --reset
	out, err := runCmd(t, "index", "--reset")

	// Then: the index is cleared, rebuilt in full, and history survives
	require.NoError(t, err)
	assert.Contains(t, out, "Index cleared")
	assert.Contains(t, out, "full")

	out, err = runCmd(t, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "data saver")
}

func TestIndexCmd_EmptyDescriptorDir(t *testing.T) {
	// Given: no descriptors at all
	testEnv(t)

	// When: running index
	out, err := runCmd(t, "index")

	// Then: the pass succeeds with zero rows
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 0 rows")
}

func TestRequireIndex_Missing(t *testing.T) {
	// Given: a path without a store
	path := filepath.Join(t.TempDir(), config.StoreFileName)

	// When: checking for the index
	err := requireIndex(path)

	// Then: the error tells the user what to run
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settingsearch index")
}
