package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const networkDescriptor = `
id: com.example.network
version: "1"
locale: en_US
provider:
  class_name: NetworkDashboard
  intent_target_package: com.example.settings
screens:
  - title: Network & internet
    class_name: NetworkDashboard
    children:
      - key: data_saver
        kind: list
        title: Data Saver
        summary: Reduce mobile data usage
        entries: [Off, On]
raw:
  - title: Mobile network
    keywords: cellular, carrier
  - title: Mobile data
    keywords: usage, quota
`

// testEnv points every path of the configuration at a fresh temp dir.
func testEnv(t *testing.T) string {
	t.Helper()
	dataDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("SETTINGSEARCH_DATA_DIR", dataDir)
	t.Setenv("SETTINGSEARCH_DESCRIPTOR_DIR", "")
	t.Setenv("SETTINGSEARCH_CATALOG_FILE", "")
	t.Setenv("SETTINGSEARCH_REFRESH_INTERVAL", "")
	return dataDir
}

// writeDescriptor drops a descriptor file into the default descriptor dir.
func writeDescriptor(t *testing.T, dataDir, name, content string) {
	t.Helper()
	dir := filepath.Join(dataDir, "descriptors")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// runCmd executes the root command with args and returns stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	stdout := new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(append([]string{"--config-dir", t.TempDir()}, args...))
	err := root.Execute()
	_ = stopLogging(nil, nil)
	return stdout.String(), err
}

// indexedEnv returns a data dir holding an index of networkDescriptor.
func indexedEnv(t *testing.T) string {
	t.Helper()
	dataDir := testEnv(t)
	writeDescriptor(t, dataDir, "network.yaml", networkDescriptor)
	_, err := runCmd(t, "index")
	require.NoError(t, err)
	return dataDir
}
