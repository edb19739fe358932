package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "netmend by Fyrsmith Labs")
	assert.Contains(t, out, "Version:")
}

func TestRulesCommand(t *testing.T) {
	out, err := execute(t, "rules", "--category", "ospf")
	require.NoError(t, err)
	assert.Contains(t, out, "OSPF-001")
	assert.NotContains(t, out, "EIGRP-001")
}

func TestDiagnoseCommand(t *testing.T) {
	snapshot := filepath.Join(t.TempDir(), "r1.yaml")
	require.NoError(t, os.WriteFile(snapshot, []byte(`
device: R1
interfaces:
  - name: GigabitEthernet0/1
    ip: 10.0.0.1
    admin_up: false
    line_up: false
`), 0600))

	out, err := execute(t, "diagnose", snapshot)
	require.NoError(t, err)
	assert.Contains(t, out, `"device": "R1"`)
	assert.Contains(t, out, "IF-001")
}
