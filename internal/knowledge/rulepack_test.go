package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPackYAML = `name: lab-extras
rules:
  - id: OSPF-100
    category: ospf
    cause: mtu mismatch on ospf interface
    description: Neighbor stuck in EXSTART because interface MTUs differ
    condition:
      kind: symptom_subset
      symptoms: [neighbor_exstart, mtu_mismatch]
    weight: 0.8
    template: revert-baseline
  - id: IF-001
    category: interface
    cause: shadow of a seeded rule
    condition:
      kind: symptom_subset
      symptoms: [admin_down]
    weight: 0.5
`

func writePack(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadRulePack(t *testing.T) {
	pack, err := LoadRulePack(writePack(t, testPackYAML))
	require.NoError(t, err)
	assert.Equal(t, "lab-extras", pack.Name)
	require.Len(t, pack.Rules, 2)
	assert.Equal(t, "OSPF-100", pack.Rules[0].ID)
	assert.Equal(t, 0.8, pack.Rules[0].Weight)
	assert.Equal(t, KindSymptomSubset, pack.Rules[0].Condition.Kind)
}

func TestLoadRulePackRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "bad weight",
			yaml: "name: p\nrules:\n  - id: X-1\n    category: ospf\n    cause: c\n    condition: {kind: symptom_subset, symptoms: [a]}\n    weight: 1.5\n",
		},
		{
			name: "unknown category",
			yaml: "name: p\nrules:\n  - id: X-1\n    category: bgp\n    cause: c\n    condition: {kind: symptom_subset, symptoms: [a]}\n    weight: 0.5\n",
		},
		{
			name: "not yaml",
			yaml: "{{{",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRulePack(writePack(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadRulePackMissingFile(t *testing.T) {
	_, err := LoadRulePack(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadPackSkipsDuplicates(t *testing.T) {
	svc, err := New(nil, NewMemoryStore(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, svc.AddRules(SeedRules()))

	pack, err := LoadRulePack(writePack(t, testPackYAML))
	require.NoError(t, err)

	added, err := svc.LoadPack(pack)
	require.NoError(t, err)
	assert.Equal(t, 1, added) // IF-001 already seeded

	// The seeded rule wins over the pack's shadow copy.
	r, ok := svc.Rule("IF-001")
	require.True(t, ok)
	assert.Equal(t, "interface administratively down", r.Cause)

	_, ok = svc.Rule("OSPF-100")
	assert.True(t, ok)

	// Loading the same pack again adds nothing.
	added, err = svc.LoadPack(pack)
	require.NoError(t, err)
	assert.Zero(t, added)
}
