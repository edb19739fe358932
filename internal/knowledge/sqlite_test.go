package knowledge

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/netmend/internal/problem"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreAppendList(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	e1 := &HistoryEntry{
		ID:         "e1",
		RecordedAt: time.Now().UTC().Truncate(time.Second),
		Problem: problem.Problem{
			Device:   "R4",
			Category: problem.CategoryInterface,
			Symptoms: []string{"admin_down", "has_ip"},
			Evidence: problem.Evidence{"interface": "GigabitEthernet0/1"},
		},
		RuleID:     "IF-001",
		Cause:      "interface administratively down",
		FixID:      "fix-1",
		TemplateID: "if-no-shutdown",
		Outcome:    "COMMITTED",
		Success:    true,
	}
	require.NoError(t, store.Append(ctx, e1))
	require.NoError(t, store.Append(ctx, &HistoryEntry{
		ID:      "e2",
		Problem: problem.Problem{Device: "R5", Category: problem.CategoryEIGRP, Symptoms: []string{"no_neighbor"}},
		RuleID:  "EIGRP-001",
		Outcome: "ROLLED_BACK",
		Success: false,
	}))

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var got *HistoryEntry
	for i := range entries {
		if entries[i].ID == "e1" {
			got = &entries[i]
		}
	}
	require.NotNil(t, got)
	assert.Equal(t, e1.Problem.Symptoms, got.Problem.Symptoms)
	assert.Equal(t, "GigabitEthernet0/1", got.Problem.Evidence["interface"])
	assert.Equal(t, "if-no-shutdown", got.TemplateID)
	assert.True(t, got.Success)
}

func TestSQLiteStoreRejectsDuplicateID(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	entry := &HistoryEntry{
		ID:      "e1",
		Problem: problem.Problem{Device: "R4", Category: problem.CategoryInterface, Symptoms: []string{"admin_down"}},
		Outcome: "COMMITTED",
		Success: true,
	}
	require.NoError(t, store.Append(ctx, entry))
	assert.Error(t, store.Append(ctx, entry))
}

func TestSQLiteStoreRuleStats(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	add := func(id, ruleID string, success bool) {
		require.NoError(t, store.Append(ctx, &HistoryEntry{
			ID:      id,
			Problem: problem.Problem{Device: "R5", Category: problem.CategoryEIGRP, Symptoms: []string{"no_neighbor"}},
			RuleID:  ruleID,
			Outcome: "COMMITTED",
			Success: success,
		}))
	}
	add("e1", "EIGRP-001", true)
	add("e2", "EIGRP-001", false)
	add("e3", "EIGRP-001", true)
	add("e4", "EIGRP-005", true)

	stats, err := store.RuleStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, RuleStats{Attempts: 3, Successes: 2}, stats["EIGRP-001"])
	assert.Equal(t, RuleStats{Attempts: 1, Successes: 1}, stats["EIGRP-005"])
}
