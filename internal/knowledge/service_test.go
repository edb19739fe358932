package knowledge

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/netmend/internal/problem"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(nil, NewMemoryStore(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, svc.AddRules(SeedRules()))
	return svc
}

func TestNewRequiresHistoryStore(t *testing.T) {
	_, err := New(nil, nil, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history store")
}

func TestAddRuleDuplicateIDRejected(t *testing.T) {
	svc := newTestService(t)
	before := len(svc.Rules())

	dup := Rule{
		ID:        "IF-001",
		Category:  problem.CategoryInterface,
		Cause:     "something else entirely",
		Condition: Condition{Kind: KindSymptomSubset, Symptoms: []string{"x"}},
		Weight:    0.5,
	}
	err := svc.AddRule(dup)
	require.ErrorIs(t, err, ErrDuplicateRule)

	// State unchanged: same count, original rule intact.
	assert.Len(t, svc.Rules(), before)
	r, ok := svc.Rule("IF-001")
	require.True(t, ok)
	assert.Equal(t, "interface administratively down", r.Cause)
}

func TestAddRuleValidation(t *testing.T) {
	svc := newTestService(t)

	err := svc.AddRule(Rule{ID: "BAD-001", Category: "bgp", Cause: "x",
		Condition: Condition{Kind: KindSymptomSubset, Symptoms: []string{"x"}}, Weight: 0.5})
	require.Error(t, err)

	err = svc.AddRule(Rule{ID: "BAD-002", Category: problem.CategoryOSPF, Cause: "x",
		Condition: Condition{Kind: KindSymptomSubset, Symptoms: []string{"x"}}, Weight: 1.0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weight")
}

func TestMatchPosteriorsSumToOne(t *testing.T) {
	svc := newTestService(t)

	p := &problem.Problem{
		Device:   "R5",
		Category: problem.CategoryEIGRP,
		Symptoms: []string{"neighbor_flapping", "timer_delta"},
		Severity: problem.SeverityHigh,
	}

	matches, err := svc.Match(context.Background(), p)
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	sum := 0.0
	for _, m := range matches {
		assert.GreaterOrEqual(t, m.Posterior, 0.0)
		assert.LessOrEqual(t, m.Posterior, 1.0)
		sum += m.Posterior
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestMatchTieBreaksOnSpecificity(t *testing.T) {
	svc := newTestService(t)

	// EIGRP-002 (1 required symptom) and EIGRP-003 (2 required symptoms)
	// carry equal weights, so their posteriors tie.
	p := &problem.Problem{
		Device:   "R5",
		Category: problem.CategoryEIGRP,
		Symptoms: []string{"neighbor_flapping", "timer_delta"},
		Severity: problem.SeverityHigh,
	}

	matches, err := svc.Match(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "EIGRP-003", matches[0].Rule.ID)
	assert.Equal(t, "EIGRP-002", matches[1].Rule.ID)
	assert.InDelta(t, matches[0].Posterior, matches[1].Posterior, 1e-9)
}

func TestMatchFiltersByCategory(t *testing.T) {
	svc := newTestService(t)

	p := &problem.Problem{
		Device:   "R4",
		Category: problem.CategoryInterface,
		Symptoms: []string{"no_neighbor", "as_mismatch"}, // EIGRP tags
		Severity: problem.SeverityHigh,
	}

	matches, err := svc.Match(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestThresholdCondition(t *testing.T) {
	svc := newTestService(t)

	p := &problem.Problem{
		Device:   "R4",
		Category: problem.CategoryInterface,
		Symptoms: []string{"input_errors"},
		Severity: problem.SeverityMedium,
		Evidence: problem.Evidence{"error_rate": "0.05"},
	}
	matches, err := svc.Match(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "IF-005", matches[0].Rule.ID)

	// Below threshold: no match.
	p.Evidence["error_rate"] = "0.001"
	matches, err = svc.Match(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestBaselineDeltaCondition(t *testing.T) {
	svc := newTestService(t)

	p := &problem.Problem{
		Device:   "R6",
		Category: problem.CategoryOSPF,
		Symptoms: []string{"no_neighbor"},
		Severity: problem.SeverityHigh,
		Evidence: problem.Evidence{"current_hello": "30", "expected_hello": "10"},
	}
	matches, err := svc.Match(context.Background(), p)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "OSPF-002", matches[0].Rule.ID)

	// No delta: the baseline-delta rule drops out.
	p.Evidence["current_hello"] = "10"
	matches, err = svc.Match(context.Background(), p)
	require.NoError(t, err)
	for _, m := range matches {
		assert.NotEqual(t, "OSPF-002", m.Rule.ID)
	}
}

func TestRecordUpdatesPriorBounded(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	entry := func(id string, success bool) *HistoryEntry {
		return &HistoryEntry{
			ID:         id,
			RecordedAt: time.Now(),
			Problem: problem.Problem{
				Device:   "R5",
				Category: problem.CategoryEIGRP,
				Symptoms: []string{"neighbor_flapping"},
			},
			RuleID:  "EIGRP-002",
			Cause:   "eigrp k-value mismatch",
			FixID:   "fix-1",
			Outcome: "COMMITTED",
			Success: success,
		}
	}

	before, _ := svc.Rule("EIGRP-002")
	require.NoError(t, svc.Record(ctx, entry("e0", true)))
	after, _ := svc.Rule("EIGRP-002")
	assert.Greater(t, after.Weight, before.Weight)

	// Repeated failures never collapse the weight to zero.
	for i := 0; i < 50; i++ {
		require.NoError(t, svc.Record(ctx, entry(fmt.Sprintf("f%d", i), false)))
	}
	floored, _ := svc.Rule("EIGRP-002")
	assert.GreaterOrEqual(t, floored.Weight, DefaultConfig().MinWeight)

	// Repeated successes never collapse to one.
	for i := 0; i < 200; i++ {
		require.NoError(t, svc.Record(ctx, entry(fmt.Sprintf("s%d", i), true)))
	}
	capped, _ := svc.Rule("EIGRP-002")
	assert.LessOrEqual(t, capped.Weight, DefaultConfig().MaxWeight)
}

func TestPriorsRenormalizeWithinCategory(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sumFor := func(cat problem.Category) float64 {
		sum := 0.0
		for _, p := range svc.Priors(cat) {
			sum += p
		}
		return sum
	}

	for _, cat := range problem.Categories() {
		assert.InDelta(t, 1.0, sumFor(cat), 1e-9, "category %s before update", cat)
	}

	require.NoError(t, svc.Record(ctx, &HistoryEntry{
		ID:      "e1",
		Problem: problem.Problem{Device: "R5", Category: problem.CategoryEIGRP, Symptoms: []string{"neighbor_flapping"}},
		RuleID:  "EIGRP-002",
		Outcome: "ROLLED_BACK",
		Success: false,
	}))

	for _, cat := range problem.Categories() {
		assert.InDelta(t, 1.0, sumFor(cat), 1e-9, "category %s after update", cat)
	}
}

func TestSimilarRanksByJaccard(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	add := func(id string, symptoms []string, success bool) {
		require.NoError(t, svc.Record(ctx, &HistoryEntry{
			ID: id,
			Problem: problem.Problem{
				Device:   "R5",
				Category: problem.CategoryEIGRP,
				Symptoms: symptoms,
			},
			Cause:   "historic",
			Outcome: "COMMITTED",
			Success: success,
		}))
	}
	add("h1", []string{"neighbor_flapping", "timer_delta"}, true)
	add("h2", []string{"neighbor_flapping"}, true)
	add("h3", []string{"duplicate_router_id"}, false)

	p := &problem.Problem{
		Device:   "R5",
		Category: problem.CategoryEIGRP,
		Symptoms: []string{"neighbor_flapping", "timer_delta"},
	}
	scored, err := svc.Similar(ctx, p, 5)
	require.NoError(t, err)
	require.Len(t, scored, 2) // zero-overlap entry omitted
	assert.Equal(t, "h1", scored[0].Entry.ID)
	assert.InDelta(t, 1.0, scored[0].Score, 1e-9)
	assert.Equal(t, "h2", scored[1].Entry.ID)
}

func TestStats(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, &HistoryEntry{
		ID:      "e1",
		Problem: problem.Problem{Device: "R4", Category: problem.CategoryInterface, Symptoms: []string{"admin_down"}},
		RuleID:  "IF-001",
		Outcome: "COMMITTED",
		Success: true,
	}))

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(SeedRules()), st.TotalRules)
	assert.Equal(t, 5, st.RulesByCategory[problem.CategoryInterface])
	assert.Equal(t, 1, st.HistoryEntries)
	assert.Equal(t, 1, st.FixAttempts)
	assert.Equal(t, 1, st.FixSuccesses)
}
