package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/netmend/internal/knowledge"
	"github.com/fyrsmithlabs/netmend/internal/problem"
)

type stubEstimator struct {
	prob   float64
	sample int
	err    error
}

func (s *stubEstimator) Estimate(_ context.Context, _ *problem.Problem) (float64, int, error) {
	return s.prob, s.sample, s.err
}

func newKB(t *testing.T, rules []knowledge.Rule) *knowledge.Service {
	t.Helper()
	kb, err := knowledge.New(nil, knowledge.NewMemoryStore(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, kb.AddRules(rules))
	return kb
}

func newEngine(t *testing.T, kb *knowledge.Service, est Estimator, logger *zap.Logger) *Engine {
	t.Helper()
	if logger == nil {
		logger = zap.NewNop()
	}
	eng, err := New(nil, kb, est, logger)
	require.NoError(t, err)
	return eng
}

func TestNewRequiresKnowledgeBase(t *testing.T) {
	_, err := New(nil, nil, nil, zap.NewNop())
	require.Error(t, err)
}

func TestDiagnoseAdminDownVerdict(t *testing.T) {
	kb := newKB(t, knowledge.SeedRules())
	eng := newEngine(t, kb, nil, nil)

	d, err := eng.Diagnose(context.Background(), &problem.Problem{
		Device:   "R4",
		Category: problem.CategoryInterface,
		Symptoms: []string{"admin_down", "has_ip"},
		Severity: problem.SeverityHigh,
	})
	require.NoError(t, err)

	top, ok := d.Top()
	require.True(t, ok)
	assert.Equal(t, "IF-001", top.RuleID)
	assert.Equal(t, "interface administratively down", top.Cause)
	assert.GreaterOrEqual(t, top.Confidence, 0.8)
	assert.False(t, d.NeedsDisambiguation)
	assert.False(t, d.Degraded)
	assert.Len(t, d.Hypotheses, 1)
}

func TestDiagnoseSpecificityTieBreak(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	kb := newKB(t, knowledge.SeedRules())
	eng := newEngine(t, kb, nil, zap.New(core))

	d, err := eng.Diagnose(context.Background(), &problem.Problem{
		Device:   "R5",
		Category: problem.CategoryEIGRP,
		Symptoms: []string{"neighbor_flapping", "timer_delta"},
		Severity: problem.SeverityHigh,
	})
	require.NoError(t, err)

	// Equal priors: the two-symptom hello-timer rule wins over the
	// one-symptom k-value rule.
	top, ok := d.Top()
	require.True(t, ok)
	assert.Equal(t, "EIGRP-003", top.RuleID)

	// The losing rule is recorded for audit.
	entries := logs.FilterMessage("rule conflict resolved by specificity").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "EIGRP-003", fields["selected_rule"])
	assert.Equal(t, "EIGRP-002", fields["rejected_rule"])
}

func TestDiagnoseForwardChaining(t *testing.T) {
	rules := []knowledge.Rule{
		{
			ID:       "CH-001",
			Category: problem.CategoryOSPF,
			Cause:    "hello_mismatch",
			Condition: knowledge.Condition{
				Kind:     knowledge.KindSymptomSubset,
				Symptoms: []string{"no_neighbor", "timer_delta"},
			},
			Weight: 0.5,
		},
		{
			ID:       "CH-002",
			Category: problem.CategoryOSPF,
			Cause:    "adjacency cannot form",
			Condition: knowledge.Condition{
				Kind:     knowledge.KindSymptomSubset,
				Symptoms: []string{"hello_mismatch"}, // derived by CH-001
			},
			Weight: 0.9,
		},
	}
	eng := newEngine(t, newKB(t, rules), nil, nil)

	d, err := eng.Diagnose(context.Background(), &problem.Problem{
		Device:   "R6",
		Category: problem.CategoryOSPF,
		Symptoms: []string{"no_neighbor", "timer_delta"},
		Severity: problem.SeverityHigh,
	})
	require.NoError(t, err)

	// Both rules fired, the derived-cause rule at depth 1.
	require.Len(t, d.Chain, 2)
	assert.Equal(t, "CH-001", d.Chain[0].RuleID)
	assert.Equal(t, 0, d.Chain[0].Depth)
	assert.Equal(t, "CH-002", d.Chain[1].RuleID)
	assert.Equal(t, 1, d.Chain[1].Depth)

	steps, err := eng.Explain(d, "adjacency cannot form")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "CH-001", steps[0].RuleID)
	assert.Equal(t, "CH-002", steps[1].RuleID)

	_, err = eng.Explain(d, "never concluded")
	assert.Error(t, err)
}

func TestDiagnoseBreaksDerivationCycles(t *testing.T) {
	// a concludes b, b concludes a. Each rule fires once; chaining stops.
	rules := []knowledge.Rule{
		{
			ID:        "CY-001",
			Category:  problem.CategoryOSPF,
			Cause:     "b",
			Condition: knowledge.Condition{Kind: knowledge.KindSymptomSubset, Symptoms: []string{"a"}},
			Weight:    0.5,
		},
		{
			ID:        "CY-002",
			Category:  problem.CategoryOSPF,
			Cause:     "a",
			Condition: knowledge.Condition{Kind: knowledge.KindSymptomSubset, Symptoms: []string{"b"}},
			Weight:    0.5,
		},
	}
	eng := newEngine(t, newKB(t, rules), nil, nil)

	d, err := eng.Diagnose(context.Background(), &problem.Problem{
		Device:   "R6",
		Category: problem.CategoryOSPF,
		Symptoms: []string{"a"},
		Severity: problem.SeverityLow,
	})
	require.NoError(t, err)
	assert.Len(t, d.Chain, 2)
}

func TestDiagnoseEnsembleWeighting(t *testing.T) {
	tests := []struct {
		name   string
		sample int
		want   float64
	}{
		{"low sample favors rules", 10, 0.7*1.0 + 0.3*0.6},
		{"trusted sample splits evenly", 100, 0.5*1.0 + 0.5*0.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kb := newKB(t, knowledge.SeedRules())
			eng := newEngine(t, kb, &stubEstimator{prob: 0.6, sample: tt.sample}, nil)

			d, err := eng.Diagnose(context.Background(), &problem.Problem{
				Device:   "R4",
				Category: problem.CategoryInterface,
				Symptoms: []string{"admin_down", "has_ip"},
				Severity: problem.SeverityHigh,
			})
			require.NoError(t, err)
			top, _ := d.Top()
			assert.InDelta(t, tt.want, top.Confidence, 1e-9)
			assert.True(t, d.EnsembleApplied)
			assert.False(t, d.Degraded)
		})
	}
}

func TestDiagnoseEnsembleReranksHypotheses(t *testing.T) {
	// Two equal-prior rules tie at posterior 0.5. A trusted low external
	// estimate drags the blended leader to 0.275; the runner-up must then
	// lead the returned list.
	rules := []knowledge.Rule{
		{
			ID:        "EN-001",
			Category:  problem.CategoryEIGRP,
			Cause:     "cause one",
			Condition: knowledge.Condition{Kind: knowledge.KindSymptomSubset, Symptoms: []string{"neighbor_flapping"}},
			Weight:    0.5,
		},
		{
			ID:        "EN-002",
			Category:  problem.CategoryEIGRP,
			Cause:     "cause two",
			Condition: knowledge.Condition{Kind: knowledge.KindSymptomSubset, Symptoms: []string{"timer_delta"}},
			Weight:    0.5,
		},
	}
	eng := newEngine(t, newKB(t, rules), &stubEstimator{prob: 0.05, sample: 500}, nil)

	d, err := eng.Diagnose(context.Background(), &problem.Problem{
		Device:   "R5",
		Category: problem.CategoryEIGRP,
		Symptoms: []string{"neighbor_flapping", "timer_delta"},
		Severity: problem.SeverityMedium,
	})
	require.NoError(t, err)
	assert.True(t, d.EnsembleApplied)
	assert.True(t, d.NeedsDisambiguation)
	require.Len(t, d.Hypotheses, 2)

	for i := 1; i < len(d.Hypotheses); i++ {
		assert.GreaterOrEqual(t, d.Hypotheses[i-1].Confidence, d.Hypotheses[i].Confidence)
	}
	assert.Equal(t, "EN-002", d.Hypotheses[0].RuleID)
	assert.InDelta(t, 0.5, d.Hypotheses[0].Confidence, 1e-9)
	assert.Equal(t, "EN-001", d.Hypotheses[1].RuleID)
	assert.InDelta(t, 0.275, d.Hypotheses[1].Confidence, 1e-9)
}

func TestDiagnoseEstimatorFailureDegrades(t *testing.T) {
	kb := newKB(t, knowledge.SeedRules())
	eng := newEngine(t, kb, &stubEstimator{err: errors.New("model offline")}, nil)

	d, err := eng.Diagnose(context.Background(), &problem.Problem{
		Device:   "R4",
		Category: problem.CategoryInterface,
		Symptoms: []string{"admin_down", "has_ip"},
		Severity: problem.SeverityHigh,
	})
	require.NoError(t, err)
	assert.True(t, d.Degraded)
	assert.False(t, d.EnsembleApplied)

	// Rule-based confidence untouched.
	top, _ := d.Top()
	assert.InDelta(t, 1.0, top.Confidence, 1e-9)
}

func TestDiagnoseUncertainReturnsTopK(t *testing.T) {
	rules := []knowledge.Rule{
		{
			ID:        "U-001",
			Category:  problem.CategoryInterface,
			Cause:     "cause one",
			Condition: knowledge.Condition{Kind: knowledge.KindSymptomSubset, Symptoms: []string{"line_down"}},
			Weight:    0.5,
		},
		{
			ID:        "U-002",
			Category:  problem.CategoryInterface,
			Cause:     "cause two",
			Condition: knowledge.Condition{Kind: knowledge.KindSymptomSubset, Symptoms: []string{"line_down", "input_errors"}},
			Weight:    0.5,
		},
		{
			ID:        "U-003",
			Category:  problem.CategoryInterface,
			Cause:     "cause three",
			Condition: knowledge.Condition{Kind: knowledge.KindSymptomSubset, Symptoms: []string{"input_errors"}},
			Weight:    0.5,
		},
	}
	eng := newEngine(t, newKB(t, rules), nil, nil)

	d, err := eng.Diagnose(context.Background(), &problem.Problem{
		Device:   "R4",
		Category: problem.CategoryInterface,
		Symptoms: []string{"line_down", "input_errors"},
		Severity: problem.SeverityMedium,
	})
	require.NoError(t, err)
	assert.True(t, d.NeedsDisambiguation)
	require.Len(t, d.Hypotheses, 3)
	assert.Equal(t, "U-002", d.Hypotheses[0].RuleID) // specificity first among ties
	for _, h := range d.Hypotheses {
		assert.Less(t, h.Confidence, 0.8)
	}
}

func TestDiagnoseInsufficientEvidenceFallsBackToHistory(t *testing.T) {
	kb := newKB(t, knowledge.SeedRules())
	require.NoError(t, kb.Record(context.Background(), &knowledge.HistoryEntry{
		ID: "h1",
		Problem: problem.Problem{
			Device:   "R5",
			Category: problem.CategoryEIGRP,
			Symptoms: []string{"strange_flap"},
		},
		RuleID:  "EIGRP-002",
		Cause:   "eigrp k-value mismatch",
		Outcome: "COMMITTED",
		Success: true,
	}))
	eng := newEngine(t, kb, nil, nil)

	d, err := eng.Diagnose(context.Background(), &problem.Problem{
		Device:   "R5",
		Category: problem.CategoryEIGRP,
		Symptoms: []string{"strange_flap"},
		Severity: problem.SeverityLow,
	})
	require.NoError(t, err)
	assert.True(t, d.InsufficientEvidence)
	assert.True(t, d.NeedsDisambiguation)
	require.Len(t, d.Hypotheses, 1)
	assert.True(t, d.Hypotheses[0].FromHistory)
	assert.Equal(t, "eigrp k-value mismatch", d.Hypotheses[0].Cause)
	assert.LessOrEqual(t, d.Hypotheses[0].Confidence, 0.5)
}

func TestDiagnoseNoMatchNoHistory(t *testing.T) {
	eng := newEngine(t, newKB(t, knowledge.SeedRules()), nil, nil)

	d, err := eng.Diagnose(context.Background(), &problem.Problem{
		Device:   "R5",
		Category: problem.CategoryEIGRP,
		Symptoms: []string{"completely_unknown"},
		Severity: problem.SeverityLow,
	})
	require.NoError(t, err)
	assert.True(t, d.InsufficientEvidence)
	assert.Empty(t, d.Hypotheses)
}

func TestSuggestProbes(t *testing.T) {
	cmds := SuggestProbes(&problem.Problem{Category: problem.CategoryEIGRP})
	assert.Contains(t, cmds, "show ip eigrp neighbors")

	cmds = SuggestProbes(&problem.Problem{Category: "unknown"})
	assert.Equal(t, []string{"show running-config"}, cmds)
}
