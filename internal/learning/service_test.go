package learning_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/netmend/internal/apply"
	"github.com/fyrsmithlabs/netmend/internal/fixplan"
	"github.com/fyrsmithlabs/netmend/internal/knowledge"
	"github.com/fyrsmithlabs/netmend/internal/learning"
	"github.com/fyrsmithlabs/netmend/internal/problem"
)

func newKB(t *testing.T) *knowledge.Service {
	t.Helper()
	kb, err := knowledge.New(nil, knowledge.NewMemoryStore(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, kb.AddRules(knowledge.SeedRules()))
	return kb
}

func testProblem() *problem.Problem {
	return &problem.Problem{
		Device:     "R1",
		Category:   problem.CategoryInterface,
		Symptoms:   []string{"admin_down", "has_ip"},
		Severity:   problem.SeverityCritical,
		Confidence: 1.0,
		DetectedAt: time.Now(),
	}
}

func testPlan() *fixplan.Plan {
	return &fixplan.Plan{
		ID:         "plan-1",
		Device:     "R1",
		TemplateID: "if-no-shutdown",
		RuleID:     "IF-001",
		Category:   problem.CategoryInterface,
	}
}

func TestRecordOutcomeCommitted(t *testing.T) {
	kb := newKB(t)
	svc, err := learning.New(kb, zap.NewNop())
	require.NoError(t, err)

	before := kb.Priors(problem.CategoryInterface)["IF-001"]

	out := &apply.Outcome{PlanID: "plan-1", Device: "R1", State: apply.StateCommitted}
	require.NoError(t, svc.RecordOutcome(context.Background(), testProblem(), testPlan(), "IF-001", out))

	after := kb.Priors(problem.CategoryInterface)["IF-001"]
	assert.Greater(t, after, before, "committed outcome should reinforce the prior")

	hist, err := kb.History(context.Background())
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "IF-001", hist[0].RuleID)
	assert.Equal(t, "interface administratively down", hist[0].Cause)
	assert.Equal(t, "plan-1", hist[0].FixID)
	assert.Equal(t, string(apply.StateCommitted), hist[0].Outcome)
	assert.True(t, hist[0].Success)
	assert.NotEmpty(t, hist[0].ID)
}

func TestRecordOutcomeRolledBack(t *testing.T) {
	kb := newKB(t)
	svc, err := learning.New(kb, zap.NewNop())
	require.NoError(t, err)

	before := kb.Priors(problem.CategoryInterface)["IF-001"]

	out := &apply.Outcome{PlanID: "plan-1", Device: "R1", State: apply.StateRolledBack}
	require.NoError(t, svc.RecordOutcome(context.Background(), testProblem(), testPlan(), "IF-001", out))

	after := kb.Priors(problem.CategoryInterface)["IF-001"]
	assert.Less(t, after, before, "rolled back outcome should decay the prior")

	hist, err := kb.History(context.Background())
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.False(t, hist[0].Success)
}

func TestRecordOutcomeRequiresArguments(t *testing.T) {
	svc, err := learning.New(newKB(t), nil)
	require.NoError(t, err)

	ctx := context.Background()
	out := &apply.Outcome{State: apply.StateCommitted}

	assert.Error(t, svc.RecordOutcome(ctx, nil, testPlan(), "IF-001", out))
	assert.Error(t, svc.RecordOutcome(ctx, testProblem(), nil, "IF-001", out))
	assert.Error(t, svc.RecordOutcome(ctx, testProblem(), testPlan(), "IF-001", nil))
}

func TestRecordFeedback(t *testing.T) {
	kb := newKB(t)
	svc, err := learning.New(kb, zap.NewNop())
	require.NoError(t, err)

	fb := &learning.Feedback{
		Problem: *testProblem(),
		RuleID:  "IF-001",
		FixID:   "manual-1",
		Outcome: "committed",
		Success: true,
	}
	require.NoError(t, svc.RecordFeedback(context.Background(), fb))

	hist, err := kb.History(context.Background())
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "interface administratively down", hist[0].Cause)
	assert.Equal(t, "manual-1", hist[0].FixID)
}

func TestRecordFeedbackRejectsInvalidProblem(t *testing.T) {
	svc, err := learning.New(newKB(t), zap.NewNop())
	require.NoError(t, err)

	fb := &learning.Feedback{Outcome: "committed"}
	assert.Error(t, svc.RecordFeedback(context.Background(), fb))
	assert.Error(t, svc.RecordFeedback(context.Background(), nil))
}

func TestNewRequiresKnowledgeBase(t *testing.T) {
	_, err := learning.New(nil, zap.NewNop())
	assert.Error(t, err)
}
