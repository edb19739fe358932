package learning

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/netmend/internal/apply"
	"github.com/fyrsmithlabs/netmend/internal/fixplan"
	"github.com/fyrsmithlabs/netmend/internal/knowledge"
	"github.com/fyrsmithlabs/netmend/internal/problem"
)

const instrumentationName = "github.com/fyrsmithlabs/netmend/internal/learning"

// Service records fix outcomes into the knowledge base.
type Service struct {
	kb     *knowledge.Service
	logger *zap.Logger

	tracer         trace.Tracer
	meter          metric.Meter
	outcomeCounter metric.Int64Counter
}

// New creates a learning service over the knowledge base.
func New(kb *knowledge.Service, logger *zap.Logger) (*Service, error) {
	if kb == nil {
		return nil, errors.New("knowledge base is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		kb:     kb,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}
	s.initMetrics()
	return s, nil
}

func (s *Service) initMetrics() {
	var err error
	s.outcomeCounter, err = s.meter.Int64Counter(
		"netmend.learning.outcomes_total",
		metric.WithDescription("Total number of fix outcomes fed back"),
		metric.WithUnit("{outcome}"),
	)
	if err != nil {
		s.logger.Warn("failed to create outcome counter", zap.Error(err))
	}
}

// RecordOutcome feeds one applier outcome back into the knowledge base.
// The rule that selected the fix gets its prior reinforced or decayed.
func (s *Service) RecordOutcome(ctx context.Context, p *problem.Problem, plan *fixplan.Plan, ruleID string, out *apply.Outcome) error {
	ctx, span := s.tracer.Start(ctx, "learning.record_outcome")
	defer span.End()

	if p == nil || plan == nil || out == nil {
		return errors.New("problem, plan and outcome are required")
	}

	cause := ""
	if rule, ok := s.kb.Rule(ruleID); ok {
		cause = rule.Cause
	}

	entry := &knowledge.HistoryEntry{
		ID:         uuid.NewString(),
		RecordedAt: time.Now(),
		Problem:    *p,
		RuleID:     ruleID,
		Cause:      cause,
		FixID:      plan.ID,
		TemplateID: plan.TemplateID,
		Outcome:    string(out.State),
		Success:    out.Success(),
	}
	if err := s.kb.Record(ctx, entry); err != nil {
		span.RecordError(err)
		return err
	}

	if s.outcomeCounter != nil {
		s.outcomeCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("state", string(out.State)),
			attribute.Bool("success", out.Success()),
		))
	}
	s.logger.Info("fix outcome recorded",
		zap.String("device", out.Device),
		zap.String("plan_id", plan.ID),
		zap.String("rule_id", ruleID),
		zap.String("state", string(out.State)),
		zap.Bool("device_inconsistent", out.DeviceInconsistent),
	)
	return nil
}

// Feedback is an operator-reported outcome for a fix the engine did not
// observe end to end.
type Feedback struct {
	Problem    problem.Problem `json:"problem"`
	RuleID     string          `json:"rule_id,omitempty"`
	FixID      string          `json:"fix_id,omitempty"`
	TemplateID string          `json:"template_id,omitempty"`
	Outcome    string          `json:"outcome"`
	Success    bool            `json:"success"`
}

// RecordFeedback records an operator-reported outcome.
func (s *Service) RecordFeedback(ctx context.Context, fb *Feedback) error {
	ctx, span := s.tracer.Start(ctx, "learning.record_feedback")
	defer span.End()

	if fb == nil {
		return errors.New("feedback is required")
	}
	if err := fb.Problem.Validate(); err != nil {
		return err
	}

	cause := ""
	if rule, ok := s.kb.Rule(fb.RuleID); ok {
		cause = rule.Cause
	}

	entry := &knowledge.HistoryEntry{
		ID:         uuid.NewString(),
		RecordedAt: time.Now(),
		Problem:    fb.Problem,
		RuleID:     fb.RuleID,
		Cause:      cause,
		FixID:      fb.FixID,
		TemplateID: fb.TemplateID,
		Outcome:    fb.Outcome,
		Success:    fb.Success,
	}
	if err := s.kb.Record(ctx, entry); err != nil {
		span.RecordError(err)
		return err
	}

	if s.outcomeCounter != nil {
		s.outcomeCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("state", fb.Outcome),
			attribute.Bool("success", fb.Success),
		))
	}
	return nil
}
