package apply

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/netmend/internal/device"
	"github.com/fyrsmithlabs/netmend/internal/fixplan"
)

const instrumentationName = "github.com/fyrsmithlabs/netmend/internal/apply"

// ErrValidationFailure is returned when a plan is handed to Apply with a
// negative or missing verdict. No device mutation has occurred.
var ErrValidationFailure = errors.New("validation failure")

// State is a fix plan lifecycle state.
type State string

const (
	StatePlanned    State = "PLANNED"
	StateValidating State = "VALIDATING"
	StateApplying   State = "APPLYING"
	StateVerifying  State = "VERIFYING"
	StateCommitted  State = "COMMITTED"
	StateRolledBack State = "ROLLED_BACK"
	StateFailed     State = "FAILED"
)

// Terminal reports whether the state ends a plan's lifecycle.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateRolledBack || s == StateFailed
}

// StepResult records what happened to one plan step.
type StepResult struct {
	Name       string `json:"name"`
	Attempts   int    `json:"attempts"`
	Verified   bool   `json:"verified"`
	RolledBack bool   `json:"rolled_back,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Outcome is the terminal record of one apply call.
type Outcome struct {
	PlanID string `json:"plan_id"`
	Device string `json:"device"`
	State  State  `json:"state"`

	Steps []StepResult `json:"steps"`

	// DeviceInconsistent is set with StateFailed when a rollback command
	// failed and the device matches neither the pre-plan nor the
	// post-plan configuration.
	DeviceInconsistent bool `json:"device_inconsistent,omitempty"`

	// Cancelled is set when the caller's context ended the plan at a
	// step boundary.
	Cancelled bool `json:"cancelled,omitempty"`

	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Success reports whether the plan committed.
func (o *Outcome) Success() bool { return o.State == StateCommitted }

// Config tunes plan execution.
type Config struct {
	// CommandTimeout bounds every device command, fix and rollback alike.
	CommandTimeout time.Duration

	// StepRetries is how many times a failed step is re-attempted before
	// the plan rolls back. Rollback commands are never retried.
	StepRetries int
}

// DefaultConfig returns the execution defaults.
func DefaultConfig() *Config {
	return &Config{
		CommandTimeout: 10 * time.Second,
		StepRetries:    1,
	}
}

// Applier executes fix plans. It holds no per-plan state; the session
// passed to Apply carries the per-device exclusivity.
type Applier struct {
	config *Config
	logger *zap.Logger

	tracer          trace.Tracer
	meter           metric.Meter
	planCounter     metric.Int64Counter
	rollbackCounter metric.Int64Counter
}

// New creates an applier.
func New(cfg *Config, logger *zap.Logger) (*Applier, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.CommandTimeout <= 0 {
		return nil, errors.New("command timeout must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Applier{
		config: cfg,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}
	a.initMetrics()
	return a, nil
}

func (a *Applier) initMetrics() {
	var err error

	a.planCounter, err = a.meter.Int64Counter(
		"netmend.apply.plans_total",
		metric.WithDescription("Total number of fix plans by terminal state"),
		metric.WithUnit("{plan}"),
	)
	if err != nil {
		a.logger.Warn("failed to create plan counter", zap.Error(err))
	}

	a.rollbackCounter, err = a.meter.Int64Counter(
		"netmend.apply.rollback_steps_total",
		metric.WithDescription("Total number of step rollbacks issued"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		a.logger.Warn("failed to create rollback counter", zap.Error(err))
	}
}

// Apply executes the plan over the session. The verdict must come from a
// prior validate call; a negative verdict returns ErrValidationFailure
// before any device command runs. Failed applications are not errors:
// the outcome carries the terminal state.
func (a *Applier) Apply(ctx context.Context, plan *fixplan.Plan, sess device.Session, verdict fixplan.Verdict) (*Outcome, error) {
	ctx, span := a.tracer.Start(ctx, "apply.plan")
	defer span.End()

	if plan == nil {
		return nil, errors.New("plan is required")
	}
	if sess == nil {
		return nil, errors.New("device session is required")
	}
	if sess.Device() != plan.Device {
		return nil, fmt.Errorf("session is for %s, plan targets %s", sess.Device(), plan.Device)
	}
	span.SetAttributes(
		attribute.String("plan_id", plan.ID),
		attribute.String("device", plan.Device),
	)

	out := &Outcome{
		PlanID:    plan.ID,
		Device:    plan.Device,
		State:     StatePlanned,
		StartedAt: time.Now(),
	}

	a.transition(plan, out, StateValidating)
	if !verdict.OK {
		err := fmt.Errorf("%w: %v", ErrValidationFailure, verdict.Blockers)
		span.RecordError(err)
		a.logger.Warn("plan refused before any mutation",
			zap.String("plan_id", plan.ID),
			zap.Strings("blockers", verdict.Blockers),
		)
		return nil, err
	}

	a.transition(plan, out, StateApplying)

	applied := 0 // steps whose commands ran, candidates for rollback
	for i := range plan.Steps {
		// Cancellation is deferred to step boundaries.
		if err := ctx.Err(); err != nil {
			out.Cancelled = true
			out.Error = err.Error()
			return a.rollback(ctx, plan, sess, out, applied), nil
		}

		applied = i + 1
		res := a.applyStep(ctx, plan, sess, &plan.Steps[i], out)
		out.Steps = append(out.Steps, res)
		if res.Error != "" {
			out.Error = fmt.Sprintf("step %d (%s): %s", i+1, res.Name, res.Error)
			return a.rollback(ctx, plan, sess, out, applied), nil
		}
	}

	a.transition(plan, out, StateCommitted)
	out.FinishedAt = time.Now()
	a.count(ctx, out)
	return out, nil
}

// applyStep runs one step's commands and verification, retrying the
// whole step on failure up to the configured budget. Commands run under
// APPLYING, the predicate under VERIFYING.
func (a *Applier) applyStep(ctx context.Context, plan *fixplan.Plan, sess device.Session, step *fixplan.Step, out *Outcome) StepResult {
	res := StepResult{Name: step.Name}
	attempts := 1 + a.config.StepRetries

	for attempt := 1; attempt <= attempts; attempt++ {
		res.Attempts = attempt
		res.Error = ""

		a.transition(plan, out, StateApplying)
		if err := a.runCommands(ctx, sess, step.Commands); err != nil {
			res.Error = err.Error()
		} else {
			a.transition(plan, out, StateVerifying)
			if err := a.verifyStep(ctx, plan, sess, step); err != nil {
				res.Error = err.Error()
			} else {
				res.Verified = true
				return res
			}
		}

		if attempt < attempts {
			a.logger.Warn("step failed, retrying",
				zap.String("plan_id", plan.ID),
				zap.String("step", step.Name),
				zap.Int("attempt", attempt),
				zap.String("error", res.Error),
			)
		}
	}
	return res
}

func (a *Applier) runCommands(ctx context.Context, sess device.Session, commands []string) error {
	for _, cmd := range commands {
		res, err := sess.Execute(ctx, cmd, a.config.CommandTimeout)
		if err != nil {
			return fmt.Errorf("execute %q: %w", cmd, err)
		}
		switch res.Status {
		case device.StatusTimeout:
			return fmt.Errorf("command %q timed out", cmd)
		case device.StatusFailed:
			return fmt.Errorf("command %q rejected: %s", cmd, res.Output)
		}
	}
	return nil
}

func (a *Applier) verifyStep(ctx context.Context, plan *fixplan.Plan, sess device.Session, step *fixplan.Step) error {
	if step.Verify.Command == "" {
		return nil
	}
	a.logger.Debug("verifying step",
		zap.String("plan_id", plan.ID),
		zap.String("step", step.Name),
		zap.String("command", step.Verify.Command),
	)
	res, err := sess.Execute(ctx, step.Verify.Command, a.config.CommandTimeout)
	if err != nil {
		return fmt.Errorf("verification execute: %w", err)
	}
	if res.Status != device.StatusOK {
		return fmt.Errorf("verification command %q did not complete", step.Verify.Command)
	}
	if err := step.Verify.Check(res.Output); err != nil {
		return err
	}
	return nil
}

// rollback reverses the first n steps in strict reverse order, the
// failed step included, since its commands may have partially applied.
// Rollback ignores caller cancellation: a restorative sequence is never
// abandoned midway. Any rollback command failure is terminal.
func (a *Applier) rollback(ctx context.Context, plan *fixplan.Plan, sess device.Session, out *Outcome, n int) *Outcome {
	rctx := context.WithoutCancel(ctx)

	for i := n - 1; i >= 0; i-- {
		step := &plan.Steps[i]
		if !step.Mutating() {
			continue
		}

		if a.rollbackCounter != nil {
			a.rollbackCounter.Add(rctx, 1, metric.WithAttributes(
				attribute.String("device", plan.Device),
			))
		}
		a.logger.Info("rolling back step",
			zap.String("plan_id", plan.ID),
			zap.String("step", step.Name),
		)

		if err := a.runCommands(rctx, sess, step.Rollback); err != nil {
			out.Error = fmt.Sprintf("rollback of step %d (%s): %s", i+1, step.Name, err)
			out.DeviceInconsistent = true
			a.transition(plan, out, StateFailed)
			out.FinishedAt = time.Now()
			a.count(rctx, out)
			a.logger.Error("rollback failed, device state inconsistent",
				zap.String("plan_id", plan.ID),
				zap.String("device", plan.Device),
				zap.String("step", step.Name),
				zap.String("error", out.Error),
			)
			return out
		}
		if i <= len(out.Steps)-1 {
			out.Steps[i].RolledBack = true
		}
	}

	a.transition(plan, out, StateRolledBack)
	out.FinishedAt = time.Now()
	a.count(rctx, out)
	return out
}

func (a *Applier) transition(plan *fixplan.Plan, out *Outcome, next State) {
	if out.State == next {
		return
	}
	a.logger.Info("plan state transition",
		zap.String("plan_id", plan.ID),
		zap.String("device", plan.Device),
		zap.String("from", string(out.State)),
		zap.String("to", string(next)),
	)
	out.State = next
}

func (a *Applier) count(ctx context.Context, out *Outcome) {
	if a.planCounter == nil {
		return
	}
	a.planCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("state", string(out.State)),
	))
}
