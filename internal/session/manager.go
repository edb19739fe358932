package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/netmend/internal/apply"
	"github.com/fyrsmithlabs/netmend/internal/detect"
	"github.com/fyrsmithlabs/netmend/internal/device"
	"github.com/fyrsmithlabs/netmend/internal/fixplan"
	"github.com/fyrsmithlabs/netmend/internal/inference"
	"github.com/fyrsmithlabs/netmend/internal/learning"
	"github.com/fyrsmithlabs/netmend/internal/problem"
)

const instrumentationName = "github.com/fyrsmithlabs/netmend/internal/session"

// SessionProvider opens a command channel to a named device.
type SessionProvider interface {
	Session(ctx context.Context, deviceName string) (device.Session, error)
}

// Report is the result of diagnosing one device snapshot.
type Report struct {
	Device    string                 `json:"device"`
	Problems  []problem.Problem      `json:"problems"`
	Diagnoses []*inference.Diagnosis `json:"diagnoses"`
}

// Recommendation pairs a diagnosis with either a validated fix plan or,
// when the diagnosis is too uncertain to act on, probe commands an
// operator can run to gather more evidence.
type Recommendation struct {
	Device     string                `json:"device"`
	Hypothesis *inference.Hypothesis `json:"hypothesis,omitempty"`
	Plan       *fixplan.Plan         `json:"plan,omitempty"`
	Verdict    fixplan.Verdict       `json:"verdict"`
	Probes     []string              `json:"probes,omitempty"`
	Reason     string                `json:"reason,omitempty"`
}

// ApplyRequest carries everything Apply needs to execute a plan and feed
// the outcome back into the knowledge base.
type ApplyRequest struct {
	Plan      *fixplan.Plan    `json:"plan"`
	Problem   *problem.Problem `json:"problem,omitempty"`
	Confirmed bool             `json:"confirmed,omitempty"`
}

// Manager serializes operations per device and wires detection,
// inference, recommendation, application and learning together.
type Manager struct {
	detectors   *detect.Registry
	engine      *inference.Engine
	recommender *fixplan.Recommender
	applier     *apply.Applier
	learner     *learning.Service
	sessions    SessionProvider
	logger      *zap.Logger

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	inFlight map[string]bool

	tracer       trace.Tracer
	meter        metric.Meter
	applyCounter metric.Int64Counter
}

// NewManager builds the coordination layer. Every collaborator except
// the learner is required; without a learner outcomes are simply not
// fed back.
func NewManager(detectors *detect.Registry, engine *inference.Engine, recommender *fixplan.Recommender, applier *apply.Applier, learner *learning.Service, sessions SessionProvider, logger *zap.Logger) (*Manager, error) {
	if detectors == nil {
		return nil, errors.New("detector registry is required")
	}
	if engine == nil {
		return nil, errors.New("inference engine is required")
	}
	if recommender == nil {
		return nil, errors.New("recommender is required")
	}
	if applier == nil {
		return nil, errors.New("applier is required")
	}
	if sessions == nil {
		return nil, errors.New("session provider is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		detectors:   detectors,
		engine:      engine,
		recommender: recommender,
		applier:     applier,
		learner:     learner,
		sessions:    sessions,
		logger:      logger,
		locks:       make(map[string]*sync.Mutex),
		inFlight:    make(map[string]bool),
		tracer:      otel.Tracer(instrumentationName),
		meter:       otel.Meter(instrumentationName),
	}
	m.initMetrics()
	return m, nil
}

func (m *Manager) initMetrics() {
	var err error
	m.applyCounter, err = m.meter.Int64Counter(
		"netmend.session.plans_applied_total",
		metric.WithDescription("Total number of fix plans executed"),
		metric.WithUnit("{plan}"),
	)
	if err != nil {
		m.logger.Warn("failed to create apply counter", zap.Error(err))
	}
}

// deviceLock returns the mutex that serializes work on one device,
// creating it on first use.
func (m *Manager) deviceLock(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[name]
	if !ok {
		l = &sync.Mutex{}
		m.locks[name] = l
	}
	return l
}

// InFlight reports whether a plan is currently executing against the
// device. It satisfies the recommender's validation hook.
func (m *Manager) InFlight(deviceName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight[deviceName]
}

func (m *Manager) setInFlight(deviceName string, v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v {
		m.inFlight[deviceName] = true
	} else {
		delete(m.inFlight, deviceName)
	}
}

// Diagnose runs detection over a device snapshot and infers a root
// cause for every detected problem. It holds the device lock, so a
// diagnosis on a device with an in-flight plan waits for the plan to
// finish.
func (m *Manager) Diagnose(ctx context.Context, state *detect.DeviceState) (*Report, error) {
	ctx, span := m.tracer.Start(ctx, "session.diagnose")
	defer span.End()

	if state == nil || state.Device == "" {
		return nil, errors.New("device snapshot is required")
	}
	span.SetAttributes(attribute.String("device", state.Device))

	lock := m.deviceLock(state.Device)
	lock.Lock()
	defer lock.Unlock()

	probs, err := m.detectors.Produce(ctx, state)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	report := &Report{Device: state.Device, Problems: probs}
	for i := range probs {
		d, err := m.engine.Diagnose(ctx, &probs[i])
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("diagnose %s: %w", state.Device, err)
		}
		report.Diagnoses = append(report.Diagnoses, d)
	}

	m.logger.Info("device diagnosed",
		zap.String("device", state.Device),
		zap.Int("problems", len(probs)),
	)
	return report, nil
}

// Recommend turns a diagnosis into an actionable recommendation. An
// uncertain diagnosis yields probe commands instead of a plan; a
// confident one yields a customized plan with its validation verdict.
// Missing prerequisites surface as an error so the caller knows which
// baseline fields to supply.
func (m *Manager) Recommend(ctx context.Context, diag *inference.Diagnosis, passing []problem.Category, confirmed bool) (*Recommendation, error) {
	ctx, span := m.tracer.Start(ctx, "session.recommend")
	defer span.End()

	if diag == nil || diag.Problem == nil {
		return nil, errors.New("diagnosis is required")
	}
	rec := &Recommendation{Device: diag.Problem.Device}

	if len(diag.Hypotheses) == 0 {
		rec.Reason = "no hypotheses"
		rec.Probes = inference.SuggestProbes(diag.Problem)
		return rec, nil
	}
	top := diag.Hypotheses[0]
	rec.Hypothesis = &top

	if diag.NeedsDisambiguation || diag.InsufficientEvidence {
		rec.Reason = "diagnosis below confidence threshold"
		rec.Probes = inference.SuggestProbes(diag.Problem)
		return rec, nil
	}
	if top.TemplateID == "" {
		rec.Reason = fmt.Sprintf("no fix template for cause %q", top.Cause)
		rec.Probes = inference.SuggestProbes(diag.Problem)
		return rec, nil
	}

	plan, err := m.recommender.Customize(ctx, top.TemplateID, diag.Problem)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	plan.RuleID = top.RuleID
	plan.Risk = m.recommender.AssessRisk(plan, passing)

	rec.Plan = plan
	rec.Verdict = m.recommender.Validate(ctx, plan, fixplan.ValidateState{
		Confirmed: confirmed,
		InFlight:  m,
	})
	return rec, nil
}

// Apply executes a fix plan against its device. The device lock is held
// for the whole execution, so a second plan or a diagnosis on the same
// device queues behind it. The outcome, whatever its terminal state, is
// recorded in the knowledge base.
func (m *Manager) Apply(ctx context.Context, req *ApplyRequest) (*apply.Outcome, error) {
	ctx, span := m.tracer.Start(ctx, "session.apply")
	defer span.End()

	if req == nil || req.Plan == nil {
		return nil, errors.New("plan is required")
	}
	span.SetAttributes(
		attribute.String("device", req.Plan.Device),
		attribute.String("plan_id", req.Plan.ID),
	)

	lock := m.deviceLock(req.Plan.Device)
	lock.Lock()
	defer lock.Unlock()

	verdict := m.recommender.Validate(ctx, req.Plan, fixplan.ValidateState{
		Confirmed: req.Confirmed,
		InFlight:  m,
	})

	sess, err := m.sessions.Session(ctx, req.Plan.Device)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("open session to %s: %w", req.Plan.Device, err)
	}

	m.setInFlight(req.Plan.Device, true)
	defer m.setInFlight(req.Plan.Device, false)

	out, err := m.applier.Apply(ctx, req.Plan, sess, verdict)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if m.applyCounter != nil {
		m.applyCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("state", string(out.State)),
		))
	}

	if m.learner != nil && req.Problem != nil {
		if rerr := m.learner.RecordOutcome(ctx, req.Problem, req.Plan, req.Plan.RuleID, out); rerr != nil {
			m.logger.Warn("failed to record fix outcome",
				zap.String("plan_id", req.Plan.ID),
				zap.Error(rerr),
			)
		}
	}
	return out, nil
}

// Feedback records an operator-reported outcome.
func (m *Manager) Feedback(ctx context.Context, fb *learning.Feedback) error {
	if m.learner == nil {
		return errors.New("learning is not enabled")
	}
	return m.learner.RecordFeedback(ctx, fb)
}
