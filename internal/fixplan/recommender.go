package fixplan

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/netmend/internal/baseline"
	"github.com/fyrsmithlabs/netmend/internal/knowledge"
	"github.com/fyrsmithlabs/netmend/internal/problem"
)

const instrumentationName = "github.com/fyrsmithlabs/netmend/internal/fixplan"

var placeholderRE = regexp.MustCompile(`\{([a-z_]+)\}`)

// InFlightChecker reports whether a device already has a plan being
// applied. Validation refuses a second plan for the same device.
type InFlightChecker interface {
	InFlight(device string) bool
}

// Recommender customizes, validates and risk-scores fix plans.
type Recommender struct {
	kb       *knowledge.Service
	baseline baseline.Store
	catalog  map[string]Template
	logger   *zap.Logger

	tracer      trace.Tracer
	meter       metric.Meter
	planCounter metric.Int64Counter
}

// New creates a recommender over the built-in template catalog. The
// knowledge base is required; the baseline store may be nil, in which
// case placeholders resolve from problem evidence only.
func New(kb *knowledge.Service, store baseline.Store, logger *zap.Logger) (*Recommender, error) {
	if kb == nil {
		return nil, errors.New("knowledge base is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Recommender{
		kb:       kb,
		baseline: store,
		catalog:  Catalog(),
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
		meter:    otel.Meter(instrumentationName),
	}
	r.initMetrics()
	return r, nil
}

func (r *Recommender) initMetrics() {
	var err error
	r.planCounter, err = r.meter.Int64Counter(
		"netmend.fixplan.plans_total",
		metric.WithDescription("Total number of fix plans produced"),
		metric.WithUnit("{plan}"),
	)
	if err != nil {
		r.logger.Warn("failed to create plan counter", zap.Error(err))
	}
}

// Template returns a catalog template by ID.
func (r *Recommender) Template(id string) (Template, bool) {
	t, ok := r.catalog[id]
	return t, ok
}

// Customize binds a template to a device by substituting every
// placeholder from the problem's evidence and the device baseline. A
// placeholder that resolves nowhere fails the whole plan with
// ErrMissingPrerequisite; no value is ever guessed.
func (r *Recommender) Customize(ctx context.Context, templateID string, p *problem.Problem) (*Plan, error) {
	ctx, span := r.tracer.Start(ctx, "fixplan.customize")
	defer span.End()
	span.SetAttributes(
		attribute.String("template_id", templateID),
		attribute.String("device", p.Device),
	)

	tpl, ok := r.catalog[templateID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, templateID)
	}

	missing := make(map[string]bool)
	sub := func(s string) string {
		return placeholderRE.ReplaceAllStringFunc(s, func(tok string) string {
			key := tok[1 : len(tok)-1]
			if v, ok := r.resolve(ctx, p, key); ok {
				return v
			}
			missing[key] = true
			return tok
		})
	}

	steps := make([]Step, len(tpl.Steps))
	for i, st := range tpl.Steps {
		out := Step{Name: st.Name, Verify: VerifySpec{Command: sub(st.Verify.Command)}}
		for _, c := range st.Commands {
			out.Commands = append(out.Commands, sub(c))
		}
		for _, e := range st.Verify.ExpectContains {
			out.Verify.ExpectContains = append(out.Verify.ExpectContains, sub(e))
		}
		for _, e := range st.Verify.ExpectAbsent {
			out.Verify.ExpectAbsent = append(out.Verify.ExpectAbsent, sub(e))
		}
		for _, c := range st.Rollback {
			out.Rollback = append(out.Rollback, sub(c))
		}
		steps[i] = out
	}

	if len(missing) > 0 {
		keys := make([]string, 0, len(missing))
		for k := range missing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		err := fmt.Errorf("%w: %s", ErrMissingPrerequisite, strings.Join(keys, ", "))
		span.RecordError(err)
		return nil, err
	}

	plan := &Plan{
		ID:             uuid.NewString(),
		Device:         p.Device,
		TemplateID:     tpl.ID,
		Category:       p.Category,
		Description:    tpl.Description,
		Steps:          steps,
		Risk:           tpl.Risk,
		Destructive:    tpl.Destructive,
		RequiresManual: tpl.RequiresManual,
		CreatedAt:      time.Now(),
	}

	if r.planCounter != nil {
		r.planCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("template_id", tpl.ID),
		))
	}
	r.logger.Info("fix plan produced",
		zap.String("plan_id", plan.ID),
		zap.String("device", plan.Device),
		zap.String("template_id", plan.TemplateID),
		zap.String("risk", string(plan.Risk)),
	)
	return plan, nil
}

// resolve looks a placeholder up in order: the device name itself, the
// problem's evidence, then the device baseline. Baseline lookups also
// try the field without an expected_ prefix so baseline files can store
// the natural field name.
func (r *Recommender) resolve(ctx context.Context, p *problem.Problem, key string) (string, bool) {
	if key == "device" {
		return p.Device, true
	}
	if v, ok := p.Evidence[key]; ok && v != "" {
		return v, true
	}
	if r.baseline == nil {
		return "", false
	}
	if v, ok, err := r.baseline.Get(ctx, p.Device, key); err == nil && ok {
		return v, true
	}
	if stripped := strings.TrimPrefix(key, "expected_"); stripped != key {
		if v, ok, err := r.baseline.Get(ctx, p.Device, stripped); err == nil && ok {
			return v, true
		}
	}
	return "", false
}

// ValidateState is the context a verdict is computed against.
type ValidateState struct {
	// Confirmed acknowledges a destructive plan.
	Confirmed bool

	// InFlight reports per-device plan occupancy; nil means unchecked.
	InFlight InFlightChecker
}

// Validate checks a plan against policy. The verdict is a pure function
// of the plan and the given state: validating an unchanged plan twice
// yields the same verdict. A negative verdict must block application.
func (r *Recommender) Validate(ctx context.Context, plan *Plan, state ValidateState) Verdict {
	_, span := r.tracer.Start(ctx, "fixplan.validate")
	defer span.End()

	var v Verdict
	if plan == nil {
		v.Blockers = append(v.Blockers, "no plan")
		return v
	}
	if plan.Device == "" {
		v.Blockers = append(v.Blockers, "plan has no target device")
	}
	if plan.RequiresManual {
		v.Blockers = append(v.Blockers, "plan requires manual application")
	}
	if len(plan.Steps) == 0 && !plan.RequiresManual {
		v.Blockers = append(v.Blockers, "plan has no steps")
	}

	for i, st := range plan.Steps {
		if len(st.Commands) > 0 && len(st.Rollback) == 0 {
			v.Blockers = append(v.Blockers, fmt.Sprintf("step %d (%s) mutates without a rollback", i+1, st.Name))
		}
		for _, c := range append(append([]string{}, st.Commands...), st.Rollback...) {
			if placeholderRE.MatchString(c) {
				v.Blockers = append(v.Blockers, fmt.Sprintf("step %d (%s) has an unresolved placeholder in %q", i+1, st.Name, c))
			}
		}
	}

	if plan.Destructive && !state.Confirmed {
		v.Blockers = append(v.Blockers, "destructive plan lacks confirmation")
	}
	if state.InFlight != nil && state.InFlight.InFlight(plan.Device) {
		v.Blockers = append(v.Blockers, fmt.Sprintf("another plan is in flight on %s", plan.Device))
	}

	if plan.Risk.Rank() >= RiskHigh.Rank() {
		v.Warnings = append(v.Warnings, fmt.Sprintf("plan risk is %s", plan.Risk))
	}

	v.OK = len(v.Blockers) == 0
	if !v.OK {
		r.logger.Warn("fix plan rejected",
			zap.String("plan_id", plan.ID),
			zap.String("device", plan.Device),
			zap.Strings("blockers", v.Blockers),
		)
	}
	return v
}

// AssessRisk combines a plan's declared risk with what else the device
// is doing. Touching a routing process that another currently-passing
// protocol shares escalates to high; plain interface changes sit at
// medium or above.
func (r *Recommender) AssessRisk(plan *Plan, passing []problem.Category) RiskLevel {
	risk := plan.Risk

	touchesProcess := false
	touchesInterface := false
	for _, st := range plan.Steps {
		for _, c := range st.Commands {
			if strings.HasPrefix(c, "router ") || strings.HasPrefix(c, "clear ip ospf") {
				touchesProcess = true
			}
			if strings.HasPrefix(c, "interface ") {
				touchesInterface = true
			}
		}
	}

	if touchesInterface {
		risk = risk.Max(RiskMedium)
	}
	if touchesProcess {
		for _, cat := range passing {
			if cat != plan.Category && cat != problem.CategoryInterface {
				risk = risk.Max(RiskHigh)
				break
			}
		}
	}
	return risk
}

// RecordResult forwards a fix outcome to the knowledge base, closing the
// learning loop for the rule that produced the plan.
func (r *Recommender) RecordResult(ctx context.Context, plan *Plan, p *problem.Problem, ruleID, outcome string, success bool) error {
	cause := ""
	if rule, ok := r.kb.Rule(ruleID); ok {
		cause = rule.Cause
	}
	return r.kb.Record(ctx, &knowledge.HistoryEntry{
		ID:         uuid.NewString(),
		RecordedAt: time.Now(),
		Problem:    *p,
		RuleID:     ruleID,
		Cause:      cause,
		FixID:      plan.ID,
		TemplateID: plan.TemplateID,
		Outcome:    outcome,
		Success:    success,
	})
}

// DetectConflicts flags plan pairs that must not run together: two plans
// reconfiguring the same interface, or two plans driving the same
// routing process on one device.
func DetectConflicts(plans []*Plan) []Conflict {
	var out []Conflict
	for i := 0; i < len(plans); i++ {
		for j := i + 1; j < len(plans); j++ {
			if c, ok := checkConflict(plans[i], plans[j]); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

func checkConflict(a, b *Plan) (Conflict, bool) {
	if a.Device != b.Device {
		return Conflict{}, false
	}

	if ifA, ifB := targetInterface(a), targetInterface(b); ifA != "" && ifA == ifB {
		return Conflict{
			PlanA:  a.ID,
			PlanB:  b.ID,
			Kind:   "same_interface",
			Reason: fmt.Sprintf("both plans reconfigure %s on %s", ifA, a.Device),
		}, true
	}

	if procA, procB := targetProcess(a), targetProcess(b); procA != "" && procA == procB {
		return Conflict{
			PlanA:  a.ID,
			PlanB:  b.ID,
			Kind:   "shared_process",
			Reason: fmt.Sprintf("both plans drive %q on %s", procA, a.Device),
		}, true
	}
	return Conflict{}, false
}

func targetInterface(p *Plan) string {
	for _, st := range p.Steps {
		for _, c := range st.Commands {
			if name, ok := strings.CutPrefix(c, "interface "); ok {
				return name
			}
		}
	}
	return ""
}

func targetProcess(p *Plan) string {
	for _, st := range p.Steps {
		for _, c := range st.Commands {
			if strings.HasPrefix(c, "router ") {
				return c
			}
		}
	}
	return ""
}
