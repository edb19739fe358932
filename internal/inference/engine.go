package inference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/netmend/internal/knowledge"
	"github.com/fyrsmithlabs/netmend/internal/problem"
)

const instrumentationName = "github.com/fyrsmithlabs/netmend/internal/inference"

// maxChainDepth bounds forward chaining even if a rule pack manages to
// produce a pathological derivation graph.
const maxChainDepth = 16

// Estimator supplies an external probability estimate for a problem, for
// example a trained classifier. SampleSize reports how many labeled
// examples backed the estimate.
type Estimator interface {
	Estimate(ctx context.Context, p *problem.Problem) (probability float64, sampleSize int, err error)
}

// Config tunes diagnosis behavior.
type Config struct {
	// ConfidenceThreshold is the minimum top-hypothesis confidence for a
	// single verdict. Below it the diagnosis returns the top-k hypotheses
	// and flags the problem for manual disambiguation.
	ConfidenceThreshold float64

	// TopK is how many hypotheses an uncertain diagnosis returns.
	TopK int

	// MinSampleSize gates the ensemble weighting. External estimates
	// trained on fewer samples get the reduced blend weight.
	MinSampleSize int

	// LowSampleRuleWeight and TrustedRuleWeight are the rule-based shares
	// of the ensemble blend below and at-or-above MinSampleSize.
	LowSampleRuleWeight float64
	TrustedRuleWeight   float64

	// SimilarLimit caps how many historical cases back an
	// insufficient-evidence fallback.
	SimilarLimit int
}

// DefaultConfig returns the diagnosis defaults.
func DefaultConfig() *Config {
	return &Config{
		ConfidenceThreshold: 0.8,
		TopK:                3,
		MinSampleSize:       50,
		LowSampleRuleWeight: 0.7,
		TrustedRuleWeight:   0.5,
		SimilarLimit:        3,
	}
}

// Derivation records one rule firing during forward chaining.
type Derivation struct {
	RuleID    string   `json:"rule_id"`
	Cause     string   `json:"cause"`
	Symptoms  []string `json:"symptoms"` // symptoms the rule required
	Posterior float64  `json:"posterior"`
	Depth     int      `json:"depth"` // 0 = fired on observed symptoms only
}

// Hypothesis is one ranked causal explanation.
type Hypothesis struct {
	Cause      string  `json:"cause"`
	RuleID     string  `json:"rule_id,omitempty"`
	TemplateID string  `json:"template_id,omitempty"`
	Confidence float64 `json:"confidence"`

	// FromHistory marks hypotheses recovered from similar past cases when
	// no rule matched the observed symptoms.
	FromHistory bool `json:"from_history,omitempty"`
}

// Diagnosis is the result of one diagnose call.
type Diagnosis struct {
	Problem    *problem.Problem `json:"problem"`
	Hypotheses []Hypothesis     `json:"hypotheses"`
	Chain      []Derivation     `json:"chain,omitempty"`

	// NeedsDisambiguation is set when the top confidence falls below the
	// configured threshold; Hypotheses then holds the top-k candidates.
	NeedsDisambiguation bool `json:"needs_disambiguation,omitempty"`

	// InsufficientEvidence is set when no rule matched and the hypotheses
	// were recovered from similar historical cases.
	InsufficientEvidence bool `json:"insufficient_evidence,omitempty"`

	// Degraded is set when an estimator was configured but could not
	// contribute, so the confidence is rule-based only.
	Degraded bool `json:"degraded,omitempty"`

	// EnsembleApplied is set when the top confidence blends the external
	// estimate with the rule posterior.
	EnsembleApplied bool `json:"ensemble_applied,omitempty"`
}

// Top returns the leading hypothesis, or false when the diagnosis is empty.
func (d *Diagnosis) Top() (Hypothesis, bool) {
	if len(d.Hypotheses) == 0 {
		return Hypothesis{}, false
	}
	return d.Hypotheses[0], true
}

// Engine is the inference engine. It holds no mutable diagnostic state;
// every call works on transient scratch space, so one engine serves all
// device sessions concurrently.
type Engine struct {
	config    *Config
	kb        *knowledge.Service
	estimator Estimator
	logger    *zap.Logger

	tracer          trace.Tracer
	meter           metric.Meter
	diagnoseCounter metric.Int64Counter
	conflictCounter metric.Int64Counter
}

// New creates an inference engine. The knowledge base is required; the
// estimator is optional and its absence is not a degradation.
func New(cfg *Config, kb *knowledge.Service, estimator Estimator, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if kb == nil {
		return nil, errors.New("knowledge base is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopK < 1 {
		cfg.TopK = 1
	}

	e := &Engine{
		config:    cfg,
		kb:        kb,
		estimator: estimator,
		logger:    logger,
		tracer:    otel.Tracer(instrumentationName),
		meter:     otel.Meter(instrumentationName),
	}
	e.initMetrics()
	return e, nil
}

func (e *Engine) initMetrics() {
	var err error

	e.diagnoseCounter, err = e.meter.Int64Counter(
		"netmend.inference.diagnoses_total",
		metric.WithDescription("Total number of diagnose calls"),
		metric.WithUnit("{diagnosis}"),
	)
	if err != nil {
		e.logger.Warn("failed to create diagnose counter", zap.Error(err))
	}

	e.conflictCounter, err = e.meter.Int64Counter(
		"netmend.inference.rule_conflicts_total",
		metric.WithDescription("Total number of rule conflicts resolved by tie-break"),
		metric.WithUnit("{conflict}"),
	)
	if err != nil {
		e.logger.Warn("failed to create conflict counter", zap.Error(err))
	}
}

// Diagnose runs forward chaining over the knowledge base and returns
// ranked hypotheses. Concluded causes become derived symptoms for further
// rule firings until a fixpoint; a rule never fires twice on the same
// derivation. Diagnosis is read-only with respect to the knowledge base.
func (e *Engine) Diagnose(ctx context.Context, p *problem.Problem) (*Diagnosis, error) {
	ctx, span := e.tracer.Start(ctx, "inference.diagnose")
	defer span.End()

	if err := p.Validate(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("invalid problem: %w", err)
	}
	span.SetAttributes(
		attribute.String("device", p.Device),
		attribute.String("category", string(p.Category)),
	)

	matches, chain, err := e.chain(ctx, p)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	d := &Diagnosis{Problem: p, Chain: chain}

	if len(matches) == 0 {
		if err := e.fallbackFromHistory(ctx, p, d); err != nil {
			span.RecordError(err)
			return nil, err
		}
		e.count(ctx, p, "insufficient_evidence")
		return d, nil
	}

	e.auditConflict(ctx, p, matches)

	for _, m := range matches {
		d.Hypotheses = append(d.Hypotheses, Hypothesis{
			Cause:      m.Rule.Cause,
			RuleID:     m.Rule.ID,
			TemplateID: m.Rule.Template,
			Confidence: m.Posterior,
		})
	}

	e.blend(ctx, p, d)

	// The blend can drop the former leader below a runner-up; the list
	// must stay ranked before the threshold and top-k decisions.
	sort.SliceStable(d.Hypotheses, func(i, j int) bool {
		if d.Hypotheses[i].Confidence != d.Hypotheses[j].Confidence {
			return d.Hypotheses[i].Confidence > d.Hypotheses[j].Confidence
		}
		return d.Hypotheses[i].RuleID < d.Hypotheses[j].RuleID
	})

	if d.Hypotheses[0].Confidence < e.config.ConfidenceThreshold {
		d.NeedsDisambiguation = true
		if len(d.Hypotheses) > e.config.TopK {
			d.Hypotheses = d.Hypotheses[:e.config.TopK]
		}
		e.count(ctx, p, "uncertain")
		e.logger.Info("diagnosis uncertain, returning candidates",
			zap.String("device", p.Device),
			zap.Float64("top_confidence", d.Hypotheses[0].Confidence),
			zap.Int("candidates", len(d.Hypotheses)),
		)
		return d, nil
	}

	d.Hypotheses = d.Hypotheses[:1]
	e.count(ctx, p, "verdict")
	return d, nil
}

// chain fires rules to a fixpoint. It returns the final ranked match set
// over the observed plus derived symptoms, and the fire-ordered chain.
func (e *Engine) chain(ctx context.Context, p *problem.Problem) ([]knowledge.RuleMatch, []Derivation, error) {
	working := *p
	working.Symptoms = append([]string(nil), p.Symptoms...)

	fired := make(map[string]bool)
	var chain []Derivation
	var matches []knowledge.RuleMatch

	for depth := 0; depth < maxChainDepth; depth++ {
		var err error
		matches, err = e.kb.Match(ctx, &working)
		if err != nil {
			return nil, nil, err
		}

		grew := false
		for _, m := range matches {
			if fired[m.Rule.ID] {
				continue
			}
			fired[m.Rule.ID] = true
			chain = append(chain, Derivation{
				RuleID:    m.Rule.ID,
				Cause:     m.Rule.Cause,
				Symptoms:  m.Rule.Condition.Symptoms,
				Posterior: m.Posterior,
				Depth:     depth,
			})
			if !working.HasSymptom(m.Rule.Cause) {
				working.Symptoms = append(working.Symptoms, m.Rule.Cause)
				grew = true
			}
		}
		if !grew {
			break
		}
	}
	return matches, chain, nil
}

// auditConflict logs competing top hypotheses that tie on posterior. The
// tie-break (specificity, then rule ID) has already ordered the matches;
// the log records which rule lost for later review.
func (e *Engine) auditConflict(ctx context.Context, p *problem.Problem, matches []knowledge.RuleMatch) {
	if len(matches) < 2 {
		return
	}
	top, next := matches[0], matches[1]
	if math.Abs(top.Posterior-next.Posterior) > 1e-9 || top.Rule.Cause == next.Rule.Cause {
		return
	}

	e.logger.Warn("rule conflict resolved by specificity",
		zap.String("device", p.Device),
		zap.String("category", string(p.Category)),
		zap.String("selected_rule", top.Rule.ID),
		zap.String("rejected_rule", next.Rule.ID),
		zap.Float64("posterior", top.Posterior),
	)
	if e.conflictCounter != nil {
		e.conflictCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("category", string(p.Category)),
		))
	}
}

// blend folds the external probability estimate into the top hypothesis.
// Estimator failure is degraded mode, never an error to the caller.
func (e *Engine) blend(ctx context.Context, p *problem.Problem, d *Diagnosis) {
	if e.estimator == nil {
		return
	}

	prob, sample, err := e.estimator.Estimate(ctx, p)
	if err != nil {
		d.Degraded = true
		e.logger.Warn("estimator unavailable, rule-based only",
			zap.String("device", p.Device),
			zap.Error(err),
		)
		return
	}

	ruleWeight := e.config.TrustedRuleWeight
	if sample < e.config.MinSampleSize {
		ruleWeight = e.config.LowSampleRuleWeight
	}

	top := &d.Hypotheses[0]
	blended := ruleWeight*top.Confidence + (1-ruleWeight)*prob
	e.logger.Debug("ensemble blend applied",
		zap.String("rule_id", top.RuleID),
		zap.Float64("rule_posterior", top.Confidence),
		zap.Float64("external", prob),
		zap.Int("sample_size", sample),
		zap.Float64("rule_weight", ruleWeight),
		zap.Float64("blended", blended),
	)
	top.Confidence = blended
	d.EnsembleApplied = true
}

// fallbackFromHistory recovers low-confidence hypotheses from similar past
// cases when no rule matched. The result is never an error: the caller
// gets candidates flagged for disambiguation instead of silence.
func (e *Engine) fallbackFromHistory(ctx context.Context, p *problem.Problem, d *Diagnosis) error {
	d.InsufficientEvidence = true
	d.NeedsDisambiguation = true

	scored, err := e.kb.Similar(ctx, p, e.config.SimilarLimit)
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, s := range scored {
		if s.Entry.Cause == "" || seen[s.Entry.Cause] {
			continue
		}
		seen[s.Entry.Cause] = true
		d.Hypotheses = append(d.Hypotheses, Hypothesis{
			Cause:       s.Entry.Cause,
			RuleID:      s.Entry.RuleID,
			TemplateID:  s.Entry.TemplateID,
			Confidence:  s.Score * 0.5, // capped well below verdict territory
			FromHistory: true,
		})
	}

	e.logger.Info("no rule matched, recovered hypotheses from history",
		zap.String("device", p.Device),
		zap.Strings("symptoms", p.Symptoms),
		zap.Int("candidates", len(d.Hypotheses)),
	)
	return nil
}

// Explain reconstructs the derivation trace behind one hypothesis: the
// firing that concluded the cause, preceded in fire order by the firings
// that supplied its derived symptoms.
func (e *Engine) Explain(d *Diagnosis, cause string) ([]Derivation, error) {
	var target *Derivation
	byCause := make(map[string]Derivation, len(d.Chain))
	for i := range d.Chain {
		byCause[d.Chain[i].Cause] = d.Chain[i]
		if d.Chain[i].Cause == cause && target == nil {
			target = &d.Chain[i]
		}
	}
	if target == nil {
		return nil, fmt.Errorf("no derivation concluded %q", cause)
	}

	needed := make(map[string]bool)
	var mark func(dv Derivation)
	mark = func(dv Derivation) {
		if needed[dv.RuleID] {
			return
		}
		needed[dv.RuleID] = true
		for _, s := range dv.Symptoms {
			if parent, ok := byCause[s]; ok {
				mark(parent)
			}
		}
	}
	mark(*target)

	var steps []Derivation
	for _, dv := range d.Chain {
		if needed[dv.RuleID] {
			steps = append(steps, dv)
		}
	}
	return steps, nil
}

func (e *Engine) count(ctx context.Context, p *problem.Problem, result string) {
	if e.diagnoseCounter == nil {
		return
	}
	e.diagnoseCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", string(p.Category)),
		attribute.String("result", result),
	))
}
