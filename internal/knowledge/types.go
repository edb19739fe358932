package knowledge

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fyrsmithlabs/netmend/internal/problem"
)

// ConditionKind selects how a rule's condition is evaluated.
type ConditionKind string

const (
	// KindSymptomSubset matches when every required symptom is observed.
	KindSymptomSubset ConditionKind = "symptom_subset"
	// KindThreshold matches when a numeric evidence field compares true
	// against a constant. Required symptoms, if any, must also be present.
	KindThreshold ConditionKind = "threshold"
	// KindBaselineDelta matches when an observed evidence field deviates
	// from its baseline counterpart by more than a tolerance.
	KindBaselineDelta ConditionKind = "baseline_delta"
)

// ThresholdOp is the comparison operator for threshold conditions.
type ThresholdOp string

const (
	OpGreater ThresholdOp = "gt"
	OpLess    ThresholdOp = "lt"
	OpEqual   ThresholdOp = "eq"
	OpNotEq   ThresholdOp = "ne"
)

// Condition is the tagged predicate variant attached to a rule.
type Condition struct {
	Kind ConditionKind `json:"kind" yaml:"kind"`

	// Symptoms are tags that must all be present on the problem.
	Symptoms []string `json:"symptoms,omitempty" yaml:"symptoms,omitempty"`

	// Threshold fields (KindThreshold).
	Field string      `json:"field,omitempty" yaml:"field,omitempty"`
	Op    ThresholdOp `json:"op,omitempty" yaml:"op,omitempty"`
	Value float64     `json:"value,omitempty" yaml:"value,omitempty"`

	// Baseline-delta fields (KindBaselineDelta). Both fields are read from
	// the problem evidence; detectors embed the baseline value alongside the
	// observed one.
	BaselineField string  `json:"baseline_field,omitempty" yaml:"baseline_field,omitempty"`
	Tolerance     float64 `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
}

// Validate checks the condition is well formed for its kind.
func (c *Condition) Validate() error {
	switch c.Kind {
	case KindSymptomSubset:
		if len(c.Symptoms) == 0 {
			return errors.New("symptom_subset condition requires symptoms")
		}
	case KindThreshold:
		if c.Field == "" {
			return errors.New("threshold condition requires a field")
		}
		switch c.Op {
		case OpGreater, OpLess, OpEqual, OpNotEq:
		default:
			return fmt.Errorf("unknown threshold op %q", c.Op)
		}
	case KindBaselineDelta:
		if c.Field == "" || c.BaselineField == "" {
			return errors.New("baseline_delta condition requires field and baseline_field")
		}
	default:
		return fmt.Errorf("unknown condition kind %q", c.Kind)
	}
	return nil
}

// Matches evaluates the condition against a problem's symptoms and evidence.
func (c *Condition) Matches(p *problem.Problem) bool {
	for _, want := range c.Symptoms {
		if !p.HasSymptom(want) {
			return false
		}
	}

	switch c.Kind {
	case KindSymptomSubset:
		return true
	case KindThreshold:
		v, ok := p.Evidence.Float(c.Field)
		if !ok {
			return false
		}
		switch c.Op {
		case OpGreater:
			return v > c.Value
		case OpLess:
			return v < c.Value
		case OpEqual:
			return v == c.Value
		case OpNotEq:
			return v != c.Value
		}
		return false
	case KindBaselineDelta:
		cur, ok := p.Evidence.Float(c.Field)
		if !ok {
			return false
		}
		base, ok := p.Evidence.Float(c.BaselineField)
		if !ok {
			return false
		}
		return math.Abs(cur-base) > c.Tolerance
	}
	return false
}

// Specificity is the count of required symptoms. Threshold and
// baseline-delta conditions count their field requirement as one more
// symptom, so a field-qualified rule outranks a bare tag rule of equal
// posterior.
func (c *Condition) Specificity() int {
	n := len(c.Symptoms)
	if c.Kind != KindSymptomSubset {
		n++
	}
	return n
}

// Rule maps a condition to a probable cause with a learned prior weight.
type Rule struct {
	ID          string           `json:"id" yaml:"id"`
	Category    problem.Category `json:"category" yaml:"category"`
	Cause       string           `json:"cause" yaml:"cause"`
	Description string           `json:"description" yaml:"description"`
	Condition   Condition        `json:"condition" yaml:"condition"`
	Weight      float64          `json:"weight" yaml:"weight"`
	Template    string           `json:"template,omitempty" yaml:"template,omitempty"`
	CreatedAt   time.Time        `json:"created_at,omitempty" yaml:"-"`
}

// Validate checks the structural invariants of a rule.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return errors.New("rule id is required")
	}
	if !r.Category.Valid() {
		return fmt.Errorf("rule %s: unknown category %q", r.ID, r.Category)
	}
	if r.Cause == "" {
		return fmt.Errorf("rule %s: cause is required", r.ID)
	}
	if r.Weight <= 0 || r.Weight >= 1 {
		return fmt.Errorf("rule %s: weight %v outside (0,1)", r.ID, r.Weight)
	}
	if err := r.Condition.Validate(); err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}
	return nil
}

// Specificity is the count of required symptoms for the rule's condition.
func (r *Rule) Specificity() int { return r.Condition.Specificity() }

// RuleMatch pairs a matching rule with its renormalized posterior.
type RuleMatch struct {
	Rule      Rule    `json:"rule"`
	Posterior float64 `json:"posterior"`
}

// HistoryEntry is one immutable record in the audit trail: a problem
// snapshot, the hypothesis chosen for it, the fix applied, and the outcome.
type HistoryEntry struct {
	ID            string            `json:"id"`
	RecordedAt    time.Time         `json:"recorded_at"`
	Problem       problem.Problem   `json:"problem"`
	RuleID        string            `json:"rule_id"`
	Cause         string            `json:"cause"`
	FixID         string            `json:"fix_id"`
	TemplateID    string            `json:"template_id,omitempty"`
	Outcome       string            `json:"outcome"`
	Success       bool              `json:"success"`
	EvidenceDelta map[string]string `json:"evidence_delta,omitempty"`
}

// ScoredEntry pairs a history entry with a similarity score against a query
// problem.
type ScoredEntry struct {
	Entry HistoryEntry `json:"entry"`
	Score float64      `json:"score"`
}

// RuleStats aggregates fix attempts for one rule.
type RuleStats struct {
	Attempts  int `json:"attempts"`
	Successes int `json:"successes"`
}

// Stats summarizes the knowledge base contents.
type Stats struct {
	TotalRules      int                      `json:"total_rules"`
	RulesByCategory map[problem.Category]int `json:"rules_by_category"`
	HistoryEntries  int                      `json:"history_entries"`
	FixAttempts     int                      `json:"fix_attempts"`
	FixSuccesses    int                      `json:"fix_successes"`
}
