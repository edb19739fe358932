package fixplan

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/netmend/internal/problem"
)

// ErrMissingPrerequisite is returned when a template placeholder cannot
// be resolved from the problem's evidence or the device baseline. A
// value is never guessed.
var ErrMissingPrerequisite = errors.New("missing prerequisite")

// ErrUnknownTemplate is returned for a template ID not in the catalog.
var ErrUnknownTemplate = errors.New("unknown fix template")

// RiskLevel orders the blast radius of a plan.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// Rank returns the ordering of a risk level; unknown levels rank highest.
func (r RiskLevel) Rank() int {
	if rank, ok := riskRank[r]; ok {
		return rank
	}
	return riskRank[RiskCritical]
}

// Max returns the higher of two risk levels.
func (r RiskLevel) Max(other RiskLevel) RiskLevel {
	if other.Rank() > r.Rank() {
		return other
	}
	return r
}

// VerifySpec is a step's verification predicate: run Command and check
// the output against the expectations. Empty expectation lists make the
// check succeed on any non-failed execution.
type VerifySpec struct {
	Command        string   `json:"command" yaml:"command"`
	ExpectContains []string `json:"expect_contains,omitempty" yaml:"expect_contains,omitempty"`
	ExpectAbsent   []string `json:"expect_absent,omitempty" yaml:"expect_absent,omitempty"`
}

// Check evaluates the predicate against command output.
func (v *VerifySpec) Check(output string) error {
	for _, want := range v.ExpectContains {
		if !strings.Contains(output, want) {
			return fmt.Errorf("verification output missing %q", want)
		}
	}
	for _, absent := range v.ExpectAbsent {
		if strings.Contains(output, absent) {
			return fmt.Errorf("verification output still contains %q", absent)
		}
	}
	return nil
}

// Step is one ordered unit of a fix plan: the commands that establish a
// state, the predicate that proves it, and the commands that reverse it.
type Step struct {
	Name     string     `json:"name" yaml:"name"`
	Commands []string   `json:"commands" yaml:"commands"`
	Verify   VerifySpec `json:"verify" yaml:"verify"`
	Rollback []string   `json:"rollback" yaml:"rollback"`
}

// Mutating reports whether the step changes device state. Read-only
// steps carry no rollback and no configuration commands.
func (s *Step) Mutating() bool {
	return len(s.Rollback) > 0
}

// Template is a reusable fix skeleton. Command strings may carry
// {placeholder} tokens resolved at customization time.
type Template struct {
	ID          string           `json:"id" yaml:"id"`
	Category    problem.Category `json:"category" yaml:"category"`
	Description string           `json:"description" yaml:"description"`
	Risk        RiskLevel        `json:"risk" yaml:"risk"`

	// Destructive templates require an explicit confirmation flag at
	// validation time.
	Destructive bool `json:"destructive,omitempty" yaml:"destructive,omitempty"`

	// RequiresManual marks fixes the engine recommends but will not apply
	// automatically (baseline restores and the like).
	RequiresManual bool `json:"requires_manual,omitempty" yaml:"requires_manual,omitempty"`

	Steps []Step `json:"steps" yaml:"steps"`
}

// Plan is a fully substituted, device-bound fix ready for validation and
// application. Steps execute strictly in order.
type Plan struct {
	ID          string           `json:"id"`
	Device      string           `json:"device"`
	TemplateID  string           `json:"template_id"`
	RuleID      string           `json:"rule_id,omitempty"`
	Category    problem.Category `json:"category"`
	Description string           `json:"description"`
	Steps       []Step           `json:"steps"`
	Risk        RiskLevel        `json:"risk"`
	Destructive bool             `json:"destructive,omitempty"`

	// RequiresManual plans never pass validation; they exist to tell an
	// operator what to do.
	RequiresManual bool      `json:"requires_manual,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Verdict is the result of validating a plan. A plan with any blocker
// must not be applied; warnings are advisory.
type Verdict struct {
	OK       bool     `json:"ok"`
	Blockers []string `json:"blockers,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Conflict flags two plans that should not run together.
type Conflict struct {
	PlanA  string `json:"plan_a"`
	PlanB  string `json:"plan_b"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}
