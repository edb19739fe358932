package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/netmend/internal/problem"
)

const instrumentationName = "github.com/fyrsmithlabs/netmend/internal/knowledge"

// ErrDuplicateRule is returned when a rule ID is already registered. The
// rule set is append-only; an existing rule is never replaced.
var ErrDuplicateRule = errors.New("duplicate rule id")

// Config tunes prior learning.
type Config struct {
	// LearnRate is the fraction of remaining headroom a successful outcome
	// moves a rule's weight by (w += (1-w)*LearnRate).
	LearnRate float64

	// Decay is the multiplicative penalty applied on failure (w *= Decay).
	Decay float64

	// MinWeight and MaxWeight bound weights away from 0 and 1 so no rule
	// collapses to certainty in either direction.
	MinWeight float64
	MaxWeight float64
}

// DefaultConfig returns the learning defaults.
func DefaultConfig() *Config {
	return &Config{
		LearnRate: 0.1,
		Decay:     0.8,
		MinWeight: 0.05,
		MaxWeight: 0.99,
	}
}

// Service is the knowledge base: the append-only rule set plus the fix
// history. It is safe for concurrent use; prior updates serialize behind a
// single writer lock so per-category renormalization stays consistent.
type Service struct {
	config  *Config
	history HistoryStore
	logger  *zap.Logger

	tracer        trace.Tracer
	meter         metric.Meter
	matchCounter  metric.Int64Counter
	recordCounter metric.Int64Counter

	mu         sync.RWMutex
	rules      map[string]Rule
	byCategory map[problem.Category][]string // rule IDs in insertion order
}

// New creates a knowledge base service. The history store is required; use
// NewMemoryStore for ephemeral deployments.
func New(cfg *Config, history HistoryStore, logger *zap.Logger) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if history == nil {
		return nil, errors.New("history store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		config:     cfg,
		history:    history,
		logger:     logger,
		tracer:     otel.Tracer(instrumentationName),
		meter:      otel.Meter(instrumentationName),
		rules:      make(map[string]Rule),
		byCategory: make(map[problem.Category][]string),
	}
	s.initMetrics()
	return s, nil
}

func (s *Service) initMetrics() {
	var err error

	s.matchCounter, err = s.meter.Int64Counter(
		"netmend.knowledge.matches_total",
		metric.WithDescription("Total number of rule match queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		s.logger.Warn("failed to create match counter", zap.Error(err))
	}

	s.recordCounter, err = s.meter.Int64Counter(
		"netmend.knowledge.outcomes_total",
		metric.WithDescription("Total number of recorded fix outcomes"),
		metric.WithUnit("{outcome}"),
	)
	if err != nil {
		s.logger.Warn("failed to create outcome counter", zap.Error(err))
	}
}

// AddRule appends one rule. Duplicate IDs fail with ErrDuplicateRule and
// leave the rule set unchanged.
func (s *Service) AddRule(r Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[r.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRule, r.ID)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	s.rules[r.ID] = r
	s.byCategory[r.Category] = append(s.byCategory[r.Category], r.ID)
	return nil
}

// AddRules appends rules in order, stopping at the first error.
func (s *Service) AddRules(rules []Rule) error {
	for _, r := range rules {
		if err := s.AddRule(r); err != nil {
			return err
		}
	}
	return nil
}

// Rule returns the rule with the given ID.
func (s *Service) Rule(id string) (Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	return r, ok
}

// Rules returns all rules sorted by ID.
func (s *Service) Rules() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Priors returns the per-rule priors for one category, renormalized so they
// sum to 1.
func (s *Service) Priors(cat problem.Category) map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.priorsLocked(cat)
}

func (s *Service) priorsLocked(cat problem.Category) map[string]float64 {
	ids := s.byCategory[cat]
	total := 0.0
	for _, id := range ids {
		total += s.rules[id].Weight
	}
	priors := make(map[string]float64, len(ids))
	if total == 0 {
		return priors
	}
	for _, id := range ids {
		priors[id] = s.rules[id].Weight / total
	}
	return priors
}

// Match returns the rules whose conditions hold for the problem, ranked by
// posterior. Posteriors are proportional to each rule's prior and are
// renormalized across the matching set so they sum to 1. Ties rank by
// specificity, then rule ID, so the ordering is deterministic.
func (s *Service) Match(ctx context.Context, p *problem.Problem) ([]RuleMatch, error) {
	_, span := s.tracer.Start(ctx, "knowledge.match")
	defer span.End()

	if err := p.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("device", p.Device),
		attribute.String("category", string(p.Category)),
		attribute.Int("symptom_count", len(p.Symptoms)),
	)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []RuleMatch
	total := 0.0
	for _, id := range s.byCategory[p.Category] {
		r := s.rules[id]
		if !r.Condition.Matches(p) {
			continue
		}
		matches = append(matches, RuleMatch{Rule: r})
		total += r.Weight
	}

	for i := range matches {
		matches[i].Posterior = matches[i].Rule.Weight / total
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Posterior != matches[j].Posterior {
			return matches[i].Posterior > matches[j].Posterior
		}
		si, sj := matches[i].Rule.Specificity(), matches[j].Rule.Specificity()
		if si != sj {
			return si > sj
		}
		return matches[i].Rule.ID < matches[j].Rule.ID
	})

	if s.matchCounter != nil {
		s.matchCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("category", string(p.Category)),
			attribute.Int("match_count", len(matches)),
		))
	}
	span.SetAttributes(attribute.Int("match_count", len(matches)))
	return matches, nil
}

// Similar ranks history entries by Jaccard overlap between symptom sets.
// Entries with zero overlap are omitted. Used as the fallback when no rule
// matches a problem.
func (s *Service) Similar(ctx context.Context, p *problem.Problem, limit int) ([]ScoredEntry, error) {
	ctx, span := s.tracer.Start(ctx, "knowledge.similar")
	defer span.End()

	if limit <= 0 {
		limit = 5
	}

	entries, err := s.history.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	var scored []ScoredEntry
	for _, e := range entries {
		score := problem.Jaccard(p.Symptoms, e.Problem.Symptoms)
		if score <= 0 {
			continue
		}
		scored = append(scored, ScoredEntry{Entry: e, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		// Successful outcomes rank first among equals.
		return scored[i].Entry.Success && !scored[j].Entry.Success
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	span.SetAttributes(attribute.Int("result_count", len(scored)))
	return scored, nil
}

// Record appends an outcome to the history and nudges the involved rule's
// prior toward the observed result. The update is bounded so no prior
// reaches 0 or 1; priors within the category renormalize on read.
func (s *Service) Record(ctx context.Context, entry *HistoryEntry) error {
	ctx, span := s.tracer.Start(ctx, "knowledge.record")
	defer span.End()

	if entry.ID == "" {
		return errors.New("history entry id is required")
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now()
	}

	if err := s.history.Append(ctx, entry); err != nil {
		span.RecordError(err)
		return err
	}

	if entry.RuleID != "" {
		s.updatePrior(entry.RuleID, entry.Success)
	}

	if s.recordCounter != nil {
		s.recordCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("category", string(entry.Problem.Category)),
			attribute.Bool("success", entry.Success),
		))
	}

	s.logger.Info("recorded outcome",
		zap.String("entry_id", entry.ID),
		zap.String("rule_id", entry.RuleID),
		zap.String("fix_id", entry.FixID),
		zap.String("outcome", entry.Outcome),
		zap.Bool("success", entry.Success),
	)
	return nil
}

func (s *Service) updatePrior(ruleID string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[ruleID]
	if !ok {
		s.logger.Warn("outcome references unknown rule", zap.String("rule_id", ruleID))
		return
	}

	before := r.Weight
	if success {
		r.Weight += (1 - r.Weight) * s.config.LearnRate
	} else {
		r.Weight *= s.config.Decay
	}
	if r.Weight > s.config.MaxWeight {
		r.Weight = s.config.MaxWeight
	}
	if r.Weight < s.config.MinWeight {
		r.Weight = s.config.MinWeight
	}
	s.rules[ruleID] = r

	s.logger.Debug("updated rule prior",
		zap.String("rule_id", ruleID),
		zap.Bool("success", success),
		zap.Float64("weight_before", before),
		zap.Float64("weight_after", r.Weight),
	)
}

// Stats summarizes rule and history counts.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	entries, err := s.history.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	ruleStats, err := s.history.RuleStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate rule stats: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &Stats{
		TotalRules:      len(s.rules),
		RulesByCategory: make(map[problem.Category]int),
		HistoryEntries:  len(entries),
	}
	for cat, ids := range s.byCategory {
		st.RulesByCategory[cat] = len(ids)
	}
	for _, rs := range ruleStats {
		st.FixAttempts += rs.Attempts
		st.FixSuccesses += rs.Successes
	}
	return st, nil
}

// History returns all recorded entries in insertion order.
func (s *Service) History(ctx context.Context) ([]HistoryEntry, error) {
	return s.history.List(ctx)
}

// Close closes the underlying history store.
func (s *Service) Close() error {
	return s.history.Close()
}
