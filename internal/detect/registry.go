package detect

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/netmend/internal/problem"
)

// Detector produces Problems for one protocol category.
type Detector interface {
	Category() problem.Category
	Produce(ctx context.Context, state *DeviceState) ([]problem.Problem, error)
}

// Registry holds one detector per category.
type Registry struct {
	logger *zap.Logger

	mu        sync.RWMutex
	detectors map[problem.Category]Detector
	order     []problem.Category
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:    logger,
		detectors: make(map[problem.Category]Detector),
	}
}

// Register adds a detector; a second detector for the same category is
// rejected.
func (r *Registry) Register(d Detector) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cat := d.Category()
	if _, exists := r.detectors[cat]; exists {
		return fmt.Errorf("detector for category %q already registered", cat)
	}
	r.detectors[cat] = d
	r.order = append(r.order, cat)
	return nil
}

// Categories returns the registered categories in registration order.
func (r *Registry) Categories() []problem.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]problem.Category(nil), r.order...)
}

// Produce runs every registered detector over the snapshot. A detector
// error skips that category and is logged; detection is best-effort
// across protocols.
func (r *Registry) Produce(ctx context.Context, state *DeviceState) ([]problem.Problem, error) {
	if state == nil || state.Device == "" {
		return nil, fmt.Errorf("device snapshot is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []problem.Problem
	for _, cat := range r.order {
		probs, err := r.detectors[cat].Produce(ctx, state)
		if err != nil {
			r.logger.Warn("detector failed",
				zap.String("device", state.Device),
				zap.String("category", string(cat)),
				zap.Error(err),
			)
			continue
		}
		out = append(out, probs...)
	}
	return out, nil
}
