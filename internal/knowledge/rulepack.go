package knowledge

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// RulePack is the on-disk format for additional rules.
type RulePack struct {
	Name  string `yaml:"name"`
	Rules []Rule `yaml:"rules"`
}

// LoadRulePack parses a YAML rule pack from disk and validates every rule.
func LoadRulePack(path string) (*RulePack, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule pack: %w", err)
	}

	var pack RulePack
	if err := yaml.Unmarshal(content, &pack); err != nil {
		return nil, fmt.Errorf("failed to parse rule pack %s: %w", path, err)
	}

	for i := range pack.Rules {
		if err := pack.Rules[i].Validate(); err != nil {
			return nil, fmt.Errorf("rule pack %s: %w", path, err)
		}
	}
	return &pack, nil
}

// LoadPack appends the pack's rules to the service, skipping rules whose ID
// is already registered. The rule set stays append-only: a changed pack can
// contribute new rules but never replace existing ones. Returns the number
// of rules added.
func (s *Service) LoadPack(pack *RulePack) (int, error) {
	added := 0
	for _, r := range pack.Rules {
		err := s.AddRule(r)
		switch {
		case err == nil:
			added++
		case errors.Is(err, ErrDuplicateRule):
			s.logger.Debug("skipping already registered rule",
				zap.String("rule_id", r.ID),
				zap.String("pack", pack.Name),
			)
		default:
			return added, err
		}
	}
	return added, nil
}
