package problem

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Category identifies the protocol area a problem belongs to.
type Category string

const (
	// CategoryInterface covers physical and logical interface state.
	CategoryInterface Category = "interface"
	// CategoryEIGRP covers EIGRP adjacency and configuration.
	CategoryEIGRP Category = "eigrp"
	// CategoryOSPF covers OSPF adjacency and configuration.
	CategoryOSPF Category = "ospf"
)

// Categories lists all valid categories in stable order.
func Categories() []Category {
	return []Category{CategoryInterface, CategoryEIGRP, CategoryOSPF}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryInterface, CategoryEIGRP, CategoryOSPF:
		return true
	}
	return false
}

// Severity rates the operational impact of a problem.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Evidence is the snapshot of observed values backing a problem. Keys are
// normalized field names (current_ip, expected_hello, ...), values are the
// raw observed strings.
type Evidence map[string]string

// Float parses the named evidence field as a float64.
func (e Evidence) Float(key string) (float64, bool) {
	v, ok := e[key]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Problem is a normalized record of observed symptoms for one device and
// category.
type Problem struct {
	Device     string    `json:"device" yaml:"device"`
	Category   Category  `json:"category" yaml:"category"`
	Symptoms   []string  `json:"symptoms" yaml:"symptoms"`
	Severity   Severity  `json:"severity" yaml:"severity"`
	Confidence float64   `json:"confidence" yaml:"confidence"`
	Evidence   Evidence  `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	DetectedAt time.Time `json:"detected_at" yaml:"detected_at"`
}

// Validate checks the structural invariants of a problem record.
func (p *Problem) Validate() error {
	if p.Device == "" {
		return errors.New("problem device is required")
	}
	if !p.Category.Valid() {
		return fmt.Errorf("unknown problem category %q", p.Category)
	}
	if len(p.Symptoms) == 0 {
		return errors.New("problem requires at least one symptom")
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", p.Confidence)
	}
	return nil
}

// HasSymptom reports whether the problem carries the given symptom tag.
func (p *Problem) HasSymptom(tag string) bool {
	for _, s := range p.Symptoms {
		if s == tag {
			return true
		}
	}
	return false
}

// SymptomSet returns the symptoms as a set.
func (p *Problem) SymptomSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.Symptoms))
	for _, s := range p.Symptoms {
		set[s] = struct{}{}
	}
	return set
}

// Jaccard computes the Jaccard overlap between two symptom sets. Two empty
// sets overlap fully by convention.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	union := len(set)
	inter := 0
	seen := make(map[string]struct{}, len(b))
	for _, s := range b {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if _, ok := set[s]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

// SortedSymptoms returns a sorted copy of the symptom tags. Used for
// deterministic logging and hashing.
func SortedSymptoms(symptoms []string) []string {
	out := append([]string(nil), symptoms...)
	sort.Strings(out)
	return out
}
