package problem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		problem Problem
		wantErr string
	}{
		{
			name: "valid",
			problem: Problem{
				Device:   "R4",
				Category: CategoryInterface,
				Symptoms: []string{"admin_down"},
				Severity: SeverityHigh,
			},
		},
		{
			name: "missing device",
			problem: Problem{
				Category: CategoryOSPF,
				Symptoms: []string{"no_neighbor"},
			},
			wantErr: "device is required",
		},
		{
			name: "unknown category",
			problem: Problem{
				Device:   "R4",
				Category: Category("bgp"),
				Symptoms: []string{"no_neighbor"},
			},
			wantErr: "unknown problem category",
		},
		{
			name: "empty symptoms",
			problem: Problem{
				Device:   "R4",
				Category: CategoryEIGRP,
			},
			wantErr: "at least one symptom",
		},
		{
			name: "confidence out of range",
			problem: Problem{
				Device:     "R4",
				Category:   CategoryEIGRP,
				Symptoms:   []string{"neighbor_flapping"},
				Confidence: 1.2,
			},
			wantErr: "outside [0,1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.problem.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{"identical", []string{"a", "b"}, []string{"b", "a"}, 1.0},
		{"disjoint", []string{"a"}, []string{"b"}, 0.0},
		{"half", []string{"a", "b"}, []string{"b", "c"}, 1.0 / 3.0},
		{"both empty", nil, nil, 1.0},
		{"one empty", []string{"a"}, nil, 0.0},
		{"duplicates ignored", []string{"a", "a", "b"}, []string{"a", "b", "b"}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Jaccard(tt.a, tt.b), 1e-9)
		})
	}
}

func TestEvidenceFloat(t *testing.T) {
	ev := Evidence{"current_hello": "5", "note": "manual"}

	v, ok := ev.Float("current_hello")
	require.True(t, ok)
	assert.Equal(t, 5.0, v)

	_, ok = ev.Float("note")
	assert.False(t, ok)

	_, ok = ev.Float("missing")
	assert.False(t, ok)
}
