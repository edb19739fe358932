package detect

import (
	"context"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/netmend/internal/baseline"
	"github.com/fyrsmithlabs/netmend/internal/problem"
)

// InterfaceDetector flags interface-level faults: shut ports, address
// drift, missing addresses, dead line protocol, and error-rate spikes.
type InterfaceDetector struct {
	baseline baseline.Store
}

// NewInterfaceDetector creates the detector. The baseline store may be
// nil; baseline-dependent findings are then skipped.
func NewInterfaceDetector(store baseline.Store) *InterfaceDetector {
	return &InterfaceDetector{baseline: store}
}

func (d *InterfaceDetector) Category() problem.Category { return problem.CategoryInterface }

func (d *InterfaceDetector) Produce(ctx context.Context, state *DeviceState) ([]problem.Problem, error) {
	var out []problem.Problem
	now := time.Now()

	for _, intf := range state.Interfaces {
		expectedIP, _ := d.expect(ctx, state.Device, intf.Name+".ip")
		expectedMask, _ := d.expect(ctx, state.Device, intf.Name+".mask")

		if !intf.AdminUp && intf.IP != "" {
			out = append(out, problem.Problem{
				Device:     state.Device,
				Category:   problem.CategoryInterface,
				Symptoms:   []string{"admin_down", "has_ip"},
				Severity:   problem.SeverityHigh,
				Evidence:   problem.Evidence{"interface": intf.Name},
				DetectedAt: now,
			})
		}

		if intf.IP != "" && expectedIP != "" && intf.IP != expectedIP {
			out = append(out, problem.Problem{
				Device:   state.Device,
				Category: problem.CategoryInterface,
				Symptoms: []string{"ip_mismatch"},
				Severity: problem.SeverityHigh,
				Evidence: problem.Evidence{
					"interface":     intf.Name,
					"current_ip":    intf.IP,
					"current_mask":  intf.Mask,
					"expected_ip":   expectedIP,
					"expected_mask": expectedMask,
				},
				DetectedAt: now,
			})
		}

		if intf.IP == "" && expectedIP != "" {
			out = append(out, problem.Problem{
				Device:   state.Device,
				Category: problem.CategoryInterface,
				Symptoms: []string{"no_ip", "should_have_ip"},
				Severity: problem.SeverityHigh,
				Evidence: problem.Evidence{
					"interface":     intf.Name,
					"expected_ip":   expectedIP,
					"expected_mask": expectedMask,
				},
				DetectedAt: now,
			})
		}

		if intf.AdminUp && !intf.LineUp {
			out = append(out, problem.Problem{
				Device:     state.Device,
				Category:   problem.CategoryInterface,
				Symptoms:   []string{"line_down", "not_shutdown"},
				Severity:   problem.SeverityMedium,
				Evidence:   problem.Evidence{"interface": intf.Name},
				DetectedAt: now,
			})
		}

		if intf.ErrorRate > 0 {
			out = append(out, problem.Problem{
				Device:   state.Device,
				Category: problem.CategoryInterface,
				Symptoms: []string{"input_errors"},
				Severity: problem.SeverityMedium,
				Evidence: problem.Evidence{
					"interface":  intf.Name,
					"error_rate": strconv.FormatFloat(intf.ErrorRate, 'f', -1, 64),
				},
				DetectedAt: now,
			})
		}
	}
	return out, nil
}

func (d *InterfaceDetector) expect(ctx context.Context, device, field string) (string, bool) {
	if d.baseline == nil {
		return "", false
	}
	v, ok, err := d.baseline.Get(ctx, device, field)
	if err != nil || !ok {
		return "", false
	}
	return v, true
}
