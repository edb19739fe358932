package detect

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/netmend/internal/baseline"
	"github.com/fyrsmithlabs/netmend/internal/problem"
)

// EIGRPDetector flags EIGRP adjacency faults: AS drift, K-value and
// timer mismatches, stubs hiding routes, passive interfaces, and missing
// network statements.
type EIGRPDetector struct {
	baseline baseline.Store
}

func NewEIGRPDetector(store baseline.Store) *EIGRPDetector {
	return &EIGRPDetector{baseline: store}
}

func (d *EIGRPDetector) Category() problem.Category { return problem.CategoryEIGRP }

func (d *EIGRPDetector) Produce(ctx context.Context, state *DeviceState) ([]problem.Problem, error) {
	eigrp := state.EIGRP
	if eigrp == nil {
		return nil, nil
	}

	var out []problem.Problem
	now := time.Now()
	emit := func(symptoms []string, sev problem.Severity, ev problem.Evidence) {
		out = append(out, problem.Problem{
			Device:     state.Device,
			Category:   problem.CategoryEIGRP,
			Symptoms:   symptoms,
			Severity:   sev,
			Evidence:   ev,
			DetectedAt: now,
		})
	}

	if expAS, ok := d.expect(ctx, state.Device, "as_number"); ok && eigrp.ASNumber != expAS {
		emit([]string{"no_neighbor", "as_mismatch"}, problem.SeverityCritical, problem.Evidence{
			"current_as":  eigrp.ASNumber,
			"expected_as": expAS,
		})
	}

	expK, ok := d.expect(ctx, state.Device, "k_values")
	if !ok {
		expK = DefaultKValues
	}
	if eigrp.KValues != "" && eigrp.KValues != expK {
		emit([]string{"neighbor_flapping", "k_mismatch"}, problem.SeverityHigh, problem.Evidence{
			"as_number":  eigrp.ASNumber,
			"current_k":  eigrp.KValues,
			"expected_k": expK,
		})
	}

	expHello := d.expectInt(ctx, state.Device, "hello", DefaultEIGRPHello)
	expHold := d.expectInt(ctx, state.Device, "hold", DefaultEIGRPHold)
	if (eigrp.HelloInterval != 0 && eigrp.HelloInterval != expHello) ||
		(eigrp.HoldTime != 0 && eigrp.HoldTime != expHold) {
		emit([]string{"neighbor_flapping", "timer_delta"}, problem.SeverityHigh, problem.Evidence{
			"interface":      eigrp.Interface,
			"as_number":      eigrp.ASNumber,
			"current_hello":  strconv.Itoa(eigrp.HelloInterval),
			"expected_hello": strconv.Itoa(expHello),
			"current_hold":   strconv.Itoa(eigrp.HoldTime),
			"expected_hold":  strconv.Itoa(expHold),
		})
	}

	if eigrp.Stub && !eigrp.RemoteRoutesSeen {
		emit([]string{"remote_routes_missing", "stub_configured"}, problem.SeverityHigh, problem.Evidence{
			"as_number": eigrp.ASNumber,
		})
	}

	for _, intf := range eigrp.PassiveInterfaces {
		if len(eigrp.Neighbors) == 0 {
			emit([]string{"no_neighbor", "passive_interface"}, problem.SeverityHigh, problem.Evidence{
				"interface": intf,
				"as_number": eigrp.ASNumber,
			})
		}
	}

	if expNet, ok := d.expect(ctx, state.Device, "network"); ok && !slices.Contains(eigrp.Networks, expNet) {
		emit([]string{"route_missing", "network_absent"}, problem.SeverityHigh, problem.Evidence{
			"as_number": eigrp.ASNumber,
			"network":   expNet,
		})
	}

	return out, nil
}

func (d *EIGRPDetector) expect(ctx context.Context, device, field string) (string, bool) {
	if d.baseline == nil {
		return "", false
	}
	v, ok, err := d.baseline.Get(ctx, device, field)
	if err != nil || !ok {
		return "", false
	}
	return v, true
}

func (d *EIGRPDetector) expectInt(ctx context.Context, device, field string, def int) int {
	if v, ok := d.expect(ctx, device, field); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
