package detect

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/netmend/internal/baseline"
	"github.com/fyrsmithlabs/netmend/internal/problem"
)

// OSPFDetector flags OSPF adjacency faults: process and router-id drift,
// duplicate router IDs, timer mismatches, passive interfaces, missing
// advertisements, and area mismatches.
type OSPFDetector struct {
	baseline baseline.Store
}

func NewOSPFDetector(store baseline.Store) *OSPFDetector {
	return &OSPFDetector{baseline: store}
}

func (d *OSPFDetector) Category() problem.Category { return problem.CategoryOSPF }

func (d *OSPFDetector) Produce(ctx context.Context, state *DeviceState) ([]problem.Problem, error) {
	ospf := state.OSPF
	if ospf == nil {
		return nil, nil
	}

	var out []problem.Problem
	now := time.Now()
	emit := func(symptoms []string, sev problem.Severity, ev problem.Evidence) {
		out = append(out, problem.Problem{
			Device:     state.Device,
			Category:   problem.CategoryOSPF,
			Symptoms:   symptoms,
			Severity:   sev,
			Evidence:   ev,
			DetectedAt: now,
		})
	}

	noNeighbor := len(ospf.Neighbors) == 0

	if expProc, ok := d.expect(ctx, state.Device, "process_id"); ok && ospf.ProcessID != expProc && noNeighbor {
		emit([]string{"no_neighbor", "process_id_mismatch"}, problem.SeverityCritical, problem.Evidence{
			"current_process_id":  ospf.ProcessID,
			"expected_process_id": expProc,
		})
	}

	expHello := d.expectInt(ctx, state.Device, "hello", DefaultOSPFHello)
	expDead := d.expectInt(ctx, state.Device, "dead", DefaultOSPFDead)
	if noNeighbor &&
		((ospf.HelloInterval != 0 && ospf.HelloInterval != expHello) ||
			(ospf.DeadInterval != 0 && ospf.DeadInterval != expDead)) {
		emit([]string{"no_neighbor", "timer_delta"}, problem.SeverityHigh, problem.Evidence{
			"interface":      ospf.Interface,
			"current_hello":  strconv.Itoa(ospf.HelloInterval),
			"expected_hello": strconv.Itoa(expHello),
			"current_dead":   strconv.Itoa(ospf.DeadInterval),
			"expected_dead":  strconv.Itoa(expDead),
		})
	}

	if expRID, ok := d.expect(ctx, state.Device, "router_id"); ok && ospf.RouterID != "" && ospf.RouterID != expRID {
		emit([]string{"router_id_mismatch"}, problem.SeverityMedium, problem.Evidence{
			"process_id":         ospf.ProcessID,
			"current_router_id":  ospf.RouterID,
			"expected_router_id": expRID,
		})
	}

	if ospf.DuplicateRouterID {
		emit([]string{"duplicate_router_id"}, problem.SeverityHigh, problem.Evidence{
			"process_id": ospf.ProcessID,
			"router_id":  ospf.RouterID,
		})
	}

	for _, intf := range ospf.PassiveInterfaces {
		if noNeighbor {
			emit([]string{"no_neighbor", "passive_interface"}, problem.SeverityHigh, problem.Evidence{
				"interface":  intf,
				"process_id": ospf.ProcessID,
			})
		}
	}

	for _, intf := range ospf.ExpectAdjacencyOnIntf {
		if !slices.Contains(ospf.AdvertisedInterfaces, intf) {
			emit([]string{"interface_not_advertised"}, problem.SeverityHigh, problem.Evidence{
				"interface":  intf,
				"process_id": ospf.ProcessID,
			})
		}
	}

	if expArea, ok := d.expect(ctx, state.Device, "area"); ok &&
		ospf.InterfaceArea != "" && ospf.InterfaceArea != expArea && noNeighbor {
		emit([]string{"no_neighbor", "area_mismatch"}, problem.SeverityHigh, problem.Evidence{
			"interface":     ospf.Interface,
			"process_id":    ospf.ProcessID,
			"current_area":  ospf.InterfaceArea,
			"expected_area": expArea,
		})
	}

	return out, nil
}

func (d *OSPFDetector) expect(ctx context.Context, device, field string) (string, bool) {
	if d.baseline == nil {
		return "", false
	}
	v, ok, err := d.baseline.Get(ctx, device, field)
	if err != nil || !ok {
		return "", false
	}
	return v, true
}

func (d *OSPFDetector) expectInt(ctx context.Context, device, field string, def int) int {
	if v, ok := d.expect(ctx, device, field); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
