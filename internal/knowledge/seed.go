package knowledge

import "github.com/fyrsmithlabs/netmend/internal/problem"

// SeedRules returns the built-in rule catalog. Weights are the shipped
// defaults; learning adjusts them over time.
func SeedRules() []Rule {
	return []Rule{
		// Interface rules.
		{
			ID:          "IF-001",
			Category:    problem.CategoryInterface,
			Cause:       "interface administratively down",
			Description: "Interface has an address but was shut down by an operator",
			Condition:   Condition{Kind: KindSymptomSubset, Symptoms: []string{"admin_down", "has_ip"}},
			Weight:      0.95,
			Template:    "if-no-shutdown",
		},
		{
			ID:          "IF-002",
			Category:    problem.CategoryInterface,
			Cause:       "interface ip address mismatch",
			Description: "Configured address differs from the baseline",
			Condition:   Condition{Kind: KindSymptomSubset, Symptoms: []string{"ip_mismatch"}},
			Weight:      0.90,
			Template:    "if-set-ip",
		},
		{
			ID:          "IF-003",
			Category:    problem.CategoryInterface,
			Cause:       "interface missing ip address",
			Description: "Interface should carry an address but has none",
			Condition:   Condition{Kind: KindSymptomSubset, Symptoms: []string{"no_ip", "should_have_ip"}},
			Weight:      0.90,
			Template:    "if-add-ip",
		},
		{
			ID:          "IF-004",
			Category:    problem.CategoryInterface,
			Cause:       "interface line protocol down",
			Description: "Line protocol down with the port enabled; usually physical or far-end",
			Condition:   Condition{Kind: KindSymptomSubset, Symptoms: []string{"line_down", "not_shutdown"}},
			Weight:      0.70,
			Template:    "revert-baseline",
		},
		{
			ID:          "IF-005",
			Category:    problem.CategoryInterface,
			Cause:       "interface input errors",
			Description: "Input error rate above threshold",
			Condition: Condition{
				Kind:     KindThreshold,
				Symptoms: []string{"input_errors"},
				Field:    "error_rate",
				Op:       OpGreater,
				Value:    0.01,
			},
			Weight:   0.60,
			Template: "revert-baseline",
		},

		// EIGRP rules.
		{
			ID:          "EIGRP-001",
			Category:    problem.CategoryEIGRP,
			Cause:       "eigrp as mismatch",
			Description: "Autonomous system numbers differ between neighbors",
			Condition:   Condition{Kind: KindSymptomSubset, Symptoms: []string{"no_neighbor", "as_mismatch"}},
			Weight:      0.95,
			Template:    "revert-baseline",
		},
		{
			ID:          "EIGRP-002",
			Category:    problem.CategoryEIGRP,
			Cause:       "eigrp k-value mismatch",
			Description: "Metric weights differ from the baseline",
			Condition:   Condition{Kind: KindSymptomSubset, Symptoms: []string{"neighbor_flapping"}},
			Weight:      0.85,
			Template:    "eigrp-k-values",
		},
		{
			ID:          "EIGRP-003",
			Category:    problem.CategoryEIGRP,
			Cause:       "eigrp hello-timer mismatch",
			Description: "Hello/hold timers differ from the neighbor",
			Condition:   Condition{Kind: KindSymptomSubset, Symptoms: []string{"neighbor_flapping", "timer_delta"}},
			Weight:      0.85,
			Template:    "eigrp-timers",
		},
		{
			ID:          "EIGRP-004",
			Category:    problem.CategoryEIGRP,
			Cause:       "eigrp stub configuration",
			Description: "Stub flag suppresses routes the topology expects",
			Condition:   Condition{Kind: KindSymptomSubset, Symptoms: []string{"remote_routes_missing", "stub_configured"}},
			Weight:      0.80,
			Template:    "eigrp-no-stub",
		},
		{
			ID:          "EIGRP-005",
			Category:    problem.CategoryEIGRP,
			Cause:       "eigrp passive interface",
			Description: "Interface marked passive blocks adjacency",
			Condition:   Condition{Kind: KindSymptomSubset, Symptoms: []string{"no_neighbor", "passive_interface"}},
			Weight:      0.85,
			Template:    "eigrp-no-passive",
		},
		{
			ID:          "EIGRP-006",
			Category:    problem.CategoryEIGRP,
			Cause:       "eigrp missing network statement",
			Description: "Connected network absent from the EIGRP process",
			Condition:   Condition{Kind: KindSymptomSubset, Symptoms: []string{"route_missing", "network_absent"}},
			Weight:      0.80,
			Template:    "eigrp-add-network",
		},
		{
			ID:          "EIGRP-007",
			Category:    problem.CategoryEIGRP,
			Cause:       "eigrp hold-timer below hello",
			Description: "Hold timer deviates from the baseline value",
			Condition: Condition{
				Kind:          KindBaselineDelta,
				Symptoms:      []string{"timer_delta"},
				Field:         "current_hold",
				BaselineField: "expected_hold",
				Tolerance:     0,
			},
			Weight:   0.75,
			Template: "eigrp-timers",
		},

		// OSPF rules.
		{
			ID:          "OSPF-001",
			Category:    problem.CategoryOSPF,
			Cause:       "ospf process id mismatch",
			Description: "Process IDs differ from the baseline",
			Condition:   Condition{Kind: KindSymptomSubset, Symptoms: []string{"no_neighbor", "process_id_mismatch"}},
			Weight:      0.90,
			Template:    "revert-baseline",
		},
		{
			ID:          "OSPF-002",
			Category:    problem.CategoryOSPF,
			Cause:       "ospf hello-interval mismatch",
			Description: "Hello interval deviates from the baseline",
			Condition: Condition{
				Kind:          KindBaselineDelta,
				Symptoms:      []string{"no_neighbor"},
				Field:         "current_hello",
				BaselineField: "expected_hello",
				Tolerance:     0,
			},
			Weight:   0.85,
			Template: "ospf-timers",
		},
		{
			ID:          "OSPF-003",
			Category:    problem.CategoryOSPF,
			Cause:       "ospf router id mismatch",
			Description: "Router ID differs from the baseline assignment",
			Condition:   Condition{Kind: KindSymptomSubset, Symptoms: []string{"router_id_mismatch"}},
			Weight:      0.75,
			Template:    "ospf-router-id",
		},
		{
			ID:          "OSPF-004",
			Category:    problem.CategoryOSPF,
			Cause:       "ospf duplicate router id",
			Description: "Two routers advertise the same router ID",
			Condition:   Condition{Kind: KindSymptomSubset, Symptoms: []string{"duplicate_router_id"}},
			Weight:      0.80,
			Template:    "revert-baseline",
		},
		{
			ID:          "OSPF-005",
			Category:    problem.CategoryOSPF,
			Cause:       "ospf passive interface",
			Description: "Interface marked passive blocks adjacency",
			Condition:   Condition{Kind: KindSymptomSubset, Symptoms: []string{"no_neighbor", "passive_interface"}},
			Weight:      0.85,
			Template:    "ospf-no-passive",
		},
		{
			ID:          "OSPF-006",
			Category:    problem.CategoryOSPF,
			Cause:       "interface not advertised into ospf",
			Description: "Interface network absent from the OSPF process",
			Condition:   Condition{Kind: KindSymptomSubset, Symptoms: []string{"interface_not_advertised"}},
			Weight:      0.80,
			Template:    "ospf-add-network",
		},
		{
			ID:          "OSPF-007",
			Category:    problem.CategoryOSPF,
			Cause:       "ospf area mismatch",
			Description: "Interface area differs from the neighbor's area",
			Condition:   Condition{Kind: KindSymptomSubset, Symptoms: []string{"no_neighbor", "area_mismatch"}},
			Weight:      0.85,
			Template:    "ospf-area",
		},
	}
}
