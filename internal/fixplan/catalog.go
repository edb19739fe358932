package fixplan

import "github.com/fyrsmithlabs/netmend/internal/problem"

// Catalog returns the built-in fix templates, keyed by ID. Placeholder
// tokens resolve at customization time from the problem's evidence and
// the device baseline.
func Catalog() map[string]Template {
	templates := []Template{
		{
			ID:          "if-no-shutdown",
			Category:    problem.CategoryInterface,
			Description: "Bring an administratively shut interface up",
			Risk:        RiskMedium,
			Steps: []Step{
				{
					Name:     "enable interface",
					Commands: []string{"interface {interface}", "no shutdown", "end"},
					Verify: VerifySpec{
						Command:      "show ip interface brief | include {interface}",
						ExpectAbsent: []string{"administratively down"},
					},
					Rollback: []string{"interface {interface}", "shutdown", "end"},
				},
			},
		},
		{
			ID:          "if-set-ip",
			Category:    problem.CategoryInterface,
			Description: "Replace a mismatched interface address with the baseline one",
			Risk:        RiskMedium,
			Steps: []Step{
				{
					Name:     "set address",
					Commands: []string{"interface {interface}", "ip address {expected_ip} {expected_mask}", "end"},
					Verify: VerifySpec{
						Command:        "show ip interface brief | include {interface}",
						ExpectContains: []string{"{expected_ip}"},
					},
					Rollback: []string{"interface {interface}", "ip address {current_ip} {current_mask}", "end"},
				},
			},
		},
		{
			ID:          "if-add-ip",
			Category:    problem.CategoryInterface,
			Description: "Configure the baseline address on an unaddressed interface",
			Risk:        RiskMedium,
			Steps: []Step{
				{
					Name:     "add address",
					Commands: []string{"interface {interface}", "ip address {expected_ip} {expected_mask}", "end"},
					Verify: VerifySpec{
						Command:        "show ip interface brief | include {interface}",
						ExpectContains: []string{"{expected_ip}"},
					},
					Rollback: []string{"interface {interface}", "no ip address", "end"},
				},
			},
		},
		{
			ID:          "eigrp-k-values",
			Category:    problem.CategoryEIGRP,
			Description: "Reset EIGRP metric weights to the baseline values",
			Risk:        RiskHigh,
			Steps: []Step{
				{
					Name:     "set metric weights",
					Commands: []string{"router eigrp {as_number}", "metric weights {expected_k}", "end"},
					Verify: VerifySpec{
						Command:        "show ip protocols",
						ExpectContains: []string{"{expected_k}"},
					},
					Rollback: []string{"router eigrp {as_number}", "metric weights {current_k}", "end"},
				},
			},
		},
		{
			ID:          "eigrp-timers",
			Category:    problem.CategoryEIGRP,
			Description: "Align EIGRP hello and hold timers with the baseline",
			Risk:        RiskMedium,
			Steps: []Step{
				{
					Name: "set timers",
					Commands: []string{
						"interface {interface}",
						"ip hello-interval eigrp {as_number} {expected_hello}",
						"ip hold-time eigrp {as_number} {expected_hold}",
						"end",
					},
					Verify: VerifySpec{
						Command:        "show ip eigrp interfaces detail {interface}",
						ExpectContains: []string{"{expected_hello}"},
					},
					Rollback: []string{
						"interface {interface}",
						"ip hello-interval eigrp {as_number} {current_hello}",
						"ip hold-time eigrp {as_number} {current_hold}",
						"end",
					},
				},
			},
		},
		{
			ID:          "eigrp-no-stub",
			Category:    problem.CategoryEIGRP,
			Description: "Remove an unintended EIGRP stub configuration",
			Risk:        RiskHigh,
			Steps: []Step{
				{
					Name:     "remove stub",
					Commands: []string{"router eigrp {as_number}", "no eigrp stub", "end"},
					Verify: VerifySpec{
						Command:      "show ip protocols",
						ExpectAbsent: []string{"stub"},
					},
					Rollback: []string{"router eigrp {as_number}", "eigrp stub", "end"},
				},
			},
		},
		{
			ID:          "eigrp-no-passive",
			Category:    problem.CategoryEIGRP,
			Description: "Remove a passive-interface statement blocking EIGRP hellos",
			Risk:        RiskMedium,
			Steps: []Step{
				{
					Name:     "remove passive-interface",
					Commands: []string{"router eigrp {as_number}", "no passive-interface {interface}", "end"},
					Verify: VerifySpec{
						Command:        "show ip eigrp neighbors",
						ExpectContains: []string{"{interface}"},
					},
					Rollback: []string{"router eigrp {as_number}", "passive-interface {interface}", "end"},
				},
			},
		},
		{
			ID:          "eigrp-add-network",
			Category:    problem.CategoryEIGRP,
			Description: "Add a missing EIGRP network statement",
			Risk:        RiskMedium,
			Steps: []Step{
				{
					Name:     "add network",
					Commands: []string{"router eigrp {as_number}", "network {network}", "end"},
					Verify: VerifySpec{
						Command:        "show ip eigrp topology",
						ExpectContains: []string{"{network}"},
					},
					Rollback: []string{"router eigrp {as_number}", "no network {network}", "end"},
				},
			},
		},
		{
			ID:          "ospf-timers",
			Category:    problem.CategoryOSPF,
			Description: "Align OSPF hello and dead intervals with the baseline",
			Risk:        RiskMedium,
			Steps: []Step{
				{
					Name: "set timers",
					Commands: []string{
						"interface {interface}",
						"ip ospf hello-interval {expected_hello}",
						"ip ospf dead-interval {expected_dead}",
						"end",
					},
					Verify: VerifySpec{
						Command:        "show ip ospf interface {interface}",
						ExpectContains: []string{"Hello {expected_hello}"},
					},
					Rollback: []string{
						"interface {interface}",
						"ip ospf hello-interval {current_hello}",
						"ip ospf dead-interval {current_dead}",
						"end",
					},
				},
			},
		},
		{
			ID:          "ospf-router-id",
			Category:    problem.CategoryOSPF,
			Description: "Set the baseline OSPF router ID and restart the process",
			Risk:        RiskHigh,
			Destructive: true, // clearing the process drops every adjacency
			Steps: []Step{
				{
					Name:     "set router-id",
					Commands: []string{"router ospf {process_id}", "router-id {expected_router_id}", "end"},
					Verify: VerifySpec{
						Command:        "show running-config | section ospf",
						ExpectContains: []string{"router-id {expected_router_id}"},
					},
					Rollback: []string{"router ospf {process_id}", "router-id {current_router_id}", "end"},
				},
				{
					Name:     "restart process",
					Commands: []string{"clear ip ospf process"},
					Verify: VerifySpec{
						Command:        "show ip ospf",
						ExpectContains: []string{"{expected_router_id}"},
					},
					Rollback: []string{"clear ip ospf process"},
				},
			},
		},
		{
			ID:          "ospf-no-passive",
			Category:    problem.CategoryOSPF,
			Description: "Remove a passive-interface statement blocking OSPF hellos",
			Risk:        RiskMedium,
			Steps: []Step{
				{
					Name:     "remove passive-interface",
					Commands: []string{"router ospf {process_id}", "no passive-interface {interface}", "end"},
					Verify: VerifySpec{
						Command:        "show ip ospf neighbor",
						ExpectContains: []string{"{interface}"},
					},
					Rollback: []string{"router ospf {process_id}", "passive-interface {interface}", "end"},
				},
			},
		},
		{
			ID:          "ospf-add-network",
			Category:    problem.CategoryOSPF,
			Description: "Advertise a missing interface into the OSPF process",
			Risk:        RiskMedium,
			Steps: []Step{
				{
					Name: "add network",
					Commands: []string{
						"router ospf {process_id}",
						"network {expected_network} {expected_wildcard} area {expected_area}",
						"end",
					},
					Verify: VerifySpec{
						Command:        "show ip ospf interface brief",
						ExpectContains: []string{"{interface}"},
					},
					Rollback: []string{
						"router ospf {process_id}",
						"no network {expected_network} {expected_wildcard} area {expected_area}",
						"end",
					},
				},
			},
		},
		{
			ID:          "ospf-area",
			Category:    problem.CategoryOSPF,
			Description: "Move an interface into the baseline OSPF area",
			Risk:        RiskMedium,
			Steps: []Step{
				{
					Name:     "set area",
					Commands: []string{"interface {interface}", "ip ospf {process_id} area {expected_area}", "end"},
					Verify: VerifySpec{
						Command:        "show ip ospf interface {interface}",
						ExpectContains: []string{"Area {expected_area}"},
					},
					Rollback: []string{"interface {interface}", "ip ospf {process_id} area {current_area}", "end"},
				},
			},
		},
		{
			ID:             "revert-baseline",
			Category:       problem.CategoryInterface,
			Description:    "Restore the device's known-good configuration by hand",
			Risk:           RiskCritical,
			Destructive:    true,
			RequiresManual: true,
			// No steps: the engine recommends the restore but never drives
			// a full config replace itself.
		},
	}

	out := make(map[string]Template, len(templates))
	for _, t := range templates {
		out[t.ID] = t
	}
	return out
}
