package inference

import "github.com/fyrsmithlabs/netmend/internal/problem"

// probeCommands maps a problem category to the read-only show commands an
// operator (or a follow-up detection pass) should run to narrow an
// uncertain diagnosis.
var probeCommands = map[problem.Category][]string{
	problem.CategoryInterface: {
		"show ip interface brief",
		"show interface status",
		"show running-config interface",
	},
	problem.CategoryEIGRP: {
		"show ip eigrp neighbors",
		"show ip eigrp interfaces",
		"show running-config | section eigrp",
	},
	problem.CategoryOSPF: {
		"show ip ospf neighbor",
		"show ip ospf interface",
		"show running-config | section ospf",
	},
}

// SuggestProbes returns diagnostic commands for gathering more evidence
// about an uncertain problem. The commands are read-only and safe to run
// outside a fix plan. An unknown category gets the generic config dump.
func SuggestProbes(p *problem.Problem) []string {
	if cmds, ok := probeCommands[p.Category]; ok {
		return append([]string(nil), cmds...)
	}
	return []string{"show running-config"}
}
