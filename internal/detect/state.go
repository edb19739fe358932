package detect

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Protocol defaults per Cisco IOS. Baselines override them per device.
const (
	DefaultEIGRPHello = 5
	DefaultEIGRPHold  = 15
	DefaultKValues    = "0 1 0 1 0 0"

	DefaultOSPFHello = 10
	DefaultOSPFDead  = 40
)

// InterfaceState is one interface as observed on the device.
type InterfaceState struct {
	Name      string  `yaml:"name" json:"name"`
	IP        string  `yaml:"ip,omitempty" json:"ip,omitempty"`
	Mask      string  `yaml:"mask,omitempty" json:"mask,omitempty"`
	AdminUp   bool    `yaml:"admin_up" json:"admin_up"`
	LineUp    bool    `yaml:"line_up" json:"line_up"`
	ErrorRate float64 `yaml:"error_rate,omitempty" json:"error_rate,omitempty"`
}

// EIGRPState is the observed EIGRP process state.
type EIGRPState struct {
	ASNumber          string   `yaml:"as_number" json:"as_number"`
	KValues           string   `yaml:"k_values,omitempty" json:"k_values,omitempty"`
	Neighbors         []string `yaml:"neighbors,omitempty" json:"neighbors,omitempty"`
	NeighborFlapping  bool     `yaml:"neighbor_flapping,omitempty" json:"neighbor_flapping,omitempty"`
	PassiveInterfaces []string `yaml:"passive_interfaces,omitempty" json:"passive_interfaces,omitempty"`
	Stub              bool     `yaml:"stub,omitempty" json:"stub,omitempty"`
	RemoteRoutesSeen  bool     `yaml:"remote_routes_seen,omitempty" json:"remote_routes_seen,omitempty"`
	Networks          []string `yaml:"networks,omitempty" json:"networks,omitempty"`
	HelloInterval     int      `yaml:"hello_interval,omitempty" json:"hello_interval,omitempty"`
	HoldTime          int      `yaml:"hold_time,omitempty" json:"hold_time,omitempty"`
	Interface         string   `yaml:"interface,omitempty" json:"interface,omitempty"`
}

// OSPFState is the observed OSPF process state.
type OSPFState struct {
	ProcessID             string   `yaml:"process_id" json:"process_id"`
	RouterID              string   `yaml:"router_id,omitempty" json:"router_id,omitempty"`
	Neighbors             []string `yaml:"neighbors,omitempty" json:"neighbors,omitempty"`
	DuplicateRouterID     bool     `yaml:"duplicate_router_id,omitempty" json:"duplicate_router_id,omitempty"`
	PassiveInterfaces     []string `yaml:"passive_interfaces,omitempty" json:"passive_interfaces,omitempty"`
	AdvertisedInterfaces  []string `yaml:"advertised_interfaces,omitempty" json:"advertised_interfaces,omitempty"`
	InterfaceArea         string   `yaml:"interface_area,omitempty" json:"interface_area,omitempty"`
	HelloInterval         int      `yaml:"hello_interval,omitempty" json:"hello_interval,omitempty"`
	DeadInterval          int      `yaml:"dead_interval,omitempty" json:"dead_interval,omitempty"`
	Interface             string   `yaml:"interface,omitempty" json:"interface,omitempty"`
	ExpectAdjacencyOnIntf []string `yaml:"expect_adjacency,omitempty" json:"expect_adjacency,omitempty"`
}

// DeviceState is the normalized snapshot detectors consume. Collectors
// parse raw show output into this shape outside the engine.
type DeviceState struct {
	Device      string           `yaml:"device" json:"device"`
	Interfaces  []InterfaceState `yaml:"interfaces,omitempty" json:"interfaces,omitempty"`
	EIGRP       *EIGRPState      `yaml:"eigrp,omitempty" json:"eigrp,omitempty"`
	OSPF        *OSPFState       `yaml:"ospf,omitempty" json:"ospf,omitempty"`
	CollectedAt time.Time        `yaml:"collected_at,omitempty" json:"collected_at,omitempty"`
}

// LoadState reads a YAML device snapshot, as produced by a collector or
// written by hand for one-shot diagnosis.
func LoadState(path string) (*DeviceState, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var st DeviceState
	if err := yaml.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	if st.Device == "" {
		return nil, fmt.Errorf("snapshot %s has no device name", path)
	}
	return &st, nil
}
