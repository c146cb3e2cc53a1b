package topology

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// topologyFile mirrors the on-disk YAML layout: a devices table keyed by
// name, a bgp_peers edge list, and an optional prefixes table (carried for
// completeness, unused by the graph).
type topologyFile struct {
	Devices  map[string]deviceSpec `yaml:"devices"`
	BGPPeers []peerSpec            `yaml:"bgp_peers"`
	Prefixes map[string][]string   `yaml:"prefixes"`
}

type deviceSpec struct {
	Role       string   `yaml:"role"`
	ASN        uint32   `yaml:"asn"`
	RouterID   string   `yaml:"router_id"`
	Rack       string   `yaml:"rack"`
	Datacenter string   `yaml:"datacenter"`
	Interfaces []string `yaml:"interfaces"`
}

type peerSpec struct {
	LocalDevice  string `yaml:"local_device"`
	LocalASN     uint32 `yaml:"local_asn"`
	LocalIP      string `yaml:"local_ip"`
	RemoteDevice string `yaml:"remote_device"`
	RemoteASN    uint32 `yaml:"remote_asn"`
	RemoteIP     string `yaml:"remote_ip"`
	SessionType  string `yaml:"session_type"`
}

// Load reads a topology YAML file and builds the graph. A missing or
// malformed file degrades to an empty graph with a logged warning; the
// pipeline keeps running with every query resolving to unknown.
func Load(path string) *Graph {
	if path == "" {
		slog.Info("no topology configured, using empty graph")
		return EmptyGraph()
	}
	g, err := loadFile(path)
	if err != nil {
		slog.Warn("topology unavailable, degrading to empty graph", "path", path, "error", err)
		return EmptyGraph()
	}
	slog.Info("topology loaded", "path", path, "devices", g.DeviceCount())
	return g
}

func loadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file: %w", err)
	}

	var file topologyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse topology file: %w", err)
	}

	devices := make([]Device, 0, len(file.Devices))
	for name, spec := range file.Devices {
		devices = append(devices, Device{
			Name:       name,
			Role:       ParseRole(spec.Role),
			ASN:        spec.ASN,
			RouterID:   spec.RouterID,
			Rack:       spec.Rack,
			Datacenter: spec.Datacenter,
			Interfaces: spec.Interfaces,
		})
	}

	edges := make([]PeeringEdge, 0, len(file.BGPPeers))
	for _, spec := range file.BGPPeers {
		edges = append(edges, PeeringEdge{
			LocalDevice:  spec.LocalDevice,
			LocalASN:     spec.LocalASN,
			LocalIP:      spec.LocalIP,
			RemoteDevice: spec.RemoteDevice,
			RemoteASN:    spec.RemoteASN,
			RemoteIP:     spec.RemoteIP,
			SessionType:  spec.SessionType,
		})
	}

	return NewGraph(devices, edges), nil
}
