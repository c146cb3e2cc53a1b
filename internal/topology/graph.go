// Package topology models the network as a read-only graph of devices and
// BGP adjacencies. The graph is built once at startup and shared without
// locking; every query degrades to a sentinel value for unknown devices so
// triage never fails on incomplete data.
package topology

import "strings"

// Role classifies a device's position in the network hierarchy.
type Role string

const (
	RoleEdge           Role = "edge"
	RoleSpine          Role = "spine"
	RoleRouteReflector Role = "route_reflector"
	RoleToR            Role = "tor"
	RoleLeaf           Role = "leaf"
	RoleAccess         Role = "access"
	RoleServer         Role = "server"
	RoleUnknown        Role = "unknown"
)

// ParseRole maps a string to a Role, defaulting to unknown.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleEdge:
		return RoleEdge
	case RoleSpine:
		return RoleSpine
	case RoleRouteReflector:
		return RoleRouteReflector
	case RoleToR:
		return RoleToR
	case RoleLeaf:
		return RoleLeaf
	case RoleAccess:
		return RoleAccess
	case RoleServer:
		return RoleServer
	default:
		return RoleUnknown
	}
}

// IsCriticalTier reports whether the role is in the highest-criticality tier.
// Only these roles can be flagged as single points of failure.
func (r Role) IsCriticalTier() bool {
	switch r {
	case RoleEdge, RoleSpine, RoleRouteReflector:
		return true
	}
	return false
}

// FailureDomain is the topological scope an incident is classified under.
type FailureDomain string

const (
	DomainEdge       FailureDomain = "edge_domain"
	DomainDatacenter FailureDomain = "datacenter_domain"
	DomainNetwork    FailureDomain = "network_domain"
	DomainRack       FailureDomain = "rack_domain"
	DomainPod        FailureDomain = "pod_domain"
	DomainFloor      FailureDomain = "floor_domain"
	DomainLocal      FailureDomain = "local_domain"
	DomainUnknown    FailureDomain = "unknown_domain"
)

// roleDomains maps each role to its failure domain.
var roleDomains = map[Role]FailureDomain{
	RoleEdge:           DomainEdge,
	RoleSpine:          DomainDatacenter,
	RoleRouteReflector: DomainNetwork,
	RoleToR:            DomainRack,
	RoleLeaf:           DomainPod,
	RoleAccess:         DomainFloor,
	RoleServer:         DomainLocal,
}

// roleServices maps each role to the service tag impacted when it fails.
var roleServices = map[Role]string{
	RoleEdge:           "external_connectivity",
	RoleSpine:          "east_west_traffic",
	RoleRouteReflector: "route_distribution",
	RoleToR:            "rack_connectivity",
	RoleLeaf:           "pod_connectivity",
	RoleAccess:         "access_connectivity",
	RoleServer:         "application",
}

// Device is one node in the topology. Immutable after graph construction.
type Device struct {
	Name       string
	Role       Role
	ASN        uint32
	RouterID   string
	Rack       string
	Datacenter string
	Interfaces []string
}

// PeeringEdge is one BGP adjacency between two devices. Only used to build
// the undirected adjacency list; both directions are inserted.
type PeeringEdge struct {
	LocalDevice  string
	LocalASN     uint32
	LocalIP      string
	RemoteDevice string
	RemoteASN    uint32
	RemoteIP     string
	SessionType  string
}

// Graph is the read-only network topology. Safe for concurrent use without
// locking once built.
type Graph struct {
	devices map[string]*Device
	adj     map[string]map[string]struct{}
}

// NewGraph builds a topology graph from a device table and a peering edge
// list. Self-loops and duplicate edges are ignored.
func NewGraph(devices []Device, edges []PeeringEdge) *Graph {
	g := &Graph{
		devices: make(map[string]*Device, len(devices)),
		adj:     make(map[string]map[string]struct{}),
	}

	for i := range devices {
		d := devices[i]
		g.devices[d.Name] = &d
	}

	for _, e := range edges {
		if e.LocalDevice == "" || e.RemoteDevice == "" || e.LocalDevice == e.RemoteDevice {
			continue
		}
		g.addAdjacency(e.LocalDevice, e.RemoteDevice)
		g.addAdjacency(e.RemoteDevice, e.LocalDevice)
	}

	return g
}

// EmptyGraph returns a graph with no devices. Every query on it resolves to
// the unknown sentinel, which keeps the pipeline alive when topology
// configuration is missing or malformed.
func EmptyGraph() *Graph {
	return NewGraph(nil, nil)
}

func (g *Graph) addAdjacency(a, b string) {
	set, ok := g.adj[a]
	if !ok {
		set = make(map[string]struct{})
		g.adj[a] = set
	}
	set[b] = struct{}{}
}

// DeviceCount returns the number of devices in the graph.
func (g *Graph) DeviceCount() int {
	return len(g.devices)
}

// Device returns the device record for a name, or nil if absent.
func (g *Graph) Device(name string) *Device {
	return g.devices[name]
}

// Role returns the role of a device, RoleUnknown if absent.
func (g *Graph) Role(name string) Role {
	if d, ok := g.devices[name]; ok {
		return d.Role
	}
	return RoleUnknown
}

// Peers returns the set of directly peering devices. The returned map must
// not be mutated by callers.
func (g *Graph) Peers(name string) map[string]struct{} {
	if set, ok := g.adj[name]; ok {
		return set
	}
	return nil
}

// PeerCount returns the number of direct peers of a device.
func (g *Graph) PeerCount(name string) int {
	return len(g.adj[name])
}

// AreNeighbors reports whether a and b peer directly.
func (g *Graph) AreNeighbors(a, b string) bool {
	if set, ok := g.adj[a]; ok {
		if _, ok := set[b]; ok {
			return true
		}
	}
	return false
}

// Downstream returns devices reachable from the given device within maxDepth
// hops, breadth-first, excluding the device itself. Order follows BFS queue
// insertion; callers needing a stable order must sort.
func (g *Graph) Downstream(name string, maxDepth int) []string {
	if maxDepth <= 0 {
		return nil
	}
	if _, ok := g.adj[name]; !ok {
		return nil
	}

	visited := map[string]bool{name: true}
	var result []string

	type queued struct {
		name  string
		depth int
	}
	queue := []queued{{name, 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.depth >= maxDepth {
			continue
		}
		for peer := range g.adj[cur.name] {
			if visited[peer] {
				continue
			}
			visited[peer] = true
			result = append(result, peer)
			queue = append(queue, queued{peer, cur.depth + 1})
		}
	}

	return result
}

// DefaultMaxDepth is the traversal bound used when callers do not care.
const DefaultMaxDepth = 3

// IsSPOF reports whether a device is a single point of failure: critical-tier
// role with at most one direct peer. Lower tiers are assumed to have
// redundancy modeled elsewhere and are never flagged.
func (g *Graph) IsSPOF(name string) bool {
	return g.Role(name).IsCriticalTier() && g.PeerCount(name) <= 1
}

// BlastRadius estimates the impact of losing a device: the count of devices
// affected (downstream plus the device itself), the impacted service tags,
// and whether redundancy is available.
func (g *Graph) BlastRadius(name string) (affectedCount int, affectedServices []string, hasRedundancy bool) {
	if _, ok := g.devices[name]; !ok {
		return 1, []string{"unknown"}, false
	}

	downstream := g.Downstream(name, DefaultMaxDepth)
	affectedCount = len(downstream) + 1

	role := g.Role(name)
	if svc, ok := roleServices[role]; ok {
		affectedServices = []string{svc}
	} else {
		affectedServices = []string{"unknown"}
	}

	hasRedundancy = len(downstream) > 1 || role == RoleLeaf || role == RoleAccess || role == RoleServer
	return affectedCount, affectedServices, hasRedundancy
}

// FailureDomain returns the failure domain of a device, DomainUnknown for
// unknown devices or roles.
func (g *Graph) FailureDomain(name string) FailureDomain {
	if domain, ok := roleDomains[g.Role(name)]; ok {
		return domain
	}
	return DomainUnknown
}

// DevicesByRole returns the names of devices with the given role, excluding
// any names in skip. Order is map iteration order; callers needing a stable
// order must sort.
func (g *Graph) DevicesByRole(role Role, skip map[string]bool) []string {
	var out []string
	for name, d := range g.devices {
		if d.Role != role || skip[name] {
			continue
		}
		out = append(out, name)
	}
	return out
}
