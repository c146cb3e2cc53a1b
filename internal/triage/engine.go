// Package triage localizes a correlated anomaly on the network topology and
// scores its operational impact. Scoring is a transparent, additive,
// table-driven formula: every threshold is a hard contract so results are
// auditable and reproducible.
package triage

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"nettriage/internal/schema"
	"nettriage/internal/topology"
)

// Location is a candidate failure site.
type Location struct {
	Device     string        `json:"device"`
	Interface  string        `json:"interface,omitempty"`
	Peer       string        `json:"peer,omitempty"`
	Role       topology.Role `json:"role"`
	Confidence float64       `json:"confidence"`
}

// BlastRadius is the impact assessment for a location.
type BlastRadius struct {
	AffectedDevices   int                    `json:"affected_devices"`
	AffectedServices  []string               `json:"affected_services"`
	DownstreamDevices []string               `json:"downstream_devices"`
	Redundancy        bool                   `json:"redundancy_available"`
	SPOF              bool                   `json:"spof"`
	FailureDomain     topology.FailureDomain `json:"failure_domain"`
	ImpactScore       float64                `json:"impact_score"`
}

// Criticality is the 0-10 additive score with its factor breakdown.
type Criticality struct {
	Score           float64         `json:"score"`
	Priority        schema.Priority `json:"priority"`
	Factors         []string        `json:"factors"`
	SLABreachLikely bool            `json:"sla_breach_likely"`
	BreachMinutes   int             `json:"estimated_minutes_to_breach,omitempty"`
}

// Result is one triage analysis: primary location, ranked alternates,
// blast radius, criticality and display severity. Created fresh per call,
// never mutated.
type Result struct {
	Location    Location        `json:"location"`
	Alternates  []Location      `json:"alternates"`
	BlastRadius BlastRadius     `json:"blast_radius"`
	Criticality Criticality     `json:"criticality"`
	Severity    schema.Severity `json:"severity"`
}

// Context carries correlator-supplied impact hints into the analysis.
type Context struct {
	AffectedDevices  []string
	AffectedServices []string
}

// roleCriticality is the fixed role criticality table.
var roleCriticality = map[topology.Role]float64{
	topology.RoleEdge:           4.0,
	topology.RoleSpine:          4.0,
	topology.RoleRouteReflector: 4.0,
	topology.RoleToR:            3.5,
	topology.RoleLeaf:           2.5,
	topology.RoleAccess:         1.5,
	topology.RoleServer:         1.0,
	topology.RoleUnknown:        0.5,
}

// maxAlternates bounds the ranked location list so operators get a short,
// scannable "it might also be one of these".
const maxAlternates = 5

// Engine analyzes correlated events against the topology graph. Stateless
// apart from the read-only graph reference; safe for concurrent use.
type Engine struct {
	graph    *topology.Graph
	maxDepth int
}

// NewEngine creates a triage engine. A nil graph degrades to an empty one:
// every analysis still produces a result, just with unknown roles and low
// priority.
func NewEngine(graph *topology.Graph) *Engine {
	return NewEngineDepth(graph, topology.DefaultMaxDepth)
}

// NewEngineDepth is NewEngine with an explicit downstream traversal depth.
func NewEngineDepth(graph *topology.Graph, maxDepth int) *Engine {
	if graph == nil {
		graph = topology.EmptyGraph()
	}
	if maxDepth < 1 {
		maxDepth = topology.DefaultMaxDepth
	}
	return &Engine{graph: graph, maxDepth: maxDepth}
}

// Analyze produces a TriageResult for a detected location and correlator
// context. It never fails: unresolvable data collapses to sentinel values.
func (e *Engine) Analyze(loc Location, corrCtx *Context) *Result {
	primary := e.locate(loc)
	blast := e.blastRadius(primary.Device, corrCtx)
	crit := e.criticality(primary.Role, blast)

	return &Result{
		Location:    primary,
		Alternates:  e.rankAlternates(primary),
		BlastRadius: blast,
		Criticality: crit,
		Severity:    schema.SeverityFromScore(crit.Score),
	}
}

// locate resolves the detected location's role via the graph. The device
// name is preserved as given; only a fully absent name becomes "unknown".
func (e *Engine) locate(loc Location) Location {
	if loc.Device == "" {
		loc.Device = "unknown"
	}
	loc.Role = e.graph.Role(loc.Device)
	if loc.Confidence <= 0 {
		loc.Confidence = 0.5
	}
	return loc
}

// rankAlternates builds the ranked candidate list: the primary first, then
// up to 4 direct peers at 0.6x confidence, then same-role devices at 0.4x
// until the list holds maxAlternates entries.
func (e *Engine) rankAlternates(primary Location) []Location {
	ranked := []Location{primary}
	skip := map[string]bool{primary.Device: true}

	peers := make([]string, 0, e.graph.PeerCount(primary.Device))
	for peer := range e.graph.Peers(primary.Device) {
		peers = append(peers, peer)
	}
	sort.Strings(peers)

	for _, peer := range peers {
		if len(ranked) >= maxAlternates {
			break
		}
		if skip[peer] {
			continue
		}
		skip[peer] = true
		ranked = append(ranked, Location{
			Device:     peer,
			Role:       e.graph.Role(peer),
			Confidence: primary.Confidence * 0.6,
		})
	}

	sameRole := e.graph.DevicesByRole(primary.Role, skip)
	sort.Strings(sameRole)
	for _, name := range sameRole {
		if len(ranked) >= maxAlternates {
			break
		}
		ranked = append(ranked, Location{
			Device:     name,
			Role:       primary.Role,
			Confidence: primary.Confidence * 0.4,
		})
	}

	return ranked
}

// blastRadius combines graph impact numbers with correlator-supplied ones.
// Device counts take the max of the two rather than the sum to avoid double
// counting overlapping sets.
func (e *Engine) blastRadius(device string, corrCtx *Context) BlastRadius {
	count, services, redundancy := e.graph.BlastRadius(device)
	downstream := e.graph.Downstream(device, e.maxDepth)
	spof := e.graph.IsSPOF(device)

	if corrCtx != nil {
		if len(corrCtx.AffectedDevices) > count {
			count = len(corrCtx.AffectedDevices)
		}
		services = unionStrings(services, corrCtx.AffectedServices)
	}

	impact := float64(count) * 0.5
	if spof {
		impact += 3.0
	}

	return BlastRadius{
		AffectedDevices:   count,
		AffectedServices:  services,
		DownstreamDevices: downstream,
		Redundancy:        redundancy,
		SPOF:              spof,
		FailureDomain:     e.graph.FailureDomain(device),
		ImpactScore:       math.Min(10, impact),
	}
}

// criticality sums four independently capped factors: role criticality,
// blast-radius tier, SPOF, and service impact. Sum capped at 10.
func (e *Engine) criticality(role topology.Role, blast BlastRadius) Criticality {
	var factors []string

	roleScore := roleCriticality[role]
	factors = append(factors, fmt.Sprintf("role %s: +%.1f", role, roleScore))

	var blastScore float64
	switch {
	case blast.AffectedDevices > 15:
		blastScore = 3.0
	case blast.AffectedDevices > 10:
		blastScore = 2.5
	case blast.AffectedDevices > 5:
		blastScore = 2.0
	default:
		blastScore = 1.0
	}
	factors = append(factors, fmt.Sprintf("blast radius %d devices: +%.1f", blast.AffectedDevices, blastScore))

	var spofScore float64
	if blast.SPOF {
		spofScore = 2.0
		factors = append(factors, "single point of failure: +2.0")
	}

	serviceScore := 0.5
	for _, svc := range blast.AffectedServices {
		if strings.Contains(strings.ToLower(svc), "connectivity") {
			serviceScore = 1.0
			break
		}
	}
	factors = append(factors, fmt.Sprintf("service impact: +%.1f", serviceScore))

	score := math.Min(10, roleScore+blastScore+spofScore+serviceScore)
	priority := schema.PriorityFromScore(score)

	crit := Criticality{
		Score:    score,
		Priority: priority,
		Factors:  factors,
	}
	switch priority {
	case schema.PriorityP1:
		crit.SLABreachLikely = true
		crit.BreachMinutes = 15
	case schema.PriorityP2:
		crit.SLABreachLikely = true
		crit.BreachMinutes = 60
	}
	return crit
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
