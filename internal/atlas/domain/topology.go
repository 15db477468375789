package domain

import "time"

// TopologyNode is one router that contributed at least one successfully
// parsed OSPF record.
type TopologyNode struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Role    string `json:"role"`
}

// EdgeStatus marks whether the reverse direction of a directed edge was
// confirmed by the far end's adjacency record.
type EdgeStatus string

const (
	// EdgeConfirmed means both endpoints confirm each other as neighbors on
	// the stated interfaces; the edge participates in a PhysicalLink.
	EdgeConfirmed EdgeStatus = "confirmed"
	// EdgeUnpaired means the reverse direction was not observed. The edge is
	// reported, not discarded, but excluded from physical_links.
	EdgeUnpaired EdgeStatus = "unpaired"
)

// TopologyEdge is one directed, weighted adjacency advertised by Source.
type TopologyEdge struct {
	Source          string     `json:"source"`
	Target          string     `json:"target"`
	SourceInterface string     `json:"source_interface"`
	Cost            int        `json:"cost"`
	Status          EdgeStatus `json:"status"`
}

// PhysicalLink is the paired view of two opposing TopologyEdges. It exists
// iff both directional edges were observed and confirmed. NodeA always
// orders before NodeB so direction fields read consistently.
type PhysicalLink struct {
	NodeA        string `json:"node_a"`
	NodeB        string `json:"node_b"`
	InterfaceA   string `json:"interface_a"`
	InterfaceB   string `json:"interface_b"`
	CostAToB     int    `json:"cost_a_to_b"`
	CostBToA     int    `json:"cost_b_to_a"`
	IsAsymmetric bool   `json:"is_asymmetric"`
}

// ParseFailureRecord names a device excluded from a snapshot and why.
type ParseFailureRecord struct {
	DeviceID string `json:"device_id"`
	Reason   string `json:"reason"`
}

// TopologySnapshot is an immutable view of the network at one point in
// time. A baseline snapshot comes from live collected data; a draft is a
// baseline clone mutated one edge cost at a time for what-if analysis.
type TopologySnapshot struct {
	Nodes         []TopologyNode       `json:"nodes"`
	Edges         []TopologyEdge       `json:"edges"`
	PhysicalLinks []PhysicalLink       `json:"physical_links"`
	Excluded      []ParseFailureRecord `json:"excluded,omitempty"`
	GeneratedAt   time.Time            `json:"generated_at"`
}

// Clone creates a deep copy, used when opening a draft from the baseline.
func (s *TopologySnapshot) Clone() *TopologySnapshot {
	if s == nil {
		return nil
	}
	c := &TopologySnapshot{
		Nodes:         make([]TopologyNode, len(s.Nodes)),
		Edges:         make([]TopologyEdge, len(s.Edges)),
		PhysicalLinks: make([]PhysicalLink, len(s.PhysicalLinks)),
		Excluded:      make([]ParseFailureRecord, len(s.Excluded)),
		GeneratedAt:   s.GeneratedAt,
	}
	copy(c.Nodes, s.Nodes)
	copy(c.Edges, s.Edges)
	copy(c.PhysicalLinks, s.PhysicalLinks)
	copy(c.Excluded, s.Excluded)
	return c
}

// NodeCountry returns the country of a node, or "" if unknown.
func (s *TopologySnapshot) NodeCountry(id string) string {
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			return s.Nodes[i].Country
		}
	}
	return ""
}

// BlastRadius is the qualitative impact bucket of a proposed change.
type BlastRadius string

const (
	BlastNone   BlastRadius = "none"
	BlastLow    BlastRadius = "low"
	BlastMedium BlastRadius = "medium"
	BlastHigh   BlastRadius = "high"
)

// PathChange describes one ordered node pair whose best path differs
// between baseline and draft.
type PathChange struct {
	Source           string   `json:"source"`
	Target           string   `json:"target"`
	BaselineCost     int      `json:"baseline_cost"`
	DraftCost        int      `json:"draft_cost"`
	BaselinePath     []string `json:"baseline_path"`
	DraftPath        []string `json:"draft_path"`
	NewlyUnreachable bool     `json:"newly_unreachable"`
}

// ImpactReport is the result of diffing shortest paths between the current
// baseline and the current draft.
type ImpactReport struct {
	GeneratedAt       time.Time    `json:"generated_at"`
	ComparablePairs   int          `json:"comparable_pairs"`
	ChangedPairs      []PathChange `json:"changed_pairs"`
	ImpactedNodes     []string     `json:"impacted_nodes"`
	ImpactedCountries []string     `json:"impacted_countries"`
	BlastRadius       BlastRadius  `json:"blast_radius"`
}

// DraftTopology wraps the single mutable working copy of the baseline.
// Exactly one draft may be open at a time.
type DraftTopology struct {
	ID        string            `json:"id"`
	Actor     string            `json:"actor"`
	CreatedAt time.Time         `json:"created_at"`
	Snapshot  *TopologySnapshot `json:"snapshot"`
}
