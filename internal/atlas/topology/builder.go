package topology

import (
	"context"
	"sort"
	"strings"
	"time"

	"ospfatlas/internal/atlas/domain"
	"ospfatlas/internal/atlas/store"
	apperrors "ospfatlas/pkg/errors"
	"ospfatlas/pkg/logger"
)

// OutputReader is the slice of the output store the builder consumes.
type OutputReader interface {
	ListByDevice(deviceID string) ([]domain.CommandOutput, error)
	Read(path string) (string, error)
}

// Builder turns per-device OSPF link-state text into a topology snapshot.
// It is a stateless pure function over the collected outputs: building
// twice from identical outputs yields identical snapshots.
type Builder struct {
	outputs   OutputReader
	inventory store.Inventory
	logger    *logger.Logger
}

// NewBuilder creates a topology builder.
func NewBuilder(outputs OutputReader, inventory store.Inventory, log *logger.Logger) *Builder {
	return &Builder{
		outputs:   outputs,
		inventory: inventory,
		logger:    log.WithField("component", "topology-builder"),
	}
}

// parsedDevice holds one device's parsed records during assembly.
type parsedDevice struct {
	device    *domain.Device
	record    *routerRecord
	neighbors []neighborEntry
}

// edgeRef tracks a directed edge while pairing decides its status.
type edgeRef struct {
	edge domain.TopologyEdge
	cost int
}

// Build assembles a snapshot for the given devices. A device whose output
// cannot be parsed is excluded with the reason recorded; it never aborts
// the snapshot and never contributes defaulted costs. A device with zero
// advertised links still yields a node.
func (b *Builder) Build(ctx context.Context, deviceIDs []string) (*domain.TopologySnapshot, error) {
	parsed := make(map[string]*parsedDevice)
	var excluded []domain.ParseFailureRecord

	exclude := func(deviceID, reason string) {
		excluded = append(excluded, domain.ParseFailureRecord{DeviceID: deviceID, Reason: reason})
		b.logger.Warn("device excluded from snapshot", "device", deviceID, "reason", reason)
	}

	for _, id := range deviceIDs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		device, err := b.inventory.Get(ctx, id)
		if err != nil {
			exclude(id, "device not found in inventory")
			continue
		}

		outputs, err := b.outputs.ListByDevice(id)
		if err != nil {
			exclude(id, "output store unavailable: "+err.Error())
			continue
		}

		lsaOut, nbrOut := latestRecords(outputs)
		if lsaOut == nil {
			exclude(id, "no link-state output collected")
			continue
		}

		lsaText, err := b.outputs.Read(lsaOut.Path)
		if err != nil {
			exclude(id, "link-state output unreadable: "+err.Error())
			continue
		}

		record, err := parseRouterLSA(id, lsaText)
		if err != nil {
			var pe *apperrors.ParseError
			if apperrors.As(err, &pe) {
				exclude(id, pe.Reason)
			} else {
				exclude(id, err.Error())
			}
			continue
		}

		var neighbors []neighborEntry
		if nbrOut != nil {
			nbrText, err := b.outputs.Read(nbrOut.Path)
			if err != nil {
				exclude(id, "neighbor output unreadable: "+err.Error())
				continue
			}
			neighbors = parseNeighborTable(nbrText)
		}

		parsed[id] = &parsedDevice{device: device, record: record, neighbors: neighbors}
	}

	snapshot := assemble(parsed, excluded)
	b.logger.Info("topology snapshot built",
		"nodes", len(snapshot.Nodes),
		"edges", len(snapshot.Edges),
		"physicalLinks", len(snapshot.PhysicalLinks),
		"excluded", len(snapshot.Excluded))
	return snapshot, nil
}

// latestRecords picks the most recent link-state and neighbor outputs.
func latestRecords(outputs []domain.CommandOutput) (lsa, nbr *domain.CommandOutput) {
	for i := range outputs {
		out := &outputs[i]
		c := strings.ToLower(out.Command)
		switch {
		case strings.Contains(c, "database"):
			lsa = out
		case strings.Contains(c, "neighbor"):
			nbr = out
		}
	}
	return lsa, nbr
}

func assemble(parsed map[string]*parsedDevice, excluded []domain.ParseFailureRecord) *domain.TopologySnapshot {
	routerToDevice := make(map[string]string, len(parsed))
	for id, pd := range parsed {
		routerToDevice[pd.record.RouterID] = id
	}

	deviceIDs := make([]string, 0, len(parsed))
	for id := range parsed {
		deviceIDs = append(deviceIDs, id)
	}
	sort.Strings(deviceIDs)

	var nodes []domain.TopologyNode
	// edgesByPair[src][dst] holds src's directed edges toward dst, ordered
	// by the advertising side's interface address for stable pairing of
	// parallel adjacencies.
	edgesByPair := make(map[string]map[string][]*edgeRef)

	for _, id := range deviceIDs {
		pd := parsed[id]
		nodes = append(nodes, domain.TopologyNode{
			ID:      pd.device.ID,
			Name:    pd.device.Name,
			Country: pd.device.Country,
			Role:    pd.device.Role,
		})

		links := make([]lsaLink, len(pd.record.Links))
		copy(links, pd.record.Links)
		sort.SliceStable(links, func(i, j int) bool {
			if links[i].NeighborID != links[j].NeighborID {
				return links[i].NeighborID < links[j].NeighborID
			}
			return links[i].LocalAddr < links[j].LocalAddr
		})

		// adjacency entries grouped per neighbor, ordered by the remote
		// interface address
		adj := make(map[string][]neighborEntry)
		for _, e := range pd.neighbors {
			adj[e.NeighborID] = append(adj[e.NeighborID], e)
		}
		for nid := range adj {
			entries := adj[nid]
			sort.SliceStable(entries, func(i, j int) bool { return entries[i].Address < entries[j].Address })
			adj[nid] = entries
		}

		seen := make(map[string]int)
		for _, link := range links {
			ordinal := seen[link.NeighborID]
			seen[link.NeighborID]++

			targetID := link.NeighborID
			if mapped, ok := routerToDevice[link.NeighborID]; ok {
				targetID = mapped
			}

			iface := link.LocalAddr
			if entries := adj[link.NeighborID]; ordinal < len(entries) {
				iface = entries[ordinal].Interface
			}

			ref := &edgeRef{
				edge: domain.TopologyEdge{
					Source:          id,
					Target:          targetID,
					SourceInterface: iface,
					Cost:            link.Cost,
					Status:          domain.EdgeUnpaired,
				},
				cost: link.Cost,
			}
			if edgesByPair[id] == nil {
				edgesByPair[id] = make(map[string][]*edgeRef)
			}
			edgesByPair[id][targetID] = append(edgesByPair[id][targetID], ref)
		}
	}

	// Pair opposing edges into physical links. A link exists only when
	// both directions were observed and both adjacency tables confirm the
	// neighbor; an unconfirmed direction stays a reported, unpaired edge.
	var physicalLinks []domain.PhysicalLink
	for _, a := range deviceIDs {
		for b, forward := range edgesByPair[a] {
			if b <= a {
				continue // handle each unordered pair once, from the lower id
			}
			reverse := edgesByPair[b][a]
			if len(reverse) == 0 {
				continue
			}

			aConfirms := adjacencyCount(parsed, a, b, routerToDevice)
			bConfirms := adjacencyCount(parsed, b, a, routerToDevice)

			n := len(forward)
			if len(reverse) < n {
				n = len(reverse)
			}
			if aConfirms < n {
				n = aConfirms
			}
			if bConfirms < n {
				n = bConfirms
			}

			for i := 0; i < n; i++ {
				fwd, rev := forward[i], reverse[i]
				fwd.edge.Status = domain.EdgeConfirmed
				rev.edge.Status = domain.EdgeConfirmed
				physicalLinks = append(physicalLinks, domain.PhysicalLink{
					NodeA:        a,
					NodeB:        b,
					InterfaceA:   fwd.edge.SourceInterface,
					InterfaceB:   rev.edge.SourceInterface,
					CostAToB:     fwd.cost,
					CostBToA:     rev.cost,
					IsAsymmetric: fwd.cost != rev.cost,
				})
			}
		}
	}

	var edges []domain.TopologyEdge
	for _, src := range deviceIDs {
		for _, refs := range edgesByPair[src] {
			for _, ref := range refs {
				edges = append(edges, ref.edge)
			}
		}
	}

	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		if edges[i].Target != edges[j].Target {
			return edges[i].Target < edges[j].Target
		}
		return edges[i].SourceInterface < edges[j].SourceInterface
	})
	sort.SliceStable(physicalLinks, func(i, j int) bool {
		if physicalLinks[i].NodeA != physicalLinks[j].NodeA {
			return physicalLinks[i].NodeA < physicalLinks[j].NodeA
		}
		if physicalLinks[i].NodeB != physicalLinks[j].NodeB {
			return physicalLinks[i].NodeB < physicalLinks[j].NodeB
		}
		return physicalLinks[i].InterfaceA < physicalLinks[j].InterfaceA
	})
	sort.SliceStable(excluded, func(i, j int) bool {
		return excluded[i].DeviceID < excluded[j].DeviceID
	})

	return &domain.TopologySnapshot{
		Nodes:         nodes,
		Edges:         edges,
		PhysicalLinks: physicalLinks,
		Excluded:      excluded,
		GeneratedAt:   time.Now(),
	}
}

// adjacencyCount returns how many adjacency entries device id reports for
// the peer device.
func adjacencyCount(parsed map[string]*parsedDevice, id, peer string, routerToDevice map[string]string) int {
	pd, ok := parsed[id]
	if !ok {
		return 0
	}
	count := 0
	for _, e := range pd.neighbors {
		target := e.NeighborID
		if mapped, ok := routerToDevice[e.NeighborID]; ok {
			target = mapped
		}
		if target == peer {
			count++
		}
	}
	return count
}
