package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"ospfatlas/internal/atlas/domain"
	"ospfatlas/pkg/errors"
	"ospfatlas/pkg/logger"
)

// TopologyStore holds the current baseline snapshot and the single open
// draft. A new baseline supersedes any open draft.
type TopologyStore struct {
	baseline *domain.TopologySnapshot
	draft    *domain.DraftTopology
	mutex    sync.RWMutex
	logger   *logger.Logger
}

// NewTopologyStore creates an empty topology store.
func NewTopologyStore(log *logger.Logger) *TopologyStore {
	return &TopologyStore{
		logger: log.WithField("component", "topology-store"),
	}
}

// SetBaseline installs a new baseline snapshot. Any open draft is
// discarded: it was cloned from a snapshot that no longer exists.
func (s *TopologyStore) SetBaseline(snapshot *domain.TopologySnapshot) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.baseline = snapshot
	if s.draft != nil {
		s.logger.Info("draft superseded by new baseline", "draftId", s.draft.ID)
		s.draft = nil
	}
}

// Baseline returns a copy of the current baseline.
func (s *TopologyStore) Baseline() (*domain.TopologySnapshot, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.baseline == nil {
		return nil, errors.ErrNoBaseline
	}
	return s.baseline.Clone(), nil
}

// CreateDraft opens the draft as a clone of the baseline. Exactly one
// draft may be open at a time.
func (s *TopologyStore) CreateDraft(actor string) (*domain.DraftTopology, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.baseline == nil {
		return nil, errors.ErrNoBaseline
	}
	if s.draft != nil {
		return nil, errors.ErrDraftExists
	}
	s.draft = &domain.DraftTopology{
		ID:        uuid.NewString(),
		Actor:     actor,
		CreatedAt: time.Now(),
		Snapshot:  s.baseline.Clone(),
	}
	s.logger.Info("draft created", "draftId", s.draft.ID, "actor", actor)
	return cloneDraft(s.draft), nil
}

// Draft returns a copy of the open draft.
func (s *TopologyStore) Draft() (*domain.DraftTopology, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.draft == nil {
		return nil, errors.ErrDraftNotFound
	}
	return cloneDraft(s.draft), nil
}

// DeleteDraft discards the open draft.
func (s *TopologyStore) DeleteDraft() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.draft == nil {
		return errors.ErrDraftNotFound
	}
	s.logger.Info("draft deleted", "draftId", s.draft.ID)
	s.draft = nil
	return nil
}

// UpdateDraftEdge sets the cost of one directed edge in the draft,
// identified by source, target and source interface (interface may be
// empty when only one edge connects the pair). The paired physical link's
// directional cost and asymmetry flag are updated in the same critical
// section.
func (s *TopologyStore) UpdateDraftEdge(source, target, iface string, cost int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.draft == nil {
		return errors.ErrDraftNotFound
	}

	snap := s.draft.Snapshot
	var edge *domain.TopologyEdge
	for i := range snap.Edges {
		e := &snap.Edges[i]
		if e.Source != source || e.Target != target {
			continue
		}
		if iface != "" && e.SourceInterface != iface {
			continue
		}
		if edge != nil {
			// Ambiguous without an interface: parallel adjacencies exist.
			return errors.ErrEdgeNotFound
		}
		edge = e
	}
	if edge == nil {
		return errors.ErrEdgeNotFound
	}

	edge.Cost = cost

	for i := range snap.PhysicalLinks {
		pl := &snap.PhysicalLinks[i]
		switch {
		case pl.NodeA == source && pl.NodeB == target && pl.InterfaceA == edge.SourceInterface:
			pl.CostAToB = cost
		case pl.NodeB == source && pl.NodeA == target && pl.InterfaceB == edge.SourceInterface:
			pl.CostBToA = cost
		default:
			continue
		}
		pl.IsAsymmetric = pl.CostAToB != pl.CostBToA
	}

	s.logger.Debug("draft edge updated", "source", source, "target", target, "interface", edge.SourceInterface, "cost", cost)
	return nil
}

// Reset clears baseline and draft. Scoped to this store only.
func (s *TopologyStore) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.baseline = nil
	s.draft = nil
	s.logger.Info("topology store reset")
}

func cloneDraft(d *domain.DraftTopology) *domain.DraftTopology {
	return &domain.DraftTopology{
		ID:        d.ID,
		Actor:     d.Actor,
		CreatedAt: d.CreatedAt,
		Snapshot:  d.Snapshot.Clone(),
	}
}
