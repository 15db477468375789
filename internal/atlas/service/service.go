package service

import (
	"context"
	"sort"

	"ospfatlas/internal/atlas/broadcast"
	"ospfatlas/internal/atlas/domain"
	"ospfatlas/internal/atlas/executor"
	"ospfatlas/internal/atlas/impact"
	"ospfatlas/internal/atlas/store"
	"ospfatlas/internal/atlas/topology"
	"ospfatlas/pkg/errors"
	"ospfatlas/pkg/logger"
)

// Service is the application facade the transport layer talks to. It owns
// nothing itself; every operation delegates to the bounded context that
// does.
type Service struct {
	executor    *executor.Executor
	jobs        store.JobStore
	inventory   store.Inventory
	broadcaster *broadcast.Broadcaster
	builder     *topology.Builder
	topologies  *store.TopologyStore
	analyzer    *impact.Analyzer
	logger      *logger.Logger
}

// New wires the service facade and installs the completion hook that turns
// a finished collection into a fresh topology baseline.
func New(exec *executor.Executor, jobs store.JobStore, inventory store.Inventory,
	broadcaster *broadcast.Broadcaster, builder *topology.Builder,
	topologies *store.TopologyStore, analyzer *impact.Analyzer, log *logger.Logger) *Service {
	s := &Service{
		executor:    exec,
		jobs:        jobs,
		inventory:   inventory,
		broadcaster: broadcaster,
		builder:     builder,
		topologies:  topologies,
		analyzer:    analyzer,
		logger:      log.WithField("component", "service"),
	}
	exec.SetCompletionHook(s.onJobComplete)
	return s
}

// onJobComplete rebuilds the baseline from whatever the finished job
// collected. Partial collections still produce a snapshot; devices without
// parseable output land in its excluded list.
func (s *Service) onJobComplete(jobID string, deviceIDs []string) {
	snapshot, err := s.builder.Build(context.Background(), deviceIDs)
	if err != nil {
		s.logger.Error("baseline rebuild after job failed", "jobId", jobID, "error", err)
		return
	}
	s.topologies.SetBaseline(snapshot)
	s.logger.Info("baseline rebuilt from job", "jobId", jobID, "nodes", len(snapshot.Nodes))
}

// SubmitJob starts a collection run.
func (s *Service) SubmitJob(ctx context.Context, req executor.SubmitRequest) (*domain.AutomationJob, error) {
	return s.executor.Submit(ctx, req)
}

// GetJob returns one job by id.
func (s *Service) GetJob(ctx context.Context, id string) (*domain.AutomationJob, error) {
	job, exists, err := s.jobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.ErrJobNotFound
	}
	return job, nil
}

// ListJobs returns jobs newest first. An empty status matches everything.
func (s *Service) ListJobs(ctx context.Context, status domain.JobStatus) ([]*domain.AutomationJob, error) {
	jobs, err := s.jobs.List(ctx)
	if err != nil {
		return nil, err
	}
	if status != "" {
		filtered := jobs[:0]
		for _, j := range jobs {
			if j.Status == status {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].StartTime.After(jobs[j].StartTime)
	})
	return jobs, nil
}

// StopJob requests a graceful stop of a running job.
func (s *Service) StopJob(ctx context.Context, id string) error {
	return s.executor.Stop(ctx, id)
}

// DeleteJob removes a terminal or pending job from the history.
func (s *Service) DeleteJob(ctx context.Context, id string) error {
	return s.jobs.Delete(ctx, id)
}

// StreamJob attaches to a job's progress stream: one full snapshot first,
// then deltas until the job ends or the reader detaches.
func (s *Service) StreamJob(ctx context.Context, id string) (<-chan broadcast.Event, func(), error) {
	return s.broadcaster.Subscribe(ctx, id)
}

// ListDevices exposes the inventory.
func (s *Service) ListDevices(ctx context.Context) ([]*domain.Device, error) {
	return s.inventory.List(ctx)
}

// BuildTopology builds a snapshot from the stored outputs of the given
// devices (all inventory devices when the list is empty) and installs it as
// the baseline.
func (s *Service) BuildTopology(ctx context.Context, deviceIDs []string) (*domain.TopologySnapshot, error) {
	if len(deviceIDs) == 0 {
		devices, err := s.inventory.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range devices {
			deviceIDs = append(deviceIDs, d.ID)
		}
	}
	if len(deviceIDs) == 0 {
		return nil, errors.ErrNoDevices
	}

	snapshot, err := s.builder.Build(ctx, deviceIDs)
	if err != nil {
		return nil, err
	}
	s.topologies.SetBaseline(snapshot)
	return snapshot, nil
}

// Baseline returns the current baseline snapshot.
func (s *Service) Baseline(ctx context.Context) (*domain.TopologySnapshot, error) {
	return s.topologies.Baseline()
}

// CreateDraft opens the single what-if draft as a baseline clone.
func (s *Service) CreateDraft(ctx context.Context, actor string) (*domain.DraftTopology, error) {
	return s.topologies.CreateDraft(actor)
}

// GetDraft returns the open draft.
func (s *Service) GetDraft(ctx context.Context) (*domain.DraftTopology, error) {
	return s.topologies.Draft()
}

// DeleteDraft discards the open draft.
func (s *Service) DeleteDraft(ctx context.Context) error {
	return s.topologies.DeleteDraft()
}

// UpdateDraftEdge sets one directed edge cost in the draft.
func (s *Service) UpdateDraftEdge(ctx context.Context, source, target, iface string, cost int) error {
	if cost < 1 {
		return errors.NewConfigError("draft", "cost", errors.New("edge cost must be at least 1"))
	}
	return s.topologies.UpdateDraftEdge(source, target, iface, cost)
}

// RunImpact diffs shortest paths between the baseline and the open draft.
func (s *Service) RunImpact(ctx context.Context) (*domain.ImpactReport, error) {
	baseline, err := s.topologies.Baseline()
	if err != nil {
		return nil, err
	}
	draft, err := s.topologies.Draft()
	if err != nil {
		return nil, err
	}
	return s.analyzer.Analyze(baseline, draft.Snapshot), nil
}
