package broadcast

import (
	"context"
	"time"

	"ospfatlas/internal/atlas/domain"
	"ospfatlas/internal/atlas/pubsub"
	apperrors "ospfatlas/pkg/errors"
	"ospfatlas/pkg/logger"
)

// EventType tags what part of the job a progress event carries.
type EventType string

const (
	// EventSnapshot carries the full job state. Sent once to every new
	// subscriber before any delta.
	EventSnapshot EventType = "snapshot"
	// EventDevice carries one device's updated progress plus the country
	// aggregates recomputed in the same critical section.
	EventDevice EventType = "device"
	// EventStatus carries a job-level status transition.
	EventStatus EventType = "status"
)

// Event is one progress update pushed to subscribers of a job id.
type Event struct {
	Type      EventType                       `json:"type"`
	JobID     string                          `json:"job_id"`
	Status    domain.JobStatus                `json:"status"`
	Percent   float64                         `json:"percent"`
	Job       *domain.AutomationJob           `json:"job,omitempty"`
	Device    *domain.DeviceProgress          `json:"device,omitempty"`
	Countries map[string]*domain.CountryStats `json:"countries,omitempty"`
	At        time.Time                       `json:"at"`
}

// JobReader is the slice of the job store the broadcaster needs to serve
// the initial snapshot to late subscribers.
type JobReader interface {
	Get(ctx context.Context, id string) (*domain.AutomationJob, bool, error)
}

// Broadcaster fans job progress out to any number of live subscribers.
// Single writer (the batch executor) per job id, multiple readers. Readers
// cannot mutate job state; the channel is one-directional.
type Broadcaster struct {
	bus    pubsub.PubSub[Event]
	jobs   JobReader
	logger *logger.Logger
}

// New creates a broadcaster over the given job reader.
func New(jobs JobReader, log *logger.Logger, opts ...pubsub.Option[Event]) *Broadcaster {
	return &Broadcaster{
		bus:    pubsub.NewPubSub[Event](opts...),
		jobs:   jobs,
		logger: log.WithField("component", "progress-broadcaster"),
	}
}

// PublishDevice pushes one device's progress delta for a job.
func (b *Broadcaster) PublishDevice(ctx context.Context, job *domain.AutomationJob, device *domain.DeviceProgress) {
	ev := Event{
		Type:      EventDevice,
		JobID:     job.ID,
		Status:    job.Status,
		Percent:   job.Percent,
		Device:    device,
		Countries: job.CountryStats,
		At:        time.Now(),
	}
	if err := b.bus.Publish(ctx, job.ID, ev); err != nil {
		b.logger.Warn("dropping device progress event", "jobId", job.ID, "error", err)
	}
}

// PublishStatus pushes a job-level status transition.
func (b *Broadcaster) PublishStatus(ctx context.Context, job *domain.AutomationJob) {
	ev := Event{
		Type:    EventStatus,
		JobID:   job.ID,
		Status:  job.Status,
		Percent: job.Percent,
		At:      time.Now(),
	}
	if err := b.bus.Publish(ctx, job.ID, ev); err != nil {
		b.logger.Warn("dropping status event", "jobId", job.ID, "error", err)
	}
}

// Subscribe attaches a reader to a job's progress stream. The first event
// on the returned channel is always a full snapshot of the job as it stood
// at subscription time; incremental updates follow. Cancel the context or
// call the returned func to detach; a disconnected reader is pruned without
// affecting the executor.
func (b *Broadcaster) Subscribe(ctx context.Context, jobID string) (<-chan Event, func(), error) {
	job, exists, err := b.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, apperrors.ErrJobNotFound
	}

	deltas, unsubscribe, err := b.bus.Subscribe(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan Event, 1)
	out <- Event{
		Type:    EventSnapshot,
		JobID:   job.ID,
		Status:  job.Status,
		Percent: job.Percent,
		Job:     job,
		At:      time.Now(),
	}

	go func() {
		defer close(out)
		for msg := range deltas {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, unsubscribe, nil
}

// Close shuts the underlying bus down, detaching all subscribers.
func (b *Broadcaster) Close() error {
	return b.bus.Close()
}
