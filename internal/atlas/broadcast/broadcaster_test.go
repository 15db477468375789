package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ospfatlas/internal/atlas/domain"
	apperrors "ospfatlas/pkg/errors"
	"ospfatlas/pkg/logger"
)

type fakeJobs struct {
	jobs map[string]*domain.AutomationJob
}

func (f *fakeJobs) Get(ctx context.Context, id string) (*domain.AutomationJob, bool, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, false, nil
	}
	return job.DeepCopy(), true, nil
}

func runningJob(id string) *domain.AutomationJob {
	return &domain.AutomationJob{
		ID:     id,
		Status: domain.StatusRunning,
		DeviceProgress: map[string]*domain.DeviceProgress{
			"r1": {DeviceID: "r1", Status: domain.DeviceRunning},
		},
	}
}

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "stream closed unexpectedly")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestSubscribeUnknownJob(t *testing.T) {
	b := New(&fakeJobs{jobs: map[string]*domain.AutomationJob{}}, logger.New())
	defer b.Close()

	_, _, err := b.Subscribe(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrJobNotFound)
}

func TestSubscribeSnapshotFirst(t *testing.T) {
	job := runningJob("j1")
	b := New(&fakeJobs{jobs: map[string]*domain.AutomationJob{"j1": job}}, logger.New())
	defer b.Close()

	events, unsubscribe, err := b.Subscribe(context.Background(), "j1")
	require.NoError(t, err)
	defer unsubscribe()

	first := receive(t, events)
	assert.Equal(t, EventSnapshot, first.Type, "the first event is always the full snapshot")
	require.NotNil(t, first.Job)
	assert.Equal(t, "j1", first.Job.ID)

	job.DeviceProgress["r1"].Status = domain.DeviceCompleted
	b.PublishDevice(context.Background(), job, job.DeviceProgress["r1"])

	second := receive(t, events)
	assert.Equal(t, EventDevice, second.Type)
	require.NotNil(t, second.Device)
	assert.Equal(t, domain.DeviceCompleted, second.Device.Status)
}

func TestStatusEvents(t *testing.T) {
	job := runningJob("j1")
	b := New(&fakeJobs{jobs: map[string]*domain.AutomationJob{"j1": job}}, logger.New())
	defer b.Close()

	events, unsubscribe, err := b.Subscribe(context.Background(), "j1")
	require.NoError(t, err)
	defer unsubscribe()
	receive(t, events) // snapshot

	job.Status = domain.StatusStopping
	b.PublishStatus(context.Background(), job)

	ev := receive(t, events)
	assert.Equal(t, EventStatus, ev.Type)
	assert.Equal(t, domain.StatusStopping, ev.Status)
}

func TestMultipleSubscribers(t *testing.T) {
	job := runningJob("j1")
	b := New(&fakeJobs{jobs: map[string]*domain.AutomationJob{"j1": job}}, logger.New())
	defer b.Close()

	first, stopFirst, err := b.Subscribe(context.Background(), "j1")
	require.NoError(t, err)
	defer stopFirst()
	second, stopSecond, err := b.Subscribe(context.Background(), "j1")
	require.NoError(t, err)
	defer stopSecond()

	receive(t, first)
	receive(t, second)

	b.PublishDevice(context.Background(), job, job.DeviceProgress["r1"])
	assert.Equal(t, EventDevice, receive(t, first).Type)
	assert.Equal(t, EventDevice, receive(t, second).Type)
}

func TestUnsubscribedReaderDoesNotBlockPublisher(t *testing.T) {
	job := runningJob("j1")
	b := New(&fakeJobs{jobs: map[string]*domain.AutomationJob{"j1": job}}, logger.New())
	defer b.Close()

	_, unsubscribe, err := b.Subscribe(context.Background(), "j1")
	require.NoError(t, err)
	unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.PublishDevice(context.Background(), job, job.DeviceProgress["r1"])
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked by a detached reader")
	}
}
