package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ospfatlas/internal/atlas/broadcast"
	"ospfatlas/internal/atlas/domain"
	"ospfatlas/internal/atlas/session"
	"ospfatlas/internal/atlas/store"
	"ospfatlas/pkg/config"
	"ospfatlas/pkg/errors"
	"ospfatlas/pkg/logger"
)

type harness struct {
	exec    *Executor
	jobs    store.JobStore
	outputs store.OutputStore
}

// newHarness builds an executor against unreachable devices with synthetic
// fallback enabled, so runs are fast and deterministic.
func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Session.AllowSynthetic = true
	cfg.Session.ConnectTimeout = 200 * time.Millisecond
	cfg.Session.ConnectRetries = 1
	cfg.Session.RetryBackoff = 10 * time.Millisecond
	cfg.Executor.DefaultDevicesPerHour = 3600 * 1000 // effectively no gate
	if mutate != nil {
		mutate(cfg)
	}

	log := logger.New()
	inventory := store.NewMemoryInventory([]*domain.Device{
		{ID: "r1", Name: "r1", Host: "127.0.0.1", Port: 1, Country: "FR", Platform: "cisco-ios", CredentialsRef: "lab"},
		{ID: "r2", Name: "r2", Host: "127.0.0.1", Port: 1, Country: "DE", Platform: "cisco-ios", CredentialsRef: "lab"},
		{ID: "r3", Name: "r3", Host: "127.0.0.1", Port: 1, Country: "DE", Platform: "cisco-ios", CredentialsRef: "lab"},
	}, log)

	jobs := store.NewMemoryJobStore(log)
	outputs, err := store.NewFileOutputStore(t.TempDir(), log)
	require.NoError(t, err)

	sessions := session.NewManager(cfg, session.StaticCredentials{"lab": {Username: "ops", Password: "pw"}}, log)
	broadcaster := broadcast.New(jobs, log)
	t.Cleanup(func() { _ = broadcaster.Close() })

	return &harness{
		exec:    New(cfg, sessions, inventory, jobs, outputs, broadcaster, log),
		jobs:    jobs,
		outputs: outputs,
	}
}

func (h *harness) waitTerminal(t *testing.T, jobID string) *domain.AutomationJob {
	t.Helper()
	var job *domain.AutomationJob
	require.Eventually(t, func() bool {
		j, exists, err := h.jobs.Get(context.Background(), jobID)
		if err != nil || !exists {
			return false
		}
		job = j
		return j.IsTerminal()
	}, 15*time.Second, 20*time.Millisecond, "job never reached a terminal state")
	return job
}

func TestSubmitValidation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.exec.Submit(ctx, SubmitRequest{})
	assert.ErrorIs(t, err, errors.ErrNoDevices)

	_, err = h.exec.Submit(ctx, SubmitRequest{DeviceIDs: []string{"ghost"}})
	assert.ErrorIs(t, err, errors.ErrDeviceNotFound)

	_, err = h.exec.Submit(ctx, SubmitRequest{DeviceIDs: []string{"r1", "r1"}})
	assert.True(t, errors.IsConfiguration(err), "duplicate device ids are rejected")
}

func TestJobRunsToCompletion(t *testing.T) {
	h := newHarness(t, nil)

	job, err := h.exec.Submit(context.Background(), SubmitRequest{
		Actor:     "tester",
		DeviceIDs: []string{"r1", "r2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, job.BatchSize, "defaults apply when unset")

	final := h.waitTerminal(t, job.ID)
	assert.Equal(t, domain.StatusCompleted, final.Status)
	assert.NotNil(t, final.EndTime)
	assert.InDelta(t, 100.0, final.Percent, 0.01)
	assert.Empty(t, final.Errors)

	for _, id := range []string{"r1", "r2"} {
		dp := final.DeviceProgress[id]
		require.NotNil(t, dp)
		assert.Equal(t, domain.DeviceCompleted, dp.Status)
		assert.Equal(t, domain.ModeSynthetic, dp.Mode, "unreachable lab devices fall back to synthetic")
		require.Len(t, dp.Commands, 3, "dialect defaults: paging disable plus two reads")
		for _, cp := range dp.Commands {
			assert.Equal(t, domain.CommandCompleted, cp.Status)
		}

		outputs, err := h.outputs.ListByDevice(id)
		require.NoError(t, err)
		assert.Len(t, outputs, 3)
		for _, out := range outputs {
			assert.Equal(t, domain.ModeSynthetic, out.Mode)
		}
	}

	require.Contains(t, final.CountryStats, "FR")
	assert.Equal(t, 1, final.CountryStats["FR"].DevicesCompleted)
}

func TestRateGateSpacesDeviceStarts(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		// one device every 150ms
		cfg.Executor.DefaultDevicesPerHour = int(time.Hour / (150 * time.Millisecond))
	})

	start := time.Now()
	job, err := h.exec.Submit(context.Background(), SubmitRequest{DeviceIDs: []string{"r1", "r2", "r3"}})
	require.NoError(t, err)

	final := h.waitTerminal(t, job.ID)
	assert.Equal(t, domain.StatusCompleted, final.Status)
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond,
		"the third device must wait out two rate intervals")
}

func TestStopLeavesUnstartedDevicesPending(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Executor.DefaultDevicesPerHour = 1 // second device would wait an hour
	})
	ctx := context.Background()

	job, err := h.exec.Submit(ctx, SubmitRequest{DeviceIDs: []string{"r1", "r2"}})
	require.NoError(t, err)

	// Let the first device finish; the second is parked at the rate gate.
	require.Eventually(t, func() bool {
		j, exists, err := h.jobs.Get(ctx, job.ID)
		return err == nil && exists && j.DeviceProgress["r1"].Status.IsTerminal()
	}, 15*time.Second, 20*time.Millisecond)

	require.NoError(t, h.exec.Stop(ctx, job.ID))

	final := h.waitTerminal(t, job.ID)
	assert.Equal(t, domain.StatusStopped, final.Status)
	assert.Equal(t, domain.DeviceCompleted, final.DeviceProgress["r1"].Status)
	assert.Equal(t, domain.DevicePending, final.DeviceProgress["r2"].Status,
		"devices never started stay pending after a stop")
}

func TestStopNonRunningJob(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, h.exec.Stop(ctx, "missing"), errors.ErrJobNotFound)

	job, err := h.exec.Submit(ctx, SubmitRequest{DeviceIDs: []string{"r1"}})
	require.NoError(t, err)
	h.waitTerminal(t, job.ID)

	assert.ErrorIs(t, h.exec.Stop(ctx, job.ID), errors.ErrJobNotRunning)
}

func TestCompletionHookFires(t *testing.T) {
	h := newHarness(t, nil)

	var mu sync.Mutex
	var gotJob string
	var gotDevices []string
	h.exec.SetCompletionHook(func(jobID string, deviceIDs []string) {
		mu.Lock()
		defer mu.Unlock()
		gotJob = jobID
		gotDevices = deviceIDs
	})

	job, err := h.exec.Submit(context.Background(), SubmitRequest{DeviceIDs: []string{"r1", "r2"}})
	require.NoError(t, err)
	h.waitTerminal(t, job.ID)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotJob == job.ID
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"r1", "r2"}, gotDevices)
}

func TestShutdownRejectsNewJobs(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, h.exec.Shutdown(ctx))

	_, err := h.exec.Submit(context.Background(), SubmitRequest{DeviceIDs: []string{"r1"}})
	assert.ErrorIs(t, err, errors.ErrExecutorDrained)
}

func TestCustomCommandsOverrideDialect(t *testing.T) {
	h := newHarness(t, nil)

	job, err := h.exec.Submit(context.Background(), SubmitRequest{
		DeviceIDs: []string{"r1"},
		Commands:  []string{"show ip ospf neighbor"},
	})
	require.NoError(t, err)

	final := h.waitTerminal(t, job.ID)
	require.Len(t, final.DeviceProgress["r1"].Commands, 1)
	assert.Equal(t, "show ip ospf neighbor", final.DeviceProgress["r1"].Commands[0].Command)
	assert.Equal(t, domain.ClassStatus, final.DeviceProgress["r1"].Commands[0].Class)
}
