package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"ospfatlas/internal/atlas/broadcast"
	"ospfatlas/internal/atlas/domain"
	"ospfatlas/internal/atlas/session"
	"ospfatlas/internal/atlas/store"
	"ospfatlas/pkg/config"
	"ospfatlas/pkg/errors"
	"ospfatlas/pkg/logger"
)

// SubmitRequest describes a collection run to start. Zero values for
// BatchSize and DevicesPerHour take the configured defaults.
type SubmitRequest struct {
	Actor          string   `json:"actor"`
	DeviceIDs      []string `json:"device_ids"`
	Commands       []string `json:"commands,omitempty"`
	BatchSize      int      `json:"batch_size,omitempty"`
	DevicesPerHour int      `json:"devices_per_hour,omitempty"`
}

// CompletionHook runs after a job reaches a terminal state, outside the job
// lock. The executor does not care what it does; the service layer uses it
// to rebuild the topology baseline from completed collections.
type CompletionHook func(jobID string, deviceIDs []string)

// runningJob is the executor's working state for one active job. All
// mutation of the job record goes through withLock so the in-memory state,
// the store copy and the broadcast stream never diverge.
type runningJob struct {
	job     *domain.AutomationJob
	devices map[string]*domain.Device

	mu       sync.Mutex
	stopOnce sync.Once
	stopCh   chan struct{}
	// waitCtx bounds the waits between devices (rate gate, semaphore).
	// It is cancelled on stop; in-flight commands are never cancelled.
	waitCtx    context.Context
	cancelWait context.CancelFunc
}

func (rj *runningJob) requestStop() {
	rj.stopOnce.Do(func() {
		close(rj.stopCh)
		rj.cancelWait()
	})
}

func (rj *runningJob) stopRequested() bool {
	select {
	case <-rj.stopCh:
		return true
	default:
		return false
	}
}

// Executor runs collection jobs: devices in batches, one session per
// device, commands strictly sequential within a session. It is the single
// writer of job state.
type Executor struct {
	cfg         *config.Config
	sessions    *session.Manager
	inventory   store.Inventory
	jobs        store.JobStore
	outputs     store.OutputStore
	broadcaster *broadcast.Broadcaster
	onComplete  CompletionHook
	logger      *logger.Logger

	mutex   sync.Mutex
	active  map[string]*runningJob
	drained bool
	wg      sync.WaitGroup
}

// New creates a batch executor.
func New(cfg *config.Config, sessions *session.Manager, inventory store.Inventory,
	jobs store.JobStore, outputs store.OutputStore, broadcaster *broadcast.Broadcaster,
	log *logger.Logger) *Executor {
	return &Executor{
		cfg:         cfg,
		sessions:    sessions,
		inventory:   inventory,
		jobs:        jobs,
		outputs:     outputs,
		broadcaster: broadcaster,
		logger:      log.WithField("component", "batch-executor"),
		active:      make(map[string]*runningJob),
	}
}

// SetCompletionHook installs the terminal-state callback. Must be called
// before the first Submit.
func (e *Executor) SetCompletionHook(hook CompletionHook) {
	e.onComplete = hook
}

// Submit validates the request, registers the job and starts it in the
// background. The returned job is a snapshot in state pending or later.
func (e *Executor) Submit(ctx context.Context, req SubmitRequest) (*domain.AutomationJob, error) {
	if len(req.DeviceIDs) == 0 {
		return nil, errors.ErrNoDevices
	}

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = e.cfg.Executor.DefaultBatchSize
	}
	devicesPerHour := req.DevicesPerHour
	if devicesPerHour <= 0 {
		devicesPerHour = e.cfg.Executor.DefaultDevicesPerHour
	}

	devices := make(map[string]*domain.Device, len(req.DeviceIDs))
	progress := make(map[string]*domain.DeviceProgress, len(req.DeviceIDs))
	seen := make(map[string]bool, len(req.DeviceIDs))
	for _, id := range req.DeviceIDs {
		if seen[id] {
			return nil, errors.NewConfigError("job", "deviceIds", fmt.Errorf("duplicate device %q", id))
		}
		seen[id] = true

		device, err := e.inventory.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		commands := req.Commands
		if len(commands) == 0 {
			dialect, err := session.ForPlatform(device.Platform)
			if err != nil {
				return nil, err
			}
			commands = dialect.DefaultCommands()
		}

		cps := make([]domain.CommandProgress, len(commands))
		for i, c := range commands {
			cps[i] = domain.CommandProgress{
				Command: c,
				Class:   session.Classify(c),
				Status:  domain.CommandPending,
			}
		}

		devices[id] = device
		progress[id] = &domain.DeviceProgress{
			DeviceID: id,
			Country:  device.Country,
			Status:   domain.DevicePending,
			Commands: cps,
		}
	}

	job := &domain.AutomationJob{
		ID:             uuid.NewString(),
		Actor:          req.Actor,
		Status:         domain.StatusPending,
		DeviceIDs:      append([]string(nil), req.DeviceIDs...),
		Commands:       append([]string(nil), req.Commands...),
		BatchSize:      batchSize,
		DevicesPerHour: devicesPerHour,
		StartTime:      time.Now(),
		DeviceProgress: progress,
	}
	job.Recompute()

	waitCtx, cancelWait := context.WithCancel(context.Background())
	rj := &runningJob{
		job:        job,
		devices:    devices,
		stopCh:     make(chan struct{}),
		waitCtx:    waitCtx,
		cancelWait: cancelWait,
	}

	e.mutex.Lock()
	if e.drained {
		e.mutex.Unlock()
		cancelWait()
		return nil, errors.ErrExecutorDrained
	}
	e.active[job.ID] = rj
	e.wg.Add(1)
	e.mutex.Unlock()

	if err := e.jobs.Create(ctx, job); err != nil {
		e.mutex.Lock()
		delete(e.active, job.ID)
		e.mutex.Unlock()
		e.wg.Done()
		cancelWait()
		return nil, err
	}

	e.logger.Info("job submitted", "jobId", job.ID, "actor", job.Actor,
		"devices", len(req.DeviceIDs), "batchSize", batchSize, "devicesPerHour", devicesPerHour)

	go e.run(rj)
	return job.DeepCopy(), nil
}

// Stop requests a graceful stop: no new devices or commands start, in-flight
// commands run to completion.
func (e *Executor) Stop(ctx context.Context, jobID string) error {
	e.mutex.Lock()
	rj, exists := e.active[jobID]
	e.mutex.Unlock()
	if !exists {
		_, found, err := e.jobs.Get(ctx, jobID)
		if err != nil {
			return err
		}
		if !found {
			return errors.ErrJobNotFound
		}
		return errors.ErrJobNotRunning
	}

	var transitioned bool
	e.withLock(rj, func(job *domain.AutomationJob) {
		if job.Status.CanTransitionTo(domain.StatusStopping) {
			job.Status = domain.StatusStopping
			transitioned = true
		}
	})
	if !transitioned {
		return errors.ErrJobNotRunning
	}
	rj.requestStop()
	e.logger.Info("job stop requested", "jobId", jobID)
	return nil
}

// Shutdown drains the executor: new submissions are rejected, every active
// job is asked to stop, and the call waits for the workers until ctx runs
// out.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mutex.Lock()
	e.drained = true
	active := make([]*runningJob, 0, len(e.active))
	for _, rj := range e.active {
		active = append(active, rj)
	}
	e.mutex.Unlock()

	for _, rj := range active {
		e.withLock(rj, func(job *domain.AutomationJob) {
			if job.Status.CanTransitionTo(domain.StatusStopping) {
				job.Status = domain.StatusStopping
			}
		})
		rj.requestStop()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run drives one job to a terminal state.
func (e *Executor) run(rj *runningJob) {
	defer e.wg.Done()
	defer rj.cancelWait()
	jobID := rj.job.ID
	log := e.logger.WithField("jobId", jobID)

	e.withLock(rj, func(job *domain.AutomationJob) {
		if job.Status.CanTransitionTo(domain.StatusRunning) {
			job.Status = domain.StatusRunning
		}
	})

	// A submitted job may already be in stopping if Stop landed between
	// Submit and here; the device loop handles that on its first check.
	limiter := rate.NewLimiter(rate.Every(time.Hour/time.Duration(rj.job.DevicesPerHour)), 1)
	parallelism := min(rj.job.BatchSize, e.cfg.Executor.MaxParallelism)
	if parallelism < 1 {
		parallelism = 1
	}
	sem := semaphore.NewWeighted(int64(parallelism))

	var deviceWG sync.WaitGroup
	for batchStart := 0; batchStart < len(rj.job.DeviceIDs); batchStart += rj.job.BatchSize {
		batchEnd := min(batchStart+rj.job.BatchSize, len(rj.job.DeviceIDs))
		batch := rj.job.DeviceIDs[batchStart:batchEnd]
		log.Debug("starting batch", "from", batchStart, "devices", len(batch))

		for _, deviceID := range batch {
			if rj.stopRequested() {
				break
			}
			// The rate gate spaces device starts; the first device of a
			// fresh job passes immediately (burst 1).
			if err := limiter.Wait(rj.waitCtx); err != nil {
				break
			}
			if err := sem.Acquire(rj.waitCtx, 1); err != nil {
				break
			}
			if rj.stopRequested() {
				sem.Release(1)
				break
			}

			deviceWG.Add(1)
			go func(id string) {
				defer deviceWG.Done()
				defer sem.Release(1)
				e.runDevice(rj, id)
			}(deviceID)
		}
		if rj.stopRequested() {
			break
		}
	}
	deviceWG.Wait()

	e.finish(rj, log)
}

// finish computes the terminal status and fires the completion hook.
func (e *Executor) finish(rj *runningJob, log *logger.Logger) {
	var final domain.JobStatus
	e.withLock(rj, func(job *domain.AutomationJob) {
		switch {
		case job.Status == domain.StatusStopping:
			final = domain.StatusStopped
		case anyDeviceFailed(job):
			final = domain.StatusFailed
		default:
			final = domain.StatusCompleted
		}
		if job.Status.CanTransitionTo(final) {
			job.Status = final
		}
		now := time.Now()
		job.EndTime = &now
	})

	e.mutex.Lock()
	delete(e.active, rj.job.ID)
	e.mutex.Unlock()

	log.Info("job finished", "status", final, "duration", rj.job.GetDuration(),
		"errors", len(rj.job.Errors))

	if e.onComplete != nil {
		e.onComplete(rj.job.ID, append([]string(nil), rj.job.DeviceIDs...))
	}
}

func anyDeviceFailed(job *domain.AutomationJob) bool {
	for _, dp := range job.DeviceProgress {
		if dp.Status == domain.DeviceFailed {
			return true
		}
	}
	return false
}

// runDevice executes the command list against one device over one session.
func (e *Executor) runDevice(rj *runningJob, deviceID string) {
	log := e.logger.WithFields("jobId", rj.job.ID, "device", deviceID)
	device := rj.devices[deviceID]

	e.withLock(rj, func(job *domain.AutomationJob) {
		dp := job.DeviceProgress[deviceID]
		if dp.Status.CanTransitionTo(domain.DeviceRunning) {
			dp.Status = domain.DeviceRunning
		}
	})
	e.publishDevice(rj, deviceID)

	sess, err := e.openWithRetry(device, log)
	if err != nil {
		log.Warn("device connection failed", "error", err)
		e.failDevice(rj, deviceID, "connect", err, 0)
		return
	}
	defer e.sessions.Close(sess)

	e.withLock(rj, func(job *domain.AutomationJob) {
		job.DeviceProgress[deviceID].Mode = sess.Mode
	})

	var commandCount int
	e.withLock(rj, func(job *domain.AutomationJob) {
		commandCount = len(job.DeviceProgress[deviceID].Commands)
	})
	for i := 0; i < commandCount; i++ {
		if rj.stopRequested() {
			// Partially run device at stop time counts as failed; the
			// unfinished work is recorded, never silently dropped.
			e.failDevice(rj, deviceID, "stopped",
				fmt.Errorf("stop requested before command %d of %d", i+1, commandCount), i)
			return
		}

		var command string
		var class domain.CommandClass
		e.withLock(rj, func(job *domain.AutomationJob) {
			cp := &job.DeviceProgress[deviceID].Commands[i]
			cp.Status = domain.CommandRunning
			command, class = cp.Command, cp.Class
		})
		e.publishDevice(rj, deviceID)

		output, duration, err := e.runCommand(sess, command, class)
		if err == nil {
			if _, werr := e.outputs.Write(deviceID, command, sess.Mode, output); werr != nil {
				err = werr
			}
		}

		if err != nil {
			log.Warn("command failed", "command", command, "error", err)
			disconnected := errors.IsDisconnected(err)
			dependent := !class.Independent()

			e.withLock(rj, func(job *domain.AutomationJob) {
				dp := job.DeviceProgress[deviceID]
				cp := &dp.Commands[i]
				cp.Status = domain.CommandFailed
				cp.Duration = duration
				cp.Error = err.Error()
				job.Errors = append(job.Errors, domain.JobError{
					DeviceID: deviceID,
					Stage:    "command",
					Message:  fmt.Sprintf("%s: %v", command, err),
					At:       time.Now(),
				})
				if disconnected || dependent {
					for k := i + 1; k < len(dp.Commands); k++ {
						dp.Commands[k].Status = domain.CommandSkipped
					}
					dp.Status = domain.DeviceFailed
				}
			})
			e.publishDevice(rj, deviceID)

			if disconnected || dependent {
				return
			}
			continue
		}

		e.withLock(rj, func(job *domain.AutomationJob) {
			cp := &job.DeviceProgress[deviceID].Commands[i]
			cp.Status = domain.CommandCompleted
			cp.Duration = duration
		})
		e.publishDevice(rj, deviceID)
	}

	e.withLock(rj, func(job *domain.AutomationJob) {
		dp := job.DeviceProgress[deviceID]
		if dp.Status == domain.DeviceRunning {
			if anyCommandFailed(dp) {
				dp.Status = domain.DeviceFailed
			} else {
				dp.Status = domain.DeviceCompleted
			}
		}
	})
	e.publishDevice(rj, deviceID)
	log.Debug("device finished")
}

func anyCommandFailed(dp *domain.DeviceProgress) bool {
	for i := range dp.Commands {
		if dp.Commands[i].Status == domain.CommandFailed {
			return true
		}
	}
	return false
}

// openWithRetry dials the device with doubling backoff. Only transport
// errors are retried; configuration errors fail fast on the first attempt.
func (e *Executor) openWithRetry(device *domain.Device, log *logger.Logger) (*session.Session, error) {
	attempts := e.cfg.Session.ConnectRetries
	if attempts < 1 {
		attempts = 1
	}
	backoff := e.cfg.Session.RetryBackoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		sess, err := e.sessions.Open(context.Background(), device)
		if err == nil {
			return sess, nil
		}
		lastErr = err
		if !errors.IsRetryable(err) {
			return nil, err
		}
		if attempt < attempts {
			log.Debug("connect attempt failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return nil, errors.NewConnectError(device.Name, attempts, lastErr)
}

// runCommand executes one command with its class timeout. Retryable classes
// get one retry on timeout or protocol errors; a disconnect is never
// retried because session state is gone.
func (e *Executor) runCommand(sess *session.Session, command string, class domain.CommandClass) (string, time.Duration, error) {
	timeout := e.sessions.TimeoutFor(class)

	start := time.Now()
	output, err := e.sessions.Run(context.Background(), sess, command, timeout)
	if err != nil && class.Retryable() && !errors.IsDisconnected(err) {
		output, err = e.sessions.Run(context.Background(), sess, command, timeout)
	}
	return output, time.Since(start), err
}

// failDevice marks a device failed at the given command index, skipping the
// rest of its command list.
func (e *Executor) failDevice(rj *runningJob, deviceID, stage string, cause error, fromCommand int) {
	e.withLock(rj, func(job *domain.AutomationJob) {
		dp := job.DeviceProgress[deviceID]
		for k := fromCommand; k < len(dp.Commands); k++ {
			if dp.Commands[k].Status == domain.CommandPending || dp.Commands[k].Status == domain.CommandRunning {
				dp.Commands[k].Status = domain.CommandSkipped
			}
		}
		if dp.Status.CanTransitionTo(domain.DeviceFailed) {
			dp.Status = domain.DeviceFailed
		}
		job.Errors = append(job.Errors, domain.JobError{
			DeviceID: deviceID,
			Stage:    stage,
			Message:  cause.Error(),
			At:       time.Now(),
		})
	})
	e.publishDevice(rj, deviceID)
}

// withLock mutates the job under its lock, recomputes the derived ratios
// and persists the copy, all in one critical section. Status transitions
// are broadcast from here so readers observe them in commit order.
func (e *Executor) withLock(rj *runningJob, mutate func(job *domain.AutomationJob)) {
	rj.mu.Lock()
	defer rj.mu.Unlock()

	before := rj.job.Status
	mutate(rj.job)
	rj.job.Recompute()

	if err := e.jobs.Update(context.Background(), rj.job); err != nil {
		e.logger.Error("failed to persist job state", "jobId", rj.job.ID, "error", err)
	}
	if rj.job.Status != before {
		e.broadcaster.PublishStatus(context.Background(), rj.job)
	}
}

// publishDevice broadcasts one device's current progress with the country
// aggregates captured in the same lock acquisition.
func (e *Executor) publishDevice(rj *runningJob, deviceID string) {
	rj.mu.Lock()
	job := rj.job.DeepCopy()
	rj.mu.Unlock()
	e.broadcaster.PublishDevice(context.Background(), job, job.DeviceProgress[deviceID])
}
