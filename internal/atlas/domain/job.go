package domain

import (
	"time"
)

// JobStatus represents the current state of an automation job
type JobStatus string

const (
	StatusPending   JobStatus = "PENDING"
	StatusRunning   JobStatus = "RUNNING"
	StatusStopping  JobStatus = "STOPPING"
	StatusCompleted JobStatus = "COMPLETED"
	StatusFailed    JobStatus = "FAILED"
	StatusStopped   JobStatus = "STOPPED"
)

// CanTransitionTo reports whether the job state machine allows moving from
// s to next. No transition skips RUNNING and terminal states are final.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed || next == StatusStopping
	case StatusStopping:
		return next == StatusStopped
	default:
		return false
	}
}

// IsTerminal reports whether the status is final.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusStopped
}

// DeviceStatus represents per-device progress within a job. Transitions are
// monotonic: pending -> running -> {completed, failed}, never backward.
type DeviceStatus string

const (
	DevicePending   DeviceStatus = "pending"
	DeviceRunning   DeviceStatus = "running"
	DeviceCompleted DeviceStatus = "completed"
	DeviceFailed    DeviceStatus = "failed"
)

func (s DeviceStatus) rank() int {
	switch s {
	case DevicePending:
		return 0
	case DeviceRunning:
		return 1
	case DeviceCompleted, DeviceFailed:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether the device status may move to next.
func (s DeviceStatus) CanTransitionTo(next DeviceStatus) bool {
	return next.rank() == s.rank()+1
}

// IsTerminal reports whether the device finished, successfully or not.
func (s DeviceStatus) IsTerminal() bool {
	return s == DeviceCompleted || s == DeviceFailed
}

// CommandStatus represents per-command progress within a device.
type CommandStatus string

const (
	CommandPending   CommandStatus = "pending"
	CommandRunning   CommandStatus = "running"
	CommandCompleted CommandStatus = "completed"
	CommandFailed    CommandStatus = "failed"
	CommandSkipped   CommandStatus = "skipped"
)

// CommandClass groups commands by behavior: status reads are quick and
// independent, diagnostics are slow reads, config commands have terminal
// side effects later commands may depend on (e.g. paging disable).
type CommandClass string

const (
	ClassStatus     CommandClass = "status"
	ClassDiagnostic CommandClass = "diagnostic"
	ClassConfig     CommandClass = "config"
)

// Retryable reports whether command execution of this class may be blindly
// retried. Reads are assumed idempotent but retry stays opt-in per class;
// config commands risk duplicate side effects and are never retried.
func (c CommandClass) Retryable() bool {
	return c == ClassStatus
}

// Independent reports whether later commands can still run after a command
// of this class fails. A failed config command poisons the session state
// for everything after it.
func (c CommandClass) Independent() bool {
	return c != ClassConfig
}

// CommandProgress tracks one command of one device. The command list length
// is fixed at job start.
type CommandProgress struct {
	Command  string        `json:"command"`
	Class    CommandClass  `json:"class"`
	Status   CommandStatus `json:"status"`
	Percent  float64       `json:"percent"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// DeviceProgress tracks one device of one job.
type DeviceProgress struct {
	DeviceID string            `json:"device_id"`
	Country  string            `json:"country"`
	Mode     SessionMode       `json:"mode,omitempty"`
	Status   DeviceStatus      `json:"status"`
	Commands []CommandProgress `json:"commands"`
	Percent  float64           `json:"percent"`
}

// CountryStats is a derived aggregate over devices sharing a country. It is
// recomputed from DeviceProgress, never independently mutated.
type CountryStats struct {
	Country           string  `json:"country"`
	DevicesTotal      int     `json:"devices_total"`
	DevicesPending    int     `json:"devices_pending"`
	DevicesRunning    int     `json:"devices_running"`
	DevicesCompleted  int     `json:"devices_completed"`
	DevicesFailed     int     `json:"devices_failed"`
	CommandsTotal     int     `json:"commands_total"`
	CommandsCompleted int     `json:"commands_completed"`
	CommandsFailed    int     `json:"commands_failed"`
	DevicePercent     float64 `json:"device_percent"`
	CommandPercent    float64 `json:"command_percent"`
}

// JobError records a per-device error aggregated into the job. A failed job
// is not necessarily a totally failed job; Errors distinguishes partial
// from total failure.
type JobError struct {
	DeviceID string    `json:"device_id"`
	Stage    string    `json:"stage"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// AutomationJob is the root record of a collection run. It is created on
// submission and mutated only by the batch executor.
type AutomationJob struct {
	ID             string                     `json:"id"`
	Actor          string                     `json:"actor"`
	Status         JobStatus                  `json:"status"`
	DeviceIDs      []string                   `json:"device_ids"`
	Commands       []string                   `json:"commands"`
	BatchSize      int                        `json:"batch_size"`
	DevicesPerHour int                        `json:"devices_per_hour"`
	StartTime      time.Time                  `json:"start_time"`
	EndTime        *time.Time                 `json:"end_time,omitempty"`
	Percent        float64                    `json:"percent"`
	DeviceProgress map[string]*DeviceProgress `json:"device_progress"`
	CountryStats   map[string]*CountryStats   `json:"country_stats"`
	Errors         []JobError                 `json:"errors"`
}

// IsRunning returns true if the job is currently executing
func (j *AutomationJob) IsRunning() bool {
	return j.Status == StatusRunning || j.Status == StatusStopping
}

// IsTerminal returns true if the job has reached a final state
func (j *AutomationJob) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// GetDuration returns the job execution duration
func (j *AutomationJob) GetDuration() time.Duration {
	if j.EndTime == nil {
		if j.IsRunning() {
			return time.Since(j.StartTime)
		}
		return 0
	}
	return j.EndTime.Sub(j.StartTime)
}

// Recompute refreshes every derived ratio from the underlying command
// statuses: per-command percents, per-device percents, the job percent
// (mean of device percents) and the country aggregates. The caller must
// hold whatever lock guards the job while mutating progress.
func (j *AutomationJob) Recompute() {
	var deviceSum float64
	stats := make(map[string]*CountryStats)

	for _, dp := range j.DeviceProgress {
		completed := 0
		for i := range dp.Commands {
			cp := &dp.Commands[i]
			switch cp.Status {
			case CommandCompleted:
				cp.Percent = 100
				completed++
			case CommandFailed, CommandSkipped:
				cp.Percent = 0
			case CommandRunning:
				cp.Percent = 50
			default:
				cp.Percent = 0
			}
		}
		if len(dp.Commands) > 0 {
			dp.Percent = float64(completed) / float64(len(dp.Commands)) * 100
		} else {
			dp.Percent = 0
			if dp.Status.IsTerminal() {
				dp.Percent = 100
			}
		}
		deviceSum += dp.Percent

		cs, ok := stats[dp.Country]
		if !ok {
			cs = &CountryStats{Country: dp.Country}
			stats[dp.Country] = cs
		}
		cs.DevicesTotal++
		switch dp.Status {
		case DevicePending:
			cs.DevicesPending++
		case DeviceRunning:
			cs.DevicesRunning++
		case DeviceCompleted:
			cs.DevicesCompleted++
		case DeviceFailed:
			cs.DevicesFailed++
		}
		for _, cp := range dp.Commands {
			cs.CommandsTotal++
			switch cp.Status {
			case CommandCompleted:
				cs.CommandsCompleted++
			case CommandFailed:
				cs.CommandsFailed++
			}
		}
	}

	for _, cs := range stats {
		if cs.DevicesTotal > 0 {
			cs.DevicePercent = float64(cs.DevicesCompleted+cs.DevicesFailed) / float64(cs.DevicesTotal) * 100
		}
		if cs.CommandsTotal > 0 {
			cs.CommandPercent = float64(cs.CommandsCompleted) / float64(cs.CommandsTotal) * 100
		}
	}

	if len(j.DeviceProgress) > 0 {
		j.Percent = deviceSum / float64(len(j.DeviceProgress))
	}
	j.CountryStats = stats
}

// DeepCopy creates a deep copy of the job so stored snapshots never alias
// the executor's working state.
func (j *AutomationJob) DeepCopy() *AutomationJob {
	if j == nil {
		return nil
	}

	jobCopy := &AutomationJob{
		ID:             j.ID,
		Actor:          j.Actor,
		Status:         j.Status,
		DeviceIDs:      make([]string, len(j.DeviceIDs)),
		Commands:       make([]string, len(j.Commands)),
		BatchSize:      j.BatchSize,
		DevicesPerHour: j.DevicesPerHour,
		StartTime:      j.StartTime,
		Percent:        j.Percent,
		DeviceProgress: make(map[string]*DeviceProgress, len(j.DeviceProgress)),
		CountryStats:   make(map[string]*CountryStats, len(j.CountryStats)),
		Errors:         make([]JobError, len(j.Errors)),
	}

	copy(jobCopy.DeviceIDs, j.DeviceIDs)
	copy(jobCopy.Commands, j.Commands)
	copy(jobCopy.Errors, j.Errors)

	for id, dp := range j.DeviceProgress {
		dpCopy := *dp
		dpCopy.Commands = make([]CommandProgress, len(dp.Commands))
		copy(dpCopy.Commands, dp.Commands)
		jobCopy.DeviceProgress[id] = &dpCopy
	}
	for country, cs := range j.CountryStats {
		csCopy := *cs
		jobCopy.CountryStats[country] = &csCopy
	}

	if j.EndTime != nil {
		endTime := *j.EndTime
		jobCopy.EndTime = &endTime
	}

	return jobCopy
}
