package domain

import (
	"fmt"
	"time"
)

// Device is a network element owned by the external inventory. The job
// engine treats it as immutable for the duration of a job.
type Device struct {
	ID             string `yaml:"id" json:"id"`
	Name           string `yaml:"name" json:"name"`
	Host           string `yaml:"host" json:"host"`
	Port           int    `yaml:"port" json:"port"`
	Protocol       string `yaml:"protocol" json:"protocol"`
	Country        string `yaml:"country" json:"country"`
	Platform       string `yaml:"platform" json:"platform"`
	Role           string `yaml:"role" json:"role"`
	CredentialsRef string `yaml:"credentialsRef" json:"credentials_ref"`
}

// Address returns the dialable host:port for the device.
func (d *Device) Address() string {
	port := d.Port
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("%s:%d", d.Host, port)
}

// SessionMode distinguishes a live device session from a synthetic one
// opened for development/demo continuity. The mode is carried unchanged
// into progress records and persisted output so no downstream consumer can
// mistake synthetic data for live data.
type SessionMode string

const (
	ModeReal      SessionMode = "real"
	ModeSynthetic SessionMode = "synthetic"
)

// CommandOutput is the persisted record of one command run on one device.
// The raw text lives in the file store; Path is the reference handed to the
// topology builder.
type CommandOutput struct {
	DeviceID   string      `json:"device_id"`
	Command    string      `json:"command"`
	Mode       SessionMode `json:"mode"`
	Path       string      `json:"path"`
	CapturedAt time.Time   `json:"captured_at"`
}
