package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ospfatlas/internal/atlas/domain"
	"ospfatlas/pkg/errors"
	"ospfatlas/pkg/logger"
)

// OutputStore persists raw command output. Records are immutable once
// written and handed to the topology builder by path reference, never
// copied into the job record.
type OutputStore interface {
	Write(deviceID, command string, mode domain.SessionMode, text string) (domain.CommandOutput, error)
	Read(path string) (string, error)
	ListByDevice(deviceID string) ([]domain.CommandOutput, error)
	Reset() error
}

// FileOutputStore implements OutputStore on the local filesystem: one
// directory per device, one numbered file per command invocation, plus a
// JSON sidecar index holding the metadata (including the session mode, so
// synthetic data stays distinguishable at rest).
type FileOutputStore struct {
	baseDir string
	logger  *logger.Logger

	mutex sync.Mutex
	index map[string][]domain.CommandOutput
	seq   map[string]int
}

const indexFileName = "index.json"

// NewFileOutputStore opens (or creates) the store at baseDir and loads the
// per-device indexes.
func NewFileOutputStore(baseDir string, log *logger.Logger) (*FileOutputStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	s := &FileOutputStore{
		baseDir: baseDir,
		logger:  log.WithField("component", "output-store"),
		index:   make(map[string][]domain.CommandOutput),
		seq:     make(map[string]int),
	}

	if err := s.loadIndexes(); err != nil {
		s.logger.Warn("failed to load output indexes, starting fresh", "error", err)
	}

	s.logger.Info("output store initialized", "baseDir", baseDir)
	return s, nil
}

func (s *FileOutputStore) loadIndexes() error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		deviceID := entry.Name()
		data, err := os.ReadFile(filepath.Join(s.baseDir, deviceID, indexFileName))
		if err != nil {
			continue
		}
		var outputs []domain.CommandOutput
		if err := json.Unmarshal(data, &outputs); err != nil {
			s.logger.Warn("skipping corrupt output index", "device", deviceID, "error", err)
			continue
		}
		s.index[deviceID] = outputs
		s.seq[deviceID] = len(outputs)
	}
	return nil
}

// Write stores the raw text and returns the immutable output record.
func (s *FileOutputStore) Write(deviceID, command string, mode domain.SessionMode, text string) (domain.CommandOutput, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	deviceDir := filepath.Join(s.baseDir, deviceID)
	if err := os.MkdirAll(deviceDir, 0755); err != nil {
		return domain.CommandOutput{}, fmt.Errorf("failed to create device directory: %w", err)
	}

	s.seq[deviceID]++
	name := fmt.Sprintf("%03d_%s.txt", s.seq[deviceID], sanitizeCommand(command))
	path := filepath.Join(deviceDir, name)

	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return domain.CommandOutput{}, fmt.Errorf("failed to write output: %w", err)
	}

	out := domain.CommandOutput{
		DeviceID:   deviceID,
		Command:    command,
		Mode:       mode,
		Path:       path,
		CapturedAt: time.Now(),
	}
	s.index[deviceID] = append(s.index[deviceID], out)

	if err := s.saveIndex(deviceID); err != nil {
		s.logger.Error("failed to save output index", "device", deviceID, "error", err)
	}

	return out, nil
}

func (s *FileOutputStore) saveIndex(deviceID string) error {
	data, err := json.MarshalIndent(s.index[deviceID], "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.baseDir, deviceID, indexFileName), data, 0644)
}

// Read returns the raw text for an output reference.
func (s *FileOutputStore) Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.ErrOutputNotFound
		}
		return "", err
	}
	return string(data), nil
}

// ListByDevice returns the device's output records in capture order.
func (s *FileOutputStore) ListByDevice(deviceID string) ([]domain.CommandOutput, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	outputs := s.index[deviceID]
	result := make([]domain.CommandOutput, len(outputs))
	copy(result, outputs)
	return result, nil
}

// Reset deletes all stored output. Scoped to this store's directory only.
func (s *FileOutputStore) Reset() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(s.baseDir, entry.Name())); err != nil {
			return err
		}
	}
	s.index = make(map[string][]domain.CommandOutput)
	s.seq = make(map[string]int)
	s.logger.Info("output store reset")
	return nil
}

func sanitizeCommand(command string) string {
	mapper := func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}
	name := strings.Map(mapper, command)
	if len(name) > 48 {
		name = name[:48]
	}
	return name
}
