package store

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"ospfatlas/internal/atlas/domain"
	"ospfatlas/pkg/errors"
	"ospfatlas/pkg/logger"
)

// Inventory is the device inventory consumed by the job engine. Devices
// are owned externally; the job engine only reads them.
type Inventory interface {
	List(ctx context.Context) ([]*domain.Device, error)
	Get(ctx context.Context, id string) (*domain.Device, error)
}

// MemoryInventory is a yaml-seedable in-memory inventory, enough to run
// the server standalone and to give tests a real collaborator.
type MemoryInventory struct {
	devices map[string]*domain.Device
	order   []string
	mutex   sync.RWMutex
	logger  *logger.Logger
}

// NewMemoryInventory creates an inventory from a device list.
func NewMemoryInventory(devices []*domain.Device, log *logger.Logger) *MemoryInventory {
	inv := &MemoryInventory{
		devices: make(map[string]*domain.Device, len(devices)),
		logger:  log.WithField("component", "inventory"),
	}
	for _, d := range devices {
		if _, dup := inv.devices[d.ID]; dup {
			continue
		}
		inv.devices[d.ID] = d
		inv.order = append(inv.order, d.ID)
	}
	sort.Strings(inv.order)
	return inv
}

// LoadInventoryFile reads a yaml device list.
func LoadInventoryFile(path string) ([]*domain.Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError("inventory", path, err)
	}
	var doc struct {
		Devices []*domain.Device `yaml:"devices"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewConfigError("inventory", path, fmt.Errorf("parse yaml: %w", err))
	}
	for _, d := range doc.Devices {
		if d.ID == "" || d.Host == "" {
			return nil, errors.NewConfigError("inventory", path,
				fmt.Errorf("device entries require id and host (got id=%q host=%q)", d.ID, d.Host))
		}
	}
	return doc.Devices, nil
}

func (inv *MemoryInventory) List(ctx context.Context) ([]*domain.Device, error) {
	inv.mutex.RLock()
	defer inv.mutex.RUnlock()
	result := make([]*domain.Device, 0, len(inv.order))
	for _, id := range inv.order {
		d := *inv.devices[id]
		result = append(result, &d)
	}
	return result, nil
}

func (inv *MemoryInventory) Get(ctx context.Context, id string) (*domain.Device, error) {
	inv.mutex.RLock()
	defer inv.mutex.RUnlock()
	device, exists := inv.devices[id]
	if !exists {
		return nil, errors.ErrDeviceNotFound
	}
	d := *device
	return &d, nil
}
