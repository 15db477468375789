package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ospfatlas/internal/atlas/domain"
	"ospfatlas/pkg/errors"
	"ospfatlas/pkg/logger"
)

func TestMemoryInventory(t *testing.T) {
	ctx := context.Background()
	inv := NewMemoryInventory([]*domain.Device{
		{ID: "r2", Name: "edge-de-02", Host: "10.9.0.2"},
		{ID: "r1", Name: "core-fr-01", Host: "10.9.0.1"},
		{ID: "r2", Name: "duplicate", Host: "10.9.0.9"},
	}, logger.New())

	devices, err := inv.List(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 2, "duplicate ids are dropped")
	assert.Equal(t, "r1", devices[0].ID, "listing is ordered by id")

	device, err := inv.Get(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, "edge-de-02", device.Name, "first entry wins on duplicate id")

	device.Name = "mutated"
	again, err := inv.Get(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, "edge-de-02", again.Name)

	_, err = inv.Get(ctx, "ghost")
	assert.ErrorIs(t, err, errors.ErrDeviceNotFound)
}

func TestLoadInventoryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
devices:
  - id: r1
    name: core-fr-01
    host: 10.9.0.1
    country: FR
    platform: cisco-ios
  - id: r2
    name: edge-de-02
    host: 10.9.0.2
    port: 2222
    country: DE
    platform: juniper-junos
`), 0644))

	devices, err := LoadInventoryFile(path)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "FR", devices[0].Country)
	assert.Equal(t, "10.9.0.2:2222", devices[1].Address())
	assert.Equal(t, "10.9.0.1:22", devices[0].Address(), "port defaults to 22")
}

func TestLoadInventoryFileRejectsIncompleteEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.yml")
	require.NoError(t, os.WriteFile(path, []byte("devices:\n  - id: r1\n"), 0644))

	_, err := LoadInventoryFile(path)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestLoadInventoryFileMissing(t *testing.T) {
	_, err := LoadInventoryFile(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}
