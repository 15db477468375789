package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ospfatlas/internal/atlas/domain"
	"ospfatlas/pkg/errors"
	"ospfatlas/pkg/logger"
)

func TestOutputStoreWriteAndRead(t *testing.T) {
	s, err := NewFileOutputStore(t.TempDir(), logger.New())
	require.NoError(t, err)

	out, err := s.Write("r1", "show ip ospf neighbor", domain.ModeReal, "neighbor output\n")
	require.NoError(t, err)
	assert.Equal(t, "r1", out.DeviceID)
	assert.Equal(t, domain.ModeReal, out.Mode)
	assert.False(t, out.CapturedAt.IsZero())

	text, err := s.Read(out.Path)
	require.NoError(t, err)
	assert.Equal(t, "neighbor output\n", text)
}

func TestOutputStoreListOrder(t *testing.T) {
	s, err := NewFileOutputStore(t.TempDir(), logger.New())
	require.NoError(t, err)

	_, err = s.Write("r1", "terminal length 0", domain.ModeSynthetic, "")
	require.NoError(t, err)
	_, err = s.Write("r1", "show ip ospf database router self-originate", domain.ModeSynthetic, "lsa")
	require.NoError(t, err)
	_, err = s.Write("r2", "show ip ospf neighbor", domain.ModeReal, "nbr")
	require.NoError(t, err)

	outputs, err := s.ListByDevice("r1")
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	assert.Equal(t, "terminal length 0", outputs[0].Command)
	assert.Equal(t, "show ip ospf database router self-originate", outputs[1].Command)
	assert.Equal(t, domain.ModeSynthetic, outputs[1].Mode, "synthetic origin must be tagged at rest")
}

func TestOutputStoreReadMissing(t *testing.T) {
	s, err := NewFileOutputStore(t.TempDir(), logger.New())
	require.NoError(t, err)

	_, err = s.Read(filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, errors.ErrOutputNotFound)
}

func TestOutputStoreIndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	first, err := NewFileOutputStore(dir, logger.New())
	require.NoError(t, err)
	_, err = first.Write("r1", "show ip ospf neighbor", domain.ModeReal, "nbr")
	require.NoError(t, err)

	second, err := NewFileOutputStore(dir, logger.New())
	require.NoError(t, err)
	outputs, err := second.ListByDevice("r1")
	require.NoError(t, err)
	require.Len(t, outputs, 1)

	text, err := second.Read(outputs[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "nbr", text)
}

func TestOutputStoreReset(t *testing.T) {
	s, err := NewFileOutputStore(t.TempDir(), logger.New())
	require.NoError(t, err)

	out, err := s.Write("r1", "show ip ospf neighbor", domain.ModeReal, "nbr")
	require.NoError(t, err)
	require.NoError(t, s.Reset())

	outputs, err := s.ListByDevice("r1")
	require.NoError(t, err)
	assert.Empty(t, outputs)

	_, err = s.Read(out.Path)
	assert.ErrorIs(t, err, errors.ErrOutputNotFound)
}

func TestSanitizeCommand(t *testing.T) {
	assert.Equal(t, "show_ip_ospf_neighbor", sanitizeCommand("show ip ospf neighbor"))
	assert.Equal(t, "terminal_length_0", sanitizeCommand("Terminal Length 0"))
	assert.LessOrEqual(t, len(sanitizeCommand("show ip ospf database router self-originate detail extensive")), 48)
}
