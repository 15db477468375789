package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ospfatlas/internal/atlas/domain"
	"ospfatlas/pkg/errors"
)

func TestForPlatform(t *testing.T) {
	d, err := ForPlatform("cisco-ios")
	require.NoError(t, err)
	assert.Equal(t, "terminal length 0", d.PagingDisable)
	assert.Equal(t, "show ip ospf database router self-originate", d.LinkStateCommand)

	d, err = ForPlatform("  Juniper-JunOS ")
	require.NoError(t, err)
	assert.Equal(t, "set cli screen-length 0", d.PagingDisable)
}

func TestForPlatformUnknown(t *testing.T) {
	_, err := ForPlatform("acme-os-9000")
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err), "an unknown platform is a configuration error, not a guess")
	assert.Contains(t, err.Error(), "unsupported dialect")
}

func TestDefaultCommandsOrder(t *testing.T) {
	d, err := ForPlatform("cisco-iosxr")
	require.NoError(t, err)
	cmds := d.DefaultCommands()
	require.Len(t, cmds, 3)
	assert.Equal(t, d.PagingDisable, cmds[0], "paging disable must run before any read")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		command string
		want    domain.CommandClass
	}{
		{"terminal length 0", domain.ClassConfig},
		{"set cli screen-length 0", domain.ClassConfig},
		{"show ip ospf database router self-originate", domain.ClassDiagnostic},
		{"show ospf database router detail", domain.ClassDiagnostic},
		{"show ip ospf neighbor", domain.ClassStatus},
		{"show version", domain.ClassStatus},
		{"ping 10.0.0.1", domain.ClassDiagnostic},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.command))
		})
	}
}

func TestClassBehavior(t *testing.T) {
	assert.True(t, domain.ClassStatus.Retryable())
	assert.False(t, domain.ClassDiagnostic.Retryable())
	assert.False(t, domain.ClassConfig.Retryable(), "config commands must never be blindly retried")

	assert.True(t, domain.ClassStatus.Independent())
	assert.True(t, domain.ClassDiagnostic.Independent())
	assert.False(t, domain.ClassConfig.Independent(), "a failed config command poisons what follows")
}
