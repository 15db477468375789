package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"ospfatlas/internal/atlas/domain"
)

func TestRenderSyntheticDeterministic(t *testing.T) {
	device := &domain.Device{ID: "r2", Name: "core-fr-r2"}
	first := RenderSynthetic(device, "show ip ospf database router self-originate")
	second := RenderSynthetic(device, "show ip ospf database router self-originate")
	assert.Equal(t, first, second, "synthetic output must be byte-identical across runs")
}

func TestRenderSyntheticLSAShape(t *testing.T) {
	device := &domain.Device{ID: "r2", Name: "core-fr-r2"}
	out := RenderSynthetic(device, "show ip ospf database router self-originate")

	assert.Contains(t, out, "Advertising Router: 10.0.0.2")
	assert.Contains(t, out, "Neighboring Router ID: 10.0.0.1")
	assert.Contains(t, out, "Neighboring Router ID: 10.0.0.3")
	assert.Contains(t, out, "TOS 0 Metrics: 10")
	assert.Equal(t, 2, strings.Count(out, "Link connected to: another Router"))
}

func TestRenderSyntheticNeighborsMirrorLinks(t *testing.T) {
	device := &domain.Device{ID: "r3", Name: "edge-de-r3"}
	out := RenderSynthetic(device, "show ip ospf neighbor")

	assert.Contains(t, out, "10.0.0.2")
	assert.Contains(t, out, "10.0.0.4")
	assert.Contains(t, out, "GigabitEthernet0/0")
	assert.Contains(t, out, "GigabitEthernet0/1")
}

func TestRenderSyntheticFirstRouterHasOneLink(t *testing.T) {
	device := &domain.Device{ID: "r1", Name: "r1"}
	out := RenderSynthetic(device, "show ip ospf database router self-originate")

	assert.Contains(t, out, "Advertising Router: 10.0.0.1")
	assert.Equal(t, 1, strings.Count(out, "Link connected to: another Router"),
		"the first router of the line has only an upper neighbor")
}

func TestRenderSyntheticConfigCommandsAreSilent(t *testing.T) {
	device := &domain.Device{ID: "r1", Name: "r1"}
	assert.Empty(t, RenderSynthetic(device, "terminal length 0"))
}

func TestDeviceIndex(t *testing.T) {
	assert.Equal(t, 7, deviceIndex("edge-uk-07"))
	assert.Equal(t, 42, deviceIndex("r42"))

	// No trailing digits: stable hash bucket in range.
	n := deviceIndex("backbone-main")
	assert.Equal(t, n, deviceIndex("backbone-main"))
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, 200)
}
