package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ospfatlas/pkg/errors"
)

const sampleLSA = `
            OSPF Router with ID (10.0.0.2) (Process ID 1)

                Router Link States (Area 0)

  LS age: 143
  Options: (No TOS-capability, DC)
  LS Type: Router Links
  Link State ID: 10.0.0.2
  Advertising Router: 10.0.0.2
  LS Seq Number: 8000004A
  Checksum: 0x9B47
  Length: 60
  Number of Links: 3

    Link connected to: another Router (point-to-point)
     (Link ID) Neighboring Router ID: 10.0.0.1
     (Link Data) Router Interface address: 10.1.1.2
      Number of MTID metrics: 0
       TOS 0 Metrics: 10

    Link connected to: another Router (point-to-point)
     (Link ID) Neighboring Router ID: 10.0.0.3
     (Link Data) Router Interface address: 10.1.2.2
      Number of MTID metrics: 0
       TOS 0 Metrics: 250

    Link connected to: a Stub Network
     (Link ID) Network/subnet number: 10.1.1.0
     (Link Data) Network Mask: 255.255.255.0
      Number of MTID metrics: 0
       TOS 0 Metrics: 10
`

func TestParseRouterLSA(t *testing.T) {
	rec, err := parseRouterLSA("r2", sampleLSA)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.2", rec.RouterID)
	require.Len(t, rec.Links, 2, "stub network links must not become router links")

	assert.Equal(t, "10.0.0.1", rec.Links[0].NeighborID)
	assert.Equal(t, "10.1.1.2", rec.Links[0].LocalAddr)
	assert.Equal(t, 10, rec.Links[0].Cost)

	assert.Equal(t, "10.0.0.3", rec.Links[1].NeighborID)
	assert.Equal(t, 250, rec.Links[1].Cost)
}

func TestParseRouterLSAZeroLinks(t *testing.T) {
	text := `
  Advertising Router: 10.0.0.9
  Number of Links: 0
`
	rec, err := parseRouterLSA("r9", text)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", rec.RouterID)
	assert.Empty(t, rec.Links, "an isolated router still parses, with zero links")
}

func TestParseRouterLSAMissingMetric(t *testing.T) {
	text := `
  Advertising Router: 10.0.0.4

    Link connected to: another Router (point-to-point)
     (Link ID) Neighboring Router ID: 10.0.0.5
     (Link Data) Router Interface address: 10.1.4.4
`
	_, err := parseRouterLSA("r4", text)
	require.Error(t, err)
	assert.True(t, errors.IsParse(err), "a missing metric must be a parse failure, never a defaulted cost")

	var pe *errors.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "r4", pe.DeviceID)
	assert.Contains(t, pe.Reason, "missing metric")
}

func TestParseRouterLSANoAdvertisingRouter(t *testing.T) {
	_, err := parseRouterLSA("r1", "% OSPF is not enabled\n")
	require.Error(t, err)
	assert.True(t, errors.IsParse(err))
}

func TestParseNeighborTable(t *testing.T) {
	text := `Neighbor ID     Pri   State           Dead Time   Address         Interface
10.0.0.1          0   FULL/  -        00:00:35    10.1.1.1        GigabitEthernet0/0
10.0.0.3          1   FULL/BDR        00:00:31    10.1.2.3        GigabitEthernet0/1
r2#
`
	entries := parseNeighborTable(text)
	require.Len(t, entries, 2)

	assert.Equal(t, "10.0.0.1", entries[0].NeighborID)
	assert.Equal(t, "10.1.1.1", entries[0].Address)
	assert.Equal(t, "GigabitEthernet0/0", entries[0].Interface)

	assert.Equal(t, "FULL/BDR", entries[1].State)
	assert.Equal(t, "GigabitEthernet0/1", entries[1].Interface)
}

func TestParseNeighborTableEmpty(t *testing.T) {
	assert.Empty(t, parseNeighborTable("r7# show ip ospf neighbor\nr7#\n"))
}
