package topology

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ospfatlas/pkg/errors"
)

// routerRecord is one device's self-originated router link-state record.
type routerRecord struct {
	RouterID string
	Links    []lsaLink
}

// lsaLink is one advertised router-to-router link.
type lsaLink struct {
	NeighborID string // advertised remote router id
	LocalAddr  string // local interface address (Link Data)
	Cost       int    // advertised metric
}

// neighborEntry is one row of the adjacency table.
type neighborEntry struct {
	NeighborID string
	State      string
	Address    string // the neighbor's interface address on the shared link
	Interface  string // the local interface name
}

var (
	advertisingRouterRe = regexp.MustCompile(`Advertising Router:\s*(\d{1,3}(?:\.\d{1,3}){3})`)
	neighborRouterRe    = regexp.MustCompile(`Neighboring Router ID:\s*(\d{1,3}(?:\.\d{1,3}){3})`)
	interfaceAddrRe     = regexp.MustCompile(`Router Interface address:\s*(\d{1,3}(?:\.\d{1,3}){3})`)
	metricRe            = regexp.MustCompile(`(?:TOS 0 Metrics|TOS 0 Metric|Metric):\s*(\d+)`)

	// Matches rows like:
	// 10.0.0.1          0   FULL/  -        00:00:35    10.1.1.1        GigabitEthernet0/0
	neighborRowRe = regexp.MustCompile(`^(\d{1,3}(?:\.\d{1,3}){3})\s+(\d+)\s+(.+?)\s+(\S+)\s+(\d{1,3}(?:\.\d{1,3}){3})\s+(\S+)\s*$`)
)

// parseRouterLSA extracts the self-originated router record from raw
// link-state output. The cost comes only from the structured metric field
// of each link block; a link block with no parseable metric is a parse
// failure for the whole device, never a defaulted cost.
func parseRouterLSA(deviceID, text string) (*routerRecord, error) {
	m := advertisingRouterRe.FindStringSubmatch(text)
	if m == nil {
		return nil, errors.NewParseError(deviceID, "no self-originated router link-state record", nil)
	}
	rec := &routerRecord{RouterID: m[1]}

	blocks := splitLinkBlocks(text)
	for i, block := range blocks {
		if !strings.Contains(block, "another Router") {
			// Stub networks and transit segments carry no router neighbor.
			continue
		}

		nm := neighborRouterRe.FindStringSubmatch(block)
		if nm == nil {
			return nil, errors.NewParseError(deviceID,
				fmt.Sprintf("link %d: missing neighboring router id", i+1), nil)
		}
		am := interfaceAddrRe.FindStringSubmatch(block)
		if am == nil {
			return nil, errors.NewParseError(deviceID,
				fmt.Sprintf("link %d to %s: missing router interface address", i+1, nm[1]), nil)
		}
		mm := metricRe.FindStringSubmatch(block)
		if mm == nil {
			return nil, errors.NewParseError(deviceID,
				fmt.Sprintf("link %d to %s: missing metric field", i+1, nm[1]), nil)
		}
		cost, err := strconv.Atoi(mm[1])
		if err != nil {
			return nil, errors.NewParseError(deviceID,
				fmt.Sprintf("link %d to %s: unparseable metric %q", i+1, nm[1], mm[1]), err)
		}

		rec.Links = append(rec.Links, lsaLink{
			NeighborID: nm[1],
			LocalAddr:  am[1],
			Cost:       cost,
		})
	}

	return rec, nil
}

// splitLinkBlocks cuts the LSA body into per-link sections starting at
// each "Link connected to:" marker.
func splitLinkBlocks(text string) []string {
	var blocks []string
	var current *strings.Builder

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "Link connected to:") {
			if current != nil {
				blocks = append(blocks, current.String())
			}
			current = &strings.Builder{}
		}
		if current != nil {
			current.WriteString(line)
			current.WriteString("\n")
		}
	}
	if current != nil {
		blocks = append(blocks, current.String())
	}
	return blocks
}

// parseNeighborTable extracts the adjacency rows from raw neighbor output.
// Unrecognized lines (headers, prompts, banners) are skipped.
func parseNeighborTable(text string) []neighborEntry {
	var entries []neighborEntry
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		m := neighborRowRe.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		entries = append(entries, neighborEntry{
			NeighborID: m[1],
			State:      strings.TrimSpace(m[3]),
			Address:    m[5],
			Interface:  m[6],
		})
	}
	return entries
}
