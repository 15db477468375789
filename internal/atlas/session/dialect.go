package session

import (
	"fmt"
	"strings"

	"ospfatlas/internal/atlas/domain"
	"ospfatlas/pkg/errors"
)

// Dialect is the command syntax flavor of a device platform. It is selected
// from declared platform metadata, never inferred from connection success.
type Dialect struct {
	Platform         string
	PagingDisable    string
	LinkStateCommand string
	NeighborCommand  string
}

// DefaultCommands returns the standard OSPF collection set for the
// platform: disable paging first, then the two link-state reads.
func (d Dialect) DefaultCommands() []string {
	return []string{d.PagingDisable, d.LinkStateCommand, d.NeighborCommand}
}

var dialects = map[string]Dialect{
	"cisco-ios": {
		Platform:         "cisco-ios",
		PagingDisable:    "terminal length 0",
		LinkStateCommand: "show ip ospf database router self-originate",
		NeighborCommand:  "show ip ospf neighbor",
	},
	"cisco-iosxr": {
		Platform:         "cisco-iosxr",
		PagingDisable:    "terminal length 0",
		LinkStateCommand: "show ospf database router self-originate",
		NeighborCommand:  "show ospf neighbor",
	},
	"juniper-junos": {
		Platform:         "juniper-junos",
		PagingDisable:    "set cli screen-length 0",
		LinkStateCommand: "show ospf database router detail",
		NeighborCommand:  "show ospf neighbor",
	},
}

// ForPlatform resolves the dialect for a declared platform. Unknown
// platforms fail with an explicit configuration error rather than
// defaulting silently.
func ForPlatform(platform string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(platform))]
	if !ok {
		return Dialect{}, errors.NewConfigError("dialect", platform,
			fmt.Errorf("unsupported dialect for platform %q", platform))
	}
	return d, nil
}

// diagnosticPrefixes mark long-running reads that get the extended timeout.
var diagnosticPrefixes = []string{
	"show tech",
	"show ospf database",
	"show ip ospf database",
	"monitor",
	"traceroute",
	"ping",
}

// configPrefixes mark commands with terminal-state side effects later
// commands may depend on.
var configPrefixes = []string{
	"terminal length",
	"terminal width",
	"set cli",
	"configure",
	"environment no more",
}

// Classify buckets a command into its class. The class picks the timeout
// ceiling and whether a failure poisons the commands after it.
func Classify(command string) domain.CommandClass {
	c := strings.ToLower(strings.TrimSpace(command))
	for _, p := range configPrefixes {
		if strings.HasPrefix(c, p) {
			return domain.ClassConfig
		}
	}
	for _, p := range diagnosticPrefixes {
		if strings.HasPrefix(c, p) {
			return domain.ClassDiagnostic
		}
	}
	return domain.ClassStatus
}
