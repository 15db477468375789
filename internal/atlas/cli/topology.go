package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ospfatlas/internal/atlas/domain"
)

func newTopologyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topology",
		Short: "Inspect the topology baseline and edit the what-if draft",
	}
	cmd.AddCommand(newTopologyBuildCmd())
	cmd.AddCommand(newTopologyShowCmd())
	cmd.AddCommand(newDraftCmd())
	return cmd
}

func newTopologyBuildCmd() *cobra.Command {
	var devices []string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a fresh baseline from stored collection output",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string][]string{}
			if len(devices) > 0 {
				payload["device_ids"] = devices
			}
			var snap domain.TopologySnapshot
			if err := newClient().call("POST", "/api/topology/build", payload, &snap); err != nil {
				return err
			}
			if !jsonOutput {
				printSnapshot(&snap)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&devices, "device", nil, "restrict the build to these devices (repeatable)")
	return cmd
}

func newTopologyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current baseline",
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap domain.TopologySnapshot
			if err := newClient().call("GET", "/api/topology/baseline", nil, &snap); err != nil {
				return err
			}
			if !jsonOutput {
				printSnapshot(&snap)
			}
			return nil
		},
	}
}

func newDraftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Manage the single what-if draft",
	}

	var actor string
	create := &cobra.Command{
		Use:   "create",
		Short: "Open the draft as a clone of the baseline",
		RunE: func(cmd *cobra.Command, args []string) error {
			var draft domain.DraftTopology
			if err := newClient().call("POST", "/api/topology/draft", map[string]string{"actor": actor}, &draft); err != nil {
				return err
			}
			if !jsonOutput {
				fmt.Printf("Draft %s created from baseline of %s\n", draft.ID, draft.Snapshot.GeneratedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	create.Flags().StringVar(&actor, "actor", "", "who owns this draft")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the open draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			var draft domain.DraftTopology
			if err := newClient().call("GET", "/api/topology/draft", nil, &draft); err != nil {
				return err
			}
			if !jsonOutput {
				fmt.Printf("Draft %s (actor %q, created %s)\n", draft.ID, draft.Actor, draft.CreatedAt.Format("2006-01-02 15:04:05"))
				printSnapshot(draft.Snapshot)
			}
			return nil
		},
	}

	discard := &cobra.Command{
		Use:   "discard",
		Short: "Discard the open draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().call("DELETE", "/api/topology/draft", nil, nil); err != nil {
				return err
			}
			if !jsonOutput {
				fmt.Println("Draft discarded.")
			}
			return nil
		},
	}

	var (
		source string
		target string
		iface  string
		cost   int
	)
	setCost := &cobra.Command{
		Use:   "set-cost",
		Short: "Set one directed edge cost in the draft",
		Example: `  oactl topology draft set-cost --source core-fr-01 --target core-de-02 --cost 500
  oactl topology draft set-cost --source core-fr-01 --target core-de-02 --interface GigabitEthernet0/1 --cost 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{
				"source": source,
				"target": target,
				"cost":   cost,
			}
			if iface != "" {
				payload["source_interface"] = iface
			}
			var draft domain.DraftTopology
			if err := newClient().call("PUT", "/api/topology/draft/edge", payload, &draft); err != nil {
				return err
			}
			if !jsonOutput {
				fmt.Printf("Edge %s -> %s set to cost %d\n", source, target, cost)
			}
			return nil
		},
	}
	setCost.Flags().StringVar(&source, "source", "", "edge source device id")
	setCost.Flags().StringVar(&target, "target", "", "edge target device id")
	setCost.Flags().StringVar(&iface, "interface", "", "source interface (required for parallel links)")
	setCost.Flags().IntVar(&cost, "cost", 0, "new OSPF cost")
	_ = setCost.MarkFlagRequired("source")
	_ = setCost.MarkFlagRequired("target")
	_ = setCost.MarkFlagRequired("cost")

	cmd.AddCommand(create, show, discard, setCost)
	return cmd
}

func newImpactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "impact",
		Short: "Diff shortest paths between the baseline and the open draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			var report domain.ImpactReport
			if err := newClient().call("POST", "/api/impact", nil, &report); err != nil {
				return err
			}
			if jsonOutput {
				return nil
			}
			fmt.Printf("Blast radius:      %s\n", report.BlastRadius)
			fmt.Printf("Comparable pairs:  %d\n", report.ComparablePairs)
			fmt.Printf("Changed pairs:     %d\n", len(report.ChangedPairs))
			if len(report.ImpactedCountries) > 0 {
				fmt.Printf("Countries:         %v\n", report.ImpactedCountries)
			}
			for _, ch := range report.ChangedPairs {
				if ch.NewlyUnreachable {
					fmt.Printf("  %s -> %s: cost %d -> UNREACHABLE\n", ch.Source, ch.Target, ch.BaselineCost)
					continue
				}
				fmt.Printf("  %s -> %s: cost %d -> %d, path %v -> %v\n",
					ch.Source, ch.Target, ch.BaselineCost, ch.DraftCost, ch.BaselinePath, ch.DraftPath)
			}
			return nil
		},
	}
}

func printSnapshot(snap *domain.TopologySnapshot) {
	fmt.Printf("Snapshot of %s: %d nodes, %d edges, %d physical links\n",
		snap.GeneratedAt.Format("2006-01-02 15:04:05"), len(snap.Nodes), len(snap.Edges), len(snap.PhysicalLinks))
	for _, pl := range snap.PhysicalLinks {
		marker := ""
		if pl.IsAsymmetric {
			marker = "  (asymmetric)"
		}
		fmt.Printf("  %s:%s <-> %s:%s  cost %d/%d%s\n",
			pl.NodeA, pl.InterfaceA, pl.NodeB, pl.InterfaceB, pl.CostAToB, pl.CostBToA, marker)
	}
	unpaired := 0
	for _, e := range snap.Edges {
		if e.Status == domain.EdgeUnpaired {
			unpaired++
		}
	}
	if unpaired > 0 {
		fmt.Printf("  %d unpaired directed edges\n", unpaired)
	}
	if len(snap.Excluded) > 0 {
		fmt.Println("Excluded devices:")
		for _, x := range snap.Excluded {
			fmt.Printf("  %s: %s\n", x.DeviceID, x.Reason)
		}
	}
}
