package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverAddr string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "oactl",
	Short: "Control client for the ospfatlas collection server",
	Long: `oactl talks to a running ospfatlas server: submit and watch
collection jobs, inspect the topology baseline, edit the what-if draft
and run impact analysis.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", envOr("OSPFATLAS_SERVER", "http://localhost:8443"),
		"ospfatlas server base URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON responses")

	rootCmd.AddCommand(newJobsCmd())
	rootCmd.AddCommand(newTopologyCmd())
	rootCmd.AddCommand(newImpactCmd())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
