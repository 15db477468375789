package cli

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"ospfatlas/internal/atlas/broadcast"
	"ospfatlas/internal/atlas/domain"
	"ospfatlas/internal/atlas/executor"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage collection jobs",
	}
	cmd.AddCommand(newJobsSubmitCmd())
	cmd.AddCommand(newJobsListCmd())
	cmd.AddCommand(newJobsGetCmd())
	cmd.AddCommand(newJobsStopCmd())
	cmd.AddCommand(newJobsWatchCmd())
	cmd.AddCommand(newJobsDeleteCmd())
	return cmd
}

func newJobsSubmitCmd() *cobra.Command {
	var (
		devices        []string
		commands       []string
		batchSize      int
		devicesPerHour int
		actor          string
		watch          bool
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new collection job",
		Example: `  oactl jobs submit --device core-fr-01 --device core-de-02
  oactl jobs submit --device edge-uk-07 --batch-size 10 --devices-per-hour 120 --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := executor.SubmitRequest{
				Actor:          actor,
				DeviceIDs:      devices,
				Commands:       commands,
				BatchSize:      batchSize,
				DevicesPerHour: devicesPerHour,
			}
			var job domain.AutomationJob
			if err := newClient().call("POST", "/api/jobs", req, &job); err != nil {
				return err
			}
			if !jsonOutput {
				fmt.Printf("Job %s submitted (%d devices, batch %d, %d devices/hour)\n",
					job.ID, len(job.DeviceIDs), job.BatchSize, job.DevicesPerHour)
			}
			if watch {
				return watchJob(job.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&devices, "device", nil, "device id to collect from (repeatable)")
	cmd.Flags().StringArrayVar(&commands, "command", nil, "override the default command set (repeatable)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "devices per batch (0 = server default)")
	cmd.Flags().IntVar(&devicesPerHour, "devices-per-hour", 0, "rate ceiling (0 = server default)")
	cmd.Flags().StringVar(&actor, "actor", "", "who is running this collection")
	cmd.Flags().BoolVar(&watch, "watch", false, "stream progress until the job ends")
	_ = cmd.MarkFlagRequired("device")
	return cmd
}

func newJobsListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/jobs"
			if status != "" {
				path += "?status=" + url.QueryEscape(status)
			}
			var jobs []domain.AutomationJob
			if err := newClient().call("GET", path, nil, &jobs); err != nil {
				return err
			}
			if jsonOutput {
				return nil
			}
			if len(jobs) == 0 {
				fmt.Println("No jobs.")
				return nil
			}
			fmt.Printf("%-36s  %-9s  %7s  %7s  %s\n", "ID", "STATUS", "PERCENT", "DEVICES", "STARTED")
			for _, j := range jobs {
				fmt.Printf("%-36s  %-9s  %6.1f%%  %7d  %s\n",
					j.ID, j.Status, j.Percent, len(j.DeviceIDs), j.StartTime.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only show jobs with this status (e.g. RUNNING)")
	return cmd
}

func newJobsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var job domain.AutomationJob
			if err := newClient().call("GET", "/api/jobs/"+args[0], nil, &job); err != nil {
				return err
			}
			if jsonOutput {
				return nil
			}
			printJob(&job)
			return nil
		},
	}
}

func newJobsStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <job-id>",
		Short: "Request a graceful stop of a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().call("POST", "/api/jobs/"+args[0]+"/stop", nil, nil); err != nil {
				return err
			}
			if !jsonOutput {
				fmt.Println("Stop requested. In-flight commands will finish.")
			}
			return nil
		},
	}
}

func newJobsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Remove a finished job from the history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().call("DELETE", "/api/jobs/"+args[0], nil, nil); err != nil {
				return err
			}
			if !jsonOutput {
				fmt.Println("Job deleted.")
			}
			return nil
		},
	}
}

func newJobsWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Stream live progress of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchJob(args[0])
		},
	}
}

// watchJob follows the websocket stream until the job reaches a terminal
// state or the stream closes.
func watchJob(jobID string) error {
	conn, err := newClient().stream(jobID)
	if err != nil {
		return err
	}
	defer conn.Close()

	for {
		var ev broadcast.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}

		switch ev.Type {
		case broadcast.EventSnapshot:
			fmt.Printf("[%s] job %s  %s  %.1f%%\n", ev.At.Format("15:04:05"), ev.JobID, ev.Status, ev.Percent)
		case broadcast.EventDevice:
			if ev.Device != nil {
				fmt.Printf("[%s] device %-20s %-9s %5.1f%%  job %.1f%%\n",
					ev.At.Format("15:04:05"), ev.Device.DeviceID, ev.Device.Status, ev.Device.Percent, ev.Percent)
			}
		case broadcast.EventStatus:
			fmt.Printf("[%s] job status -> %s  (%.1f%%)\n", ev.At.Format("15:04:05"), ev.Status, ev.Percent)
			if ev.Status.IsTerminal() {
				return nil
			}
		}
	}
}

func printJob(job *domain.AutomationJob) {
	fmt.Printf("Job:      %s\n", job.ID)
	if job.Actor != "" {
		fmt.Printf("Actor:    %s\n", job.Actor)
	}
	fmt.Printf("Status:   %s (%.1f%%)\n", job.Status, job.Percent)
	fmt.Printf("Started:  %s\n", job.StartTime.Format("2006-01-02 15:04:05"))
	if job.EndTime != nil {
		fmt.Printf("Ended:    %s (took %s)\n", job.EndTime.Format("2006-01-02 15:04:05"), job.GetDuration().Round(1e9))
	}
	fmt.Printf("Batch:    %d devices, %d devices/hour\n", job.BatchSize, job.DevicesPerHour)

	fmt.Println("\nDevices:")
	ids := make([]string, 0, len(job.DeviceProgress))
	for id := range job.DeviceProgress {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		dp := job.DeviceProgress[id]
		mode := ""
		if dp.Mode != "" {
			mode = " [" + string(dp.Mode) + "]"
		}
		fmt.Printf("  %-20s %-9s %5.1f%%%s\n", dp.DeviceID, dp.Status, dp.Percent, mode)
	}

	if len(job.CountryStats) > 0 {
		fmt.Println("\nCountries:")
		countries := make([]string, 0, len(job.CountryStats))
		for c := range job.CountryStats {
			countries = append(countries, c)
		}
		sort.Strings(countries)
		for _, c := range countries {
			cs := job.CountryStats[c]
			name := c
			if name == "" {
				name = "(unset)"
			}
			fmt.Printf("  %-10s devices %d/%d done, commands %.1f%%\n",
				name, cs.DevicesCompleted+cs.DevicesFailed, cs.DevicesTotal, cs.CommandPercent)
		}
	}

	if len(job.Errors) > 0 {
		fmt.Println("\nErrors:")
		for _, e := range job.Errors {
			fmt.Printf("  %s [%s] %s\n", e.DeviceID, e.Stage, strings.TrimSpace(e.Message))
		}
	}
}
