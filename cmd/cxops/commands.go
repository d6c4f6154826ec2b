package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/cxops/internal/config"
	"github.com/kalambet/cxops/internal/contacts"
	"github.com/kalambet/cxops/internal/dashboard"
	"github.com/kalambet/cxops/internal/lists"
	"github.com/kalambet/cxops/internal/recordings"
	"github.com/kalambet/cxops/internal/report"
	"github.com/kalambet/cxops/internal/schedule"
)

const cliTimeLayout = "2006-01-02T15:04"

// --- report ---

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Run and inspect report jobs",
}

var reportRunCmd = &cobra.Command{
	Use:   "run <template-id>",
	Short: "Run a report job end to end and save the resulting CSV",
	Long: `Run a report job end to end and save the resulting CSV.

Submits the template, polls until the platform finishes generating the
report, then downloads and decodes the result file.

Examples:
  cxops report run 12034
  cxops report run 12034 --param "campaign=spring" --interval 10s --max-polls 40`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		param, _ := cmd.Flags().GetString("param")
		interval, _ := cmd.Flags().GetDuration("interval")
		maxPolls, _ := cmd.Flags().GetInt("max-polls")

		client, cfg, err := tenantClient(cmd.Context())
		if err != nil {
			return err
		}
		if interval <= 0 {
			interval = cfg.PollInterval()
		}
		if maxPolls <= 0 {
			maxPolls = cfg.Report.MaxPolls
		}

		runner := report.NewRunner(client, report.Options{PollInterval: interval, MaxPolls: maxPolls})

		printStep("Running report template %s...", args[0])
		payload, err := runner.Run(cmd.Context(), report.Request{
			TemplateID:      args[0],
			AdditionalParam: param,
		})
		if err != nil {
			return err
		}

		path, err := writeExport(cfg, payload.FileName, payload.Content)
		if err != nil {
			return err
		}
		printSuccess("Report saved to %s", path)
		return nil
	},
}

var reportStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Check the state of a submitted report job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := tenantClient(cmd.Context())
		if err != nil {
			return err
		}

		runner := report.NewRunner(client, report.Options{})
		status, err := runner.CheckStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		printStatus("Job", "%s", args[0])
		printStatus("State", "%s", status.State)
		if status.ResultFileURL != "" {
			printStatus("Result", "%s", status.ResultFileURL)
		}
		return nil
	},
}

var reportDownloadCmd = &cobra.Command{
	Use:   "download <result-file-url>",
	Short: "Download and decode a finished report file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := tenantClient(cmd.Context())
		if err != nil {
			return err
		}

		runner := report.NewRunner(client, report.Options{})
		payload, err := runner.FetchFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		path, err := writeExport(cfg, payload.FileName, payload.Content)
		if err != nil {
			return err
		}
		printSuccess("Report saved to %s", path)
		return nil
	},
}

func init() {
	reportRunCmd.Flags().String("param", "", "additional request parameter forwarded verbatim")
	reportRunCmd.Flags().Duration("interval", 0, "poll interval (default from config)")
	reportRunCmd.Flags().Int("max-polls", 0, "poll budget before giving up (default from config)")
	reportCmd.AddCommand(reportRunCmd)
	reportCmd.AddCommand(reportStatusCmd)
	reportCmd.AddCommand(reportDownloadCmd)
}

// --- lists ---

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "Export and clean up call lists",
}

var listsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the tenant's call lists to CSV",
	Long: `Export the tenant's call lists to CSV.

With --deactivated only the IDs of deactivated lists are exported, in
the format accepted by "lists delete".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deactivated, _ := cmd.Flags().GetBool("deactivated")

		client, cfg, err := tenantClient(cmd.Context())
		if err != nil {
			return err
		}

		records, err := lists.Fetch(cmd.Context(), client)
		if err != nil {
			return err
		}

		var data []byte
		var name string
		if deactivated {
			var count int
			data, count, err = lists.DeactivatedCSV(records)
			if err != nil {
				return err
			}
			if count == 0 {
				printWarning("No deactivated call lists found")
				return nil
			}
			name = lists.ExportFileName("deactivated_call_lists", time.Now())
			printStep("Found %d deactivated call lists", count)
		} else {
			data, err = lists.FullCSV(records)
			if err != nil {
				return err
			}
			name = lists.ExportFileName("call_lists", time.Now())
		}

		path, err := writeExport(cfg, name, data)
		if err != nil {
			return err
		}
		printSuccess("Call lists exported to %s", path)
		return nil
	},
}

var listsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete call lists by ID from a CSV export",
	Long: `Delete call lists by ID from a CSV export.

Each list is deactivated and force-deleted. Progress is tracked in a
resume log, so an interrupted run picks up where it left off. The log
is removed once every list in the file has been processed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		logPath, _ := cmd.Flags().GetString("resume-log")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("opening %s: %w", file, err)
		}
		ids, err := lists.ReadIDs(f)
		f.Close()
		if err != nil {
			return err
		}

		client, cfg, err := tenantClient(cmd.Context())
		if err != nil {
			return err
		}
		if logPath == "" {
			logPath = filepath.Join(cfg.Output.Dir, "call_list_delete.log")
		}

		deleter := lists.NewDeleter(client, lists.NewResumeLog(logPath))
		deleter.Progress = func(done, total int, id string) {
			printStep("[%d/%d] list %s", done, total, id)
		}

		summary, err := deleter.Run(cmd.Context(), ids)
		if err != nil {
			return err
		}

		printStatus("Deleted", "%d", summary.Deleted)
		printStatus("Failed", "%d", summary.Failed)
		printStatus("Skipped", "%d", summary.Skipped)
		for _, r := range summary.Results {
			if r.Note != "" {
				printWarning("list %s: %s", r.ListID, r.Note)
			}
		}
		if summary.Aborted {
			printWarning("Run aborted on an expired token; re-run to resume from %s", logPath)
			return fmt.Errorf("delete run aborted")
		}
		printSuccess("Delete run complete")
		return nil
	},
}

func init() {
	listsExportCmd.Flags().Bool("deactivated", false, "export only deactivated list IDs")
	listsDeleteCmd.Flags().String("file", "", "CSV file of list IDs (from lists export --deactivated)")
	listsDeleteCmd.Flags().String("resume-log", "", "resume log path (default: <output dir>/call_list_delete.log)")
	listsCmd.AddCommand(listsExportCmd)
	listsCmd.AddCommand(listsDeleteCmd)
}

// --- contacts ---

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Export completed contacts",
}

var contactsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export completed contacts in a time window to CSV",
	Long: `Export completed contacts in a time window to CSV.

Examples:
  cxops contacts export --start 2026-08-30T00:00 --end 2026-08-31T00:00
  cxops contacts export --start 2026-08-30T00:00 --end 2026-08-31T00:00 --all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		startRaw, _ := cmd.Flags().GetString("start")
		endRaw, _ := cmd.Flags().GetString("end")
		all, _ := cmd.Flags().GetBool("all")
		top, _ := cmd.Flags().GetInt("top")

		start, err := time.Parse(cliTimeLayout, startRaw)
		if err != nil {
			return fmt.Errorf("invalid --start (want %s): %w", cliTimeLayout, err)
		}
		end, err := time.Parse(cliTimeLayout, endRaw)
		if err != nil {
			return fmt.Errorf("invalid --end (want %s): %w", cliTimeLayout, err)
		}
		if !end.After(start) {
			return fmt.Errorf("--end must be after --start")
		}

		client, cfg, err := tenantClient(cmd.Context())
		if err != nil {
			return err
		}
		if top <= 0 {
			top = cfg.Contacts.Top
		}

		fetcher := contacts.NewFetcher(client, cfg.PagePause())

		printStep("Fetching completed contacts %s to %s...", startRaw, endRaw)
		records, err := fetcher.Fetch(cmd.Context(), contacts.Params{
			Start:    start,
			End:      end,
			Top:      top,
			FetchAll: all,
		})
		if err != nil {
			return err
		}
		if len(records) == 0 {
			printWarning("No completed contacts in the window")
			return nil
		}

		data, err := contacts.CSV(records)
		if err != nil {
			return err
		}
		path, err := writeExport(cfg, lists.ExportFileName("completed_contacts", time.Now()), data)
		if err != nil {
			return err
		}
		printSuccess("%d contacts exported to %s", len(records), path)
		return nil
	},
}

func init() {
	contactsExportCmd.Flags().String("start", "", "window start, e.g. 2026-08-30T00:00")
	contactsExportCmd.Flags().String("end", "", "window end, e.g. 2026-08-31T00:00")
	contactsExportCmd.Flags().Bool("all", false, "page through the whole window")
	contactsExportCmd.Flags().Int("top", 0, "page size (default from config)")
	contactsExportCmd.MarkFlagRequired("start")
	contactsExportCmd.MarkFlagRequired("end")
	contactsCmd.AddCommand(contactsExportCmd)
}

// --- recordings ---

var recordingsCmd = &cobra.Command{
	Use:   "recordings",
	Short: "Download call recordings",
}

var recordingsDownloadCmd = &cobra.Command{
	Use:   "download [call-id...]",
	Short: "Download call recordings as MP4",
	Long: `Download call recordings as MP4.

A single call ID is saved as <call-id>.mp4. Multiple IDs, or a CSV of
IDs via --file, are packed into a zip archive. Bulk downloads are
capped at 50 recordings per run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		ids := args
		if file != "" {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("opening %s: %w", file, err)
			}
			ids, err = recordings.ReadCallIDs(f)
			f.Close()
			if err != nil {
				return err
			}
		}
		if len(ids) == 0 {
			return fmt.Errorf("provide call IDs as arguments or via --file")
		}
		if len(ids) > recordings.MaxBulkCallIDs {
			return fmt.Errorf("at most %d recordings per run, got %d", recordings.MaxBulkCallIDs, len(ids))
		}

		client, cfg, err := tenantClient(cmd.Context())
		if err != nil {
			return err
		}
		dl := recordings.NewDownloader(client, cfg.Media.BaseURL)

		if len(ids) == 1 {
			rec, err := dl.Download(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			path, err := writeExport(cfg, rec.FileName, rec.Content)
			if err != nil {
				return err
			}
			printSuccess("Recording saved to %s", path)
			return nil
		}

		printStep("Downloading %d recordings...", len(ids))
		res, err := dl.DownloadBulk(cmd.Context(), ids)
		if err != nil {
			return err
		}
		for _, id := range res.Missing {
			printWarning("no media for call %s", id)
		}
		if res.Fetched == 0 {
			return fmt.Errorf("none of the %d recordings could be fetched", len(ids))
		}

		name := lists.ExportFileName("recordings", time.Now())
		name = name[:len(name)-len(".csv")] + ".zip"
		path, err := writeExport(cfg, name, res.Archive)
		if err != nil {
			return err
		}
		printSuccess("%d recordings saved to %s", res.Fetched, path)
		return nil
	},
}

func init() {
	recordingsDownloadCmd.Flags().String("file", "", "headerless CSV of call IDs")
	recordingsCmd.AddCommand(recordingsDownloadCmd)
}

// --- dashboard ---

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Watch live queue and agent activity",
	Long: `Watch live queue and agent activity.

Prints a snapshot per interval with deltas against the previous one.
Runs until interrupted unless --count is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		count, _ := cmd.Flags().GetInt("count")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client, _, err := tenantClient(ctx)
		if err != nil {
			return err
		}

		agg := dashboard.NewAggregator(client)
		return agg.Watch(ctx, interval, count, printSnapshot)
	},
}

func printSnapshot(snap *dashboard.Snapshot, delta *dashboard.Delta, err error) {
	if err != nil {
		printError("snapshot failed: %v", err)
		return
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", colorize(colorBold, snap.TakenAt.Format("15:04:05")))
	printStatus("In queue", "%d%s", snap.ContactsInQueue, deltaSuffix(delta, func(d *dashboard.Delta) int { return d.ContactsInQueue }))
	printStatus("Active contacts", "%d%s", snap.ActiveContacts, deltaSuffix(delta, func(d *dashboard.Delta) int { return d.ActiveContacts }))
	printStatus("Agents available", "%d%s", snap.AgentsAvailable, deltaSuffix(delta, func(d *dashboard.Delta) int { return d.AgentsAvailable }))
	printStatus("Agents unavailable", "%d", snap.AgentsUnavailable)
	for state, n := range snap.AgentStates {
		printStatus("  "+state, "%d", n)
	}
}

func deltaSuffix(delta *dashboard.Delta, pick func(*dashboard.Delta) int) string {
	if delta == nil {
		return ""
	}
	v := pick(delta)
	switch {
	case v > 0:
		return colorize(colorGreen, fmt.Sprintf(" (+%d)", v))
	case v < 0:
		return colorize(colorRed, fmt.Sprintf(" (%d)", v))
	}
	return ""
}

func init() {
	dashboardCmd.Flags().Duration("interval", 5*time.Second, "time between snapshots (e.g. 5s, 1m)")
	dashboardCmd.Flags().Int("count", 0, "number of snapshots (0 = until interrupted)")
}

// --- schedule ---

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Scheduled contact exports",
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daily export schedule in the foreground",
	Long: `Run the daily export schedule in the foreground.

Exports completed contacts twice a day: the overnight window at 02:15
and the extended morning window at 08:15.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client, cfg, err := tenantClient(ctx)
		if err != nil {
			return err
		}

		fetcher := contacts.NewFetcher(client, cfg.PagePause())
		sch := schedule.New(fetcher, cfg.Output.Dir)

		printStep("Export schedule running; Ctrl-C to stop")
		return sch.Start(ctx)
	},
}

var scheduleNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Run all export windows immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := tenantClient(cmd.Context())
		if err != nil {
			return err
		}

		fetcher := contacts.NewFetcher(client, cfg.PagePause())
		sch := schedule.New(fetcher, cfg.Output.Dir)

		for _, w := range schedule.DefaultWindows {
			printStep("Exporting window ending at %02d:00...", w.EndHour)
			if err := sch.RunWindow(cmd.Context(), w); err != nil {
				return err
			}
		}
		printSuccess("All windows exported")
		return nil
	},
}

func init() {
	scheduleCmd.AddCommand(scheduleRunCmd)
	scheduleCmd.AddCommand(scheduleNowCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
