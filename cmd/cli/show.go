package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/lgsf-dashboard/logbooks/internal/domain"
	apperrors "github.com/lgsf-dashboard/logbooks/internal/errors"
	"github.com/lgsf-dashboard/logbooks/internal/output"
	"github.com/lgsf-dashboard/logbooks/internal/services"
	"github.com/lgsf-dashboard/logbooks/pkg/client"
)

var failingCmd = &cobra.Command{
	Use:   "failing",
	Short: "Show councils whose latest run failed",
	Long:  `Display the failing councils from the last aggregation, read from the output directory or the API server.`,
	Args:  cobra.NoArgs,
	RunE:  runFailing,
}

var logbookCmd = &cobra.Command{
	Use:   "logbook [council]",
	Short: "Show one council's runs",
	Long:  `Display the retained runs of a single council from the last aggregation.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runLogBook,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show archived aggregation passes",
	Long:  `List archived aggregation passes, newest first. Requires STORAGE_TYPE or --remote.`,
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "Summarise services.csv",
	Long:  `Count services by service name and CMS type and write servicesSummary.json next to the other outputs.`,
	Args:  cobra.NoArgs,
	RunE:  runServices,
}

func printJSON(v interface{}) error {
	data, err := output.Encode(v)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runFailing(cmd *cobra.Command, args []string) error {
	var (
		failing []domain.FailingEntry
		err     error
	)
	if remote {
		failing, err = client.NewClient(cfg.APIEndpoint).GetFailing(cmd.Context())
	} else {
		failing, err = output.ReadFailing(cfg.OutputDir)
	}
	if err != nil {
		return fmt.Errorf("failed to get failing councils: %w", err)
	}

	if outputJSON {
		return printJSON(failing)
	}

	fmt.Printf("\nFailing councils: %d\n\n", len(failing))
	if len(failing) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Council", "Status", "Start", "Duration", "Error"})
	for _, f := range failing {
		run := f.LatestRun
		table.Append([]string{
			f.CouncilID,
			run.StatusCode.String(),
			timestampCell(run.Start),
			durationCell(run.Duration),
			truncate(run.Errors, 60),
		})
	}
	table.Render()

	return nil
}

func runLogBook(cmd *cobra.Command, args []string) error {
	councilID := args[0]

	var (
		lb  *domain.LogBook
		err error
	)
	if remote {
		lb, err = client.NewClient(cfg.APIEndpoint).GetLogBook(cmd.Context(), councilID)
	} else {
		lb, err = findLocalLogBook(councilID)
	}
	if err != nil {
		return fmt.Errorf("failed to get logbook: %w", err)
	}

	if outputJSON {
		return printJSON(lb)
	}

	fmt.Printf("\nLogbook: %s\n", lb.CouncilID)
	if lb.Missing {
		fmt.Println("No logbook document exists for this council.")
		return nil
	}
	fmt.Printf("Runs: %d\n\n", len(lb.LogRuns))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "Status", "Start", "End", "Duration", "Error"})
	for i, run := range lb.LogRuns {
		if run == nil {
			table.Append([]string{strconv.Itoa(i + 1), "-", "-", "-", "-", ""})
			continue
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			run.StatusCode.String(),
			timestampCell(run.Start),
			timestampCell(run.End),
			durationCell(run.Duration),
			truncate(run.Errors, 60),
		})
	}
	table.Render()

	return nil
}

func findLocalLogBook(councilID string) (*domain.LogBook, error) {
	logbooks, err := output.ReadLogBooks(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	for i := range logbooks {
		if logbooks[i].CouncilID == councilID {
			return &logbooks[i], nil
		}
	}
	return nil, apperrors.NewNotFoundError("logbook " + councilID)
}

func runHistory(cmd *cobra.Command, args []string) error {
	summaries, err := listAggregations(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list aggregations: %w", err)
	}

	if outputJSON {
		return printJSON(summaries)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Generated", "Source", "Window", "Logbooks", "Failing", "Failed"})
	for _, s := range summaries {
		table.Append([]string{
			s.ID,
			s.GeneratedAt.Format("2006-01-02 15:04:05"),
			s.Source,
			s.Window,
			strconv.Itoa(s.LogBooks),
			strconv.Itoa(s.Failing),
			strconv.Itoa(s.FailedCouncils),
		})
	}
	table.Render()

	return nil
}

func listAggregations(ctx context.Context) ([]domain.AggregationSummary, error) {
	if remote {
		return client.NewClient(cfg.APIEndpoint).ListAggregations(ctx, limit)
	}

	if err := cfg.ValidateStorage(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	store, err := getStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if store == nil {
		return nil, apperrors.NewBadRequestError("no archive configured; set STORAGE_TYPE or use --remote")
	}
	defer store.Close()

	return store.ListAggregations(ctx, limit)
}

func runServices(cmd *cobra.Command, args []string) error {
	rows, err := services.Load(cfg.ServicesCSV, logger)
	if err != nil {
		return fmt.Errorf("failed to load services: %w", err)
	}
	summary := services.Summarize(rows)

	if err := output.WriteServicesSummary(cfg.OutputDir, summary); err != nil {
		return fmt.Errorf("failed to write services summary: %w", err)
	}

	if outputJSON {
		return printJSON(summary)
	}

	fmt.Printf("\n%d services\n\n", len(rows))
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Service", "CMS", "Count"})
	for _, s := range summary {
		table.Append([]string{s.ServiceName, s.CMSType, strconv.Itoa(s.Count)})
	}
	table.Render()

	return nil
}

func timestampCell(ts *domain.Timestamp) string {
	if ts == nil {
		return "-"
	}
	return ts.String()
}

func durationCell(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', -1, 64) + "s"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
