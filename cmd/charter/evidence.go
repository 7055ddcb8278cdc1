package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/charter/pkg/cli"
	"mercator-hq/charter/pkg/config"
	"mercator-hq/charter/pkg/evidence"
	"mercator-hq/charter/pkg/evidence/export"
	"mercator-hq/charter/pkg/evidence/query"
	"mercator-hq/charter/pkg/governance"
)

var evidenceFlags struct {
	timeRange string
	kind      string
	subject   string
	org       string
	actor     string
	outcome   string
	limit     int
	offset    int
	sort      string
	format    string
	output    string
}

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Query the governance evidence trail",
	Long: `Query and export the append-only evidence trail of governance actions:
policy generation, redlines, approval decisions, escalations, clause edits,
document mappings and framework updates.

Subcommands:
  query   - Query evidence records with filters
  report  - Count records per kind and outcome`,
}

var evidenceQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query evidence records",
	Long: `Query evidence records with filters.

Time Range Format:
  RFC3339 interval format: "start/end"
  Example: "2026-09-01T00:00:00Z/2026-10-01T00:00:00Z"

Examples:
  # Everything that happened to one policy
  charter evidence query --subject 3f2a...

  # Approval decisions by one approver
  charter evidence query --kind approval_processed --actor "Dr. Lee"

  # Export a month to CSV for the board
  charter evidence query --time-range "2026-09-01T00:00:00Z/2026-10-01T00:00:00Z" \
    --format csv --output september.csv`,
	Args: cobra.NoArgs,
	RunE: queryEvidence,
}

var evidenceReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Count evidence records per kind",
	Args:  cobra.NoArgs,
	RunE:  reportEvidence,
}

func init() {
	rootCmd.AddCommand(evidenceCmd)
	evidenceCmd.AddCommand(evidenceQueryCmd, evidenceReportCmd)

	evidenceCmd.PersistentFlags().StringVar(&evidenceFlags.timeRange, "time-range", "", "time range (RFC3339 interval: start/end)")
	evidenceCmd.PersistentFlags().StringVar(&evidenceFlags.org, "org", "", "filter by organization ID")

	evidenceQueryCmd.Flags().StringVar(&evidenceFlags.kind, "kind", "", "filter by kind (policy_generated, approval_processed, ...)")
	evidenceQueryCmd.Flags().StringVar(&evidenceFlags.subject, "subject", "", "filter by policy, document or clause ID")
	evidenceQueryCmd.Flags().StringVar(&evidenceFlags.actor, "actor", "", "filter by approver or author")
	evidenceQueryCmd.Flags().StringVar(&evidenceFlags.outcome, "outcome", "", "filter by outcome (success, error)")
	evidenceQueryCmd.Flags().IntVar(&evidenceFlags.limit, "limit", 0, "max results (default from evidence.query.default_limit)")
	evidenceQueryCmd.Flags().IntVar(&evidenceFlags.offset, "offset", 0, "pagination offset")
	evidenceQueryCmd.Flags().StringVar(&evidenceFlags.sort, "sort", "desc", "sort by time: asc, desc")
	evidenceQueryCmd.Flags().StringVar(&evidenceFlags.format, "format", "text", "output format: text, json, csv")
	evidenceQueryCmd.Flags().StringVarP(&evidenceFlags.output, "output", "o", "", "output file (default: stdout)")

	evidenceReportCmd.Flags().StringVar(&evidenceFlags.format, "format", "text", "output format: text, json")
}

// parseTimeRange parses an RFC 3339 "start/end" interval.
func parseTimeRange(s string) (start, end *time.Time, err error) {
	if s == "" {
		return nil, nil, nil
	}
	from, to, ok := strings.Cut(s, "/")
	if !ok {
		return nil, nil, cli.Usagef("invalid time range %q (expected: start/end)", s)
	}
	st, err := time.Parse(time.RFC3339, from)
	if err != nil {
		return nil, nil, cli.Usagef("invalid start time: %v", err)
	}
	et, err := time.Parse(time.RFC3339, to)
	if err != nil {
		return nil, nil, cli.Usagef("invalid end time: %v", err)
	}
	return &st, &et, nil
}

// openEvidenceForQuery opens the configured evidence storage without the
// rest of the app.
func openEvidenceForQuery() (*config.Config, evidence.Storage, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Evidence.Enabled {
		return nil, nil, cli.NewConfigError("evidence.enabled", "evidence recording is disabled")
	}
	store, err := openEvidence(&cfg.Evidence)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func queryEvidence(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(evidenceFlags.format, cli.FormatText, cli.FormatJSON, cli.FormatCSV)
	if err != nil {
		return err
	}

	q := &evidence.Query{
		Kind:      evidence.Kind(evidenceFlags.kind),
		SubjectID: evidenceFlags.subject,
		OrgID:     evidenceFlags.org,
		Actor:     evidenceFlags.actor,
		Outcome:   evidenceFlags.outcome,
		Limit:     evidenceFlags.limit,
		Offset:    evidenceFlags.offset,
		SortOrder: evidenceFlags.sort,
	}
	if q.StartTime, q.EndTime, err = parseTimeRange(evidenceFlags.timeRange); err != nil {
		return err
	}

	cfg, store, err := openEvidenceForQuery()
	if err != nil {
		return err
	}
	defer store.Close()

	limits := query.Limits{Default: cfg.Evidence.Query.DefaultLimit, Max: cfg.Evidence.Query.MaxLimit}
	limits.ApplyDefaults(q)
	if err := limits.Validate(q); err != nil {
		return governance.Wrap(governance.KindValidation, "query evidence", err)
	}

	ctx := commandContext(cmd)
	records, err := store.Query(ctx, q)
	if err != nil {
		return cli.NewCommandError("evidence", fmt.Errorf("query failed: %w", err))
	}

	out := cmd.OutOrStdout()
	if evidenceFlags.output != "" {
		f, err := os.Create(evidenceFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch format {
	case cli.FormatJSON:
		return export.NewJSONExporter(true).Export(ctx, records, out)
	case cli.FormatCSV:
		return export.NewCSVExporter(true).Export(ctx, records, out)
	}
	printEvidence(out, records, q)
	return nil
}

func printEvidence(w io.Writer, records []*evidence.Record, q *evidence.Query) {
	if q.StartTime != nil && q.EndTime != nil {
		fmt.Fprintf(w, "Time range: %s to %s\n", q.StartTime.Format(time.RFC3339), q.EndTime.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Records: %d\n", len(records))
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found.")
		return
	}
	fmt.Fprintln(w)
	for _, r := range records {
		fmt.Fprintf(w, "%s  %-20s %-8s %s", r.RecordedAt.Format(time.RFC3339), r.Kind, r.Outcome, r.SubjectID)
		if r.Actor != "" {
			fmt.Fprintf(w, "  by %s", r.Actor)
			if r.Role != "" {
				fmt.Fprintf(w, " (%s)", r.Role)
			}
		}
		fmt.Fprintln(w)
		if r.Summary != "" {
			fmt.Fprintf(w, "    %s\n", r.Summary)
		}
		if r.Error != "" {
			fmt.Fprintf(w, "    error: %s\n", r.Error)
		}
	}
}

// kindCount is one row of the evidence report.
type kindCount struct {
	Kind    evidence.Kind `json:"kind"`
	Success int64         `json:"success"`
	Error   int64         `json:"error"`
}

func reportEvidence(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(evidenceFlags.format)
	if err != nil {
		return err
	}
	start, end, err := parseTimeRange(evidenceFlags.timeRange)
	if err != nil {
		return err
	}

	_, store, err := openEvidenceForQuery()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := commandContext(cmd)
	rows, err := countEvidence(ctx, store, evidenceFlags.org, start, end)
	if err != nil {
		return err
	}

	return cli.NewPrinter(cmd.OutOrStdout(), format).Print(rows, func(w io.Writer) error {
		fmt.Fprintf(w, "%-22s %8s %8s\n", "KIND", "SUCCESS", "ERROR")
		var ok, failed int64
		for _, r := range rows {
			fmt.Fprintf(w, "%-22s %8d %8d\n", r.Kind, r.Success, r.Error)
			ok += r.Success
			failed += r.Error
		}
		fmt.Fprintf(w, "%-22s %8d %8d\n", "total", ok, failed)
		return nil
	})
}

func countEvidence(ctx context.Context, store evidence.Storage, org string, start, end *time.Time) ([]kindCount, error) {
	rows := make([]kindCount, 0, len(evidence.Kinds()))
	for _, k := range evidence.Kinds() {
		row := kindCount{Kind: k}
		for _, outcome := range []string{evidence.OutcomeSuccess, evidence.OutcomeError} {
			n, err := store.Count(ctx, &evidence.Query{Kind: k, OrgID: org, Outcome: outcome, StartTime: start, EndTime: end})
			if err != nil {
				return nil, cli.NewCommandError("evidence", fmt.Errorf("count failed: %w", err))
			}
			if outcome == evidence.OutcomeSuccess {
				row.Success = n
			} else {
				row.Error = n
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
