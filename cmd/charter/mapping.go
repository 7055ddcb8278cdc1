package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/charter/pkg/cli"
	"mercator-hq/charter/pkg/framework"
)

var mapFlags struct {
	id          string
	org         string
	title       string
	frameworks  []string
	states      []string
	containsPII bool
	studentData bool
	format      string
}

var mapCmd = &cobra.Command{
	Use:   "map FILE",
	Short: "Map a document onto compliance frameworks",
	Long: `Map reads the extracted text of a governance document and maps it onto
the controls of the configured compliance catalogs. The report lists the
controls each framework's text evidences, the coverage per framework, the
uncovered controls ranked by priority, and remediation recommendations.

Without --framework, the document is mapped against every framework in
the catalog.

Examples:
  # Map a handbook against every catalog framework
  charter map handbook.txt --student-data

  # Map against California SOPIPA only and print JSON
  charter map handbook.txt --framework ca-sopipa --format json`,
	Args: cobra.ExactArgs(1),
	RunE: mapDocument,
}

func init() {
	rootCmd.AddCommand(mapCmd)

	mapCmd.Flags().StringVar(&mapFlags.id, "id", "", "document ID (defaults to the file name)")
	mapCmd.Flags().StringVar(&mapFlags.org, "org", "", "organization ID")
	mapCmd.Flags().StringVar(&mapFlags.title, "title", "", "document title")
	mapCmd.Flags().StringSliceVar(&mapFlags.frameworks, "framework", nil, "framework ID to map against (repeatable)")
	mapCmd.Flags().StringSliceVar(&mapFlags.states, "state", nil, "state the document applies in, recorded as evidence (repeatable)")
	mapCmd.Flags().BoolVar(&mapFlags.containsPII, "contains-pii", false, "the document handles personal information")
	mapCmd.Flags().BoolVar(&mapFlags.studentData, "student-data", false, "the document handles student data")
	mapCmd.Flags().StringVar(&mapFlags.format, "format", "text", "output format: text, json")
}

func mapDocument(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(mapFlags.format)
	if err != nil {
		return err
	}
	text, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}

	doc := framework.Document{
		ID:          mapFlags.id,
		OrgID:       mapFlags.org,
		Title:       mapFlags.title,
		Text:        string(text),
		ContainsPII: mapFlags.containsPII,
		StudentData: mapFlags.studentData,
		Frameworks:  mapFlags.frameworks,
		States:      mapFlags.states,
	}
	if doc.ID == "" {
		doc.ID = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		svc, err := a.analysis()
		if err != nil {
			return err
		}
		report, err := svc.MapDocumentToFrameworks(ctx, doc)
		if err != nil {
			return err
		}
		return cli.NewPrinter(cmd.OutOrStdout(), format).Print(report, func(w io.Writer) error {
			printMappingReport(w, report)
			return nil
		})
	})
}

func printMappingReport(w io.Writer, r *framework.MappingReport) {
	fmt.Fprintf(w, "Document: %s\n", r.DocumentID)
	fmt.Fprintf(w, "Confidence: %.2f\n\n", r.ConfidenceScore)

	fmt.Fprintf(w, "%-14s %9s %9s %12s\n", "FRAMEWORK", "COVERED", "CONTROLS", "IMPLEMENTED")
	for _, c := range r.Coverage {
		fmt.Fprintf(w, "%-14s %8.1f%% %9d %11.1f%%\n",
			c.Framework, c.CoveragePercentage, c.TotalControls, c.ImplementationPercentage)
	}

	if len(r.Mappings) > 0 {
		fmt.Fprintln(w, "\nMapped controls:")
		for _, m := range r.Mappings {
			fmt.Fprintf(w, "  %s %s  %s (%.2f)\n", m.Framework, m.ControlID, m.Status, m.Confidence)
		}
	}

	if len(r.Gaps) > 0 {
		fmt.Fprintln(w, "\nGaps:")
		for _, g := range r.Gaps {
			fmt.Fprintf(w, "  [%s] %s %s: %s\n", g.Priority, g.Framework, g.ControlID, g.ControlTitle)
		}
	}

	if len(r.Recommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations:")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(w, "  %s (%s, %s effort, %s)\n", rec.Title, rec.Type, rec.Effort, rec.Timeline)
			fmt.Fprintf(w, "    %s\n", rec.Description)
		}
	}

	fmt.Fprintf(w, "\n%s\n", r.Disclaimer)
}
