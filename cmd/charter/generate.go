package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"mercator-hq/charter/pkg/cli"
	"mercator-hq/charter/pkg/policy"
	"mercator-hq/charter/pkg/policy/engine"
)

var generateFlags struct {
	template      string
	profile       string
	jurisdiction  string
	effectiveDate string
	fields        map[string]string
	autoUpdate    bool
	output        string
	format        string
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a draft policy from a library template",
	Long: `Generate assembles a draft policy from a library template and the
clauses whose selection rules the organization profile satisfies.

The profile is a YAML file:

  org_id: district-42
  name: Lakeside Unified School District
  type: District
  state: CA
  student_age_min: 5
  student_age_max: 18
  has_privacy_officer: true

Template tokens that neither the profile nor --field fills are left in
place and listed as fillable fields.

Examples:
  # Generate and print the policy content
  charter generate --template ai-acceptable-use --profile district.yaml

  # Fill extra tokens and write the content to a file
  charter generate --template ai-acceptable-use --profile district.yaml \
    --field aiCoordinator="Director of Technology" --effective-date 2026-08-15 \
    --output policy.md

  # Print the stored policy as JSON
  charter generate --template ai-acceptable-use --profile district.yaml --format json`,
	RunE: generatePolicy,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&generateFlags.template, "template", "t", "", "library template ID (required)")
	generateCmd.Flags().StringVarP(&generateFlags.profile, "profile", "p", "", "organization profile YAML file, - for stdin (required)")
	generateCmd.Flags().StringVar(&generateFlags.jurisdiction, "jurisdiction", "", "jurisdiction (defaults to the profile state)")
	generateCmd.Flags().StringVar(&generateFlags.effectiveDate, "effective-date", "", "effective date (YYYY-MM-DD)")
	generateCmd.Flags().StringToStringVar(&generateFlags.fields, "field", nil, "template token value (key=value, repeatable)")
	generateCmd.Flags().BoolVar(&generateFlags.autoUpdate, "auto-update", false, "apply framework updates to this policy automatically")
	generateCmd.Flags().StringVarP(&generateFlags.output, "output", "o", "", "write policy content to this file")
	generateCmd.Flags().StringVar(&generateFlags.format, "format", "text", "output format: text, json")
}

func generatePolicy(cmd *cobra.Command, args []string) error {
	if generateFlags.template == "" {
		return cli.Usagef("--template is required")
	}
	if generateFlags.profile == "" {
		return cli.Usagef("--profile is required")
	}
	format, err := cli.ParseOutputFormat(generateFlags.format)
	if err != nil {
		return err
	}
	effective, err := parseDate("effective-date", generateFlags.effectiveDate)
	if err != nil {
		return err
	}

	var profile policy.OrganizationProfile
	if err := decodeYAMLFile(cmd, generateFlags.profile, &profile); err != nil {
		return err
	}
	jurisdiction := generateFlags.jurisdiction
	if jurisdiction == "" {
		jurisdiction = profile.State
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		p, err := a.engine.GeneratePolicy(ctx, generateFlags.template, &profile, jurisdiction, engine.GenerateOptions{
			EffectiveDate: effective,
			Fields:        generateFlags.fields,
			AutoUpdate:    generateFlags.autoUpdate,
		})
		if err != nil {
			return err
		}

		if generateFlags.output != "" {
			if err := os.WriteFile(generateFlags.output, []byte(p.Content), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", generateFlags.output, err)
			}
		}

		printer := cli.NewPrinter(cmd.OutOrStdout(), format)
		return printer.Print(p, func(w io.Writer) error {
			printPolicySummary(w, p)
			if generateFlags.output != "" {
				fmt.Fprintf(w, "Content written to %s\n", generateFlags.output)
				return nil
			}
			fmt.Fprintf(w, "\n%s", p.Content)
			return nil
		})
	})
}

func printPolicySummary(w io.Writer, p *policy.Policy) {
	fmt.Fprintf(w, "Policy:    %s\n", p.ID)
	fmt.Fprintf(w, "Title:     %s\n", p.Title)
	fmt.Fprintf(w, "Template:  %s\n", p.TemplateID)
	fmt.Fprintf(w, "Status:    %s (version %d)\n", p.Status, p.Version)
	if len(p.Frameworks) > 0 {
		fmt.Fprintf(w, "Frameworks: %v\n", p.Frameworks)
	}
	if p.NextReviewAt != nil {
		fmt.Fprintf(w, "Next review: %s\n", p.NextReviewAt.Format("2006-01-02"))
	}

	var open []string
	for k, v := range p.FillableFields {
		if v == "" {
			open = append(open, k)
		}
	}
	if len(open) > 0 {
		sort.Strings(open)
		fmt.Fprintf(w, "Unfilled fields: %v\n", open)
	}
}
