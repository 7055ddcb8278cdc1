package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mercator-hq/charter/pkg/cli"
	"mercator-hq/charter/pkg/framework"
)

var frameworkUpdateFlags struct {
	file          string
	framework     string
	version       string
	description   string
	controls      []string
	effectiveDate string
	format        string
}

var frameworkUpdateCmd = &cobra.Command{
	Use:   "framework-update",
	Short: "Apply a framework update to opted-in policies",
	Long: `Framework-update appends a dated update notice to every policy that
opted into automatic updates and references the framework. Policies that
already carry the notice for this framework version are skipped, so the
command can be re-run safely. A failure on one policy does not stop the
others.

The update can be given as a YAML file:

  framework_id: nist-ai-rmf
  version: "1.1"
  description: Generative AI profile folded into the core functions
  affected_controls: [GOVERN-1.2, MAP-1.1]
  effective_date: 2026-07-01T00:00:00Z

Examples:
  charter framework-update --file nist-ai-rmf-1.1.yaml
  charter framework-update --framework nist-ai-rmf --version 1.1 \
    --description "Generative AI profile" --control GOVERN-1.2 --effective-date 2026-07-01`,
	Args: cobra.NoArgs,
	RunE: applyFrameworkUpdate,
}

func init() {
	rootCmd.AddCommand(frameworkUpdateCmd)

	frameworkUpdateCmd.Flags().StringVarP(&frameworkUpdateFlags.file, "file", "f", "", "update YAML file, - for stdin")
	frameworkUpdateCmd.Flags().StringVar(&frameworkUpdateFlags.framework, "framework", "", "framework ID")
	frameworkUpdateCmd.Flags().StringVar(&frameworkUpdateFlags.version, "version", "", "framework version")
	frameworkUpdateCmd.Flags().StringVar(&frameworkUpdateFlags.description, "description", "", "what changed")
	frameworkUpdateCmd.Flags().StringSliceVar(&frameworkUpdateFlags.controls, "control", nil, "affected control ID (repeatable)")
	frameworkUpdateCmd.Flags().StringVar(&frameworkUpdateFlags.effectiveDate, "effective-date", "", "effective date (YYYY-MM-DD)")
	frameworkUpdateCmd.Flags().StringVar(&frameworkUpdateFlags.format, "format", "text", "output format: text, json")
}

func applyFrameworkUpdate(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(frameworkUpdateFlags.format)
	if err != nil {
		return err
	}

	var update framework.Update
	if frameworkUpdateFlags.file != "" {
		if frameworkUpdateFlags.framework != "" || frameworkUpdateFlags.version != "" {
			return cli.Usagef("--file cannot be combined with --framework or --version")
		}
		if err := decodeYAMLFile(cmd, frameworkUpdateFlags.file, &update); err != nil {
			return err
		}
	} else {
		effective, err := parseDate("effective-date", frameworkUpdateFlags.effectiveDate)
		if err != nil {
			return err
		}
		update = framework.Update{
			FrameworkID:      frameworkUpdateFlags.framework,
			Version:          frameworkUpdateFlags.version,
			Description:      frameworkUpdateFlags.description,
			AffectedControls: frameworkUpdateFlags.controls,
			EffectiveDate:    effective,
		}
	}
	if err := update.Validate(); err != nil {
		return cli.Usagef("%v", err)
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		results, err := a.engine.AutoUpdatePoliciesFromFramework(ctx, update)
		if err != nil {
			return err
		}
		var failed int
		for _, r := range results {
			if !r.Success {
				failed++
			}
		}

		printErr := cli.NewPrinter(cmd.OutOrStdout(), format).Print(results, func(w io.Writer) error {
			if len(results) == 0 {
				fmt.Fprintf(w, "No auto-updating policies reference %s.\n", update.FrameworkID)
				return nil
			}
			for _, r := range results {
				switch {
				case !r.Success:
					fmt.Fprintf(w, "%s  failed: %s\n", r.PolicyID, r.Error)
				case r.Skipped:
					fmt.Fprintf(w, "%s  already up to date\n", r.PolicyID)
				default:
					fmt.Fprintf(w, "%s  updated (%d changes", r.PolicyID, len(r.Diffs))
					if r.RequiresApproval {
						fmt.Fprint(w, ", approval required")
					}
					fmt.Fprintln(w, ")")
				}
			}
			return nil
		})
		if printErr != nil {
			return printErr
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d policies failed to update", failed, len(results))
		}
		return nil
	})
}
