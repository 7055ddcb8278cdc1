package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mercator-hq/charter/pkg/cli"
	"mercator-hq/charter/pkg/policy"
	"mercator-hq/charter/pkg/storage"
)

var policyFlags struct {
	org       string
	status    string
	framework string
	content   bool
	format    string
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect stored policies",
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored policies",
	Long: `List stored policies, optionally filtered by organization, status or
referenced framework.

Examples:
  charter policy list --org district-42
  charter policy list --status review --format json`,
	Args: cobra.NoArgs,
	RunE: listPolicies,
}

var policyShowCmd = &cobra.Command{
	Use:   "show POLICY_ID",
	Short: "Show a stored policy",
	Args:  cobra.ExactArgs(1),
	RunE:  showPolicy,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyListCmd, policyShowCmd)

	policyCmd.PersistentFlags().StringVar(&policyFlags.format, "format", "text", "output format: text, json")

	policyListCmd.Flags().StringVar(&policyFlags.org, "org", "", "filter by organization ID")
	policyListCmd.Flags().StringVar(&policyFlags.status, "status", "", "filter by status: draft, review, approved, rejected")
	policyListCmd.Flags().StringVar(&policyFlags.framework, "framework", "", "filter by referenced framework ID")

	policyShowCmd.Flags().BoolVar(&policyFlags.content, "content", true, "print the policy content")
}

func listPolicies(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(policyFlags.format)
	if err != nil {
		return err
	}
	filter := storage.PolicyFilter{
		OrgID:     policyFlags.org,
		Status:    policy.Status(policyFlags.status),
		Framework: policyFlags.framework,
	}
	switch filter.Status {
	case "", policy.StatusDraft, policy.StatusReview, policy.StatusApproved, policy.StatusRejected:
	default:
		return cli.Usagef("unknown status %q", policyFlags.status)
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		ps, err := a.engine.Policies(ctx, filter)
		if err != nil {
			return err
		}
		return cli.NewPrinter(cmd.OutOrStdout(), format).Print(ps, func(w io.Writer) error {
			if len(ps) == 0 {
				fmt.Fprintln(w, "No policies.")
				return nil
			}
			fmt.Fprintf(w, "%-38s %-16s %-10s %-4s %s\n", "POLICY", "ORG", "STATUS", "VER", "TITLE")
			for _, p := range ps {
				fmt.Fprintf(w, "%-38s %-16s %-10s %-4d %s\n", p.ID, p.OrgID, p.Status, p.Version, p.Title)
			}
			return nil
		})
	})
}

func showPolicy(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(policyFlags.format)
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		p, err := a.engine.Policy(ctx, args[0])
		if err != nil {
			return err
		}
		return cli.NewPrinter(cmd.OutOrStdout(), format).Print(p, func(w io.Writer) error {
			printPolicySummary(w, p)
			fmt.Fprintf(w, "Redlines:  %d\n", len(p.DiffHistory))
			if policyFlags.content {
				fmt.Fprintf(w, "\n%s", p.Content)
			}
			return nil
		})
	})
}
