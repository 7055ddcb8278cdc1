package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mercator-hq/charter/pkg/cli"
	"mercator-hq/charter/pkg/policy"
	"mercator-hq/charter/pkg/policy/redline"
)

var redlineFlags struct {
	file   string
	reason string
	author string
	apply  bool
	format string
}

var redlineCmd = &cobra.Command{
	Use:   "redline POLICY_ID",
	Short: "Diff an edited policy against the stored version",
	Long: `Redline compares edited policy content against the stored policy and
reports section-level additions, deletions and modifications. Changes to
sections that carry legal weight (privacy, data, consent, security,
compliance) are flagged as requiring approval.

Nothing is stored unless --apply is given. Applying replays the diffs on
the stored content, appends them to the policy's diff history and bumps
its version.

Examples:
  # Preview the changes as a markdown redline
  charter redline 3f2a... --file edited.md --reason "Board feedback"

  # Apply them
  charter redline 3f2a... --file edited.md --reason "Board feedback" --author "J. Rivera" --apply`,
	Args: cobra.ExactArgs(1),
	RunE: redlinePolicy,
}

func init() {
	rootCmd.AddCommand(redlineCmd)

	redlineCmd.Flags().StringVarP(&redlineFlags.file, "file", "f", "", "edited policy content, - for stdin (required)")
	redlineCmd.Flags().StringVar(&redlineFlags.reason, "reason", "", "rationale recorded on every diff")
	redlineCmd.Flags().StringVar(&redlineFlags.author, "author", "", "author recorded on every diff")
	redlineCmd.Flags().BoolVar(&redlineFlags.apply, "apply", false, "apply the diffs to the stored policy")
	redlineCmd.Flags().StringVar(&redlineFlags.format, "format", "text", "output format: text, json")
}

// redlineResult is the JSON shape of the redline command.
type redlineResult struct {
	PolicyID string         `json:"policy_id"`
	Diffs    []policy.Diff  `json:"diffs"`
	Applied  bool           `json:"applied"`
	Policy   *policy.Policy `json:"policy,omitempty"`
}

func redlinePolicy(cmd *cobra.Command, args []string) error {
	if redlineFlags.file == "" {
		return cli.Usagef("--file is required")
	}
	format, err := cli.ParseOutputFormat(redlineFlags.format)
	if err != nil {
		return err
	}
	updated, err := readInput(cmd, redlineFlags.file)
	if err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		original, err := a.engine.Policy(ctx, args[0])
		if err != nil {
			return err
		}
		diffs, err := a.engine.GenerateRedlines(ctx, original, string(updated), redlineFlags.reason, redlineFlags.author)
		if err != nil {
			return err
		}

		res := redlineResult{PolicyID: original.ID, Diffs: diffs}
		if redlineFlags.apply && len(diffs) > 0 {
			if res.Policy, err = a.engine.ApplyRedlines(ctx, original.ID, original.Revision, diffs); err != nil {
				return err
			}
			res.Applied = true
		}

		return cli.NewPrinter(cmd.OutOrStdout(), format).Print(res, func(w io.Writer) error {
			if len(diffs) == 0 {
				fmt.Fprintln(w, "No changes.")
				return nil
			}
			fmt.Fprint(w, redline.Render(diffs))
			if res.Applied {
				fmt.Fprintf(w, "\nApplied %d changes: policy %s is now version %d.\n", len(diffs), res.Policy.ID, res.Policy.Version)
			} else if redline.AnyRequiresApproval(diffs) {
				fmt.Fprintln(w, "\nSome changes require approval.")
			}
			return nil
		})
	})
}
