package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/charter/pkg/cli"
	"mercator-hq/charter/pkg/policy"
	"mercator-hq/charter/pkg/policy/approval"
	"mercator-hq/charter/pkg/policy/engine"
)

var workflowFlags struct {
	action    string
	comment   string
	role      string
	name      string
	signature string
	at        string
	format    string
}

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Drive policy approval workflows",
	Long: `Workflow starts and advances the approval workflow of a policy.

The library registers one workflow per template: the approver roles whose
sign-off completes it, whether they must act in order, and who is notified
when an approval stalls.

Subcommands:
  start     - Move a draft policy into review and create its approvals
  act       - Approve, reject or request changes on one approval
  status    - Show a policy's approvals and which can be acted on
  escalate  - Run one escalation sweep`,
}

var workflowStartCmd = &cobra.Command{
	Use:   "start POLICY_ID",
	Short: "Start the approval workflow of a draft policy",
	Args:  cobra.ExactArgs(1),
	RunE:  startWorkflow,
}

var workflowActCmd = &cobra.Command{
	Use:   "act POLICY_ID APPROVAL_ID",
	Short: "Act on a pending approval",
	Long: `Act records an approver's decision on one approval.

A single rejection rejects the policy. Request changes keeps the approval
pending and adds the comment to its thread. The policy is approved once
every required role has approved.

Examples:
  charter workflow act 3f2a... 9c1d... --action approve --role technology_director --name "J. Rivera"
  charter workflow act 3f2a... 9c1d... --action request_changes --role superintendent \
    --name "Dr. Lee" --comment "Tighten the data retention section"`,
	Args: cobra.ExactArgs(2),
	RunE: actOnApproval,
}

var workflowStatusCmd = &cobra.Command{
	Use:   "status POLICY_ID",
	Short: "Show the approvals of a policy",
	Args:  cobra.ExactArgs(1),
	RunE:  workflowStatus,
}

var workflowEscalateCmd = &cobra.Command{
	Use:   "escalate",
	Short: "Run one escalation sweep",
	Long: `Escalate notifies the configured roles about approvals that have been
pending past their escalation thresholds. Each rule fires at most once per
approval. "charter run" performs the same sweep on a schedule.`,
	Args: cobra.NoArgs,
	RunE: escalateApprovals,
}

func init() {
	rootCmd.AddCommand(workflowCmd)
	workflowCmd.AddCommand(workflowStartCmd, workflowActCmd, workflowStatusCmd, workflowEscalateCmd)

	workflowCmd.PersistentFlags().StringVar(&workflowFlags.format, "format", "text", "output format: text, json")

	workflowActCmd.Flags().StringVar(&workflowFlags.action, "action", "", "approve, reject or request_changes (required)")
	workflowActCmd.Flags().StringVar(&workflowFlags.comment, "comment", "", "comment added to the approval thread")
	workflowActCmd.Flags().StringVar(&workflowFlags.role, "role", "", "approver role (required)")
	workflowActCmd.Flags().StringVar(&workflowFlags.name, "name", "", "approver name (required)")
	workflowActCmd.Flags().StringVar(&workflowFlags.signature, "signature", "", "approver signature")

	workflowEscalateCmd.Flags().StringVar(&workflowFlags.at, "at", "", "evaluate escalations as of this time (RFC 3339, default now)")
}

func startWorkflow(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(workflowFlags.format)
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := a.engine.InitiateApprovalWorkflow(ctx, args[0]); err != nil {
			return err
		}
		st, err := a.engine.ApprovalStatus(ctx, args[0])
		if err != nil {
			return err
		}
		return printApprovalStatus(cmd.OutOrStdout(), format, st)
	})
}

func actOnApproval(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(workflowFlags.format)
	if err != nil {
		return err
	}
	action := policy.Action(workflowFlags.action)
	if !action.Valid() {
		return cli.Usagef("--action must be approve, reject or request_changes")
	}
	role, err := policy.ParseRole(workflowFlags.role)
	if err != nil {
		return cli.Usagef("--role: %v", err)
	}
	if workflowFlags.name == "" {
		return cli.Usagef("--name is required")
	}
	approver := policy.Approver{Role: role, Name: workflowFlags.name, Signature: workflowFlags.signature}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		if _, err := a.engine.ProcessApproval(ctx, args[0], args[1], action, workflowFlags.comment, approver); err != nil {
			return err
		}
		st, err := a.engine.ApprovalStatus(ctx, args[0])
		if err != nil {
			return err
		}
		return printApprovalStatus(cmd.OutOrStdout(), format, st)
	})
}

func workflowStatus(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(workflowFlags.format)
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		st, err := a.engine.ApprovalStatus(ctx, args[0])
		if err != nil {
			return err
		}
		return printApprovalStatus(cmd.OutOrStdout(), format, st)
	})
}

func escalateApprovals(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(workflowFlags.format)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if workflowFlags.at != "" {
		if now, err = time.Parse(time.RFC3339, workflowFlags.at); err != nil {
			return cli.Usagef("--at: %v", err)
		}
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		sent, sweepErr := a.engine.CheckEscalations(ctx, now)
		if sent == nil {
			sent = []approval.Notification{}
		}
		err := cli.NewPrinter(cmd.OutOrStdout(), format).Print(sent, func(w io.Writer) error {
			if len(sent) == 0 {
				fmt.Fprintln(w, "No escalations due.")
				return nil
			}
			for _, n := range sent {
				fmt.Fprintf(w, "policy %s: %s pending %s, notified %s (level %d)\n",
					n.PolicyID, n.PendingRole, n.PendingFor.Round(time.Hour), n.NotifyRole, n.Level)
			}
			return nil
		})
		if sweepErr != nil {
			return sweepErr
		}
		return err
	})
}

func printApprovalStatus(out io.Writer, format cli.OutputFormat, st *engine.ApprovalStatus) error {
	return cli.NewPrinter(out, format).Print(st, func(w io.Writer) error {
		printPolicySummary(w, st.Policy)
		if len(st.Approvals) == 0 {
			fmt.Fprintln(w, "\nNo approvals.")
			return nil
		}

		actionable := make(map[string]bool, len(st.Actionable))
		for _, id := range st.Actionable {
			actionable[id] = true
		}
		fmt.Fprintf(w, "\n%-38s %-5s %-22s %-16s %s\n", "APPROVAL", "STEP", "ROLE", "ACTION", "SIGNER")
		for _, ap := range st.Approvals {
			act := string(ap.Action)
			if act == "" {
				act = "pending"
			}
			if actionable[ap.ID] {
				act += " *"
			}
			fmt.Fprintf(w, "%-38s %-5d %-22s %-16s %s\n", ap.ID, ap.Step, ap.Role, act, ap.Signer)
			for _, c := range ap.Comments {
				fmt.Fprintf(w, "    %s (%s): %s\n", c.Author, c.Action, c.Text)
			}
		}
		if len(st.Actionable) > 0 {
			fmt.Fprintln(w, "\n* can be acted on now")
		}
		return nil
	})
}
