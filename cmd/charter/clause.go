package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mercator-hq/charter/pkg/cli"
	"mercator-hq/charter/pkg/policy"
)

var clauseFlags struct {
	base   int64
	format string
}

var clauseCmd = &cobra.Command{
	Use:   "clause",
	Short: "Edit clauses in the clause library",
}

var clauseSaveCmd = &cobra.Command{
	Use:   "save FILE",
	Short: "Save an edited clause",
	Long: `Save stores an edited clause read from a YAML file. Stored edits take
precedence over the library files, so a later library reload does not
revert them.

--base must be the revision the edit started from; a save whose base is
stale fails with a conflict so concurrent edits are never lost. Before the
first stored edit the base is the revision set in the library file (0 when
unset); clause list shows the current revision.

Example:
  charter clause save parental-consent.yaml --base 0`,
	Args: cobra.ExactArgs(1),
	RunE: saveClause,
}

var clauseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List library clauses with their revisions",
	Args:  cobra.NoArgs,
	RunE:  listClauses,
}

func init() {
	rootCmd.AddCommand(clauseCmd)
	clauseCmd.AddCommand(clauseSaveCmd, clauseListCmd)

	clauseCmd.PersistentFlags().StringVar(&clauseFlags.format, "format", "text", "output format: text, json")
	clauseSaveCmd.Flags().Int64Var(&clauseFlags.base, "base", 0, "revision the edit is based on")
}

func saveClause(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(clauseFlags.format)
	if err != nil {
		return err
	}
	var c policy.Clause
	if err := decodeYAMLFile(cmd, args[0], &c); err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		saved, err := a.engine.SaveClause(ctx, c, clauseFlags.base)
		if err != nil {
			return err
		}
		return cli.NewPrinter(cmd.OutOrStdout(), format).Print(saved, func(w io.Writer) error {
			fmt.Fprintf(w, "Saved clause %s at revision %d\n", saved.ID, saved.Revision)
			return nil
		})
	})
}

func listClauses(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(clauseFlags.format)
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		clauses := a.engine.Library().Clauses()
		return cli.NewPrinter(cmd.OutOrStdout(), format).Print(clauses, func(w io.Writer) error {
			fmt.Fprintf(w, "%-28s %-4s %-14s %s\n", "CLAUSE", "REV", "CATEGORY", "TITLE")
			for _, c := range clauses {
				fmt.Fprintf(w, "%-28s %-4d %-14s %s\n", c.ID, c.Revision, c.Category, c.Title)
			}
			return nil
		})
	})
}
