package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/charter/pkg/cli"
	"mercator-hq/charter/pkg/config"
	"mercator-hq/charter/pkg/framework/catalog"
	"mercator-hq/charter/pkg/governance"
	"mercator-hq/charter/pkg/policy/library"
)

var lintFlags struct {
	library   string
	catalogs  []string
	noBuiltin bool
	strict    bool
	format    string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check the clause library and control catalogs",
	Long: `Lint loads the clause library and the control catalogs and reports
problems that would fail policy generation, approval or mapping later:
unparseable files, duplicate IDs, unknown clause references, dependency
cycles, invalid workflows and unscoreable controls.

Warnings (for example a template with no approval workflow) do not fail
the command unless --strict is given.

Examples:
  # Lint the configured library and catalogs
  charter lint

  # Lint a library checkout and an extra catalog
  charter lint --library ./library --catalog ./catalogs/state-laws.yaml

  # Fail on warnings too, for CI
  charter lint --strict --format json`,
	Args: cobra.NoArgs,
	RunE: lintLibrary,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.library, "library", "l", "", "library file or directory (defaults to library.path)")
	lintCmd.Flags().StringSliceVar(&lintFlags.catalogs, "catalog", nil, "catalog file or directory (defaults to catalog.paths, repeatable)")
	lintCmd.Flags().BoolVar(&lintFlags.noBuiltin, "no-builtin", false, "skip the builtin catalogs")
	lintCmd.Flags().BoolVar(&lintFlags.strict, "strict", false, "treat warnings as errors")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

// lintReport is the JSON shape of the lint command.
type lintReport struct {
	Library  string          `json:"library"`
	Issues   []library.Issue `json:"issues"`
	Errors   int             `json:"errors"`
	Warnings int             `json:"warnings"`
}

func lintLibrary(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(lintFlags.format)
	if err != nil {
		return err
	}

	path := lintFlags.library
	catalogCfg := config.CatalogConfig{Builtin: !lintFlags.noBuiltin, Paths: lintFlags.catalogs}
	if path == "" || len(lintFlags.catalogs) == 0 {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if path == "" {
			path = cfg.Library.Path
		}
		if len(lintFlags.catalogs) == 0 {
			catalogCfg.Paths = cfg.Catalog.Paths
			catalogCfg.Builtin = cfg.Catalog.Builtin && !lintFlags.noBuiltin
		}
	}

	report := lintReport{Library: path, Issues: collectLintIssues(path, &catalogCfg)}
	for _, i := range report.Issues {
		if i.Severity == library.SeverityError {
			report.Errors++
		} else {
			report.Warnings++
		}
	}

	err = cli.NewPrinter(cmd.OutOrStdout(), format).Print(report, func(w io.Writer) error {
		printLintIssues(w, report)
		return nil
	})
	if err != nil {
		return err
	}

	if report.Errors > 0 || (lintFlags.strict && report.Warnings > 0) {
		return governance.Newf(governance.KindValidation, "lint",
			"%d errors, %d warnings", report.Errors, report.Warnings)
	}
	return nil
}

// collectLintIssues returns load failures and lint findings for the library
// and the catalogs. A library that fails to load is not linted further.
func collectLintIssues(path string, catalogCfg *config.CatalogConfig) []library.Issue {
	issues := []library.Issue{}

	lib, err := library.Load(path)
	if err != nil {
		issues = append(issues, loadIssues("library", err)...)
	} else {
		issues = append(issues, library.Lint(lib)...)
	}

	if !catalogCfg.Builtin && len(catalogCfg.Paths) == 0 {
		return issues
	}
	cat, err := loadCatalog(catalogCfg)
	if err != nil {
		return append(issues, loadIssues("catalog", err)...)
	}
	for _, msg := range catalog.Lint(cat) {
		id, text, _ := strings.Cut(msg, ": ")
		issues = append(issues, library.Issue{Severity: library.SeverityError, Kind: "control", ID: id, Message: text})
	}
	return issues
}

// loadIssues turns a load failure into one issue per underlying error.
func loadIssues(kind string, err error) []library.Issue {
	var list *library.ErrorList
	if errors.As(err, &list) {
		out := make([]library.Issue, 0, len(list.Errors))
		for _, e := range list.Errors {
			out = append(out, library.Issue{Severity: library.SeverityError, Kind: kind, Message: e.Error()})
		}
		return out
	}
	return []library.Issue{{Severity: library.SeverityError, Kind: kind, Message: err.Error()}}
}

func printLintIssues(w io.Writer, r lintReport) {
	for _, i := range r.Issues {
		if i.ID == "" {
			fmt.Fprintf(w, "%s: %s: %s\n", i.Severity, i.Kind, i.Message)
			continue
		}
		fmt.Fprintln(w, i.String())
	}
	if len(r.Issues) == 0 {
		fmt.Fprintf(w, "%s: no issues found\n", r.Library)
		return
	}
	fmt.Fprintf(w, "\n%d errors, %d warnings\n", r.Errors, r.Warnings)
}
