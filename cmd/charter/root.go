package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/charter/pkg/cli"
	"mercator-hq/charter/pkg/config"
	"mercator-hq/charter/pkg/governance"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "charter",
	Short: "Charter - AI governance policies for K-12 organizations",
	Long: `Charter assembles AI governance policies from a clause library, tracks
their revisions as section-level redlines and routes them through
role-based approval workflows with escalation.

It also maps governance documents onto compliance frameworks (the NIST AI
RMF, U.S. Department of Education AI guidance and state student privacy
laws such as California's SOPIPA, plus any catalogs you add) and reports
coverage, gaps and recommendations.

Every policy and report carries a legal review disclaimer, and every
governance action is written to an append-only evidence trail.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the code for the error kind.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", errorMessage(err))
		os.Exit(cli.ExitCode(err))
	}
}

// errorMessage is the text shown for err. Governance errors already end with
// the disclaimer; usage, config and I/O errors get it appended.
func errorMessage(err error) string {
	if governance.KindOf(err) != "" {
		return err.Error()
	}
	return strings.TrimRight(err.Error(), ". ") + ". " + governance.Disclaimer
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "charter.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return cli.Usagef("%v", err)
	})
}

// loadConfig reads the --config file. The default path may be absent, in
// which case built-in defaults and CHARTER_ environment overrides apply.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "charter.yaml" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	config.SetConfig(cfg)
	return cfg, nil
}
