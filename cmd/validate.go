package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/frontpage/internal/config"
	"github.com/conneroisu/frontpage/internal/frontend"
	"github.com/conneroisu/frontpage/internal/tstree"
)

var (
	validateFormat string
	validateTypes  []int
)

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and the setup tree",
	Long: `Validate the configuration and the setup tree:

- Configuration values, paths and backends
- Setup file syntax
- A PAGE object for every requested page type

Examples:
  frontpage validate                  # Check config and page type 0
  frontpage validate --type 0,98      # Check several page types
  frontpage validate --format json    # Output results as JSON`,
	RunE: runValidateCommand,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFormat, "format", "f", "text", "Output format (text, json)")
	validateCmd.Flags().IntSliceVar(&validateTypes, "type", []int{0}, "Page types that must be configured")
}

// ValidationReport is the outcome of the validate command.
type ValidationReport struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func runValidateCommand(cmd *cobra.Command, _ []string) error {
	if validateFormat != "text" && validateFormat != "json" {
		return fmt.Errorf("unsupported format: %s (supported: text, json)", validateFormat)
	}
	cfg, err := config.Decode(viper.GetViper())
	if err != nil {
		return fmt.Errorf("failed to read configuration: %w", err)
	}

	report := buildReport(cfg, validateTypes)

	out := cmd.OutOrStdout()
	if validateFormat == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			return err
		}
	} else {
		for _, e := range report.Errors {
			fmt.Fprintf(out, "error: %s\n", e)
		}
		for _, w := range report.Warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		if report.Valid {
			fmt.Fprintln(out, "configuration and setup are valid")
		}
	}

	if !report.Valid {
		return errors.New("validation failed")
	}
	return nil
}

func buildReport(cfg *config.Config, types []int) *ValidationReport {
	report := &ValidationReport{Errors: []string{}, Warnings: []string{}}

	result := config.Validate(cfg)
	for _, e := range result.Errors {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	for _, w := range result.Warnings {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %s", w.Field, w.Message))
	}

	tree, err := tstree.LoadFile(cfg.Site.SetupFile)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
	} else {
		for _, typeNum := range types {
			if _, err := frontend.ResolvePageSetup(tree, typeNum); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("type %d: %s", typeNum, err))
			}
		}
	}

	report.Valid = len(report.Errors) == 0
	return report
}
