package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
	"github.com/abdul-hamid-achik/contractkit/packages/coverage"
	"github.com/abdul-hamid-achik/contractkit/packages/suite"
)

var coverageCmd = &cobra.Command{
	Use:   "coverage <suite|directory>...",
	Short: "Report which OpenAPI operations the suites exercise",
	Long: `Match every workflow step of the given suites against the operations of
an OpenAPI document. No requests are sent.

Examples:
  contractkit coverage ./contracts --openapi openapi.yaml
  contractkit coverage ./contracts --openapi openapi.yaml -o json
  contractkit coverage ./contracts --openapi openapi.yaml --min-coverage 80`,
	Args: cobra.MinimumNArgs(1),
	RunE: coverageCommand,
}

var (
	coverageOutputFlag string
	minCoverageFlag    float64
)

func init() {
	coverageCmd.Flags().StringVar(&openAPIFlag, "openapi", getEnvString("CONTRACTKIT_OPENAPI", ""), "OpenAPI document to measure against (env: CONTRACTKIT_OPENAPI)")
	coverageCmd.Flags().StringVarP(&coverageOutputFlag, "output", "o", "console", "Output format: console, json")
	coverageCmd.Flags().Float64Var(&minCoverageFlag, "min-coverage", 0, "Fail when coverage is below this percentage")

	_ = coverageCmd.RegisterFlagCompletionFunc("output", completeWords([]string{"console", "json"}))
}

func coverageCommand(cmd *cobra.Command, args []string) error {
	cfg, err := settings(&config.Config{OpenAPI: openAPIFlag})
	if err != nil {
		return err
	}
	if cfg.OpenAPI == "" {
		return exitWith(ExitUsageError, fmt.Errorf("an OpenAPI document is required (--openapi or openapi in the config file)"))
	}
	analyzer, err := coverage.LoadAnalyzer(cfg.OpenAPI)
	if err != nil {
		return err
	}
	files, err := discover(args)
	if err != nil {
		return err
	}

	var calls []coverage.Call
	for _, file := range files {
		s, err := suite.Load(file)
		if err != nil {
			return err
		}
		units, err := s.Units()
		if err != nil {
			return err
		}
		for _, u := range units {
			for i, step := range u.Workflow.Steps {
				calls = append(calls, coverage.Call{
					Method: step.Method,
					Path:   step.Path,
					Source: fmt.Sprintf("%s › %s › %s", s.Name, u.Name, u.Workflow.StepName(i)),
				})
			}
		}
	}

	report := analyzer.Analyze(calls)
	out := cmd.OutOrStdout()
	switch coverageOutputFlag {
	case "json":
		data, err := report.FormatJSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, data)
	case "", "console":
		fmt.Fprint(out, report.FormatConsole())
	default:
		return exitWith(ExitUsageError, fmt.Errorf("unknown output format %q (want console or json)", coverageOutputFlag))
	}

	if report.CoveragePercent < minCoverageFlag {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s coverage %.1f%% is below the required %.1f%%\n",
			color.New(color.FgRed).Sprint("✗"), report.CoveragePercent, minCoverageFlag)
		return exitWith(ExitTestFailure, nil)
	}
	return nil
}
