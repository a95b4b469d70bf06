package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
	"github.com/abdul-hamid-achik/contractkit/packages/suite"
)

var validateCmd = &cobra.Command{
	Use:   "validate <suite|directory>...",
	Short: "Check suite files without sending requests",
	Long: `Build every scenario of the given suites and check that each step only
refers to variables that exist or that an earlier step captures.

Examples:
  contractkit validate posts.suite.yaml
  contractkit validate ./contracts --env staging`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	cfg, err := settings(nil)
	if err != nil {
		return err
	}
	dotenv, err := dotenvVariables(cfg)
	if err != nil {
		return err
	}
	files, err := discover(args)
	if err != nil {
		return err
	}

	hasErrors := false
	for _, file := range files {
		if err := validateFile(file, cfg, dotenv); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s:\n", file)
			for _, e := range splitJoined(err) {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %v\n", e)
			}
			hasErrors = true
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
		}
	}

	if hasErrors {
		return exitWith(ExitParseError, errors.New("validation failed"))
	}
	return nil
}

func validateFile(path string, cfg *config.Config, dotenv map[string]any) error {
	s, err := suite.Load(path)
	if err != nil {
		return err
	}
	vars, err := suiteVariables(s, cfg, dotenv)
	if err != nil {
		return err
	}
	return s.Check(variableKeys(vars))
}

// splitJoined flattens an errors.Join result into its parts.
func splitJoined(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
