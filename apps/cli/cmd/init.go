package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new contractkit project",
	Long: `Initialize a new contractkit project in the current directory.

This creates:
  - .contractkit.yaml      - Configuration file
  - example.suite.yaml     - Example suite with a workflow and data rows

Examples:
  contractkit init
  contractkit init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleSuite = `name: example
variables:
  baseUrl: http://localhost:3000
environments:
  staging:
    baseUrl: https://staging.api.example.com

requests:
  api:
    baseUrl: "{{baseUrl}}"
    contentType: application/json
    accept: application/json

responses:
  ok:
    preset: success
  resource:
    extends: ok
    body:
      - {path: id, op: exists}
      - {path: name, op: type, value: string}

workflows:
  - name: resource lifecycle
    request: api
    steps:
      - name: create
        method: POST
        path: /resources
        body: {name: "{{name}}", owner: "{{randomEmail()}}"}
        expect: {preset: created}
        capture: {resourceId: id}
      - name: fetch
        method: GET
        path: /resources/{{resourceId}}
        expect: resource

scenarios:
  - name: names
    workflow: resource lifecycle
    rows:
      - {name: short, values: {name: a}}
      - {name: long, values: {name: a much longer resource name}}
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, ".contractkit.yaml")
	exampleFile := filepath.Join(cwd, "example.suite.yaml")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return exitWith(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.Headers = map[string]string{"User-Agent": "contractkit/" + version}
	cfg.HistoryPath = ".contractkit.db"
	configYAML, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(configFile, configYAML, 0644); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(exampleFile, []byte(exampleSuite), 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\ncontractkit project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'contractkit run example.suite.yaml' to execute the example suite.\n")

	return nil
}
