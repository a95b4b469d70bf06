package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/contractkit/packages/suite"
)

var listCmd = &cobra.Command{
	Use:   "list <suite|directory>...",
	Short: "List the scenarios and rows of suite files",
	Long: `List every scenario a run would execute, with its workflow steps and
data rows.

Examples:
  contractkit list posts.suite.yaml
  contractkit list ./contracts`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := discover(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, file := range files {
		s, err := suite.Load(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error loading %s: %v\n", file, err)
			continue
		}
		units, err := s.Units()
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error building %s: %v\n", file, err)
			continue
		}

		fmt.Fprintf(out, "\n%s (%s):\n", s.Name, file)
		for _, u := range units {
			fmt.Fprintf(out, "  - %s\n", u.Name)
			for i, step := range u.Workflow.Steps {
				line := fmt.Sprintf("%s %s", step.Method, step.Path)
				if len(step.Captures) > 0 {
					names := make([]string, len(step.Captures))
					for j, c := range step.Captures {
						names[j] = c.Name
					}
					line += " → " + strings.Join(names, ", ")
				}
				fmt.Fprintf(out, "      %s: %s\n", u.Workflow.StepName(i), line)
			}
			switch len(u.Rows) {
			case 0:
				fmt.Fprintf(out, "    rows: none\n")
			case 1:
				fmt.Fprintf(out, "    rows: 1\n")
			default:
				names := make([]string, len(u.Rows))
				for i, r := range u.Rows {
					names[i] = r.Name
					if names[i] == "" {
						names[i] = fmt.Sprintf("row-%d", i+1)
					}
				}
				fmt.Fprintf(out, "    rows: %d (%s)\n", len(u.Rows), strings.Join(names, ", "))
			}
		}
	}

	return nil
}
