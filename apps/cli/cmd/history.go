package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/contractkit/packages/history"
)

var (
	historyLimitFlag int
	historyFlakyFlag int
	historyPruneFlag string
)

var historyCmd = &cobra.Command{
	Use:   "history <database> <suite> <scenario>",
	Short: "Show recorded runs of a scenario",
	Long: `Show the most recent recorded runs of a scenario and the rows that both
passed and failed among them. Runs are recorded by "contractkit run --history".

Examples:
  contractkit history .contractkit.db posts titles
  contractkit history .contractkit.db posts titles --limit 20 --flaky 50
  contractkit history .contractkit.db --prune 720h`,
	Args: func(cmd *cobra.Command, args []string) error {
		if historyPruneFlag != "" {
			return cobra.ExactArgs(1)(cmd, args)
		}
		return cobra.ExactArgs(3)(cmd, args)
	},
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 10, "Number of runs to show")
	historyCmd.Flags().IntVar(&historyFlakyFlag, "flaky", 20, "Number of runs searched for flaky rows")
	historyCmd.Flags().StringVar(&historyPruneFlag, "prune", "", "Delete runs older than this duration (e.g., 720h) and exit")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	store, err := history.Open(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if historyPruneFlag != "" {
		age, err := time.ParseDuration(historyPruneFlag)
		if err != nil || age <= 0 {
			return exitWith(ExitUsageError, fmt.Errorf("invalid --prune value %q", historyPruneFlag))
		}
		n, err := store.Prune(ctx, time.Now().Add(-age))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pruned %d run(s)\n", n)
		return nil
	}

	suiteName, scenario := args[1], args[2]
	runs, err := store.Recent(ctx, suiteName, scenario, historyLimitFlag)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return exitWith(ExitUsageError, errors.New("no recorded runs for "+suiteName+" › "+scenario))
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(out, "%s › %s\n", suiteName, scenario)
	for _, r := range runs {
		verdict := green(r.Verdict)
		switch r.Verdict {
		case "failed":
			verdict = red(r.Verdict)
		case "no rows":
			verdict = yellow(r.Verdict)
		}
		fmt.Fprintf(out, "  #%d %s %-8s %d passed, %d failed, %d executed  %v  p95=%v\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), verdict, r.Passed, r.Failed, r.Executed, r.Duration, r.P95)
	}

	flaky, err := store.Flaky(ctx, suiteName, scenario, historyFlakyFlag)
	if err != nil {
		return err
	}
	if len(flaky) > 0 {
		fmt.Fprintf(out, "%s\n", yellow(fmt.Sprintf("flaky rows in the last %d runs:", historyFlakyFlag)))
		for _, name := range flaky {
			fmt.Fprintf(out, "  - %s\n", name)
		}
	}
	return nil
}
