package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/contractkit/packages/export/metrics"
	"github.com/abdul-hamid-achik/contractkit/packages/output"
)

var versionShortFlag bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and supported report formats",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if versionShortFlag {
			fmt.Fprintln(out, version)
			return
		}
		fmt.Fprintf(out, "contractkit version %s\n", version)
		fmt.Fprintf(out, "Built: %s (%s %s/%s)\n", buildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(out, "Report formats: %s\n", strings.Join(output.Formats, ", "))
		fmt.Fprintf(out, "Metrics formats: %s\n", strings.Join(metrics.Formats, ", "))
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShortFlag, "short", false, "Print only the version number")
}
