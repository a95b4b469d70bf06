package cmd

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for contractkit.

Suite arguments complete to directories and *.suite.yaml / *.suite.yml
files, and --output and --metrics-format complete to the formats this
build supports.

Bash:
  $ source <(contractkit completion bash)

Zsh:
  $ contractkit completion zsh > "${fpath[1]}/_contractkit"

Fish:
  $ contractkit completion fish > ~/.config/fish/completions/contractkit.fish

PowerShell:
  PS> contractkit completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletionV2(out, true)
		case "zsh":
			return cmd.Root().GenZshCompletion(out)
		case "fish":
			return cmd.Root().GenFishCompletion(out, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

// completeSuites offers suite files and the directories that may hold them.
func completeSuites(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{"yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
}

func completeWords(words []string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return words, cobra.ShellCompDirectiveNoFileComp
	}
}

func init() {
	rootCmd.AddCommand(completionCmd)

	for _, c := range []*cobra.Command{runCmd, validateCmd, listCmd, coverageCmd} {
		c.ValidArgsFunction = completeSuites
	}
}
