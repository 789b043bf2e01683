package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/davidthor/smartcfg/pkg/config"
	"github.com/davidthor/smartcfg/pkg/transfer/backend"
)

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for smartcfg.

To load completions:

Bash:
  $ source <(smartcfg completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ smartcfg completion bash > /etc/bash_completion.d/smartcfg
  # macOS:
  $ smartcfg completion bash > $(brew --prefix)/etc/bash_completion.d/smartcfg

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ smartcfg completion zsh > "${fpath[1]}/_smartcfg"

Fish:
  $ smartcfg completion fish | source

PowerShell:
  PS> smartcfg completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(out, true)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unknown shell: %s", args[0])
			}
		},
	}

	return cmd
}

// registerCompletions adds completion functions for flag values and keys.
func registerCompletions(root *cobra.Command) {
	_ = root.RegisterFlagCompletionFunc("backend", fixedCompletions(backend.Types()))
	_ = root.RegisterFlagCompletionFunc("platform", completePlatforms)
	_ = root.RegisterFlagCompletionFunc("default-language", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		langs, directive := completeLanguages(cmd, args, toComplete)
		if strings.HasPrefix(systemLanguage, toComplete) {
			langs = append([]string{systemLanguage}, langs...)
		}
		return langs, directive
	})
	_ = root.RegisterFlagCompletionFunc("log-level", fixedCompletions([]string{"debug", "info", "warn", "error"}))

	for _, cmd := range root.Commands() {
		switch cmd.Name() {
		case "get":
			cmd.ValidArgsFunction = completeKeys
			_ = cmd.RegisterFlagCompletionFunc("type", fixedCompletions([]string{"int", "float", "bool", "string"}))
			_ = cmd.RegisterFlagCompletionFunc("language", completeLanguages)
		case "inspect":
			_ = cmd.RegisterFlagCompletionFunc("only-platform", completePlatforms)
		}
	}
}

func fixedCompletions(values []string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return filterPrefix(values, toComplete), cobra.ShellCompDirectiveNoFileComp
	}
}

// completeKeys offers the global and platform keys of the local document.
func completeKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		path = documentPath(nil)
	}
	doc, err := config.ParseFile(path)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	seen := make(map[string]bool)
	var keys []string
	add := func(entries []config.Entry) {
		for _, e := range entries {
			if !seen[e.Key] {
				seen[e.Key] = true
				keys = append(keys, e.Key)
			}
		}
	}
	add(doc.Entries)
	for _, b := range doc.Platforms {
		add(b.Entries)
	}
	return filterPrefix(keys, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func completePlatforms(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return filterPrefix(knownPlatforms(), toComplete), cobra.ShellCompDirectiveNoFileComp
}

func completeLanguages(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	langs := config.CatalogLanguages()
	values := make([]string, 0, len(langs))
	for _, l := range langs {
		values = append(values, string(l))
	}
	return filterPrefix(values, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// knownPlatforms lists the platform identifiers of the supported hosts.
func knownPlatforms() []string {
	var platforms []string
	for _, goos := range []string{"android", "ios", "darwin", "windows", "linux", "js"} {
		platforms = append(platforms, string(config.HostPlatform(goos)))
	}
	return platforms
}

func filterPrefix(values []string, prefix string) []string {
	var out []string
	for _, v := range values {
		if strings.HasPrefix(v, prefix) {
			out = append(out, v)
		}
	}
	return out
}
