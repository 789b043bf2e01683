package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/davidthor/smartcfg/pkg/authoring"
	"github.com/davidthor/smartcfg/pkg/config"
)

func newLintCmd() *cobra.Command {
	var (
		settingsFile string
		strict       bool
	)

	cmd := &cobra.Command{
		Use:   "lint [file]",
		Short: "Check a document against authoring rules",
		Long: `Check a config document the way the editor does: keys must be non-empty
and unique within their scope, and should start with the prefix of their
category.

Category prefixes, languages and the default language come from the
authoring settings file, by default ` + authoring.SettingsFileName + ` next to the
document. Prefix violations are warnings; --strict makes them fail.

Examples:
  smartcfg lint
  smartcfg lint ./RemoteConfig.json --settings ./authoring.yaml --strict`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := documentPath(args)
			doc, err := config.ParseFile(path)
			if err != nil {
				return err
			}

			if settingsFile == "" {
				settingsFile = filepath.Join(filepath.Dir(path), authoring.SettingsFileName)
			}
			settings, err := authoring.LoadSettings(settingsFile)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var errCount, warnCount int
			count := func(sev config.Severity) {
				if sev == config.SeverityError {
					errCount++
				} else {
					warnCount++
				}
			}

			for _, d := range doc.Diagnostics {
				fmt.Fprintf(out, "  %s\n", d)
				count(d.Severity)
			}
			for _, issue := range authoring.NewWorkspace(doc, settings).Issues() {
				fmt.Fprintf(out, "  %s\n", issue)
				count(issue.Severity)
			}

			if errCount > 0 || (strict && warnCount > 0) {
				return fmt.Errorf("lint failed: %d errors, %d warnings", errCount, warnCount)
			}
			fmt.Fprintf(out, "%s: %d errors, %d warnings\n", path, errCount, warnCount)
			return nil
		},
	}

	cmd.Flags().StringVarP(&settingsFile, "settings", "s", "", "Authoring settings file")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on warnings")

	return cmd
}
