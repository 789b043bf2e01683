package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/davidthor/smartcfg/pkg/config"
	"github.com/davidthor/smartcfg/pkg/errors"
)

func newValidateCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a config document",
		Long: `Parse a config document and report every entry or platform block that
would be dropped or altered when it is loaded.

Only a malformed envelope or an unsupported version fails validation. With
--strict any diagnostic fails it.

Examples:
  smartcfg validate
  smartcfg validate ./RemoteConfig.json --strict`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := documentPath(args)

			doc, err := config.ParseFile(path)
			if err != nil {
				return formatValidationError(err)
			}

			out := cmd.OutOrStdout()
			for _, d := range doc.Diagnostics {
				fmt.Fprintf(out, "  %s\n", d)
			}

			if strict && len(doc.Diagnostics) > 0 {
				return formatValidationError(diagnosticsError(doc.Diagnostics))
			}

			fmt.Fprintf(out, "%s is valid (%d entries, %d platforms, %d diagnostics)\n",
				path, len(doc.Entries), len(doc.Platforms), len(doc.Diagnostics))
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on any diagnostic")

	return cmd
}

// documentPath returns the first argument, or the configured local file.
func documentPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if path := viper.GetString(ConfigKeyLocalFile); path != "" {
		return path
	}
	return config.FileName
}

func diagnosticsError(diags []config.Diagnostic) error {
	list := make([]string, 0, len(diags))
	for _, d := range diags {
		list = append(list, d.String())
	}
	return errors.ValidationError(fmt.Sprintf("%d diagnostics", len(diags)), map[string]interface{}{
		"errors": list,
	})
}

// formatValidationError extracts and displays validation error details
func formatValidationError(err error) error {
	var cfgErr *errors.Error
	for unwrapped := err; unwrapped != nil; {
		if e, ok := unwrapped.(*errors.Error); ok {
			cfgErr = e
			break
		}
		u, ok := unwrapped.(interface{ Unwrap() error })
		if !ok {
			break
		}
		unwrapped = u.Unwrap()
	}

	if cfgErr != nil && cfgErr.Code == errors.ErrCodeValidation {
		if errList, ok := cfgErr.Details["errors"].([]string); ok && len(errList) > 0 {
			var sb strings.Builder
			sb.WriteString("validation failed\n")
			sb.WriteString("\nValidation errors:\n")
			for _, e := range errList {
				sb.WriteString(fmt.Sprintf("  - %s\n", e))
			}
			return fmt.Errorf("%s", sb.String())
		}
	}

	return fmt.Errorf("validation failed: %w", err)
}
