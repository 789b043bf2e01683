package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/davidthor/smartcfg/pkg/config"
)

func newPushCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "push [file]",
		Short: "Publish a document to the backend",
		Long: `Validate a local config document and upload it to the configured backend
object. A malformed document is never uploaded. Backends that support
locking hold a publish lock for the duration of the upload.

Examples:
  smartcfg push
  smartcfg push ./RemoteConfig.json --backend s3 --backend-config bucket=my-config
  smartcfg push --strict`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := documentPath(args)
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			sess, err := newSession(sessionOptions{
				BackendConfig: backendConfigFlag(cmd),
				WithTransfer:  true,
			})
			if err != nil {
				return err
			}
			defer func() { _ = sess.log.Sync() }()

			if strict {
				if err := checkStrict(data); err != nil {
					return err
				}
			}

			progress := newCommandProgress(cmd, "Uploading "+path)
			doc, err := sess.svc.Publish(cmd.Context(), data, progress.Func())
			progress.Done(err)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Published %s to %s (%d entries, %d platforms, %d diagnostics)\n",
				path, viper.GetString(ConfigKeyObject), len(doc.Entries), len(doc.Platforms), len(doc.Diagnostics))
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Refuse to publish a document with diagnostics")

	return cmd
}

func checkStrict(data []byte) error {
	doc, err := config.Parse(data)
	if err != nil {
		return err
	}
	if len(doc.Diagnostics) > 0 {
		return formatValidationError(diagnosticsError(doc.Diagnostics))
	}
	return nil
}
