package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPullCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Download the shared document",
		Long: `Download the shared config document from the backend and, if it parses,
replace the local file with it. The local file is left untouched when the
download fails or the document is malformed.

Examples:
  smartcfg pull
  smartcfg pull --file ./Assets/RemoteConfig.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(sessionOptions{
				BackendConfig: backendConfigFlag(cmd),
				WithTransfer:  true,
				LocalFile:     file,
			})
			if err != nil {
				return err
			}
			defer func() { _ = sess.log.Sync() }()

			progress := newCommandProgress(cmd, "Downloading")
			doc, err := sess.svc.Pull(cmd.Context(), progress.Func())
			progress.Done(err)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Pulled %d entries, %d platforms, %d diagnostics\n",
				len(doc.Entries), len(doc.Platforms), len(doc.Diagnostics))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Local file to write (default is the local-file setting)")

	return cmd
}
