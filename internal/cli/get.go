package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/davidthor/smartcfg/pkg/config"
	"github.com/davidthor/smartcfg/pkg/errors"
	"github.com/davidthor/smartcfg/pkg/service"
	"github.com/davidthor/smartcfg/pkg/store"
)

func newGetCmd() *cobra.Command {
	var (
		file     string
		valueTyp string
		language string
	)

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Resolve one config value",
		Long: `Resolve a value the way a running client would: global entries merged
with the entries of --platform, translations resolved for the selected
language.

Without --file the shared document is downloaded from the backend,
falling back to the local file when it is unavailable.

Without --type the value is printed as text (string, bool, float, then
int).

Examples:
  smartcfg get max_hp --type int
  smartcfg get greeting --language French
  smartcfg get app_update_url --platform Android --file ./RemoteConfig.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			sess, err := newSession(sessionOptions{
				BackendConfig: backendConfigFlag(cmd),
				WithTransfer:  file == "",
				LocalFile:     file,
			})
			if err != nil {
				return err
			}
			defer func() { _ = sess.log.Sync() }()

			ctx := cmd.Context()
			if file != "" {
				err = sess.svc.LoadFromLocal(ctx)
			} else {
				var source service.Source
				source, err = sess.svc.LoadFromCloud(ctx, nil)
				if err == nil {
					sess.log.Debug("config loaded", zap.String("source", string(source)))
				}
			}
			if err != nil {
				return err
			}

			if language != "" {
				lang, err := config.ParseLanguage(language)
				if err != nil {
					return err
				}
				sess.svc.SelectLanguage(lang)
			}

			value, err := lookupValue(sess.store, key, valueTyp)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Resolve from this document instead of the backend")
	cmd.Flags().StringVarP(&valueTyp, "type", "t", "", "Value type to read (int, float, bool, string)")
	cmd.Flags().StringVarP(&language, "language", "l", "", "Language to resolve translations for")

	return cmd
}

// lookupValue reads key from st with the typed getter named by typ.
func lookupValue(st *store.Store, key, typ string) (interface{}, error) {
	var (
		value interface{}
		ok    bool
	)
	switch typ {
	case "":
		value, ok = st.Text(key)
	case "int":
		value, ok = st.GetInt(key)
	case "float":
		value, ok = st.GetFloat(key)
	case "bool":
		value, ok = st.GetBool(key)
	case "string":
		value, ok = st.GetString(key)
	default:
		return nil, fmt.Errorf("unknown value type %q: must be one of int, float, bool, string", typ)
	}
	if !ok {
		return nil, errors.NotFoundError("config key", key)
	}
	return value, nil
}
