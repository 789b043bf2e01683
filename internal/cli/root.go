// Package cli implements the smartcfg CLI commands.
package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	// Import backends to register them via init()
	_ "github.com/davidthor/smartcfg/pkg/transfer/backend/azurerm"
	_ "github.com/davidthor/smartcfg/pkg/transfer/backend/gcs"
	_ "github.com/davidthor/smartcfg/pkg/transfer/backend/http"
	_ "github.com/davidthor/smartcfg/pkg/transfer/backend/local"
	_ "github.com/davidthor/smartcfg/pkg/transfer/backend/nats"
	_ "github.com/davidthor/smartcfg/pkg/transfer/backend/s3"
)

var (
	cfgFile string
)

// rootCmd represents the base command
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smartcfg",
		Short: "Author, publish and query localized remote config",
		Long: `smartcfg manages remote config documents: typed key/value entries,
per-platform overrides and translatable strings.

Documents are validated locally, published to a shared backend (local
directory, S3, GCS, Azure Blob, NATS key-value or a read-only HTTP URL)
and resolved at runtime for one platform and language.`,
		SilenceUsage: true,
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.smartcfg/config.yaml)")
	pf.String("backend", "", "Transfer backend type (local, s3, gcs, azurerm, nats, http)")
	pf.StringArray("backend-config", nil, "Backend configuration (key=value)")
	pf.String("object", "", "Object path of the shared document in the backend")
	pf.String("local-file", "", "Local fallback document")
	pf.String("platform", "", "Platform whose entries are merged (default derived from the OS)")
	pf.String("default-language", "", "Language translations resolve to (\"system\" detects it from LANG)")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("log-file", "", "Also write JSON logs to this rotating file")

	// Bind to viper
	for _, name := range []string{"backend", "object", "local-file", "platform", "default-language", "log-level", "log-file"} {
		_ = viper.BindPFlag(normalizeConfigKey(name), pf.Lookup(name))
	}

	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newLintCmd())
	cmd.AddCommand(newPushCmd())
	cmd.AddCommand(newPullCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newCompletionCmd())

	registerCompletions(cmd)

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	viper.SetEnvPrefix("SMARTCFG")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()
	setConfigDefaults()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in home directory
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".smartcfg"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	// Read config file if it exists
	_ = viper.ReadInConfig()
}
