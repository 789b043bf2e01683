package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/davidthor/smartcfg/pkg/config"
	"github.com/davidthor/smartcfg/pkg/store"
)

// Viper keys. The CLI spells them with dashes.
const (
	ConfigKeyBackend         = "backend"
	ConfigKeyBackendConfig   = "backend_config"
	ConfigKeyObject          = "object"
	ConfigKeyLocalFile       = "local_file"
	ConfigKeyPlatform        = "platform"
	ConfigKeyDefaultLanguage = "default_language"
	ConfigKeyLogLevel        = "log_level"
	ConfigKeyLogFile         = "log_file"

	// DefaultObject is where documents are published when no object is set.
	DefaultObject = "smartcfg/" + config.FileName

	// systemLanguage asks for the language to be detected from the locale.
	systemLanguage = "system"
)

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// settableKeys are the keys `config set` accepts, with their help text.
var settableKeys = map[string]string{
	ConfigKeyBackend:         "Transfer backend type used by push, pull, get and serve.",
	ConfigKeyObject:          "Object path of the shared document (default " + DefaultObject + ").",
	ConfigKeyLocalFile:       "Local fallback document (default " + config.FileName + ").",
	ConfigKeyPlatform:        "Platform whose entries are merged.",
	ConfigKeyDefaultLanguage: "Language translations resolve to, or \"system\".",
	ConfigKeyLogLevel:        "Log level (debug, info, warn, error).",
	ConfigKeyLogFile:         "Rotating JSON log file.",
}

func setConfigDefaults() {
	viper.SetDefault(ConfigKeyBackend, "local")
	viper.SetDefault(ConfigKeyObject, DefaultObject)
	viper.SetDefault(ConfigKeyLocalFile, config.FileName)
	viper.SetDefault(ConfigKeyDefaultLanguage, string(store.DefaultLanguage))
	viper.SetDefault(ConfigKeyLogLevel, "warn")
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  `Get and set smartcfg CLI configuration values stored in ~/.smartcfg/config.yaml.`,
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigListCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in ~/.smartcfg/config.yaml.

Available keys:
` + keyHelp() + `
Backend settings are set with "backend-config.<name>", for example
"backend-config.bucket".

Examples:
  smartcfg config set backend s3
  smartcfg config set backend-config.bucket my-game-config
  smartcfg config set default-language system`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]

			// Normalize key names: allow dashes in CLI, store with underscores
			viperKey := normalizeConfigKey(key)

			if name, ok := strings.CutPrefix(viperKey, ConfigKeyBackendConfig+"."); ok {
				if name == "" {
					return fmt.Errorf("backend-config needs a setting name, e.g. backend-config.bucket")
				}
			} else if _, ok := settableKeys[viperKey]; !ok {
				return fmt.Errorf("unknown configuration key %q\n\nAvailable keys:\n%s", key, keyHelp())
			}

			if err := validateConfigValue(viperKey, value); err != nil {
				return err
			}

			viper.Set(viperKey, value)
			if err := writeConfig(); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}

	return cmd
}

func newConfigGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long: `Get a configuration value from ~/.smartcfg/config.yaml.

Examples:
  smartcfg config get backend
  smartcfg config get backend-config.bucket`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := viper.GetString(normalizeConfigKey(key))
			if value == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is not set\n", key)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), value)
			}
			return nil
		},
	}

	return cmd
}

func newConfigListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Long:  `List the effective configuration: file values, environment and defaults.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration:")
			for _, key := range sortedKeys(settableKeys) {
				value := viper.GetString(key)
				if value == "" {
					value = "(not set)"
				}
				fmt.Fprintf(out, "  %s = %s\n", dashed(key), value)
			}

			backendCfg := viper.GetStringMapString(ConfigKeyBackendConfig)
			for _, name := range sortedKeys(backendCfg) {
				value := backendCfg[name]
				if isSecretSetting(name) {
					value = "********"
				}
				fmt.Fprintf(out, "  backend-config.%s = %s\n", name, value)
			}
			return nil
		},
	}

	return cmd
}

func validateConfigValue(key, value string) error {
	switch key {
	case ConfigKeyDefaultLanguage:
		if value == systemLanguage {
			return nil
		}
		_, err := config.ParseLanguage(value)
		return err
	case ConfigKeyLogLevel:
		switch strings.ToLower(value) {
		case "debug", "info", "warn", "warning", "error":
			return nil
		}
		return fmt.Errorf("unknown log level %q", value)
	}
	return nil
}

// resolvePlatform returns the platform from flags, config or the host OS.
func resolvePlatform() config.Platform {
	if p := viper.GetString(ConfigKeyPlatform); p != "" {
		return config.Platform(p)
	}
	return config.HostPlatform(runtime.GOOS)
}

// resolveLanguage returns the configured default language, detecting it
// from the locale environment when set to "system".
func resolveLanguage() (config.Language, error) {
	value := viper.GetString(ConfigKeyDefaultLanguage)
	if value == "" {
		return store.DefaultLanguage, nil
	}
	if value == systemLanguage {
		locale := os.Getenv("LC_ALL")
		if locale == "" {
			locale = os.Getenv("LANG")
		}
		return config.DetectLanguage(locale, config.CatalogLanguages(), store.DefaultLanguage), nil
	}
	return config.ParseLanguage(value)
}

// writeConfig writes the current viper config to the config file.
func writeConfig() error {
	configPath := viper.ConfigFileUsed()
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir := filepath.Join(home, ".smartcfg")
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		configPath = filepath.Join(configDir, "config.yaml")
	}

	return viper.WriteConfigAs(configPath)
}

// normalizeConfigKey converts CLI-style keys (with dashes) to viper-style keys (with underscores).
func normalizeConfigKey(key string) string {
	if name, ok := strings.CutPrefix(key, "backend-config."); ok {
		return ConfigKeyBackendConfig + "." + name
	}
	return strings.ReplaceAll(key, "-", "_")
}

func dashed(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func keyHelp() string {
	var sb strings.Builder
	for _, key := range sortedKeys(settableKeys) {
		fmt.Fprintf(&sb, "  %-18s %s\n", dashed(key), settableKeys[key])
	}
	return sb.String()
}

func isSecretSetting(name string) bool {
	for _, s := range []string{"secret", "token", "key", "password", "connection_string", "credentials_json"} {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
