package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/davidthor/smartcfg/pkg/logger"
	"github.com/davidthor/smartcfg/pkg/metric"
	"github.com/davidthor/smartcfg/pkg/service"
	"github.com/davidthor/smartcfg/pkg/store"
	"github.com/davidthor/smartcfg/pkg/transfer"
	"github.com/davidthor/smartcfg/pkg/transfer/backend"
)

// EnvBackendConfigPrefix is the prefix for backend settings in the
// environment. SMARTCFG_BACKEND_CONFIG_BUCKET sets "bucket".
const EnvBackendConfigPrefix = "SMARTCFG_BACKEND_CONFIG_"

// resolveBackendConfig merges backend settings.
//
// Precedence (highest to lowest):
//  1. --backend / --backend-config flags
//  2. SMARTCFG_BACKEND and SMARTCFG_BACKEND_CONFIG_* environment variables
//  3. backend and backend_config in ~/.smartcfg/config.yaml
//  4. the local backend with its default directory
func resolveBackendConfig(flagConfig []string) backend.Config {
	cfg := backend.Config{
		Type:   viper.GetString(ConfigKeyBackend),
		Config: make(map[string]string),
	}
	if cfg.Type == "" {
		cfg.Type = "local"
	}

	for k, v := range viper.GetStringMapString(ConfigKeyBackendConfig) {
		cfg.Config[k] = v
	}

	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, EnvBackendConfigPrefix) {
			continue
		}
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			key := strings.ToLower(strings.TrimPrefix(parts[0], EnvBackendConfigPrefix))
			cfg.Config[key] = parts[1]
		}
	}

	for _, c := range flagConfig {
		parts := strings.SplitN(c, "=", 2)
		if len(parts) == 2 {
			cfg.Config[parts[0]] = parts[1]
		}
	}

	return cfg
}

// createTransfer builds the transfer for the configured backend and object.
func createTransfer(flagConfig []string) (*transfer.BlobTransfer, error) {
	b, err := backend.Create(resolveBackendConfig(flagConfig))
	if err != nil {
		return nil, err
	}
	object := viper.GetString(ConfigKeyObject)
	if object == "" {
		object = DefaultObject
	}
	return transfer.NewBlobTransfer(b, object), nil
}

// newLogger builds the command logger from the log-level and log-file keys.
func newLogger() (*zap.Logger, error) {
	cfg := logger.Config{
		Level:   viper.GetString(ConfigKeyLogLevel),
		Console: os.Stderr,
	}
	if path := viper.GetString(ConfigKeyLogFile); path != "" {
		cfg.File = logger.DefaultFileConfig(path)
	}
	return logger.New(cfg)
}

// session bundles what commands that resolve values need.
type session struct {
	log     *zap.Logger
	metrics *metric.Metrics
	store   *store.Store
	svc     *service.Service
}

// sessionOptions selects what newSession wires.
type sessionOptions struct {
	// BackendConfig holds the --backend-config flag values.
	BackendConfig []string

	// WithTransfer creates the configured backend. Commands that only read
	// a local file leave it off.
	WithTransfer bool

	// LocalFile overrides the local_file key.
	LocalFile string
}

// newSession wires a store and service from configuration.
func newSession(opts sessionOptions) (*session, error) {
	log, err := newLogger()
	if err != nil {
		return nil, err
	}
	lang, err := resolveLanguage()
	if err != nil {
		return nil, err
	}

	m := metric.New()
	st := store.New(store.Options{
		Platform:        resolvePlatform(),
		DefaultLanguage: lang,
		Logger:          log.Named("store"),
		Usage:           m,
	})

	svcOpts := service.DefaultOptions()
	if path := viper.GetString(ConfigKeyLocalFile); path != "" {
		svcOpts.LocalFile = path
	}
	if opts.LocalFile != "" {
		svcOpts.LocalFile = opts.LocalFile
	}
	svcOpts.Logger = log.Named("service")
	svcOpts.Metrics = m
	if opts.WithTransfer {
		tr, err := createTransfer(opts.BackendConfig)
		if err != nil {
			return nil, err
		}
		svcOpts.Transfer = tr
	}

	return &session{
		log:     log,
		metrics: m,
		store:   st,
		svc:     service.New(st, svcOpts),
	}, nil
}

// backendConfigFlag returns the --backend-config values, or nil when the
// command was built without the persistent flags.
func backendConfigFlag(cmd *cobra.Command) []string {
	values, err := cmd.Flags().GetStringArray("backend-config")
	if err != nil {
		return nil
	}
	return values
}
