package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/davidthor/smartcfg/pkg/config"
	"github.com/davidthor/smartcfg/pkg/store"
)

func TestConfigSetGet(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	withConfig(t, map[string]interface{}{
		ConfigKeyBackend:       "local",
		ConfigKeyBackendConfig: map[string]interface{}{},
	})

	out, err := executeCommand(newConfigCmd(), "set", "backend", "s3")
	if err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if !strings.Contains(out, "Set backend = s3") {
		t.Errorf("unexpected output: %s", out)
	}

	if _, err := executeCommand(newConfigCmd(), "set", "backend-config.bucket", "my-config"); err != nil {
		t.Fatalf("set backend-config failed: %v", err)
	}

	out, err = executeCommand(newConfigCmd(), "get", "backend-config.bucket")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if strings.TrimSpace(out) != "my-config" {
		t.Errorf("expected my-config, got %q", out)
	}

	data, err := os.ReadFile(filepath.Join(home, ".smartcfg", "config.yaml"))
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.Contains(string(data), "backend: s3") {
		t.Errorf("expected backend in config file, got:\n%s", data)
	}
}

func TestConfigSet_Rejects(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		name string
		args []string
	}{
		{"unknown key", []string{"set", "colour", "blue"}},
		{"bad language", []string{"set", "default-language", "not a language"}},
		{"bad log level", []string{"set", "log-level", "loud"}},
		{"empty backend setting", []string{"set", "backend-config.", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := executeCommand(newConfigCmd(), tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestConfigList_MasksSecrets(t *testing.T) {
	withConfig(t, map[string]interface{}{
		ConfigKeyBackendConfig: map[string]string{"bucket": "b", "secret_access_key": "hunter2"},
	})

	out, err := executeCommand(newConfigCmd(), "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "backend-config.bucket = b") {
		t.Errorf("expected bucket in output, got:\n%s", out)
	}
	if strings.Contains(out, "hunter2") {
		t.Error("secret value must be masked")
	}
}

func TestNormalizeConfigKey(t *testing.T) {
	tests := map[string]string{
		"backend":                "backend",
		"local-file":             "local_file",
		"default-language":       "default_language",
		"backend-config.bucket":  "backend_config.bucket",
		"backend-config.use-ssl": "backend_config.use-ssl",
	}
	for in, want := range tests {
		if got := normalizeConfigKey(in); got != want {
			t.Errorf("normalizeConfigKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveBackendConfig_Precedence(t *testing.T) {
	withConfig(t, map[string]interface{}{
		ConfigKeyBackend:       "s3",
		ConfigKeyBackendConfig: map[string]string{"bucket": "from-file", "region": "eu-west-1", "prefix": "file"},
	})
	t.Setenv(EnvBackendConfigPrefix+"BUCKET", "from-env")
	t.Setenv(EnvBackendConfigPrefix+"PREFIX", "env")

	cfg := resolveBackendConfig([]string{"prefix=flag", "malformed"})

	if cfg.Type != "s3" {
		t.Errorf("expected type s3, got %s", cfg.Type)
	}
	want := map[string]string{"bucket": "from-env", "region": "eu-west-1", "prefix": "flag"}
	for k, v := range want {
		if cfg.Config[k] != v {
			t.Errorf("expected %s=%s, got %q", k, v, cfg.Config[k])
		}
	}
	if _, ok := cfg.Config["malformed"]; ok {
		t.Error("expected flag without '=' to be ignored")
	}
}

func TestResolveLanguage(t *testing.T) {
	withConfig(t, map[string]interface{}{ConfigKeyDefaultLanguage: "system"})
	t.Setenv("LC_ALL", "")
	t.Setenv("LANG", "fr_FR.UTF-8")

	lang, err := resolveLanguage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lang != config.Language("French") {
		t.Errorf("expected French from LANG, got %s", lang)
	}

	viper.Set(ConfigKeyDefaultLanguage, "")
	lang, err = resolveLanguage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lang != store.DefaultLanguage {
		t.Errorf("expected default language, got %s", lang)
	}
}

func TestResolvePlatform(t *testing.T) {
	withConfig(t, map[string]interface{}{ConfigKeyPlatform: "Android"})
	if got := resolvePlatform(); got != "Android" {
		t.Errorf("expected Android, got %s", got)
	}

	viper.Set(ConfigKeyPlatform, "")
	if got := resolvePlatform(); got == "" {
		t.Error("expected platform derived from the host OS")
	}
}
