package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const sampleDoc = `{"version":1,
"platforms":[{"platform":"Android","entries":[
	{"key":"app_update_url","type":"String","value":"https://play.example.com"}
]}],
"entries":[
	{"key":"app_name","type":"String","value":"Demo","category":"app"},
	{"key":"max_hp","type":"Int","value":100,"category":"gameplay"},
	{"key":"speed","type":"Float","value":2.5},
	{"key":"ads","type":"Bool","value":true},
	{"key":"greeting","type":"Translatable","value":{"English":"Hello","French":"Bonjour"}}
]}`

const duplicateDoc = `{"version":1,"platforms":[],"entries":[
	{"key":"a","type":"Int","value":1},
	{"key":"a","type":"Int","value":2}
]}`

// Helper function to execute a command and capture output
func executeCommand(cmd *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return buf.String(), err
}

// writeDoc writes content to a RemoteConfig.json in a temp directory.
func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "RemoteConfig.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write document: %v", err)
	}
	return path
}

// withConfig overrides viper keys for the duration of the test.
func withConfig(t *testing.T, values map[string]interface{}) {
	t.Helper()
	for key, value := range values {
		prev := viper.Get(key)
		viper.Set(key, value)
		t.Cleanup(func() { viper.Set(key, prev) })
	}
}

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()

	if cmd.Use != "smartcfg" {
		t.Errorf("expected use 'smartcfg', got '%s'", cmd.Use)
	}

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}
	for _, expected := range []string{"validate", "inspect", "get", "lint", "push", "pull", "serve", "config", "version"} {
		if !subcommands[expected] {
			t.Errorf("expected subcommand '%s' not found", expected)
		}
	}

	for _, flag := range []string{"backend", "backend-config", "object", "local-file", "platform", "default-language", "log-level", "log-file"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("expected persistent flag --%s", flag)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := executeCommand(newVersionCmd())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Contains([]byte(out), []byte("smartcfg dev")) {
		t.Errorf("expected version line, got %q", out)
	}
}
