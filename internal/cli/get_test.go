package cli

import (
	"strings"
	"testing"

	"github.com/davidthor/smartcfg/pkg/errors"
)

func TestGetCmd_File(t *testing.T) {
	path := writeDoc(t, sampleDoc)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"text string", []string{"app_name"}, "Demo"},
		{"text int", []string{"max_hp"}, "100"},
		{"typed int", []string{"max_hp", "--type", "int"}, "100"},
		{"typed float", []string{"speed", "-t", "float"}, "2.5"},
		{"typed bool", []string{"ads", "--type", "bool"}, "true"},
		{"translation default", []string{"greeting"}, "Hello"},
		{"translation selected", []string{"greeting", "--language", "French"}, "Bonjour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeCommand(newGetCmd(), append(tt.args, "--file", path)...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := strings.TrimSpace(out); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestGetCmd_Platform(t *testing.T) {
	path := writeDoc(t, sampleDoc)

	withConfig(t, map[string]interface{}{ConfigKeyPlatform: "Android"})
	out, err := executeCommand(newGetCmd(), "app_update_url", "--file", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.TrimSpace(out); got != "https://play.example.com" {
		t.Errorf("expected platform value, got %q", got)
	}
}

func TestGetCmd_PlatformIsolation(t *testing.T) {
	path := writeDoc(t, sampleDoc)

	withConfig(t, map[string]interface{}{ConfigKeyPlatform: "IPhonePlayer"})
	_, err := executeCommand(newGetCmd(), "app_update_url", "--file", path)
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected not found for another platform's key, got %v", err)
	}
}

func TestGetCmd_Errors(t *testing.T) {
	path := writeDoc(t, sampleDoc)

	tests := []struct {
		name string
		args []string
	}{
		{"missing key", []string{"nope"}},
		{"type mismatch", []string{"max_hp", "--type", "string"}},
		{"unknown type", []string{"max_hp", "--type", "decimal"}},
		{"unknown language", []string{"greeting", "--language", "not a language"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(newGetCmd(), append(tt.args, "--file", path)...)
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestGetCmd_FromBackend(t *testing.T) {
	objects := t.TempDir()
	withConfig(t, map[string]interface{}{
		ConfigKeyBackend:       "local",
		ConfigKeyBackendConfig: map[string]string{"path": objects},
		ConfigKeyLocalFile:     writeDoc(t, sampleDoc),
	})

	// Nothing published yet: the local file is used.
	out, err := executeCommand(newGetCmd(), "max_hp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.TrimSpace(out); got != "100" {
		t.Errorf("expected local fallback value, got %q", got)
	}

	published := strings.Replace(sampleDoc, `"value":100`, `"value":250`, 1)
	if _, err := executeCommand(newPushCmd(), writeDoc(t, published)); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	out, err = executeCommand(newGetCmd(), "max_hp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.TrimSpace(out); got != "250" {
		t.Errorf("expected published value, got %q", got)
	}
}
