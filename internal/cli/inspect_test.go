package cli

import (
	"strings"
	"testing"

	"github.com/davidthor/smartcfg/pkg/config"
)

func TestInspectCmd(t *testing.T) {
	path := writeDoc(t, sampleDoc)

	out, err := executeCommand(newInspectCmd(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"Version:    1",
		"Languages:  English, French",
		"Categories: app, gameplay",
		"Platforms:  Android (1)",
		"Global entries (5)",
		"Android entries (1)",
		`{English="Hello", French="Bonjour"}`,
		"app_update_url",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestInspectCmd_OnlyPlatform(t *testing.T) {
	path := writeDoc(t, sampleDoc)

	out, err := executeCommand(newInspectCmd(), path, "--only-platform", "IPhonePlayer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "Android entries") {
		t.Errorf("expected Android block to be hidden, got:\n%s", out)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		value config.Value
		want  string
	}{
		{config.IntValue(-3), "-3"},
		{config.FloatValue(2.5), "2.5"},
		{config.BoolValue(true), "true"},
		{config.StringValue("hi"), `"hi"`},
		{config.TranslatableValue{"French": "Salut", "English": "Hi"}, `{English="Hi", French="Salut"}`},
	}

	for _, tt := range tests {
		if got := formatValue(tt.value); got != tt.want {
			t.Errorf("formatValue(%#v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
