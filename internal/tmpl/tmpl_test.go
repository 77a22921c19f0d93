package tmpl

import (
	"runtime"
	"testing"

	"github.com/oarkflow/notifyevents/internal/config"
)

func TestApply(t *testing.T) {
	t.Setenv("TMPL_TEST_REGION", "eu-west-1")
	cfg := &config.Config{Variables: map[string]interface{}{"service": "billing"}}
	ctx := New(cfg)
	ctx.Set("Stdin", "  line one\nline two  ")

	tests := []struct {
		tmpl string
		want string
	}{
		{"{{ .service }}", "billing"},
		{"{{ .Os }}/{{ .Arch }}", runtime.GOOS + "/" + runtime.GOARCH},
		{`{{ env "TMPL_TEST_REGION" }}`, "eu-west-1"},
		{"{{ .Env.TMPL_TEST_REGION | toupper }}", "EU-WEST-1"},
		{"{{ .Stdin | trim }}", "line one\nline two"},
		{"{{ .Stdin | trim | truncate 4 }}", "line…"},
		{"{{ .Stdin | trim | indent 2 }}", "  line one\n  line two"},
		{`{{ .missing | default "n/a" }}`, "n/a"},
		{"plain text", "plain text"},
	}

	for _, tt := range tests {
		got, err := ctx.Apply(tt.tmpl)
		if err != nil {
			t.Errorf("Apply(%q): %v", tt.tmpl, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Apply(%q) = %q, want %q", tt.tmpl, got, tt.want)
		}
	}
}

func TestApplyParseError(t *testing.T) {
	if _, err := New(nil).Apply("{{ .Hostname "); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSetAndGet(t *testing.T) {
	ctx := New(nil)
	ctx.Set("Title", "hello")
	ctx.Set("Count", 3)

	if ctx.Get("Title") != "hello" {
		t.Errorf("Get(Title) = %q", ctx.Get("Title"))
	}
	if ctx.Get("Count") != "" {
		t.Errorf("non-string values should read as empty, got %q", ctx.Get("Count"))
	}
}
