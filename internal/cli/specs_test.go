package cli

import (
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/oarkflow/notifyevents"
)

func TestParseAttachment(t *testing.T) {
	tests := []struct {
		in   string
		want AttachmentSpec
	}{
		{"report.pdf", AttachmentSpec{Source: "report.pdf"}},
		{" /tmp/file.txt :: text/plain ", AttachmentSpec{Source: "/tmp/file.txt", ContentType: "text/plain"}},
		{"https://example.com/a.png::image/png::logo.png", AttachmentSpec{Source: "https://example.com/a.png", ContentType: "image/png", Filename: "logo.png"}},
		{"-::::stdin.log", AttachmentSpec{Source: "-", Filename: "stdin.log"}},
	}
	for _, tt := range tests {
		got, err := ParseAttachment(tt.in)
		if err != nil {
			t.Errorf("ParseAttachment(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAttachment(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseAttachment("  ::text/plain"); err == nil {
		t.Error("expected error for missing source")
	}
}

func TestAttachmentOptionsDetectsContentType(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/data/notes", []byte("just some plain text\n"), 0o644)

	spec := AttachmentSpec{Source: "/data/notes"}
	src, opts := spec.Options(fs, nil)

	msg := notifyevents.NewMessage("x").AddFile(src, opts...)
	got := msg.Files()[0]
	if !strings.HasPrefix(got.ContentType, "text/plain") {
		t.Errorf("content type = %q, want text/plain", got.ContentType)
	}
	if got.Filename != "" {
		t.Errorf("filename should be left to the resolver, got %q", got.Filename)
	}
}

func TestAttachmentOptionsKeepsExplicitValues(t *testing.T) {
	spec := AttachmentSpec{Source: "https://example.com/x", ContentType: "image/webp", Filename: "x.webp"}
	src, opts := spec.Options(afero.NewMemMapFs(), nil)

	got := notifyevents.NewMessage("x").AddImage(src, opts...).Images()[0]
	if got.ContentType != "image/webp" || got.Filename != "x.webp" {
		t.Errorf("attachment = %+v", got)
	}
}

func TestAttachmentOptionsSkipsDetectionForURLsAndMissingFiles(t *testing.T) {
	for _, source := range []string{"https://example.com/pic.png", "/nope/missing.bin"} {
		src, opts := AttachmentSpec{Source: source}.Options(afero.NewMemMapFs(), nil)
		got := notifyevents.NewMessage("x").AddFile(src, opts...).Files()[0]
		if got.ContentType != "" {
			t.Errorf("%s: content type = %q, want empty", source, got.ContentType)
		}
	}
}

func TestParseAction(t *testing.T) {
	got, err := ParseAction("ack | Acknowledge | https://example.com/ack | POST")
	if err != nil {
		t.Fatalf("ParseAction: %v", err)
	}
	want := ActionSpec{Name: "ack", Title: "Acknowledge", CallbackURL: "https://example.com/ack", CallbackMethod: "post"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	msg := notifyevents.NewMessage("x")
	if _, err := msg.AddAction(got.Name, got.Title, got.Options()...); err != nil {
		t.Fatalf("AddAction: %v", err)
	}
	action := msg.Actions()[0]
	if action.CallbackMethod != "post" || action.CallbackURL != want.CallbackURL {
		t.Errorf("action = %+v", action)
	}

	for _, bad := range []string{"only-name", "|title", "a|b|c|d|e"} {
		if _, err := ParseAction(bad); err == nil {
			t.Errorf("ParseAction(%q) should fail", bad)
		}
	}
}
