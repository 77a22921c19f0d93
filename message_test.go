package notifyevents

import (
	"errors"
	"strings"
	"testing"
)

func TestNewMessageDefaults(t *testing.T) {
	msg := NewMessage("hello")

	if msg.Content() != "hello" {
		t.Errorf("content = %q", msg.Content())
	}
	if msg.Title() != "" {
		t.Errorf("title = %q", msg.Title())
	}
	if msg.Priority() != PriorityNormal {
		t.Errorf("priority = %q", msg.Priority())
	}
	if msg.Level() != LevelInfo {
		t.Errorf("level = %q", msg.Level())
	}

	var zero Message
	if zero.Priority() != PriorityNormal || zero.Level() != LevelInfo {
		t.Errorf("zero message reports %q/%q", zero.Priority(), zero.Level())
	}
}

func TestSetPriority(t *testing.T) {
	for _, p := range Priorities() {
		t.Run(string(p), func(t *testing.T) {
			msg := NewMessage("x")
			got, err := msg.SetPriority(p)
			if err != nil {
				t.Fatalf("SetPriority(%q): %v", p, err)
			}
			if got != msg {
				t.Error("SetPriority should return the same message")
			}
			if msg.Priority() != p {
				t.Errorf("Priority() = %q, want %q", msg.Priority(), p)
			}
		})
	}

	for _, bad := range []Priority{"", "urgent", "NORMAL", " normal"} {
		t.Run("invalid "+string(bad), func(t *testing.T) {
			msg := NewMessage("x")
			msg.SetPriority(PriorityHigh)
			if _, err := msg.SetPriority(bad); !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("SetPriority(%q) err = %v, want ErrInvalidArgument", bad, err)
			}
			if msg.Priority() != PriorityHigh {
				t.Errorf("priority changed to %q after failed set", msg.Priority())
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	for _, l := range Levels() {
		msg := NewMessage("x")
		if _, err := msg.SetLevel(l); err != nil {
			t.Fatalf("SetLevel(%q): %v", l, err)
		}
		if msg.Level() != l {
			t.Errorf("Level() = %q, want %q", msg.Level(), l)
		}
	}

	for _, bad := range []Level{"", "debug", "critical", "Info"} {
		msg := NewMessage("x")
		if _, err := msg.SetLevel(bad); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("SetLevel(%q) err = %v, want ErrInvalidArgument", bad, err)
		}
		if msg.Level() != LevelInfo {
			t.Errorf("level changed to %q after failed set", msg.Level())
		}
	}
}

func TestParsePriorityAndLevel(t *testing.T) {
	if p, err := ParsePriority("highest"); err != nil || p != PriorityHighest {
		t.Errorf("ParsePriority(highest) = %q, %v", p, err)
	}
	if _, err := ParsePriority("max"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParsePriority(max) err = %v", err)
	}
	if l, err := ParseLevel("success"); err != nil || l != LevelSuccess {
		t.Errorf("ParseLevel(success) = %q, %v", l, err)
	}
	if _, err := ParseLevel("fatal"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParseLevel(fatal) err = %v", err)
	}
}

func TestAccessorsAreStable(t *testing.T) {
	msg := NewMessage("body").SetTitle("head")
	msg.SetPriority(PriorityLow)
	msg.SetLevel(LevelNotice)

	for i := 0; i < 3; i++ {
		if msg.Title() != "head" || msg.Content() != "body" ||
			msg.Priority() != PriorityLow || msg.Level() != LevelNotice {
			t.Fatalf("iteration %d: accessors changed: %q %q %q %q",
				i, msg.Title(), msg.Content(), msg.Priority(), msg.Level())
		}
	}
}

func TestAddAction(t *testing.T) {
	msg := NewMessage("x")

	if _, err := msg.AddAction("n", "t", WithCallbackURL("not-a-url")); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := msg.AddAction("n", "t", WithCallbackURL("")); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty callback url should be rejected, got %v", err)
	}
	if _, err := msg.AddAction("n", "t", WithCallbackURL("https://user:pw@example.com/cb")); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("credentials should be rejected, got %v", err)
	}
	if n := len(msg.Actions()); n != 0 {
		t.Fatalf("failed AddAction appended %d actions", n)
	}

	if _, err := msg.AddAction("n", "t", WithCallbackURL("https://example.com/cb")); err != nil {
		t.Fatalf("AddAction: %v", err)
	}
	if _, err := msg.AddAction("plain", "No callback"); err != nil {
		t.Fatalf("AddAction without url: %v", err)
	}

	actions := msg.Actions()
	if len(actions) != 2 {
		t.Fatalf("len(actions) = %d", len(actions))
	}
	first := actions[0]
	if first.Name != "n" || first.Title != "t" || first.CallbackURL != "https://example.com/cb" {
		t.Errorf("first action = %+v", first)
	}
	if first.CallbackMethod != DefaultCallbackMethod || first.CallbackContent != "" || len(first.CallbackHeaders) != 0 {
		t.Errorf("first action defaults = %+v", first)
	}
}

func TestActionsAreCopied(t *testing.T) {
	headers := map[string]string{"X-Token": "a"}
	msg := NewMessage("x")
	if _, err := msg.AddAction("ack", "Ack",
		WithCallbackURL("https://example.com/ack"),
		WithCallbackMethod("post"),
		WithCallbackHeaders(headers),
		WithCallbackContent(`{"ok":true}`),
	); err != nil {
		t.Fatalf("AddAction: %v", err)
	}

	headers["X-Token"] = "mutated"
	got := msg.Actions()
	got[0].CallbackHeaders["X-Token"] = "mutated-again"

	again := msg.Actions()[0]
	if again.CallbackHeaders["X-Token"] != "a" {
		t.Errorf("stored headers were mutated: %v", again.CallbackHeaders)
	}
	if again.CallbackMethod != "post" || again.CallbackContent != `{"ok":true}` {
		t.Errorf("action = %+v", again)
	}
}

func TestAddFileAndImageNeverFail(t *testing.T) {
	msg := NewMessage("x").
		AddFile(PathOrURL("not/a/real/path")).
		AddFile(Buffer([]byte("data")), WithFilename("data.bin"), WithContentType("application/x-data")).
		AddImage(Reader(strings.NewReader("img")))

	files := msg.Files()
	if len(files) != 2 {
		t.Fatalf("len(files) = %d", len(files))
	}
	if files[1].Filename != "data.bin" || files[1].ContentType != "application/x-data" {
		t.Errorf("files[1] = %+v", files[1])
	}
	if files[0].Filename != "" || files[0].ContentType != "" {
		t.Errorf("unset filename/content type should stay empty until send, got %+v", files[0])
	}
	if len(msg.Images()) != 1 {
		t.Errorf("len(images) = %d", len(msg.Images()))
	}
}
