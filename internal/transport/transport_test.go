package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPerformSendsHeadersAndBody(t *testing.T) {
	var gotBody, gotType, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotType = r.Header.Get("Content-Type")
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(WithUserAgent("notifyevents-test"))
	header := http.Header{}
	header.Set("Content-Type", "text/plain")

	resp, err := c.Perform(context.Background(), http.MethodPost, srv.URL, strings.NewReader("hello"), header)
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	resp.Body.Close()

	if gotBody != "hello" {
		t.Errorf("body = %q", gotBody)
	}
	if gotType != "text/plain" {
		t.Errorf("content type = %q", gotType)
	}
	if gotUA != "notifyevents-test" {
		t.Errorf("user agent = %q", gotUA)
	}
}

func TestPerformStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := New().Perform(context.Background(), http.MethodPost, srv.URL, nil, nil)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d", statusErr.StatusCode)
	}
	if !strings.Contains(statusErr.Body, "bad token") {
		t.Errorf("body = %q", statusErr.Body)
	}
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/pic.png", http.StatusFound)
	})
	mux.HandleFunc("/pic.png", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "png-bytes")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	body, err := New().Fetch(context.Background(), srv.URL+"/start")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if string(data) != "png-bytes" {
		t.Errorf("data = %q", data)
	}
}

func TestFetchRedirectLimit(t *testing.T) {
	tests := []struct {
		hops    int
		wantErr bool
	}{
		{hops: MaxRedirects, wantErr: false},
		{hops: MaxRedirects + 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d hops", tt.hops), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var n int
				fmt.Sscanf(r.URL.Query().Get("n"), "%d", &n)
				if n < tt.hops {
					http.Redirect(w, r, fmt.Sprintf("/?n=%d", n+1), http.StatusFound)
					return
				}
				fmt.Fprint(w, "done")
			}))
			defer srv.Close()

			body, err := New().Fetch(context.Background(), srv.URL+"/?n=0")
			if tt.wantErr {
				if !errors.Is(err, ErrTooManyRedirects) {
					t.Fatalf("expected ErrTooManyRedirects, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			body.Close()
		})
	}
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := New().Fetch(context.Background(), srv.URL+"/missing.png")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
}

func TestFetchBodyDeadlineStartsAtFirstRead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "late but fine")
	}))
	defer srv.Close()

	c := New(WithFetchTimeout(100 * time.Millisecond))
	body, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer body.Close()

	// Another attachment is being copied meanwhile.
	time.Sleep(300 * time.Millisecond)

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read after idle wait: %v", err)
	}
	if string(data) != "late but fine" {
		t.Errorf("data = %q", data)
	}
}

func TestFetchBodyStalls(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "first chunk")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(WithFetchTimeout(100 * time.Millisecond))
	body, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer body.Close()

	if _, err := io.ReadAll(body); err == nil {
		t.Fatal("expected stalled body to fail")
	}
}

func TestFetchHeaderTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(WithFetchTimeout(100*time.Millisecond)).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}
