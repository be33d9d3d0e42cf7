package download

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/playkit/dtg/internal/domain"
)

func TestFetchText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "dtg-test/1.0" {
			t.Errorf("unexpected user agent: %s", r.Header.Get("User-Agent"))
		}
		w.Write([]byte("#EXTM3U\n"))
	}))
	defer srv.Close()

	c := NewClient(2*time.Second, "dtg-test/1.0")
	text, err := c.FetchText(srv.URL)
	if err != nil {
		t.Fatalf("FetchText: %v", err)
	}
	if text != "#EXTM3U\n" {
		t.Errorf("unexpected body: %q", text)
	}
}

func TestFetchTextNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(2*time.Second, "dtg-test/1.0")
	_, err := c.FetchText(srv.URL)
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}
	derr, ok := err.(*domain.Error)
	if !ok || derr.Kind != domain.ErrKindHTTPFailure {
		t.Errorf("expected an http-failure domain error, got %v", err)
	}
}

func TestFetchBodyRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rng := r.Header.Get("Range"); rng == "bytes=4-" {
			w.Header().Set("Content-Range", "bytes 4-9/10")
			w.WriteHeader(http.StatusPartialContent)
			w.Write([]byte("world!"))
			return
		}
		w.Write([]byte("hello world!"))
	}))
	defer srv.Close()

	c := NewClient(2*time.Second, "dtg-test/1.0")

	body, ranged, err := c.FetchBody(t.Context(), srv.URL, 4)
	if err != nil {
		t.Fatalf("FetchBody: %v", err)
	}
	defer body.Close()
	if !ranged {
		t.Error("expected the server's 206 response to be recognized as ranged")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"network timeout", domain.NewNetworkTimeout("u", nil), true},
		{"http 500", domain.NewHTTPFailure("u", 500, nil), true},
		{"http 503", domain.NewHTTPFailure("u", 503, nil), true},
		{"http 408", domain.NewHTTPFailure("u", 408, nil), true},
		{"http 429", domain.NewHTTPFailure("u", 429, nil), true},
		{"http 404", domain.NewHTTPFailure("u", 404, nil), false},
		{"http 400", domain.NewHTTPFailure("u", 400, nil), false},
		{"malformed playlist", domain.NewMalformedPlaylist("bad"), false},
		{"plain error", errPlain{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

type errPlain struct{}

func (errPlain) Error() string { return "plain error" }
