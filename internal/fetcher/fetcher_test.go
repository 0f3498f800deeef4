package fetcher

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
)

func kindOf(t *testing.T, err error) string {
	t.Helper()
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *fetcher.Error, got %T: %v", err, err)
	}
	return fe.Kind
}

// TestFetchBlocksMetadataIP covers spec §8 scenario 1: a literal-IP request
// at the cloud-metadata address is rejected before any round trip happens.
func TestFetchBlocksMetadataIP(t *testing.T) {
	f := &Fetcher{
		Resolver: func(ctx context.Context, hostname string) ([]net.IP, error) {
			t.Fatal("resolver should not be called for a literal IP")
			return nil, nil
		},
		Do: func(req *http.Request) (*http.Response, error) {
			t.Fatal("round tripper should not be called, fetch must be rejected pre-flight")
			return nil, nil
		},
	}

	_, err := f.Fetch(context.Background(), "http://169.254.169.254/latest/meta-data/", Options{})
	if err == nil {
		t.Fatal("expected metadata IP fetch to fail")
	}
	if kind := kindOf(t, err); kind != KindBlockedIP {
		t.Fatalf("expected kind %q, got %q", KindBlockedIP, kind)
	}
}

// TestFetchBlocksRedirectToPrivateHost covers spec §8 scenario 2: a public
// start URL that redirects to a private-range literal IP is rejected on the
// second hop, without ever reading the redirect target's body.
func TestFetchBlocksRedirectToPrivateHost(t *testing.T) {
	calls := 0
	f := &Fetcher{
		Resolver: func(ctx context.Context, hostname string) ([]net.IP, error) {
			if hostname != "example.com" {
				t.Fatalf("unexpected resolver hostname %q", hostname)
			}
			return []net.IP{net.ParseIP("93.184.216.34")}, nil
		},
		Do: func(req *http.Request) (*http.Response, error) {
			calls++
			if req.URL.String() != "https://example.com/start" {
				t.Fatalf("expected first hop to example.com/start, got %s", req.URL.String())
			}
			resp := &http.Response{
				StatusCode: http.StatusFound,
				Header:     http.Header{"Location": []string{"https://127.0.0.1/internal"}},
				Body:       io.NopCloser(strings.NewReader("")),
			}
			return resp, nil
		},
	}

	_, err := f.Fetch(context.Background(), "https://example.com/start", Options{})
	if err == nil {
		t.Fatal("expected redirect-to-private-host fetch to fail")
	}
	switch kindOf(t, err) {
	case KindBlockedHostname, KindBlockedIP, KindBlockedResolvedIP:
	default:
		t.Fatalf("expected one of blocked-hostname|blocked-ip|blocked-resolved-ip, got %q", kindOf(t, err))
	}
	if calls != 1 {
		t.Fatalf("expected exactly one round trip before the redirect was rejected, got %d", calls)
	}
}

func TestFetchBlocksDisallowedPort(t *testing.T) {
	f := &Fetcher{
		Resolver: func(ctx context.Context, hostname string) ([]net.IP, error) {
			return []net.IP{net.ParseIP("93.184.216.34")}, nil
		},
		Do: func(req *http.Request) (*http.Response, error) {
			t.Fatal("round tripper should not be called for a disallowed port")
			return nil, nil
		},
	}

	_, err := f.Fetch(context.Background(), "https://example.com:9999/", Options{})
	if kind := kindOf(t, err); kind != KindBlockedPort {
		t.Fatalf("expected kind %q, got %q", KindBlockedPort, kind)
	}
}

func TestFetchRejectsDisallowedContentType(t *testing.T) {
	f := &Fetcher{
		Resolver: func(ctx context.Context, hostname string) ([]net.IP, error) {
			return []net.IP{net.ParseIP("93.184.216.34")}, nil
		},
		Do: func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{"application/octet-stream"}},
				Body:       io.NopCloser(strings.NewReader("binary")),
			}, nil
		},
	}

	_, err := f.Fetch(context.Background(), "https://example.com/file", Options{Method: http.MethodGet})
	if kind := kindOf(t, err); kind != KindDisallowedContentType {
		t.Fatalf("expected kind %q, got %q", KindDisallowedContentType, kind)
	}
}

func TestFetchEnforcesResponseByteBudget(t *testing.T) {
	f := &Fetcher{
		Resolver: func(ctx context.Context, hostname string) ([]net.IP, error) {
			return []net.IP{net.ParseIP("93.184.216.34")}, nil
		},
		Do: func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{"text/plain"}},
				Body:       io.NopCloser(strings.NewReader(strings.Repeat("a", 2048))),
			}, nil
		},
	}

	_, err := f.Fetch(context.Background(), "https://example.com/big", Options{Method: http.MethodGet, MaxBytes: 1024})
	if kind := kindOf(t, err); kind != KindResponseTooLarge {
		t.Fatalf("expected kind %q, got %q", KindResponseTooLarge, kind)
	}
}

func TestFetchFollowsRedirectAndReturnsFinalURL(t *testing.T) {
	hop := 0
	f := &Fetcher{
		Resolver: func(ctx context.Context, hostname string) ([]net.IP, error) {
			return []net.IP{net.ParseIP("93.184.216.34")}, nil
		},
		Do: func(req *http.Request) (*http.Response, error) {
			hop++
			if hop == 1 {
				return &http.Response{
					StatusCode: http.StatusMovedPermanently,
					Header:     http.Header{"Location": []string{"https://example.com/final"}},
					Body:       io.NopCloser(strings.NewReader("")),
				}, nil
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{"text/html"}},
				Body:       io.NopCloser(strings.NewReader("<html></html>")),
			}, nil
		},
	}

	res, err := f.Fetch(context.Background(), "https://example.com/start", Options{Method: http.MethodGet})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FinalURL != "https://example.com/final" {
		t.Fatalf("expected final URL to be the redirect target, got %q", res.FinalURL)
	}
	if len(res.Redirects) != 1 {
		t.Fatalf("expected one recorded redirect hop, got %d", len(res.Redirects))
	}
}
