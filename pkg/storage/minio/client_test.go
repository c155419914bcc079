package minio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chromecollective/marketplace-backend/pkg/config"
)

type fakeS3 struct {
	mu          sync.Mutex
	heads       int32
	makes       int32
	policies    int32
	bucketFound bool
	makeStatus  int
	makeBody    string
}

func (f *fakeS3) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case r.Method == http.MethodHead:
			f.heads++
			if f.bucketFound {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut && r.URL.Query().Has("policy"):
			f.policies++
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPut:
			f.makes++
			status := f.makeStatus
			if status == 0 {
				status = http.StatusOK
			}
			if f.makeBody != "" {
				w.Header().Set("Content-Type", "application/xml")
			}
			w.WriteHeader(status)
			_, _ = w.Write([]byte(f.makeBody))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.String())
			w.WriteHeader(http.StatusBadRequest)
		}
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, publicRead bool) *Client {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	client, err := New(config.StorageConfig{
		Endpoint:   u.Host,
		Region:     "us-east-1",
		AccessKey:  "minioadmin",
		SecretKey:  "minioadmin",
		Bucket:     "chrome-hearts",
		PublicRead: publicRead,
	}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestEnsureBucketCreatesOnce(t *testing.T) {
	fake := &fakeS3{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()
	client := newTestClient(t, srv, true)

	for i := 0; i < 3; i++ {
		if err := client.EnsureBucket(context.Background()); err != nil {
			t.Fatalf("ensure bucket: %v", err)
		}
	}
	if fake.heads != 1 || fake.makes != 1 || fake.policies != 1 {
		t.Fatalf("expected one check/create/policy, got heads=%d makes=%d policies=%d", fake.heads, fake.makes, fake.policies)
	}
}

func TestEnsureBucketToleratesAlreadyOwned(t *testing.T) {
	fake := &fakeS3{
		makeStatus: http.StatusConflict,
		makeBody: `<?xml version="1.0" encoding="UTF-8"?>` +
			`<Error><Code>BucketAlreadyOwnedByYou</Code><Message>owned</Message><BucketName>chrome-hearts</BucketName><RequestId>1</RequestId></Error>`,
	}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()
	client := newTestClient(t, srv, false)

	if err := client.EnsureBucket(context.Background()); err != nil {
		t.Fatalf("already-owned should be success, got %v", err)
	}
	if fake.policies != 0 {
		t.Fatalf("policy should not be applied when public read is off")
	}
}

func TestEnsureBucketSkipsCreateWhenPresent(t *testing.T) {
	fake := &fakeS3{bucketFound: true}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()
	client := newTestClient(t, srv, false)

	if err := client.EnsureBucket(context.Background()); err != nil {
		t.Fatalf("ensure bucket: %v", err)
	}
	if fake.makes != 0 {
		t.Fatalf("did not expect make bucket call")
	}
}

func TestPresignPutSignsContentType(t *testing.T) {
	fake := &fakeS3{bucketFound: true}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()
	client := newTestClient(t, srv, false)

	u, err := client.PresignPut(context.Background(), "products/abc-ring.jpg", "image/jpeg", time.Hour)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.HasSuffix(u.Path, "/chrome-hearts/products/abc-ring.jpg") {
		t.Fatalf("unexpected presigned path %s", u.Path)
	}
	q := u.Query()
	if q.Get("X-Amz-Expires") != "3600" {
		t.Fatalf("expected 3600s expiry, got %q", q.Get("X-Amz-Expires"))
	}
	if !strings.Contains(q.Get("X-Amz-SignedHeaders"), "content-type") {
		t.Fatalf("expected content-type to be signed, got %q", q.Get("X-Amz-SignedHeaders"))
	}
	if q.Get("X-Amz-Signature") == "" {
		t.Fatal("missing signature")
	}
}

func TestPublicURL(t *testing.T) {
	c := &Client{publicBase: "http://localhost:9000/chrome-hearts"}
	if got := c.PublicURL("/products/a.jpg"); got != "http://localhost:9000/chrome-hearts/products/a.jpg" {
		t.Fatalf("unexpected public url %s", got)
	}

	override, err := New(config.StorageConfig{
		Endpoint:      "minio:9000",
		Bucket:        "b",
		PublicBaseURL: "https://cdn.example.com/",
	}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := override.PublicURL("k"); got != "https://cdn.example.com/k" {
		t.Fatalf("unexpected override url %s", got)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(config.StorageConfig{Endpoint: "localhost:9000"}, nil); err == nil {
		t.Fatal("expected missing bucket error")
	}
}
