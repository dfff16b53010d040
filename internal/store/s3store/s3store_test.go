package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/skhoolar/skhoolar/internal/store"
	"github.com/skhoolar/skhoolar/internal/store/storetest"
)

// fakeS3 serves the path-style object calls the stores make.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{objects: make(map[string][]byte)}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func s3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`, code, code)
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := r.URL.Path
	switch r.Method {
	case http.MethodPut:
		if r.Header.Get("If-None-Match") == "*" {
			if _, ok := f.objects[key]; ok {
				s3Error(w, http.StatusPreconditionFailed, "PreconditionFailed")
				return
			}
		}
		data, _ := io.ReadAll(r.Body)
		f.objects[key] = data
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			s3Error(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.Write(data)
	case http.MethodHead:
		data, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.objects))
	for k := range f.objects {
		out = append(out, k)
	}
	return out
}

func testOptions(srv *httptest.Server) Options {
	return Options{
		Bucket:     "vault",
		Region:     "us-east-1",
		Endpoint:   srv.URL,
		Prefix:     "test/",
		AccessKey:  "AKIDTEST",
		SecretKey:  "secret",
		HTTPClient: srv.Client(),
	}
}

func TestKeyStore_Conformance(t *testing.T) {
	_, srv := newFakeS3(t)
	ks, err := NewKeyStore(context.Background(), testOptions(srv))
	if err != nil {
		t.Fatalf("NewKeyStore: %v", err)
	}
	defer ks.Close()
	storetest.TestKeyStore(t, ks)
}

func TestBlobStore_Conformance(t *testing.T) {
	_, srv := newFakeS3(t)
	bs, err := NewBlobStore(context.Background(), testOptions(srv))
	if err != nil {
		t.Fatalf("NewBlobStore: %v", err)
	}
	defer bs.Close()
	storetest.TestBlobStore(t, bs)
}

func TestStores_SeparateNamespaces(t *testing.T) {
	f, srv := newFakeS3(t)
	ctx := context.Background()
	ks, _ := NewKeyStore(ctx, testOptions(srv))
	bs, _ := NewBlobStore(ctx, testOptions(srv))

	if _, err := ks.CreateKey(ctx, store.EncryptionKeyName, []byte("key")); err != nil {
		t.Fatalf("CreateKey: %v", err)
	}
	if err := bs.PutBlob(ctx, store.CredentialBlobName, "blob"); err != nil {
		t.Fatalf("PutBlob: %v", err)
	}
	if err := bs.DeleteBlob(ctx, store.CredentialBlobName); err != nil {
		t.Fatalf("DeleteBlob: %v", err)
	}

	keys := f.keys()
	if len(keys) != 1 || !strings.HasSuffix(keys[0], "/test/keys/"+store.EncryptionKeyName) {
		t.Errorf("objects after clearing the blob = %v", keys)
	}
}

func TestOpen_MissingBucket(t *testing.T) {
	_, err := NewBlobStore(context.Background(), Options{})
	if !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestOptions_String(t *testing.T) {
	o := Options{Bucket: "vault", SecretKey: "hunter2"}
	if s := o.String(); s != "s3://vault" {
		t.Errorf("String = %q", s)
	}
}
