package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// well known Azurite development account
const (
	devAccountName = "devstoreaccount1"
	devAccountKey  = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
)

func devConnectionString(endpoint string) string {
	return "DefaultEndpointsProtocol=http;AccountName=" + devAccountName +
		";AccountKey=" + devAccountKey +
		";BlobEndpoint=" + endpoint + "/" + devAccountName + ";"
}

type recordedRequest struct {
	method string
	query  url.Values
	header http.Header
}

// fakeService records every request before handing it to handler.
type fakeService struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{method: r.Method, query: r.URL.Query(), header: r.Header.Clone()})
	f.mu.Unlock()
	f.handler(w, r)
}

func newFakeAzure(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*fakeService, *Bucket) {
	t.Helper()

	fake := &fakeService{handler: handler}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	b, err := NewAzureBlob(context.Background(), AzureOptions{
		ConnectionString: devConnectionString(server.URL),
		ContainerName:    "videos",
		HTTPClient:       NewHTTPClient("test"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	return fake, b
}

func TestNewAzureBlob_Validation(t *testing.T) {
	tests := []struct {
		name        string
		opts        AzureOptions
		errContains string
	}{
		{
			name:        "missing connection string",
			opts:        AzureOptions{ContainerName: "videos"},
			errContains: "connection string cannot be empty",
		},
		{
			name:        "missing container",
			opts:        AzureOptions{ConnectionString: devConnectionString("http://127.0.0.1:10000")},
			errContains: "container name cannot be empty",
		},
		{
			name:        "malformed connection string",
			opts:        AzureOptions{ConnectionString: "not-a-connection-string", ContainerName: "videos"},
			errContains: "failed to create azure container client",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAzureBlob(context.Background(), tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestAzureBlob_SignedURL(t *testing.T) {
	ctx := context.Background()

	b, err := NewAzureBlob(ctx, AzureOptions{
		ConnectionString: devConnectionString("http://127.0.0.1:10000"),
		ContainerName:    "videos",
	})
	require.NoError(t, err)
	defer b.Close()

	before := time.Now().UTC().Truncate(time.Second)

	signed, err := b.SignedURL(ctx, "intro.mp4", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:10000", u.Host)
	assert.Equal(t, "/devstoreaccount1/videos/intro.mp4", u.Path)

	q := u.Query()
	assert.Equal(t, "r", q.Get("sp"))
	assert.Equal(t, "b", q.Get("sr"))
	assert.NotEmpty(t, q.Get("sig"))
	assert.Empty(t, q.Get("st"), "start time must be omitted to tolerate clock skew")

	expiry, err := time.Parse(time.RFC3339, q.Get("se"))
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(15*time.Minute), expiry, 5*time.Second)
}

func TestAzureBlob_CreateIfNotExists(t *testing.T) {
	ctx := context.Background()

	t.Run("created", func(t *testing.T) {
		fake, b := newFakeAzure(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})

		created, err := b.CreateIfNotExists(ctx)
		require.NoError(t, err)
		assert.True(t, created)

		require.Len(t, fake.requests, 1)
		req := fake.requests[0]
		assert.Equal(t, http.MethodPut, req.method)
		assert.Equal(t, "container", req.query.Get("restype"))
		assert.Empty(t, req.header.Get("x-ms-blob-public-access"))
		assert.Contains(t, req.header.Get("User-Agent"), "blobgate/test")
	})

	t.Run("already exists", func(t *testing.T) {
		_, b := newFakeAzure(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("x-ms-error-code", "ContainerAlreadyExists")
			w.WriteHeader(http.StatusConflict)
		})

		created, err := b.CreateIfNotExists(ctx)
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("forbidden", func(t *testing.T) {
		_, b := newFakeAzure(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("x-ms-error-code", "AuthorizationFailure")
			w.WriteHeader(http.StatusForbidden)
		})

		_, err := b.CreateIfNotExists(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create container videos")
	})
}

func TestAzureBlob_RestrictPublicAccess(t *testing.T) {
	ctx := context.Background()

	const emptyACL = `<?xml version="1.0" encoding="utf-8"?><SignedIdentifiers></SignedIdentifiers>`

	t.Run("public container is made private", func(t *testing.T) {
		fake, b := newFakeAzure(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				w.Header().Set("Content-Type", "application/xml")
				w.Header().Set("x-ms-blob-public-access", "blob")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(emptyACL))
				return
			}
			w.WriteHeader(http.StatusOK)
		})

		changed, err := b.RestrictPublicAccess(ctx)
		require.NoError(t, err)
		assert.True(t, changed)

		require.Len(t, fake.requests, 2)
		set := fake.requests[1]
		assert.Equal(t, http.MethodPut, set.method)
		assert.Equal(t, "acl", set.query.Get("comp"))
		assert.Empty(t, set.header.Get("x-ms-blob-public-access"))
	})

	t.Run("private container is left alone", func(t *testing.T) {
		fake, b := newFakeAzure(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(emptyACL))
		})

		changed, err := b.RestrictPublicAccess(ctx)
		require.NoError(t, err)
		assert.False(t, changed)

		require.Len(t, fake.requests, 1)
		assert.True(t, strings.EqualFold(http.MethodGet, fake.requests[0].method))
	})
}
