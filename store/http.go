package store

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzhttp"
)

// NewHTTPClient returns the client handed to the Azure SDK. It tags every
// request with the blobgate user agent and transparently decompresses gzip
// responses.
func NewHTTPClient(version string) *http.Client {
	userAgent := fmt.Sprint("blobgate/", version)

	client := &http.Client{}

	client.Transport = gzhttp.Transport(roundTripperFunc(
		func(req *http.Request) (*http.Response, error) {
			req = req.Clone(req.Context())
			req.Header.Set("User-Agent", strings.TrimSpace(req.Header.Get("User-Agent")+" "+userAgent))
			return http.DefaultTransport.RoundTrip(req)
		}),
	)

	return client
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (fn roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return fn(r)
}
