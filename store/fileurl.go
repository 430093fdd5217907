package store

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/go-querystring/query"
)

// FileOptions are the gocloud.dev fileblob URL parameters used for local
// development buckets.
type FileOptions struct {
	// CreateDir creates the directory on open if it does not exist.
	CreateDir bool `url:"create_dir,omitempty"`

	// BaseURL is the URL signed URLs are built on, for example the address
	// of a local server handing out the files.
	BaseURL string `url:"base_url,omitempty"`

	// SecretKeyPath is a file holding the HMAC key used to sign URLs.
	SecretKeyPath string `url:"secret_key_path,omitempty"`
}

// FileBucketURL builds a file:// bucket URL for dir.
func FileBucketURL(dir string, opts FileOptions) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("directory cannot be empty")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve directory %s: %w", dir, err)
	}

	values, err := query.Values(opts)
	if err != nil {
		return "", fmt.Errorf("failed to encode file bucket options: %w", err)
	}

	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	u := url.URL{
		Scheme:   "file",
		Path:     p,
		RawQuery: values.Encode(),
	}

	return u.String(), nil
}
