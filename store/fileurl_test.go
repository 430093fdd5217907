package store

import (
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBucketURL(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name      string
		opts      FileOptions
		wantQuery url.Values
	}{
		{
			name:      "no options",
			opts:      FileOptions{},
			wantQuery: url.Values{},
		},
		{
			name:      "create dir",
			opts:      FileOptions{CreateDir: true},
			wantQuery: url.Values{"create_dir": []string{"true"}},
		},
		{
			name: "signing",
			opts: FileOptions{BaseURL: "http://localhost:8080/videos", SecretKeyPath: "/etc/blobgate/key"},
			wantQuery: url.Values{
				"base_url":        []string{"http://localhost:8080/videos"},
				"secret_key_path": []string{"/etc/blobgate/key"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FileBucketURL(dir, tt.opts)
			require.NoError(t, err)

			u, err := url.Parse(got)
			require.NoError(t, err)

			assert.Equal(t, "file", u.Scheme)
			assert.Equal(t, filepath.ToSlash(dir), u.Path)
			assert.Equal(t, tt.wantQuery, u.Query())
		})
	}
}

func TestFileBucketURL_EmptyDir(t *testing.T) {
	_, err := FileBucketURL("", FileOptions{})
	require.Error(t, err)
}
