package store

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateTransferSpeedMBps(t *testing.T) {
	tests := []struct {
		name         string
		bytes        int64
		duration     time.Duration
		expectedMBps float64
	}{
		{
			name:         "1MB in 1 second",
			bytes:        1_000_000,
			duration:     time.Second,
			expectedMBps: 1.0,
		},
		{
			name:         "10MB in 2 seconds",
			bytes:        10_000_000,
			duration:     2 * time.Second,
			expectedMBps: 5.0,
		},
		{
			name:         "500KB in 0.5 seconds",
			bytes:        500_000,
			duration:     500 * time.Millisecond,
			expectedMBps: 1.0,
		},
		{
			name:         "Zero bytes",
			bytes:        0,
			duration:     time.Second,
			expectedMBps: 0.0,
		},
		{
			name:         "Zero duration",
			bytes:        1024,
			duration:     0,
			expectedMBps: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actualMBps := calculateTransferSpeedMBps(tt.bytes, tt.duration)

			if actualMBps != tt.expectedMBps {
				t.Errorf("Expected %.6f MB/s, got %.6f MB/s", tt.expectedMBps, actualMBps)
			}
		})
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name        string
		key         string
		wantErr     bool
		errContains string
	}{
		{
			name: "simple video name",
			key:  "intro.mp4",
		},
		{
			name: "nested video name",
			key:  "courses/week-1/intro.mp4",
		},
		{
			name: "max length",
			key:  strings.Repeat("a", MaxKeyLength),
		},
		{
			name:        "empty key",
			key:         "",
			wantErr:     true,
			errContains: "cannot be empty",
		},
		{
			name:        "too long",
			key:         strings.Repeat("a", MaxKeyLength+1),
			wantErr:     true,
			errContains: "too long",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidKey)
				assert.Contains(t, err.Error(), tt.errContains)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNormalizePrefix(t *testing.T) {
	assert.Equal(t, "", normalizePrefix(""))
	assert.Equal(t, "", normalizePrefix("/"))
	assert.Equal(t, "videos/", normalizePrefix("videos"))
	assert.Equal(t, "videos/", normalizePrefix("/videos/"))
	assert.Equal(t, "a/b/", normalizePrefix("a/b"))
}
