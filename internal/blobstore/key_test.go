package blobstore

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	key := NewKey(42, "Wound Photo.JPG", now)
	assert.Regexp(t, fmt.Sprintf(`^42/%d-[0-9a-f]{12}\.jpg$`, now.UnixMilli()), key)

	// Extension is optional.
	key = NewKey(7, "noext", now)
	assert.Regexp(t, `^7/\d+-[0-9a-f]{12}$`, key)
}

func TestNewKeyUnique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := NewKey(1, "a.png", now)
		assert.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
	}
}

func TestKeyFromURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		bucket  string
		want    string
		wantErr bool
	}{
		{
			name:   "path style with bucket",
			url:    "https://nyc3.digitaloceanspaces.com/casebook/42/123-abc.jpg",
			bucket: "casebook",
			want:   "42/123-abc.jpg",
		},
		{
			name:   "virtual host style",
			url:    "https://casebook.nyc3.digitaloceanspaces.com/42/123-abc.jpg",
			bucket: "casebook",
			want:   "42/123-abc.jpg",
		},
		{
			name:    "no key",
			url:     "https://nyc3.digitaloceanspaces.com/casebook/",
			bucket:  "casebook",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := KeyFromURL(tt.url, tt.bucket)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, key)
		})
	}
}
