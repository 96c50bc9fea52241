// Package blobstore provides object storage for case images. The production
// implementation targets an S3-compatible endpoint; an in-memory store backs
// tests and embedded deployments without object storage.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Store is the object storage interface used by the image services.
type Store interface {
	// Put uploads an object and returns its public URL.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)

	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// KeyFromURL recovers the object key from a URL previously returned by Put.
// The key is everything after the host, minus a leading bucket path segment
// when present.
func KeyFromURL(rawURL, bucket string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse object url %q: %w", rawURL, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	key = strings.TrimPrefix(key, bucket+"/")
	if key == "" {
		return "", fmt.Errorf("object url %q has no key", rawURL)
	}
	return key, nil
}
