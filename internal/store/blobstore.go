// Package store implements the two persistence adapters the Gateway
// depends on behind narrow interfaces: BlobStore for audio bytes and
// DocStore for battle/vote JSON documents.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gclef-cmu/music-arena/internal/arena"
)

// BlobStore puts and gets content-addressable byte blobs and hands back
// a URI the caller can serve publicly.
type BlobStore interface {
	Put(ctx context.Context, key string, content []byte, contentType string) (uri string, err error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// LocalBlobStore writes blobs under a root directory, with one
// directory standing in for a bucket and a configurable public URL
// prefix for serving them back out.
type LocalBlobStore struct {
	root      string
	publicURL string
}

func NewLocalBlobStore(root, publicURL string) *LocalBlobStore {
	return &LocalBlobStore{root: root, publicURL: publicURL}
}

func (s *LocalBlobStore) Put(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	path := filepath.Join(s.root, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", arena.NewInternalError("blob store mkdir failed: " + err.Error())
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", arena.NewInternalError("blob store write failed: " + err.Error())
	}
	return s.publicURI(key), nil
}

func (s *LocalBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	path := filepath.Join(s.root, key)
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, arena.NewNotFoundError("blob not found: " + key)
		}
		return nil, arena.NewInternalError("blob store read failed: " + err.Error())
	}
	return content, nil
}

func (s *LocalBlobStore) publicURI(key string) string {
	if s.publicURL == "" {
		return filepath.Join(s.root, key)
	}
	return fmt.Sprintf("%s/%s", s.publicURL, key)
}

// ContentKey derives a content-addressed key from bytes and a file
// extension, the convention the gateway uses for audio uploads
// (battle_uuid/{a,b}.<ext>, with the content hash folded in so
// identical bytes never collide on write).
func ContentKey(prefix string, content []byte, ext string) string {
	sum := sha256.Sum256(content)
	return fmt.Sprintf("%s-%s.%s", prefix, hex.EncodeToString(sum[:8]), ext)
}
