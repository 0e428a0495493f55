package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/config"
)

// FromConfig picks the backend: an S3-compatible endpoint when configured,
// otherwise files under DATA_DIR (default "data") for local runs.
func FromConfig(cfg *config.Config) (Store, error) {
	if cfg.S3Endpoint != "" {
		return NewS3Store(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.Bucket)
	}
	root := os.Getenv("DATA_DIR")
	if root == "" {
		root = "data"
	}
	return NewFSStore(root), nil
}

// Store is the object store the scrapers and the fetcher drop raw tender
// payloads into. Keys are prefixed by source (eskom/, sanral/, ...).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, metadata map[string]string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// S3Store talks to any S3-compatible endpoint.
type S3Store struct {
	client *minio.Client
	bucket string
}

func NewS3Store(endpoint, accessKey, secretKey, bucket string) (*S3Store, error) {
	secure := !strings.HasPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("object store client: %w", err)
	}

	return &S3Store{client: client, bucket: bucket}, nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", s.bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  "application/json",
		UserMetadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// FSStore keeps objects as files under a root directory. Used for local
// development where no object store endpoint is configured.
type FSStore struct {
	root string
}

func NewFSStore(root string) *FSStore {
	return &FSStore{root: root}
}

func (s *FSStore) Get(ctx context.Context, key string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.root, filepath.FromSlash(key)))
}

func (s *FSStore) Put(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *FSStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	meta    map[string]map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{
		objects: make(map[string][]byte),
		meta:    make(map[string]map[string]string),
	}
}

func (s *MemStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemStore) Put(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	s.meta[key] = metadata
	return nil
}

func (s *MemStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Metadata returns the metadata stored with a key; test helper.
func (s *MemStore) Metadata(key string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta[key]
}
