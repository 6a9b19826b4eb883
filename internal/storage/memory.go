package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process ObjectStore for tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func memKey(bucket, key string) string { return bucket + "/" + key }

func (s *MemoryStore) Exists(_ context.Context, bucket, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[memKey(bucket, key)]
	return ok, nil
}

func (s *MemoryStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[memKey(bucket, key)]
	if !ok {
		return nil, wrapError(CodeObjectNotFound, false, errors.New(key))
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, bucket, key string, data []byte) error {
	if bucket == "" || key == "" {
		return wrapError(CodeWriteFailed, false, errors.New("bucket and key are required"))
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[memKey(bucket, key)] = buf
	return nil
}

func (s *MemoryStore) List(_ context.Context, bucket, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	full := memKey(bucket, prefix)
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, full) {
			keys = append(keys, strings.TrimPrefix(k, bucket+"/"))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Keys returns every key in bucket.
func (s *MemoryStore) Keys(bucket string) []string {
	keys, _ := s.List(context.Background(), bucket, "")
	return keys
}
