package objstore

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemStore keeps objects in process memory. Used by tests and dry runs.
type MemStore struct {
	mu      sync.RWMutex
	objects map[string]map[string][]byte
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string]map[string][]byte)}
}

func (m *MemStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[bucket][key]
	if !ok {
		return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, bucket, key)
	}
	return bytes.Clone(b), nil
}

func (m *MemStore) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects[bucket] == nil {
		m.objects[bucket] = make(map[string][]byte)
	}
	m.objects[bucket][key] = bytes.Clone(body)
	return nil
}

func (m *MemStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.objects[bucket] {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Keys returns every key in bucket.
func (m *MemStore) Keys(bucket string) []string {
	keys, _ := m.List(context.Background(), bucket, "")
	return keys
}
