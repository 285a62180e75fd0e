package stimbank

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Memory holds stimulus content in process memory. Intended for tests.
type Memory struct {
	mu   sync.RWMutex
	objs map[string][]byte
}

// NewMemory returns an empty in-memory bank.
func NewMemory() *Memory {
	return &Memory{objs: make(map[string][]byte)}
}

// Driver returns the backend identifier.
func (s *Memory) Driver() Driver { return DriverMemory }

// Put stores content under key; overwriting an existing key is an error.
func (s *Memory) Put(_ context.Context, key string, r io.Reader) (Info, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return Info{}, err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return Info{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objs[k]; exists {
		return Info{}, fmt.Errorf("stimulus %s already exists", key)
	}
	s.objs[k] = b
	return Info{Key: k, Size: int64(len(b))}, nil
}

// Open returns a reader over the content at key.
func (s *Memory) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	b, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("stimulus %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

// Head returns metadata for key.
func (s *Memory) Head(_ context.Context, key string) (Info, error) {
	s.mu.RLock()
	b, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return Info{}, fmt.Errorf("stimulus %s not found", key)
	}
	return Info{Key: key, Size: int64(len(b))}, nil
}

// List returns the keys under prefix in sorted order.
func (s *Memory) List(_ context.Context, prefix string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Info
	for k, b := range s.objs {
		if prefix != "" && !strings.HasPrefix(k, prefix) {
			continue
		}
		out = append(out, Info{Key: k, Size: int64(len(b))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
