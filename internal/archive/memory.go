package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	info Info
	data []byte
}

// Memory is an in-process snapshot store for tests.
type Memory struct {
	mu   sync.RWMutex
	objs map[string]memoryEntry
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory snapshot store.
func NewMemory() *Memory {
	return &Memory{objs: make(map[string]memoryEntry)}
}

// Driver implements Store.
func (s *Memory) Driver() Driver { return DriverMemory }

// Put implements Store.
func (s *Memory) Put(_ context.Context, key string, r io.Reader) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objs[key]; exists {
		return Info{}, fmt.Errorf("%w: %s", ErrExists, key)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Info{}, err
	}
	info := Info{Key: key, Size: int64(len(data)), LastModified: time.Now().UTC()}
	s.objs[key] = memoryEntry{info: info, data: data}
	return info, nil
}

// Get implements Store.
func (s *Memory) Get(_ context.Context, key string) (Info, io.ReadCloser, error) {
	s.mu.RLock()
	entry, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return Info{}, nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	data := make([]byte, len(entry.data))
	copy(data, entry.data)
	return entry.info, io.NopCloser(bytes.NewReader(data)), nil
}

// Delete implements Store.
func (s *Memory) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objs[key]; !ok {
		return false, nil
	}
	delete(s.objs, key)
	return true, nil
}

// List implements Store.
func (s *Memory) List(_ context.Context, prefix string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var infos []Info
	for key, entry := range s.objs {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, entry.info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}
