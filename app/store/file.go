package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/winhowes/RemoteData/app/datasource"
)

// FileStore serves the data sources declared in the config file. It is
// replaced wholesale on reload and rejects writes.
type FileStore struct {
	mu      sync.RWMutex
	configs map[string]datasource.Config
}

// NewFileStore indexes cfgs by UUID. Every config must carry one.
func NewFileStore(cfgs []datasource.Config) (*FileStore, error) {
	s := &FileStore{}
	if err := s.Replace(cfgs); err != nil {
		return nil, err
	}
	return s, nil
}

// Replace swaps the served configs.
func (s *FileStore) Replace(cfgs []datasource.Config) error {
	m := make(map[string]datasource.Config, len(cfgs))
	for _, c := range cfgs {
		if c.UUID == "" {
			return fmt.Errorf("data source %s: missing uuid", c.Service)
		}
		if _, dup := m[c.UUID]; dup {
			return fmt.Errorf("duplicate data source uuid %s", c.UUID)
		}
		m[c.UUID] = c
	}
	s.mu.Lock()
	s.configs = m
	s.mu.Unlock()
	return nil
}

func (s *FileStore) Load(_ context.Context, uuid string) (*datasource.Config, error) {
	s.mu.RLock()
	c, ok := s.configs[uuid]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", datasource.ErrNotFound, uuid)
	}
	return &c, nil
}

func (s *FileStore) List(_ context.Context, f Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Record{}
	for _, c := range s.configs {
		r := Record{Config: c, Origin: OriginFile}
		if f.match(r) {
			out = append(out, r)
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *FileStore) Put(context.Context, datasource.Config) error { return ErrReadOnly }
func (s *FileStore) Delete(context.Context, string) error         { return ErrReadOnly }
