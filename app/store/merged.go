package store

import (
	"context"
	"errors"

	"github.com/winhowes/RemoteData/app/datasource"
)

// Merged layers storage over file. A UUID present in both resolves to the
// storage copy and writes always go to storage.
type Merged struct {
	File    Store
	Storage Store
}

func (m *Merged) Load(ctx context.Context, uuid string) (*datasource.Config, error) {
	if m.Storage != nil {
		c, err := m.Storage.Load(ctx, uuid)
		if err == nil || !errors.Is(err, datasource.ErrNotFound) {
			return c, err
		}
	}
	if m.File == nil {
		return nil, datasource.ErrNotFound
	}
	return m.File.Load(ctx, uuid)
}

func (m *Merged) List(ctx context.Context, f Filter) ([]Record, error) {
	byID := map[string]Record{}
	for _, s := range []Store{m.File, m.Storage} {
		if s == nil {
			continue
		}
		rs, err := s.List(ctx, f)
		if err != nil {
			return nil, err
		}
		for _, r := range rs {
			byID[r.Config.UUID] = r
		}
	}
	out := make([]Record, 0, len(byID))
	for _, r := range byID {
		out = append(out, r)
	}
	sortRecords(out)
	return out, nil
}

func (m *Merged) Put(ctx context.Context, cfg datasource.Config) error {
	if m.Storage == nil {
		return ErrReadOnly
	}
	return m.Storage.Put(ctx, cfg)
}

// Delete removes the storage copy. Deleting a UUID that only the file
// defines fails with ErrReadOnly.
func (m *Merged) Delete(ctx context.Context, uuid string) error {
	if m.Storage == nil {
		return ErrReadOnly
	}
	err := m.Storage.Delete(ctx, uuid)
	if errors.Is(err, datasource.ErrNotFound) && m.File != nil {
		if _, ferr := m.File.Load(ctx, uuid); ferr == nil {
			return ErrReadOnly
		}
	}
	return err
}
