// Package store persists data source configurations. A merged view layers
// the configs stored in SQL over the read-only ones from the config file.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/winhowes/RemoteData/app/datasource"
)

// Origins of a record.
const (
	OriginFile    = "file"
	OriginStorage = "storage"
)

// ErrReadOnly is returned when writing to the file store.
var ErrReadOnly = errors.New("data source is defined in the config file and cannot be modified")

// Record is a stored config and where it came from.
type Record struct {
	Config    datasource.Config `json:"config"`
	Origin    string            `json:"origin"`
	UpdatedAt time.Time         `json:"updated_at,omitempty"`
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Service string
	Origin  string
}

func (f Filter) match(r Record) bool {
	if f.Service != "" && r.Config.Service != f.Service {
		return false
	}
	return f.Origin == "" || r.Origin == f.Origin
}

// Store is a source of data source configs. Implementations satisfy
// datasource.Loader.
type Store interface {
	Load(ctx context.Context, uuid string) (*datasource.Config, error)
	List(ctx context.Context, f Filter) ([]Record, error)
	Put(ctx context.Context, cfg datasource.Config) error
	Delete(ctx context.Context, uuid string) error
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*FileStore)(nil)
	_ Store = (*Merged)(nil)
)

func sortRecords(rs []Record) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].Config.UUID < rs[j].Config.UUID })
}
