package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/winhowes/RemoteData/app/datasource"
	"github.com/winhowes/RemoteData/app/sqldb"
)

// SQLStore keeps configs in the remotedata_data_sources table.
type SQLStore struct {
	db  *sqldb.DB
	now func() time.Time
}

// NewSQLStore creates the table when missing.
func NewSQLStore(ctx context.Context, db *sqldb.DB) (*SQLStore, error) {
	q := `CREATE TABLE IF NOT EXISTS remotedata_data_sources (
		uuid TEXT PRIMARY KEY,
		service TEXT NOT NULL,
		config TEXT NOT NULL,
		updated_at BIGINT NOT NULL
	)`
	if _, err := db.ExecContext(ctx, q); err != nil {
		return nil, fmt.Errorf("migrate data sources: %w", err)
	}
	return &SQLStore{db: db, now: time.Now}, nil
}

func (s *SQLStore) Load(ctx context.Context, uuid string) (*datasource.Config, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT config FROM remotedata_data_sources WHERE uuid = ?`), uuid).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", datasource.ErrNotFound, uuid)
	}
	if err != nil {
		return nil, err
	}
	var c datasource.Config
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("data source %s: %w", uuid, err)
	}
	c.UUID = uuid
	return &c, nil
}

func (s *SQLStore) List(ctx context.Context, f Filter) ([]Record, error) {
	out := []Record{}
	if f.Origin != "" && f.Origin != OriginStorage {
		return out, nil
	}
	q := `SELECT uuid, config, updated_at FROM remotedata_data_sources`
	var args []any
	if f.Service != "" {
		q += ` WHERE service = ?`
		args = append(args, f.Service)
	}
	q += ` ORDER BY uuid`
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id, raw string
			updated int64
		)
		if err := rows.Scan(&id, &raw, &updated); err != nil {
			return nil, err
		}
		var c datasource.Config
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("data source %s: %w", id, err)
		}
		c.UUID = id
		out = append(out, Record{Config: c, Origin: OriginStorage, UpdatedAt: time.Unix(0, updated).UTC()})
	}
	return out, rows.Err()
}

// Put inserts or replaces cfg. The last write wins.
func (s *SQLStore) Put(ctx context.Context, cfg datasource.Config) error {
	if cfg.UUID == "" {
		return errors.New("data source uuid is required")
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	q := `INSERT INTO remotedata_data_sources (uuid, service, config, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (uuid) DO UPDATE SET service = excluded.service, config = excluded.config, updated_at = excluded.updated_at`
	_, err = s.db.ExecContext(ctx, s.db.Rebind(q), cfg.UUID, cfg.Service, string(raw), s.now().UnixNano())
	return err
}

func (s *SQLStore) Delete(ctx context.Context, uuid string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM remotedata_data_sources WHERE uuid = ?`), uuid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", datasource.ErrNotFound, uuid)
	}
	return nil
}
