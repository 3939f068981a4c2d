package cache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/winhowes/RemoteData/app/sqldb"
)

// SQLStore keeps entries in a table of the configured database.
type SQLStore struct {
	db  *sqldb.DB
	now func() time.Time
}

// NewSQLStore creates the cache table when missing.
func NewSQLStore(ctx context.Context, db *sqldb.DB) (*SQLStore, error) {
	q := `CREATE TABLE IF NOT EXISTS remotedata_cache (
		cache_key TEXT PRIMARY KEY,
		value ` + db.BlobType() + ` NOT NULL,
		expires_at BIGINT NOT NULL
	)`
	if _, err := db.ExecContext(ctx, q); err != nil {
		return nil, err
	}
	return &SQLStore{db: db, now: time.Now}, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		val     []byte
		expires int64
	)
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT value, expires_at FROM remotedata_cache WHERE cache_key = ?`), key).Scan(&val, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if s.now().UnixNano() >= expires {
		return nil, false, nil
	}
	return val, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	q := `INSERT INTO remotedata_cache (cache_key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`
	_, err := s.db.ExecContext(ctx, s.db.Rebind(q), key, val, s.now().Add(ttl).UnixNano())
	return err
}

// Purge deletes expired rows.
func (s *SQLStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM remotedata_cache WHERE expires_at <= ?`), s.now().UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
