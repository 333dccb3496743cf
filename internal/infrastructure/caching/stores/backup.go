package stores

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clarident/clarident-go/internal/infrastructure/caching/types"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
)

// BackupStore is the last-resort tier: a standalone sqlite file consulted
// only when the memory and durable tiers are unavailable. It trades speed for
// availability during partial outages.
type BackupStore struct {
	db     *sql.DB
	logger *logging.ChanneledLogger
}

const backupSchema = `
CREATE TABLE IF NOT EXISTS cache_backup (
	key        TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	hits       INTEGER NOT NULL DEFAULT 0
)`

// NewBackupStore opens (and if needed creates) the backup cache file.
func NewBackupStore(driverName, path string, logger *logging.ChanneledLogger) (*BackupStore, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open backup cache %s: %w", path, err)
	}
	if _, err := db.Exec(backupSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init backup cache schema: %w", err)
	}
	return &BackupStore{db: db, logger: logger}, nil
}

func (s *BackupStore) Tier() types.Tier { return types.TierBackup }

func (s *BackupStore) Get(ctx context.Context, key string) (*types.Entry, bool, error) {
	const query = `SELECT payload, created_at, expires_at, hits FROM cache_backup WHERE key = ?`

	var (
		payload            []byte
		createdAt, expires int64
		hits               int64
	)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&payload, &createdAt, &expires, &hits)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("backup cache get %s: %w", key, err)
	}

	_, _ = s.db.ExecContext(ctx, `UPDATE cache_backup SET hits = hits + 1 WHERE key = ?`, key)

	return &types.Entry{
		Key:       key,
		Payload:   payload,
		Tier:      types.TierBackup,
		CreatedAt: time.Unix(createdAt, 0).UTC(),
		ExpiresAt: time.Unix(expires, 0).UTC(),
		Hits:      hits + 1,
	}, true, nil
}

func (s *BackupStore) Set(ctx context.Context, entry *types.Entry) error {
	const query = `
		INSERT INTO cache_backup (key, payload, created_at, expires_at, hits)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`

	_, err := s.db.ExecContext(ctx, query, entry.Key, entry.Payload, entry.CreatedAt.Unix(), entry.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("backup cache set %s: %w", entry.Key, err)
	}
	return nil
}

func (s *BackupStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_backup WHERE key = ?`, key); err != nil {
		return fmt.Errorf("backup cache delete %s: %w", key, err)
	}
	return nil
}

func (s *BackupStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_backup WHERE key LIKE ? || '%'`, prefix)
	if err != nil {
		return 0, fmt.Errorf("backup cache delete prefix %s: %w", prefix, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *BackupStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM cache_backup`)
	if err != nil {
		return nil, fmt.Errorf("backup cache keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("backup cache keys scan: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *BackupStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_backup`).Scan(&n); err != nil {
		return 0, fmt.Errorf("backup cache len: %w", err)
	}
	return n, nil
}

// Close releases the underlying database handle.
func (s *BackupStore) Close() error {
	return s.db.Close()
}
