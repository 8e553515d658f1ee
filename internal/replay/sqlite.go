package replay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS replays (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	room       INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	bytes      BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_replays_room ON replays (room);`

// SQLiteStore keeps replays in a local sqlite file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("replay sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open replay db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping replay db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate replays: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, room uint32, data []byte) (uint64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO replays (room, created_at, bytes) VALUES (?, ?, ?)`,
		room, time.Now().UTC().UnixMilli(), data)
	if err != nil {
		return 0, fmt.Errorf("save replay: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("save replay: %w", err)
	}
	return uint64(id), nil
}

func (s *SQLiteStore) Load(ctx context.Context, id uint64) (Record, error) {
	var (
		rec     Record
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, room, created_at, bytes FROM replays WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Room, &created, &rec.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load replay %d: %w", id, err)
	}
	rec.CreatedAt = time.UnixMilli(created).UTC()
	return rec, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
