package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type replayRow struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Room      uint32    `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"not null"`
	Bytes     []byte    `gorm:"not null"`
}

func (replayRow) TableName() string { return "replays" }

// GormStore keeps replays in postgres.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open replay database: %w", err)
	}
	return NewGormStore(db)
}

// NewGormStore migrates the replays table on db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&replayRow{}); err != nil {
		return nil, fmt.Errorf("migrate replays: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Save(ctx context.Context, room uint32, data []byte) (uint64, error) {
	row := replayRow{Room: room, CreatedAt: time.Now().UTC(), Bytes: data}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("save replay: %w", err)
	}
	return row.ID, nil
}

func (s *GormStore) Load(ctx context.Context, id uint64) (Record, error) {
	var row replayRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load replay %d: %w", id, err)
	}
	return Record{ID: row.ID, Room: row.Room, CreatedAt: row.CreatedAt, Data: row.Bytes}, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
