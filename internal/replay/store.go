// Package replay stores the serialized record of every finished duel.
package replay

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("replay not found")

// Store saves replays and hands them back by id.
type Store interface {
	Save(ctx context.Context, room uint32, data []byte) (uint64, error)
	Load(ctx context.Context, id uint64) (Record, error)
	Close() error
}

type Record struct {
	ID        uint64
	Room      uint32
	CreatedAt time.Time
	Data      []byte
}
