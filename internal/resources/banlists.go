// Package resources serves the files rooms read at runtime: banlists and
// card scripts.
package resources

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

// Banlists holds every list parsed from the *.conf files of a directory,
// keyed by hash.
type Banlists struct {
	dir string
	log *zap.Logger

	mu    sync.RWMutex
	lists map[uint32]*ygopro.Banlist
}

func NewBanlists(dir string, log *zap.Logger) *Banlists {
	return &Banlists{dir: dir, log: log, lists: make(map[uint32]*ygopro.Banlist)}
}

// Reload parses the directory again. A file that fails to parse is logged
// and skipped; lists from other files still load. Lists sharing a hash with
// an already loaded one replace it.
func (b *Banlists) Reload() (int, error) {
	files, err := filepath.Glob(filepath.Join(b.dir, "*.conf"))
	if err != nil {
		return 0, fmt.Errorf("banlist dir: %w", err)
	}
	loaded := make(map[uint32]*ygopro.Banlist)
	for _, path := range files {
		lists, err := parseFile(path)
		if err != nil {
			b.log.Error("could not load banlist", zap.String("path", path), zap.Error(err))
			continue
		}
		for hash, l := range lists {
			loaded[hash] = l
		}
		b.log.Info("loaded banlists", zap.String("path", path), zap.Int("lists", len(lists)))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for hash, l := range loaded {
		b.lists[hash] = l
	}
	return len(loaded), nil
}

func parseFile(path string) (map[uint32]*ygopro.Banlist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ygopro.ParseBanlists(f)
}

func (b *Banlists) Get(hash uint32) (*ygopro.Banlist, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	l, ok := b.lists[hash]
	return l, ok
}

func (b *Banlists) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lists)
}
