package resources

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"go.uber.org/zap"
)

var scriptFile = regexp.MustCompile(`^.+\.lua$`)

// Scripts indexes the .lua files under a list of directories by file name.
// The engine asks for scripts by name only; sub directories are a storage
// detail. The first directory holding a name wins.
type Scripts struct {
	dirs []string
	log  *zap.Logger

	mu    sync.RWMutex
	index map[string]string
}

func NewScripts(dirs []string, log *zap.Logger) *Scripts {
	s := &Scripts{dirs: dirs, log: log}
	s.Reload()
	return s
}

// Reload rebuilds the index. Unreadable directories are logged and skipped.
func (s *Scripts) Reload() int {
	index := make(map[string]string)
	for _, dir := range s.dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !scriptFile.MatchString(d.Name()) {
				return nil
			}
			if _, seen := index[d.Name()]; !seen {
				index[d.Name()] = path
			}
			return nil
		})
		if err != nil {
			s.log.Error("could not index scripts", zap.String("dir", dir), zap.Error(err))
		}
	}
	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
	s.log.Info("scripts indexed", zap.Int("files", len(index)))
	return len(index)
}

// Script returns the contents of the script called name. Names that are not
// a plain local file name are refused.
func (s *Scripts) Script(name string) ([]byte, bool) {
	if !filepath.IsLocal(name) {
		return nil, false
	}
	s.mu.RLock()
	path, ok := s.index[filepath.Base(name)]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	src, err := os.ReadFile(path)
	if err != nil {
		s.log.Warn("could not read script", zap.String("path", path), zap.Error(err))
		return nil, false
	}
	return src, true
}
