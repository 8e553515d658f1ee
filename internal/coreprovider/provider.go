// Package coreprovider owns the engine build the server is running and
// swaps it for a new one only after the candidate passes a self-test.
package coreprovider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/DoyleJ11/duel-room-server/internal/core"
)

var (
	ErrNoCandidate = errors.New("no engine build found")
	ErrClosed      = errors.New("engine provider closed")
)

// Loader opens a binding against the build at path.
type Loader func(path string) (core.Binding, error)

type Options struct {
	Dir         string
	FileRegex   string
	TmpDir      string
	LoadPerCall bool
}

type Provider struct {
	opts  Options
	re    *regexp.Regexp
	load  Loader
	log   *zap.Logger
	id    string
	group singleflight.Group

	mu        sync.RWMutex
	current   string
	shared    *shared
	loadCount int
	staged    []string
	closed    bool
}

// New prepares the staging directory and loads the first build. Any
// failure here is fatal: there is nothing to fall back to.
func New(opts Options, load Loader, log *zap.Logger) (*Provider, error) {
	re, err := regexp.Compile(opts.FileRegex)
	if err != nil {
		return nil, fmt.Errorf("engine file pattern: %w", err)
	}
	if err := os.MkdirAll(opts.TmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("engine staging dir: %w", err)
	}
	p := &Provider{opts: opts, re: re, load: load, log: log, id: uuid.NewString()}
	if err := p.OnUpdate(context.Background()); err != nil {
		return nil, err
	}
	return p, nil
}

// OnUpdate looks for a new build and swaps to it if it passes. Concurrent
// notifications share one attempt. Only the very first load reports a
// failure; later ones are logged and the previous build keeps serving.
func (p *Provider) OnUpdate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err, _ := p.group.Do("update", func() (any, error) {
		return nil, p.update()
	})
	return err
}

func (p *Provider) update() error {
	p.mu.RLock()
	first := p.current == ""
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	staged, b, err := p.tryCandidate()
	if err != nil {
		if first {
			return fmt.Errorf("first engine load: %w", err)
		}
		p.log.Error("engine update rejected, keeping current build",
			zap.String("current", p.CurrentPath()), zap.Error(err))
		return nil
	}

	p.mu.Lock()
	old := p.shared
	p.current = staged
	if p.opts.LoadPerCall {
		p.shared = nil
	} else {
		p.shared = &shared{b: b}
	}
	p.mu.Unlock()

	if p.opts.LoadPerCall {
		_ = b.Close()
	}
	if old != nil {
		old.retire()
	}
	p.log.Info("engine build loaded", zap.String("path", staged))
	return nil
}

// tryCandidate stages the first matching build and runs the version
// self-test against it.
func (p *Provider) tryCandidate() (string, core.Binding, error) {
	src, err := p.findCandidate()
	if err != nil {
		return "", nil, err
	}
	p.mu.Lock()
	p.loadCount++
	name := fmt.Sprintf("%s-%d-%s", p.id, p.loadCount, filepath.Base(src))
	p.mu.Unlock()

	dst := filepath.Join(p.opts.TmpDir, name)
	if err := copyFile(src, dst); err != nil {
		return "", nil, fmt.Errorf("stage %s: %w", src, err)
	}
	p.mu.Lock()
	p.staged = append(p.staged, dst)
	p.mu.Unlock()

	b, err := p.load(dst)
	if err != nil {
		return "", nil, fmt.Errorf("load %s: %w", src, err)
	}
	major, minor, err := b.Version()
	if err != nil {
		_ = b.Close()
		return "", nil, fmt.Errorf("self-test %s: %w", src, err)
	}
	p.log.Debug("engine self-test passed", zap.String("build", src), zap.Int32("major", major), zap.Int32("minor", minor))
	return dst, b, nil
}

func (p *Provider) findCandidate() (string, error) {
	entries, err := os.ReadDir(p.opts.Dir)
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", p.opts.Dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		if e.Type().IsRegular() && p.re.MatchString(e.Name()) {
			return filepath.Join(p.opts.Dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoCandidate, p.opts.Dir)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// GetEngine returns a binding for a new room. Closing it releases the
// room's hold; a retired shared build is closed when its last holder lets
// go. A shared binding that has faulted is replaced by a fresh load of
// the same build before anyone else gets it.
func (p *Provider) GetEngine() (core.Binding, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrClosed
	}
	if p.opts.LoadPerCall {
		defer p.mu.RUnlock()
		return p.load(p.current)
	}
	if s := p.shared; s.healthy() {
		defer p.mu.RUnlock()
		return s.acquire(), nil
	}
	p.mu.RUnlock()
	return p.reload()
}

func (p *Provider) reload() (core.Binding, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	old := p.shared
	if old.healthy() {
		// replaced while we waited for the lock
		defer p.mu.Unlock()
		return old.acquire(), nil
	}
	b, err := p.load(p.current)
	if err != nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("reload faulted engine: %w", err)
	}
	p.shared = &shared{b: b}
	lease := p.shared.acquire()
	path := p.current
	p.mu.Unlock()

	old.retire()
	p.log.Warn("engine binding faulted, reloaded", zap.String("path", path))
	return lease, nil
}

// CurrentPath is the staged path of the build now serving.
func (p *Provider) CurrentPath() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Close retires the shared binding and removes every staged file.
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	s := p.shared
	p.shared = nil
	staged := p.staged
	p.staged = nil
	p.mu.Unlock()

	if s != nil {
		s.retire()
	}
	var errs []error
	for _, f := range staged {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
