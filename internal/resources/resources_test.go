package resources

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBanlists_Reload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.lflist.conf"), "!2024.01 TCG\n1 0\n2 1\n!2024.04 TCG\n3 2\n")
	writeFile(t, filepath.Join(dir, "broken.conf"), "!Bad\n0 1\n")
	writeFile(t, filepath.Join(dir, "ignored.txt"), "!Other\n4 1\n")

	b := NewBanlists(dir, zaptest.NewLogger(t))
	n, err := b.Reload()
	require.NoError(t, err)
	if n != 2 || b.Len() != 2 {
		t.Fatalf("loaded %d lists (%d held), want 2", n, b.Len())
	}

	names := map[string]bool{}
	for hash, l := range b.lists {
		names[l.Name] = true
		got, ok := b.Get(hash)
		require.True(t, ok)
		assert.Same(t, l, got)
	}
	assert.Equal(t, map[string]bool{"2024.01 TCG": true, "2024.04 TCG": true}, names)

	_, ok := b.Get(12345)
	assert.False(t, ok)
}

func TestBanlists_ReloadReplacesSameHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "l.conf")
	writeFile(t, path, "!Old name\n1 0\n")
	b := NewBanlists(dir, zaptest.NewLogger(t))
	_, err := b.Reload()
	require.NoError(t, err)

	writeFile(t, path, "!New name\n1 0\n")
	_, err = b.Reload()
	require.NoError(t, err)

	require.Equal(t, 1, b.Len())
	for _, l := range b.lists {
		assert.Equal(t, "New name", l.Name)
	}
}

func TestScripts_Lookup(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(first, "official", "c1.lua"), "first c1")
	writeFile(t, filepath.Join(first, "utility.lua"), "utility")
	writeFile(t, filepath.Join(second, "c1.lua"), "second c1")
	writeFile(t, filepath.Join(second, "c2.lua"), "second c2")
	writeFile(t, filepath.Join(second, "notes.txt"), "not a script")

	s := NewScripts([]string{first, second}, zaptest.NewLogger(t))

	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"c1.lua", "first c1", true},
		{"official/c1.lua", "first c1", true},
		{"c2.lua", "second c2", true},
		{"utility.lua", "utility", true},
		{"notes.txt", "", false},
		{"../c1.lua", "", false},
		{"/etc/passwd", "", false},
		{"missing.lua", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, ok := s.Script(tt.name)
			if ok != tt.ok || string(src) != tt.want {
				t.Fatalf("Script(%q) = %q, %v; want %q, %v", tt.name, src, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestScripts_ReloadPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewScripts([]string{dir}, zaptest.NewLogger(t))
	_, ok := s.Script("c5.lua")
	require.False(t, ok)

	writeFile(t, filepath.Join(dir, "c5.lua"), "new")
	assert.Equal(t, 1, s.Reload())
	src, ok := s.Script("c5.lua")
	require.True(t, ok)
	assert.Equal(t, "new", string(src))
}
