package resource

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ManifestName is the manifest file every library directory carries.
const ManifestName = "bank.yaml"

// Manifest maps resource numbers to files relative to the manifest.
type Manifest struct {
	Name   string         `yaml:"name"`
	Sounds map[int]string `yaml:"sounds"`
	Audio  map[int]string `yaml:"audio"`
}

func (m Manifest) file(typ Type, number int) (string, bool) {
	var files map[int]string
	switch typ {
	case TypeSound:
		files = m.Sounds
	case TypeAudio:
		files = m.Audio
	}
	name, ok := files[number]
	return name, ok && strings.TrimSpace(name) != ""
}

// Library serves resources listed in a manifest from a file system. Bytes are
// cached after the first read; Reload drops the cache.
type Library struct {
	fsys   fs.FS
	logger *slog.Logger

	mu       sync.RWMutex
	manifest Manifest
	cache    map[ID][]byte
}

type Option func(*Library)

// WithLogger sets the logger used for load warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Library) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Open reads the manifest from fsys and returns a library over it.
func Open(fsys fs.FS, opts ...Option) (*Library, error) {
	if fsys == nil {
		return nil, fmt.Errorf("resource: nil file system")
	}
	l := &Library{
		fsys:   fsys,
		logger: slog.Default().With("component", "resource"),
		cache:  make(map[ID][]byte),
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// OpenDir opens a library rooted at a directory on disk.
func OpenDir(dir string, opts ...Option) (*Library, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("resource: bank directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("resource: bank path %q is not a directory", dir)
	}
	return Open(os.DirFS(dir), opts...)
}

// LoadManifest decodes a manifest from fsys.
func LoadManifest(fsys fs.FS, name string) (Manifest, error) {
	return loadYAML[Manifest](fsys, name)
}

func loadYAML[T any](fsys fs.FS, name string) (T, error) {
	var zero T
	data, err := fs.ReadFile(fsys, cleanResourcePath(name))
	if err != nil {
		return zero, fmt.Errorf("resource: load %s: %w", name, err)
	}
	var out T
	if err := yaml.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("resource: unmarshal %s: %w", name, err)
	}
	return out, nil
}

// Reload re-reads the manifest and drops all cached bytes.
func (l *Library) Reload() error {
	m, err := LoadManifest(l.fsys, ManifestName)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.manifest = m
	l.cache = make(map[ID][]byte)
	l.mu.Unlock()
	l.logger.Debug("manifest loaded", "name", m.Name, "sounds", len(m.Sounds), "audio", len(m.Audio))
	return nil
}

// Manifest returns the current manifest.
func (l *Library) Manifest() Manifest {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.manifest
}

// Find returns the bytes of a resource. With exact set the cache is bypassed
// and the file is read again.
func (l *Library) Find(typ Type, number int, exact bool) ([]byte, bool) {
	id := ID{Type: typ, Number: number}

	l.mu.RLock()
	name, listed := l.manifest.file(typ, number)
	data, cached := l.cache[id]
	l.mu.RUnlock()

	if !listed {
		return nil, false
	}
	if cached && !exact {
		return data, true
	}

	data, err := fs.ReadFile(l.fsys, cleanResourcePath(name))
	if err != nil {
		l.logger.Warn("resource unreadable", "id", id.String(), "file", name, "error", err)
		return nil, false
	}

	l.mu.Lock()
	l.cache[id] = data
	l.mu.Unlock()
	return data, true
}

// Exists reports whether the manifest lists a readable file for the resource.
func (l *Library) Exists(typ Type, number int) bool {
	l.mu.RLock()
	name, listed := l.manifest.file(typ, number)
	_, cached := l.cache[ID{Type: typ, Number: number}]
	l.mu.RUnlock()
	if !listed {
		return false
	}
	if cached {
		return true
	}
	_, err := fs.Stat(l.fsys, cleanResourcePath(name))
	return err == nil
}

// IDs lists every resource in the manifest.
func (l *Library) IDs() []ID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ID, 0, len(l.manifest.Sounds)+len(l.manifest.Audio))
	for n := range l.manifest.Sounds {
		out = append(out, ID{Type: TypeSound, Number: n})
	}
	for n := range l.manifest.Audio {
		out = append(out, ID{Type: TypeAudio, Number: n})
	}
	sortIDs(out)
	return out
}

func cleanResourcePath(p string) string {
	if p == "" {
		return ""
	}
	s := filepath.ToSlash(p)
	s = strings.TrimPrefix(path.Clean("/"+s), "/")
	return s
}

// Load is Find that reports an absent resource as ErrNotFound.
func (l *Library) Load(id ID) ([]byte, error) {
	data, ok := l.Find(id.Type, id.Number, false)
	if !ok {
		return nil, fmt.Errorf("resource: load %s: %w", id, ErrNotFound)
	}
	return data, nil
}

// File returns the manifest file name of a resource.
func (l *Library) File(id ID) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.manifest.file(id.Type, id.Number)
}
