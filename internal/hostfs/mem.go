package hostfs

import (
	"io/fs"
	"sort"
	"sync"
)

// MemFS is an in-memory FS for tests.
type MemFS struct {
	mu    sync.Mutex
	files map[string]memFile

	// WriteErr, when set, is returned by WriteFile for matching paths
	WriteErr map[string]error
}

type memFile struct {
	data []byte
	mode fs.FileMode
	link string
}

// NewMemFS creates an empty MemFS.
func NewMemFS() *MemFS {
	return &MemFS{
		files:    make(map[string]memFile),
		WriteErr: make(map[string]error),
	}
}

// ReadFile returns a copy of the stored data. Links are followed once.
func (m *MemFS) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[path]
	if ok && f.link != "" {
		f, ok = m.files[f.link]
	}
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), f.data...), nil
}

// WriteFile stores data at path.
func (m *MemFS) WriteFile(path string, data []byte, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.WriteErr[path]; err != nil {
		return err
	}
	m.files[path] = memFile{data: append([]byte(nil), data...), mode: perm}
	return nil
}

// Remove deletes path.
func (m *MemFS) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

// Symlink records link as pointing at target.
func (m *MemFS) Symlink(target, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[link] = memFile{link: target, mode: fs.ModeSymlink | 0777}
	return nil
}

// Exists reports whether path is stored.
func (m *MemFS) Exists(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok, nil
}

// Mode returns the stored mode of path.
func (m *MemFS) Mode(path string) fs.FileMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[path].mode
}

// LinkTarget returns the target of link, or "" when path is not a link.
func (m *MemFS) LinkTarget(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[path].link
}

// Paths returns every stored path in sorted order.
func (m *MemFS) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
