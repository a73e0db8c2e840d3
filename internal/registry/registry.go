package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ksyq12/provision/internal/hostfs"
	"gopkg.in/yaml.v3"
)

// stateDir is the default registry directory under the user's home
const stateDir = ".local/state/provision"
const registryFile = "sites.yaml"

// Registry maps provisioned domains to their records
type Registry struct {
	Sites map[string]*SiteRecord `yaml:"sites"`

	fs   hostfs.FS
	path string
}

// DefaultDir returns the default registry directory
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, stateDir), nil
}

// New creates an empty registry stored in dir
func New(fsys hostfs.FS, dir string) *Registry {
	return &Registry{
		Sites: make(map[string]*SiteRecord),
		fs:    fsys,
		path:  filepath.Join(dir, registryFile),
	}
}

// Load reads the registry from dir. A missing file yields an empty registry.
func Load(fsys hostfs.FS, dir string) (*Registry, error) {
	r := New(fsys, dir)

	data, err := fsys.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", r.path, err)
	}

	// Initialize Sites map if nil
	if r.Sites == nil {
		r.Sites = make(map[string]*SiteRecord)
	}
	for domain, rec := range r.Sites {
		rec.Domain = domain
	}

	return r, nil
}

// Path returns the registry file path
func (r *Registry) Path() string {
	return r.path
}

// Save writes the registry atomically
func (r *Registry) Save() error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := r.fs.WriteFile(r.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}
	return nil
}

// Get returns the record for domain
func (r *Registry) Get(domain string) (*SiteRecord, bool) {
	rec, ok := r.Sites[domain]
	return rec, ok
}

// Upsert returns the record for domain, creating it when absent
func (r *Registry) Upsert(domain string, now time.Time) *SiteRecord {
	if rec, ok := r.Sites[domain]; ok {
		return rec
	}
	rec := &SiteRecord{Domain: domain, CreatedAt: now, UpdatedAt: now}
	r.Sites[domain] = rec
	return rec
}

// List returns all records sorted by domain
func (r *Registry) List() []*SiteRecord {
	recs := make([]*SiteRecord, 0, len(r.Sites))
	for _, rec := range r.Sites {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Domain < recs[j].Domain })
	return recs
}
