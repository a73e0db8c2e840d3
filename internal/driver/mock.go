package driver

import (
	"path/filepath"

	"github.com/ksyq12/provision/internal/platform"
)

// MockDriver is a test double for Driver interface. It keeps site configs
// in memory and snapshots them into Live whenever the proxy is started or
// reloaded, so tests can tell what configuration is actually serving.
type MockDriver struct {
	paths platform.SitePaths

	Sites  map[string][]byte
	Links  map[string]bool
	Live   map[string][]byte
	Active bool

	// Function mocks - set these to customize behavior
	WriteFunc  func(domain string, content []byte) error
	TestFunc   func() error
	ReloadFunc func() error
	StartFunc  func() error

	// Call tracking - check these to verify interactions
	Events      []string
	WriteCalls  []string
	TestCalls   int
	ReloadCalls int
	StartCalls  int
}

// NewMockDriver creates a new MockDriver with default no-op implementations
func NewMockDriver(paths platform.SitePaths) *MockDriver {
	if paths.Enabled == "" {
		paths.Enabled = paths.Available
	}
	return &MockDriver{
		paths: paths,
		Sites: make(map[string][]byte),
		Links: make(map[string]bool),
		Live:  make(map[string][]byte),
	}
}

// Name returns the driver name
func (m *MockDriver) Name() string {
	return "nginx"
}

// Paths returns the configured paths
func (m *MockDriver) Paths() platform.SitePaths {
	return m.paths
}

// ConfigPath returns the config file path for domain
func (m *MockDriver) ConfigPath(domain string) string {
	return filepath.Join(m.paths.Available, domain+m.paths.Suffix)
}

// ReadSite returns the stored config
func (m *MockDriver) ReadSite(domain string) ([]byte, bool, error) {
	content, ok := m.Sites[domain]
	return content, ok, nil
}

// WriteSite records the call and stores content
func (m *MockDriver) WriteSite(domain string, content []byte) error {
	m.Events = append(m.Events, "write:"+domain)
	m.WriteCalls = append(m.WriteCalls, domain)
	if m.WriteFunc != nil {
		if err := m.WriteFunc(domain, content); err != nil {
			return err
		}
	}
	m.Sites[domain] = content
	return nil
}

// RemoveSite deletes the stored config
func (m *MockDriver) RemoveSite(domain string) error {
	m.Events = append(m.Events, "remove:"+domain)
	delete(m.Sites, domain)
	return nil
}

// Enable records a link
func (m *MockDriver) Enable(domain string) (bool, error) {
	if !m.paths.UsesLinks() || m.Links[domain] {
		return false, nil
	}
	m.Events = append(m.Events, "enable:"+domain)
	m.Links[domain] = true
	return true, nil
}

// Disable removes a link
func (m *MockDriver) Disable(domain string) error {
	m.Events = append(m.Events, "disable:"+domain)
	delete(m.Links, domain)
	return nil
}

// IsEnabled reports whether a link was recorded
func (m *MockDriver) IsEnabled(domain string) (bool, error) {
	if !m.paths.UsesLinks() {
		_, ok := m.Sites[domain]
		return ok, nil
	}
	return m.Links[domain], nil
}

// Test records the call and invokes the mock function if set
func (m *MockDriver) Test() error {
	m.Events = append(m.Events, "test")
	m.TestCalls++
	if m.TestFunc != nil {
		return m.TestFunc()
	}
	return nil
}

// Reload records the call and snapshots the live config
func (m *MockDriver) Reload() error {
	m.Events = append(m.Events, "reload")
	m.ReloadCalls++
	if m.ReloadFunc != nil {
		if err := m.ReloadFunc(); err != nil {
			return err
		}
	}
	m.snapshot()
	return nil
}

// Start records the call, marks the service active and snapshots the config
func (m *MockDriver) Start() error {
	m.Events = append(m.Events, "start")
	m.StartCalls++
	if m.StartFunc != nil {
		if err := m.StartFunc(); err != nil {
			return err
		}
	}
	m.Active = true
	m.snapshot()
	return nil
}

// IsActive returns Active
func (m *MockDriver) IsActive() bool {
	return m.Active
}

// EnableOnBoot records the call
func (m *MockDriver) EnableOnBoot() error {
	m.Events = append(m.Events, "enable-on-boot")
	return nil
}

func (m *MockDriver) snapshot() {
	m.Live = make(map[string][]byte, len(m.Sites))
	for domain, content := range m.Sites {
		m.Live[domain] = content
	}
}

// Reset clears all call tracking
func (m *MockDriver) Reset() {
	m.Events = nil
	m.WriteCalls = nil
	m.TestCalls = 0
	m.ReloadCalls = 0
	m.StartCalls = 0
}
