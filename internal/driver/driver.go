package driver

import "github.com/ksyq12/provision/internal/platform"

// Driver is the capability the provisioner uses to manage the proxy: one
// site config slot per domain plus the service lifecycle.
type Driver interface {
	// Name returns the driver name
	Name() string

	// Paths returns the driver's site paths
	Paths() platform.SitePaths

	// ConfigPath returns the config file path for domain
	ConfigPath(domain string) string

	// ReadSite returns the current config of domain; ok is false when
	// no config exists yet
	ReadSite(domain string) (content []byte, ok bool, err error)

	// WriteSite atomically replaces the config of domain
	WriteSite(domain string, content []byte) error

	// RemoveSite deletes the config of domain
	RemoveSite(domain string) error

	// Enable activates a site; created reports whether a link was added
	Enable(domain string) (created bool, err error)

	// Disable deactivates a site
	Disable(domain string) error

	// IsEnabled checks if a site is active
	IsEnabled(domain string) (bool, error)

	// Test validates the proxy config syntax
	Test() error

	// Reload reloads the running proxy
	Reload() error

	// Start starts the proxy service
	Start() error

	// IsActive reports whether the proxy service is running
	IsActive() bool

	// EnableOnBoot makes the service start at boot
	EnableOnBoot() error
}
