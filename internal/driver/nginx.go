package driver

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/ksyq12/provision/internal/executor"
	"github.com/ksyq12/provision/internal/hostfs"
	"github.com/ksyq12/provision/internal/platform"
)

// NginxDriver implements the Driver interface for Nginx
type NginxDriver struct {
	paths platform.SitePaths
	fs    hostfs.FS
	exec  executor.CommandExecutor
}

// NewNginx creates a new Nginx driver. exec runs nginx and systemctl and
// should be privileged; fsys performs file operations.
func NewNginx(paths platform.SitePaths, fsys hostfs.FS, exec executor.CommandExecutor) *NginxDriver {
	if paths.Enabled == "" {
		paths.Enabled = paths.Available
	}
	return &NginxDriver{
		paths: paths,
		fs:    fsys,
		exec:  exec,
	}
}

// Name returns the driver name
func (n *NginxDriver) Name() string {
	return "nginx"
}

// Paths returns the site paths
func (n *NginxDriver) Paths() platform.SitePaths {
	return n.paths
}

// ConfigPath returns the config file path for domain
func (n *NginxDriver) ConfigPath(domain string) string {
	return filepath.Join(n.paths.Available, domain+n.paths.Suffix)
}

func (n *NginxDriver) linkPath(domain string) string {
	return filepath.Join(n.paths.Enabled, domain+n.paths.Suffix)
}

// ReadSite returns the current config of domain
func (n *NginxDriver) ReadSite(domain string) ([]byte, bool, error) {
	data, err := n.fs.ReadFile(n.ConfigPath(domain))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read config for %s: %w", domain, err)
	}
	return data, true, nil
}

// WriteSite atomically replaces the config file of domain
func (n *NginxDriver) WriteSite(domain string, content []byte) error {
	if err := n.fs.WriteFile(n.ConfigPath(domain), content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// RemoveSite deletes the config file of domain
func (n *NginxDriver) RemoveSite(domain string) error {
	if err := n.fs.Remove(n.ConfigPath(domain)); err != nil {
		return fmt.Errorf("failed to remove config file: %w", err)
	}
	return nil
}

// Enable activates a site by creating a symlink. It is a no-op on layouts
// without sites-enabled and when the link already exists.
func (n *NginxDriver) Enable(domain string) (bool, error) {
	if !n.paths.UsesLinks() {
		return false, nil
	}

	source := n.ConfigPath(domain)
	if ok, err := n.fs.Exists(source); err != nil {
		return false, fmt.Errorf("failed to check %s: %w", source, err)
	} else if !ok {
		return false, fmt.Errorf("site %s not found in %s", domain, n.paths.Available)
	}

	if enabled, err := n.IsEnabled(domain); err != nil {
		return false, err
	} else if enabled {
		return false, nil
	}

	if err := n.fs.Symlink(source, n.linkPath(domain)); err != nil {
		return false, fmt.Errorf("failed to enable site: %w", err)
	}
	return true, nil
}

// Disable deactivates a site by removing the symlink
func (n *NginxDriver) Disable(domain string) error {
	if !n.paths.UsesLinks() {
		return nil
	}
	if err := n.fs.Remove(n.linkPath(domain)); err != nil {
		return fmt.Errorf("failed to disable site: %w", err)
	}
	return nil
}

// IsEnabled checks if a site is active
func (n *NginxDriver) IsEnabled(domain string) (bool, error) {
	if !n.paths.UsesLinks() {
		return n.fs.Exists(n.ConfigPath(domain))
	}
	ok, err := n.fs.Exists(n.linkPath(domain))
	if err != nil {
		return false, fmt.Errorf("failed to check site status: %w", err)
	}
	return ok, nil
}

// Test validates the nginx config syntax
func (n *NginxDriver) Test() error {
	output, err := n.exec.Execute("nginx", "-t")
	if err != nil {
		return fmt.Errorf("nginx config test failed: %s", string(output))
	}
	return nil
}

// Reload reloads nginx to apply changes
func (n *NginxDriver) Reload() error {
	output, err := n.exec.Execute("systemctl", "reload", "nginx")
	if err != nil {
		// Try nginx -s reload as fallback
		output, err = n.exec.Execute("nginx", "-s", "reload")
		if err != nil {
			return fmt.Errorf("failed to reload nginx: %s", string(output))
		}
	}
	return nil
}

// Start starts the nginx service
func (n *NginxDriver) Start() error {
	output, err := n.exec.Execute("systemctl", "start", "nginx")
	if err != nil {
		return fmt.Errorf("failed to start nginx: %s", string(output))
	}
	return nil
}

// IsActive reports whether systemd considers nginx running
func (n *NginxDriver) IsActive() bool {
	_, err := n.exec.Execute("systemctl", "is-active", "--quiet", "nginx")
	return err == nil
}

// EnableOnBoot enables the nginx unit
func (n *NginxDriver) EnableOnBoot() error {
	output, err := n.exec.Execute("systemctl", "enable", "nginx")
	if err != nil {
		return fmt.Errorf("failed to enable nginx at boot: %s", string(output))
	}
	return nil
}
