// Package platform identifies the host's package-manager family and the
// NGINX site layout that goes with it.
package platform

import (
	"fmt"
	"runtime"

	"github.com/ksyq12/provision/internal/executor"
)

// Family is the package-management family of the host.
type Family int

// Families in detection order.
const (
	Unknown Family = iota
	Debian
	RHEL
	Fedora
)

// String returns the family name used in logs and reports.
func (f Family) String() string {
	switch f {
	case Debian:
		return "debian"
	case RHEL:
		return "rhel"
	case Fedora:
		return "fedora"
	default:
		return "unknown"
	}
}

// PackageManager returns the binary that identifies the family.
func (f Family) PackageManager() string {
	switch f {
	case Debian:
		return "apt-get"
	case RHEL:
		return "yum"
	case Fedora:
		return "dnf"
	default:
		return ""
	}
}

// MarshalText lets the family appear by name in YAML and JSON.
func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// SitePaths describes where NGINX site configs live.
type SitePaths struct {
	Available string // directory holding the config file
	Enabled   string // directory holding activation links, equal to Available when unused
	Suffix    string // file name suffix appended to the domain
}

// UsesLinks reports whether sites are activated with a symlink.
func (p SitePaths) UsesLinks() bool {
	return p.Enabled != "" && p.Enabled != p.Available
}

// SitePaths returns the default NGINX layout for the family.
// Debian-like hosts use sites-available/sites-enabled; the RHEL family
// only includes conf.d/*.conf.
func (f Family) SitePaths() SitePaths {
	switch f {
	case Debian:
		return SitePaths{
			Available: "/etc/nginx/sites-available",
			Enabled:   "/etc/nginx/sites-enabled",
		}
	default:
		return SitePaths{
			Available: "/etc/nginx/conf.d",
			Enabled:   "/etc/nginx/conf.d",
			Suffix:    ".conf",
		}
	}
}

// Detector resolves the family from the package managers on PATH.
type Detector struct {
	exec executor.CommandExecutor
}

// NewDetector creates a Detector using exec for PATH lookups.
func NewDetector(exec executor.CommandExecutor) *Detector {
	return &Detector{exec: exec}
}

// Detect returns the first family whose package manager resolves, checking
// Debian, RHEL, then Fedora. It has no side effects.
func (d *Detector) Detect() Family {
	for _, f := range []Family{Debian, RHEL, Fedora} {
		if _, err := d.exec.LookPath(f.PackageManager()); err == nil {
			return f
		}
	}
	return Unknown
}

// Platform returns a string describing the current platform.
func Platform() string {
	return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
}
