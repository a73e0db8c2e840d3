// Package installer makes sure the binaries a provisioning run depends on
// are present, installing them with the host's package manager when they
// are not.
//
// Ensure is a no-op for a component that already resolves on PATH; that
// short-circuit is what keeps repeated runs from touching the package
// database.
package installer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ksyq12/provision/internal/errors"
	"github.com/ksyq12/provision/internal/executor"
	"github.com/ksyq12/provision/internal/logger"
	"github.com/ksyq12/provision/internal/platform"
)

// Status is the outcome of Ensure for one component.
type Status string

const (
	// StatusPresent means the component was already installed.
	StatusPresent Status = "present"
	// StatusInstalled means Ensure installed it.
	StatusInstalled Status = "installed"
)

// Component describes one binary and how to obtain it.
type Component struct {
	Name        string
	Binary      string
	VersionArgs []string
	// Packages lists what to install per family.
	Packages map[platform.Family][]string
	// Prereqs are installed first on families that need an extra repository.
	Prereqs map[platform.Family][]string
}

// ComponentStatus reports what Ensure found or did.
type ComponentStatus struct {
	Name    string `json:"name" yaml:"name"`
	Status  Status `json:"status" yaml:"status"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

// Nginx is the reverse proxy.
var Nginx = Component{
	Name:        "nginx",
	Binary:      "nginx",
	VersionArgs: []string{"-v"},
	Packages: map[platform.Family][]string{
		platform.Debian: {"nginx"},
		platform.RHEL:   {"nginx"},
		platform.Fedora: {"nginx"},
	},
}

// Certbot is the ACME client.
var Certbot = Component{
	Name:        "certbot",
	Binary:      "certbot",
	VersionArgs: []string{"--version"},
	Packages: map[platform.Family][]string{
		platform.Debian: {"certbot", "python3-certbot-nginx"},
		platform.RHEL:   {"certbot", "python3-certbot-nginx"},
		platform.Fedora: {"certbot", "python3-certbot-nginx"},
	},
	Prereqs: map[platform.Family][]string{
		platform.RHEL: {"epel-release"},
	},
}

var versionPattern = regexp.MustCompile(`(\d+\.\d+(?:\.\d+)?)`)

// Installer ensures components using the detected family's package manager.
type Installer struct {
	family platform.Family
	exec   executor.CommandExecutor // privileged, used for package installs
	query  executor.CommandExecutor // unprivileged, used for lookups and versions

	// indexRefreshed is set once "apt-get update" succeeded; later installs
	// of the same pass reuse the refreshed index.
	indexRefreshed bool
}

// New creates an Installer. exec runs package-manager commands and is
// usually a sudo executor; query only looks things up.
func New(family platform.Family, exec, query executor.CommandExecutor) *Installer {
	if query == nil {
		query = exec
	}
	return &Installer{family: family, exec: exec, query: query}
}

// Ensure makes c available. It installs at most once and never retries.
func (i *Installer) Ensure(c Component) (ComponentStatus, error) {
	status := ComponentStatus{Name: c.Name}

	if i.Present(c) {
		status.Status = StatusPresent
		status.Version = i.version(c)
		logger.Debug("%s already present (version %s)", c.Name, status.Version)
		return status, nil
	}

	if err := i.install(c); err != nil {
		return status, err
	}

	if !i.Present(c) {
		return status, errors.InstallVerification(c.Name,
			fmt.Errorf("%s not found on PATH after install", c.Binary))
	}

	status.Status = StatusInstalled
	status.Version = i.version(c)
	logger.Info("installed %s %s", c.Name, status.Version)
	return status, nil
}

// Check reports whether c is present and its version, installing nothing.
func (i *Installer) Check(c Component) (ComponentStatus, bool) {
	if !i.Present(c) {
		return ComponentStatus{Name: c.Name}, false
	}
	return ComponentStatus{Name: c.Name, Status: StatusPresent, Version: i.version(c)}, true
}

// EnsureAll ensures each component in order and stops at the first failure.
func (i *Installer) EnsureAll(components ...Component) ([]ComponentStatus, error) {
	statuses := make([]ComponentStatus, 0, len(components))
	for _, c := range components {
		st, err := i.Ensure(c)
		if err != nil {
			return statuses, err
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// Commands returns the package-manager invocations that would install c,
// in order. It is empty when the family has no rule.
func (i *Installer) Commands(c Component) [][]string {
	pkgs := c.Packages[i.family]
	if len(pkgs) == 0 {
		return nil
	}

	var cmds [][]string
	switch i.family {
	case platform.Debian:
		cmds = append(cmds, []string{"apt-get", "update"})
		cmds = append(cmds, append([]string{"apt-get", "install", "-y"}, pkgs...))
	case platform.RHEL:
		if pre := c.Prereqs[platform.RHEL]; len(pre) > 0 {
			cmds = append(cmds, append([]string{"yum", "install", "-y"}, pre...))
		}
		cmds = append(cmds, append([]string{"yum", "install", "-y"}, pkgs...))
	case platform.Fedora:
		cmds = append(cmds, append([]string{"dnf", "install", "-y"}, pkgs...))
	}
	return cmds
}

func (i *Installer) install(c Component) error {
	cmds := i.Commands(c)
	if len(cmds) == 0 {
		return errors.UnsupportedPlatform(i.family.String())
	}

	for _, cmd := range cmds {
		refresh := isIndexRefresh(cmd)
		if refresh && i.indexRefreshed {
			continue
		}
		logger.Debug("running %s", strings.Join(cmd, " "))
		if _, err := i.exec.Execute(cmd[0], cmd[1:]...); err != nil {
			return errors.InstallVerification(c.Name, err)
		}
		if refresh {
			i.indexRefreshed = true
		}
	}
	return nil
}

func isIndexRefresh(cmd []string) bool {
	return len(cmd) == 2 && cmd[0] == "apt-get" && cmd[1] == "update"
}

// Present reports whether c's binary resolves on PATH.
func (i *Installer) Present(c Component) bool {
	_, err := i.query.LookPath(c.Binary)
	return err == nil
}

// version returns the first dotted number in the component's version
// output. nginx prints it on stderr, which the executor combines.
func (i *Installer) version(c Component) string {
	out, err := i.query.Execute(c.Binary, c.VersionArgs...)
	if err != nil {
		logger.Debug("could not read %s version: %v", c.Name, err)
		return ""
	}
	return versionPattern.FindString(string(out))
}
