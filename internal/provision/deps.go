package provision

import (
	"context"
	"os"
	"time"

	"github.com/ksyq12/provision/internal/installer"
	"github.com/ksyq12/provision/internal/platform"
	"github.com/ksyq12/provision/internal/registry"
	"github.com/ksyq12/provision/internal/renewal"
	"github.com/ksyq12/provision/internal/site"
	"github.com/ksyq12/provision/internal/ssl"
	"github.com/ksyq12/provision/internal/template"
)

// Detector identifies the package-manager family.
type Detector interface {
	Detect() platform.Family
}

// Installer ensures components are present.
type Installer interface {
	EnsureAll(components ...installer.Component) ([]installer.ComponentStatus, error)
	Present(c installer.Component) bool
	Commands(c installer.Component) [][]string
}

// SiteWriter installs the bootstrap and final site configs.
type SiteWriter interface {
	Render(stage template.Stage, req site.Request) (string, error)
	WriteBootstrap(req site.Request) (*site.Result, error)
	WriteFinal(req site.Request) (*site.Result, error)
	ServesFinal(domain string) (bool, error)
}

// Proxy is the running NGINX service.
type Proxy interface {
	ConfigPath(domain string) string
	IsActive() bool
	Start() error
	Reload() error
	EnableOnBoot() error
}

// CertStore reads the certificate files the issuer maintains.
type CertStore interface {
	Paths(domain string) *ssl.Cert
	Exists(domain string) (bool, error)
	Inspect(domain string) (*ssl.Cert, error)
}

// Scheduler installs the renewal job.
type Scheduler interface {
	Schedule(projectName string) (*renewal.Job, error)
	ScriptPath(projectName string) string
	CronLine(projectName string) string
}

// Resolver looks up host names. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// RecordStore persists site records. *registry.Registry satisfies it.
type RecordStore interface {
	Upsert(domain string, now time.Time) *registry.SiteRecord
	Save() error
}

// Host groups the capabilities that depend on the detected family.
type Host struct {
	Installer Installer
	Sites     SiteWriter
	Proxy     Proxy
}

// HostFactory builds the family-specific capabilities once the family is known.
type HostFactory func(family platform.Family) (*Host, error)

// Deps are the injected capabilities of an Orchestrator.
type Deps struct {
	Detector  Detector
	Host      HostFactory
	Issuer    ssl.Issuer
	Certs     CertStore
	Scheduler Scheduler
	Resolver  Resolver
	Records   RecordStore

	// Confirm answers the operator questions; nil answers no.
	Confirm func(question string) bool
	// Euid returns the effective user ID; defaults to os.Geteuid.
	Euid func() int
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d *Deps) setDefaults() {
	if d.Euid == nil {
		d.Euid = os.Geteuid
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Confirm == nil {
		d.Confirm = func(string) bool { return false }
	}
}
