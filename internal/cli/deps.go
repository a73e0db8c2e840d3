package cli

import (
	"fmt"
	"io"
	"net"
	"os"

	"github.com/ksyq12/provision/internal/config"
	"github.com/ksyq12/provision/internal/executor"
	"github.com/ksyq12/provision/internal/hostfs"
	"github.com/ksyq12/provision/internal/input"
	"github.com/ksyq12/provision/internal/provision"
	"github.com/ksyq12/provision/internal/ssl"
	"github.com/spf13/pflag"
)

// Dependencies aggregates all CLI external dependencies for testability
type Dependencies struct {
	ConfigLoader  ConfigLoader
	Executor      executor.CommandExecutor
	FS            hostfs.FS
	IssuerFactory IssuerFactory
	Resolver      provision.Resolver
	Confirmer     ConfirmerFactory
	Euid          func() int
	Executable    func() (string, error)
}

// ConfigLoader handles configuration loading
type ConfigLoader interface {
	Load(cfgFile string, flags *pflag.FlagSet) (*config.Config, error)
}

// IssuerParams is everything an issuer may need from the host.
type IssuerParams struct {
	ACME  config.ACMEConfig
	Store *ssl.Store
	// Exec and FS are privileged.
	Exec executor.CommandExecutor
	FS   hostfs.FS
	// RenewCommand is what the renewal script runs for the lego issuer.
	RenewCommand string
}

// IssuerFactory creates issuer instances
type IssuerFactory interface {
	Create(name string, p IssuerParams) (ssl.Issuer, error)
}

// ConfirmerFactory returns the source of answers for a run. w receives
// the prompts.
type ConfirmerFactory func(assumeYes bool, w io.Writer) input.ConfirmFunc

// Package-level dependencies (can be overridden for testing)
var deps = &Dependencies{
	ConfigLoader:  &realConfigLoader{},
	Executor:      executor.NewSystemExecutor(),
	FS:            hostfs.NewOSFS(),
	IssuerFactory: &realIssuerFactory{},
	Resolver:      net.DefaultResolver,
	Confirmer:     input.Confirmer,
	Euid:          os.Geteuid,
	Executable:    os.Executable,
}

// SetDeps replaces the package dependencies (for testing)
func SetDeps(d *Dependencies) {
	deps = d
}

// GetDeps returns the current dependencies (for testing)
func GetDeps() *Dependencies {
	return deps
}

// Real implementations that delegate to existing functions

type realConfigLoader struct{}

func (r *realConfigLoader) Load(cfgFile string, flags *pflag.FlagSet) (*config.Config, error) {
	return config.Load(cfgFile, flags)
}

type realIssuerFactory struct{}

func (r *realIssuerFactory) Create(name string, p IssuerParams) (ssl.Issuer, error) {
	switch name {
	case config.IssuerCertbot, "":
		return ssl.NewCertbotIssuer(p.Exec, p.Store, p.ACME.Webroot), nil
	case config.IssuerLego:
		return ssl.NewLegoIssuer(p.Store, p.FS, p.ACME.Webroot, p.ACME.DirectoryURL, p.RenewCommand), nil
	default:
		return nil, fmt.Errorf("unknown issuer %q", name)
	}
}
