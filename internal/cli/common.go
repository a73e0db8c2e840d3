package cli

import (
	"fmt"
	"strings"

	"github.com/ksyq12/provision/internal/config"
	"github.com/ksyq12/provision/internal/driver"
	"github.com/ksyq12/provision/internal/errors"
	"github.com/ksyq12/provision/internal/executor"
	"github.com/ksyq12/provision/internal/hostfs"
	"github.com/ksyq12/provision/internal/installer"
	"github.com/ksyq12/provision/internal/output"
	"github.com/ksyq12/provision/internal/platform"
	"github.com/ksyq12/provision/internal/provision"
	"github.com/ksyq12/provision/internal/registry"
	"github.com/ksyq12/provision/internal/renewal"
	"github.com/ksyq12/provision/internal/site"
	"github.com/ksyq12/provision/internal/ssl"
	"github.com/spf13/cobra"
)

// printedError marks an error the command has already shown, so Execute
// does not print it a second time.
type printedError struct{ error }

func (e printedError) Unwrap() error { return e.error }

// host bundles the capabilities every command builds from the config.
type host struct {
	cfg *config.Config
	// exec runs read-only queries as the invoking user.
	exec executor.CommandExecutor
	// priv and fs change the system; they go through sudo when configured.
	priv  executor.CommandExecutor
	fs    hostfs.FS
	store *ssl.Store
}

// loadConfig loads the config honouring --config and the bound flags of cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := deps.ConfigLoader.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newHost wires the privileged executor and filesystem. Without use_sudo,
// or when already root, commands and file writes run directly.
func newHost(cfg *config.Config) *host {
	h := &host{cfg: cfg, exec: deps.Executor, priv: deps.Executor, fs: deps.FS}
	if cfg.UseSudo && deps.Euid() != 0 {
		h.priv = executor.NewSudoExecutor(deps.Executor)
		h.fs = hostfs.NewExecFS(h.priv)
	}
	h.store = ssl.NewStore(cfg.ACME.Root, h.fs)
	return h
}

func (h *host) detect() platform.Family {
	return platform.NewDetector(h.exec).Detect()
}

func (h *host) driver(family platform.Family) *driver.NginxDriver {
	return driver.NewNginx(h.cfg.SitePaths(family), h.fs, h.priv)
}

// hostFactory builds the family-specific capabilities for the orchestrator.
func (h *host) hostFactory() provision.HostFactory {
	return func(family platform.Family) (*provision.Host, error) {
		drv := h.driver(family)
		return &provision.Host{
			Installer: installer.New(family, h.priv, h.exec),
			Sites:     site.NewWriter(drv, h.store, h.cfg.ACME.Webroot),
			Proxy:     drv,
		}, nil
	}
}

// issuer creates the configured issuer. renewCmd only matters for lego.
func (h *host) issuer(renewCmd string) (ssl.Issuer, error) {
	return deps.IssuerFactory.Create(h.cfg.ACME.Issuer, IssuerParams{
		ACME:         h.cfg.ACME,
		Store:        h.store,
		Exec:         h.priv,
		FS:           h.fs,
		RenewCommand: renewCmd,
	})
}

// scheduler builds the renewal scheduler. domain is set when renewCmd is
// pinned to one domain, so each domain gets its own script.
func (h *host) scheduler(renewCmd, domain string) *renewal.Scheduler {
	return renewal.NewScheduler(h.fs, h.priv, renewal.Options{
		BinRoot:      h.cfg.Renewal.BinRoot,
		LogPath:      h.cfg.Renewal.LogPath,
		Schedule:     h.cfg.Renewal.Schedule,
		RenewCommand: renewCmd,
		Domain:       domain,
	})
}

// components returns what a run installs: certbot only when it issues.
func components(issuer string) []installer.Component {
	if issuer == config.IssuerLego {
		return []installer.Component{installer.Nginx}
	}
	return []installer.Component{installer.Nginx, installer.Certbot}
}

// legoRenewCommand is the line the renewal script runs for a lego-issued
// domain: this binary's renew command, pinned to the domain.
func legoRenewCommand(cfg *config.Config, req provision.Request) (string, error) {
	exe, err := deps.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	parts := []string{exe, "renew", "--quiet", "--domain", req.Domain, "--email", req.Email}
	if cfg.File != "" {
		parts = append(parts, "--config", cfg.File)
	}
	return strings.Join(parts, " "), nil
}

// loadRegistry reads the site records of the invoking user.
func loadRegistry(cfg *config.Config) (*registry.Registry, error) {
	reg, err := registry.Load(deps.FS, cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load site records: %w", err)
	}
	return reg, nil
}

// reportError prints err in the current output mode.
func reportError(err error) {
	var printed printedError
	if errors.As(err, &printed) {
		return
	}
	if jsonOutput {
		_ = output.JSON(errorBody(err))
		return
	}
	output.Failure(err)
}

type errorJSON struct {
	Code    string `json:"code"`
	Phase   string `json:"phase,omitempty"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

func errorBody(err error) errorJSON {
	body := errorJSON{Code: string(errors.CodeOf(err)), Message: err.Error()}
	var perr *errors.ProvisionError
	if errors.As(err, &perr) {
		body.Phase = perr.Phase
		body.Hint = perr.Hint
	}
	return body
}
