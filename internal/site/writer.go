// Package site installs the NGINX site config of a provisioned domain.
//
// A domain has exactly one config slot. WriteBootstrap fills it with an
// HTTP-only config that serves ACME challenges; WriteFinal replaces it with
// the HTTPS reverse proxy once a certificate exists.
//
// Both writes are transactional: the new content goes live only after
// "nginx -t" accepts it. When the test fails the previous content is put
// back (or the new file and its activation link are removed) and NGINX is
// not reloaded, so whatever was serving before keeps serving.
package site

import (
	"bytes"
	"fmt"

	"github.com/ksyq12/provision/internal/driver"
	"github.com/ksyq12/provision/internal/errors"
	"github.com/ksyq12/provision/internal/logger"
	"github.com/ksyq12/provision/internal/ssl"
	"github.com/ksyq12/provision/internal/template"
)

// Request carries the per-domain values a site config needs.
type Request struct {
	Domain  string
	AppPort int
}

// Result describes one applied site config.
type Result struct {
	Domain  string         `json:"domain" yaml:"domain"`
	Stage   template.Stage `json:"stage" yaml:"stage"`
	Path    string         `json:"path" yaml:"path"`
	Changed bool           `json:"changed" yaml:"changed"`
	// Action is "reload", "start" or "none".
	Action string `json:"action" yaml:"action"`
}

// Writer renders site configs and applies them through a driver.
type Writer struct {
	drv     driver.Driver
	store   *ssl.Store
	webroot string
}

// NewWriter creates a Writer. webroot is the ACME challenge directory
// served by both stages.
func NewWriter(drv driver.Driver, store *ssl.Store, webroot string) *Writer {
	return &Writer{drv: drv, store: store, webroot: webroot}
}

// Render returns the config text for stage without touching the host.
func (w *Writer) Render(stage template.Stage, req Request) (string, error) {
	s := template.Site{
		Domain:  req.Domain,
		AppPort: req.AppPort,
		Webroot: w.webroot,
	}
	if stage == template.StageFinal {
		cert := w.store.Paths(req.Domain)
		s.CertPath = cert.CertPath
		s.KeyPath = cert.KeyPath
	}
	return template.Render(stage, s)
}

// WriteBootstrap installs the HTTP-only config used for ACME validation.
func (w *Writer) WriteBootstrap(req Request) (*Result, error) {
	return w.write(template.StageBootstrap, req)
}

// WriteFinal installs the HTTPS config. It refuses to run before the
// certificate files for the domain exist, since the config references them.
func (w *Writer) WriteFinal(req Request) (*Result, error) {
	ok, err := w.store.Exists(req.Domain)
	if err != nil {
		return nil, errors.CertificateIssuance(req.Domain, err)
	}
	if !ok {
		cert := w.store.Paths(req.Domain)
		return nil, errors.CertificateIssuance(req.Domain,
			fmt.Errorf("no certificate at %s", cert.CertPath))
	}
	return w.write(template.StageFinal, req)
}

// ServesFinal reports whether the slot for domain already holds an HTTPS
// config pointing at the domain's certificate files.
func (w *Writer) ServesFinal(domain string) (bool, error) {
	content, ok, err := w.drv.ReadSite(domain)
	if err != nil || !ok {
		return false, err
	}
	cert := w.store.Paths(domain)
	return bytes.Contains(content, []byte("ssl_certificate "+cert.CertPath+";")), nil
}

func (w *Writer) write(stage template.Stage, req Request) (*Result, error) {
	content, err := w.Render(stage, req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to render site config", err)
	}

	result := &Result{
		Domain: req.Domain,
		Stage:  stage,
		Path:   w.drv.ConfigPath(req.Domain),
		Action: "none",
	}

	previous, existed, err := w.drv.ReadSite(req.Domain)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to read current site config", err)
	}

	result.Changed = !existed || !bytes.Equal(previous, []byte(content))
	if result.Changed {
		logger.Debug("writing %s config to %s", stage, result.Path)
		if err := w.drv.WriteSite(req.Domain, []byte(content)); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, "failed to write site config", err)
		}
	}

	linked, err := w.drv.Enable(req.Domain)
	if err != nil {
		w.restore(req.Domain, previous, existed, false)
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to enable site", err)
	}

	active := w.drv.IsActive()
	if !result.Changed && !linked && active {
		logger.Debug("%s config for %s unchanged", stage, req.Domain)
		return result, nil
	}

	if err := w.drv.Test(); err != nil {
		w.restore(req.Domain, previous, existed, linked)
		return nil, errors.ConfigValidation(req.Domain, err)
	}

	if active {
		result.Action = "reload"
		err = w.drv.Reload()
	} else {
		result.Action = "start"
		err = w.drv.Start()
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigValidation,
			fmt.Sprintf("failed to %s nginx", result.Action), err)
	}

	return result, nil
}

// restore puts the slot back the way it was before write. Failures are
// logged; the caller already returns the error that triggered the restore.
func (w *Writer) restore(domain string, previous []byte, existed, linked bool) {
	if linked {
		if err := w.drv.Disable(domain); err != nil {
			logger.Error("failed to remove activation link for %s: %v", domain, err)
		}
	}
	if existed {
		if err := w.drv.WriteSite(domain, previous); err != nil {
			logger.Error("failed to restore previous config for %s: %v", domain, err)
		}
		return
	}
	if err := w.drv.RemoveSite(domain); err != nil {
		logger.Error("failed to remove new config for %s: %v", domain, err)
	}
}
