package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/ksyq12/provision/internal/errors"
	"github.com/ksyq12/provision/internal/platform"
	"github.com/ksyq12/provision/internal/template"
)

// Plan is what a run would do, computed without changing the host.
type Plan struct {
	Request  Request         `json:"request"`
	Family   platform.Family `json:"family"`
	Warnings []string        `json:"warnings,omitempty"`
	// Install maps each missing component to its install commands.
	Install    map[string][]string `json:"install,omitempty"`
	ConfigPath string              `json:"config_path"`
	Bootstrap  string              `json:"bootstrap,omitempty"`
	Final      string              `json:"final"`
	CertPath   string              `json:"cert_path"`
	KeyPath    string              `json:"key_path"`
	// CertificateReusable is true when issuance would be skipped.
	CertificateReusable bool   `json:"certificate_reusable"`
	Issuer              string `json:"issuer"`
	ScriptPath          string `json:"script_path"`
	CronLine            string `json:"cron_line"`
}

// Plan computes the dry-run view of req: detection, presence checks and
// rendered configs, but no installs, writes or issuance.
func (o *Orchestrator) Plan(ctx context.Context, req Request) (*Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p := &Plan{Request: req}
	for _, u := range o.unresolved(ctx, req.Domain) {
		p.Warnings = append(p.Warnings, fmt.Sprintf("%s does not resolve: %s", req.Domain, u))
	}

	p.Family = o.deps.Detector.Detect()
	host, err := o.deps.Host(p.Family)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to set up host capabilities", err)
	}

	for _, c := range o.opts.Components {
		if host.Installer.Present(c) {
			continue
		}
		if p.Install == nil {
			p.Install = make(map[string][]string)
		}
		cmds := host.Installer.Commands(c)
		if len(cmds) == 0 {
			return nil, errors.UnsupportedPlatform(p.Family.String())
		}
		for _, cmd := range cmds {
			p.Install[c.Name] = append(p.Install[c.Name], strings.Join(cmd, " "))
		}
	}

	sreq := siteRequest(req)
	p.ConfigPath = host.Proxy.ConfigPath(req.Domain)
	_, p.CertificateReusable = o.reusableCert(req.Domain)
	if o.bootstrapNeeded(host, req.Domain) {
		if p.Bootstrap, err = host.Sites.Render(template.StageBootstrap, sreq); err != nil {
			return nil, err
		}
	}
	if p.Final, err = host.Sites.Render(template.StageFinal, sreq); err != nil {
		return nil, err
	}

	cert := o.deps.Certs.Paths(req.Domain)
	p.CertPath, p.KeyPath = cert.CertPath, cert.KeyPath
	p.Issuer = o.deps.Issuer.Name()
	p.ScriptPath = o.deps.Scheduler.ScriptPath(req.ProjectName)
	p.CronLine = o.deps.Scheduler.CronLine(req.ProjectName)
	return p, nil
}
