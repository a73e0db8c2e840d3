package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ksyq12/provision/internal/errors"
	"github.com/ksyq12/provision/internal/installer"
	"github.com/ksyq12/provision/internal/logger"
	"github.com/ksyq12/provision/internal/platform"
	"github.com/ksyq12/provision/internal/registry"
	"github.com/ksyq12/provision/internal/renewal"
	"github.com/ksyq12/provision/internal/site"
	"github.com/ksyq12/provision/internal/ssl"
	"github.com/ksyq12/provision/internal/template"
)

// phaseNames label the phase that leads into each state.
var phaseNames = map[State]string{
	EnvironmentDetected: "Environment detection",
	DependenciesReady:   "Dependency installation",
	BootstrapConfigLive: "Bootstrap config",
	ProxyRunning:        "Proxy start",
	CertificateIssued:   "Certificate issuance",
	FinalConfigLive:     "Final config",
	RenewalScheduled:    "Renewal scheduling",
	Done:                "Completion",
}

// PhaseName returns the human-readable name of the phase that enters s.
func PhaseName(s State) string {
	if name, ok := phaseNames[s]; ok {
		return name
	}
	return s.String()
}

// Options tune a run.
type Options struct {
	// AssumeYes skips the confirmation before certificate issuance.
	AssumeYes bool
	// AllowRoot disables the refusal to run with effective UID 0.
	AllowRoot bool
	// Components are ensured in order; defaults to nginx and certbot.
	Components []installer.Component
	// OnPhase is called before each phase starts.
	OnPhase func(step, total int, name string)
	// OnState is called after each state is entered.
	OnState func(s State)
}

// Report is the outcome of a run.
type Report struct {
	RunID       string                      `json:"run_id"`
	Request     Request                     `json:"request"`
	Family      platform.Family             `json:"family"`
	State       State                       `json:"state"`
	Path        []State                     `json:"path"`
	Components  []installer.ComponentStatus `json:"components,omitempty"`
	Bootstrap   *site.Result                `json:"bootstrap,omitempty"`
	Final       *site.Result                `json:"final,omitempty"`
	Certificate *ssl.Cert                   `json:"certificate,omitempty"`
	// CertificateReused is true when a valid certificate was already present.
	CertificateReused bool         `json:"certificate_reused"`
	Renewal           *renewal.Job `json:"renewal,omitempty"`
	Warnings          []string     `json:"warnings,omitempty"`
	Error             string       `json:"error,omitempty"`
}

// Orchestrator drives a host from Init to Done.
type Orchestrator struct {
	deps Deps
	opts Options
}

// New creates an Orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	deps.setDefaults()
	if len(opts.Components) == 0 {
		opts.Components = []installer.Component{installer.Nginx, installer.Certbot}
	}
	return &Orchestrator{deps: deps, opts: opts}
}

// run is the mutable state of one Run.
type run struct {
	req    Request
	host   *Host
	record *registry.SiteRecord
	report *Report
	log    *logger.Logger
}

// Run provisions req. On failure the returned report ends in Aborted and
// the error names the failed phase; nothing done before it is rolled back.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !o.opts.AllowRoot && o.deps.Euid() == 0 {
		return nil, errors.Privilege()
	}

	r := &run{
		req: req,
		report: &Report{
			RunID:   uuid.NewString(),
			Request: req,
			State:   Init,
			Path:    []State{Init},
		},
	}
	r.log = logger.With("domain", req.Domain).With("run", r.report.RunID)
	o.openRecord(r)
	o.enter(r, Init)

	state := Init
	total := Phases()
	for !state.Terminal() {
		target := state + 1
		if o.opts.OnPhase != nil {
			o.opts.OnPhase(int(target), total, PhaseName(target))
		}

		var phaseErr error
		if err := ctx.Err(); err != nil {
			phaseErr = errors.Wrap(errors.ErrCodeAborted, "interrupted", err)
		} else {
			phaseErr = o.step(ctx, state, r)
		}

		next, err := Next(state, phaseErr)
		if err != nil {
			return r.report, errors.Wrap(errors.ErrCodeInternal, "invalid transition", err)
		}
		if next == Aborted {
			return r.report, o.abort(r, target, phaseErr)
		}
		state = next
		o.enter(r, state)
	}

	return r.report, nil
}

// step runs the phase that leads out of s.
func (o *Orchestrator) step(ctx context.Context, s State, r *run) error {
	switch s {
	case Init:
		return o.detectEnvironment(ctx, r)
	case EnvironmentDetected:
		return o.ensureDependencies(r)
	case DependenciesReady:
		return o.writeBootstrap(r)
	case BootstrapConfigLive:
		return o.ensureProxy(r)
	case ProxyRunning:
		return o.obtainCertificate(ctx, s, r)
	case CertificateIssued:
		return o.writeFinal(r)
	case FinalConfigLive:
		return o.scheduleRenewal(r)
	case RenewalScheduled:
		return nil
	default:
		return fmt.Errorf("no phase leads out of %s", s)
	}
}

func (o *Orchestrator) detectEnvironment(ctx context.Context, r *run) error {
	if unresolved := o.unresolved(ctx, r.req.Domain); len(unresolved) > 0 {
		warning := fmt.Sprintf("%s does not resolve: %s", r.req.Domain, strings.Join(unresolved, "; "))
		r.report.Warnings = append(r.report.Warnings, warning)
		r.log.Warn("domain resolvability check failed", "detail", strings.Join(unresolved, "; "))

		question := warning + ". Continue anyway?"
		if !o.deps.Confirm(question) {
			return errors.Aborted(question)
		}
	}

	family := o.deps.Detector.Detect()
	r.report.Family = family
	if r.record != nil {
		r.record.Family = family.String()
	}
	r.log.Debug("environment detected", "family", family)

	host, err := o.deps.Host(family)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to set up host capabilities", err)
	}
	r.host = host
	return nil
}

// unresolved returns a description of every server name that has no address.
func (o *Orchestrator) unresolved(ctx context.Context, domain string) []string {
	if o.deps.Resolver == nil {
		return nil
	}
	var failed []string
	for _, name := range template.ServerNames(domain) {
		addrs, err := o.deps.Resolver.LookupHost(ctx, name)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", name, err))
		} else if len(addrs) == 0 {
			failed = append(failed, name+": no addresses")
		}
	}
	return failed
}

func (o *Orchestrator) ensureDependencies(r *run) error {
	statuses, err := r.host.Installer.EnsureAll(o.opts.Components...)
	for _, st := range statuses {
		r.log.Info("component ready", "component", st.Name, "status", st.Status, "version", st.Version)
	}
	r.report.Components = append(r.report.Components, statuses...)
	return err
}

func (o *Orchestrator) writeBootstrap(r *run) error {
	if !o.bootstrapNeeded(r.host, r.req.Domain) {
		r.log.Info("final config already live, bootstrap config not needed")
		return nil
	}

	res, err := r.host.Sites.WriteBootstrap(siteRequest(r.req))
	if err != nil {
		return err
	}
	r.report.Bootstrap = res
	o.recordConfig(r, res.Path)
	return nil
}

// bootstrapNeeded is false once the slot serves the final config and the
// certificate files it references exist. The final config answers ACME
// challenges on port 80 itself, so a reissue never takes HTTPS down.
func (o *Orchestrator) bootstrapNeeded(host *Host, domain string) bool {
	ok, err := o.deps.Certs.Exists(domain)
	if err != nil || !ok {
		return true
	}
	final, err := host.Sites.ServesFinal(domain)
	if err != nil {
		logger.Debug("could not read current site config for %s: %v", domain, err)
		return true
	}
	return !final
}

func (o *Orchestrator) ensureProxy(r *run) error {
	proxy := r.host.Proxy
	if !proxy.IsActive() {
		r.log.Debug("starting nginx")
		if err := proxy.Start(); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, "failed to start nginx", err)
		}
	}
	if err := proxy.EnableOnBoot(); err != nil {
		r.report.Warnings = append(r.report.Warnings, fmt.Sprintf("nginx not enabled at boot: %v", err))
		r.log.Warn("failed to enable nginx at boot", "error", err)
	}
	if !proxy.IsActive() {
		return errors.Wrap(errors.ErrCodeInternal, "nginx is not running", nil)
	}
	return nil
}

func (o *Orchestrator) obtainCertificate(ctx context.Context, s State, r *run) error {
	if cert, ok := o.reusableCert(r.req.Domain); ok {
		r.report.Certificate = cert
		r.report.CertificateReused = true
		o.recordCert(r, cert)
		return nil
	}

	if !o.opts.AssumeYes {
		names := template.ServerNames(r.req.Domain)
		question := fmt.Sprintf("Request a Let's Encrypt certificate for %s, agreeing to the CA terms of service? DNS must point to this server and port 80 must be reachable.",
			strings.Join(names, " and "))
		if !o.deps.Confirm(question) {
			return errors.Aborted(question)
		}
	}

	cert, err := o.IssueCertificate(ctx, s, r.req)
	if err != nil {
		return err
	}
	r.report.Certificate = cert
	o.recordCert(r, cert)
	return nil
}

// IssueCertificate asks the issuer for a certificate covering the domain
// and its www alias. It refuses unless state is ProxyRunning, because the
// CA validates over HTTP through the running bootstrap config.
func (o *Orchestrator) IssueCertificate(ctx context.Context, state State, req Request) (*ssl.Cert, error) {
	if state != ProxyRunning {
		return nil, errors.Wrap(errors.ErrCodeInternal,
			fmt.Sprintf("certificate issuance requires state %s, current state is %s", ProxyRunning, state), nil)
	}

	cert, err := o.deps.Issuer.Issue(ctx, req.Domain, req.Email)
	if err != nil {
		return nil, errors.CertificateIssuance(req.Domain, err)
	}

	if inspected, err := o.deps.Certs.Inspect(req.Domain); err == nil {
		cert = inspected
	} else {
		logger.Debug("could not inspect new certificate for %s: %v", req.Domain, err)
	}
	return cert, nil
}

// reusableCert returns the existing certificate when it covers both names
// and is outside the renewal window.
func (o *Orchestrator) reusableCert(domain string) (*ssl.Cert, bool) {
	ok, err := o.deps.Certs.Exists(domain)
	if err != nil || !ok {
		return nil, false
	}
	cert, err := o.deps.Certs.Inspect(domain)
	if err != nil {
		logger.Debug("existing certificate for %s unreadable: %v", domain, err)
		return nil, false
	}
	if !cert.Covers(template.ServerNames(domain)...) || cert.NeedsRenewal(o.deps.Now(), ssl.RenewalWindow) {
		return nil, false
	}
	return cert, true
}

func (o *Orchestrator) writeFinal(r *run) error {
	res, err := r.host.Sites.WriteFinal(siteRequest(r.req))
	if err != nil {
		return err
	}
	// an unchanged config still has to pick up reissued certificate files
	if res.Action == "none" && !r.report.CertificateReused {
		if err := r.host.Proxy.Reload(); err != nil {
			return errors.Wrap(errors.ErrCodeConfigValidation, "failed to reload nginx", err)
		}
		res.Action = "reload"
	}
	r.report.Final = res
	o.recordConfig(r, res.Path)
	return nil
}

func (o *Orchestrator) scheduleRenewal(r *run) error {
	job, err := o.deps.Scheduler.Schedule(r.req.ProjectName)
	if err != nil {
		return err
	}
	r.report.Renewal = job
	if r.record != nil {
		r.record.ScriptPath = job.ScriptPath
		r.record.CronLine = job.CronLine
	}
	return nil
}

func siteRequest(req Request) site.Request {
	return site.Request{Domain: req.Domain, AppPort: req.AppPort}
}

// enter records s as reached.
func (o *Orchestrator) enter(r *run, s State) {
	r.report.State = s
	if s != Init {
		r.report.Path = append(r.report.Path, s)
	}
	r.log.Debug("state entered", "state", s)

	if r.record != nil {
		r.record.State = s.String()
		r.record.Path = statesToStrings(r.report.Path)
		r.record.UpdatedAt = o.deps.Now()
		o.saveRecord(r)
	}
	if o.opts.OnState != nil {
		o.opts.OnState(s)
	}
}

// abort moves the run to Aborted and attributes err to the phase that
// was leading into target. The record keeps the last reached state.
func (o *Orchestrator) abort(r *run, target State, err error) error {
	phase := PhaseName(target)

	var perr *errors.ProvisionError
	if errors.As(err, &perr) {
		perr = perr.WithPhase(phase)
	} else {
		perr = &errors.ProvisionError{Code: errors.ErrCodeInternal, Message: "unexpected failure", Err: err, Phase: phase}
	}
	if perr.Domain == "" {
		perr.Domain = r.req.Domain
	}

	r.report.State = Aborted
	r.report.Path = append(r.report.Path, Aborted)
	r.report.Error = perr.Error()
	r.log.Error("run aborted", "phase", phase, "code", perr.Code, "error", err)

	if r.record != nil {
		r.record.LastError = perr.Error()
		r.record.UpdatedAt = o.deps.Now()
		o.saveRecord(r)
	}
	if o.opts.OnState != nil {
		o.opts.OnState(Aborted)
	}
	return perr
}

func (o *Orchestrator) openRecord(r *run) {
	if o.deps.Records == nil {
		return
	}
	rec := o.deps.Records.Upsert(r.req.Domain, o.deps.Now())
	rec.Email = r.req.Email
	rec.AppPort = r.req.AppPort
	rec.ProjectName = r.req.ProjectName
	rec.RunID = r.report.RunID
	rec.LastError = ""
	if o.deps.Issuer != nil {
		rec.Issuer = o.deps.Issuer.Name()
	}
	r.record = rec
}

func (o *Orchestrator) recordConfig(r *run, path string) {
	if r.record != nil {
		r.record.ConfigPath = path
	}
}

func (o *Orchestrator) recordCert(r *run, cert *ssl.Cert) {
	if r.record != nil {
		r.record.CertPath = cert.CertPath
		r.record.KeyPath = cert.KeyPath
		r.record.CertExpiry = cert.NotAfter
	}
}

// saveRecord persists the registry. A failure is logged and does not stop
// the run; the host state is the source of truth.
func (o *Orchestrator) saveRecord(r *run) {
	if err := o.deps.Records.Save(); err != nil {
		r.log.Warn("failed to save site record", "error", err)
	}
}

func statesToStrings(states []State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = s.String()
	}
	return out
}
