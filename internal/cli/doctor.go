package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/ksyq12/provision/internal/config"
	"github.com/ksyq12/provision/internal/driver"
	"github.com/ksyq12/provision/internal/installer"
	"github.com/ksyq12/provision/internal/output"
	"github.com/ksyq12/provision/internal/platform"
	"github.com/ksyq12/provision/internal/provision"
	"github.com/ksyq12/provision/internal/registry"
	"github.com/ksyq12/provision/internal/renewal"
	"github.com/ksyq12/provision/internal/ssl"
	"github.com/ksyq12/provision/internal/template"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check system status and diagnose issues",
	Long: `Run diagnostic checks on the host and every provisioned domain.

Checks:
  - Package manager family
  - NGINX and certbot installation
  - NGINX service state and config syntax
  - Per domain: site config, certificate coverage and expiry, renewal job

Nothing is changed; rerun provision to repair what is reported.

Examples:
  provision doctor
  provision doctor --json`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// Check statuses
const (
	checkSuccess = "success"
	checkWarning = "warning"
	checkError   = "error"
)

// CheckResult represents a single diagnostic check result
type CheckResult struct {
	Status  string `json:"status"` // "success", "warning", "error"
	Message string `json:"message"`
}

// SiteCheck represents the status of a single provisioned domain
type SiteCheck struct {
	Domain string        `json:"domain"`
	State  string        `json:"state"`
	Checks []CheckResult `json:"checks"`
}

// DoctorReport contains all diagnostic results
type DoctorReport struct {
	SystemRequirements []CheckResult `json:"system_requirements"`
	Configuration      []CheckResult `json:"configuration"`
	Sites              []SiteCheck   `json:"sites"`
}

// Healthy reports whether no check failed.
func (r *DoctorReport) Healthy() bool {
	all := append(append([]CheckResult{}, r.SystemRequirements...), r.Configuration...)
	for _, s := range r.Sites {
		all = append(all, s.Checks...)
	}
	for _, c := range all {
		if c.Status == checkError {
			return false
		}
	}
	return true
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	h := newHost(cfg)
	family := h.detect()
	drv := h.driver(family)
	inst := installer.New(family, h.priv, h.exec)

	report := &DoctorReport{}
	report.SystemRequirements = checkSystemRequirements(cfg, family, inst, drv)
	report.Configuration = checkConfiguration(cfg, inst, drv)
	report.Sites = checkSites(reg.List(), drv, h.store, h.scheduler("", ""), time.Now())

	if jsonOutput {
		if err := output.JSON(report); err != nil {
			return err
		}
	} else {
		displayDoctorResults(report)
	}

	if !report.Healthy() {
		return printedError{fmt.Errorf("doctor found problems")}
	}
	return nil
}

func checkSystemRequirements(cfg *config.Config, family platform.Family, inst *installer.Installer, drv driver.Driver) []CheckResult {
	results := []CheckResult{}

	if family == platform.Unknown {
		results = append(results, CheckResult{
			Status:  checkError,
			Message: fmt.Sprintf("No supported package manager found on %s (apt-get, yum, dnf)", platform.Platform()),
		})
	} else {
		results = append(results, CheckResult{
			Status:  checkSuccess,
			Message: fmt.Sprintf("Platform %s (%s) on %s", family, family.PackageManager(), platform.Platform()),
		})
	}

	components := []struct {
		component installer.Component
		optional  bool
	}{
		{installer.Nginx, false},
		{installer.Certbot, cfg.ACME.Issuer == config.IssuerLego},
	}
	for _, c := range components {
		st, ok := inst.Check(c.component)
		name := capitalize(c.component.Name)
		if ok {
			version := st.Version
			if version == "" {
				version = "unknown"
			}
			results = append(results, CheckResult{
				Status:  checkSuccess,
				Message: fmt.Sprintf("%s installed (%s)", name, version),
			})
			continue
		}
		status := checkError
		suffix := ""
		if c.optional {
			status = checkWarning
			suffix = " (optional)"
		}
		results = append(results, CheckResult{
			Status:  status,
			Message: fmt.Sprintf("%s not installed%s", name, suffix),
		})
	}

	if drv.IsActive() {
		results = append(results, CheckResult{Status: checkSuccess, Message: "Nginx running"})
	} else {
		results = append(results, CheckResult{Status: checkWarning, Message: "Nginx not running"})
	}

	return results
}

func checkConfiguration(cfg *config.Config, inst *installer.Installer, drv driver.Driver) []CheckResult {
	results := []CheckResult{}

	if cfg.File != "" {
		results = append(results, CheckResult{
			Status:  checkSuccess,
			Message: fmt.Sprintf("Config file loaded (%s)", cfg.File),
		})
	} else {
		results = append(results, CheckResult{
			Status:  checkSuccess,
			Message: "No config file, using defaults",
		})
	}

	if !inst.Present(installer.Nginx) {
		return results
	}
	if err := drv.Test(); err == nil {
		results = append(results, CheckResult{Status: checkSuccess, Message: "Nginx config syntax OK"})
	} else {
		results = append(results, CheckResult{
			Status:  checkError,
			Message: "Nginx config syntax error: " + firstLine(err.Error()),
		})
	}

	return results
}

func checkSites(records []*registry.SiteRecord, drv driver.Driver, store *ssl.Store, sched *renewal.Scheduler, now time.Time) []SiteCheck {
	sites := []SiteCheck{}

	for _, rec := range records {
		sc := SiteCheck{Domain: rec.Domain, State: rec.State}
		add := func(status, format string, args ...interface{}) {
			sc.Checks = append(sc.Checks, CheckResult{Status: status, Message: fmt.Sprintf(format, args...)})
		}

		if rec.LastError != "" {
			add(checkError, "last run failed: %s", rec.LastError)
		}

		if _, ok, err := drv.ReadSite(rec.Domain); err != nil || !ok {
			add(checkError, "site config missing (%s)", drv.ConfigPath(rec.Domain))
		} else if enabled, err := drv.IsEnabled(rec.Domain); err == nil && !enabled {
			add(checkError, "site config not enabled")
		}

		cert, err := store.Inspect(rec.Domain)
		switch {
		case err != nil:
			add(checkError, "no certificate at %s", store.Paths(rec.Domain).CertPath)
		case !cert.Covers(template.ServerNames(rec.Domain)...):
			add(checkError, "certificate does not cover %s", strings.Join(template.ServerNames(rec.Domain), " and "))
		case cert.NeedsRenewal(now, ssl.RenewalWindow):
			add(checkWarning, "certificate expires %s, renewal due", cert.NotAfter.Format("2006-01-02"))
		default:
			add(checkSuccess, "certificate valid until %s", cert.NotAfter.Format("2006-01-02"))
		}

		if rec.State == provision.Done.String() || rec.CronLine != "" {
			line := rec.CronLine
			if line == "" {
				line = sched.CronLine(rec.ProjectName)
			}
			installed, err := sched.Installed(line)
			switch {
			case err != nil:
				add(checkWarning, "could not read crontab: %v", err)
			case !installed:
				add(checkError, "renewal job missing from crontab")
			default:
				add(checkSuccess, "renewal scheduled (%s)", line)
			}
		}

		sites = append(sites, sc)
	}

	return sites
}

func displayDoctorResults(report *DoctorReport) {
	// System requirements
	output.Print("Checking system requirements...")
	for _, check := range report.SystemRequirements {
		displayCheck(check)
	}
	output.Print("")

	// Configuration
	output.Print("Checking configuration...")
	for _, check := range report.Configuration {
		displayCheck(check)
	}
	output.Print("")

	if len(report.Sites) == 0 {
		output.Print("No domains provisioned")
		return
	}
	output.Print("Checking domains...")
	for _, site := range report.Sites {
		output.Print("%s (%s)", site.Domain, site.State)
		for _, check := range site.Checks {
			output.Print("  %s", checkLine(check))
		}
	}
}

func displayCheck(check CheckResult) {
	switch check.Status {
	case checkSuccess:
		output.Success("%s", check.Message)
	case checkWarning:
		output.Warn("%s", check.Message)
	case checkError:
		output.Error("%s", check.Message)
	}
}

func checkLine(check CheckResult) string {
	switch check.Status {
	case checkSuccess:
		return "✓ " + check.Message
	case checkWarning:
		return "! " + check.Message
	default:
		return "✗ " + check.Message
	}
}

func capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
