package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ksyq12/provision/internal/config"
	"github.com/ksyq12/provision/internal/errors"
	"github.com/ksyq12/provision/internal/logger"
	"github.com/ksyq12/provision/internal/output"
	"github.com/ksyq12/provision/internal/ssl"
	"github.com/spf13/cobra"
)

var (
	renewDomains []string
	renewEmail   string
	renewQuiet   bool
	renewReload  bool
)

var renewCmd = &cobra.Command{
	Use:   "renew",
	Short: "Renew certificates that are close to expiry",
	Long: `Renew certificates and reload NGINX.

With the certbot issuer this runs "certbot renew", which renews every
certificate certbot manages. With the lego issuer each domain (given with
--domain, or every lego domain in the site records) is re-issued when it
expires within 30 days.

The renewal script installed by provision calls this command for lego-issued
domains.

Examples:
  provision renew
  provision renew --domain example.com --email admin@example.com --quiet`,
	Args: cobra.NoArgs,
	RunE: runRenew,
}

func init() {
	renewCmd.Flags().StringSliceVar(&renewDomains, "domain", nil, "Domain to renew (repeatable)")
	renewCmd.Flags().StringVar(&renewEmail, "email", "", "ACME account email for --domain")
	renewCmd.Flags().BoolVarP(&renewQuiet, "quiet", "q", false, "Print nothing unless renewal fails")
	renewCmd.Flags().BoolVar(&renewReload, "reload", true, "Reload nginx after a renewal")

	rootCmd.AddCommand(renewCmd)
}

// renewTarget is one lego-issued domain.
type renewTarget struct {
	domain string
	email  string
}

type renewResult struct {
	Domain   string     `json:"domain,omitempty"`
	Renewed  bool       `json:"renewed"`
	NotAfter *time.Time `json:"not_after,omitempty"`
	Error    string     `json:"error,omitempty"`
}

func runRenew(cmd *cobra.Command, args []string) error {
	if renewQuiet {
		prev := output.SetOutput(io.Discard)
		defer output.SetOutput(prev)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	h := newHost(cfg)

	var results []renewResult
	if cfg.ACME.Issuer == config.IssuerLego {
		results, err = renewLego(cmd, cfg, h)
	} else {
		results, err = renewCertbot(h)
	}
	if err != nil {
		return err
	}

	renewed := false
	failed := 0
	for _, r := range results {
		renewed = renewed || r.Renewed
		if r.Error != "" {
			failed++
		}
	}

	if renewed && renewReload {
		if err := h.driver(h.detect()).Reload(); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, "failed to reload nginx after renewal", err)
		}
	}

	if jsonOutput {
		if err := output.JSON(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			switch {
			case r.Error != "":
				output.Error("%s: %s", r.Domain, r.Error)
			case r.Renewed && r.Domain == "":
				output.Success("certbot renewal check completed")
			case r.Renewed:
				output.Success("%s renewed, valid until %s", r.Domain, r.NotAfter.Format("2006-01-02"))
			default:
				output.Info("%s not due, valid until %s", r.Domain, r.NotAfter.Format("2006-01-02"))
			}
		}
	}

	if failed > 0 {
		return errors.CertificateIssuance(strings.Join(failedDomains(results), ", "),
			fmt.Errorf("%d renewal(s) failed", failed))
	}
	return nil
}

// renewCertbot lets certbot decide what is due.
func renewCertbot(h *host) ([]renewResult, error) {
	issuer, err := h.issuer("")
	if err != nil {
		return nil, err
	}
	cb, ok := issuer.(*ssl.CertbotIssuer)
	if !ok {
		return nil, fmt.Errorf("issuer %s cannot renew in bulk", issuer.Name())
	}
	if err := cb.RenewAll(); err != nil {
		return nil, errors.CertificateIssuance("", err)
	}
	return []renewResult{{Renewed: true}}, nil
}

// renewLego re-issues every target that is inside the renewal window.
func renewLego(cmd *cobra.Command, cfg *config.Config, h *host) ([]renewResult, error) {
	targets, err := legoTargets(cfg)
	if err != nil {
		return nil, err
	}

	issuer, err := h.issuer("")
	if err != nil {
		return nil, err
	}

	now := time.Now()
	results := make([]renewResult, 0, len(targets))
	for _, t := range targets {
		res := renewResult{Domain: t.domain}
		if cert, err := h.store.Inspect(t.domain); err == nil && !cert.NeedsRenewal(now, ssl.RenewalWindow) {
			res.NotAfter = &cert.NotAfter
			results = append(results, res)
			continue
		}

		logger.Info("renewing certificate for %s", t.domain)
		cert, err := issuer.Issue(cmd.Context(), t.domain, t.email)
		if err != nil {
			logger.LogError(err, "renewal of "+t.domain)
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		if inspected, err := h.store.Inspect(t.domain); err == nil {
			cert = inspected
		}
		res.Renewed = true
		res.NotAfter = &cert.NotAfter
		results = append(results, res)
	}
	return results, nil
}

// legoTargets returns the --domain targets, or every lego-issued record.
func legoTargets(cfg *config.Config) ([]renewTarget, error) {
	if len(renewDomains) > 0 {
		if renewEmail == "" {
			return nil, errors.InvalidArguments("--email is required with --domain")
		}
		targets := make([]renewTarget, 0, len(renewDomains))
		for _, d := range renewDomains {
			targets = append(targets, renewTarget{domain: strings.ToLower(d), email: renewEmail})
		}
		return targets, nil
	}

	reg, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}
	var targets []renewTarget
	for _, rec := range reg.List() {
		if rec.Issuer == config.IssuerLego && rec.CertPath != "" {
			targets = append(targets, renewTarget{domain: rec.Domain, email: rec.Email})
		}
	}
	return targets, nil
}

func failedDomains(results []renewResult) []string {
	var out []string
	for _, r := range results {
		if r.Error != "" {
			out = append(out, r.Domain)
		}
	}
	return out
}
