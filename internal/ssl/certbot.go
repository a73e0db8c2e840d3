package ssl

import (
	"context"
	"fmt"
	"strings"

	"github.com/ksyq12/provision/internal/executor"
)

// Issuer obtains one certificate covering a domain and its www alias.
type Issuer interface {
	// Name identifies the issuer in logs and reports
	Name() string

	// Issue obtains a certificate for domain and www.domain, agreeing to
	// the CA's terms of service on the caller's behalf
	Issue(ctx context.Context, domain, email string) (*Cert, error)

	// RenewCommand is the shell command the renewal script runs
	RenewCommand() string
}

// CertbotIssuer drives the certbot CLI in webroot mode.
type CertbotIssuer struct {
	exec    executor.CommandExecutor
	store   *Store
	webroot string
}

// NewCertbotIssuer creates a CertbotIssuer. exec must be privileged; certbot
// writes under the store root.
func NewCertbotIssuer(exec executor.CommandExecutor, store *Store, webroot string) *CertbotIssuer {
	return &CertbotIssuer{exec: exec, store: store, webroot: webroot}
}

// Name returns "certbot"
func (c *CertbotIssuer) Name() string {
	return "certbot"
}

// IsInstalled checks if certbot is installed
func (c *CertbotIssuer) IsInstalled() bool {
	_, err := c.exec.LookPath("certbot")
	return err == nil
}

// runCertbot executes certbot with the given arguments
func (c *CertbotIssuer) runCertbot(args []string) error {
	if !c.IsInstalled() {
		return fmt.Errorf("certbot is not installed")
	}

	if c.store.Root() != DefaultRoot {
		args = append(args, "--config-dir", c.store.Root())
	}

	output, err := c.exec.Execute("certbot", args...)
	if err != nil {
		return fmt.Errorf("certbot failed: %s", strings.TrimSpace(string(output)))
	}
	return nil
}

// IssueArgs returns the certbot arguments used for domain.
func (c *CertbotIssuer) IssueArgs(domain, email string) []string {
	return []string{
		"certonly",
		"--webroot",
		"-w", c.webroot,
		"-d", domain,
		"-d", "www." + domain,
		"--email", email,
		"--agree-tos",
		"--non-interactive",
		"--keep-until-expiring",
		// an existing lineage without www is widened instead of prompting
		"--expand",
	}
}

// Issue obtains a certificate using certbot webroot mode
func (c *CertbotIssuer) Issue(ctx context.Context, domain, email string) (*Cert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.runCertbot(c.IssueArgs(domain, email)); err != nil {
		return nil, err
	}
	return c.store.Paths(domain), nil
}

// RenewCommand renews every certbot-managed certificate quietly
func (c *CertbotIssuer) RenewCommand() string {
	if c.store.Root() != DefaultRoot {
		return "certbot renew --quiet --config-dir " + c.store.Root()
	}
	return "certbot renew --quiet"
}

// RenewAll renews all certificates
func (c *CertbotIssuer) RenewAll() error {
	return c.runCertbot([]string{"renew", "--quiet", "--non-interactive"})
}
