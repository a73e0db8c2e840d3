package ssl

import (
	"crypto/x509"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/ksyq12/provision/internal/hostfs"
)

// DefaultRoot is the Let's Encrypt configuration directory.
const DefaultRoot = "/etc/letsencrypt"

// RenewalWindow is how long before expiry a certificate is renewed.
const RenewalWindow = 30 * 24 * time.Hour

// Cert represents an SSL certificate
type Cert struct {
	Domain   string    `json:"domain" yaml:"domain"`
	CertPath string    `json:"cert_path" yaml:"cert_path"`
	KeyPath  string    `json:"key_path" yaml:"key_path"`
	Names    []string  `json:"names,omitempty" yaml:"names,omitempty"`
	NotAfter time.Time `json:"not_after,omitempty" yaml:"not_after,omitempty"`
}

// Covers reports whether the certificate lists every name as a SAN.
func (c *Cert) Covers(names ...string) bool {
	have := make(map[string]bool, len(c.Names))
	for _, n := range c.Names {
		have[n] = true
	}
	for _, n := range names {
		if !have[n] {
			return false
		}
	}
	return true
}

// NeedsRenewal reports whether the certificate expires within window of now.
func (c *Cert) NeedsRenewal(now time.Time, window time.Duration) bool {
	return c.NotAfter.IsZero() || now.Add(window).After(c.NotAfter)
}

// Store reads the certificate files the ACME client maintains under
// <root>/live/<domain>. The ACME client is the only writer of those files;
// Save exists for the built-in lego issuer.
type Store struct {
	root string
	fs   hostfs.FS
}

// NewStore creates a Store rooted at root (DefaultRoot when empty).
func NewStore(root string, fsys hostfs.FS) *Store {
	if root == "" {
		root = DefaultRoot
	}
	return &Store{root: root, fs: fsys}
}

// Root returns the configuration directory.
func (s *Store) Root() string {
	return s.root
}

// Paths returns the certificate paths for a domain
func (s *Store) Paths(domain string) *Cert {
	dir := filepath.Join(s.root, "live", domain)
	return &Cert{
		Domain:   domain,
		CertPath: filepath.Join(dir, "fullchain.pem"),
		KeyPath:  filepath.Join(dir, "privkey.pem"),
	}
}

// Exists reports whether both the chain and the key exist for domain.
func (s *Store) Exists(domain string) (bool, error) {
	cert := s.Paths(domain)
	for _, p := range []string{cert.CertPath, cert.KeyPath} {
		ok, err := s.fs.Exists(p)
		if err != nil {
			return false, fmt.Errorf("failed to check %s: %w", p, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Inspect parses the leaf certificate of domain and reports its names and
// expiry. A missing certificate yields an error matching fs.ErrNotExist.
func (s *Store) Inspect(domain string) (*Cert, error) {
	cert := s.Paths(domain)
	data, err := s.fs.ReadFile(cert.CertPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}

	leaf, err := certcrypto.ParsePEMCertificate(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", cert.CertPath, err)
	}

	cert.Names = names(leaf)
	cert.NotAfter = leaf.NotAfter
	return cert, nil
}

// Save writes a chain and key to the convention paths of domain.
func (s *Store) Save(domain string, chain, key []byte) (*Cert, error) {
	cert := s.Paths(domain)
	if err := s.fs.WriteFile(cert.KeyPath, key, 0600); err != nil {
		return nil, fmt.Errorf("failed to write key: %w", err)
	}
	if err := s.fs.WriteFile(cert.CertPath, chain, 0644); err != nil {
		return nil, fmt.Errorf("failed to write certificate: %w", err)
	}
	return cert, nil
}

func names(leaf *x509.Certificate) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range append([]string{leaf.Subject.CommonName}, leaf.DNSNames...) {
		if n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
