package ssl

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"path/filepath"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge/http01"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"
	"github.com/ksyq12/provision/internal/hostfs"
	"github.com/ksyq12/provision/internal/logger"
)

type acmeUser struct {
	Email        string
	Registration *registration.Resource
	key          crypto.PrivateKey
}

func (u *acmeUser) GetEmail() string                        { return u.Email }
func (u *acmeUser) GetRegistration() *registration.Resource { return u.Registration }
func (u *acmeUser) GetPrivateKey() crypto.PrivateKey        { return u.key }

// webrootProvider answers HTTP-01 challenges by writing the key
// authorization under the webroot the bootstrap config serves.
type webrootProvider struct {
	fs   hostfs.FS
	root string
}

func (p *webrootProvider) Present(domain, token, keyAuth string) error {
	path := filepath.Join(p.root, http01.ChallengePath(token))
	if err := p.fs.WriteFile(path, []byte(keyAuth), 0644); err != nil {
		return fmt.Errorf("failed to write challenge for %s: %w", domain, err)
	}
	return nil
}

func (p *webrootProvider) CleanUp(domain, token, keyAuth string) error {
	return p.fs.Remove(filepath.Join(p.root, http01.ChallengePath(token)))
}

// LegoIssuer obtains certificates in-process with the lego ACME client and
// stores them at the same paths certbot would use.
type LegoIssuer struct {
	store        *Store
	fs           hostfs.FS
	webroot      string
	directoryURL string
	renewCmd     string
}

// NewLegoIssuer creates a LegoIssuer. renewCmd is the command the renewal
// script runs, typically "<this binary> renew --quiet".
func NewLegoIssuer(store *Store, fsys hostfs.FS, webroot, directoryURL, renewCmd string) *LegoIssuer {
	if directoryURL == "" {
		directoryURL = lego.LEDirectoryProduction
	}
	return &LegoIssuer{
		store:        store,
		fs:           fsys,
		webroot:      webroot,
		directoryURL: directoryURL,
		renewCmd:     renewCmd,
	}
}

// Name returns "lego"
func (l *LegoIssuer) Name() string {
	return "lego"
}

// RenewCommand returns the configured renewal command
func (l *LegoIssuer) RenewCommand() string {
	return l.renewCmd
}

// Issue registers an account (agreeing to the terms of service), solves
// HTTP-01 through the webroot and saves one bundled certificate for
// domain and www.domain.
func (l *LegoIssuer) Issue(ctx context.Context, domain, email string) (*Cert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate account key: %w", err)
	}
	user := &acmeUser{Email: email, key: privateKey}

	config := lego.NewConfig(user)
	config.CADirURL = l.directoryURL
	config.Certificate.KeyType = certcrypto.EC256

	client, err := lego.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create lego client: %w", err)
	}

	provider := &webrootProvider{fs: l.fs, root: l.webroot}
	if err := client.Challenge.SetHTTP01Provider(provider); err != nil {
		return nil, fmt.Errorf("failed to set http01 provider: %w", err)
	}

	reg, err := client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
	if err != nil {
		return nil, fmt.Errorf("failed to register ACME account: %w", err)
	}
	user.Registration = reg

	logger.Debug("requesting certificate for %s from %s", domain, l.directoryURL)
	resource, err := client.Certificate.Obtain(certificate.ObtainRequest{
		Domains: []string{domain, "www." + domain},
		Bundle:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to obtain certificate for %s: %w", domain, err)
	}

	return l.store.Save(domain, resource.Certificate, resource.PrivateKey)
}
