package provision

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ksyq12/provision/internal/driver"
	"github.com/ksyq12/provision/internal/executor"
	"github.com/ksyq12/provision/internal/hostfs"
	"github.com/ksyq12/provision/internal/installer"
	"github.com/ksyq12/provision/internal/platform"
	"github.com/ksyq12/provision/internal/registry"
	"github.com/ksyq12/provision/internal/renewal"
	"github.com/ksyq12/provision/internal/site"
	"github.com/ksyq12/provision/internal/ssl"
	"github.com/stretchr/testify/require"
)

const stateDir = "/home/deploy/.local/state/provision"

var scenarioRequest = Request{
	Domain:      "example.com",
	Email:       "admin@example.com",
	AppPort:     5000,
	ProjectName: "binance_trading",
}

type fixedDetector struct {
	family platform.Family
	calls  int
}

func (d *fixedDetector) Detect() platform.Family {
	d.calls++
	return d.family
}

type fakeResolver struct {
	failures map[string]error
	calls    []string
}

func (r *fakeResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	r.calls = append(r.calls, host)
	if err := r.failures[host]; err != nil {
		return nil, err
	}
	return []string{"203.0.113.10"}, nil
}

// fakeIssuer stores a generated certificate the way certbot would.
type fakeIssuer struct {
	t     *testing.T
	store *ssl.Store
	names []string
	err   error
	calls []string
}

func (f *fakeIssuer) Name() string         { return "certbot" }
func (f *fakeIssuer) RenewCommand() string { return "certbot renew --quiet" }

func (f *fakeIssuer) Issue(ctx context.Context, domain, email string) (*ssl.Cert, error) {
	f.calls = append(f.calls, domain+" "+email)
	if f.err != nil {
		return nil, f.err
	}
	names := f.names
	if names == nil {
		names = []string{domain, "www." + domain}
	}
	chain := selfSigned(f.t, time.Now().Add(90*24*time.Hour), names...)
	return f.store.Save(domain, chain, []byte("key"))
}

func scenarioExpiry() time.Time {
	return time.Now().Add(60 * 24 * time.Hour)
}

func selfSigned(t *testing.T, notAfter time.Time, names ...string) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: names[0]},
		DNSNames:     names,
		NotBefore:    notAfter.Add(-90 * 24 * time.Hour),
		NotAfter:     notAfter,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

// harness wires real components to in-memory fakes of the host.
type harness struct {
	t         *testing.T
	installed map[string]bool
	pkg       *executor.MockExecutor // package manager and version queries
	cron      *executor.MockExecutor
	crontab   []byte
	mem       *hostfs.MemFS
	drv       *driver.MockDriver
	store     *ssl.Store
	issuer    *fakeIssuer
	detector  *fixedDetector
	resolver  *fakeResolver
	registry  *registry.Registry
	euid      int
	answers   []bool
	questions []string
	opts      Options
}

func newHarness(t *testing.T, family platform.Family, installed ...string) *harness {
	h := &harness{
		t:         t,
		installed: map[string]bool{},
		mem:       hostfs.NewMemFS(),
		detector:  &fixedDetector{family: family},
		resolver:  &fakeResolver{failures: map[string]error{}},
		euid:      1000,
		opts:      Options{AssumeYes: true},
	}
	for _, name := range installed {
		h.installed[name] = true
	}

	h.pkg = &executor.MockExecutor{
		LookPathFunc: func(file string) (string, error) {
			if h.installed[file] {
				return "/usr/sbin/" + file, nil
			}
			return "", errors.New("not found")
		},
		ExecuteFunc: func(name string, args ...string) ([]byte, error) {
			switch name {
			case "nginx":
				return []byte("nginx version: nginx/1.24.0\n"), nil
			case "certbot":
				return []byte("certbot 2.9.0\n"), nil
			}
			for _, a := range args {
				if a == "nginx" || a == "certbot" {
					h.installed[a] = true
				}
			}
			return nil, nil
		},
	}

	h.cron = &executor.MockExecutor{}
	h.cron.ExecuteFunc = func(name string, args ...string) ([]byte, error) {
		if len(args) == 1 && args[0] == "-l" {
			if h.crontab == nil {
				return []byte("no crontab for root"), errors.New("exit status 1")
			}
			return h.crontab, nil
		}
		if len(args) == 1 && args[0] == "-" {
			h.crontab = h.cron.Calls[len(h.cron.Calls)-1].Input
		}
		return nil, nil
	}

	h.drv = driver.NewMockDriver(family.SitePaths())
	h.store = ssl.NewStore("", h.mem)
	h.issuer = &fakeIssuer{t: t, store: h.store}
	h.registry = registry.New(h.mem, stateDir)
	return h
}

func (h *harness) deps() Deps {
	return Deps{
		Detector: h.detector,
		Host: func(family platform.Family) (*Host, error) {
			return &Host{
				Installer: installer.New(family, h.pkg, h.pkg),
				Sites:     site.NewWriter(h.drv, h.store, "/var/www/certbot"),
				Proxy:     h.drv,
			}, nil
		},
		Issuer:    h.issuer,
		Certs:     h.store,
		Scheduler: renewal.NewScheduler(h.mem, h.cron, renewal.Options{RenewCommand: h.issuer.RenewCommand()}),
		Resolver:  h.resolver,
		Records:   h.registry,
		Euid:      func() int { return h.euid },
		Confirm: func(q string) bool {
			h.questions = append(h.questions, q)
			if len(h.answers) == 0 {
				return false
			}
			a := h.answers[0]
			h.answers = h.answers[1:]
			return a
		},
	}
}

func (h *harness) run() (*Report, error) {
	return New(h.deps(), h.opts).Run(context.Background(), scenarioRequest)
}

func (h *harness) installCalls() int {
	return h.pkg.Count("apt-get") + h.pkg.Count("yum") + h.pkg.Count("dnf")
}
