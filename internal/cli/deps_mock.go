package cli

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/ksyq12/provision/internal/config"
	"github.com/ksyq12/provision/internal/executor"
	"github.com/ksyq12/provision/internal/hostfs"
	"github.com/ksyq12/provision/internal/input"
	"github.com/ksyq12/provision/internal/ssl"
	"github.com/spf13/pflag"
)

// NewMockConfig returns the default configuration with sudo disabled, so
// host writes land directly in the mock filesystem.
func NewMockConfig() *config.Config {
	return &config.Config{
		AppPort:     5000,
		ProjectName: "binance_trading",
		StateDir:    "/home/deploy/.local/state/provision",
		ACME: config.ACMEConfig{
			Issuer:  config.IssuerCertbot,
			Root:    ssl.DefaultRoot,
			Webroot: "/var/www/certbot",
		},
		Renewal: config.RenewalConfig{
			BinRoot:  "/usr/local/bin",
			LogPath:  "/var/log/ssl-renewal.log",
			Schedule: "0 12 * * *",
		},
	}
}

// MockConfigLoader is a test double for ConfigLoader. Like the real loader
// it lets --port, --project and --issuer override the config.
type MockConfigLoader struct {
	Cfg     *config.Config
	LoadErr error
	Calls   int
}

func (m *MockConfigLoader) Load(cfgFile string, flags *pflag.FlagSet) (*config.Config, error) {
	m.Calls++
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if m.Cfg == nil {
		m.Cfg = NewMockConfig()
	}
	cfg := *m.Cfg
	if flags != nil {
		if flags.Changed("port") {
			cfg.AppPort, _ = flags.GetInt("port")
		}
		if flags.Changed("project") {
			cfg.ProjectName, _ = flags.GetString("project")
		}
		if flags.Changed("issuer") {
			cfg.ACME.Issuer, _ = flags.GetString("issuer")
		}
	}
	return &cfg, nil
}

// MockIssuer is a test double for ssl.Issuer. When Chain is set, Issue
// stores it the way a real issuer would.
type MockIssuer struct {
	NameValue string
	Store     *ssl.Store
	Chain     []byte
	Err       error
	Calls     []string
}

func (m *MockIssuer) Name() string {
	if m.NameValue == "" {
		return config.IssuerCertbot
	}
	return m.NameValue
}

func (m *MockIssuer) RenewCommand() string {
	return "certbot renew --quiet"
}

func (m *MockIssuer) Issue(ctx context.Context, domain, email string) (*ssl.Cert, error) {
	m.Calls = append(m.Calls, domain+" "+email)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Chain != nil {
		return m.Store.Save(domain, m.Chain, []byte("key"))
	}
	return m.Store.Paths(domain), nil
}

// MockIssuerFactory is a test double for IssuerFactory
type MockIssuerFactory struct {
	Issuer *MockIssuer
	Err    error
	Names  []string
	Params IssuerParams
}

func (m *MockIssuerFactory) Create(name string, p IssuerParams) (ssl.Issuer, error) {
	m.Names = append(m.Names, name)
	m.Params = p
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Issuer == nil {
		m.Issuer = &MockIssuer{}
	}
	m.Issuer.Store = p.Store
	return m.Issuer, nil
}

// MockResolver is a test double for provision.Resolver. Every name
// resolves unless it has an entry in Failures.
type MockResolver struct {
	Failures map[string]error
	Calls    []string
}

func (m *MockResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	m.Calls = append(m.Calls, host)
	if err := m.Failures[host]; err != nil {
		return nil, err
	}
	return []string{"203.0.113.10"}, nil
}

// MockHost simulates the commands of a Debian host: package installs make
// binaries appear, systemctl tracks whether nginx runs and crontab keeps
// one table.
type MockHost struct {
	Exec      *executor.MockExecutor
	Installed map[string]bool
	Active    bool
	Crontab   []byte
	// NginxTestErr makes "nginx -t" fail with this output.
	NginxTestErr string
}

// NewMockHost creates a MockHost with the given binaries installed.
func NewMockHost(installed ...string) *MockHost {
	h := &MockHost{Installed: map[string]bool{"apt-get": true}}
	for _, b := range installed {
		h.Installed[b] = true
	}
	h.Exec = &executor.MockExecutor{
		LookPathFunc: h.lookPath,
		ExecuteFunc:  h.execute,
	}
	return h
}

func (h *MockHost) lookPath(file string) (string, error) {
	if h.Installed[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

func (h *MockHost) execute(name string, args ...string) ([]byte, error) {
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	switch {
	case line == "nginx -v":
		return []byte("nginx version: nginx/1.24.0 (Ubuntu)\n"), nil
	case line == "certbot --version":
		return []byte("certbot 2.9.0\n"), nil
	case line == "nginx -t":
		if h.NginxTestErr != "" {
			return []byte(h.NginxTestErr), errors.New("exit status 1")
		}
		return []byte("nginx: configuration file /etc/nginx/nginx.conf test is successful\n"), nil
	case line == "systemctl is-active --quiet nginx":
		if h.Active {
			return nil, nil
		}
		return nil, errors.New("exit status 3")
	case line == "systemctl start nginx":
		h.Active = true
		return nil, nil
	case line == "crontab -l":
		if h.Crontab == nil {
			return []byte("no crontab for deploy\n"), errors.New("exit status 1")
		}
		return h.Crontab, nil
	case line == "crontab -":
		h.Crontab = h.Exec.Calls[len(h.Exec.Calls)-1].Input
		return nil, nil
	case strings.HasPrefix(line, "apt-get install"):
		for _, pkg := range args {
			switch pkg {
			case "nginx":
				h.Installed["nginx"] = true
			case "certbot":
				h.Installed["certbot"] = true
			}
		}
		return nil, nil
	}
	return nil, nil
}

// MockDependenciesBuilder helps create mock dependencies for tests
type MockDependenciesBuilder struct {
	deps *Dependencies
}

// NewMockDeps creates a new MockDependenciesBuilder with sensible defaults
func NewMockDeps() *MockDependenciesBuilder {
	return &MockDependenciesBuilder{
		deps: &Dependencies{
			ConfigLoader:  &MockConfigLoader{Cfg: NewMockConfig()},
			Executor:      NewMockHost("nginx", "certbot").Exec,
			FS:            hostfs.NewMemFS(),
			IssuerFactory: &MockIssuerFactory{},
			Resolver:      &MockResolver{},
			Confirmer: func(assumeYes bool, w io.Writer) input.ConfirmFunc {
				return input.Always(true)
			},
			Euid:       func() int { return 1000 },
			Executable: func() (string, error) { return "/usr/local/bin/provision", nil },
		},
	}
}

// WithConfig sets the config for the mock
func (b *MockDependenciesBuilder) WithConfig(cfg *config.Config) *MockDependenciesBuilder {
	b.deps.ConfigLoader = &MockConfigLoader{Cfg: cfg}
	return b
}

// WithConfigLoader sets a custom config loader
func (b *MockDependenciesBuilder) WithConfigLoader(loader ConfigLoader) *MockDependenciesBuilder {
	b.deps.ConfigLoader = loader
	return b
}

// WithHost sets the simulated host commands
func (b *MockDependenciesBuilder) WithHost(h *MockHost) *MockDependenciesBuilder {
	b.deps.Executor = h.Exec
	return b
}

// WithFS sets the filesystem
func (b *MockDependenciesBuilder) WithFS(fsys hostfs.FS) *MockDependenciesBuilder {
	b.deps.FS = fsys
	return b
}

// WithIssuer sets the issuer every factory call returns
func (b *MockDependenciesBuilder) WithIssuer(issuer *MockIssuer) *MockDependenciesBuilder {
	b.deps.IssuerFactory = &MockIssuerFactory{Issuer: issuer}
	return b
}

// WithResolver sets the DNS resolver
func (b *MockDependenciesBuilder) WithResolver(r *MockResolver) *MockDependenciesBuilder {
	b.deps.Resolver = r
	return b
}

// WithAnswers makes every confirmation answer the given value, ignoring --yes
func (b *MockDependenciesBuilder) WithAnswers(answer bool) *MockDependenciesBuilder {
	b.deps.Confirmer = func(bool, io.Writer) input.ConfirmFunc { return input.Always(answer) }
	return b
}

// WithStdinInput answers confirmations from input unless --yes was given
func (b *MockDependenciesBuilder) WithStdinInput(inputs ...string) *MockDependenciesBuilder {
	b.deps.Confirmer = func(assumeYes bool, w io.Writer) input.ConfirmFunc {
		if assumeYes {
			return input.Always(true)
		}
		return input.Prompt(input.NewStringReader(inputs...), w)
	}
	return b
}

// WithEuid sets the effective user ID
func (b *MockDependenciesBuilder) WithEuid(euid int) *MockDependenciesBuilder {
	b.deps.Euid = func() int { return euid }
	return b
}

// Build returns the configured Dependencies
func (b *MockDependenciesBuilder) Build() *Dependencies {
	return b.deps
}

// TestHelper provides utilities for CLI tests
type TestHelper struct {
	T interface {
		Helper()
		Cleanup(func())
	}
	OldDeps    *Dependencies
	Host       *MockHost
	FS         *hostfs.MemFS
	Issuer     *MockIssuer
	Resolver   *MockResolver
	MockConfig *MockConfigLoader
}

// NewTestHelper installs mock dependencies on a simulated Debian host with
// the given binaries present, and restores the real ones on cleanup.
func NewTestHelper(t interface {
	Helper()
	Cleanup(func())
}, installed ...string) *TestHelper {
	t.Helper()

	helper := &TestHelper{
		T:          t,
		OldDeps:    deps,
		Host:       NewMockHost(installed...),
		FS:         hostfs.NewMemFS(),
		Issuer:     &MockIssuer{},
		Resolver:   &MockResolver{},
		MockConfig: &MockConfigLoader{Cfg: NewMockConfig()},
	}

	deps = NewMockDeps().
		WithConfigLoader(helper.MockConfig).
		WithHost(helper.Host).
		WithFS(helper.FS).
		WithIssuer(helper.Issuer).
		WithResolver(helper.Resolver).
		Build()

	// Cleanup function to restore original deps
	t.Cleanup(func() {
		deps = helper.OldDeps
	})

	return helper
}

// SetEuid sets the effective user ID seen by the commands
func (h *TestHelper) SetEuid(euid int) {
	deps.Euid = func() int { return euid }
}

// SetStdinInput sets the answers typed at confirmation prompts
func (h *TestHelper) SetStdinInput(inputs ...string) {
	deps.Confirmer = NewMockDeps().WithStdinInput(inputs...).Build().Confirmer
}

// GetConfig returns the current mock config
func (h *TestHelper) GetConfig() *config.Config {
	return h.MockConfig.Cfg
}
