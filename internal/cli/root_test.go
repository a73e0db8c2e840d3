package cli

import (
	"testing"

	"github.com/ksyq12/provision/internal/config"
	"github.com/ksyq12/provision/internal/provision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetVersion(t *testing.T) {
	old := version
	defer SetVersion(old)

	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", version)
	assert.Equal(t, "1.2.3", rootCmd.Version)
}

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"status", "doctor", "renew"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestConfigLoadFailure(t *testing.T) {
	h := NewTestHelper(t)
	h.MockConfig.LoadErr = assert.AnError

	out, err := runCLI(t, "example.com", "admin@example.com")
	require.Error(t, err)
	assert.Contains(t, out, "failed to load config")
	assert.Empty(t, h.Host.Exec.Calls)
}

func TestNewHost_Sudo(t *testing.T) {
	NewTestHelper(t)
	cfg := NewMockConfig()

	h := newHost(cfg)
	assert.Same(t, deps.FS, h.fs, "without use_sudo files are written directly")

	cfg.UseSudo = true
	h = newHost(cfg)
	assert.NotSame(t, deps.FS, h.fs)
	_, _ = h.priv.Execute("nginx", "-t")
	mock := deps.Executor.(interface{ CommandLines() []string })
	assert.Equal(t, []string{"sudo nginx -t"}, mock.CommandLines())

	deps.Euid = func() int { return 0 }
	h = newHost(cfg)
	assert.Same(t, deps.FS, h.fs, "root needs no sudo")
}

func TestComponents(t *testing.T) {
	assert.Len(t, components(config.IssuerCertbot), 2)
	assert.Len(t, components(config.IssuerLego), 1)
}

func TestLegoRenewCommand(t *testing.T) {
	NewTestHelper(t)
	cfg := NewMockConfig()
	req := provision.Request{Domain: "example.com", Email: "admin@example.com"}

	cmd, err := legoRenewCommand(cfg, req)
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/provision renew --quiet --domain example.com --email admin@example.com", cmd)

	cfg.File = "/etc/provision/config.yaml"
	cmd, err = legoRenewCommand(cfg, req)
	require.NoError(t, err)
	assert.Contains(t, cmd, "--config /etc/provision/config.yaml")
}

func TestRealIssuerFactory(t *testing.T) {
	f := &realIssuerFactory{}
	p := IssuerParams{ACME: NewMockConfig().ACME}

	issuer, err := f.Create("certbot", p)
	require.NoError(t, err)
	assert.Equal(t, "certbot", issuer.Name())

	issuer, err = f.Create("lego", p)
	require.NoError(t, err)
	assert.Equal(t, "lego", issuer.Name())

	_, err = f.Create("acme.sh", p)
	assert.Error(t, err)
}
