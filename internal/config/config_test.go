package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ksyq12/provision/internal/platform"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty working directory with an empty HOME
// so no real config or .env leaks in.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.AppPort)
	assert.Equal(t, "binance_trading", cfg.ProjectName)
	assert.True(t, cfg.UseSudo)
	assert.False(t, cfg.AllowRoot)
	assert.Equal(t, IssuerCertbot, cfg.ACME.Issuer)
	assert.Equal(t, "/etc/letsencrypt", cfg.ACME.Root)
	assert.Equal(t, "/var/www/certbot", cfg.ACME.Webroot)
	assert.Contains(t, cfg.ACME.DirectoryURL, "letsencrypt.org")
	assert.Equal(t, "/usr/local/bin", cfg.Renewal.BinRoot)
	assert.Equal(t, "/var/log/ssl-renewal.log", cfg.Renewal.LogPath)
	assert.Equal(t, "0 12 * * *", cfg.Renewal.Schedule)
	assert.Equal(t, filepath.Join(home, ".local", "state", "provision"), cfg.StateDir)
	assert.Empty(t, cfg.File)
}

func TestLoad_ConfigFileSearch(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".config", "provision", "config.yaml"), "app_port: 8000\n")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.AppPort)

	// ./provision.yaml wins over the home config
	writeFile(t, "provision.yaml", "app_port: 9000\nacme:\n  issuer: lego\n")
	cfg, err = Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.AppPort)
	assert.Equal(t, IssuerLego, cfg.ACME.Issuer)
	assert.Equal(t, "provision.yaml", cfg.File)
}

func TestLoad_ExplicitFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	writeFile(t, path, "project_name: shop\nnginx:\n  sites_available: /opt/nginx/sites\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "shop", cfg.ProjectName)
	assert.Equal(t, "/opt/nginx/sites", cfg.Nginx.SitesAvailable)

	_, err = Load(filepath.Join(dir, "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestLoad_EnvAndDotEnv(t *testing.T) {
	isolate(t)
	writeFile(t, ".env", "PROVISION_PROJECT_NAME=from_dotenv\nPROVISION_APP_PORT=7000\n")
	t.Setenv("PROVISION_APP_PORT", "6000")
	t.Setenv("PROVISION_ACME_WEBROOT", "/srv/acme")
	t.Setenv("PROVISION_USE_SUDO", "false")
	t.Cleanup(func() { os.Unsetenv("PROVISION_PROJECT_NAME") })

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.AppPort, "real environment beats .env")
	assert.Equal(t, "from_dotenv", cfg.ProjectName)
	assert.Equal(t, "/srv/acme", cfg.ACME.Webroot)
	assert.False(t, cfg.UseSudo)
}

func TestLoad_FlagsOverride(t *testing.T) {
	isolate(t)
	writeFile(t, "provision.yaml", "app_port: 9000\nproject_name: fromfile\n")

	flags := pflag.NewFlagSet("provision", pflag.ContinueOnError)
	flags.Int("port", 5000, "")
	flags.String("project", "binance_trading", "")
	flags.String("issuer", "certbot", "")
	require.NoError(t, flags.Parse([]string{"--port", "3000"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.AppPort, "set flag wins")
	assert.Equal(t, "fromfile", cfg.ProjectName, "unset flag does not mask the file")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"port out of range", "app_port: 70000\n"},
		{"bad project", "project_name: \"my project\"\n"},
		{"unknown issuer", "acme:\n  issuer: acme.sh\n"},
		{"relative webroot", "acme:\n  webroot: www\n"},
		{"enabled without available", "nginx:\n  sites_enabled: /etc/nginx/sites-enabled\n"},
		{"short schedule", "renewal:\n  schedule: \"0 12 *\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			writeFile(t, "provision.yaml", tt.content)

			_, err := Load("", nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestSitePaths(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, platform.Debian.SitePaths(), cfg.SitePaths(platform.Debian))
	assert.Equal(t, platform.RHEL.SitePaths(), cfg.SitePaths(platform.RHEL))

	cfg.Nginx.SitesAvailable = "/opt/nginx/conf.d"
	p := cfg.SitePaths(platform.Debian)
	assert.Equal(t, "/opt/nginx/conf.d", p.Available)
	assert.False(t, p.UsesLinks())

	cfg.Nginx.SitesEnabled = "/opt/nginx/enabled"
	p = cfg.SitePaths(platform.Debian)
	assert.True(t, p.UsesLinks())
	assert.Equal(t, "/opt/nginx/enabled", p.Enabled)
}
