package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/ksyq12/provision/internal/platform"
	"github.com/ksyq12/provision/internal/registry"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. PROVISION_APP_PORT.
const EnvPrefix = "PROVISION"

// Issuer names accepted by acme.issuer.
const (
	IssuerCertbot = "certbot"
	IssuerLego    = "lego"
)

// Config is the effective configuration of a run.
type Config struct {
	AppPort     int    `mapstructure:"app_port"`
	ProjectName string `mapstructure:"project_name"`
	StateDir    string `mapstructure:"state_dir"`
	UseSudo     bool   `mapstructure:"use_sudo"`
	AllowRoot   bool   `mapstructure:"allow_root"`

	Nginx   NginxConfig   `mapstructure:"nginx"`
	ACME    ACMEConfig    `mapstructure:"acme"`
	Renewal RenewalConfig `mapstructure:"renewal"`

	// File is the config file that was read, empty when none was found.
	File string
}

// NginxConfig overrides the site layout of the detected platform family.
type NginxConfig struct {
	SitesAvailable string `mapstructure:"sites_available"`
	SitesEnabled   string `mapstructure:"sites_enabled"`
}

// ACMEConfig selects and configures the certificate issuer.
type ACMEConfig struct {
	Issuer       string `mapstructure:"issuer"`
	Root         string `mapstructure:"root"`
	Webroot      string `mapstructure:"webroot"`
	DirectoryURL string `mapstructure:"directory_url"`
}

// RenewalConfig controls the renewal script and its cron entry.
type RenewalConfig struct {
	BinRoot  string `mapstructure:"bin_root"`
	LogPath  string `mapstructure:"log_path"`
	Schedule string `mapstructure:"schedule"`
}

// flagKeys maps command-line flags to the config keys they override.
var flagKeys = map[string]string{
	"port":    "app_port",
	"project": "project_name",
	"issuer":  "acme.issuer",
}

var projectNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Load builds the configuration from defaults, the config file, a .env
// file in the working directory, PROVISION_* environment variables and
// finally any flags in flags that were set explicitly.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	path, err := findConfigFile(cfgFile)
	if err != nil {
		return nil, err
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// .env only fills variables that are not already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind --%s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = path

	if cfg.StateDir == "" {
		if cfg.StateDir, err = registry.DefaultDir(); err != nil {
			return nil, err
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_port", 5000)
	v.SetDefault("project_name", "binance_trading")
	v.SetDefault("state_dir", "")
	v.SetDefault("use_sudo", true)
	v.SetDefault("allow_root", false)

	v.SetDefault("nginx.sites_available", "")
	v.SetDefault("nginx.sites_enabled", "")

	v.SetDefault("acme.issuer", IssuerCertbot)
	v.SetDefault("acme.root", "/etc/letsencrypt")
	v.SetDefault("acme.webroot", "/var/www/certbot")
	v.SetDefault("acme.directory_url", "https://acme-v02.api.letsencrypt.org/directory")

	v.SetDefault("renewal.bin_root", "/usr/local/bin")
	v.SetDefault("renewal.log_path", "/var/log/ssl-renewal.log")
	v.SetDefault("renewal.schedule", "0 12 * * *")
}

// SearchPaths returns the config files tried, in order, when --config is not given.
func SearchPaths() []string {
	paths := []string{"provision.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "provision", "config.yaml"))
	}
	return append(paths, "/etc/provision/config.yaml")
}

// findConfigFile returns explicit when set (it must exist), else the first
// existing search path, else "".
func findConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("error reading config file: %w", err)
		}
		return explicit, nil
	}
	for _, p := range SearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

func validate(cfg *Config) error {
	if cfg.AppPort < 1 || cfg.AppPort > 65535 {
		return fmt.Errorf("invalid app port: %d", cfg.AppPort)
	}

	if !projectNamePattern.MatchString(cfg.ProjectName) {
		return fmt.Errorf("invalid project name %q: use letters, digits, '_' or '-'", cfg.ProjectName)
	}

	switch cfg.ACME.Issuer {
	case IssuerCertbot, IssuerLego:
	default:
		return fmt.Errorf("unknown acme issuer %q", cfg.ACME.Issuer)
	}

	for key, p := range map[string]string{
		"acme.root":             cfg.ACME.Root,
		"acme.webroot":          cfg.ACME.Webroot,
		"renewal.bin_root":      cfg.Renewal.BinRoot,
		"renewal.log_path":      cfg.Renewal.LogPath,
		"nginx.sites_available": cfg.Nginx.SitesAvailable,
		"nginx.sites_enabled":   cfg.Nginx.SitesEnabled,
	} {
		if p != "" && !filepath.IsAbs(p) {
			return fmt.Errorf("%s must be an absolute path: %s", key, p)
		}
	}

	if cfg.ACME.Root == "" || cfg.ACME.Webroot == "" || cfg.Renewal.BinRoot == "" || cfg.Renewal.LogPath == "" {
		return fmt.Errorf("acme and renewal paths must not be empty")
	}

	if cfg.Nginx.SitesEnabled != "" && cfg.Nginx.SitesAvailable == "" {
		return fmt.Errorf("nginx.sites_enabled requires nginx.sites_available")
	}

	if len(strings.Fields(cfg.Renewal.Schedule)) != 5 {
		return fmt.Errorf("renewal schedule must have five cron fields: %q", cfg.Renewal.Schedule)
	}

	return nil
}

// SitePaths returns the family's default NGINX layout with any configured
// overrides applied.
func (c *Config) SitePaths(family platform.Family) platform.SitePaths {
	paths := family.SitePaths()
	if c.Nginx.SitesAvailable != "" {
		paths.Available = c.Nginx.SitesAvailable
		paths.Enabled = c.Nginx.SitesAvailable
		if c.Nginx.SitesEnabled != "" {
			paths.Enabled = c.Nginx.SitesEnabled
		}
	}
	return paths
}
