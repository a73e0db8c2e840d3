// Package config loads the settings of a provisioning run.
//
// Values are layered with viper, lowest precedence first:
//
//  1. built-in defaults
//  2. a YAML config file: --config, else the first of ./provision.yaml,
//     ~/.config/provision/config.yaml, /etc/provision/config.yaml
//  3. a .env file in the working directory (does not override the environment)
//  4. PROVISION_* environment variables, dots replaced by underscores
//  5. explicitly set flags (--port, --project, --issuer)
//
// Example provision.yaml:
//
//	app_port: 5000
//	project_name: binance_trading
//	use_sudo: true
//	nginx:
//	  sites_available: /etc/nginx/sites-available
//	  sites_enabled: /etc/nginx/sites-enabled
//	acme:
//	  issuer: certbot   # or lego
//	  root: /etc/letsencrypt
//	  webroot: /var/www/certbot
//	renewal:
//	  bin_root: /usr/local/bin
//	  log_path: /var/log/ssl-renewal.log
//	  schedule: "0 12 * * *"
//
// Leaving the nginx paths empty uses the detected family's layout.
// The environment variable for acme.issuer is PROVISION_ACME_ISSUER.
package config
