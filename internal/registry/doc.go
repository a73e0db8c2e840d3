// Package registry records what provisioning runs have done to each domain.
//
// Records live in a single YAML file, by default
// ~/.local/state/provision/sites.yaml, keyed by domain. The orchestrator
// updates a record after every state transition, so a run that aborts
// halfway still leaves the last reached state behind.
//
// Example sites.yaml:
//
//	sites:
//	  example.com:
//	    email: admin@example.com
//	    app_port: 5000
//	    project_name: binance_trading
//	    family: debian
//	    issuer: certbot
//	    state: Done
//	    run_id: 6f1c...
//	    config_path: /etc/nginx/sites-available/example.com
//	    cert_path: /etc/letsencrypt/live/example.com/fullchain.pem
//	    key_path: /etc/letsencrypt/live/example.com/privkey.pem
//	    script_path: /usr/local/bin/renew-ssl-binance_trading.sh
//	    created_at: 2026-10-16T10:00:00Z
//	    updated_at: 2026-10-16T10:03:12Z
//
// The file is replaced atomically on Save. Registry is not safe for
// concurrent use, and concurrent runs against one host are unsupported.
package registry
