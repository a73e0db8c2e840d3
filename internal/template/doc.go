// Package template renders the two NGINX site configs a provisioning run
// installs for a domain.
//
// Templates are embedded in the binary with go:embed:
//
//	nginx/bootstrap.tmpl  HTTP only, serves the ACME challenge path from
//	                      the webroot and redirects everything else to HTTPS
//	nginx/final.tmpl      HTTP redirect plus the HTTPS reverse proxy
//
// Both configs answer for the domain and its www alias, and both live at
// the same path, so writing the final config replaces the bootstrap one.
//
// # Rendering
//
//	site := template.Site{
//	    Domain:   "example.com",
//	    AppPort:  5000,
//	    Webroot:  "/var/www/certbot",
//	    CertPath: "/etc/letsencrypt/live/example.com/fullchain.pem",
//	    KeyPath:  "/etc/letsencrypt/live/example.com/privkey.pem",
//	}
//	content, err := template.Render(template.StageFinal, site)
//
// The final config embeds fixed policy: TLSv1.2/1.3 with an ECDHE-only
// cipher list, the SecurityHeaders set, proxying to 127.0.0.1:<AppPort>
// with forwarded headers and WebSocket upgrade, 60s proxy timeouts, a
// one-year cache rule for StaticExtensions and an unlogged /health route.
//
// # Custom Functions
//
// Templates have access to:
//   - join: strings.Join
package template
