package template

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed nginx/*.tmpl
var nginxTemplates embed.FS

// Stage is the lifecycle stage of a site config.
type Stage string

// Site config stages. Final always replaces bootstrap at the same path.
const (
	StageBootstrap Stage = "bootstrap"
	StageFinal     Stage = "final"
)

// TLS policy and proxy constants embedded in every final config.
const (
	TLSProtocols = "TLSv1.2 TLSv1.3"
	TLSCiphers   = "ECDHE-ECDSA-AES128-GCM-SHA256:ECDHE-RSA-AES128-GCM-SHA256:ECDHE-ECDSA-AES256-GCM-SHA384:ECDHE-RSA-AES256-GCM-SHA384:ECDHE-ECDSA-CHACHA20-POLY1305:ECDHE-RSA-CHACHA20-POLY1305"
	ProxyTimeout = "60s"
)

// Header is a response header added to every HTTPS response.
type Header struct {
	Name  string
	Value string
}

// SecurityHeaders is the fixed header set of the final config.
var SecurityHeaders = []Header{
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"X-Frame-Options", "SAMEORIGIN"},
	{"X-Content-Type-Options", "nosniff"},
	{"X-XSS-Protection", "1; mode=block"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
}

// StaticExtensions get long-lived cache headers.
var StaticExtensions = []string{"js", "css", "png", "jpg", "jpeg", "gif", "ico", "svg", "woff", "woff2"}

// Site holds the per-domain values of a site config.
type Site struct {
	Domain   string
	AppPort  int
	Webroot  string
	CertPath string
	KeyPath  string
}

// TemplateData contains data for rendering templates
type TemplateData struct {
	Site
	ServerNames      string
	Upstream         string
	TLSProtocols     string
	TLSCiphers       string
	ProxyTimeout     string
	SecurityHeaders  []Header
	StaticExtensions []string
}

// Render renders the site config for stage
func Render(stage Stage, site Site) (string, error) {
	if site.Domain == "" {
		return "", fmt.Errorf("domain is required")
	}
	if stage == StageFinal && (site.CertPath == "" || site.KeyPath == "") {
		return "", fmt.Errorf("final config for %s needs certificate and key paths", site.Domain)
	}

	content, err := nginxTemplates.ReadFile(fmt.Sprintf("nginx/%s.tmpl", stage))
	if err != nil {
		return "", fmt.Errorf("template not found: nginx/%s", stage)
	}

	funcMap := template.FuncMap{
		"join": strings.Join,
	}

	tmpl, err := template.New(string(stage)).Funcs(funcMap).Parse(string(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	data := TemplateData{
		Site:             site,
		ServerNames:      strings.Join(ServerNames(site.Domain), " "),
		Upstream:         fmt.Sprintf("http://127.0.0.1:%d", site.AppPort),
		TLSProtocols:     TLSProtocols,
		TLSCiphers:       TLSCiphers,
		ProxyTimeout:     ProxyTimeout,
		SecurityHeaders:  SecurityHeaders,
		StaticExtensions: StaticExtensions,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}

	return buf.String(), nil
}

// ServerNames returns the primary and www host names for domain.
func ServerNames(domain string) []string {
	return []string{domain, "www." + domain}
}
