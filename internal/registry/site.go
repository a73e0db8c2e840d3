package registry

import "time"

// SiteRecord is what the last run against a domain achieved. State is the
// last state reached; after a failure it tells the operator which phase to
// look at before re-running.
type SiteRecord struct {
	Domain      string    `yaml:"-" json:"domain"`
	Email       string    `yaml:"email" json:"email"`
	AppPort     int       `yaml:"app_port" json:"app_port"`
	ProjectName string    `yaml:"project_name" json:"project_name"`
	Family      string    `yaml:"family,omitempty" json:"family,omitempty"`
	Issuer      string    `yaml:"issuer,omitempty" json:"issuer,omitempty"`
	State       string    `yaml:"state" json:"state"`
	Path        []string  `yaml:"path,omitempty" json:"path,omitempty"`
	RunID       string    `yaml:"run_id" json:"run_id"`
	LastError   string    `yaml:"last_error,omitempty" json:"last_error,omitempty"`
	ConfigPath  string    `yaml:"config_path,omitempty" json:"config_path,omitempty"`
	CertPath    string    `yaml:"cert_path,omitempty" json:"cert_path,omitempty"`
	KeyPath     string    `yaml:"key_path,omitempty" json:"key_path,omitempty"`
	CertExpiry  time.Time `yaml:"cert_expiry,omitempty" json:"cert_expiry,omitempty"`
	ScriptPath  string    `yaml:"script_path,omitempty" json:"script_path,omitempty"`
	CronLine    string    `yaml:"cron_line,omitempty" json:"cron_line,omitempty"`
	CreatedAt   time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt   time.Time `yaml:"updated_at" json:"updated_at"`
}

// Failed reports whether the last run ended in a failure.
func (s *SiteRecord) Failed() bool {
	return s.LastError != ""
}
