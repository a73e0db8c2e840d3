package cli

import (
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ksyq12/provision/internal/errors"
	"github.com/ksyq12/provision/internal/output"
	"github.com/ksyq12/provision/internal/registry"
	"github.com/ksyq12/provision/internal/ssl"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:     "status [domain]",
	Aliases: []string{"ls"},
	Short:   "Show provisioned domains",
	Long: `Show the domains provisioned from this account: the state each run reached,
its last error and the expiry of the certificate on disk.

Examples:
  provision status
  provision status example.com
  provision status --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type siteStatus struct {
	Domain      string     `json:"domain"`
	State       string     `json:"state"`
	ProjectName string     `json:"project_name,omitempty"`
	AppPort     int        `json:"app_port,omitempty"`
	Issuer      string     `json:"issuer,omitempty"`
	ConfigPath  string     `json:"config_path,omitempty"`
	CertExpiry  *time.Time `json:"cert_expiry,omitempty"`
	DaysLeft    *int       `json:"days_left,omitempty"`
	CertError   string     `json:"cert_error,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	records := reg.List()
	if len(args) == 1 {
		domain := strings.TrimSuffix(strings.ToLower(args[0]), ".")
		rec, ok := reg.Get(domain)
		if !ok {
			return errors.Wrap(errors.ErrCodeInvalidArguments, fmt.Sprintf("%s has not been provisioned", domain), nil)
		}
		records = []*registry.SiteRecord{rec}
	}

	store := newHost(cfg).store
	now := time.Now()
	items := make([]siteStatus, 0, len(records))
	for _, rec := range records {
		items = append(items, describeSite(rec, store, now))
	}

	if jsonOutput {
		return output.JSON(items)
	}

	if len(items) == 0 {
		output.Info("No domains provisioned yet")
		return nil
	}

	headers := []string{"DOMAIN", "STATE", "PORT", "ISSUER", "CERT EXPIRES", "LAST ERROR"}
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			it.Domain,
			it.State,
			fmt.Sprintf("%d", it.AppPort),
			it.Issuer,
			expiryCell(it),
			truncate(it.LastError, 60),
		})
	}
	output.Table(headers, rows)
	return nil
}

// describeSite merges a record with what the certificate on disk says.
func describeSite(rec *registry.SiteRecord, store *ssl.Store, now time.Time) siteStatus {
	st := siteStatus{
		Domain:      rec.Domain,
		State:       rec.State,
		ProjectName: rec.ProjectName,
		AppPort:     rec.AppPort,
		Issuer:      rec.Issuer,
		ConfigPath:  rec.ConfigPath,
		LastError:   rec.LastError,
		UpdatedAt:   rec.UpdatedAt,
	}

	cert, err := store.Inspect(rec.Domain)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			st.CertError = err.Error()
		}
		return st
	}
	expiry := cert.NotAfter
	days := int(expiry.Sub(now).Hours() / 24)
	st.CertExpiry = &expiry
	st.DaysLeft = &days
	return st
}

func expiryCell(st siteStatus) string {
	switch {
	case st.CertExpiry != nil:
		return fmt.Sprintf("%s (%dd)", st.CertExpiry.Format("2006-01-02"), *st.DaysLeft)
	case st.CertError != "":
		return "unreadable"
	default:
		return "-"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
