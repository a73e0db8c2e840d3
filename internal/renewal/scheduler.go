// Package renewal installs the periodic certificate renewal job.
//
// The job is a small shell script plus one crontab line. The script runs
// the issuer's renew command quietly, reloads NGINX and appends a
// timestamped line to a log. Registering the same job twice leaves a
// single crontab line.
package renewal

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ksyq12/provision/internal/errors"
	"github.com/ksyq12/provision/internal/executor"
	"github.com/ksyq12/provision/internal/hostfs"
	"github.com/ksyq12/provision/internal/logger"
)

// Defaults for the renewal job layout.
const (
	DefaultBinRoot  = "/usr/local/bin"
	DefaultLogPath  = "/var/log/ssl-renewal.log"
	DefaultSchedule = "0 12 * * *"
)

// Job describes an installed renewal job.
type Job struct {
	ScriptPath string `json:"script_path" yaml:"script_path"`
	LogPath    string `json:"log_path" yaml:"log_path"`
	CronLine   string `json:"cron_line" yaml:"cron_line"`
	// Added is false when an identical crontab line already existed.
	Added bool `json:"added" yaml:"added"`
}

// Options configures a Scheduler. Zero values take the defaults above.
type Options struct {
	BinRoot      string
	LogPath      string
	Schedule     string
	RenewCommand string
	// Domain, when set, keys the script by project and domain. Set it when
	// RenewCommand itself is pinned to a single domain.
	Domain string
}

// Scheduler writes renewal scripts and registers them with cron.
type Scheduler struct {
	fs   hostfs.FS
	cron executor.CommandExecutor
	opts Options
}

// NewScheduler creates a Scheduler. fsys writes the script and cron runs
// crontab. Both are normally privileged so the job lands in root's table,
// since certbot renew and the nginx reload need root.
func NewScheduler(fsys hostfs.FS, cron executor.CommandExecutor, opts Options) *Scheduler {
	if opts.BinRoot == "" {
		opts.BinRoot = DefaultBinRoot
	}
	if opts.LogPath == "" {
		opts.LogPath = DefaultLogPath
	}
	if opts.Schedule == "" {
		opts.Schedule = DefaultSchedule
	}
	if opts.RenewCommand == "" {
		opts.RenewCommand = "certbot renew --quiet"
	}
	return &Scheduler{fs: fsys, cron: cron, opts: opts}
}

// ScriptPath returns where the script for projectName is written.
func (s *Scheduler) ScriptPath(projectName string) string {
	name := projectName
	if s.opts.Domain != "" {
		name += "-" + s.opts.Domain
	}
	return filepath.Join(s.opts.BinRoot, fmt.Sprintf("renew-ssl-%s.sh", name))
}

// Script returns the renewal script content.
func (s *Scheduler) Script() string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	b.WriteString(s.opts.RenewCommand + "\n")
	b.WriteString("systemctl reload nginx\n")
	fmt.Fprintf(&b, "echo \"$(date): SSL certificate renewal check completed\" >> %s\n", s.opts.LogPath)
	return b.String()
}

// CronLine returns the crontab entry for projectName.
func (s *Scheduler) CronLine(projectName string) string {
	return s.opts.Schedule + " " + s.ScriptPath(projectName)
}

// Schedule writes the script and adds its crontab line unless an identical
// line is already present.
func (s *Scheduler) Schedule(projectName string) (*Job, error) {
	if projectName == "" {
		return nil, errors.Scheduling("project name is required", nil)
	}

	job := &Job{
		ScriptPath: s.ScriptPath(projectName),
		LogPath:    s.opts.LogPath,
		CronLine:   s.CronLine(projectName),
	}

	logger.Debug("writing renewal script %s", job.ScriptPath)
	if err := s.fs.WriteFile(job.ScriptPath, []byte(s.Script()), 0755); err != nil {
		return nil, errors.Scheduling("failed to write renewal script", err)
	}

	current, err := s.readCrontab()
	if err != nil {
		return nil, errors.Scheduling("failed to read crontab", err)
	}

	if hasLine(current, job.CronLine) {
		logger.Debug("crontab already contains %q", job.CronLine)
		return job, nil
	}

	if err := s.writeCrontab(appendLine(current, job.CronLine)); err != nil {
		return nil, errors.Scheduling("failed to install crontab", err)
	}
	job.Added = true
	return job, nil
}

// Installed reports whether the crontab contains cronLine.
func (s *Scheduler) Installed(cronLine string) (bool, error) {
	current, err := s.readCrontab()
	if err != nil {
		return false, err
	}
	return hasLine(current, cronLine), nil
}

// readCrontab returns the current table. A user without one is reported
// by crontab as an error mentioning "no crontab"; that is an empty table.
func (s *Scheduler) readCrontab() ([]byte, error) {
	out, err := s.cron.Execute("crontab", "-l")
	if err != nil {
		if strings.Contains(strings.ToLower(string(out)+err.Error()), "no crontab") {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

func (s *Scheduler) writeCrontab(table []byte) error {
	_, err := s.cron.ExecuteInput(table, "crontab", "-")
	return err
}

func hasLine(table []byte, line string) bool {
	for _, l := range strings.Split(string(table), "\n") {
		if strings.TrimSpace(l) == line {
			return true
		}
	}
	return false
}

func appendLine(table []byte, line string) []byte {
	var b bytes.Buffer
	b.Write(table)
	if b.Len() > 0 && !bytes.HasSuffix(table, []byte("\n")) {
		b.WriteByte('\n')
	}
	b.WriteString(line)
	b.WriteByte('\n')
	return b.Bytes()
}
