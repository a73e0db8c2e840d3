package cli

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/ksyq12/provision/internal/config"
	"github.com/ksyq12/provision/internal/output"
	"github.com/ksyq12/provision/internal/platform"
	"github.com/ksyq12/provision/internal/provision"
	"github.com/spf13/cobra"
)

var (
	appPort     int
	projectName string
	issuerName  string
	assumeYes   bool
	dryRun      bool
)

func init() {
	rootCmd.Flags().IntVarP(&appPort, "port", "p", 5000, "Local port of the application to proxy to")
	rootCmd.Flags().StringVar(&projectName, "project", "binance_trading", "Project name used for the renewal script")
	rootCmd.Flags().StringVar(&issuerName, "issuer", config.IssuerCertbot, "Certificate issuer: certbot or lego")
	rootCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Answer yes to every confirmation")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without changing the host")
}

func runProvision(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	req, err := provision.ParseArgs(args, cfg.AppPort, cfg.ProjectName)
	if err != nil {
		return err
	}

	orch, err := newOrchestrator(cfg, req)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dryRun {
		plan, err := orch.Plan(ctx, req)
		if err != nil {
			return err
		}
		if jsonOutput {
			return output.JSON(plan)
		}
		displayPlan(plan)
		return nil
	}

	report, err := orch.Run(ctx, req)
	if report == nil {
		return err
	}
	if jsonOutput {
		if jerr := output.JSON(report); jerr != nil {
			return jerr
		}
		if err != nil {
			return printedError{err}
		}
		return nil
	}

	if err != nil {
		output.Failure(err)
		displayReport(report)
		return printedError{err}
	}
	output.Success("%s is served over HTTPS", req.Domain)
	displayReport(report)
	return nil
}

// newOrchestrator wires the real host capabilities for req.
func newOrchestrator(cfg *config.Config, req provision.Request) (*provision.Orchestrator, error) {
	h := newHost(cfg)

	renewCmd, scriptDomain := "", ""
	if cfg.ACME.Issuer == config.IssuerLego {
		scriptDomain = req.Domain
		var err error
		if renewCmd, err = legoRenewCommand(cfg, req); err != nil {
			return nil, err
		}
	}
	issuer, err := h.issuer(renewCmd)
	if err != nil {
		return nil, err
	}

	reg, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}

	opts := provision.Options{
		AssumeYes:  assumeYes,
		AllowRoot:  cfg.AllowRoot,
		Components: components(cfg.ACME.Issuer),
	}
	if !jsonOutput {
		opts.OnPhase = output.Phase
	}

	return provision.New(provision.Deps{
		Detector:  platform.NewDetector(h.exec),
		Host:      h.hostFactory(),
		Issuer:    issuer,
		Certs:     h.store,
		Scheduler: h.scheduler(issuer.RenewCommand(), scriptDomain),
		Resolver:  deps.Resolver,
		Records:   reg,
		Confirm:   deps.Confirmer(assumeYes, os.Stderr),
		Euid:      deps.Euid,
	}, opts), nil
}

func displayReport(r *provision.Report) {
	output.Print("")
	pairs := [][2]string{
		{"State", r.State.String()},
		{"Platform", r.Family.String()},
	}
	if len(r.Path) > 1 && r.State == provision.Aborted {
		pairs = append(pairs, [2]string{"Last state", r.Path[len(r.Path)-2].String()})
	}
	if len(r.Components) > 0 {
		items := make([]string, 0, len(r.Components))
		for _, c := range r.Components {
			item := c.Name
			if c.Version != "" {
				item += " " + c.Version
			}
			items = append(items, fmt.Sprintf("%s (%s)", item, c.Status))
		}
		pairs = append(pairs, [2]string{"Components", strings.Join(items, ", ")})
	}
	if r.Final != nil {
		pairs = append(pairs, [2]string{"Config", r.Final.Path})
	} else if r.Bootstrap != nil {
		pairs = append(pairs, [2]string{"Config", r.Bootstrap.Path + " (bootstrap)"})
	}
	if c := r.Certificate; c != nil {
		cert := c.CertPath
		if !c.NotAfter.IsZero() {
			cert += fmt.Sprintf(" (expires %s)", c.NotAfter.Format("2006-01-02"))
		}
		if r.CertificateReused {
			cert += ", reused"
		}
		pairs = append(pairs, [2]string{"Certificate", cert})
	}
	if j := r.Renewal; j != nil {
		pairs = append(pairs, [2]string{"Renewal", j.CronLine})
	}
	pairs = append(pairs, [2]string{"Run", r.RunID})
	output.Fields(pairs...)

	for _, w := range r.Warnings {
		output.Warn("%s", w)
	}
}

func displayPlan(p *provision.Plan) {
	output.Info("Dry run for %s: nothing was changed", p.Request.Domain)
	output.Print("")

	cert := "will be requested from " + p.Issuer
	if p.CertificateReusable {
		cert = "valid certificate present, reused"
	}
	output.Fields(
		[2]string{"Platform", p.Family.String()},
		[2]string{"Config", p.ConfigPath},
		[2]string{"Certificate", cert},
		[2]string{"Cert path", p.CertPath},
		[2]string{"Key path", p.KeyPath},
		[2]string{"Script", p.ScriptPath},
		[2]string{"Cron", p.CronLine},
	)

	if len(p.Install) > 0 {
		output.Print("")
		output.Print("Install:")
		names := make([]string, 0, len(p.Install))
		for name := range p.Install {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for _, line := range p.Install[name] {
				output.Print("  %s", line)
			}
		}
	}

	for _, w := range p.Warnings {
		output.Warn("%s", w)
	}

	if p.Bootstrap != "" {
		output.Print("")
		output.Print("# bootstrap config")
		output.Print("%s", strings.TrimRight(p.Bootstrap, "\n"))
	}
	output.Print("")
	output.Print("# final config")
	output.Print("%s", strings.TrimRight(p.Final, "\n"))
}
