package cli

import (
	"fmt"
	"os"

	"github.com/ksyq12/provision/internal/errors"
	"github.com/ksyq12/provision/internal/logger"
	"github.com/spf13/cobra"
)

var (
	jsonOutput bool
	verbose    bool
	cfgFile    string
	version    = "dev"
)

// rootCmd represents the base command. Invoked with a domain and an email
// it provisions the host; the subcommands inspect and maintain the result.
var rootCmd = &cobra.Command{
	Use:   "provision <domain> <email>",
	Short: "Provision NGINX with a Let's Encrypt certificate",
	Long: `provision turns a fresh Linux host into an HTTPS reverse proxy for a local
application.

It installs NGINX and certbot, serves the ACME challenge over HTTP, obtains one
certificate for the domain and its www alias, switches the site to HTTPS and
installs a daily renewal job. Every step is idempotent, so a rerun only repairs
what is missing.

Examples:
  provision example.com admin@example.com
  provision example.com admin@example.com --port 8080 --project shop --yes
  provision example.com admin@example.com --dry-run`,
	Args:          exactArgs(2),
	RunE:          runProvision,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() {
	if err := execute(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// execute runs the command tree with args and reports any error.
func execute(args []string) error {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err != nil {
		reportError(err)
	}
	return err
}

// SetVersion sets the version string for the CLI
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// exactArgs rejects any other argument count as invalid arguments, before
// configuration is read or anything on the host is touched.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return errors.InvalidArguments(fmt.Sprintf("expected %d arguments (domain, email), got %d", n, len(args)))
		}
		return nil
	}
}

func init() {
	// Initialize logger based on verbose flag (parsed by cobra)
	cobra.OnInitialize(func() {
		logger.Init(verbose)
	})

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging for debugging")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./provision.yaml, ~/.config/provision/config.yaml, /etc/provision/config.yaml)")
}
