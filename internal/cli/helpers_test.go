package cli

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/ksyq12/provision/internal/output"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

const (
	availablePath = "/etc/nginx/sites-available/example.com"
	enabledPath   = "/etc/nginx/sites-enabled/example.com"
	certPath      = "/etc/letsencrypt/live/example.com/fullchain.pem"
	scriptPath    = "/usr/local/bin/renew-ssl-binance_trading.sh"
	cronLine      = "0 12 * * * /usr/local/bin/renew-ssl-binance_trading.sh"
	registryPath  = "/home/deploy/.local/state/provision/sites.yaml"
)

// runCLI executes the command tree with args and returns what it printed.
// Flags are reset first because cobra keeps their values between runs.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	var buf bytes.Buffer
	prev := output.SetOutput(&buf)
	defer output.SetOutput(prev)

	err := execute(args)
	return buf.String(), err
}

func resetFlags() {
	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	}
	for _, c := range append([]*cobra.Command{rootCmd}, rootCmd.Commands()...) {
		reset(c.Flags())
		reset(c.PersistentFlags())
	}
}

// selfSigned returns a PEM certificate for names expiring at notAfter.
func selfSigned(t *testing.T, notAfter time.Time, names ...string) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: names[0]},
		DNSNames:     names,
		NotBefore:    notAfter.Add(-90 * 24 * time.Hour),
		NotAfter:     notAfter,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

// issuing makes the helper's issuer store a 90-day certificate for both names.
func (h *TestHelper) issuing(t *testing.T) {
	t.Helper()
	h.Issuer.Chain = selfSigned(t, time.Now().Add(90*24*time.Hour), "example.com", "www.example.com")
}

// provisioned runs a successful provision of example.com.
func provisioned(t *testing.T, h *TestHelper) {
	t.Helper()
	h.issuing(t)
	_, err := runCLI(t, "example.com", "admin@example.com", "--yes")
	require.NoError(t, err)
}
