//go:build integration

package integration

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ksyq12/provision/internal/driver"
	"github.com/ksyq12/provision/internal/executor"
	"github.com/ksyq12/provision/internal/hostfs"
	"github.com/ksyq12/provision/internal/platform"
	"github.com/ksyq12/provision/internal/site"
	"github.com/ksyq12/provision/internal/ssl"
	"github.com/ksyq12/provision/internal/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDirs holds paths to test directories, created fresh for each test
type testDirs struct {
	base    string
	paths   platform.SitePaths
	certs   string
	webroot string
}

func setupTestDirs(t *testing.T) *testDirs {
	t.Helper()
	base := t.TempDir()

	dirs := &testDirs{
		base: base,
		paths: platform.SitePaths{
			Available: filepath.Join(base, "sites-available"),
			Enabled:   filepath.Join(base, "sites-enabled"),
		},
		certs:   filepath.Join(base, "letsencrypt"),
		webroot: filepath.Join(base, "certbot"),
	}
	for _, dir := range []string{dirs.paths.Available, dirs.paths.Enabled, dirs.certs, dirs.webroot} {
		require.NoError(t, os.MkdirAll(dir, 0755))
	}
	return dirs
}

func isNginxAvailable() bool {
	_, err := exec.LookPath("nginx")
	return err == nil
}

func TestNginxDriverLifecycle(t *testing.T) {
	dirs := setupTestDirs(t)
	drv := driver.NewNginx(dirs.paths, hostfs.NewOSFS(), executor.NewSystemExecutor())

	content, err := template.Render(template.StageBootstrap, template.Site{
		Domain:  "test.local",
		AppPort: 5000,
		Webroot: dirs.webroot,
	})
	require.NoError(t, err)

	require.NoError(t, drv.WriteSite("test.local", []byte(content)))
	got, ok, err := drv.ReadSite("test.local")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, content, string(got))

	changed, err := drv.Enable("test.local")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = drv.Enable("test.local")
	require.NoError(t, err)
	assert.False(t, changed, "second enable is a no-op")

	info, err := os.Lstat(filepath.Join(dirs.paths.Enabled, "test.local"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink, "expected symlink")

	require.NoError(t, drv.Disable("test.local"))
	enabled, err := drv.IsEnabled("test.local")
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, drv.RemoveSite("test.local"))
	_, err = os.Stat(drv.ConfigPath("test.local"))
	assert.True(t, os.IsNotExist(err))
}

func writeSelfSigned(t *testing.T, store *ssl.Store, domain string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: domain},
		DNSNames:     template.ServerNames(domain),
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(90 * 24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	chain := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	_, err = store.Save(domain, chain, keyPEM)
	require.NoError(t, err)
}

// nginxTest runs "nginx -t" against a throwaway main config that includes
// only the enabled sites of dirs.
func nginxTest(t *testing.T, dirs *testDirs) (string, error) {
	t.Helper()
	mainConf := filepath.Join(dirs.base, "nginx.conf")
	conf := fmt.Sprintf(`pid %[1]s/nginx.pid;
error_log %[1]s/error.log;
events {}
http {
    access_log off;
    client_body_temp_path %[1]s;
    include %[2]s/*;
}
`, dirs.base, dirs.paths.Enabled)
	require.NoError(t, os.WriteFile(mainConf, []byte(conf), 0644))

	out, err := exec.Command("nginx", "-t", "-p", dirs.base, "-c", mainConf).CombinedOutput()
	return string(out), err
}

func TestRenderedConfigSyntax(t *testing.T) {
	if !isNginxAvailable() {
		t.Skip("Nginx is not available")
	}

	for _, stage := range []template.Stage{template.StageBootstrap, template.StageFinal} {
		t.Run(string(stage), func(t *testing.T) {
			dirs := setupTestDirs(t)
			fsys := hostfs.NewOSFS()
			store := ssl.NewStore(dirs.certs, fsys)
			drv := driver.NewNginx(dirs.paths, fsys, executor.NewSystemExecutor())
			writer := site.NewWriter(drv, store, dirs.webroot)

			if stage == template.StageFinal {
				writeSelfSigned(t, store, "test.local")
			}
			content, err := writer.Render(stage, site.Request{Domain: "test.local", AppPort: 5000})
			require.NoError(t, err)
			require.NoError(t, drv.WriteSite("test.local", []byte(content)))
			_, err = drv.Enable("test.local")
			require.NoError(t, err)

			out, err := nginxTest(t, dirs)
			if err != nil && strings.Contains(out, "Permission denied") {
				t.Skipf("nginx -t needs more privileges here: %s", out)
			}
			require.NoError(t, err, out)
			assert.Contains(t, out, "syntax is ok")
		})
	}
}
