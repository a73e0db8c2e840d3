package cli

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ksyq12/provision/internal/errors"
	"github.com/ksyq12/provision/internal/registry"
	"github.com/ksyq12/provision/internal/ssl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Empty(t *testing.T) {
	NewTestHelper(t)

	out, err := runCLI(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No domains provisioned yet")
}

func TestStatus_AfterProvision(t *testing.T) {
	h := NewTestHelper(t)
	provisioned(t, h)

	out, err := runCLI(t, "status")
	require.NoError(t, err)

	assert.Contains(t, out, "DOMAIN")
	assert.Contains(t, out, "example.com")
	assert.Contains(t, out, "Done")
	assert.Contains(t, out, "5000")
	assert.Contains(t, out, time.Now().Add(90*24*time.Hour).Format("2006-01-02"))
}

func TestStatus_JSON(t *testing.T) {
	h := NewTestHelper(t)
	provisioned(t, h)

	out, err := runCLI(t, "status", "example.com", "--json")
	require.NoError(t, err)

	var items []siteStatus
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "example.com", items[0].Domain)
	assert.Equal(t, "Done", items[0].State)
	assert.Equal(t, "binance_trading", items[0].ProjectName)
	require.NotNil(t, items[0].DaysLeft)
	assert.InDelta(t, 89, *items[0].DaysLeft, 1)
}

func TestStatus_UnknownDomain(t *testing.T) {
	NewTestHelper(t)

	_, err := runCLI(t, "status", "nowhere.example")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidArguments, errors.CodeOf(err))
}

func TestDescribeSite(t *testing.T) {
	h := NewTestHelper(t)
	store := ssl.NewStore("", h.FS)
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	rec := &registry.SiteRecord{Domain: "example.com", State: "ProxyRunning", LastError: "declined"}

	st := describeSite(rec, store, now)
	assert.Nil(t, st.CertExpiry, "missing certificate is not an error")
	assert.Empty(t, st.CertError)
	assert.Equal(t, "-", expiryCell(st))

	require.NoError(t, h.FS.WriteFile(store.Paths("example.com").CertPath, []byte("garbage"), 0644))
	st = describeSite(rec, store, now)
	assert.NotEmpty(t, st.CertError)
	assert.Equal(t, "unreadable", expiryCell(st))

	_, err := store.Save("example.com", selfSigned(t, now.Add(10*24*time.Hour), "example.com"), []byte("key"))
	require.NoError(t, err)
	st = describeSite(rec, store, now)
	require.NotNil(t, st.DaysLeft)
	assert.Equal(t, 10, *st.DaysLeft)
	assert.Equal(t, "2026-10-26 (10d)", expiryCell(st))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
