package hostfs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ksyq12/provision/internal/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFS_WriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sites-available", "example.com")
	o := NewOSFS()

	require.NoError(t, o.WriteFile(path, []byte("first"), 0644))
	require.NoError(t, o.WriteFile(path, []byte("second"), 0644))

	data, err := o.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0644), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestOSFS_ReadMissing(t *testing.T) {
	_, err := NewOSFS().ReadFile(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestOSFS_Symlink(t *testing.T) {
	dir := t.TempDir()
	o := NewOSFS()
	target := filepath.Join(dir, "available", "example.com")
	link := filepath.Join(dir, "enabled", "example.com")
	require.NoError(t, o.WriteFile(target, []byte("x"), 0644))

	require.NoError(t, o.Symlink(target, link))
	require.NoError(t, o.Symlink(target, link), "relinking must be idempotent")

	dest, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, target, dest)

	t.Run("refuses to replace regular file", func(t *testing.T) {
		regular := filepath.Join(dir, "enabled", "regular")
		require.NoError(t, os.WriteFile(regular, []byte("keep"), 0644))
		assert.Error(t, o.Symlink(target, regular))
	})
}

func TestOSFS_RemoveAndExists(t *testing.T) {
	dir := t.TempDir()
	o := NewOSFS()
	path := filepath.Join(dir, "f")

	ok, err := o.Exists(path)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, o.WriteFile(path, []byte("x"), 0755))
	ok, _ = o.Exists(path)
	assert.True(t, ok)

	info, _ := os.Stat(path)
	assert.Equal(t, fs.FileMode(0755), info.Mode().Perm())

	require.NoError(t, o.Remove(path))
	require.NoError(t, o.Remove(path), "removing twice is fine")
}

func TestExecFS_WriteFile(t *testing.T) {
	mock := &executor.MockExecutor{}
	e := NewExecFS(executor.NewSudoExecutor(mock))

	err := e.WriteFile("/usr/local/bin/renew-ssl-app.sh", []byte("#!/bin/bash\n"), 0755)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"sudo mkdir -p /usr/local/bin",
		"sudo tee /usr/local/bin/.renew-ssl-app.sh.tmp",
		"sudo chmod 0755 /usr/local/bin/.renew-ssl-app.sh.tmp",
		"sudo mv -f /usr/local/bin/.renew-ssl-app.sh.tmp /usr/local/bin/renew-ssl-app.sh",
	}, mock.CommandLines())
	assert.Equal(t, "#!/bin/bash\n", string(mock.Calls[1].Input))
}

func TestExecFS_WriteFileCleansUpOnFailure(t *testing.T) {
	mock := &executor.MockExecutor{
		ExecuteFunc: func(name string, args ...string) ([]byte, error) {
			if name == "mv" {
				return []byte("mv: cannot move"), errors.New("exit status 1")
			}
			return nil, nil
		},
	}
	e := NewExecFS(mock)

	err := e.WriteFile("/etc/nginx/conf.d/example.com.conf", []byte("server {}"), 0644)
	require.Error(t, err)
	assert.Equal(t, 1, mock.Count("rm -f /etc/nginx/conf.d/.example.com.conf.tmp"))
}

func TestExecFS_ExistsAndRead(t *testing.T) {
	mock := &executor.MockExecutor{
		ExecuteFunc: func(name string, args ...string) ([]byte, error) {
			path := args[len(args)-1]
			if strings.HasSuffix(path, "missing") {
				return []byte("stat: cannot statx 'missing': No such file or directory"), &executor.CommandError{Command: "stat", Err: errors.New("exit status 1")}
			}
			if name == "cat" {
				return []byte("content"), nil
			}
			return []byte("regular file"), nil
		},
	}
	e := NewExecFS(mock)

	ok, err := e.Exists("/etc/nginx/missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.ReadFile("/etc/nginx/missing")
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	data, err := e.ReadFile("/etc/nginx/present")
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestExecFS_ExistsSudoFailure(t *testing.T) {
	mock := &executor.MockExecutor{
		ExecuteFunc: func(name string, args ...string) ([]byte, error) {
			return []byte("sudo: a password is required"), &executor.CommandError{Command: "sudo stat", Output: "sudo: a password is required", Err: errors.New("exit status 1")}
		},
	}
	e := NewExecFS(mock)

	ok, err := e.Exists("/etc/letsencrypt/live/example.com/fullchain.pem")
	require.Error(t, err, "a failed sudo is not a missing file")
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "a password is required")

	_, err = e.ReadFile("/etc/nginx/sites-available/example.com")
	require.Error(t, err)
	assert.False(t, errors.Is(err, fs.ErrNotExist))
}

func TestMemFS(t *testing.T) {
	m := NewMemFS()

	require.NoError(t, m.WriteFile("/a", []byte("x"), 0644))
	require.NoError(t, m.Symlink("/a", "/b"))

	data, err := m.ReadFile("/b")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
	assert.Equal(t, "/a", m.LinkTarget("/b"))

	assert.Equal(t, fs.FileMode(0644), m.Mode("/a"))

	m.WriteErr["/c"] = errors.New("disk full")
	assert.Error(t, m.WriteFile("/c", nil, 0644))

	assert.Equal(t, []string{"/a", "/b"}, m.Paths())
	require.NoError(t, m.Remove("/a"))
	_, err = m.ReadFile("/a")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
