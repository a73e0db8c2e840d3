// Package hostfs is the filesystem capability used for every host-global
// file the provisioner touches: site configs, activation links, certificate
// files and the renewal script.
//
// Writes are atomic: data goes to a temporary file in the target's
// directory, which is then renamed over the target, so a reader (nginx on
// reload, cron on its next tick) never sees a half-written file.
//
// Three implementations exist:
//   - OSFS talks to the local filesystem through the os package.
//   - ExecFS performs the same operations with coreutils commands. Paired
//     with executor.SudoExecutor it writes root-owned paths while the
//     process itself runs unprivileged.
//   - MemFS keeps everything in memory for tests.
package hostfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ksyq12/provision/internal/executor"
)

// FS is the set of file operations the provisioner performs on the host.
type FS interface {
	// ReadFile returns the content of path. A missing file yields an error
	// matching fs.ErrNotExist.
	ReadFile(path string) ([]byte, error)

	// WriteFile atomically replaces path with data, creating parent
	// directories as needed.
	WriteFile(path string, data []byte, perm fs.FileMode) error

	// Remove deletes path. Removing a missing path is not an error.
	Remove(path string) error

	// Symlink points link at target, replacing an existing link.
	Symlink(target, link string) error

	// Exists reports whether path exists, without following symlinks.
	Exists(path string) (bool, error)
}

// OSFS implements FS on the local filesystem.
type OSFS struct{}

// NewOSFS creates an OSFS.
func NewOSFS() *OSFS {
	return &OSFS{}
}

// ReadFile reads path.
func (o *OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes data to a temp file next to path and renames it into place.
func (o *OSFS) WriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Remove deletes path, ignoring a missing file.
func (o *OSFS) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// Symlink creates or replaces link so it points at target.
func (o *OSFS) Symlink(target, link string) error {
	if err := os.MkdirAll(filepath.Dir(link), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", link, err)
	}
	if info, err := os.Lstat(link); err == nil {
		if info.Mode()&os.ModeSymlink == 0 {
			return fmt.Errorf("%s exists and is not a symlink, refusing to replace", link)
		}
		if err := os.Remove(link); err != nil {
			return fmt.Errorf("failed to replace link %s: %w", link, err)
		}
	}
	if err := os.Symlink(target, link); err != nil {
		return fmt.Errorf("failed to link %s: %w", link, err)
	}
	return nil
}

// Exists reports whether path exists.
func (o *OSFS) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// ExecFS implements FS with shell utilities run through an executor.
type ExecFS struct {
	exec executor.CommandExecutor
}

// NewExecFS creates an ExecFS. Wrap exec with executor.NewSudoExecutor to
// operate on root-owned paths.
func NewExecFS(exec executor.CommandExecutor) *ExecFS {
	return &ExecFS{exec: exec}
}

// ReadFile returns the output of cat.
func (e *ExecFS) ReadFile(path string) ([]byte, error) {
	ok, err := e.Exists(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrNotExist}
	}
	out, err := e.exec.Execute("cat", path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return out, nil
}

// WriteFile tees data into a temp file, sets its mode and moves it into place.
func (e *ExecFS) WriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+".tmp")

	if _, err := e.exec.Execute("mkdir", "-p", dir); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if _, err := e.exec.ExecuteInput(data, "tee", tmp); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if _, err := e.exec.Execute("chmod", modeString(perm), tmp); err != nil {
		_, _ = e.exec.Execute("rm", "-f", tmp)
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if _, err := e.exec.Execute("mv", "-f", tmp, path); err != nil {
		_, _ = e.exec.Execute("rm", "-f", tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Remove runs rm -f.
func (e *ExecFS) Remove(path string) error {
	if _, err := e.exec.Execute("rm", "-f", path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// Symlink runs ln -sfn.
func (e *ExecFS) Symlink(target, link string) error {
	if _, err := e.exec.Execute("ln", "-sfn", target, link); err != nil {
		return fmt.Errorf("failed to link %s: %w", link, err)
	}
	return nil
}

// Exists asks stat about path without following links.
func (e *ExecFS) Exists(path string) (bool, error) {
	out, err := e.exec.Execute("stat", "-c", "%F", path)
	if err != nil {
		if strings.Contains(string(out), "No such file") {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return true, nil
}

func modeString(perm fs.FileMode) string {
	return "0" + strconv.FormatUint(uint64(perm.Perm()), 8)
}
