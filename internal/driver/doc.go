// Package driver manages the NGINX site slot of a domain and the NGINX
// service lifecycle.
//
// A domain owns exactly one config file. On Debian-like hosts it lives in
// sites-available and is activated by a symlink in sites-enabled; on the
// RHEL family it is conf.d/<domain>.conf and needs no activation.
//
// # Basic Usage
//
//	fsys := hostfs.NewExecFS(executor.NewSudoExecutor(executor.NewSystemExecutor()))
//	drv := driver.NewNginx(platform.Debian.SitePaths(), fsys, privileged)
//
//	if err := drv.WriteSite("example.com", content); err != nil {
//	    return err
//	}
//	if _, err := drv.Enable("example.com"); err != nil {
//	    return err
//	}
//	if err := drv.Test(); err != nil {
//	    // do not reload a config nginx rejects
//	}
//	err := drv.Reload()
//
// # Testing
//
// NewNginx accepts any hostfs.FS and executor.CommandExecutor, so tests use
// hostfs.NewOSFS with temp directories and executor.MockExecutor. Code that
// only needs the Driver interface can use MockDriver, which records every
// call in Events and exposes the config that was live at the last reload.
package driver
