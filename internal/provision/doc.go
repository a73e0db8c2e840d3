// Package provision converges a host to an HTTPS reverse proxy for one
// domain.
//
// A run walks a fixed sequence of states, each one a barrier that is only
// passed once the phase leading into it succeeded:
//
//	Init → EnvironmentDetected → DependenciesReady → BootstrapConfigLive →
//	ProxyRunning → CertificateIssued → FinalConfigLive → RenewalScheduled → Done
//
// Any phase failure moves the run to Aborted. Next is the transition
// function; the Orchestrator only supplies phase results to it.
//
// Every phase is safe to repeat: present packages are not reinstalled, an
// unchanged site config is not reloaded, a certificate that still covers
// both names and is outside the renewal window is reused, and the renewal
// cron line is added once. Re-running is the recovery from a failed or
// interrupted run; nothing is rolled back. The registry record of the
// domain keeps the last state reached.
//
// Host access is injected through Deps. Capabilities that depend on the
// package-manager family (installer, site writer, proxy) are built by a
// HostFactory after detection.
package provision
