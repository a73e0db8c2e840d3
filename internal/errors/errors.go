// Package errors provides the categorized error type used across a
// provisioning run.
//
// Every phase failure is fatal. The orchestrator wraps the underlying tool
// diagnostic (nginx -t output, certbot output, package manager output)
// unchanged in a ProvisionError that also names the phase and, where one
// exists, a remediation hint for the operator.
//
// # Error Codes
//
//	INVALID_ARGUMENTS            wrong argument count or malformed request
//	UNSUPPORTED_PLATFORM         no known package manager on the host
//	INSTALL_VERIFICATION_FAILED  component still missing after install
//	CONFIG_VALIDATION_FAILED     nginx -t rejected the rendered site
//	CERTIFICATE_ISSUANCE_FAILED  the ACME client did not issue
//	SCHEDULING_FAILED            renewal script or crontab update failed
//	PRIVILEGE_VIOLATION          run as root
//	ABORTED                      operator declined a confirmation
//
// # Error Checking
//
// Use errors.Is against the sentinels; comparison is by code:
//
//	if errors.Is(err, errors.ErrConfigValidation) {
//	    // nginx rejected the config, previous config still serving
//	}
//
// Use errors.As to read the phase and hint:
//
//	var perr *errors.ProvisionError
//	if errors.As(err, &perr) {
//	    fmt.Printf("%s failed (%s): %s\n", perr.Phase, perr.Code, perr.Hint)
//	}
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors for programmatic handling.
type ErrorCode string

// Error codes for the provisioning failure taxonomy.
const (
	ErrCodeInvalidArguments    ErrorCode = "INVALID_ARGUMENTS"
	ErrCodeUnsupportedPlatform ErrorCode = "UNSUPPORTED_PLATFORM"
	ErrCodeInstallVerification ErrorCode = "INSTALL_VERIFICATION_FAILED"
	ErrCodeConfigValidation    ErrorCode = "CONFIG_VALIDATION_FAILED"
	ErrCodeCertificateIssuance ErrorCode = "CERTIFICATE_ISSUANCE_FAILED"
	ErrCodeScheduling          ErrorCode = "SCHEDULING_FAILED"
	ErrCodePrivilege           ErrorCode = "PRIVILEGE_VIOLATION"
	ErrCodeAborted             ErrorCode = "ABORTED"
	ErrCodeInternal            ErrorCode = "INTERNAL"
)

// ProvisionError is a categorized failure of one provisioning phase.
type ProvisionError struct {
	Code    ErrorCode // Error category
	Phase   string    // Phase that failed, empty before the run starts
	Domain  string    // Domain being provisioned (if known)
	Message string    // Human-readable message
	Hint    string    // Remediation hint shown to the operator
	Err     error     // Underlying error, usually carrying tool output
}

// Error implements the error interface.
func (e *ProvisionError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Domain != "" {
		msg = fmt.Sprintf("%s: %s", e.Domain, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain traversal.
func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error.
// Comparison is based on error code.
func (e *ProvisionError) Is(target error) bool {
	t, ok := target.(*ProvisionError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithPhase returns a copy of e attributed to phase.
func (e *ProvisionError) WithPhase(phase string) *ProvisionError {
	c := *e
	c.Phase = phase
	return &c
}

// Sentinel errors, one per code. Use these with errors.Is().
var (
	ErrInvalidArguments    = &ProvisionError{Code: ErrCodeInvalidArguments, Message: "invalid arguments"}
	ErrUnsupportedPlatform = &ProvisionError{Code: ErrCodeUnsupportedPlatform, Message: "unsupported platform"}
	ErrInstallVerification = &ProvisionError{Code: ErrCodeInstallVerification, Message: "install verification failed"}
	ErrConfigValidation    = &ProvisionError{Code: ErrCodeConfigValidation, Message: "config validation failed"}
	ErrCertificateIssuance = &ProvisionError{Code: ErrCodeCertificateIssuance, Message: "certificate issuance failed"}
	ErrScheduling          = &ProvisionError{Code: ErrCodeScheduling, Message: "scheduling failed"}
	ErrPrivilege           = &ProvisionError{Code: ErrCodePrivilege, Message: "must not run as root"}
	ErrAborted             = &ProvisionError{Code: ErrCodeAborted, Message: "aborted by operator"}
)

// InvalidArguments creates an argument or request validation error.
func InvalidArguments(msg string) error {
	return &ProvisionError{
		Code:    ErrCodeInvalidArguments,
		Message: msg,
		Hint:    "usage: provision <domain> <email>",
	}
}

// UnsupportedPlatform creates an error for a host without a known package manager.
func UnsupportedPlatform(family string) error {
	return &ProvisionError{
		Code:    ErrCodeUnsupportedPlatform,
		Message: fmt.Sprintf("no install rule for platform family %q", family),
		Hint:    "supported: apt-get (Debian/Ubuntu), yum (RHEL/CentOS), dnf (Fedora)",
	}
}

// InstallVerification creates an error for a component that is still missing.
func InstallVerification(component string, err error) error {
	return &ProvisionError{
		Code:    ErrCodeInstallVerification,
		Message: fmt.Sprintf("%s is not available after install", component),
		Hint:    "check the package manager output above and install it manually",
		Err:     err,
	}
}

// ConfigValidation creates an error for a site config rejected by nginx -t.
func ConfigValidation(domain string, err error) error {
	return &ProvisionError{
		Code:    ErrCodeConfigValidation,
		Domain:  domain,
		Message: "nginx rejected the site configuration",
		Hint:    "check config with: sudo nginx -t",
		Err:     err,
	}
}

// CertificateIssuance creates an error for a failed ACME issuance.
func CertificateIssuance(domain string, err error) error {
	return &ProvisionError{
		Code:    ErrCodeCertificateIssuance,
		Domain:  domain,
		Message: "could not obtain certificate",
		Hint:    "check that DNS points to this server and the firewall allows port 80",
		Err:     err,
	}
}

// Scheduling creates an error for a failed renewal setup.
func Scheduling(msg string, err error) error {
	return &ProvisionError{
		Code:    ErrCodeScheduling,
		Message: msg,
		Hint:    "check crontab -l and the renewal script permissions",
		Err:     err,
	}
}

// Privilege creates the error returned when running with superuser identity.
func Privilege() error {
	return &ProvisionError{
		Code:    ErrCodePrivilege,
		Message: "do not run as root; privileged steps use sudo",
		Hint:    "run as a regular user with sudo rights",
	}
}

// Aborted creates an error for a declined confirmation.
func Aborted(question string) error {
	return &ProvisionError{
		Code:    ErrCodeAborted,
		Message: fmt.Sprintf("declined: %s", question),
	}
}

// Wrap creates an error with the specified code, message, and underlying error.
func Wrap(code ErrorCode, msg string, err error) error {
	return &ProvisionError{
		Code:    code,
		Message: msg,
		Err:     err,
	}
}

// CodeOf returns the code of the first ProvisionError in err's chain,
// or ErrCodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	var perr *ProvisionError
	if errors.As(err, &perr) {
		return perr.Code
	}
	return ErrCodeInternal
}

// Is reports whether any error in err's chain matches target.
// This is a re-export of errors.Is for convenience.
var Is = errors.Is

// As finds the first error in err's chain that matches target.
// This is a re-export of errors.As for convenience.
var As = errors.As

// New is a re-export of errors.New for convenience.
var New = errors.New
