// Package ssl obtains and inspects the Let's Encrypt certificate of a
// provisioned domain.
//
// One certificate covers the domain and its www alias. Two issuers exist:
//
//   - CertbotIssuer runs "certbot certonly --webroot" non-interactively.
//     This is the default and what the renewal script's "certbot renew"
//     expects.
//   - LegoIssuer runs the ACME flow in-process with go-acme/lego, writing
//     HTTP-01 challenge files into the same webroot.
//
// Both agree to the CA's terms of service automatically. Invoking Issue is
// the caller's consent to that.
//
// # Certificate Paths
//
// Certificates are read from the Let's Encrypt layout:
//
//	/etc/letsencrypt/live/{domain}/fullchain.pem  (certificate chain)
//	/etc/letsencrypt/live/{domain}/privkey.pem    (private key)
//
// Store.Paths derives them from the domain alone; Store.Inspect parses the
// chain to report SANs and expiry.
//
// # Testing
//
// CertbotIssuer takes an executor.CommandExecutor, so tests pass an
// executor.MockExecutor and assert on the recorded certbot arguments.
// Store takes a hostfs.FS; tests use hostfs.MemFS with generated PEMs.
//
// # Error Handling
//
// Issue returns certbot's own output when the command fails. Common causes:
//   - DNS for the domain or its www alias does not point at this host
//   - port 80 is blocked, so the challenge path is unreachable
//   - Let's Encrypt rate limits
package ssl
