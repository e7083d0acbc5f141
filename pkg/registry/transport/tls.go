package transport

import "crypto/tls"

// insecureTLSConfig backs the --ignore-cert-error flag. Skipping
// certificate verification is a deliberate, explicitly opted-into
// operator choice (e.g. talking to a registry behind a self-signed
// proxy in a test environment) and is never the default.
func insecureTLSConfig() *tls.Config {
	return &tls.Config{InsecureSkipVerify: true}
}
