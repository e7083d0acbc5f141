// Package regerr defines the sentinel error kinds surfaced by every
// ociregistry component. Components wrap one of these sentinels with
// fmt.Errorf's %w verb so callers can classify failures with errors.Is
// without parsing message text.
package regerr

import "errors"

var (
	// ErrInvalidReference covers all reference-parsing failures: empty
	// input, uppercase in the name, bad grammar, excessive length, or an
	// invalid digest component.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrEmpty, ErrUppercase, ErrFormat, ErrTooLong and ErrInvalidDigest are
	// the subkinds of ErrInvalidReference, checked in that order by
	// reference.Parse.
	ErrEmpty        = errors.New("reference is empty")
	ErrUppercase    = errors.New("repository name must be lowercase")
	ErrTooLong      = errors.New("domain/path exceeds 255 characters")
	ErrFormat       = errors.New("reference does not match the expected grammar")
	ErrInvalidDigest = errors.New("reference contains an invalid digest")

	// ErrUnauthorized means the auth engine exhausted its single 401 retry.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAuthFailure means the token endpoint responded with a non-2xx
	// status or could not be reached; retryable by the caller.
	ErrAuthFailure = errors.New("auth failure")

	// ErrImageNotFound means the registry returned 404 for a manifest
	// HEAD or GET.
	ErrImageNotFound = errors.New("image not found")

	// ErrMalformedChallenge means a WWW-Authenticate header could not be
	// parsed per RFC 7235 list syntax.
	ErrMalformedChallenge = errors.New("malformed challenge header")

	// ErrInvalidManifest means a manifest or index failed to parse, nested
	// beyond the resolver's depth bound, or violated the diff_ids/layers
	// length invariant.
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrUnsupportedMediaType means a response Content-Type was not one of
	// the recognized manifest/index media types.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrDigestMismatch means downloaded content's computed digest did not
	// equal the expected digest. The partial file is always removed.
	ErrDigestMismatch = errors.New("digest mismatch")

	// ErrPlatformNotAvailable means no index entry matched the target
	// platform's compatibility vector.
	ErrPlatformNotAvailable = errors.New("platform not available")

	// ErrNetworkError covers transport-level failures; retryable.
	ErrNetworkError = errors.New("network error")

	// ErrIOError covers local filesystem failures.
	ErrIOError = errors.New("io error")

	// ErrCancelled means the caller's context was cancelled mid-operation.
	ErrCancelled = errors.New("cancelled")
)
