// Package reference parses and normalizes OCI/Docker image reference
// strings into a typed, immutable Reference value.
package reference

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ociregistry/ociregistry/pkg/registry/digest"
	"github.com/ociregistry/ociregistry/pkg/registry/regerr"
)

// Kind discriminates the four Reference variants.
type Kind int

const (
	// KindNamedOnly carries neither a tag nor a digest; resolve uses the
	// implicit tag "latest".
	KindNamedOnly Kind = iota
	// KindTagged carries a tag only.
	KindTagged
	// KindDigested carries a digest only.
	KindDigested
	// KindFull carries both a tag and a digest.
	KindFull
)

func (k Kind) String() string {
	switch k {
	case KindNamedOnly:
		return "NamedOnly"
	case KindTagged:
		return "Tagged"
	case KindDigested:
		return "Digested"
	case KindFull:
		return "Full"
	default:
		return "Unknown"
	}
}

const (
	// DefaultDomain is the registry host assumed when no domain segment
	// is present in the input string.
	DefaultDomain = "registry-1.docker.io"
	// DefaultTag is the tag implied by KindNamedOnly references, which
	// carry neither a tag nor a digest.
	DefaultTag = "latest"

	legacyDefaultDomain = "index.docker.io"
	officialRepoPrefix  = "library/"
	maxNameLength       = 255
)

var (
	pathComponentRe = regexp.MustCompile(`^[a-z0-9]+(?:[._]|__|[-]+[a-z0-9]+)*$`)
	tagRe           = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]{0,127}$`)
	domainRe        = regexp.MustCompile(`^(\[[0-9a-fA-F:]+\]|[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?)*)(:[0-9]+)?$`)
)

// Reference is an immutable, parsed image reference.
type Reference struct {
	kind   Kind
	domain string
	path   string
	tag    string
	dgst   digest.Digest
}

// Kind reports which of the four variants this reference is.
func (r Reference) Kind() Kind { return r.kind }

// Domain returns the registry host (with optional port).
func (r Reference) Domain() string { return r.domain }

// Path returns the lowercase, slash-separated repository path.
func (r Reference) Path() string { return r.path }

// Name returns "domain/path".
func (r Reference) Name() string { return r.domain + "/" + r.path }

// Tag returns the explicit tag and true, or "" and false if this
// reference carries no tag (KindNamedOnly or KindDigested).
func (r Reference) Tag() (string, bool) {
	if r.kind == KindTagged || r.kind == KindFull {
		return r.tag, true
	}
	return "", false
}

// Digest returns the explicit digest and true, or the zero Digest and
// false if this reference carries no digest (KindNamedOnly or KindTagged).
func (r Reference) Digest() (digest.Digest, bool) {
	if r.kind == KindDigested || r.kind == KindFull {
		return r.dgst, true
	}
	return digest.Digest{}, false
}

// Target returns the string to substitute into the manifest API path
// GET/HEAD /v2/<path>/manifests/<target>: the digest when one is present
// (KindDigested, KindFull), otherwise the tag, otherwise DefaultTag.
func (r Reference) Target() string {
	if d, ok := r.Digest(); ok {
		return d.String()
	}
	if t, ok := r.Tag(); ok {
		return t
	}
	return DefaultTag
}

// IsDefaultDomain reports whether this reference resolves against the
// default registry host.
func (r Reference) IsDefaultDomain() bool {
	return r.domain == DefaultDomain
}

// String renders the canonical inverse of Parse: "domain/path[:tag][@digest]".
func (r Reference) String() string {
	var b strings.Builder
	b.WriteString(r.Name())
	if t, ok := r.Tag(); ok {
		b.WriteByte(':')
		b.WriteString(t)
	}
	if d, ok := r.Digest(); ok {
		b.WriteByte('@')
		b.WriteString(d.String())
	}
	return b.String()
}

// ShortName renders a user-facing name: under the default domain it omits
// the domain and any leading "library/" prefix, whether the input spelled
// them out or they were added by Parse — used for RepoTags entries in the
// Docker V2 archive.
func (r Reference) ShortName() string {
	path := r.path
	if r.IsDefaultDomain() && strings.HasPrefix(path, officialRepoPrefix) {
		path = strings.TrimPrefix(path, officialRepoPrefix)
		return path
	}
	if r.IsDefaultDomain() {
		return path
	}
	return r.domain + "/" + path
}

// ShortRef renders ShortName with the explicit tag appended, the form
// used for Docker V2 archive RepoTags entries. Returns "" if no tag is
// present (digest-only references get no RepoTags entry).
func (r Reference) ShortRef() string {
	t, ok := r.Tag()
	if !ok {
		return ""
	}
	return r.ShortName() + ":" + t
}

// Parse validates and normalizes s into a Reference. Checks run in this
// order: emptiness, uppercase-in-name, grammar, length (<=255), digest
// validation.
func Parse(s string) (Reference, error) {
	if s == "" {
		return Reference{}, fmt.Errorf("%w: %w", regerr.ErrInvalidReference, regerr.ErrEmpty)
	}

	domainPart, remainder := splitDomain(s)

	namePart, tag, digestPart := splitNameTagDigest(remainder)

	if hasUpper(namePart) {
		return Reference{}, fmt.Errorf("%w: %w: %q", regerr.ErrInvalidReference, regerr.ErrUppercase, s)
	}

	if domainPart == legacyDefaultDomain {
		domainPart = DefaultDomain
	}
	if domainPart == DefaultDomain && !strings.Contains(namePart, "/") {
		namePart = officialRepoPrefix + namePart
	}

	if !domainRe.MatchString(domainPart) {
		return Reference{}, fmt.Errorf("%w: %w: invalid domain %q", regerr.ErrInvalidReference, regerr.ErrFormat, domainPart)
	}
	if err := validatePath(namePart); err != nil {
		return Reference{}, fmt.Errorf("%w: %w: %w", regerr.ErrInvalidReference, regerr.ErrFormat, err)
	}
	if tag != "" && !tagRe.MatchString(tag) {
		return Reference{}, fmt.Errorf("%w: %w: invalid tag %q", regerr.ErrInvalidReference, regerr.ErrFormat, tag)
	}

	if len(domainPart)+1+len(namePart) > maxNameLength {
		return Reference{}, fmt.Errorf("%w: %w: %q exceeds %d characters", regerr.ErrInvalidReference, regerr.ErrTooLong, domainPart+"/"+namePart, maxNameLength)
	}

	var (
		dgst    digest.Digest
		hasDgst bool
	)
	if digestPart != "" {
		parsed, err := digest.Parse(digestPart)
		if err != nil {
			return Reference{}, fmt.Errorf("%w: %w: %w", regerr.ErrInvalidReference, regerr.ErrInvalidDigest, err)
		}
		dgst = parsed
		hasDgst = true
	}

	kind := classify(tag != "", hasDgst)

	return Reference{
		kind:   kind,
		domain: domainPart,
		path:   namePart,
		tag:    tag,
		dgst:   dgst,
	}, nil
}

func classify(hasTag, hasDigest bool) Kind {
	switch {
	case hasTag && hasDigest:
		return KindFull
	case hasDigest:
		return KindDigested
	case hasTag:
		return KindTagged
	default:
		return KindNamedOnly
	}
}

// splitDomain separates a leading domain segment from the rest of the
// reference. The first "/"-separated segment is a domain iff it contains
// "." or ":" or equals "localhost"; otherwise the whole string is the
// path and the domain defaults to DefaultDomain.
func splitDomain(s string) (domain, remainder string) {
	i := strings.IndexByte(s, '/')
	if i < 0 {
		return DefaultDomain, s
	}

	candidate := s[:i]
	if strings.ContainsAny(candidate, ".:") || candidate == "localhost" {
		return candidate, s[i+1:]
	}
	return DefaultDomain, s
}

// splitNameTagDigest splits "name[:tag][@digest]" into its parts. The
// digest is separated first (rightmost "@"), since neither a path
// component nor a tag may contain "@". Within the remaining "name[:tag]"
// portion, a trailing ":tag" is recognized only when the last ":" occurs
// after the last "/", since path components never contain ":".
func splitNameTagDigest(s string) (name, tag, digestPart string) {
	rest := s
	if at := strings.LastIndexByte(rest, '@'); at >= 0 {
		digestPart = rest[at+1:]
		rest = rest[:at]
	}

	lastSlash := strings.LastIndexByte(rest, '/')
	lastColon := strings.LastIndexByte(rest, ':')
	if lastColon > lastSlash {
		tag = rest[lastColon+1:]
		rest = rest[:lastColon]
	}

	return rest, tag, digestPart
}

func hasUpper(s string) bool {
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty repository path")
	}
	for _, component := range strings.Split(path, "/") {
		if !pathComponentRe.MatchString(component) {
			return fmt.Errorf("invalid repository path component %q", component)
		}
	}
	return nil
}
