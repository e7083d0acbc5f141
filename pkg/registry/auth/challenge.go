package auth

import (
	"fmt"
	"strings"

	"github.com/ociregistry/ociregistry/pkg/registry/regerr"
)

// Scheme identifies how a registry wants requests authenticated.
type Scheme int

const (
	// SchemeNone means the registry answered /v2/ without a challenge.
	SchemeNone Scheme = iota
	SchemeBasic
	SchemeBearer
)

// Challenge is the parsed WWW-Authenticate header.
type Challenge struct {
	Scheme  Scheme
	Realm   string
	Service string
}

// ParseChallenge parses a WWW-Authenticate header value, tolerating
// quoted and unquoted parameter values per RFC 7235 list syntax.
func ParseChallenge(header string) (Challenge, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Challenge{}, fmt.Errorf("%w: empty header", regerr.ErrMalformedChallenge)
	}

	schemeStr, rest, ok := strings.Cut(header, " ")
	if !ok {
		return Challenge{}, fmt.Errorf("%w: no parameters in %q", regerr.ErrMalformedChallenge, header)
	}

	var scheme Scheme
	switch strings.ToLower(schemeStr) {
	case "bearer":
		scheme = SchemeBearer
	case "basic":
		scheme = SchemeBasic
	default:
		return Challenge{}, fmt.Errorf("%w: unrecognized scheme %q", regerr.ErrMalformedChallenge, schemeStr)
	}

	params, err := parseParams(rest)
	if err != nil {
		return Challenge{}, err
	}

	c := Challenge{Scheme: scheme, Realm: params["realm"], Service: params["service"]}

	if scheme == SchemeBearer && c.Realm == "" {
		return Challenge{}, fmt.Errorf("%w: bearer challenge missing realm: %q", regerr.ErrMalformedChallenge, header)
	}

	return c, nil
}

// parseParams splits RFC 7235 auth-param list syntax ("key=value" pairs
// separated by commas, values optionally double-quoted) into a map,
// tolerating commas embedded in quoted values.
func parseParams(s string) (map[string]string, error) {
	params := map[string]string{}

	for _, part := range splitUnquoted(s, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("%w: malformed parameter %q", regerr.ErrMalformedChallenge, part)
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
			value = value[1 : len(value)-1]
		}

		params[key] = value
	}

	return params, nil
}

// splitUnquoted splits s on sep, ignoring occurrences of sep inside
// double-quoted substrings.
func splitUnquoted(s string, sep rune) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false

	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			current.WriteRune(r)
		case r == sep && !inQuotes:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	parts = append(parts, current.String())

	return parts
}
