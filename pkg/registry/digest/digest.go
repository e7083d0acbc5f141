// Package digest implements content digest parsing, computation, and
// chain-ID derivation for the registry client.
package digest

import (
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"regexp"

	"github.com/ociregistry/ociregistry/pkg/registry/regerr"
)

// Algorithm identifies a supported hash algorithm.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA384 Algorithm = "sha384"
	SHA512 Algorithm = "sha512"
)

// hexLen is the expected hex payload length for each known algorithm.
var hexLen = map[Algorithm]int{
	SHA256: 64,
	SHA384: 96,
	SHA512: 128,
}

var hexPattern = regexp.MustCompile(`^[a-f0-9]+$`)

// Digest is an immutable content-addressed identifier "<alg>:<hex>".
type Digest struct {
	alg Algorithm
	hex string
}

// String renders the canonical "<alg>:<hex>" form.
func (d Digest) String() string {
	return fmt.Sprintf("%s:%s", d.alg, d.hex)
}

// Algorithm returns the digest's hash algorithm.
func (d Digest) Algorithm() Algorithm { return d.alg }

// Hex returns the lowercase hex payload.
func (d Digest) Hex() string { return d.hex }

// Short returns the first 12 hex characters, for compact logging.
func (d Digest) Short() string {
	if len(d.hex) < 12 {
		return d.hex
	}
	return d.hex[:12]
}

// Equal reports whether two digests have the same canonical form.
func (d Digest) Equal(other Digest) bool {
	return d.String() == other.String()
}

// IsZero reports whether d is the zero value (never produced by Parse or
// FromBytes, but a legitimate default for unset struct fields).
func (d Digest) IsZero() bool {
	return d.alg == "" && d.hex == ""
}

// Parse validates and constructs a Digest from its canonical string form.
// Checks run in this order: algorithm recognition, then hex format, then
// length, mirroring the order a reader would naturally validate a
// "<alg>:<hex>" token.
func Parse(s string) (Digest, error) {
	idx := -1
	for i, r := range s {
		if r == ':' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Digest{}, fmt.Errorf("%w: missing ':' separator in %q", regerr.ErrFormat, s)
	}

	alg := Algorithm(s[:idx])
	hex := s[idx+1:]

	expected, ok := hexLen[alg]
	if !ok {
		return Digest{}, fmt.Errorf("%w: %q", errUnsupportedAlgorithm, alg)
	}

	if !hexPattern.MatchString(hex) {
		return Digest{}, fmt.Errorf("%w: hex payload %q is not lowercase hex", regerr.ErrFormat, hex)
	}

	if len(hex) != expected {
		return Digest{}, fmt.Errorf("%w: algorithm %s requires %d hex characters, got %d", errInvalidLength, alg, expected, len(hex))
	}

	return Digest{alg: alg, hex: hex}, nil
}

// errUnsupportedAlgorithm and errInvalidLength are local sentinels so
// callers can distinguish these subkinds; both also satisfy
// regerr.ErrInvalidDigest's general "invalid digest" classification via
// the wrapping performed by reference.Parse.
var (
	errUnsupportedAlgorithm = fmt.Errorf("unsupported digest algorithm")
	errInvalidLength        = fmt.Errorf("invalid digest length")
)

// IsUnsupportedAlgorithm reports whether err was produced because the
// digest's algorithm tag is not one of sha256/sha384/sha512.
func IsUnsupportedAlgorithm(err error) bool {
	return errors.Is(err, errUnsupportedAlgorithm)
}

// IsInvalidLength reports whether err was produced because the digest's
// hex payload had the wrong length for its algorithm.
func IsInvalidLength(err error) bool {
	return errors.Is(err, errInvalidLength)
}

func newHasher(alg Algorithm) hash.Hash {
	switch alg {
	case SHA384:
		return sha512.New384()
	case SHA512:
		return sha512.New()
	default:
		return sha256.New()
	}
}

// FromBytes computes the digest of content using alg (default sha256 when
// the zero value is passed).
func FromBytes(content []byte, alg Algorithm) Digest {
	if alg == "" {
		alg = SHA256
	}
	h := newHasher(alg)
	h.Write(content)
	return Digest{alg: alg, hex: fmt.Sprintf("%x", h.Sum(nil))}
}

// NewHasher returns a streaming hash.Hash for alg, for callers that must
// hash content incrementally (e.g. the blob downloader).
func NewHasher(alg Algorithm) hash.Hash {
	if alg == "" {
		alg = SHA256
	}
	return newHasher(alg)
}

// Verify reports whether content hashes to d under d's own algorithm.
func (d Digest) Verify(content []byte) bool {
	return FromBytes(content, d.alg).Equal(d)
}

// ChainIDs derives the chain-ID sequence for an ordered list of diff-ID
// digest strings (canonical "<alg>:<hex>" form). chain[0] == diffIDs[0];
// chain[i] = sha256(chain[i-1] + " " + diffIDs[i]), prefixed "sha256:".
// The separator is exactly one ASCII space.
func ChainIDs(diffIDs []string) ([]string, error) {
	if len(diffIDs) == 0 {
		return nil, nil
	}

	chain := make([]string, len(diffIDs))
	chain[0] = diffIDs[0]

	for i := 1; i < len(diffIDs); i++ {
		sum := sha256.Sum256([]byte(chain[i-1] + " " + diffIDs[i]))
		chain[i] = fmt.Sprintf("sha256:%x", sum)
	}

	return chain, nil
}

// ChainIDHexes derives the chain-ID sequence like ChainIDs, then strips
// each entry down to its bare hex payload — the on-disk directory name
// §4.8 requires for a pulled layer. A canonical "alg:hex" chain-ID would
// embed an illegal ':' in a path segment.
func ChainIDHexes(diffIDs []string) ([]string, error) {
	chainIDs, err := ChainIDs(diffIDs)
	if err != nil {
		return nil, err
	}

	hexes := make([]string, len(chainIDs))
	for i, c := range chainIDs {
		d, err := Parse(c)
		if err != nil {
			return nil, err
		}
		hexes[i] = d.Hex()
	}
	return hexes, nil
}
