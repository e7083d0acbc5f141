package platform

import (
	"strconv"
	"strings"

	"github.com/ociregistry/ociregistry/internal/ociimage"
)

// Select returns the first descriptor in manifests whose normalized
// platform is accepted by target's compatibility vector (§4.3), in the
// index's original order. ok is false if none match.
func Select(manifests []ociimage.Descriptor, target Platform) (ociimage.Descriptor, bool) {
	target = Complete(target, Host())
	vector := CompatibilityVector(target)

	candidates := manifests
	if isWindows(target) {
		candidates = filterWindowsBuild(manifests, target)
	}

	for _, m := range candidates {
		if m.Platform == nil {
			continue
		}
		mp := fromOCI(*m.Platform)
		for _, accepted := range vector {
			if mp.Equal(accepted) {
				return m, true
			}
		}
	}

	return ociimage.Descriptor{}, false
}

func fromOCI(p ociimage.Platform) Platform {
	return Normalize(Platform{
		OS:           p.OS,
		Architecture: p.Architecture,
		Variant:      p.Variant,
		OSVersion:    p.OSVersion,
		OSFeatures:   p.OSFeatures,
	})
}

func isWindows(target Platform) bool {
	return target.OS == "windows"
}

// filterWindowsBuild implements the Windows-only refinement, applied by
// Select when the target OS is windows and measured against
// target.OSVersion: descriptors whose os.version build number exceeds the
// target's are rejected, and descriptors whose os.version shares the
// target's major build prefix are preferred by being returned first. When
// target.OSVersion carries no build number, manifests is returned
// unchanged; neither Host nor Parse sets OSVersion, so the host's own
// Windows build is not consulted.
func filterWindowsBuild(manifests []ociimage.Descriptor, target Platform) []ociimage.Descriptor {
	hostBuild := buildNumber(target.OSVersion)
	if hostBuild == 0 {
		return manifests
	}

	var preferred, rest []ociimage.Descriptor
	for _, m := range manifests {
		if m.Platform == nil {
			rest = append(rest, m)
			continue
		}

		build := buildNumber(m.Platform.OSVersion)
		if build > hostBuild {
			continue
		}
		if strings.HasPrefix(m.Platform.OSVersion, majorBuildPrefix(target.OSVersion)) {
			preferred = append(preferred, m)
		} else {
			rest = append(rest, m)
		}
	}

	return append(preferred, rest...)
}

// buildNumber extracts the third dot-separated component of a Windows
// version string like "10.0.19041.1234", returning 0 if absent/unparsable.
func buildNumber(version string) int {
	parts := strings.Split(version, ".")
	if len(parts) < 3 {
		return 0
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0
	}
	return n
}

func majorBuildPrefix(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 3 {
		return version
	}
	return strings.Join(parts[:3], ".")
}
