package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ociregistry/ociregistry/internal/ociimage"
)

func TestNormalizeArchAliases(t *testing.T) {
	cases := []struct {
		arch, variant string
		wantArch      string
		wantVariant   string
	}{
		{"x86_64", "", "amd64", ""},
		{"x86-64", "", "amd64", ""},
		{"aarch64", "", "arm64", ""},
		{"arm64", "v8", "arm64", ""},
		{"armhf", "", "arm", "v7"},
		{"armel", "", "arm", "v6"},
		{"arm", "", "arm", "v7"},
	}
	for _, c := range cases {
		gotArch, gotVariant := normalizeArch(c.arch, c.variant)
		assert.Equal(t, c.wantArch, gotArch, c.arch)
		assert.Equal(t, c.wantVariant, gotVariant, c.arch)
	}
}

func TestNormalizeOSMacOS(t *testing.T) {
	assert.Equal(t, "darwin", normalizeOS("macos"))
}

func TestParseOSArch(t *testing.T) {
	p, err := Parse("linux/amd64")
	assert.NoError(t, err)
	assert.Equal(t, Platform{OS: "linux", Architecture: "amd64"}, p)
}

func TestParseWithVariant(t *testing.T) {
	p, err := Parse("linux/arm/v7")
	assert.NoError(t, err)
	assert.Equal(t, Platform{OS: "linux", Architecture: "arm", Variant: "v7"}, p)
}

func TestParseEmptyReturnsZeroValue(t *testing.T) {
	p, err := Parse("")
	assert.NoError(t, err)
	assert.Equal(t, Platform{}, p)
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, s := range []string{"linux", "linux/amd64/v7/extra", "/amd64", "linux/"} {
		_, err := Parse(s)
		assert.Error(t, err, s)
	}
}

func TestEqualIgnoresVersionAndFeatures(t *testing.T) {
	a := Platform{OS: "linux", Architecture: "amd64", OSVersion: "1"}
	b := Platform{OS: "linux", Architecture: "amd64", OSVersion: "2", OSFeatures: []string{"x"}}
	assert.True(t, a.Equal(b))
}

func descriptor(os, arch, variant string) ociimage.Descriptor {
	return ociimage.Descriptor{
		Platform: &ociimage.Platform{OS: os, Architecture: arch, Variant: variant},
	}
}

func TestSelectNotFound(t *testing.T) {
	manifests := []ociimage.Descriptor{
		descriptor("linux", "amd64", ""),
		descriptor("linux", "arm64", ""),
		descriptor("windows", "amd64", ""),
	}
	_, ok := Select(manifests, Platform{OS: "linux", Architecture: "arm", Variant: "v7"})
	assert.False(t, ok)
}

func TestSelectAmd64FallsBackToV1(t *testing.T) {
	manifests := []ociimage.Descriptor{
		descriptor("linux", "amd64", ""),
	}
	got, ok := Select(manifests, Platform{OS: "linux", Architecture: "amd64", Variant: "v3"})
	if assert.True(t, ok) {
		assert.Equal(t, "amd64", got.Platform.Architecture)
	}
}

func TestSelectArm64AcceptsArmV8(t *testing.T) {
	manifests := []ociimage.Descriptor{
		descriptor("linux", "arm", "v8"),
	}
	got, ok := Select(manifests, Platform{OS: "linux", Architecture: "arm64"})
	if assert.True(t, ok) {
		assert.Equal(t, "arm", got.Platform.Architecture)
	}
}

func TestSelectPreservesIndexOrder(t *testing.T) {
	manifests := []ociimage.Descriptor{
		descriptor("linux", "amd64", "v1"),
		descriptor("linux", "amd64", ""),
	}
	got, ok := Select(manifests, Platform{OS: "linux", Architecture: "amd64"})
	require := assert.New(t)
	require.True(ok)
	require.Equal("", got.Platform.Variant)
}
