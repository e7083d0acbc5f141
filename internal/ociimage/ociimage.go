// Package ociimage adapts the github.com/opencontainers/image-spec wire
// types to this client's needs: Manifest, Index, Descriptor, Platform and
// ImageConfig are all expressed in terms of the OCI spec's own vocabulary
// rather than hand-rolled JSON structs, since that vocabulary *is* the
// wire format this client parses.
package ociimage

import (
	ocidigest "github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Descriptor is the OCI spec descriptor: {mediaType, digest, size,
// platform?, annotations?, urls?}.
type Descriptor = ocispec.Descriptor

// Manifest is the OCI/Docker leaf manifest: {schemaVersion, mediaType,
// config, layers}.
type Manifest = ocispec.Manifest

// Index is the OCI/Docker multi-arch manifest list: {schemaVersion,
// mediaType, manifests}.
type Index = ocispec.Index

// Platform is the OCI spec platform descriptor embedded in index entries.
type Platform = ocispec.Platform

// ImageConfig mirrors the OCI image config JSON document: architecture,
// os, variant, config (runtime config), rootfs (type + diff_ids), history.
type ImageConfig = ocispec.Image

// RootFS is the rootfs.{type, diff_ids} portion of ImageConfig.
type RootFS = ocispec.RootFS

// ParseDigest converts a canonical digest string into the OCI spec's
// digest.Digest, used only at the JSON (de)serialization boundary. This
// client's own pkg/registry/digest.Digest is the type used everywhere else.
func ParseDigest(s string) (ocidigest.Digest, error) {
	d := ocidigest.Digest(s)
	return d, d.Validate()
}
