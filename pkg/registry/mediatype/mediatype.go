// Package mediatype enumerates the Docker/OCI media type identifiers this
// client recognizes on registry responses.
package mediatype

// MediaType is a closed enumeration of the content types this client
// understands on the wire.
type MediaType string

const (
	DockerManifestV2     MediaType = "application/vnd.docker.distribution.manifest.v2+json"
	DockerManifestListV2 MediaType = "application/vnd.docker.distribution.manifest.list.v2+json"
	DockerContainerImage MediaType = "application/vnd.docker.container.image.v1+json"
	DockerLayerGzip      MediaType = "application/vnd.docker.image.rootfs.diff.tar.gzip"
	DockerLayerForeign   MediaType = "application/vnd.docker.image.rootfs.diff.tar.gzip.foreign"

	OCIManifest MediaType = "application/vnd.oci.image.manifest.v1+json"
	OCIIndex    MediaType = "application/vnd.oci.image.index.v1+json"
	OCIConfig   MediaType = "application/vnd.oci.image.config.v1+json"
	OCILayer    MediaType = "application/vnd.oci.image.layer.v1.tar+gzip"
)

// AcceptHeader is the default Accept header value sent on manifest
// requests, in registry-preference order.
const AcceptHeader = string(DockerManifestV2) + ", " + string(DockerManifestListV2) + ", " + string(OCIManifest) + ", " + string(OCIIndex) + ", */*"

// IsManifest reports whether mt identifies a single-platform image manifest.
func IsManifest(mt MediaType) bool {
	return mt == DockerManifestV2 || mt == OCIManifest
}

// IsIndex reports whether mt identifies a multi-platform manifest list / index.
func IsIndex(mt MediaType) bool {
	return mt == DockerManifestListV2 || mt == OCIIndex
}
