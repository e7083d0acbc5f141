// ociregistry inspects and pulls images directly against the OCI/Docker
// Registry HTTP API v2, producing Docker V2 or OCI layout archives.
package main

import (
	"os"

	"github.com/ociregistry/ociregistry/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
