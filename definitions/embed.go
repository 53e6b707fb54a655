// Package definitions embeds the default algorithm, CAP, category, axis,
// substitution and service catalog documents used when no definitions
// directory is configured.
package definitions

import (
	"embed"
	"io/fs"
)

//go:embed algorithms caps *.yaml
var files embed.FS

// FS returns the embedded definitions tree.
func FS() fs.FS { return files }
