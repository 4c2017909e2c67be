// Package gestiobill carries the embedded assets shared by the binaries.
package gestiobill

import "embed"

//go:embed migrations/*.sql
var MigrationsFS embed.FS
