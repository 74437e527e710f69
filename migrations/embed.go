// Package migrations bundles the SQL schema migrations into the binary.
package migrations

import "embed"

// FS holds every *.sql migration, named for golang-migrate
// (<version>_<name>.up.sql / .down.sql).
//
//go:embed *.sql
var FS embed.FS
