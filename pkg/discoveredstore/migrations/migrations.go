// Package migrations embeds the snapshot-cache database schema,
// generalizing pkg/database's go-bindata migration asset to
// golang-migrate/v4's iofs source (mirrors
// pkg/sqlstore/impl/system/migrations, swapping the code-generated
// bindata reader for a build-time embed).
package migrations

import "embed"

//go:embed files/*.sql
var FS embed.FS
