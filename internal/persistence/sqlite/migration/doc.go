// Package migration applies versioned SQL files to a SQLite database.
//
// Files are read from an fs.FS (usually an embed.FS compiled into the binary)
// and must be named {version}_{description}.sql, e.g. "001_inventory.sql".
// Applied versions are tracked in the schema_migrations table together with
// the checksum of the file, so a file edited after it was applied is reported
// instead of silently skipped.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewScanner(files), migration.NewExecutor(db), logger)
//	if err := manager.Run(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
