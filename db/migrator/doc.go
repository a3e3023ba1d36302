// Package migrator applies forward-only SQL migrations to a database.
//
// Features:
//   - Discovers migration files in a directory on a vfs.FileSystem, filtered by
//     extension and sorted lexicographically by filename
//   - Tracks applied migrations in a ledger table keyed by a unique filename
//   - Executes each pending migration and its ledger insert in one transaction
//   - Aborts the run at the first failure, leaving later migrations untouched
//
// A migration whose filename is already recorded is never executed again, even
// if the contents of the file have changed since.
package migrator
