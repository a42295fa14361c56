// Package history records upload batches in SQLite.
//
// Every batch is written before its first file is dispatched, each file's
// final state is written as it settles, and the confirmation result closes the
// record. A batch still marked running when the CLI next starts belonged to a
// process that exited early; MarkInterrupted moves it to interrupted so its
// unsettled files show up as failed and can be retried.
//
// Schema changes go in a new numbered file under migrations/; applied
// versions are tracked in schema_migrations.
package history
