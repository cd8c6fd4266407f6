// Package logging sets up structured JSON logging to a size-rotated file
// under the data directory, optionally mirrored to stderr, and reads those
// logs back for the logs command.
//
// Handlers are wrapped with slog-context so attributes attached to a
// context (pass_id, query_id) appear on every record logged with it.
package logging
