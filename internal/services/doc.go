// Package services defines shared utilities consumed by the upload pipeline
// and its backend integrations.
//
// Key responsibilities:
//   - Context helpers that stamp batch IDs, filenames, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent exit codes and retry decisions.
//
// Backend clients live in subpackages (see cdbsapi) and report failures with
// these markers so callers can classify them without string matching.
package services
