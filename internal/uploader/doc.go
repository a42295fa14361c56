// Package uploader runs one upload batch end to end for the CLI.
//
// It holds a flock on <state_dir>/upload.lock so only one batch runs per state
// directory, reconciles batches left running by a crashed process, checks
// that the selected files are readable, allocates upload slots on the
// backend, pairs them with the local files by name, and drives the upload
// pipeline to confirmation. Every batch and each file's result is recorded in
// the history store when history is enabled, which is what makes Retry
// possible.
package uploader
