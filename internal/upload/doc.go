// Package upload runs the multi-file upload pipeline.
//
// A batch pairs backend-allocated Descriptors with local Sources and moves
// every file through four stages: read the bytes, PUT them to the file's
// pre-authorized destination, settle the file in the batch Tracker, and once
// nothing is outstanding issue exactly one confirmation call naming the files
// that succeeded.
//
// Per-file failures (ReadFailure, TransferFailure) are absorbed by the
// tracker so a batch always completes; only a failed confirmation is reported
// as a batch-level error. Outcome exposes both the succeeded and failed lists
// so the caller decides whether partial success is acceptable.
//
// A Pipeline holds at most one live batch. Start refuses a second one with
// ErrBatchInProgress until the first has been confirmed, and Abandon settles
// whatever is still outstanding so a hung transfer cannot pin a batch forever.
package upload
