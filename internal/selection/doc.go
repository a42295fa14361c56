// Package selection turns command-line path arguments into the list of local
// files for one upload batch.
//
// Directories are walked when recursion is requested, hidden entries are
// skipped, the optional MIME filter is applied by content sniffing, and the
// result is capped at the configured batch size. Because upload slots are
// matched to local files by name, two selected files may not share a base
// name.
package selection
