// Command cdbs uploads local files into CDBS catalog objects.
//
// The CLI wraps internal packages with a Cobra command tree. "cdbs upload"
// selects files, allocates upload slots on the backend, streams every file to
// its destination concurrently, and confirms the batch once every transfer
// has settled. Interrupting an upload abandons the unfinished files and still
// confirms the ones that made it. Each batch is recorded locally so "cdbs
// history" can list it and "cdbs retry" can re-send what failed.
//
// Other commands check readiness ("cdbs status") and manage the TOML
// configuration ("cdbs config init|validate"). Global flags such as --config
// are shared via the commandContext.
package main
