// Package preflight provides readiness checks for the backend and the local
// paths cdbs depends on.
//
// These checks run in two contexts:
//   - The uploader calls CheckFiles before allocating upload slots, so an
//     unreadable file fails the command instead of a slot on the backend.
//   - The CLI "cdbs status" command uses RunAll to display directory access and
//     backend reachability.
package preflight
