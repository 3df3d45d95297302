// Package host is the device framework the store plugs into.
//
// It plays the part an OS kernel plays for a character driver:
//   - allocates a device number (major:minor) per registered device
//   - exposes the device as a class entry and a node path
//   - owns file handles and the session behind each one
//   - moves caller memory across the boundary (UserBuffer), where a bad
//     buffer surfaces as a FAULT from the store
//   - tears everything down on Unregister
//
// Registration is staged and rolls back completed stages when a later
// stage fails, so a failed Register leaves no trace.
//
// Every dispatched operation can be journaled through a Recorder.
package host
