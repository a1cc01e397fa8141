// Package transaction stages filesystem changes and applies them all at once.
//
// A Tx implements types.FS over a base filesystem. Writes, deletes and
// directory changes are recorded in an overlay instead of touching the base,
// and reads through the Tx see the staged state. Commit snapshots every path
// the staged operations touch, journals the snapshots next to the state
// directory, runs the operations as one synthfs pipeline and, when any of
// them fails, puts every snapshot back. A journal left behind by a crash is
// replayed by Recover before the next operation starts.
package transaction
