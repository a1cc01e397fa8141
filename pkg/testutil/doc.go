// Package testutil provides test helpers shared across modman packages:
// an in-memory filesystem with failure injection and builders for the
// archive formats mods ship in.
package testutil
