// Package filesystem provides filesystem implementations for modman.
//
// This package contains implementations of the types.FS interface,
// the standard OS filesystem and an afero-backed filesystem.
package filesystem
