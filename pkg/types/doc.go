// Package types holds the small interfaces shared across modman packages:
// the filesystem surface and the progress sink.
package types
