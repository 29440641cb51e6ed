// Package ioutils provides file system utilities for cog-bulk.
//
// This package contains functions for:
//   - Cleaning remote file names down to a portable character set
//   - Securing relative paths against traversal
//   - Directory creation
package ioutils
