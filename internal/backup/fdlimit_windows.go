// SPDX-License-Identifier: MIT

//go:build windows

package backup

// maxOpenFiles returns a fixed bound; Windows has no RLIMIT_NOFILE to
// derive one from.
func maxOpenFiles() int { return 8192 }
