// SPDX-License-Identifier: MIT

//go:build !windows

package backup

import "golang.org/x/sys/unix"

// fallbackOpenFiles is the bound used when the descriptor limit cannot be
// read.
const fallbackOpenFiles = 550

// maxOpenFiles derives the copy concurrency bound from RLIMIT_NOFILE: half
// the soft limit, clamped to [64, 8192], leaving headroom for the daemon's
// own descriptors.
func maxOpenFiles() int {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		return fallbackOpenFiles
	}
	return clampOpenFiles(int(lim.Cur / 2))
}
