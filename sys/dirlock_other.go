//go:build !unix

package sys

import "os"

// Platforms without flock get no cross-process exclusion; the lock file is
// still created so the directory layout is the same everywhere.
func lockFile(f *os.File) error { return nil }

func unlockFile(f *os.File) error { return nil }
