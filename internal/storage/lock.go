package storage

import (
	"os"

	"golang.org/x/sys/unix"
)

// acquireLock takes a cooperative, advisory exclusive lock on path+".lock"
// (spec.md §5 "Advisory locking"). It does not prevent a process from
// opening the database file directly; it only coordinates engine instances
// that honor it.
func acquireLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// releaseLock unlocks and closes the advisory lock file, if held.
func releaseLock(f *os.File) {
	if f == nil {
		return
	}
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
	f.Close()
}
