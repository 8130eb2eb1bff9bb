package medium

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// lockFileName is the advisory lock file inside the data directory.
// Dotted so slot listing skips it.
const lockFileName = ".inkvault.lock"

const lockMaxAttempts = 5

// dirLock is an exclusive flock held for the medium's lifetime. It rejects
// a second vault engine on the same data directory; it does not protect
// against other programs editing the files directly.
type dirLock struct {
	path string
	file *os.File
}

// acquireDirLock takes the lock non-blocking. Returns [ErrLocked] when
// another process holds it.
//
// After flock succeeds the inode is re-verified against the path: the
// previous holder may have removed and a third process recreated the lock
// file while we were between open and flock. On mismatch the acquire
// retries with the fresh file.
func acquireDirLock(path string) (*dirLock, error) {
	for range lockMaxAttempts {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
		if err != nil {
			return nil, fmt.Errorf("medium: open lock file: %w", err)
		}

		err = unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err != nil {
			_ = file.Close()

			if err == unix.EWOULDBLOCK {
				return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
			}

			return nil, fmt.Errorf("medium: flock: %w", err)
		}

		var openStat, pathStat unix.Stat_t

		if err := unix.Fstat(int(file.Fd()), &openStat); err != nil {
			releaseFlock(file)

			return nil, fmt.Errorf("medium: fstat lock file: %w", err)
		}

		if err := unix.Stat(path, &pathStat); err != nil || pathStat.Ino != openStat.Ino {
			releaseFlock(file)

			continue
		}

		return &dirLock{path: path, file: file}, nil
	}

	return nil, fmt.Errorf("%w (%s): lock file kept changing", ErrLocked, path)
}

// release removes the lock file while still holding the lock, then
// unlocks and closes. That order keeps waiters from locking a file that
// is about to disappear.
func (l *dirLock) release() {
	if l.file == nil {
		return
	}

	_ = os.Remove(l.path)

	releaseFlock(l.file)

	l.file = nil
}

func releaseFlock(file *os.File) {
	_ = unix.Flock(int(file.Fd()), unix.LOCK_UN)
	_ = file.Close()
}
