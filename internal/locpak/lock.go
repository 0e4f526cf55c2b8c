package locpak

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// acquireRunLock takes the exclusive rebuild lock under the state dir. A
// second instance running in the same repository fails fast instead of
// racing on build/ and dist/.
func acquireRunLock() (release func(), err error) {
	if err := os.MkdirAll(StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state dir %s: %v", StateDir, err)
	}
	lockPath := filepath.Join(StateDir, "lock")
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("another rebuild is already running (lock held on %s)", lockPath)
	}
	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}
