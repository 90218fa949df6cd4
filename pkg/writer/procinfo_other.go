//go:build !linux && !darwin

package writer

import "os"

// statFile returns the size and modification time of path in seconds.
func statFile(path string) (size uint32, mtime uint32, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, 0, err
	}
	return clampU32(fi.Size()), clampU32(fi.ModTime().Unix()), nil
}

func processIDs() (pid, ppid uint32) {
	return uint32(os.Getpid()), uint32(os.Getppid())
}
