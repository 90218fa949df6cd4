package writer

import "golang.org/x/sys/unix"

// statFile returns the size and modification time of path in seconds.
func statFile(path string) (size uint32, mtime uint32, err error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, 0, err
	}
	return clampU32(st.Size), clampU32(int64(st.Mtimespec.Sec)), nil
}

func processIDs() (pid, ppid uint32) {
	return uint32(unix.Getpid()), uint32(unix.Getppid())
}
