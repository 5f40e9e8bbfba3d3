//go:build linux

package catalog

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

var errNoBirthTime = errors.New("filesystem does not report birth time")

// inodeID returns "I<inode>D<birth time in ms>" for p.
func inodeID(p string) (string, error) {
	var st unix.Statx_t
	if err := unix.Statx(unix.AT_FDCWD, p, 0, unix.STATX_INO|unix.STATX_BTIME, &st); err != nil {
		return "", err
	}
	if st.Mask&unix.STATX_BTIME == 0 {
		return "", errNoBirthTime
	}
	ms := st.Btime.Sec*1000 + int64(st.Btime.Nsec)/1e6
	return fmt.Sprintf("I%dD%d", st.Ino, ms), nil
}
