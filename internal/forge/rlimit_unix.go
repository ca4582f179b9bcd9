//go:build linux || darwin || freebsd || netbsd || openbsd

package forge

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// raiseOpenFileLimit raises the soft limit on open files to the hard limit.
func raiseOpenFileLimit() error {
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		return errors.WithStack(err)
	}
	limit.Cur = limit.Max
	return errors.WithStack(unix.Setrlimit(unix.RLIMIT_NOFILE, &limit))
}
