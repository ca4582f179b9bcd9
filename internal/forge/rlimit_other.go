//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package forge

func raiseOpenFileLimit() error {
	return nil
}
