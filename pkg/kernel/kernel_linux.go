//go:build linux

package kernel

import (
	"golang.org/x/sys/unix"
)

// utsName mirrors the Release field shape of unix.Utsname so ParseRelease
// can work from the raw syscall result.
type utsName struct {
	Release [65]byte
}

func uname() (*utsName, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return nil, err
	}
	return &utsName{Release: uts.Release}, nil
}

// GetKernelVersion gets the current kernel version.
func GetKernelVersion() (*VersionInfo, error) {
	uts, err := uname()
	if err != nil {
		return nil, err
	}
	// Remove the \x00 padding from the release so ParseRelease sees only the text
	return ParseRelease(unix.ByteSliceToString(uts.Release[:]))
}

// CheckKernelVersion checks if current kernel is newer than (or equal to) the given version.
func CheckKernelVersion(k, major, minor int) (bool, error) {
	v, err := GetKernelVersion()
	if err != nil {
		return false, err
	}
	if CompareKernelVersion(*v, VersionInfo{Kernel: k, Major: major, Minor: minor}) < 0 {
		return false, nil
	}
	return true, nil
}
