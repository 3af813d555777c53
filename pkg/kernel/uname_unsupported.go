//go:build !linux
// +build !linux

package kernel

import (
	"errors"
)

// utsName represents the system name structure. It is defined here to make it
// portable as it is available on Linux but not on other platforms this
// package builds for.
type utsName struct {
	Release [65]byte
}

func uname() (*utsName, error) {
	return nil, errors.New("kernel version detection is not available on this platform")
}

// GetKernelVersion gets the current kernel version. Kernel-version-gated
// behaviour (pkg/tcpinfo/init_linux.go) is Linux-only, so non-Linux builds
// only need GetKernelVersion/CheckKernelVersion to exist, not to succeed.
func GetKernelVersion() (*VersionInfo, error) {
	_, err := uname()
	return nil, err
}

// CheckKernelVersion checks if current kernel is newer than (or equal to) the given version.
func CheckKernelVersion(k, major, minor int) (bool, error) {
	_, err := GetKernelVersion()
	return false, err
}
