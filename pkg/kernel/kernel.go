// Package kernel parses and compares Linux kernel release strings. It exists
// so that packages gating behaviour on kernel version (see pkg/tcpinfo) don't
// need to pull in a container-runtime dependency just to call uname(2).
package kernel

import (
	"fmt"
	"strings"
)

// VersionInfo holds a parsed kernel release, e.g. "6.2.0-39-generic" becomes
// {Kernel: 6, Major: 2, Minor: 0}. Flavor carries anything after the first
// three dot-separated fields.
type VersionInfo struct {
	Kernel int
	Major  int
	Minor  int
	Flavor string
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("%d.%d.%d%s", v.Kernel, v.Major, v.Minor, v.Flavor)
}

// ParseRelease parses a uname release string into a VersionInfo. Only the
// leading numeric dot-separated fields are significant; everything from the
// first non-numeric rune onward (e.g. "-39-generic", "-rc1") is kept verbatim
// as Flavor.
func ParseRelease(release string) (*VersionInfo, error) {
	var (
		kernel, major, minor int
		flavor               string
	)

	n, err := fmt.Sscanf(release, "%d.%d.%d", &kernel, &major, &minor)
	if n == 0 && err != nil {
		return nil, fmt.Errorf("kernel: unable to parse release %q: %w", release, err)
	}

	// Everything from the first rune that isn't a digit or '.' is the flavor
	// suffix (e.g. "-39-generic", "-rc1").
	if idx := strings.IndexFunc(release, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	}); idx >= 0 {
		flavor = release[idx:]
	}

	return &VersionInfo{Kernel: kernel, Major: major, Minor: minor, Flavor: flavor}, nil
}

// CompareKernelVersion compares two VersionInfo structs. Returns -1 if a < b,
// 0 if a == b, 1 if a > b, comparing Kernel, then Major, then Minor.
func CompareKernelVersion(a, b VersionInfo) int {
	if a.Kernel != b.Kernel {
		return cmp(a.Kernel, b.Kernel)
	}
	if a.Major != b.Major {
		return cmp(a.Major, b.Major)
	}
	return cmp(a.Minor, b.Minor)
}

func cmp(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
