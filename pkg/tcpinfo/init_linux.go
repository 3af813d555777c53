//go:build linux

package tcpinfo

import (
	"fmt"

	"github.com/satgroupe/fmb-gateway/pkg/kernel"
)

var linuxKernelVersion *kernel.VersionInfo

var (
	kernelVersionIsAtLeast_2_6_2 = false
	kernelVersionIsAtLeast_3_15  = false
	kernelVersionIsAtLeast_4_1   = false
	kernelVersionIsAtLeast_4_2   = false
	kernelVersionIsAtLeast_4_6   = false
	kernelVersionIsAtLeast_4_9   = false
	kernelVersionIsAtLeast_4_10  = false
	kernelVersionIsAtLeast_4_18  = false
	kernelVersionIsAtLeast_4_19  = false
	kernelVersionIsAtLeast_5_4   = false
	kernelVersionIsAtLeast_5_5   = false
	kernelVersionIsAtLeast_6_2   = false
)

// versionGates is ordered oldest-first; adaptToKernelVersion walks it
// newest-first and flips on every gate at or below the running kernel.
var versionGates = []struct {
	version kernel.VersionInfo
	flag    *bool
}{
	{kernel.VersionInfo{Kernel: 2, Major: 6, Minor: 2}, &kernelVersionIsAtLeast_2_6_2},
	{kernel.VersionInfo{Kernel: 3, Major: 15, Minor: 0}, &kernelVersionIsAtLeast_3_15},
	{kernel.VersionInfo{Kernel: 4, Major: 1, Minor: 0}, &kernelVersionIsAtLeast_4_1},
	{kernel.VersionInfo{Kernel: 4, Major: 2, Minor: 0}, &kernelVersionIsAtLeast_4_2},
	{kernel.VersionInfo{Kernel: 4, Major: 6, Minor: 0}, &kernelVersionIsAtLeast_4_6},
	{kernel.VersionInfo{Kernel: 4, Major: 9, Minor: 0}, &kernelVersionIsAtLeast_4_9},
	{kernel.VersionInfo{Kernel: 4, Major: 10, Minor: 0}, &kernelVersionIsAtLeast_4_10},
	{kernel.VersionInfo{Kernel: 4, Major: 18, Minor: 0}, &kernelVersionIsAtLeast_4_18},
	{kernel.VersionInfo{Kernel: 4, Major: 19, Minor: 0}, &kernelVersionIsAtLeast_4_19},
	{kernel.VersionInfo{Kernel: 5, Major: 4, Minor: 0}, &kernelVersionIsAtLeast_5_4},
	{kernel.VersionInfo{Kernel: 5, Major: 5, Minor: 0}, &kernelVersionIsAtLeast_5_5},
	{kernel.VersionInfo{Kernel: 6, Major: 2, Minor: 0}, &kernelVersionIsAtLeast_6_2},
}

func init() {
	v, err := kernel.GetKernelVersion()
	if err != nil {
		panic(fmt.Errorf("tcpinfo: getting kernel version: %w", err))
	}
	linuxKernelVersion = v
	adaptToKernelVersion()
}

func adaptToKernelVersion() {
	for i := len(versionGates) - 1; i >= 0; i-- {
		if kernel.CompareKernelVersion(*linuxKernelVersion, versionGates[i].version) >= 0 {
			for j := i; j >= 0; j-- {
				*versionGates[j].flag = true
			}
			return
		}
		*versionGates[i].flag = false // needed if tests override linuxKernelVersion directly
	}
}
