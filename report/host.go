package report

import (
	"golang.org/x/sys/unix"
)

// HostInfo identifies the machine a snapshot was taken on. Frame
// numbers are only comparable between snapshots of the same host.
type HostInfo struct {
	Hostname      string `json:"hostname"`
	KernelRelease string `json:"kernel_release"`
	Machine       string `json:"machine"`
}

// CurrentHost returns the HostInfo of the running host. Fields that
// cannot be determined are left empty.
func CurrentHost() HostInfo {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return HostInfo{}
	}
	return HostInfo{
		Hostname:      unix.ByteSliceToString(uts.Nodename[:]),
		KernelRelease: unix.ByteSliceToString(uts.Release[:]),
		Machine:       unix.ByteSliceToString(uts.Machine[:]),
	}
}
