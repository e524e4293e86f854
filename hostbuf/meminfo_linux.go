//go:build linux

package hostbuf

import "golang.org/x/sys/unix"

// Available reports the free host RAM in bytes.
func Available() (uint64, bool) {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return 0, false
	}
	return uint64(si.Freeram) * uint64(si.Unit), true
}
