//go:build !linux

package hostbuf

func Available() (uint64, bool) { return 0, false }
