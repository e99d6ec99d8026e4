//go:build !windows

package accel

func probe() bool {
	return false
}
