//go:build !linux

package sysfsbus

import "errors"

func ioctl(f uintptr, op uint, arg uintptr) error {
	return errors.New("sysfsbus: ioctl not supported on this platform")
}
