//go:build !unix && !windows

package lifecycle

import "syscall"

func detachedAttr() *syscall.SysProcAttr {
	return nil
}
