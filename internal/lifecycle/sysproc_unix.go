//go:build unix

package lifecycle

import "syscall"

// detachedAttr puts the agent in its own process group so a terminal
// interrupt reaches the harness only; the harness then stops the agent.
func detachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
