//go:build !unix

package printing

import "os/exec"

// killProcessGroupOnCancel keeps the default behavior of killing only the
// direct child.
func killProcessGroupOnCancel(*exec.Cmd) {}
