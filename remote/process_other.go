// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

//go:build !linux

package remote

import "errors"

// LiveProcess is a Mem backing for a running process. Live-process
// attach is only implemented for Linux in this tree; other platforms
// can still operate on Snapshot backings.
type LiveProcess struct {
	*Cache
}

// OpenProcess is unsupported on this platform.
func OpenProcess(pid int) (*LiveProcess, error) {
	return nil, errors.New("remote: live process attach is not implemented on this platform")
}
