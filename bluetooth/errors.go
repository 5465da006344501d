// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

import (
	"errors"

	"golang.org/x/xerrors"
)

// Local precondition failures, detected without contacting the daemon.
var (
	ErrAlreadyBound       = errors.New("adapter already bound")
	ErrAdapterNotPresent  = errors.New("adapter not present")
	ErrAdapterRemoved     = errors.New("adapter removed while request in flight")
	ErrConflictingRequest = errors.New("conflicting discovery request in flight")
	ErrNoActiveSession    = errors.New("no active discovery session")
	ErrAlreadyRegistered  = errors.New("already registered")
	ErrNotRegistered      = errors.New("not registered")
	ErrAlreadyAttached    = errors.New("delegate already attached for device")
)

// wrapDaemonError surfaces a daemon failure on a caller's error path, keeping
// the original *DaemonError reachable through errors.As.
func wrapDaemonError(op string, derr *DaemonError) error {
	return xerrors.Errorf("%s: %w", op, derr)
}
