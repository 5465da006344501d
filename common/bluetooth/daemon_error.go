// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

import "fmt"

// DaemonError is an error reported by the bluetooth daemon for a single
// request, as a (name, message) pair.
type DaemonError struct {
	Name    string
	Message string
}

func (e *DaemonError) Error() string {
	return fmt.Sprintf("daemon error %s: %s", e.Name, e.Message)
}

// Outcome is the classification of daemon error names into the taxonomy the
// management core acts on. Every name outside the table maps to
// OutcomeUnknown.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeAlreadyExists
	OutcomeDoesNotExist
	OutcomeInProgress
	OutcomeNotReady
	OutcomeUnsupported
	OutcomeNoResponse
	OutcomeUnknownAdapter
	OutcomeFailed
	OutcomeRejected
	OutcomeCanceled
)

func (e *DaemonError) Outcome() Outcome {
	switch e.Name {
	case ErrNameAlreadyExists:
		return OutcomeAlreadyExists
	case ErrNameDoesNotExist:
		return OutcomeDoesNotExist
	case ErrNameInProgress:
		return OutcomeInProgress
	case ErrNameNotReady:
		return OutcomeNotReady
	case ErrNameNotSupported:
		return OutcomeUnsupported
	case ErrNameNoResponse:
		return OutcomeNoResponse
	case ErrNameUnknownAdapter:
		return OutcomeUnknownAdapter
	case ErrNameFailed:
		return OutcomeFailed
	case ErrNameRejected:
		return OutcomeRejected
	case ErrNameCanceled:
		return OutcomeCanceled
	default:
		return OutcomeUnknown
	}
}

// PairingStatus is the outcome a pairing delegate reports for an agent
// request.
type PairingStatus int

const (
	PairingSuccess PairingStatus = iota
	PairingRejected
	PairingCancelled
)
