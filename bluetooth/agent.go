// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

import (
	"github.com/godbus/dbus/v5"
	btcommon "github.com/linuxdeepin/bluetooth-daemon/common/bluetooth"
)

// PairingStatus is the outcome a delegate reports for an agent request.
type PairingStatus = btcommon.PairingStatus

const (
	PairingSuccess   = btcommon.PairingSuccess
	PairingRejected  = btcommon.PairingRejected
	PairingCancelled = btcommon.PairingCancelled
)

// PairingDelegate answers the daemon's pairing agent requests. Each respond
// callback must be invoked exactly once; the delegate runs without the core
// lock and may block, e.g. on user input.
type PairingDelegate interface {
	RequestPinCode(d *Device, respond func(pin string, status PairingStatus))
	DisplayPinCode(d *Device, pincode string)
	RequestPasskey(d *Device, respond func(passkey uint32, status PairingStatus))
	DisplayPasskey(d *Device, passkey uint32, entered uint16)
	RequestConfirmation(d *Device, passkey uint32, respond func(status PairingStatus))
	RequestAuthorization(d *Device, respond func(status PairingStatus))
	Cancel(d *Device)
}

// Pairing contexts are keyed by device address, not object path: the daemon
// may re-key a device's path mid-pairing, and the context must follow.
type pairingState struct {
	defaultDelegate PairingDelegate
	contexts        map[string]PairingDelegate
	active          *Device
}

func (p *pairingState) init() {
	p.contexts = make(map[string]PairingDelegate)
}

// SetPairingDelegate installs the delegate used for devices without a
// dedicated pairing context, typically the system pairing UI.
func (a *Adapter) SetPairingDelegate(d PairingDelegate) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pairing.defaultDelegate = d
}

// ExpectPairing arranges for delegate to handle agent requests for the
// device with the given address, overriding the default delegate.
func (a *Adapter) ExpectPairing(address string, delegate PairingDelegate) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pairing.contexts[normalizeAddress(address)] = delegate
}

// EndPairing removes the per-device pairing context again.
func (a *Adapter) EndPairing(address string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pairing.contexts, normalizeAddress(address))
}

func (a *Adapter) cancelPairingContextLocked(address string) {
	delete(a.pairing.contexts, address)
}

func (a *Adapter) rekeyPairingContextLocked(oldAddress, newAddress string) {
	if ctx, ok := a.pairing.contexts[oldAddress]; ok {
		delete(a.pairing.contexts, oldAddress)
		a.pairing.contexts[newAddress] = ctx
	}
}

func (a *Adapter) resetPairingLocked() {
	a.pairing.contexts = make(map[string]PairingDelegate)
	a.pairing.active = nil
}

// resolvePairing maps an agent request to (device, delegate). A nil delegate
// means the request has nobody to answer it and must be rejected.
func (a *Adapter) resolvePairing(device dbus.ObjectPath) (*Device, PairingDelegate) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.deviceWithPathLocked(device)
	if d == nil {
		return nil, nil
	}
	a.pairing.active = d
	if ctx, ok := a.pairing.contexts[d.Address]; ok {
		return d, ctx
	}
	return d, a.pairing.defaultDelegate
}

func (a *Adapter) finishPairingRequest(d *Device) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pairing.active == d {
		a.pairing.active = nil
	}
}

// AgentRequestPinCode handles the daemon asking for a legacy PIN code.
func (a *Adapter) AgentRequestPinCode(device dbus.ObjectPath, respond func(pin string, status PairingStatus)) {
	d, delegate := a.resolvePairing(device)
	if delegate == nil {
		logger.Debug("no pairing delegate, rejecting pin code request for", device)
		respond("", PairingRejected)
		return
	}
	delegate.RequestPinCode(d, func(pin string, status PairingStatus) {
		a.finishPairingRequest(d)
		respond(pin, status)
	})
}

func (a *Adapter) AgentDisplayPinCode(device dbus.ObjectPath, pincode string) {
	d, delegate := a.resolvePairing(device)
	if delegate == nil {
		return
	}
	delegate.DisplayPinCode(d, pincode)
	a.finishPairingRequest(d)
}

// AgentRequestPasskey handles the daemon asking for a numeric passkey.
func (a *Adapter) AgentRequestPasskey(device dbus.ObjectPath, respond func(passkey uint32, status PairingStatus)) {
	d, delegate := a.resolvePairing(device)
	if delegate == nil {
		logger.Debug("no pairing delegate, rejecting passkey request for", device)
		respond(0, PairingRejected)
		return
	}
	delegate.RequestPasskey(d, func(passkey uint32, status PairingStatus) {
		a.finishPairingRequest(d)
		respond(passkey, status)
	})
}

func (a *Adapter) AgentDisplayPasskey(device dbus.ObjectPath, passkey uint32, entered uint16) {
	d, delegate := a.resolvePairing(device)
	if delegate == nil {
		return
	}
	delegate.DisplayPasskey(d, passkey, entered)
	a.finishPairingRequest(d)
}

func (a *Adapter) AgentRequestConfirmation(device dbus.ObjectPath, passkey uint32, respond func(status PairingStatus)) {
	d, delegate := a.resolvePairing(device)
	if delegate == nil {
		logger.Debug("no pairing delegate, rejecting confirmation for", device)
		respond(PairingRejected)
		return
	}
	delegate.RequestConfirmation(d, passkey, func(status PairingStatus) {
		a.finishPairingRequest(d)
		respond(status)
	})
}

func (a *Adapter) AgentRequestAuthorization(device dbus.ObjectPath, respond func(status PairingStatus)) {
	d, delegate := a.resolvePairing(device)
	if delegate == nil {
		logger.Debug("no pairing delegate, rejecting authorization for", device)
		respond(PairingRejected)
		return
	}
	delegate.RequestAuthorization(d, func(status PairingStatus) {
		a.finishPairingRequest(d)
		respond(status)
	})
}

// AgentAuthorizeService decides service-level authorization without asking a
// delegate: paired devices get all services, everything else is refused.
func (a *Adapter) AgentAuthorizeService(device dbus.ObjectPath, uuid string, respond func(status PairingStatus)) {
	a.mu.Lock()
	d := a.deviceWithPathLocked(device)
	a.mu.Unlock()
	if d != nil && d.Paired {
		respond(PairingSuccess)
		return
	}
	logger.Debugf("refusing service %s for unpaired device %s", uuid, device)
	respond(PairingRejected)
}

// AgentCancel aborts whatever request is outstanding.
func (a *Adapter) AgentCancel() {
	a.mu.Lock()
	d := a.pairing.active
	a.pairing.active = nil
	var delegate PairingDelegate
	if d != nil {
		if ctx, ok := a.pairing.contexts[d.Address]; ok {
			delegate = ctx
		} else {
			delegate = a.pairing.defaultDelegate
		}
	}
	a.mu.Unlock()
	if d != nil && delegate != nil {
		delegate.Cancel(d)
	}
}
