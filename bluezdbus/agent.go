// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluezdbus

import (
	"github.com/godbus/dbus/v5"
	btcommon "github.com/linuxdeepin/bluetooth-daemon/common/bluetooth"
)

const agentInterface = "org.bluez.Agent1"

// AgentHandler answers the daemon's pairing requests. Each respond callback
// is invoked exactly once; the bus method blocks until it is.
type AgentHandler interface {
	AgentRequestPinCode(device dbus.ObjectPath, respond func(pin string, status btcommon.PairingStatus))
	AgentDisplayPinCode(device dbus.ObjectPath, pinCode string)
	AgentRequestPasskey(device dbus.ObjectPath, respond func(passkey uint32, status btcommon.PairingStatus))
	AgentDisplayPasskey(device dbus.ObjectPath, passkey uint32, entered uint16)
	AgentRequestConfirmation(device dbus.ObjectPath, passkey uint32, respond func(status btcommon.PairingStatus))
	AgentRequestAuthorization(device dbus.ObjectPath, respond func(status btcommon.PairingStatus))
	AgentAuthorizeService(device dbus.ObjectPath, uuid string, respond func(status btcommon.PairingStatus))
	AgentCancel()
}

// Agent is the org.bluez.Agent1 object this daemon exports.
type Agent struct {
	handler AgentHandler
}

func NewAgent(handler AgentHandler) *Agent {
	return &Agent{handler: handler}
}

func (*Agent) GetInterfaceName() string {
	return agentInterface
}

func statusToBusError(status btcommon.PairingStatus) *dbus.Error {
	switch status {
	case btcommon.PairingSuccess:
		return nil
	case btcommon.PairingCancelled:
		return btcommon.ErrCanceled
	default:
		return btcommon.ErrRejected
	}
}

// Release gets called when the daemon unregisters the agent; nothing to
// clean up here.
func (a *Agent) Release() *dbus.Error {
	logger.Info("dbus call agent Release")
	return nil
}

// RequestPinCode gets called for legacy devices that authenticate with an
// alphanumeric pin of 1-16 characters.
func (a *Agent) RequestPinCode(device dbus.ObjectPath) (pinCode string, busErr *dbus.Error) {
	logger.Infof("dbus call agent RequestPinCode with device %v", device)
	type result struct {
		pin    string
		status btcommon.PairingStatus
	}
	ch := make(chan result, 1)
	a.handler.AgentRequestPinCode(device, func(pin string, status btcommon.PairingStatus) {
		ch <- result{pin, status}
	})
	r := <-ch
	return r.pin, statusToBusError(r.status)
}

func (a *Agent) DisplayPinCode(device dbus.ObjectPath, pinCode string) *dbus.Error {
	logger.Infof("dbus call agent DisplayPinCode with device %v and pinCode %s", device, pinCode)
	a.handler.AgentDisplayPinCode(device, pinCode)
	return nil
}

// RequestPasskey gets called when the daemon needs a numeric passkey
// between 0 and 999999.
func (a *Agent) RequestPasskey(device dbus.ObjectPath) (passkey uint32, busErr *dbus.Error) {
	logger.Infof("dbus call agent RequestPasskey with device %v", device)
	type result struct {
		passkey uint32
		status  btcommon.PairingStatus
	}
	ch := make(chan result, 1)
	a.handler.AgentRequestPasskey(device, func(passkey uint32, status btcommon.PairingStatus) {
		ch <- result{passkey, status}
	})
	r := <-ch
	return r.passkey, statusToBusError(r.status)
}

// DisplayPasskey may be called multiple times during one pairing as the
// remote side types; entered counts the keys typed so far.
func (a *Agent) DisplayPasskey(device dbus.ObjectPath, passkey uint32, entered uint16) *dbus.Error {
	logger.Infof("dbus call agent DisplayPasskey with device %v, passkey %d and entered %d",
		device, passkey, entered)
	a.handler.AgentDisplayPasskey(device, passkey, entered)
	return nil
}

func (a *Agent) RequestConfirmation(device dbus.ObjectPath, passkey uint32) *dbus.Error {
	logger.Infof("dbus call agent RequestConfirmation with device %v and passkey %d", device, passkey)
	ch := make(chan btcommon.PairingStatus, 1)
	a.handler.AgentRequestConfirmation(device, passkey, func(status btcommon.PairingStatus) {
		ch <- status
	})
	return statusToBusError(<-ch)
}

func (a *Agent) RequestAuthorization(device dbus.ObjectPath) *dbus.Error {
	logger.Infof("dbus call agent RequestAuthorization with device %v", device)
	ch := make(chan btcommon.PairingStatus, 1)
	a.handler.AgentRequestAuthorization(device, func(status btcommon.PairingStatus) {
		ch <- status
	})
	return statusToBusError(<-ch)
}

func (a *Agent) AuthorizeService(device dbus.ObjectPath, uuid string) *dbus.Error {
	logger.Infof("dbus call agent AuthorizeService with device %v and uuid %s", device, uuid)
	ch := make(chan btcommon.PairingStatus, 1)
	a.handler.AgentAuthorizeService(device, uuid, func(status btcommon.PairingStatus) {
		ch <- status
	})
	return statusToBusError(<-ch)
}

func (a *Agent) Cancel() *dbus.Error {
	logger.Info("dbus call agent Cancel")
	a.handler.AgentCancel()
	return nil
}
