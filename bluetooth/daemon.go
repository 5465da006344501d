// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

import (
	"github.com/godbus/dbus/v5"
	btcommon "github.com/linuxdeepin/bluetooth-daemon/common/bluetooth"
)

// Aliased so daemon client implementations need only common/bluetooth.
type (
	DaemonError = btcommon.DaemonError
	Outcome     = btcommon.Outcome
)

const (
	OutcomeUnknown        = btcommon.OutcomeUnknown
	OutcomeAlreadyExists  = btcommon.OutcomeAlreadyExists
	OutcomeDoesNotExist   = btcommon.OutcomeDoesNotExist
	OutcomeInProgress     = btcommon.OutcomeInProgress
	OutcomeNotReady       = btcommon.OutcomeNotReady
	OutcomeUnsupported    = btcommon.OutcomeUnsupported
	OutcomeNoResponse     = btcommon.OutcomeNoResponse
	OutcomeUnknownAdapter = btcommon.OutcomeUnknownAdapter
	OutcomeFailed         = btcommon.OutcomeFailed
	OutcomeRejected       = btcommon.OutcomeRejected
	OutcomeCanceled       = btcommon.OutcomeCanceled
)

// DaemonClient is the capability used to reach the bluetooth daemon.
//
// Every request is fire-and-forget: the call returns immediately and the
// done callback is invoked exactly once, later and from a different
// goroutine, with nil on success. Implementations must never invoke done
// synchronously from within the request call; the core issues requests while
// holding its state lock and completion handlers take that lock again.
//
// The snapshot getters (Adapters, AdapterProperties, DevicesForAdapter) are
// the only synchronous operations; they serve the bind-time seeding of state.
type DaemonClient interface {
	StartDiscovery(adapter dbus.ObjectPath, done func(err *DaemonError))
	StopDiscovery(adapter dbus.ObjectPath, done func(err *DaemonError))
	SetDiscoveryFilter(adapter dbus.ObjectPath, filter map[string]dbus.Variant, done func(err *DaemonError))

	RegisterAgent(agent dbus.ObjectPath, capability string, done func(err *DaemonError))
	UnregisterAgent(agent dbus.ObjectPath, done func(err *DaemonError))
	RequestDefaultAgent(agent dbus.ObjectPath, done func(err *DaemonError))

	RegisterProfile(profile dbus.ObjectPath, uuid string, options map[string]dbus.Variant, done func(err *DaemonError))
	UnregisterProfile(profile dbus.ObjectPath, done func(err *DaemonError))

	RegisterApplication(adapter, application dbus.ObjectPath, done func(err *DaemonError))
	UnregisterApplication(adapter, application dbus.ObjectPath, done func(err *DaemonError))

	SetAdapterProperty(adapter dbus.ObjectPath, name string, value interface{}, done func(err *DaemonError))
	SetDeviceProperty(device dbus.ObjectPath, name string, value interface{}, done func(err *DaemonError))

	Adapters() []dbus.ObjectPath
	AdapterProperties(adapter dbus.ObjectPath) map[string]dbus.Variant
	DevicesForAdapter(adapter dbus.ObjectPath) map[dbus.ObjectPath]map[string]dbus.Variant
}

// DaemonNotifyHandler receives the daemon's object and property notification
// stream. The Adapter implements it; a DaemonClient delivers notifications
// from its signal dispatch goroutine.
type DaemonNotifyHandler interface {
	AdapterAdded(path dbus.ObjectPath, props map[string]dbus.Variant)
	AdapterRemoved(path dbus.ObjectPath)
	AdapterPropertiesChanged(path dbus.ObjectPath, changed map[string]dbus.Variant)
	DeviceAdded(path dbus.ObjectPath, props map[string]dbus.Variant)
	DeviceRemoved(path dbus.ObjectPath)
	DevicePropertiesChanged(path dbus.ObjectPath, changed map[string]dbus.Variant)
}
