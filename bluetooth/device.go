// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

import (
	"github.com/godbus/dbus/v5"
	"github.com/linuxdeepin/go-lib/strv"
)

// Device mirrors one remote device the daemon exposes under the bound
// adapter. Identity is the normalized Address; Path may change across
// sessions while Address stays stable, and the daemon may even re-address an
// existing object during incoming pairing.
type Device struct {
	Path             dbus.ObjectPath
	AdapterPath      dbus.ObjectPath
	Address          string
	Alias            string
	Name             string
	Icon             string
	Paired           bool
	Trusted          bool
	Blocked          bool
	Connected        bool
	ServicesResolved bool
	RSSI             int16
	Class            uint32
	UUIDs            strv.Strv
}

func newDevice(adapterPath, path dbus.ObjectPath, props map[string]dbus.Variant) *Device {
	d := &Device{
		Path:        path,
		AdapterPath: adapterPath,
	}
	d.applyProperties(props)
	return d
}

// applyProperties folds a property change set into the device and reports
// which of the watched properties were present.
func (d *Device) applyProperties(props map[string]dbus.Variant) {
	for name, value := range props {
		switch name {
		case "Address":
			d.Address = normalizeAddress(variantString(value, d.Address))
		case "Alias":
			d.Alias = variantString(value, d.Alias)
		case "Name":
			d.Name = variantString(value, d.Name)
		case "Icon":
			d.Icon = variantString(value, d.Icon)
		case "Paired":
			d.Paired = variantBool(value, d.Paired)
		case "Trusted":
			d.Trusted = variantBool(value, d.Trusted)
		case "Blocked":
			d.Blocked = variantBool(value, d.Blocked)
		case "Connected":
			d.Connected = variantBool(value, d.Connected)
		case "ServicesResolved":
			d.ServicesResolved = variantBool(value, d.ServicesResolved)
		case "RSSI":
			d.RSSI = variantInt16(value, d.RSSI)
		case "Class":
			d.Class = variantUint32(value, d.Class)
		case "UUIDs":
			d.UUIDs = strv.Strv(variantStrings(value, d.UUIDs))
		}
	}
}

func (d *Device) String() string {
	return marshalJSON(d)
}

// Gamepads that drop the link right after pairing unless trusted up front.
var trustableDeviceNames = strv.Strv{
	"PLAYSTATION(R)3 Controller",
	"Wireless Controller",
}

func (d *Device) isTrustable() bool {
	return trustableDeviceNames.Contains(d.Name)
}

// Devices returns a snapshot of the device registry.
func (a *Adapter) Devices() []*Device {
	a.mu.Lock()
	defer a.mu.Unlock()
	devices := make([]*Device, 0, len(a.devices))
	for _, d := range a.devices {
		devices = append(devices, d)
	}
	return devices
}

// DeviceByAddress looks a device up by its normalized address.
func (a *Adapter) DeviceByAddress(address string) *Device {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.devices[normalizeAddress(address)]
}

func (a *Adapter) deviceWithPathLocked(path dbus.ObjectPath) *Device {
	for _, d := range a.devices {
		if d.Path == path {
			return d
		}
	}
	return nil
}

func (a *Adapter) upsertDeviceLocked(path dbus.ObjectPath, props map[string]dbus.Variant) {
	if d := a.deviceWithPathLocked(path); d != nil {
		a.applyDevicePropertiesLocked(d, props)
		return
	}
	d := newDevice(a.path, path, props)
	if d.Address == "" {
		logger.Warning("ignoring device without address:", path)
		return
	}
	if old := a.devices[d.Address]; old != nil {
		logger.Warningf("device %s re-appeared at %s, dropping stale object %s",
			d.Address, path, old.Path)
		a.notifyLocked(func(o Observer) { o.DeviceRemoved(old) })
	}
	a.devices[d.Address] = d
	logger.Debug("device added:", d)
	a.notifyLocked(func(o Observer) { o.DeviceAdded(d) })
	a.maybeElevateTrustLocked(d)
}

func (a *Adapter) removeDeviceLocked(path dbus.ObjectPath) {
	d := a.deviceWithPathLocked(path)
	if d == nil {
		return
	}
	delete(a.devices, d.Address)
	a.cancelPairingContextLocked(d.Address)
	logger.Debug("device removed:", d)
	a.notifyLocked(func(o Observer) { o.DeviceRemoved(d) })
}

func (a *Adapter) applyDevicePropertiesLocked(d *Device, changed map[string]dbus.Variant) {
	oldAddress := d.Address
	oldPaired := d.Paired
	oldConnected := d.Connected
	oldResolved := d.ServicesResolved

	d.applyProperties(changed)

	if d.Address != oldAddress {
		// the daemon re-keyed the object during incoming pairing; the
		// registry follows the new identity, the object survives
		delete(a.devices, oldAddress)
		a.devices[d.Address] = d
		a.rekeyPairingContextLocked(oldAddress, d.Address)
		a.notifyLocked(func(o Observer) { o.DeviceAddressChanged(d, oldAddress) })
	}

	a.notifyLocked(func(o Observer) { o.DeviceChanged(d) })

	if d.Paired != oldPaired {
		a.notifyLocked(func(o Observer) { o.DevicePairedChanged(d, d.Paired) })
	}
	if d.Paired && !oldPaired {
		a.maybeElevateTrustLocked(d)
	}
	if d.Connected && !oldConnected && d.isTrustable() {
		a.maybeElevateTrustLocked(d)
	}
	if d.ServicesResolved && !oldResolved {
		a.notifyLocked(func(o Observer) { o.GattServicesDiscovered(d) })
	}
}

// maybeElevateTrustLocked auto-trusts devices that have just paired, and
// trustable devices on connect, so reconnects work without a prompt.
func (a *Adapter) maybeElevateTrustLocked(d *Device) {
	if d.Trusted {
		return
	}
	if !d.Paired && !(d.Connected && d.isTrustable()) {
		return
	}
	logger.Debugf("marking device %s trusted", d.Address)
	path := d.Path
	a.client.SetDeviceProperty(path, "Trusted", true, func(derr *DaemonError) {
		if derr != nil {
			logger.Warningf("failed to set device %s trusted: %v", path, derr)
		}
	})
}
