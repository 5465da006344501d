// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

// Observer receives adapter and device events. Observers are notified
// synchronously from the goroutine processing the triggering event while the
// core holds its state lock; an observer must hand off to its own goroutine
// instead of calling back into the Adapter.
type Observer interface {
	AdapterPresentChanged(present bool)
	AdapterPoweredChanged(powered bool)
	AdapterDiscoverableChanged(discoverable bool)
	AdapterDiscoveringChanged(discovering bool)

	DeviceAdded(d *Device)
	DeviceRemoved(d *Device)
	DeviceChanged(d *Device)
	DeviceAddressChanged(d *Device, oldAddress string)
	DevicePairedChanged(d *Device, paired bool)
	GattServicesDiscovered(d *Device)
}

// NopObserver implements Observer with no-ops, for embedding.
type NopObserver struct{}

func (NopObserver) AdapterPresentChanged(present bool)           {}
func (NopObserver) AdapterPoweredChanged(powered bool)           {}
func (NopObserver) AdapterDiscoverableChanged(discoverable bool) {}
func (NopObserver) AdapterDiscoveringChanged(discovering bool)   {}
func (NopObserver) DeviceAdded(d *Device)                        {}
func (NopObserver) DeviceRemoved(d *Device)                      {}
func (NopObserver) DeviceChanged(d *Device)                      {}
func (NopObserver) DeviceAddressChanged(d *Device, old string)   {}
func (NopObserver) DevicePairedChanged(d *Device, paired bool)   {}
func (NopObserver) GattServicesDiscovered(d *Device)             {}

func (a *Adapter) AddObserver(o Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, existing := range a.observers {
		if existing == o {
			return
		}
	}
	a.observers = append(a.observers, o)
}

func (a *Adapter) RemoveObserver(o Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, existing := range a.observers {
		if existing == o {
			a.observers = append(a.observers[:i], a.observers[i+1:]...)
			return
		}
	}
}

func (a *Adapter) notifyLocked(fn func(o Observer)) {
	for _, o := range a.observers {
		fn(o)
	}
}
