// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

import (
	"sync"

	"github.com/godbus/dbus/v5"
	btcommon "github.com/linuxdeepin/bluetooth-daemon/common/bluetooth"
	"github.com/linuxdeepin/go-lib/strv"
)

// Adapter is the management core for the single tracked bluetooth adapter.
// It binds to whichever daemon adapter object shows up first, mirrors its
// properties and device registry, and owns discovery, pairing agent, profile
// and GATT application state.
//
// One mutex guards all state. Daemon requests are issued with the lock held;
// their completions arrive later on other goroutines and take the lock again.
// A generation counter stamps every in-flight request so completions that
// straddle an unbind are answered with ErrAdapterRemoved instead of touching
// the state of a later binding.
type Adapter struct {
	client    DaemonClient
	agentPath dbus.ObjectPath
	cfg       *config

	mu         sync.Mutex
	path       dbus.ObjectPath
	generation uint64
	stopped    bool

	address      string
	name         string
	powered      bool
	discoverable bool
	discovering  bool
	uuids        strv.Strv

	devices   map[string]*Device
	discovery discoveryState
	profiles  map[string]*registeredProfile
	released  map[string]*registeredProfile
	gatt      gattState
	pairing   pairingState

	observers []Observer
}

func NewAdapter(client DaemonClient, agentPath dbus.ObjectPath) *Adapter {
	a := &Adapter{
		client:    client,
		agentPath: agentPath,
		devices:   make(map[string]*Device),
		profiles:  make(map[string]*registeredProfile),
		released:  make(map[string]*registeredProfile),
	}
	a.gatt.init()
	a.pairing.init()
	return a
}

// Start binds to the first adapter the daemon already knows about, if any.
// Binding registers the pairing agent as a side effect.
func (a *Adapter) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, path := range a.client.Adapters() {
		if a.bindLocked(path) == nil {
			break
		}
	}
}

// Stop unbinds and unregisters the pairing agent. The adapter ignores all
// daemon notifications afterwards.
func (a *Adapter) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	if a.path != "" {
		a.unbindLocked()
	}
	a.mu.Unlock()

	agentPath := a.agentPath
	a.client.UnregisterAgent(agentPath, func(derr *DaemonError) {
		// racing the daemon's own cleanup is fine
		if derr != nil && derr.Outcome() != OutcomeDoesNotExist {
			logger.Warningf("failed to unregister agent %s: %v", agentPath, derr)
		}
	})
}

func (a *Adapter) registerAgentLocked() {
	agentPath := a.agentPath
	a.client.RegisterAgent(agentPath, btcommon.AgentCapKeyboardDisplay, func(derr *DaemonError) {
		if derr != nil {
			if derr.Outcome() == OutcomeAlreadyExists {
				logger.Debug("pairing agent already registered")
			} else {
				logger.Warningf("failed to register agent %s: %v", agentPath, derr)
				return
			}
		}
		a.client.RequestDefaultAgent(agentPath, func(derr *DaemonError) {
			if derr != nil {
				logger.Warningf("failed to become default agent: %v", derr)
			}
		})
	})
}

// Bind attaches the core to the daemon adapter object at path.
func (a *Adapter) Bind(path dbus.ObjectPath) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bindLocked(path)
}

func (a *Adapter) bindLocked(path dbus.ObjectPath) error {
	if a.stopped {
		return ErrAdapterNotPresent
	}
	if a.path != "" {
		return ErrAlreadyBound
	}
	a.path = path
	a.generation++

	// registration is daemon scoped and idempotent, AlreadyExists included
	a.registerAgentLocked()

	props := a.client.AdapterProperties(path)
	a.address = normalizeAddress(variantString(props["Address"], ""))
	a.name = variantString(props["Alias"], variantString(props["Name"], ""))
	a.powered = variantBool(props["Powered"], false)
	a.discoverable = variantBool(props["Discoverable"], false)
	a.discovering = variantBool(props["Discovering"], false)
	a.uuids = strv.Strv(variantStrings(props["UUIDs"], nil))
	logger.Infof("adapter %s (%s) bound at %s", a.name, a.address, path)

	a.notifyLocked(func(o Observer) { o.AdapterPresentChanged(true) })
	if a.powered {
		a.notifyLocked(func(o Observer) { o.AdapterPoweredChanged(true) })
	}
	if a.discoverable {
		a.notifyLocked(func(o Observer) { o.AdapterDiscoverableChanged(true) })
	}
	if a.discovering {
		a.notifyLocked(func(o Observer) { o.AdapterDiscoveringChanged(true) })
	}

	for devPath, devProps := range a.client.DevicesForAdapter(path) {
		a.upsertDeviceLocked(devPath, devProps)
	}

	a.applyConfigLocked()
	return nil
}

// Unbind detaches from the current adapter object: all devices are removed,
// queued and in-flight requests fail with ErrAdapterRemoved, profile and
// GATT registrations are forgotten.
func (a *Adapter) Unbind() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unbindLocked()
}

func (a *Adapter) unbindLocked() error {
	if a.path == "" {
		return ErrAdapterNotPresent
	}
	logger.Infof("adapter %s unbound from %s", a.address, a.path)
	a.path = ""
	a.generation++

	if a.powered {
		a.powered = false
		a.notifyLocked(func(o Observer) { o.AdapterPoweredChanged(false) })
	}
	if a.discoverable {
		a.discoverable = false
		a.notifyLocked(func(o Observer) { o.AdapterDiscoverableChanged(false) })
	}
	if a.discovering {
		a.discovering = false
		a.notifyLocked(func(o Observer) { o.AdapterDiscoveringChanged(false) })
	}

	// swap the registry first so observers never see a half-emptied one
	devices := a.devices
	a.devices = make(map[string]*Device)
	for _, d := range devices {
		a.notifyLocked(func(o Observer) { o.DeviceRemoved(d) })
	}

	a.resetDiscoveryLocked()
	a.resetProfilesLocked()
	a.resetGattLocked()
	a.resetPairingLocked()

	a.address = ""
	a.name = ""
	a.uuids = nil
	a.notifyLocked(func(o Observer) { o.AdapterPresentChanged(false) })
	return nil
}

func (a *Adapter) applyConfigLocked() {
	if a.cfg == nil {
		return
	}
	a.cfg.addAdapterConfig(a.address)
	powered := a.cfg.getAdapterConfigPowered(a.address)
	if powered == a.powered {
		return
	}
	path := a.path
	logger.Debugf("restoring powered=%v for adapter %s", powered, a.address)
	a.client.SetAdapterProperty(path, "Powered", powered, func(derr *DaemonError) {
		if derr != nil {
			logger.Warningf("failed to restore powered state of %s: %v", path, derr)
		}
	})
}

// ReapplyConfig pushes the persisted adapter settings again, e.g. after the
// config file changed on disk.
func (a *Adapter) ReapplyConfig() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.path == "" {
		return
	}
	a.applyConfigLocked()
}

// Present reports whether an adapter is currently bound.
func (a *Adapter) Present() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.path != ""
}

func (a *Adapter) Path() dbus.ObjectPath {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.path
}

func (a *Adapter) Address() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.address
}

func (a *Adapter) Name() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.name
}

func (a *Adapter) Powered() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.powered
}

func (a *Adapter) Discoverable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.discoverable
}

func (a *Adapter) Discovering() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.discovering
}

func (a *Adapter) UUIDs() strv.Strv {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append(strv.Strv(nil), a.uuids...)
}

// SetPowered switches the adapter radio and persists the choice so it is
// restored on the next bind.
func (a *Adapter) SetPowered(powered bool, done func(err error)) {
	done = ensureDone(done)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.path == "" {
		done(ErrAdapterNotPresent)
		return
	}
	if a.cfg != nil {
		a.cfg.setAdapterConfigPowered(a.address, powered)
	}
	gen := a.generation
	a.client.SetAdapterProperty(a.path, "Powered", powered, func(derr *DaemonError) {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.generation != gen {
			done(ErrAdapterRemoved)
			return
		}
		if derr != nil {
			logger.Warningf("failed to set powered=%v: %v", powered, derr)
			done(wrapDaemonError("set powered", derr))
			return
		}
		done(nil)
	})
}

// SetDiscoverable switches visibility to other devices. On success the
// discoverable timeout is cleared so visibility does not silently expire.
func (a *Adapter) SetDiscoverable(discoverable bool, done func(err error)) {
	done = ensureDone(done)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.path == "" {
		done(ErrAdapterNotPresent)
		return
	}
	if a.cfg != nil {
		a.cfg.setAdapterConfigDiscoverable(a.address, discoverable)
	}
	gen := a.generation
	a.client.SetAdapterProperty(a.path, "Discoverable", discoverable, func(derr *DaemonError) {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.generation != gen {
			done(ErrAdapterRemoved)
			return
		}
		if derr != nil {
			logger.Warningf("failed to set discoverable=%v: %v", discoverable, derr)
			done(wrapDaemonError("set discoverable", derr))
			return
		}
		if discoverable {
			a.client.SetAdapterProperty(a.path, "DiscoverableTimeout", uint32(0), func(derr *DaemonError) {
				if derr != nil {
					logger.Warningf("failed to clear discoverable timeout: %v", derr)
				}
			})
		}
		done(nil)
	})
}

// SetName sets the adapter alias shown to remote devices.
func (a *Adapter) SetName(name string, done func(err error)) {
	done = ensureDone(done)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.path == "" {
		done(ErrAdapterNotPresent)
		return
	}
	gen := a.generation
	a.client.SetAdapterProperty(a.path, "Alias", name, func(derr *DaemonError) {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.generation != gen {
			done(ErrAdapterRemoved)
			return
		}
		if derr != nil {
			logger.Warningf("failed to set alias %q: %v", name, derr)
			done(wrapDaemonError("set alias", derr))
			return
		}
		done(nil)
	})
}

// AdapterAdded implements DaemonNotifyHandler. The first adapter wins; later
// ones are ignored until the bound one goes away.
func (a *Adapter) AdapterAdded(path dbus.ObjectPath, props map[string]dbus.Variant) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	if a.path != "" {
		logger.Debug("ignoring additional adapter:", path)
		return
	}
	if err := a.bindLocked(path); err != nil {
		logger.Warning("bind failed:", err)
	}
}

func (a *Adapter) AdapterRemoved(path dbus.ObjectPath) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if path != a.path {
		return
	}
	a.unbindLocked()
	if a.stopped {
		return
	}
	// fail over to another adapter if the daemon still has one
	for _, other := range a.client.Adapters() {
		if other == path {
			continue
		}
		if a.bindLocked(other) == nil {
			return
		}
	}
}

func (a *Adapter) AdapterPropertiesChanged(path dbus.ObjectPath, changed map[string]dbus.Variant) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if path != a.path {
		return
	}
	for name, value := range changed {
		switch name {
		case "Powered":
			powered := variantBool(value, a.powered)
			if powered != a.powered {
				a.powered = powered
				a.notifyLocked(func(o Observer) { o.AdapterPoweredChanged(powered) })
			}
		case "Discoverable":
			discoverable := variantBool(value, a.discoverable)
			if discoverable != a.discoverable {
				a.discoverable = discoverable
				a.notifyLocked(func(o Observer) { o.AdapterDiscoverableChanged(discoverable) })
			}
		case "Discovering":
			a.discoveringChangedLocked(variantBool(value, a.discovering))
		case "Alias":
			a.name = variantString(value, a.name)
		case "Address":
			a.address = normalizeAddress(variantString(value, a.address))
		case "UUIDs":
			a.uuids = strv.Strv(variantStrings(value, a.uuids))
		}
	}
}

func (a *Adapter) DeviceAdded(path dbus.ObjectPath, props map[string]dbus.Variant) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.path == "" || a.stopped {
		return
	}
	a.upsertDeviceLocked(path, props)
}

func (a *Adapter) DeviceRemoved(path dbus.ObjectPath) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.removeDeviceLocked(path)
}

func (a *Adapter) DevicePropertiesChanged(path dbus.ObjectPath, changed map[string]dbus.Variant) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.deviceWithPathLocked(path)
	if d == nil {
		return
	}
	a.applyDevicePropertiesLocked(d, changed)
}
