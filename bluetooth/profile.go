// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

import (
	"strings"

	"github.com/godbus/dbus/v5"
)

// ProfileDelegate handles connections the daemon hands over for a profile
// UUID. Calls arrive on the client's dispatch goroutine.
type ProfileDelegate interface {
	// NewConnection receives the RFCOMM/L2CAP socket for an accepted
	// profile connection.
	NewConnection(device dbus.ObjectPath, fd dbus.UnixFD, props map[string]dbus.Variant) error
	// RequestDisconnection asks the delegate to drop its connection.
	RequestDisconnection(device dbus.ObjectPath) error
	// Cancel aborts a connection attempt the daemon gave up on.
	Cancel()
}

type profilePhase int

const (
	profileRegistering profilePhase = iota
	profileRegistered
	profileReleasing
)

// registeredProfile tracks one profile UUID registered with the daemon and
// the delegates attached to it, keyed by device path. The empty path is the
// wildcard delegate for incoming connections from any device.
type registeredProfile struct {
	uuid      string
	path      dbus.ObjectPath
	phase     profilePhase
	delegates map[dbus.ObjectPath]ProfileDelegate
	queue     []*profileRequest
}

type profileRequest struct {
	devicePath dbus.ObjectPath
	delegate   ProfileDelegate
	done       func(err error)
}

const profilePathPrefix = "/org/deepin/bluetooth/Profile/"

func profileObjectPath(uuid string) dbus.ObjectPath {
	return dbus.ObjectPath(profilePathPrefix + strings.ReplaceAll(uuid, "-", "_"))
}

// UseProfile attaches delegate to the profile identified by uuid for
// devicePath (empty for any device), registering the profile with the daemon
// on first use. Concurrent first uses of the same UUID trigger exactly one
// registration; the rest queue and complete in order once it finishes.
func (a *Adapter) UseProfile(uuid string, devicePath dbus.ObjectPath, options map[string]dbus.Variant, delegate ProfileDelegate, done func(err error)) {
	done = ensureDone(done)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.path == "" {
		done(ErrAdapterNotPresent)
		return
	}
	req := &profileRequest{devicePath: devicePath, delegate: delegate, done: done}

	if p, ok := a.profiles[uuid]; ok {
		switch p.phase {
		case profileRegistered:
			a.attachDelegateLocked(p, req)
		default:
			p.queue = append(p.queue, req)
		}
		return
	}

	p := &registeredProfile{
		uuid:      uuid,
		path:      profileObjectPath(uuid),
		phase:     profileRegistering,
		delegates: make(map[dbus.ObjectPath]ProfileDelegate),
		queue:     []*profileRequest{req},
	}
	a.profiles[uuid] = p
	logger.Debugf("registering profile %s (%s) at %s", profileName(uuid), uuid, p.path)
	gen := a.generation
	a.client.RegisterProfile(p.path, uuid, options, func(derr *DaemonError) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.onRegisterProfile(gen, p, derr)
	})
}

func (a *Adapter) onRegisterProfile(gen uint64, p *registeredProfile, derr *DaemonError) {
	if a.generation != gen {
		for _, req := range p.queue {
			req.done(ErrAdapterRemoved)
		}
		p.queue = nil
		return
	}
	queue := p.queue
	p.queue = nil
	if derr != nil && derr.Outcome() != OutcomeAlreadyExists {
		logger.Warningf("failed to register profile %s: %v", p.uuid, derr)
		delete(a.profiles, p.uuid)
		err := wrapDaemonError("register profile", derr)
		for _, req := range queue {
			req.done(err)
		}
		return
	}
	p.phase = profileRegistered
	for _, req := range queue {
		a.attachDelegateLocked(p, req)
	}
}

func (a *Adapter) attachDelegateLocked(p *registeredProfile, req *profileRequest) {
	if _, ok := p.delegates[req.devicePath]; ok {
		req.done(ErrAlreadyAttached)
		return
	}
	p.delegates[req.devicePath] = req.delegate
	req.done(nil)
}

// ReleaseProfile detaches the delegate for devicePath from uuid. When the
// last delegate goes the profile is unregistered from the daemon; the entry
// stays parked until the daemon confirms, so a dangling connection callback
// still finds it.
func (a *Adapter) ReleaseProfile(uuid string, devicePath dbus.ObjectPath) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.profiles[uuid]
	if !ok {
		return ErrNotRegistered
	}
	if _, ok := p.delegates[devicePath]; !ok {
		return ErrNotRegistered
	}
	delete(p.delegates, devicePath)
	if len(p.delegates) > 0 || p.phase != profileRegistered {
		return nil
	}
	p.phase = profileReleasing
	delete(a.profiles, uuid)
	a.released[uuid] = p
	logger.Debugf("unregistering profile %s", uuid)
	gen := a.generation
	a.client.UnregisterProfile(p.path, func(derr *DaemonError) {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.generation != gen {
			return
		}
		if derr != nil && derr.Outcome() != OutcomeDoesNotExist {
			logger.Warningf("failed to unregister profile %s: %v", uuid, derr)
		}
		if a.released[uuid] == p {
			delete(a.released, uuid)
		}
	})
	return nil
}

// ProfileDelegateFor resolves the delegate for an incoming connection on
// uuid from devicePath, preferring a device-specific delegate and falling
// back to the wildcard one. Profiles mid-release still resolve.
func (a *Adapter) ProfileDelegateFor(uuid string, devicePath dbus.ObjectPath) ProfileDelegate {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.profiles[uuid]
	if !ok {
		p, ok = a.released[uuid]
	}
	if !ok {
		return nil
	}
	if d, ok := p.delegates[devicePath]; ok {
		return d
	}
	return p.delegates[""]
}

func (a *Adapter) resetProfilesLocked() {
	for uuid, p := range a.profiles {
		for _, req := range p.queue {
			req.done(ErrAdapterRemoved)
		}
		p.queue = nil
		delete(a.profiles, uuid)
	}
	for uuid := range a.released {
		delete(a.released, uuid)
	}
}
