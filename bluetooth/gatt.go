// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

import (
	"github.com/godbus/dbus/v5"
)

// Local GATT services are published to the daemon as one application object.
// The daemon cannot change a registered application in place, so every
// mutation of the published set unregisters the application and registers it
// again with the new contents. Republishes run one at a time; further
// mutations queue FIFO behind the one in flight.

const gattApplicationPath = dbus.ObjectPath("/org/deepin/bluetooth/GattApp")

// LocalGattService is a GATT service this process hosts.
type LocalGattService struct {
	Path            dbus.ObjectPath
	UUID            string
	Primary         bool
	Characteristics []*LocalGattCharacteristic
}

type LocalGattCharacteristic struct {
	Path  dbus.ObjectPath
	UUID  string
	Flags []string
	Value []byte
}

type gattState struct {
	services      map[dbus.ObjectPath]*LocalGattService
	published     map[dbus.ObjectPath]bool
	appRegistered bool
	pending       bool
	queue         []*gattRequest
}

type gattRequest struct {
	ignoreUnregisterFailure bool
	done                    func(err error)
}

func (g *gattState) init() {
	g.services = make(map[dbus.ObjectPath]*LocalGattService)
	g.published = make(map[dbus.ObjectPath]bool)
}

// AddLocalGattService takes ownership of svc. The service is not visible to
// remote devices until RegisterGattService.
func (a *Adapter) AddLocalGattService(svc *LocalGattService) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.gatt.services[svc.Path]; ok {
		return ErrAlreadyRegistered
	}
	a.gatt.services[svc.Path] = svc
	return nil
}

// RemoveLocalGattService drops svc. If it was published the application is
// republished without it; a failing unregister of the stale application is
// not an error here.
func (a *Adapter) RemoveLocalGattService(svc *LocalGattService, done func(err error)) {
	done = ensureDone(done)
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.gatt.services[svc.Path]; !ok {
		done(ErrNotRegistered)
		return
	}
	delete(a.gatt.services, svc.Path)
	if !a.gatt.published[svc.Path] {
		done(nil)
		return
	}
	delete(a.gatt.published, svc.Path)
	a.republishGattLocked(&gattRequest{ignoreUnregisterFailure: true, done: done})
}

// RegisterGattService publishes an owned service to remote devices.
func (a *Adapter) RegisterGattService(svc *LocalGattService, done func(err error)) {
	done = ensureDone(done)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.path == "" {
		done(ErrAdapterNotPresent)
		return
	}
	if _, ok := a.gatt.services[svc.Path]; !ok {
		done(ErrNotRegistered)
		return
	}
	if a.gatt.published[svc.Path] {
		done(ErrAlreadyRegistered)
		return
	}
	a.gatt.published[svc.Path] = true
	a.republishGattLocked(&gattRequest{ignoreUnregisterFailure: true, done: done})
}

// UnregisterGattService withdraws a published service. Unlike the mutation
// paths, a failure to unregister the running application is reported.
func (a *Adapter) UnregisterGattService(svc *LocalGattService, done func(err error)) {
	done = ensureDone(done)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.path == "" {
		done(ErrAdapterNotPresent)
		return
	}
	if !a.gatt.published[svc.Path] {
		done(ErrNotRegistered)
		return
	}
	delete(a.gatt.published, svc.Path)
	a.republishGattLocked(&gattRequest{ignoreUnregisterFailure: false, done: done})
}

// SendValueChanged records a characteristic value change for notification.
// It reports false when the owning service is not currently published, in
// which case nothing is sent.
func (a *Adapter) SendValueChanged(characteristic dbus.ObjectPath, value []byte) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for path, svc := range a.gatt.services {
		for _, chr := range svc.Characteristics {
			if chr.Path != characteristic {
				continue
			}
			if !a.gatt.published[path] {
				return false
			}
			chr.Value = append([]byte(nil), value...)
			return true
		}
	}
	return false
}

func (a *Adapter) republishGattLocked(req *gattRequest) {
	g := &a.gatt
	if g.pending {
		g.queue = append(g.queue, req)
		return
	}
	g.pending = true
	if g.appRegistered {
		gen := a.generation
		a.client.UnregisterApplication(a.path, gattApplicationPath, func(derr *DaemonError) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.onUnregisterApplication(gen, req, derr)
		})
		return
	}
	a.registerApplicationLocked(req)
}

func (a *Adapter) onUnregisterApplication(gen uint64, req *gattRequest, derr *DaemonError) {
	if a.generation != gen {
		req.done(ErrAdapterRemoved)
		return
	}
	g := &a.gatt
	if derr != nil && !req.ignoreUnregisterFailure {
		logger.Warningf("failed to unregister gatt application: %v", derr)
		g.pending = false
		req.done(wrapDaemonError("unregister application", derr))
		a.drainGattQueueLocked()
		return
	}
	g.appRegistered = false
	a.registerApplicationLocked(req)
}

func (a *Adapter) registerApplicationLocked(req *gattRequest) {
	g := &a.gatt
	if len(g.published) == 0 {
		// nothing to publish, leave the application unregistered
		g.pending = false
		req.done(nil)
		a.drainGattQueueLocked()
		return
	}
	gen := a.generation
	a.client.RegisterApplication(a.path, gattApplicationPath, func(derr *DaemonError) {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.generation != gen {
			req.done(ErrAdapterRemoved)
			return
		}
		g.pending = false
		if derr != nil {
			logger.Warningf("failed to register gatt application: %v", derr)
			req.done(wrapDaemonError("register application", derr))
		} else {
			g.appRegistered = true
			req.done(nil)
		}
		a.drainGattQueueLocked()
	})
}

func (a *Adapter) drainGattQueueLocked() {
	g := &a.gatt
	for len(g.queue) > 0 && !g.pending {
		req := g.queue[0]
		g.queue = g.queue[1:]
		a.republishGattLocked(req)
	}
}

func (a *Adapter) resetGattLocked() {
	g := &a.gatt
	queue := g.queue
	g.queue = nil
	g.published = make(map[dbus.ObjectPath]bool)
	g.appRegistered = false
	g.pending = false
	for _, req := range queue {
		req.done(ErrAdapterRemoved)
	}
}
