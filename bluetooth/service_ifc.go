// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

import (
	"github.com/godbus/dbus/v5"
	"github.com/linuxdeepin/go-lib/dbusutil"
)

func waitDone(run func(done func(err error))) error {
	ch := make(chan error, 1)
	run(func(err error) {
		ch <- err
	})
	return <-ch
}

func (s *Service) GetAdapter() (adapterJSON string, busErr *dbus.Error) {
	a := s.adapter
	a.mu.Lock()
	defer a.mu.Unlock()
	return s.adapterJSONLocked(), nil
}

func (s *Service) GetDevices() (devicesJSON string, busErr *dbus.Error) {
	return marshalJSON(s.adapter.Devices()), nil
}

func (s *Service) SetAdapterPowered(powered bool) *dbus.Error {
	logger.Infof("dbus call SetAdapterPowered %v", powered)
	err := waitDone(func(done func(err error)) {
		s.adapter.SetPowered(powered, done)
	})
	return dbusutil.ToError(err)
}

func (s *Service) SetAdapterDiscoverable(discoverable bool) *dbus.Error {
	logger.Infof("dbus call SetAdapterDiscoverable %v", discoverable)
	err := waitDone(func(done func(err error)) {
		s.adapter.SetDiscoverable(discoverable, done)
	})
	return dbusutil.ToError(err)
}

func (s *Service) SetAdapterAlias(alias string) *dbus.Error {
	logger.Infof("dbus call SetAdapterAlias %q", alias)
	err := waitDone(func(done func(err error)) {
		s.adapter.SetName(alias, done)
	})
	return dbusutil.ToError(err)
}

// RequestDiscovery opens one unfiltered discovery session.
func (s *Service) RequestDiscovery() *dbus.Error {
	logger.Info("dbus call RequestDiscovery")
	err := waitDone(func(done func(err error)) {
		s.adapter.AddDiscoverySession(nil, done)
	})
	return dbusutil.ToError(err)
}

// CancelDiscovery closes one previously requested discovery session.
func (s *Service) CancelDiscovery() *dbus.Error {
	logger.Info("dbus call CancelDiscovery")
	err := waitDone(func(done func(err error)) {
		s.adapter.RemoveDiscoverySession(nil, done)
	})
	return dbusutil.ToError(err)
}

// Confirm should be called after a RequestConfirmation or
// RequestAuthorization signal.
func (s *Service) Confirm(device dbus.ObjectPath, accept bool) *dbus.Error {
	logger.Infof("dbus call Confirm %q %v", device, accept)
	return dbusutil.ToError(s.feed(device, accept, ""))
}

// FeedPinCode should be called after a RequestPinCode signal; accept must be
// true for the pin code to be used.
func (s *Service) FeedPinCode(device dbus.ObjectPath, accept bool, pinCode string) *dbus.Error {
	logger.Infof("dbus call FeedPinCode %q %v", device, accept)
	return dbusutil.ToError(s.feed(device, accept, pinCode))
}

// FeedPasskey should be called after a RequestPasskey signal; accept must be
// true for the passkey to be used.
func (s *Service) FeedPasskey(device dbus.ObjectPath, accept bool, passkey uint32) *dbus.Error {
	logger.Infof("dbus call FeedPasskey %q %v", device, accept)
	return dbusutil.ToError(s.feed(device, accept, formatPasskey(passkey)))
}

func (s *Service) DebugInfo() (info string, busErr *dbus.Error) {
	a := s.adapter
	a.mu.Lock()
	defer a.mu.Unlock()
	return marshalJSON(map[string]interface{}{
		"adapter":           s.adapterJSONLocked(),
		"devices":           len(a.devices),
		"discoverySessions": len(a.discovery.sessions),
		"discoveryPending":  a.discovery.pending,
		"discoveryQueued":   len(a.discovery.queue),
		"profiles":          len(a.profiles),
		"gattPublished":     len(a.gatt.published),
	}), nil
}
