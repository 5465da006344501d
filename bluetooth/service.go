// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/linuxdeepin/go-lib/dbusutil"
)

const (
	dbusServiceName = "org.deepin.dde.Bluetooth1"
	dbusPath        = "/org/deepin/dde/Bluetooth1"
	dbusInterface   = dbusServiceName
)

//go:generate dbusutil-gen em -type Service

// Service exports the adapter core on the bus. Adapter and device events go
// out as JSON payload signals; pairing agent requests turn into request
// signals answered through the Feed methods.
type Service struct {
	service *dbusutil.Service
	adapter *Adapter

	rspMu         sync.Mutex
	rspChan       chan authorize
	requestDevice dbus.ObjectPath

	// nolint
	signals *struct {
		AdapterPropertiesChanged struct {
			adapterJSON string
		}

		DeviceAdded, DeviceRemoved, DevicePropertiesChanged struct {
			devJSON string
		}

		RequestPinCode, RequestPasskey struct {
			device dbus.ObjectPath
		}
		DisplayPinCode struct {
			device  dbus.ObjectPath
			pinCode string
		}
		DisplayPasskey struct {
			device  dbus.ObjectPath
			passkey uint32
			entered uint32
		}
		RequestConfirmation struct {
			device  dbus.ObjectPath
			passkey string
		}
		RequestAuthorization struct {
			device dbus.ObjectPath
		}
		Cancelled struct {
			device dbus.ObjectPath
		}
	}
}

type authorize struct {
	path   dbus.ObjectPath
	key    string
	accept bool
}

func newService(service *dbusutil.Service, adapter *Adapter) *Service {
	s := &Service{
		service: service,
		adapter: adapter,
		rspChan: make(chan authorize),
	}
	adapter.AddObserver(s)
	adapter.SetPairingDelegate(s)
	return s
}

func (*Service) GetInterfaceName() string {
	return dbusInterface
}

func (s *Service) export() error {
	return s.service.Export(dbusPath, s)
}

func (s *Service) stopExport() {
	s.adapter.RemoveObserver(s)
	err := s.service.StopExport(s)
	if err != nil {
		logger.Warning(err)
	}
}

// adapterJSONLocked snapshots the adapter state. Only called from observer
// callbacks, which run while the adapter lock is held.
func (s *Service) adapterJSONLocked() string {
	a := s.adapter
	return marshalJSON(&AdapterInfo{
		Path:         a.path,
		Address:      a.address,
		Name:         a.name,
		Present:      a.path != "",
		Powered:      a.powered,
		Discoverable: a.discoverable,
		Discovering:  a.discovering,
		UUIDs:        a.uuids,
	})
}

// AdapterInfo is the JSON shape of adapter signals and GetAdapter.
type AdapterInfo struct {
	Path         dbus.ObjectPath
	Address      string
	Name         string
	Present      bool
	Powered      bool
	Discoverable bool
	Discovering  bool
	UUIDs        []string
}

func (s *Service) emitAdapterChanged() {
	err := s.service.Emit(s, "AdapterPropertiesChanged", s.adapterJSONLocked())
	if err != nil {
		logger.Warning(err)
	}
}

func (s *Service) emitDevice(signal string, d *Device) {
	err := s.service.Emit(s, signal, marshalJSON(d))
	if err != nil {
		logger.Warning(err)
	}
}

func (s *Service) AdapterPresentChanged(present bool)     { s.emitAdapterChanged() }
func (s *Service) AdapterPoweredChanged(powered bool)     { s.emitAdapterChanged() }
func (s *Service) AdapterDiscoverableChanged(v bool)      { s.emitAdapterChanged() }
func (s *Service) AdapterDiscoveringChanged(v bool)       { s.emitAdapterChanged() }
func (s *Service) DeviceAdded(d *Device)                  { s.emitDevice("DeviceAdded", d) }
func (s *Service) DeviceRemoved(d *Device)                { s.emitDevice("DeviceRemoved", d) }
func (s *Service) DeviceChanged(d *Device)                { s.emitDevice("DevicePropertiesChanged", d) }
func (s *Service) DeviceAddressChanged(d *Device, old string) {
	s.emitDevice("DevicePropertiesChanged", d)
}
func (s *Service) DevicePairedChanged(d *Device, paired bool) {}
func (s *Service) GattServicesDiscovered(d *Device)           {}

// waitResponse blocks until a Feed method answers the outstanding request or
// the user runs out of time.
func (s *Service) waitResponse(device dbus.ObjectPath) (auth authorize, ok bool) {
	defer func() {
		s.rspMu.Lock()
		s.requestDevice = ""
		s.rspMu.Unlock()
	}()

	t := time.NewTimer(60 * time.Second)
	defer t.Stop()
	select {
	case auth = <-s.rspChan:
		return auth, true
	case <-t.C:
		logger.Info("agent request timed out for", device)
		err := s.service.Emit(s, "Cancelled", device)
		if err != nil {
			logger.Warning(err)
		}
		return authorize{}, false
	}
}

func (s *Service) emitRequest(device dbus.ObjectPath, signal string, args ...interface{}) (auth authorize, ok bool) {
	s.rspMu.Lock()
	s.requestDevice = device
	s.rspMu.Unlock()

	emitArgs := append([]interface{}{device}, args...)
	err := s.service.Emit(s, signal, emitArgs...)
	if err != nil {
		logger.Warning(err)
		return authorize{}, false
	}
	return s.waitResponse(device)
}

func (s *Service) feed(device dbus.ObjectPath, accept bool, key string) error {
	s.rspMu.Lock()
	if s.requestDevice != device {
		s.rspMu.Unlock()
		return fmt.Errorf("device %s has no pending agent request", device)
	}
	s.rspMu.Unlock()

	select {
	case s.rspChan <- authorize{path: device, accept: accept, key: key}:
		return nil
	default:
		return fmt.Errorf("agent request for %s no longer waiting", device)
	}
}

func feedStatus(accept bool) PairingStatus {
	if accept {
		return PairingSuccess
	}
	return PairingRejected
}

// PairingDelegate implementation backed by the request signals.

func (s *Service) RequestPinCode(d *Device, respond func(pin string, status PairingStatus)) {
	auth, ok := s.emitRequest(d.Path, "RequestPinCode")
	if !ok {
		respond("", PairingCancelled)
		return
	}
	respond(auth.key, feedStatus(auth.accept))
}

func (s *Service) DisplayPinCode(d *Device, pinCode string) {
	err := s.service.Emit(s, "DisplayPinCode", d.Path, pinCode)
	if err != nil {
		logger.Warning(err)
	}
}

func (s *Service) RequestPasskey(d *Device, respond func(passkey uint32, status PairingStatus)) {
	auth, ok := s.emitRequest(d.Path, "RequestPasskey")
	if !ok {
		respond(0, PairingCancelled)
		return
	}
	if !auth.accept {
		respond(0, PairingRejected)
		return
	}
	key, err := strconv.ParseUint(auth.key, 10, 32)
	if err != nil {
		logger.Warning("bad passkey:", auth.key)
		respond(0, PairingRejected)
		return
	}
	respond(uint32(key), PairingSuccess)
}

func (s *Service) DisplayPasskey(d *Device, passkey uint32, entered uint16) {
	err := s.service.Emit(s, "DisplayPasskey", d.Path, passkey, uint32(entered))
	if err != nil {
		logger.Warning(err)
	}
}

func (s *Service) RequestConfirmation(d *Device, passkey uint32, respond func(status PairingStatus)) {
	auth, ok := s.emitRequest(d.Path, "RequestConfirmation", fmt.Sprintf("%06d", passkey))
	if !ok {
		respond(PairingCancelled)
		return
	}
	respond(feedStatus(auth.accept))
}

func (s *Service) RequestAuthorization(d *Device, respond func(status PairingStatus)) {
	auth, ok := s.emitRequest(d.Path, "RequestAuthorization")
	if !ok {
		respond(PairingCancelled)
		return
	}
	respond(feedStatus(auth.accept))
}

func (s *Service) Cancel(d *Device) {
	err := s.service.Emit(s, "Cancelled", d.Path)
	if err != nil {
		logger.Warning(err)
	}
}

var _ PairingDelegate = (*Service)(nil)
var _ Observer = (*Service)(nil)
