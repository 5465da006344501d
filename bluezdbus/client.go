// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package bluezdbus talks to the bluez daemon over the system bus. It
// implements the daemon client capability of the management core with
// asynchronous method calls and translates the daemon's ObjectManager and
// Properties signals into the core's notification stream.
package bluezdbus

import (
	"sort"
	"time"

	"github.com/godbus/dbus/v5"
	btcommon "github.com/linuxdeepin/bluetooth-daemon/common/bluetooth"
	ofdbus "github.com/linuxdeepin/go-dbus-factory/system/org.freedesktop.dbus"
	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/log"
)

var logger = log.NewLogger("daemon/bluezdbus")

const (
	bluezDBusServiceName         = "org.bluez"
	bluezAdapterInterface        = "org.bluez.Adapter1"
	bluezDeviceInterface         = "org.bluez.Device1"
	bluezAgentManagerPath        = "/org/bluez"
	bluezAgentManagerInterface   = "org.bluez.AgentManager1"
	bluezProfileManagerInterface = "org.bluez.ProfileManager1"
	bluezGattManagerInterface    = "org.bluez.GattManager1"

	objectManagerInterface = "org.freedesktop.DBus.ObjectManager"
	propertiesInterface    = "org.freedesktop.DBus.Properties"
)

// NotifyHandler receives adapter and device notifications decoded from the
// daemon's signals. Calls arrive on the signal loop goroutine.
type NotifyHandler interface {
	AdapterAdded(path dbus.ObjectPath, props map[string]dbus.Variant)
	AdapterRemoved(path dbus.ObjectPath)
	AdapterPropertiesChanged(path dbus.ObjectPath, changed map[string]dbus.Variant)
	DeviceAdded(path dbus.ObjectPath, props map[string]dbus.Variant)
	DeviceRemoved(path dbus.ObjectPath)
	DevicePropertiesChanged(path dbus.ObjectPath, changed map[string]dbus.Variant)
}

type Client struct {
	conn       *dbus.Conn
	sigLoop    *dbusutil.SignalLoop
	dbusDaemon ofdbus.DBus
	handler    NotifyHandler
}

func NewClient() (*Client, error) {
	sysBus, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	c := &Client{
		conn:    sysBus,
		sigLoop: dbusutil.NewSignalLoop(sysBus, 10),
	}
	return c, nil
}

// Start wires the signal stream to handler and reports the adapters the
// daemon already knows about.
func (c *Client) Start(handler NotifyHandler) error {
	c.handler = handler
	c.sigLoop.Start()

	err := dbusutil.NewMatchRuleBuilder().Type("signal").
		Interface(objectManagerInterface).
		Member("InterfacesAdded").Build().
		AddTo(c.conn)
	if err != nil {
		return err
	}
	err = dbusutil.NewMatchRuleBuilder().Type("signal").
		Interface(objectManagerInterface).
		Member("InterfacesRemoved").Build().
		AddTo(c.conn)
	if err != nil {
		return err
	}
	err = dbusutil.NewMatchRuleBuilder().Type("signal").
		Interface(propertiesInterface).
		Member("PropertiesChanged").Build().
		AddTo(c.conn)
	if err != nil {
		return err
	}

	c.sigLoop.AddHandler(&dbusutil.SignalRule{
		Name: objectManagerInterface + ".InterfacesAdded",
	}, c.handleInterfacesAdded)
	c.sigLoop.AddHandler(&dbusutil.SignalRule{
		Name: objectManagerInterface + ".InterfacesRemoved",
	}, c.handleInterfacesRemoved)
	c.sigLoop.AddHandler(&dbusutil.SignalRule{
		Name: propertiesInterface + ".PropertiesChanged",
	}, c.handlePropertiesChanged)

	c.dbusDaemon = ofdbus.NewDBus(c.conn)
	c.dbusDaemon.InitSignalExt(c.sigLoop, true)
	_, err = c.dbusDaemon.ConnectNameOwnerChanged(c.handleNameOwnerChanged)
	if err != nil {
		logger.Warning(err)
	}

	for _, path := range c.Adapters() {
		c.handler.AdapterAdded(path, c.AdapterProperties(path))
	}
	return nil
}

func (c *Client) Stop() {
	c.dbusDaemon.RemoveAllHandlers()
	c.sigLoop.Stop()
}

func (c *Client) handleNameOwnerChanged(name, oldOwner, newOwner string) {
	if name != bluezDBusServiceName {
		return
	}
	if newOwner != "" && oldOwner == "" {
		logger.Info("bluez came up")
		// give bluez a moment to populate its object tree
		time.AfterFunc(time.Second, func() {
			for _, path := range c.Adapters() {
				c.handler.AdapterAdded(path, c.AdapterProperties(path))
			}
		})
	} else if newOwner == "" && oldOwner != "" {
		logger.Info("bluez went down")
		for _, path := range c.Adapters() {
			c.handler.AdapterRemoved(path)
		}
	}
}

func (c *Client) handleInterfacesAdded(sig *dbus.Signal) {
	if len(sig.Body) != 2 {
		return
	}
	path, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok {
		return
	}
	interfaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
	if !ok {
		return
	}
	if props, ok := interfaces[bluezAdapterInterface]; ok {
		c.handler.AdapterAdded(path, props)
	}
	if props, ok := interfaces[bluezDeviceInterface]; ok {
		c.handler.DeviceAdded(path, props)
	}
}

func (c *Client) handleInterfacesRemoved(sig *dbus.Signal) {
	if len(sig.Body) != 2 {
		return
	}
	path, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok {
		return
	}
	interfaces, ok := sig.Body[1].([]string)
	if !ok {
		return
	}
	for _, iface := range interfaces {
		switch iface {
		case bluezAdapterInterface:
			c.handler.AdapterRemoved(path)
		case bluezDeviceInterface:
			c.handler.DeviceRemoved(path)
		}
	}
}

func (c *Client) handlePropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) != 3 {
		return
	}
	iface, ok := sig.Body[0].(string)
	if !ok {
		return
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}
	switch iface {
	case bluezAdapterInterface:
		c.handler.AdapterPropertiesChanged(sig.Path, changed)
	case bluezDeviceInterface:
		c.handler.DevicePropertiesChanged(sig.Path, changed)
	}
}

// call issues a method call and hands the outcome to done from a fresh
// goroutine, never synchronously.
func (c *Client) call(path dbus.ObjectPath, method string, done func(err *btcommon.DaemonError), args ...interface{}) {
	obj := c.conn.Object(bluezDBusServiceName, path)
	ch := make(chan *dbus.Call, 1)
	obj.Go(method, 0, ch, args...)
	go func() {
		call := <-ch
		if done != nil {
			done(toDaemonError(call.Err))
		}
	}()
}

func toDaemonError(err error) *btcommon.DaemonError {
	if err == nil {
		return nil
	}
	if dbusErr, ok := err.(dbus.Error); ok {
		derr := &btcommon.DaemonError{Name: dbusErr.Name}
		if len(dbusErr.Body) > 0 {
			if msg, ok := dbusErr.Body[0].(string); ok {
				derr.Message = msg
			}
		}
		return derr
	}
	return &btcommon.DaemonError{
		Name:    btcommon.ErrNameFailed,
		Message: err.Error(),
	}
}

func (c *Client) StartDiscovery(adapter dbus.ObjectPath, done func(err *btcommon.DaemonError)) {
	c.call(adapter, bluezAdapterInterface+".StartDiscovery", done)
}

func (c *Client) StopDiscovery(adapter dbus.ObjectPath, done func(err *btcommon.DaemonError)) {
	c.call(adapter, bluezAdapterInterface+".StopDiscovery", done)
}

func (c *Client) SetDiscoveryFilter(adapter dbus.ObjectPath, filter map[string]dbus.Variant, done func(err *btcommon.DaemonError)) {
	c.call(adapter, bluezAdapterInterface+".SetDiscoveryFilter", done, filter)
}

func (c *Client) RegisterAgent(agent dbus.ObjectPath, capability string, done func(err *btcommon.DaemonError)) {
	c.call(bluezAgentManagerPath, bluezAgentManagerInterface+".RegisterAgent", done, agent, capability)
}

func (c *Client) UnregisterAgent(agent dbus.ObjectPath, done func(err *btcommon.DaemonError)) {
	c.call(bluezAgentManagerPath, bluezAgentManagerInterface+".UnregisterAgent", done, agent)
}

func (c *Client) RequestDefaultAgent(agent dbus.ObjectPath, done func(err *btcommon.DaemonError)) {
	c.call(bluezAgentManagerPath, bluezAgentManagerInterface+".RequestDefaultAgent", done, agent)
}

func (c *Client) RegisterProfile(profile dbus.ObjectPath, uuid string, options map[string]dbus.Variant, done func(err *btcommon.DaemonError)) {
	c.call(bluezAgentManagerPath, bluezProfileManagerInterface+".RegisterProfile", done, profile, uuid, options)
}

func (c *Client) UnregisterProfile(profile dbus.ObjectPath, done func(err *btcommon.DaemonError)) {
	c.call(bluezAgentManagerPath, bluezProfileManagerInterface+".UnregisterProfile", done, profile)
}

func (c *Client) RegisterApplication(adapter, application dbus.ObjectPath, done func(err *btcommon.DaemonError)) {
	options := make(map[string]dbus.Variant)
	c.call(adapter, bluezGattManagerInterface+".RegisterApplication", done, application, options)
}

func (c *Client) UnregisterApplication(adapter, application dbus.ObjectPath, done func(err *btcommon.DaemonError)) {
	c.call(adapter, bluezGattManagerInterface+".UnregisterApplication", done, application)
}

func (c *Client) SetAdapterProperty(adapter dbus.ObjectPath, name string, value interface{}, done func(err *btcommon.DaemonError)) {
	c.call(adapter, propertiesInterface+".Set", done,
		bluezAdapterInterface, name, dbus.MakeVariant(value))
}

func (c *Client) SetDeviceProperty(device dbus.ObjectPath, name string, value interface{}, done func(err *btcommon.DaemonError)) {
	c.call(device, propertiesInterface+".Set", done,
		bluezDeviceInterface, name, dbus.MakeVariant(value))
}

func (c *Client) managedObjects() map[dbus.ObjectPath]map[string]map[string]dbus.Variant {
	obj := c.conn.Object(bluezDBusServiceName, "/")
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	err := obj.Call(objectManagerInterface+".GetManagedObjects", 0).Store(&objects)
	if err != nil {
		logger.Warning("GetManagedObjects failed:", err)
		return nil
	}
	return objects
}

func (c *Client) Adapters() []dbus.ObjectPath {
	var paths []dbus.ObjectPath
	for path, interfaces := range c.managedObjects() {
		if _, ok := interfaces[bluezAdapterInterface]; ok {
			paths = append(paths, path)
		}
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })
	return paths
}

func (c *Client) AdapterProperties(adapter dbus.ObjectPath) map[string]dbus.Variant {
	obj := c.conn.Object(bluezDBusServiceName, adapter)
	var props map[string]dbus.Variant
	err := obj.Call(propertiesInterface+".GetAll", 0, bluezAdapterInterface).Store(&props)
	if err != nil {
		logger.Warning("GetAll failed:", err)
		return nil
	}
	return props
}

func (c *Client) DevicesForAdapter(adapter dbus.ObjectPath) map[dbus.ObjectPath]map[string]dbus.Variant {
	devices := make(map[dbus.ObjectPath]map[string]dbus.Variant)
	for path, interfaces := range c.managedObjects() {
		props, ok := interfaces[bluezDeviceInterface]
		if !ok {
			continue
		}
		if owner, ok := props["Adapter"].Value().(dbus.ObjectPath); ok && owner != adapter {
			continue
		}
		devices[path] = props
	}
	return devices
}
