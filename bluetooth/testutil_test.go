// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

import (
	"fmt"
	"sync"
	"testing"

	"github.com/godbus/dbus/v5"
	btcommon "github.com/linuxdeepin/bluetooth-daemon/common/bluetooth"
	"github.com/stretchr/testify/require"
)

const testAdapterPath = dbus.ObjectPath("/org/bluez/hci0")

// fakeCall is one recorded daemon request. The test decides when and how it
// completes.
type fakeCall struct {
	method    string
	path      dbus.ObjectPath
	args      []interface{}
	done      func(err *DaemonError)
	completed bool
}

func (c *fakeCall) complete(derr *DaemonError) {
	if c.completed {
		panic(fmt.Sprintf("call %s completed twice", c.method))
	}
	c.completed = true
	if c.done != nil {
		c.done(derr)
	}
}

type fakeClient struct {
	mu    sync.Mutex
	calls []*fakeCall

	adapterProps map[dbus.ObjectPath]map[string]dbus.Variant
	deviceProps  map[dbus.ObjectPath]map[string]dbus.Variant
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		adapterProps: map[dbus.ObjectPath]map[string]dbus.Variant{
			testAdapterPath: {
				"Address": dbus.MakeVariant("00:11:22:33:44:55"),
				"Alias":   dbus.MakeVariant("test-adapter"),
				"Powered": dbus.MakeVariant(true),
			},
		},
		deviceProps: make(map[dbus.ObjectPath]map[string]dbus.Variant),
	}
}

func (c *fakeClient) record(method string, path dbus.ObjectPath, done func(err *DaemonError), args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, &fakeCall{method: method, path: path, args: args, done: done})
}

// completeNext completes the oldest pending call of the given method,
// failing the test when there is none.
func (c *fakeClient) completeNext(t *testing.T, method string, derr *DaemonError) {
	t.Helper()
	call := c.nextPending(method)
	require.NotNil(t, call, "no pending %s call", method)
	call.complete(derr)
}

func (c *fakeClient) nextPending(method string) *fakeCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.method == method && !call.completed {
			return call
		}
	}
	return nil
}

func (c *fakeClient) callCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int
	for _, call := range c.calls {
		if call.method == method {
			n++
		}
	}
	return n
}

// completeAll completes every pending call with nil until none are left.
func (c *fakeClient) completeAll() {
	for {
		c.mu.Lock()
		var pending *fakeCall
		for _, call := range c.calls {
			if !call.completed {
				pending = call
				break
			}
		}
		c.mu.Unlock()
		if pending == nil {
			return
		}
		pending.complete(nil)
	}
}

func (c *fakeClient) StartDiscovery(adapter dbus.ObjectPath, done func(err *DaemonError)) {
	c.record("StartDiscovery", adapter, done)
}

func (c *fakeClient) StopDiscovery(adapter dbus.ObjectPath, done func(err *DaemonError)) {
	c.record("StopDiscovery", adapter, done)
}

func (c *fakeClient) SetDiscoveryFilter(adapter dbus.ObjectPath, filter map[string]dbus.Variant, done func(err *DaemonError)) {
	c.record("SetDiscoveryFilter", adapter, done, filter)
}

func (c *fakeClient) RegisterAgent(agent dbus.ObjectPath, capability string, done func(err *DaemonError)) {
	c.record("RegisterAgent", agent, done, capability)
}

func (c *fakeClient) UnregisterAgent(agent dbus.ObjectPath, done func(err *DaemonError)) {
	c.record("UnregisterAgent", agent, done)
}

func (c *fakeClient) RequestDefaultAgent(agent dbus.ObjectPath, done func(err *DaemonError)) {
	c.record("RequestDefaultAgent", agent, done)
}

func (c *fakeClient) RegisterProfile(profile dbus.ObjectPath, uuid string, options map[string]dbus.Variant, done func(err *DaemonError)) {
	c.record("RegisterProfile", profile, done, uuid, options)
}

func (c *fakeClient) UnregisterProfile(profile dbus.ObjectPath, done func(err *DaemonError)) {
	c.record("UnregisterProfile", profile, done)
}

func (c *fakeClient) RegisterApplication(adapter, application dbus.ObjectPath, done func(err *DaemonError)) {
	c.record("RegisterApplication", adapter, done, application)
}

func (c *fakeClient) UnregisterApplication(adapter, application dbus.ObjectPath, done func(err *DaemonError)) {
	c.record("UnregisterApplication", adapter, done, application)
}

func (c *fakeClient) SetAdapterProperty(adapter dbus.ObjectPath, name string, value interface{}, done func(err *DaemonError)) {
	c.record("SetAdapterProperty", adapter, done, name, value)
}

func (c *fakeClient) SetDeviceProperty(device dbus.ObjectPath, name string, value interface{}, done func(err *DaemonError)) {
	c.record("SetDeviceProperty", device, done, name, value)
}

func (c *fakeClient) Adapters() []dbus.ObjectPath {
	c.mu.Lock()
	defer c.mu.Unlock()
	var paths []dbus.ObjectPath
	for path := range c.adapterProps {
		paths = append(paths, path)
	}
	return paths
}

func (c *fakeClient) AdapterProperties(adapter dbus.ObjectPath) map[string]dbus.Variant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adapterProps[adapter]
}

func (c *fakeClient) DevicesForAdapter(adapter dbus.ObjectPath) map[dbus.ObjectPath]map[string]dbus.Variant {
	c.mu.Lock()
	defer c.mu.Unlock()
	devices := make(map[dbus.ObjectPath]map[string]dbus.Variant, len(c.deviceProps))
	for path, props := range c.deviceProps {
		devices[path] = props
	}
	return devices
}

var _ DaemonClient = (*fakeClient)(nil)

func deviceProps(address, name string) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"Address": dbus.MakeVariant(address),
		"Alias":   dbus.MakeVariant(name),
		"Name":    dbus.MakeVariant(name),
	}
}

// testObserver records observer events as readable strings.
type testObserver struct {
	NopObserver
	mu     sync.Mutex
	events []string
}

func (o *testObserver) add(format string, args ...interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, fmt.Sprintf(format, args...))
}

func (o *testObserver) AdapterPresentChanged(present bool) { o.add("present=%v", present) }
func (o *testObserver) AdapterPoweredChanged(powered bool) { o.add("powered=%v", powered) }
func (o *testObserver) AdapterDiscoveringChanged(v bool)   { o.add("discovering=%v", v) }
func (o *testObserver) DeviceAdded(d *Device)              { o.add("added %s", d.Address) }
func (o *testObserver) DeviceRemoved(d *Device)            { o.add("removed %s", d.Address) }
func (o *testObserver) DeviceAddressChanged(d *Device, old string) {
	o.add("readdressed %s->%s", old, d.Address)
}
func (o *testObserver) DevicePairedChanged(d *Device, paired bool) {
	o.add("paired %s=%v", d.Address, paired)
}
func (o *testObserver) GattServicesDiscovered(d *Device) { o.add("resolved %s", d.Address) }

func (o *testObserver) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

func (o *testObserver) count(prefixed string) int {
	var n int
	for _, ev := range o.snapshot() {
		if len(ev) >= len(prefixed) && ev[:len(prefixed)] == prefixed {
			n++
		}
	}
	return n
}

func newTestAdapter(t *testing.T) (*Adapter, *fakeClient) {
	t.Helper()
	client := newFakeClient()
	a := NewAdapter(client, btcommon.AgentPath)
	require.NoError(t, a.Bind(testAdapterPath))
	return a, client
}

// doneRecorder captures completion callbacks for assertions.
type doneRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *doneRecorder) done(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *doneRecorder) results() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}
