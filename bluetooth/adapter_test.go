// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	btcommon "github.com/linuxdeepin/bluetooth-daemon/common/bluetooth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindSeedsState(t *testing.T) {
	client := newFakeClient()
	client.deviceProps["/org/bluez/hci0/dev_F0_99"] = deviceProps("F0:99:88:77:66:55", "headset")
	a := NewAdapter(client, btcommon.AgentPath)
	obs := &testObserver{}
	a.AddObserver(obs)

	require.NoError(t, a.Bind(testAdapterPath))
	assert.True(t, a.Present())
	assert.Equal(t, "00:11:22:33:44:55", a.Address())
	assert.Equal(t, "test-adapter", a.Name())
	assert.True(t, a.Powered())

	events := obs.snapshot()
	assert.Contains(t, events, "present=true")
	assert.Contains(t, events, "powered=true")
	assert.Contains(t, events, "added F0:99:88:77:66:55")
	require.NotNil(t, a.DeviceByAddress("F0:99:88:77:66:55"))
}

func TestBindTwice(t *testing.T) {
	a, _ := newTestAdapter(t)
	assert.Equal(t, ErrAlreadyBound, a.Bind("/org/bluez/hci1"))
}

func TestUnbindRemovesAllDevices(t *testing.T) {
	client := newFakeClient()
	client.deviceProps["/org/bluez/hci0/dev_1"] = deviceProps("AA:00:00:00:00:01", "one")
	client.deviceProps["/org/bluez/hci0/dev_2"] = deviceProps("AA:00:00:00:00:02", "two")
	client.deviceProps["/org/bluez/hci0/dev_3"] = deviceProps("AA:00:00:00:00:03", "three")
	a := NewAdapter(client, btcommon.AgentPath)
	require.NoError(t, a.Bind(testAdapterPath))

	obs := &testObserver{}
	a.AddObserver(obs)
	require.NoError(t, a.Unbind())

	assert.Equal(t, 3, obs.count("removed "))
	assert.Empty(t, a.Devices())
	assert.False(t, a.Present())
	assert.Contains(t, obs.snapshot(), "present=false")
}

func TestUnbindWithoutAdapter(t *testing.T) {
	client := newFakeClient()
	a := NewAdapter(client, btcommon.AgentPath)
	assert.Equal(t, ErrAdapterNotPresent, a.Unbind())
}

func TestAdapterAddedBindsFirstOnly(t *testing.T) {
	a, _ := newTestAdapter(t)
	a.AdapterAdded("/org/bluez/hci1", nil)
	assert.Equal(t, testAdapterPath, a.Path())
}

func TestAdapterRemovedFailsOver(t *testing.T) {
	client := newFakeClient()
	client.adapterProps["/org/bluez/hci1"] = map[string]dbus.Variant{
		"Address": dbus.MakeVariant("66:77:88:99:AA:BB"),
		"Alias":   dbus.MakeVariant("second"),
	}
	a := NewAdapter(client, btcommon.AgentPath)
	require.NoError(t, a.Bind(testAdapterPath))

	delete(client.adapterProps, testAdapterPath)
	a.AdapterRemoved(testAdapterPath)
	assert.Equal(t, dbus.ObjectPath("/org/bluez/hci1"), a.Path())
	assert.Equal(t, "66:77:88:99:AA:BB", a.Address())
}

func TestStartRegistersAgent(t *testing.T) {
	client := newFakeClient()
	a := NewAdapter(client, btcommon.AgentPath)
	a.Start()

	require.Equal(t, 1, client.callCount("RegisterAgent"))
	assert.True(t, a.Present())

	// an agent left over from a previous run is fine
	client.completeNext(t, "RegisterAgent", &DaemonError{Name: btcommon.ErrNameAlreadyExists})
	require.Equal(t, 1, client.callCount("RequestDefaultAgent"))
	client.completeNext(t, "RequestDefaultAgent", nil)
}

func TestStopUnregistersAgent(t *testing.T) {
	a, client := newTestAdapter(t)
	a.Stop()
	assert.False(t, a.Present())
	require.Equal(t, 1, client.callCount("UnregisterAgent"))
	client.completeNext(t, "UnregisterAgent", &DaemonError{Name: btcommon.ErrNameDoesNotExist})

	// notifications after Stop are ignored
	a.AdapterAdded(testAdapterPath, nil)
	assert.False(t, a.Present())
}

func TestSetPowered(t *testing.T) {
	a, client := newTestAdapter(t)
	var rec doneRecorder

	a.SetPowered(false, rec.done)
	call := client.nextPending("SetAdapterProperty")
	require.NotNil(t, call)
	assert.Equal(t, []interface{}{"Powered", false}, call.args)

	call.complete(nil)
	assert.Equal(t, []error{nil}, rec.results())
}

func TestSetPoweredDaemonError(t *testing.T) {
	a, client := newTestAdapter(t)
	var rec doneRecorder

	a.SetPowered(true, rec.done)
	client.completeNext(t, "SetAdapterProperty", &DaemonError{Name: btcommon.ErrNameFailed, Message: "nope"})

	results := rec.results()
	require.Len(t, results, 1)
	var derr *DaemonError
	require.True(t, errors.As(results[0], &derr))
	assert.Equal(t, OutcomeFailed, derr.Outcome())
}

func TestSetDiscoverableClearsTimeout(t *testing.T) {
	a, client := newTestAdapter(t)
	var rec doneRecorder

	a.SetDiscoverable(true, rec.done)
	client.completeNext(t, "SetAdapterProperty", nil)
	assert.Equal(t, []error{nil}, rec.results())

	timeoutCall := client.nextPending("SetAdapterProperty")
	require.NotNil(t, timeoutCall)
	assert.Equal(t, []interface{}{"DiscoverableTimeout", uint32(0)}, timeoutCall.args)
}

func TestAdapterPropertiesChangedUpdatesState(t *testing.T) {
	a, _ := newTestAdapter(t)
	obs := &testObserver{}
	a.AddObserver(obs)

	a.AdapterPropertiesChanged(testAdapterPath, map[string]dbus.Variant{
		"Powered": dbus.MakeVariant(false),
		"Alias":   dbus.MakeVariant("renamed"),
	})
	assert.False(t, a.Powered())
	assert.Equal(t, "renamed", a.Name())
	assert.Contains(t, obs.snapshot(), "powered=false")

	// changes for other adapters are ignored
	a.AdapterPropertiesChanged("/org/bluez/hci9", map[string]dbus.Variant{
		"Powered": dbus.MakeVariant(true),
	})
	assert.False(t, a.Powered())
}
