// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

import (
	"testing"

	"github.com/godbus/dbus/v5"
	btcommon "github.com/linuxdeepin/bluetooth-daemon/common/bluetooth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDiscoverySessionStartsScan(t *testing.T) {
	a, client := newTestAdapter(t)
	var rec doneRecorder

	a.AddDiscoverySession(nil, rec.done)
	assert.Equal(t, 0, a.DiscoverySessionCount())
	require.Equal(t, 1, client.callCount("StartDiscovery"))

	client.completeNext(t, "StartDiscovery", nil)
	require.Equal(t, []error{nil}, rec.results())
	assert.Equal(t, 1, a.DiscoverySessionCount())
}

func TestAddDiscoverySessionQueuesWhilePending(t *testing.T) {
	a, client := newTestAdapter(t)
	var rec1, rec2, rec3 doneRecorder

	a.AddDiscoverySession(nil, rec1.done)
	a.AddDiscoverySession(nil, rec2.done)
	a.AddDiscoverySession(nil, rec3.done)
	// one request in flight, the rest queued
	require.Equal(t, 1, client.callCount("StartDiscovery"))

	client.completeNext(t, "StartDiscovery", nil)
	// queued adds replay against the now running scan without another start
	require.Equal(t, 1, client.callCount("StartDiscovery"))
	assert.Equal(t, []error{nil}, rec1.results())
	assert.Equal(t, []error{nil}, rec2.results())
	assert.Equal(t, []error{nil}, rec3.results())
	assert.Equal(t, 3, a.DiscoverySessionCount())
}

func TestRemoveDiscoverySessionWhilePendingConflicts(t *testing.T) {
	a, client := newTestAdapter(t)
	var addRec, removeRec doneRecorder

	a.AddDiscoverySession(nil, addRec.done)
	a.RemoveDiscoverySession(nil, removeRec.done)
	require.Equal(t, []error{ErrConflictingRequest}, removeRec.results())

	// the pending add is unaffected
	client.completeNext(t, "StartDiscovery", nil)
	assert.Equal(t, []error{nil}, addRec.results())
	assert.Equal(t, 1, a.DiscoverySessionCount())
}

func TestLastRemoveStopsScan(t *testing.T) {
	a, client := newTestAdapter(t)
	var rec doneRecorder

	a.AddDiscoverySession(nil, nil)
	client.completeNext(t, "StartDiscovery", nil)

	a.RemoveDiscoverySession(nil, rec.done)
	require.Equal(t, 1, client.callCount("StopDiscovery"))
	client.completeNext(t, "StopDiscovery", nil)
	assert.Equal(t, []error{nil}, rec.results())
	assert.Equal(t, 0, a.DiscoverySessionCount())
}

func TestRemoveWithoutSession(t *testing.T) {
	a, _ := newTestAdapter(t)
	var rec doneRecorder

	a.RemoveDiscoverySession(nil, rec.done)
	assert.Equal(t, []error{ErrNoActiveSession}, rec.results())
}

func TestRemoveKeepsScanWithRemainingSessions(t *testing.T) {
	a, client := newTestAdapter(t)
	rssi := int16(-60)
	f1 := &DiscoveryFilter{RSSI: &rssi, Transport: TransportLe}
	f2 := &DiscoveryFilter{Transport: TransportBrEdr}

	a.AddDiscoverySession(f1, nil)
	client.completeAll()
	a.AddDiscoverySession(f2, nil)
	client.completeAll()
	require.Equal(t, 2, a.DiscoverySessionCount())

	var rec doneRecorder
	a.RemoveDiscoverySession(f1, rec.done)
	// the scan keeps running under the remaining session's filter
	assert.Equal(t, 0, client.callCount("StopDiscovery"))
	client.completeNext(t, "SetDiscoveryFilter", nil)
	assert.Equal(t, []error{nil}, rec.results())
	assert.Equal(t, 1, a.DiscoverySessionCount())
}

func TestStartInProgressAdoptsRunningScan(t *testing.T) {
	a, client := newTestAdapter(t)
	var rec doneRecorder

	a.AddDiscoverySession(nil, rec.done)
	a.AdapterPropertiesChanged(testAdapterPath, map[string]dbus.Variant{
		"Discovering": dbus.MakeVariant(true),
	})
	client.completeNext(t, "StartDiscovery", &DaemonError{Name: btcommon.ErrNameInProgress})
	assert.Equal(t, []error{nil}, rec.results())
	assert.Equal(t, 1, a.DiscoverySessionCount())
}

func TestStartInProgressWithoutDiscoveringFails(t *testing.T) {
	a, client := newTestAdapter(t)
	var rec doneRecorder

	a.AddDiscoverySession(nil, rec.done)
	client.completeNext(t, "StartDiscovery", &DaemonError{Name: btcommon.ErrNameInProgress})
	results := rec.results()
	require.Len(t, results, 1)
	assert.Error(t, results[0])
	assert.Equal(t, 0, a.DiscoverySessionCount())
}

func TestExternalStopResetsSessions(t *testing.T) {
	a, client := newTestAdapter(t)

	a.AddDiscoverySession(nil, nil)
	a.AdapterPropertiesChanged(testAdapterPath, map[string]dbus.Variant{
		"Discovering": dbus.MakeVariant(true),
	})
	client.completeNext(t, "StartDiscovery", nil)
	require.Equal(t, 1, a.DiscoverySessionCount())

	// the daemon turned discovery off on its own
	a.AdapterPropertiesChanged(testAdapterPath, map[string]dbus.Variant{
		"Discovering": dbus.MakeVariant(false),
	})
	assert.Equal(t, 0, a.DiscoverySessionCount())
	assert.False(t, a.Discovering())
}

func TestEqualFilterSkipsDaemonRoundTrip(t *testing.T) {
	a, client := newTestAdapter(t)
	rssi := int16(-70)
	filter := &DiscoveryFilter{RSSI: &rssi, UUIDs: []string{SPP_UUID}}

	a.AddDiscoverySession(filter, nil)
	client.completeAll()
	require.Equal(t, 1, client.callCount("SetDiscoveryFilter"))

	var rec doneRecorder
	a.AddDiscoverySession(filter, rec.done)
	// merged filter is structurally identical, no second round trip
	assert.Equal(t, 1, client.callCount("SetDiscoveryFilter"))
	assert.Equal(t, []error{nil}, rec.results())
	assert.Equal(t, 2, a.DiscoverySessionCount())
}

func TestUnbindFailsInFlightAndQueued(t *testing.T) {
	a, client := newTestAdapter(t)
	var inFlight, queued doneRecorder

	a.AddDiscoverySession(nil, inFlight.done)
	a.AddDiscoverySession(nil, queued.done)

	require.NoError(t, a.Unbind())
	assert.Equal(t, []error{ErrAdapterRemoved}, queued.results())

	// the in-flight completion arrives after the unbind
	client.completeNext(t, "StartDiscovery", nil)
	assert.Equal(t, []error{ErrAdapterRemoved}, inFlight.results())
	assert.Equal(t, 0, a.DiscoverySessionCount())
}

func TestAddDiscoverySessionWithoutAdapter(t *testing.T) {
	client := newFakeClient()
	a := NewAdapter(client, btcommon.AgentPath)
	var rec doneRecorder

	a.AddDiscoverySession(nil, rec.done)
	assert.Equal(t, []error{ErrAdapterNotPresent}, rec.results())
}

func TestQueueDrainReplaysWithFilterChange(t *testing.T) {
	a, client := newTestAdapter(t)
	f1 := &DiscoveryFilter{Transport: TransportLe}
	f2 := &DiscoveryFilter{Transport: TransportBrEdr}
	var rec1, rec2 doneRecorder

	a.AddDiscoverySession(f1, rec1.done)
	a.AddDiscoverySession(f2, rec2.done)
	require.Equal(t, 1, client.callCount("SetDiscoveryFilter"))

	client.completeNext(t, "SetDiscoveryFilter", nil)
	client.completeNext(t, "StartDiscovery", nil)
	assert.Equal(t, []error{nil}, rec1.results())

	// the queued add replays against the running scan, loosening the filter
	assert.Empty(t, rec2.results())
	require.Equal(t, 2, client.callCount("SetDiscoveryFilter"))
	client.completeNext(t, "SetDiscoveryFilter", nil)
	assert.Equal(t, []error{nil}, rec2.results())
	assert.Equal(t, 2, a.DiscoverySessionCount())
}
