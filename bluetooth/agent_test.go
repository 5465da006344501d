// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDelegate answers every request immediately with a canned status.
type recordingDelegate struct {
	status   PairingStatus
	pin      string
	passkey  uint32
	requests []string
	canceled []string
}

func (d *recordingDelegate) RequestPinCode(dev *Device, respond func(pin string, status PairingStatus)) {
	d.requests = append(d.requests, "pincode "+dev.Address)
	respond(d.pin, d.status)
}

func (d *recordingDelegate) DisplayPinCode(dev *Device, pinCode string) {
	d.requests = append(d.requests, "display-pincode "+pinCode)
}

func (d *recordingDelegate) RequestPasskey(dev *Device, respond func(passkey uint32, status PairingStatus)) {
	d.requests = append(d.requests, "passkey "+dev.Address)
	respond(d.passkey, d.status)
}

func (d *recordingDelegate) DisplayPasskey(dev *Device, passkey uint32, entered uint16) {
	d.requests = append(d.requests, "display-passkey "+dev.Address)
}

func (d *recordingDelegate) RequestConfirmation(dev *Device, passkey uint32, respond func(status PairingStatus)) {
	d.requests = append(d.requests, "confirm "+dev.Address)
	respond(d.status)
}

func (d *recordingDelegate) RequestAuthorization(dev *Device, respond func(status PairingStatus)) {
	d.requests = append(d.requests, "authorize "+dev.Address)
	respond(d.status)
}

func (d *recordingDelegate) Cancel(dev *Device) {
	d.canceled = append(d.canceled, dev.Address)
}

func TestAgentRequestRoutesToDefaultDelegate(t *testing.T) {
	a, _ := newTestAdapter(t)
	addTestDevice(a, "phone")
	delegate := &recordingDelegate{status: PairingSuccess, pin: "1234"}
	a.SetPairingDelegate(delegate)

	var gotPin string
	var gotStatus PairingStatus
	a.AgentRequestPinCode(testDevPath, func(pin string, status PairingStatus) {
		gotPin, gotStatus = pin, status
	})
	assert.Equal(t, "1234", gotPin)
	assert.Equal(t, PairingSuccess, gotStatus)
	assert.Equal(t, []string{"pincode AA:BB:CC:DD:EE:FF"}, delegate.requests)
}

func TestAgentRequestPrefersDeviceContext(t *testing.T) {
	a, _ := newTestAdapter(t)
	addTestDevice(a, "phone")
	fallback := &recordingDelegate{status: PairingRejected}
	ctx := &recordingDelegate{status: PairingSuccess, passkey: 42}
	a.SetPairingDelegate(fallback)
	a.ExpectPairing("aa:bb:cc:dd:ee:ff", ctx)

	var gotKey uint32
	var gotStatus PairingStatus
	a.AgentRequestPasskey(testDevPath, func(passkey uint32, status PairingStatus) {
		gotKey, gotStatus = passkey, status
	})
	assert.Equal(t, uint32(42), gotKey)
	assert.Equal(t, PairingSuccess, gotStatus)
	assert.Empty(t, fallback.requests)
}

func TestAgentRequestWithoutDelegateRejected(t *testing.T) {
	a, _ := newTestAdapter(t)
	addTestDevice(a, "phone")

	var gotStatus PairingStatus
	a.AgentRequestConfirmation(testDevPath, 123456, func(status PairingStatus) {
		gotStatus = status
	})
	assert.Equal(t, PairingRejected, gotStatus)
}

func TestAgentRequestUnknownDeviceRejected(t *testing.T) {
	a, _ := newTestAdapter(t)
	a.SetPairingDelegate(&recordingDelegate{status: PairingSuccess})

	var gotStatus PairingStatus
	a.AgentRequestAuthorization("/org/bluez/hci0/dev_unknown", func(status PairingStatus) {
		gotStatus = status
	})
	assert.Equal(t, PairingRejected, gotStatus)
}

func TestPairingContextFollowsReaddress(t *testing.T) {
	a, _ := newTestAdapter(t)
	addTestDevice(a, "phone")
	ctx := &recordingDelegate{status: PairingSuccess}
	a.ExpectPairing("AA:BB:CC:DD:EE:FF", ctx)

	a.DevicePropertiesChanged(testDevPath, map[string]dbus.Variant{
		"Address": dbus.MakeVariant("11:22:33:44:55:66"),
	})

	var gotStatus PairingStatus
	a.AgentRequestConfirmation(testDevPath, 1, func(status PairingStatus) {
		gotStatus = status
	})
	assert.Equal(t, PairingSuccess, gotStatus)
	assert.Equal(t, []string{"confirm 11:22:33:44:55:66"}, ctx.requests)
}

func TestPairingContextDroppedWithDevice(t *testing.T) {
	a, _ := newTestAdapter(t)
	addTestDevice(a, "phone")
	ctx := &recordingDelegate{status: PairingSuccess}
	a.ExpectPairing("AA:BB:CC:DD:EE:FF", ctx)

	a.DeviceRemoved(testDevPath)
	addTestDevice(a, "phone")

	var gotStatus PairingStatus
	a.AgentRequestConfirmation(testDevPath, 1, func(status PairingStatus) {
		gotStatus = status
	})
	assert.Equal(t, PairingRejected, gotStatus)
	assert.Empty(t, ctx.requests)
}

func TestAuthorizeServicePairedOnly(t *testing.T) {
	a, _ := newTestAdapter(t)
	addTestDevice(a, "phone")

	var gotStatus PairingStatus
	a.AgentAuthorizeService(testDevPath, SPP_UUID, func(status PairingStatus) {
		gotStatus = status
	})
	assert.Equal(t, PairingRejected, gotStatus)

	a.DevicePropertiesChanged(testDevPath, map[string]dbus.Variant{
		"Paired": dbus.MakeVariant(true),
	})
	a.AgentAuthorizeService(testDevPath, SPP_UUID, func(status PairingStatus) {
		gotStatus = status
	})
	assert.Equal(t, PairingSuccess, gotStatus)
}

func TestAgentCancelReachesDelegate(t *testing.T) {
	a, _ := newTestAdapter(t)
	d := addTestDevice(a, "phone")
	require.NotNil(t, d)

	delegate := &blockedDelegate{recordingDelegate{status: PairingSuccess}}
	a.SetPairingDelegate(delegate)

	// a request that the delegate never answers leaves it active
	a.AgentRequestConfirmation(testDevPath, 9, func(PairingStatus) {})
	a.AgentCancel()
	assert.Equal(t, []string{"AA:BB:CC:DD:EE:FF"}, delegate.canceled)
}

// blockedDelegate records requests but never invokes respond.
type blockedDelegate struct {
	recordingDelegate
}

func (d *blockedDelegate) RequestConfirmation(dev *Device, passkey uint32, respond func(status PairingStatus)) {
	d.requests = append(d.requests, "confirm "+dev.Address)
}
