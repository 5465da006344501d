// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

import "github.com/godbus/dbus/v5"

// Error names the bluetooth daemon may return on any request.
const (
	ErrNameRejected       = "org.bluez.Error.Rejected"
	ErrNameCanceled       = "org.bluez.Error.Canceled"
	ErrNameAlreadyExists  = "org.bluez.Error.AlreadyExists"
	ErrNameDoesNotExist   = "org.bluez.Error.DoesNotExist"
	ErrNameInProgress     = "org.bluez.Error.InProgress"
	ErrNameNotReady       = "org.bluez.Error.NotReady"
	ErrNameNotSupported   = "org.bluez.Error.NotSupported"
	ErrNameFailed         = "org.bluez.Error.Failed"
	ErrNameUnknownAdapter = "org.bluez.Error.UnknownAdapter"
	ErrNameNoResponse     = "org.freedesktop.DBus.Error.NoReply"
)

var ErrRejected = &dbus.Error{
	Name: ErrNameRejected,
	Body: []interface{}{"rejected"},
}

var ErrCanceled = &dbus.Error{
	Name: ErrNameCanceled,
	Body: []interface{}{"canceled"},
}

// AgentPath is the object path of the pairing agent exported on the system
// bus. The path itself is meaningless to the daemon, it only has to be unique
// within this connection.
const AgentPath = "/org/deepin/bluetooth/Agent"

// AgentCapKeyboardDisplay is the IO capability announced on agent
// registration.
const AgentCapKeyboardDisplay = "KeyboardDisplay"
