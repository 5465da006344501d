// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package bluetooth is the adapter management core on top of the bluez daemon.

All daemon operations are asynchronous: callers pass a done callback and
results arrive later. The dbus interface follows the same shape, with cached
adapter and device information available immediately and state changes
announced through JSON payload signals.
*/
package bluetooth
