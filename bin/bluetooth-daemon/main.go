// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"os"

	_ "github.com/linuxdeepin/bluetooth-daemon/bluetooth"
	"github.com/linuxdeepin/bluetooth-daemon/loader"
	"github.com/linuxdeepin/go-lib/dbusutil"
	. "github.com/linuxdeepin/go-lib/gettext"
	"github.com/linuxdeepin/go-lib/log"
)

var logger = log.NewLogger("bluetooth-daemon")

func main() {
	service, err := dbusutil.NewSystemService()
	if err != nil {
		logger.Fatal("failed to new system service:", err)
	}

	hasOwner, err := service.NameHasOwner("org.deepin.dde.Bluetooth1")
	if err != nil {
		logger.Fatal("failed to call NameHasOwner:", err)
	}
	if hasOwner {
		logger.Warning("bluetooth daemon is already running")
		os.Exit(1)
	}

	// fix no PATH when launched by dbus activation
	if os.Getenv("PATH") == "" {
		err = os.Setenv("PATH", "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin")
		if err != nil {
			logger.Warning(err)
		}
	}

	InitI18n()
	BindTextdomainCodeset("bluetooth-daemon", "UTF-8")
	Textdomain("bluetooth-daemon")

	loader.SetService(service)
	err = loader.StartAll()
	if err != nil {
		logger.Fatal(err)
	}
	defer loader.StopAll()

	service.Wait()
}
