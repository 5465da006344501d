// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

import (
	"github.com/linuxdeepin/bluetooth-daemon/bluezdbus"
	btcommon "github.com/linuxdeepin/bluetooth-daemon/common/bluetooth"
	"github.com/linuxdeepin/bluetooth-daemon/loader"
	"github.com/linuxdeepin/go-lib/log"
)

type module struct {
	*loader.ModuleBase
}

func newBluetoothModule(logger *log.Logger) *module {
	var m = new(module)
	m.ModuleBase = loader.NewModuleBase("bluetooth", m, logger)
	return m
}

var (
	_client  *bluezdbus.Client
	_adapter *Adapter
	_service *Service
	_cfg     *config
)

func (m *module) Start() error {
	if _adapter != nil {
		return nil
	}

	service := loader.GetService()

	client, err := bluezdbus.NewClient()
	if err != nil {
		return err
	}
	_client = client

	_adapter = NewAdapter(client, btcommon.AgentPath)
	_cfg = newConfig()
	_cfg.load()
	_adapter.cfg = _cfg
	_cfg.startWatch(_adapter.ReapplyConfig)

	_service = newService(service, _adapter)
	err = _service.export()
	if err != nil {
		logger.Warning("failed to export bluetooth:", err)
		_adapter = nil
		return err
	}

	err = service.RequestName(dbusServiceName)
	if err != nil {
		return err
	}

	agent := bluezdbus.NewAgent(_adapter)
	err = service.Export(btcommon.AgentPath, agent)
	if err != nil {
		logger.Warning("failed to export agent:", err)
		return err
	}

	// connect to bluez after the dbus interfaces are installed
	go func() {
		err := _client.Start(_adapter)
		if err != nil {
			logger.Warning("failed to start bluez client:", err)
			return
		}
		_adapter.Start()
	}()
	return nil
}

func (m *module) Stop() error {
	if _adapter == nil {
		return nil
	}

	service := loader.GetService()
	err := service.ReleaseName(dbusServiceName)
	if err != nil {
		logger.Warning(err)
	}

	_adapter.Stop()
	_client.Stop()
	_cfg.stopWatch()
	_service.stopExport()

	_adapter = nil
	_service = nil
	_client = nil
	_cfg = nil
	return nil
}
