// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

import (
	"path/filepath"

	"github.com/davecgh/go-spew/spew"
	"github.com/fsnotify/fsnotify"
	"github.com/linuxdeepin/go-lib/log"
	"github.com/linuxdeepin/go-lib/utils"
)

type config struct {
	core utils.Config

	Adapters map[string]*adapterConfig // keyed by adapter hardware address

	watcher *fsnotify.Watcher
}

var (
	adapterDefaultPowered      = false
	adapterDefaultDiscoverable = true
)

type adapterConfig struct {
	Powered      bool
	Discoverable bool
}

const configFile = "/var/lib/bluetooth-daemon/config.json"

func newConfig() (c *config) {
	c = &config{}
	c.core.SetConfigFile(configFile)
	logger.Info("load bluetooth config file:", c.core.GetConfigFile())
	c.Adapters = make(map[string]*adapterConfig)
	return
}

func (c *config) load() {
	err := c.core.Load(c)
	if err != nil {
		logger.Warning(err)
	}
	if logger.GetLogLevel() == log.LevelDebug {
		logger.Debugf("load config, adapters: %v", spew.Sdump(c.Adapters))
	}
}

func (c *config) save() {
	err := c.core.Save(c)
	if err != nil {
		logger.Warning(err)
	}
}

func newAdapterConfig() *adapterConfig {
	return &adapterConfig{
		Powered:      adapterDefaultPowered,
		Discoverable: adapterDefaultDiscoverable,
	}
}

func (c *config) addAdapterConfig(address string) {
	if c.getAdapterConfig(address) != nil {
		return
	}
	c.core.Lock()
	c.Adapters[address] = newAdapterConfig()
	c.core.Unlock()
	c.save()
}

func (c *config) getAdapterConfig(address string) *adapterConfig {
	c.core.Lock()
	defer c.core.Unlock()
	return c.Adapters[address]
}

func (c *config) getAdapterConfigPowered(address string) (powered bool) {
	c.core.Lock()
	defer c.core.Unlock()
	if ac, ok := c.Adapters[address]; ok {
		return ac.Powered
	}
	return adapterDefaultPowered
}

func (c *config) setAdapterConfigPowered(address string, powered bool) {
	c.core.Lock()
	if ac, ok := c.Adapters[address]; ok {
		ac.Powered = powered
	}
	c.core.Unlock()
	c.save()
}

func (c *config) setAdapterConfigDiscoverable(address string, discoverable bool) {
	c.core.Lock()
	if ac, ok := c.Adapters[address]; ok {
		ac.Discoverable = discoverable
	}
	c.core.Unlock()
	c.save()
}

// startWatch reloads the config when the file changes on disk, e.g. after an
// admin edits it, and invokes onReload so the caller can re-apply it.
func (c *config) startWatch(onReload func()) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warning("failed to watch config:", err)
		return
	}
	err = watcher.Add(filepath.Dir(c.core.GetConfigFile()))
	if err != nil {
		logger.Warning(err)
		_ = watcher.Close()
		return
	}
	c.watcher = watcher
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != c.core.GetConfigFile() {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				logger.Debug("config file changed, reloading")
				c.load()
				if onReload != nil {
					onReload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warning(err)
			}
		}
	}()
}

func (c *config) stopWatch() {
	if c.watcher != nil {
		_ = c.watcher.Close()
		c.watcher = nil
	}
}
