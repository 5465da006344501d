// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package loader keeps the registry of daemon modules and starts them on a
// shared dbusutil service.
package loader

import (
	"fmt"
	"sync"

	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/log"
)

type Loader struct {
	lock    sync.Mutex
	modules map[string]Module
	order   []string
	log     *log.Logger
	service *dbusutil.Service
}

var loaderInitializer sync.Once
var _loader *Loader

func getLoader() *Loader {
	loaderInitializer.Do(func() {
		_loader = &Loader{
			modules: make(map[string]Module),
			log:     log.NewLogger("daemon/loader"),
		}
	})
	return _loader
}

func SetService(s *dbusutil.Service) {
	l := getLoader()
	l.service = s
}

func GetService() *dbusutil.Service {
	return getLoader().service
}

func Register(m Module) {
	getLoader().addModule(m)
}

func (l *Loader) addModule(m Module) {
	l.lock.Lock()
	defer l.lock.Unlock()
	name := m.Name()
	_, exist := l.modules[name]
	if exist {
		l.log.Debug("Register", name, "is already registered")
		return
	}
	l.log.Debug("Register module:", name)
	l.modules[name] = m
	l.order = append(l.order, name)
}

func (l *Loader) getModule(name string) Module {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.modules[name]
}

func GetModule(name string) Module {
	return getLoader().getModule(name)
}

func SetLogLevel(pri log.Priority) {
	l := getLoader()
	l.lock.Lock()
	defer l.lock.Unlock()
	l.log.SetLogLevel(pri)
	for _, m := range l.modules {
		m.SetLogLevel(pri)
	}
}

// StartAll starts registered modules in registration order. The first module
// failing to start aborts the whole startup.
func StartAll() error {
	l := getLoader()
	l.lock.Lock()
	defer l.lock.Unlock()

	for _, name := range l.order {
		m := l.modules[name]
		l.log.Info("start module", name)
		err := m.Start()
		if err != nil {
			return fmt.Errorf("start module %s failed: %w", name, err)
		}
	}
	return nil
}

// StopAll stops modules in reverse registration order. Stop errors are
// logged, not propagated, so every module gets its chance to clean up.
func StopAll() {
	l := getLoader()
	l.lock.Lock()
	defer l.lock.Unlock()

	for i := len(l.order) - 1; i >= 0; i-- {
		m := l.modules[l.order[i]]
		l.log.Info("stop module", m.Name())
		err := m.Stop()
		if err != nil {
			l.log.Warning("stop module failed:", err)
		}
	}
}
