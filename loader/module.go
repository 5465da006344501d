// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package loader

import (
	"github.com/linuxdeepin/go-lib/log"
)

type Module interface {
	Name() string
	SetLogLevel(log.Priority)
	LogLevel() log.Priority
	ModuleImpl
}

type ModuleImpl interface {
	Start() error // keep Start sync; error logging is done by the loader
	Stop() error
}

type ModuleBase struct {
	impl ModuleImpl
	name string
	log  *log.Logger
}

func NewModuleBase(name string, impl ModuleImpl, logger *log.Logger) *ModuleBase {
	return &ModuleBase{
		name: name,
		impl: impl,
		log:  logger,
	}
}

func (m *ModuleBase) Name() string {
	return m.name
}

func (m *ModuleBase) SetLogLevel(pri log.Priority) {
	m.log.SetLogLevel(pri)
}

func (m *ModuleBase) LogLevel() log.Priority {
	return m.log.GetLogLevel()
}
