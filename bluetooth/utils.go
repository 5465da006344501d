// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
)

func formatPasskey(passkey uint32) string {
	return strconv.FormatUint(uint64(passkey), 10)
}

func marshalJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Warning(err)
		return ""
	}
	return string(data)
}

// normalizeAddress canonicalizes a bluetooth address for use as a registry
// key. The daemon reports addresses upper case already; tolerate anything.
func normalizeAddress(address string) string {
	return strings.ToUpper(address)
}

func variantString(v dbus.Variant, fallback string) string {
	if s, ok := v.Value().(string); ok {
		return s
	}
	return fallback
}

func variantBool(v dbus.Variant, fallback bool) bool {
	if b, ok := v.Value().(bool); ok {
		return b
	}
	return fallback
}

func variantInt16(v dbus.Variant, fallback int16) int16 {
	if n, ok := v.Value().(int16); ok {
		return n
	}
	return fallback
}

func variantUint32(v dbus.Variant, fallback uint32) uint32 {
	if n, ok := v.Value().(uint32); ok {
		return n
	}
	return fallback
}

func variantStrings(v dbus.Variant, fallback []string) []string {
	if ss, ok := v.Value().([]string); ok {
		return ss
	}
	return fallback
}

func ensureDone(done func(err error)) func(error) {
	if done == nil {
		return func(error) {}
	}
	return done
}
