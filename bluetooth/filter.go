// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

import (
	"github.com/godbus/dbus/v5"
	"github.com/linuxdeepin/go-lib/strv"
)

// Discovery transports understood by the daemon.
const (
	TransportAuto  = "auto"
	TransportBrEdr = "bredr"
	TransportLe    = "le"
)

// DiscoveryFilter narrows what a discovery session wants to see. A nil
// *DiscoveryFilter means unfiltered discovery.
type DiscoveryFilter struct {
	RSSI      *int16
	Pathloss  *uint16
	Transport string
	UUIDs     strv.Strv
}

func (f *DiscoveryFilter) Copy() *DiscoveryFilter {
	if f == nil {
		return nil
	}
	c := &DiscoveryFilter{
		Transport: f.Transport,
		UUIDs:     append(strv.Strv(nil), f.UUIDs...),
	}
	if f.RSSI != nil {
		rssi := *f.RSSI
		c.RSSI = &rssi
	}
	if f.Pathloss != nil {
		pathloss := *f.Pathloss
		c.Pathloss = &pathloss
	}
	return c
}

// Equal reports structural equality, treating nil as the unfiltered filter.
// UUID sets compare as sets, not as ordered lists.
func (f *DiscoveryFilter) Equal(other *DiscoveryFilter) bool {
	if f == nil || other == nil {
		return f == nil && other == nil
	}
	if (f.RSSI == nil) != (other.RSSI == nil) {
		return false
	}
	if f.RSSI != nil && *f.RSSI != *other.RSSI {
		return false
	}
	if (f.Pathloss == nil) != (other.Pathloss == nil) {
		return false
	}
	if f.Pathloss != nil && *f.Pathloss != *other.Pathloss {
		return false
	}
	if f.Transport != other.Transport {
		return false
	}
	if len(f.UUIDs) != len(other.UUIDs) {
		return false
	}
	for _, uuid := range f.UUIDs {
		if !other.UUIDs.Contains(uuid) {
			return false
		}
	}
	return true
}

// merge returns the loosest filter satisfying both f and other. A nil on
// either side means unfiltered, which swallows everything.
func (f *DiscoveryFilter) merge(other *DiscoveryFilter) *DiscoveryFilter {
	if f == nil || other == nil {
		return nil
	}
	merged := &DiscoveryFilter{
		Transport: f.Transport,
	}
	if other.Transport != f.Transport {
		merged.Transport = TransportAuto
	}
	// keep the weaker signal bound of the two
	if f.RSSI != nil && other.RSSI != nil {
		rssi := *f.RSSI
		if *other.RSSI < rssi {
			rssi = *other.RSSI
		}
		merged.RSSI = &rssi
	}
	if f.Pathloss != nil && other.Pathloss != nil {
		pathloss := *f.Pathloss
		if *other.Pathloss > pathloss {
			pathloss = *other.Pathloss
		}
		merged.Pathloss = &pathloss
	}
	merged.UUIDs = append(strv.Strv(nil), f.UUIDs...)
	for _, uuid := range other.UUIDs {
		if !merged.UUIDs.Contains(uuid) {
			merged.UUIDs = append(merged.UUIDs, uuid)
		}
	}
	return merged
}

// mergeSessionFilters folds the per-session filters of all active sessions
// into the single effective filter the daemon sees.
func mergeSessionFilters(filters []*DiscoveryFilter) *DiscoveryFilter {
	if len(filters) == 0 {
		return nil
	}
	merged := filters[0].Copy()
	for _, f := range filters[1:] {
		merged = merged.merge(f)
		if merged == nil {
			return nil
		}
	}
	return merged
}

// daemonProps translates the filter into the property map the daemon's
// SetDiscoveryFilter request takes. A nil filter clears the daemon filter
// with an empty map.
func (f *DiscoveryFilter) daemonProps() map[string]dbus.Variant {
	props := make(map[string]dbus.Variant)
	if f == nil {
		return props
	}
	if f.RSSI != nil {
		props["RSSI"] = dbus.MakeVariant(*f.RSSI)
	}
	if f.Pathloss != nil {
		props["Pathloss"] = dbus.MakeVariant(*f.Pathloss)
	}
	if f.Transport != "" {
		props["Transport"] = dbus.MakeVariant(f.Transport)
	}
	if len(f.UUIDs) > 0 {
		props["UUIDs"] = dbus.MakeVariant([]string(f.UUIDs))
	}
	return props
}
