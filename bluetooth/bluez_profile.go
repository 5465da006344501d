// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

import . "github.com/linuxdeepin/go-lib/gettext"

// Well known profile UUIDs.
// nolint
const (
	SPP_UUID       = "00001101-0000-1000-8000-00805f9b34fb"
	DUN_GW_UUID    = "00001103-0000-1000-8000-00805f9b34fb"
	HFP_HS_UUID    = "0000111e-0000-1000-8000-00805f9b34fb"
	HFP_AG_UUID    = "0000111f-0000-1000-8000-00805f9b34fb"
	HSP_AG_UUID    = "00001112-0000-1000-8000-00805f9b34fb"
	A2DP_SINK_UUID = "0000110b-0000-1000-8000-00805f9b34fb"
	A2DP_SRC_UUID  = "0000110a-0000-1000-8000-00805f9b34fb"
	OBEX_OPP_UUID  = "00001105-0000-1000-8000-00805f9b34fb"
	OBEX_FTP_UUID  = "00001106-0000-1000-8000-00805f9b34fb"
	OBEX_SYNC_UUID = "00001104-0000-1000-8000-00805f9b34fb"
	OBEX_PSE_UUID  = "0000112f-0000-1000-8000-00805f9b34fb"
	OBEX_PCE_UUID  = "0000112e-0000-1000-8000-00805f9b34fb"
	OBEX_MAS_UUID  = "00001132-0000-1000-8000-00805f9b34fb"
	OBEX_MNS_UUID  = "00001133-0000-1000-8000-00805f9b34fb"
)

type profile struct {
	uuid, name string
}

// nolint
var profiles = []profile{
	profile{SPP_UUID, Tr("Serial port")},
	profile{DUN_GW_UUID, Tr("Dial-Up networking")},
	profile{HFP_HS_UUID, Tr("Hands-Free device")},
	profile{HFP_AG_UUID, Tr("Hands-Free voice gateway")},
	profile{HSP_AG_UUID, Tr("Headset voice gateway")},
	profile{A2DP_SINK_UUID, Tr("Audio sink")},
	profile{A2DP_SRC_UUID, Tr("Audio source")},
	profile{OBEX_OPP_UUID, Tr("Object push")},
	profile{OBEX_FTP_UUID, Tr("File transfer")},
	profile{OBEX_SYNC_UUID, Tr("Synchronization")},
	profile{OBEX_PSE_UUID, Tr("Phone book access")},
	profile{OBEX_PCE_UUID, Tr("Phone book access client")},
	profile{OBEX_MAS_UUID, Tr("Message access")},
	profile{OBEX_MNS_UUID, Tr("Message notification")},
}

// profileName returns the display name of a profile UUID, or the UUID itself
// for unknown profiles.
func profileName(uuid string) string {
	for _, p := range profiles {
		if p.uuid == uuid {
			return p.name
		}
	}
	return uuid
}
