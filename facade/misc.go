/*
 * Copyright 2014 Canonical Ltd.
 *
 * This file is part of ofono2mm-go.
 *
 * ofono2mm-go is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; version 3.
 *
 * ofono2mm-go is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package facade

// Firmware, Time, Cdma, Oma and Sar are the remaining thin stand-ins
// mm_modem.py exports alongside a modem (init_mm_firmware_interface,
// init_mm_time_interface, init_mm_cdma_interface, init_mm_sar_interface,
// init_mm_oma_interface). None of these protocols apply to a GSM/LTE
// ofono modem, so each reports a single empty/disabled property set.

type Firmware struct{}

func NewFirmware() *Firmware { return &Firmware{} }

func (f *Firmware) Properties() map[string]interface{} {
	return map[string]interface{}{
		"UpdateSettings": map[string]interface{}{
			"method": uint32(0), // MM_MODEM_FIRMWARE_UPDATE_METHOD_NONE
		},
	}
}

func (f *Firmware) List() ([]map[string]interface{}, string) {
	return nil, ""
}

type Time struct{}

func NewTime() *Time { return &Time{} }

func (t *Time) Properties() map[string]interface{} {
	return map[string]interface{}{
		"NetworkTimezone": map[string]interface{}{},
	}
}

type Cdma struct{}

func NewCdma() *Cdma { return &Cdma{} }

func (c *Cdma) Properties() map[string]interface{} {
	return map[string]interface{}{
		"Meid":   "",
		"Esn":    "",
		"Sid":    uint32(0),
		"Nid":    uint32(0),
		"Cdma1xRegistrationState":  uint32(0),
		"EvdoRegistrationState":    uint32(0),
		"ActivationState":          uint32(0),
	}
}

type Sar struct {
	Enabled bool
}

func NewSar() *Sar { return &Sar{} }

func (s *Sar) Properties() map[string]interface{} {
	return map[string]interface{}{
		"State":      s.Enabled,
		"PowerLevel": uint32(0),
	}
}

type Oma struct{}

func NewOma() *Oma { return &Oma{} }

func (o *Oma) Properties() map[string]interface{} {
	return map[string]interface{}{
		"Features":                 uint32(0),
		"PendingNetworkInitiatedSessions": [][]interface{}{},
		"SessionType":              int32(0),
		"SessionState":             int32(0),
	}
}
