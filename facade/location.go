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

import (
	"sync"

	"github.com/godbus/dbus/v5"
)

// Location source bits, mirroring MMModemLocationSource.
const (
	LocationSourceNone      uint32 = 0
	LocationSourceGPSRaw    uint32 = 1 << 1
	LocationSource3gppLacCi uint32 = 1 << 0
)

// Location is the thin org.freedesktop.ModemManager1.Modem.Location
// stand-in (mm_modem_location.py): the original sources GPS fixes from
// Geoclue, a desktop-session dependency this bridge does not carry, so
// GetLocation always reports an empty fix.
type Location struct {
	mu      sync.Mutex
	Enabled uint32
	Signals bool
}

func NewLocation() *Location {
	return &Location{}
}

func (l *Location) Properties() map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return map[string]interface{}{
		"Capabilities":            LocationSource3gppLacCi,
		"SupportedAssistanceData": uint32(0),
		"Enabled":                 l.Enabled,
		"SignalsLocation":         l.Signals,
		"Location":                map[uint32]map[string]interface{}{},
		"SuplServer":              "",
		"AssistanceDataServers":   []string{},
		"GpsRefreshRate":          uint32(0),
	}
}

func (l *Location) Setup(sources uint32, signalLocation bool) *dbus.Error {
	l.mu.Lock()
	l.Enabled = sources
	l.Signals = signalLocation
	l.mu.Unlock()
	return nil
}

func (l *Location) GetLocation() (map[uint32]map[string]interface{}, *dbus.Error) {
	return map[uint32]map[string]interface{}{}, nil
}

func (l *Location) SetSuplServer(supl string) *dbus.Error {
	return Unsupported("A-GPS is not supported")
}

func (l *Location) InjectAssistanceData(data []byte) *dbus.Error {
	return Unsupported("assistance data injection is not supported")
}

func (l *Location) SetGpsRefreshRate(rate uint32) *dbus.Error {
	return nil
}
