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

	"github.com/ubports/ofono2mm-go/ofono"
)

// Signal is the thin org.freedesktop.ModemManager1.Modem.Signal
// stand-in (mm_modem_signal.py). The original refreshes per-technology
// detail (RSSI, RSRQ, RSRP...) from ofono's NetworkMonitor interface,
// which this bridge does not subscribe to; only the coarse Strength
// value the core already mirrors is reflected here.
type Signal struct {
	mu   sync.Mutex
	Rate uint32
}

func NewSignal() *Signal {
	return &Signal{}
}

// RefreshFromMirror fills the technology-keyed buckets from the coarse
// NetworkRegistration.Strength/Technology the core already mirrors.
func (s *Signal) RefreshFromMirror(m *ofono.Mirror) map[string]interface{} {
	tech := m.GetString(ofono.IfaceNetworkRegistration, "Technology")
	rssi := 0.0
	if v, ok := m.Get(ofono.IfaceNetworkRegistration, "Strength"); ok {
		rssi = float64(asUint32(v))
	}
	empty := map[string]interface{}{"rssi": float64(0), "error-rate": float64(0)}
	gsm, umts, lte, nr := empty, map[string]interface{}{"rssi": float64(0), "rscp": float64(0), "ecio": float64(0), "error-rate": float64(0)}, map[string]interface{}{"rssi": float64(0), "rsrq": float64(0), "rsrp": float64(0), "snr": float64(0), "error-rate": float64(0)}, map[string]interface{}{"rsrq": float64(0), "rsrp": float64(0), "snr": float64(0), "error-rate": float64(0)}

	switch tech {
	case "gsm", "edge", "gprs":
		gsm = map[string]interface{}{"rssi": rssi, "error-rate": float64(0)}
	case "umts", "hspa", "hsupa", "hsdpa":
		umts = map[string]interface{}{"rssi": rssi, "rscp": float64(0), "ecio": float64(0), "error-rate": float64(0)}
	case "lte":
		lte = map[string]interface{}{"rssi": rssi, "rsrq": float64(0), "rsrp": float64(0), "snr": float64(0), "error-rate": float64(0)}
	case "nr":
		nr = map[string]interface{}{"rsrq": float64(0), "rsrp": float64(0), "snr": float64(0), "error-rate": float64(0)}
	}

	return map[string]interface{}{"Gsm": gsm, "Umts": umts, "Lte": lte, "Nr5g": nr}
}

func asUint32(v dbus.Variant) uint32 {
	switch n := v.Value().(type) {
	case uint32:
		return n
	case int32:
		return uint32(n)
	case byte:
		return uint32(n)
	case uint16:
		return uint32(n)
	default:
		return 0
	}
}

func (s *Signal) Properties(m *ofono.Mirror) map[string]interface{} {
	s.mu.Lock()
	rate := s.Rate
	s.mu.Unlock()
	base := map[string]interface{}{
		"Rate":               rate,
		"RssiThreshold":      uint32(0),
		"ErrorRateThreshold": false,
	}
	for k, v := range s.RefreshFromMirror(m) {
		base[k] = v
	}
	return base
}

func (s *Signal) Setup(rate uint32) *dbus.Error {
	s.mu.Lock()
	s.Rate = rate
	s.mu.Unlock()
	return nil
}

func (s *Signal) SetupThresholds(settings map[string]dbus.Variant) *dbus.Error {
	return Unsupported("signal threshold setup is not supported")
}
