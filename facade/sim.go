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
	"github.com/godbus/dbus/v5"

	"github.com/ubports/ofono2mm-go/ofono"
)

// Sim is the per-modem SIM façade (org.freedesktop.ModemManager1.Sim),
// refreshed from the modem's SimManager mirror on every projection run.
type Sim struct {
	Active              bool
	SimIdentifier       string
	Imsi                string
	Eid                 string
	OperatorIdentifier  string
	OperatorName        string
	EmergencyNumbers    []string
	RemovableMount      bool
}

// RefreshFromMirror copies the fields this façade can derive from the
// ofono SimManager property bag. The remaining fields (EID, removability)
// have no ofono equivalent and keep their zero value.
func RefreshFromMirror(m *ofono.Mirror) *Sim {
	return &Sim{
		Active:             m.GetBool(ofono.IfaceSimManager, "Present"),
		SimIdentifier:      m.GetString(ofono.IfaceSimManager, "CardIdentifier"),
		Imsi:               m.GetString(ofono.IfaceSimManager, "SubscriberIdentity"),
		OperatorIdentifier: m.GetString(ofono.IfaceSimManager, "MobileCountryCode") + m.GetString(ofono.IfaceSimManager, "MobileNetworkCode"),
		OperatorName:       m.GetString(ofono.IfaceSimManager, "ServiceProviderName"),
		EmergencyNumbers:   m.GetStringSlice(ofono.IfaceSimManager, "PreferredLanguages"),
	}
}

// Properties renders the façade's D-Bus property bag.
func (s *Sim) Properties() map[string]interface{} {
	return map[string]interface{}{
		"Active":             s.Active,
		"SimIdentifier":       s.SimIdentifier,
		"Imsi":                s.Imsi,
		"Eid":                 s.Eid,
		"OperatorIdentifier":  s.OperatorIdentifier,
		"OperatorName":        s.OperatorName,
		"EmergencyNumbers":    s.EmergencyNumbers,
		"SimType":             uint32(1), // MM_SIM_TYPE_PHYSICAL
		"EsimStatus":          uint32(0), // MM_SIM_ESIM_STATUS_UNKNOWN
		"Removability":        uint32(0),
	}
}

// SendPin, SendPuk, EnablePin, ChangePin implement the Sim object's write
// methods. Unlock flows are driven through the modem's Online/PinRequired
// props by the controller, not by this façade, so these report
// Unsupported, matching the scope the SIM façade is given (§3, §1).
func (s *Sim) SendPin(pin string) *dbus.Error {
	return Unsupported("PIN entry is handled by the modem controller")
}

func (s *Sim) SendPuk(puk, newPin string) *dbus.Error {
	return Unsupported("PUK entry is handled by the modem controller")
}

func (s *Sim) EnablePin(pin string, enabled bool) *dbus.Error {
	return Unsupported("PIN enable/disable is not supported")
}

func (s *Sim) ChangePin(oldPin, newPin string) *dbus.Error {
	return Unsupported("PIN change is not supported")
}
