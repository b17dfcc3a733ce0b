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

package mm

import (
	"github.com/godbus/dbus/v5"
	"github.com/ubports/ofono2mm-go/ofono"
)

// SignalQuality is the upper protocol's (percentage, validity) pair.
type SignalQuality struct {
	Percent uint32
	Valid   bool
}

// Projection is everything §4.3 derives from a modem's mirrored ofono
// state. It excludes Ports and Bearers: those are owned and mutated
// directly by the modem controller and the bearer subsystem (§9 design
// note on the controller/bearer cyclic reference), not by this pure
// function.
type Projection struct {
	State              State
	StateFailedReason  StateFailedReason
	PowerState         PowerState
	Sim                dbus.ObjectPath
	UnlockRequired     Lock
	UnlockRetries      map[Lock]uint32
	AccessTechnologies AccessTechnology
	CellType           CellType
	SignalQuality      SignalQuality
	SupportedCapabilities []Capability
	CurrentCapabilities   Capability
	SupportedModes        []ModeRow
	CurrentModes          ModeRow
	OwnNumbers            []string
	Manufacturer          string
	Model                 string
	Revision              string
	HardwareRevision      string
	EquipmentIdentifier   string
}

// Input is everything Project needs beyond the property mirror itself.
type Input struct {
	Mirror             *ofono.Mirror
	SimPath            dbus.ObjectPath
	AnyBearerConnected bool
}

// Project derives the upper-protocol projection for one modem from its
// mirrored ofono interfaces. It is a pure function of its inputs: it never
// touches the bus.
func Project(in Input) *Projection {
	p := &Projection{
		UnlockRetries: unlockRetries(in.Mirror),
		OwnNumbers:    ownNumbers(in.Mirror),
	}
	projectIdentity(p, in.Mirror)
	projectCapabilitiesAndModes(p, in.Mirror)

	powered := in.Mirror.GetBool(ofono.IfaceModem, "Powered")
	hasSim := in.Mirror.HasInterface(ofono.IfaceSimManager)

	if !powered || !hasSim {
		p.State = StateDisabled
		p.PowerState = PowerStateOff
		p.Sim = "/"
		p.StateFailedReason = StateFailedReasonNone
		p.AccessTechnologies = AccessTechnologyUnknown
		return p
	}
	p.PowerState = PowerStateOn

	simPresent, simPresentOK := in.Mirror.Get(ofono.IfaceSimManager, "Present")
	if !simPresentOK || !asBool(simPresent) {
		p.Sim = "/"
		p.State = StateFailed
		p.StateFailedReason = StateFailedReasonSimMissing
		p.AccessTechnologies = AccessTechnologyUnknown
		return p
	}

	p.Sim = in.SimPath
	p.StateFailedReason = StateFailedReasonNone

	pinRequired := in.Mirror.GetString(ofono.IfaceSimManager, "PinRequired")
	if pinRequired != "" && pinRequired != "none" {
		p.UnlockRequired = LockSimPin
		p.State = StateLocked
		p.AccessTechnologies = AccessTechnologyUnknown
		return p
	}
	p.UnlockRequired = LockNone

	if !in.Mirror.GetBool(ofono.IfaceModem, "Online") {
		p.State = StateDisabled
		p.AccessTechnologies = AccessTechnologyUnknown
		return p
	}

	status, hasStatus := in.Mirror.Get(ofono.IfaceNetworkRegistration, "Status")
	hasNetReg := in.Mirror.HasInterface(ofono.IfaceNetworkRegistration)
	statusStr := asString(status)

	switch {
	case !hasNetReg || !hasStatus || statusStr == "denied":
		p.State = StateEnabled
		p.AccessTechnologies = AccessTechnologyUnknown
	case statusStr == "searching":
		p.State = StateSearching
		p.AccessTechnologies = AccessTechnologyUnknown
		if strength, ok := in.Mirror.Get(ofono.IfaceNetworkRegistration, "Strength"); ok {
			p.SignalQuality = SignalQuality{Percent: asUint32(strength), Valid: true}
		}
	default:
		if in.AnyBearerConnected {
			p.State = StateConnected
		} else if statusStr == "registered" || statusStr == "roaming" {
			p.State = StateRegistered
		} else {
			p.State = StateEnabled
		}
		projectAccessTechnology(p, in.Mirror)
	}

	return p
}

func projectAccessTechnology(p *Projection, mirror *ofono.Mirror) {
	if p.State != StateRegistered && p.State != StateConnected {
		p.AccessTechnologies = AccessTechnologyUnknown
		return
	}
	tech, ok := mirror.Get(ofono.IfaceNetworkRegistration, "Technology")
	if !ok {
		p.AccessTechnologies = AccessTechnologyUnknown
		p.SignalQuality = SignalQuality{}
		return
	}
	techStr := asString(tech)
	p.AccessTechnologies = OfonoTechnologies[techStr] // zero value is Unknown for unmapped keys
	p.CellType = OfonoCellTypes[techStr]
	if strength, ok := mirror.Get(ofono.IfaceNetworkRegistration, "Strength"); ok {
		p.SignalQuality = SignalQuality{Percent: asUint32(strength), Valid: true}
	}
}

func unlockRetries(mirror *ofono.Mirror) map[Lock]uint32 {
	raw := mirror.GetRetries(ofono.IfaceSimManager, "Retries")
	out := make(map[Lock]uint32, len(raw))
	for key, count := range raw {
		if lock, ok := OfonoRetriesLock[key]; ok {
			out[lock] = count
		}
	}
	return out
}

func ownNumbers(mirror *ofono.Mirror) []string {
	numbers := mirror.GetStringSlice(ofono.IfaceSimManager, "SubscriberNumbers")
	if numbers == nil {
		return []string{}
	}
	return numbers
}

func projectIdentity(p *Projection, mirror *ofono.Mirror) {
	p.EquipmentIdentifier = mirror.GetString(ofono.IfaceModem, "Serial")
	p.HardwareRevision = mirror.GetString(ofono.IfaceModem, "Revision")
	p.Revision = mirror.GetString(ofono.IfaceModem, "SoftwareVersionNumber")
	p.Manufacturer = mirror.GetString(ofono.IfaceModem, "Manufacturer")
	if p.Manufacturer == "" {
		p.Manufacturer = "ofono"
	}
	p.Model = mirror.GetString(ofono.IfaceModem, "Model")
	if p.Model == "" {
		p.Model = "binder"
	}
}

func projectCapabilitiesAndModes(p *Projection, mirror *ofono.Mirror) {
	available := mirror.GetStringSlice(ofono.IfaceRadioSettings, "AvailableTechnologies")
	if !mirror.HasInterface(ofono.IfaceRadioSettings) {
		p.CurrentCapabilities = CapabilityLte
		p.SupportedCapabilities = []Capability{CapabilityLte}
	} else {
		var caps Capability
		var modes Mode
		for _, tech := range available {
			caps |= OfonoCaps[tech]
			modes |= OfonoModes[tech]
		}
		p.CurrentCapabilities = caps
		p.SupportedCapabilities = []Capability{caps}
		p.SupportedModes = SupportedModes(modes)
	}

	preferred := OfonoModes[mirror.GetString(ofono.IfaceRadioSettings, "TechnologyPreference")]
	p.CurrentModes = CurrentMode(p.SupportedModes, preferred)
}

func asBool(v dbus.Variant) bool {
	b, _ := v.Value().(bool)
	return b
}

func asString(v dbus.Variant) string {
	s, _ := v.Value().(string)
	return s
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
