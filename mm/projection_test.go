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
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/ubports/ofono2mm-go/ofono"
)

func variant(v interface{}) dbus.Variant { return dbus.MakeVariant(v) }

func newMirror(t *testing.T, ifaces map[string]map[string]interface{}) *ofono.Mirror {
	t.Helper()
	m := ofono.NewMirror()
	for iface, props := range ifaces {
		v := make(map[string]dbus.Variant, len(props))
		for k, val := range props {
			v[k] = variant(val)
		}
		m.SetInterface(iface, v)
	}
	return m
}

func TestProjectPoweredOff(t *testing.T) {
	m := newMirror(t, map[string]map[string]interface{}{
		ofono.IfaceModem: {"Powered": false},
	})
	p := Project(Input{Mirror: m, SimPath: "/"})
	if p.State != StateDisabled {
		t.Fatalf("State = %v, want Disabled", p.State)
	}
	if p.PowerState != PowerStateOff {
		t.Fatalf("PowerState = %v, want Off", p.PowerState)
	}
	if p.Sim != "/" {
		t.Fatalf("Sim = %v, want /", p.Sim)
	}
}

func TestProjectNoSimManager(t *testing.T) {
	m := newMirror(t, map[string]map[string]interface{}{
		ofono.IfaceModem: {"Powered": true},
	})
	p := Project(Input{Mirror: m, SimPath: "/"})
	if p.State != StateDisabled {
		t.Fatalf("State = %v, want Disabled (no SimManager interface)", p.State)
	}
}

func TestProjectSimMissing(t *testing.T) {
	m := newMirror(t, map[string]map[string]interface{}{
		ofono.IfaceModem:      {"Powered": true},
		ofono.IfaceSimManager: {"Present": false},
	})
	p := Project(Input{Mirror: m, SimPath: "/org/freedesktop/ModemManager/SIM/0"})
	if p.State != StateFailed {
		t.Fatalf("State = %v, want Failed", p.State)
	}
	if p.StateFailedReason != StateFailedReasonSimMissing {
		t.Fatalf("StateFailedReason = %v, want SimMissing", p.StateFailedReason)
	}
	if p.Sim != "/" {
		t.Fatalf("Sim = %v, want / when card absent", p.Sim)
	}
}

func TestProjectPinLocked(t *testing.T) {
	m := newMirror(t, map[string]map[string]interface{}{
		ofono.IfaceModem: {"Powered": true},
		ofono.IfaceSimManager: {
			"Present":     true,
			"PinRequired": "pin",
		},
	})
	p := Project(Input{Mirror: m, SimPath: "/org/freedesktop/ModemManager/SIM/0"})
	if p.State != StateLocked {
		t.Fatalf("State = %v, want Locked", p.State)
	}
	if p.UnlockRequired != LockSimPin {
		t.Fatalf("UnlockRequired = %v, want LockSimPin", p.UnlockRequired)
	}
}

func TestProjectDisabledWhenOffline(t *testing.T) {
	m := newMirror(t, map[string]map[string]interface{}{
		ofono.IfaceModem: {"Powered": true, "Online": false},
		ofono.IfaceSimManager: {
			"Present":     true,
			"PinRequired": "none",
		},
	})
	p := Project(Input{Mirror: m, SimPath: "/org/freedesktop/ModemManager/SIM/0"})
	if p.State != StateDisabled {
		t.Fatalf("State = %v, want Disabled", p.State)
	}
}

func TestProjectSearching(t *testing.T) {
	m := newMirror(t, map[string]map[string]interface{}{
		ofono.IfaceModem: {"Powered": true, "Online": true},
		ofono.IfaceSimManager: {
			"Present":     true,
			"PinRequired": "none",
		},
		ofono.IfaceNetworkRegistration: {
			"Status":   "searching",
			"Strength": uint32(40),
		},
	})
	p := Project(Input{Mirror: m, SimPath: "/org/freedesktop/ModemManager/SIM/0"})
	if p.State != StateSearching {
		t.Fatalf("State = %v, want Searching", p.State)
	}
	if !p.SignalQuality.Valid || p.SignalQuality.Percent != 40 {
		t.Fatalf("SignalQuality = %+v, want valid 40", p.SignalQuality)
	}
	if p.AccessTechnologies != AccessTechnologyUnknown {
		t.Fatalf("AccessTechnologies = %v, want Unknown while searching", p.AccessTechnologies)
	}
}

func TestProjectRegisteredWithTechnology(t *testing.T) {
	m := newMirror(t, map[string]map[string]interface{}{
		ofono.IfaceModem: {"Powered": true, "Online": true},
		ofono.IfaceSimManager: {
			"Present":     true,
			"PinRequired": "none",
		},
		ofono.IfaceNetworkRegistration: {
			"Status":     "registered",
			"Technology": "lte",
			"Strength":   uint32(80),
		},
	})
	p := Project(Input{Mirror: m, SimPath: "/org/freedesktop/ModemManager/SIM/0"})
	if p.State != StateRegistered {
		t.Fatalf("State = %v, want Registered", p.State)
	}
	if p.AccessTechnologies != AccessTechnologyLte {
		t.Fatalf("AccessTechnologies = %v, want Lte", p.AccessTechnologies)
	}
	if p.CellType != CellTypeLte {
		t.Fatalf("CellType = %v, want Lte", p.CellType)
	}
}

func TestProjectConnectedWhenBearerUp(t *testing.T) {
	m := newMirror(t, map[string]map[string]interface{}{
		ofono.IfaceModem: {"Powered": true, "Online": true},
		ofono.IfaceSimManager: {
			"Present":     true,
			"PinRequired": "none",
		},
		ofono.IfaceNetworkRegistration: {
			"Status":     "registered",
			"Technology": "umts",
		},
	})
	p := Project(Input{Mirror: m, SimPath: "/org/freedesktop/ModemManager/SIM/0", AnyBearerConnected: true})
	if p.State != StateConnected {
		t.Fatalf("State = %v, want Connected", p.State)
	}
}

func TestProjectRoamingCountsAsRegistered(t *testing.T) {
	m := newMirror(t, map[string]map[string]interface{}{
		ofono.IfaceModem: {"Powered": true, "Online": true},
		ofono.IfaceSimManager: {
			"Present":     true,
			"PinRequired": "none",
		},
		ofono.IfaceNetworkRegistration: {
			"Status":     "roaming",
			"Technology": "gsm",
		},
	})
	p := Project(Input{Mirror: m, SimPath: "/org/freedesktop/ModemManager/SIM/0"})
	if p.State != StateRegistered {
		t.Fatalf("State = %v, want Registered for roaming", p.State)
	}
}

func TestProjectDeniedFallsBackToEnabled(t *testing.T) {
	m := newMirror(t, map[string]map[string]interface{}{
		ofono.IfaceModem: {"Powered": true, "Online": true},
		ofono.IfaceSimManager: {
			"Present":     true,
			"PinRequired": "none",
		},
		ofono.IfaceNetworkRegistration: {
			"Status": "denied",
		},
	})
	p := Project(Input{Mirror: m, SimPath: "/org/freedesktop/ModemManager/SIM/0"})
	if p.State != StateEnabled {
		t.Fatalf("State = %v, want Enabled when registration denied", p.State)
	}
}

func TestUnlockRetries(t *testing.T) {
	m := newMirror(t, map[string]map[string]interface{}{
		ofono.IfaceModem: {"Powered": true, "Online": true},
		ofono.IfaceSimManager: {
			"Present":     true,
			"PinRequired": "none",
			"Retries":     map[string]byte{"pin": 3, "puk": 10},
		},
	})
	p := Project(Input{Mirror: m, SimPath: "/org/freedesktop/ModemManager/SIM/0"})
	want := map[Lock]uint32{LockSimPin: 3, LockSimPuk: 10}
	if diff := cmp.Diff(want, p.UnlockRetries); diff != "" {
		t.Fatalf("UnlockRetries mismatch (-want +got):\n%s", diff)
	}
}

func TestSupportedAndCurrentModes(t *testing.T) {
	m := newMirror(t, map[string]map[string]interface{}{
		ofono.IfaceModem: {"Powered": true, "Online": true},
		ofono.IfaceSimManager: {
			"Present":     true,
			"PinRequired": "none",
		},
		ofono.IfaceRadioSettings: {
			"AvailableTechnologies": []string{"gsm", "umts", "lte"},
			"TechnologyPreference":  "lte",
		},
	})
	p := Project(Input{Mirror: m, SimPath: "/org/freedesktop/ModemManager/SIM/0"})
	wantSupported := SupportedModes(Mode2G | Mode3G | Mode4G)
	if diff := cmp.Diff(wantSupported, p.SupportedModes); diff != "" {
		t.Fatalf("SupportedModes mismatch (-want +got):\n%s", diff)
	}
	if p.CurrentModes.Preferred != Mode4G {
		t.Fatalf("CurrentModes.Preferred = %v, want Mode4G", p.CurrentModes.Preferred)
	}
}

func TestCurrentModeFallback(t *testing.T) {
	supported := SupportedModes(Mode2G | Mode3G)
	row := CurrentMode(supported, Mode4G)
	if row.Preferred != ModeNone {
		t.Fatalf("CurrentMode fallback Preferred = %v, want ModeNone", row.Preferred)
	}
	if row.Allowed != Mode4G {
		t.Fatalf("CurrentMode fallback Allowed = %v, want the requested preferred mode echoed back", row.Allowed)
	}
}

func TestRepeatedProjectionIsDeterministic(t *testing.T) {
	m := newMirror(t, map[string]map[string]interface{}{
		ofono.IfaceModem: {"Powered": true, "Online": true},
		ofono.IfaceSimManager: {
			"Present":     true,
			"PinRequired": "none",
		},
		ofono.IfaceNetworkRegistration: {
			"Status":     "registered",
			"Technology": "lte",
			"Strength":   uint32(55),
		},
	})
	in := Input{Mirror: m, SimPath: "/org/freedesktop/ModemManager/SIM/0"}
	first := Project(in)
	second := Project(in)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("Project is not a pure function of its input (-first +second):\n%s", diff)
	}
}
