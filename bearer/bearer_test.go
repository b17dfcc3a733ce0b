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

package bearer

import (
	"sync"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/ubports/ofono2mm-go/mm"
)

type fakeOwner struct {
	mu              sync.Mutex
	ports           []Port
	connectedCalls  int
	lastChangedIdx  int
	lastChanged     map[string]interface{}
}

type Port struct {
	Name string
	Type mm.PortType
}

func (f *fakeOwner) AppendPort(name string, typ mm.PortType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ports = append(f.ports, Port{Name: name, Type: typ})
}

func (f *fakeOwner) ConnectedChanged() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectedCalls++
}

func (f *fakeOwner) EmitBearerPropertiesChanged(index int, changed map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastChangedIdx = index
	f.lastChanged = changed
}

func discardLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(nilWriter{})
	return logrus.NewEntry(l)
}

type nilWriter struct{}

func (nilWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestLoadFromContextAppliesSettingsAndAppendsPort(t *testing.T) {
	owner := &fakeOwner{}
	b := New(0, nil, "/ril_0/context1", owner, discardLog(), nil)

	settings := map[string]dbus.Variant{
		"Interface":         dbus.MakeVariant("wwan0"),
		"Method":            dbus.MakeVariant("dhcp"),
		"Address":           dbus.MakeVariant("10.0.0.2"),
		"Gateway":           dbus.MakeVariant("10.0.0.1"),
		"DomainNameServers": dbus.MakeVariant([]string{"8.8.8.8", "8.8.4.4"}),
	}
	props := map[string]dbus.Variant{
		"Active":               dbus.MakeVariant(true),
		"AccessPointName":      dbus.MakeVariant("internet"),
		"AuthenticationMethod": dbus.MakeVariant("chap"),
		"Username":             dbus.MakeVariant("user"),
		"Password":             dbus.MakeVariant("pass"),
		"Settings":             dbus.MakeVariant(settings),
	}

	b.LoadFromContext(props)

	if !b.Connected {
		t.Fatal("Connected = false, want true")
	}
	if b.Properties.APN != "internet" {
		t.Fatalf("APN = %q, want internet", b.Properties.APN)
	}
	if b.Properties.AllowedAuth != mm.AllowedAuthChap {
		t.Fatalf("AllowedAuth = %v, want Chap", b.Properties.AllowedAuth)
	}
	if b.Interface != "wwan0" {
		t.Fatalf("Interface = %q, want wwan0", b.Interface)
	}
	if b.Ip4Config.Method != mm.Ip4MethodDHCP {
		t.Fatalf("Ip4Config.Method = %v, want DHCP", b.Ip4Config.Method)
	}
	if b.Ip4Config.Dns1 != "8.8.8.8" || b.Ip4Config.Dns2 != "8.8.4.4" {
		t.Fatalf("DNS = %q/%q, want 8.8.8.8/8.8.4.4", b.Ip4Config.Dns1, b.Ip4Config.Dns2)
	}

	owner.mu.Lock()
	defer owner.mu.Unlock()
	if len(owner.ports) != 1 || owner.ports[0].Name != "wwan0" {
		t.Fatalf("owner.ports = %+v, want one wwan0 AT port", owner.ports)
	}
}

func TestSetRoamingAppliesAllowance(t *testing.T) {
	b := New(1, nil, "/ril_0/context2", &fakeOwner{}, discardLog(), nil)

	b.SetRoaming(true)
	if b.Properties.RoamingAllowance != mm.RoamingAllowancePartner {
		t.Fatalf("RoamingAllowance = %v, want Partner", b.Properties.RoamingAllowance)
	}

	b.SetRoaming(false)
	if b.Properties.RoamingAllowance != mm.RoamingAllowanceNone {
		t.Fatalf("RoamingAllowance = %v, want None", b.Properties.RoamingAllowance)
	}
}

func TestHandleActiveChangedSchedulesReconnectOnlyOnUnexpectedDrop(t *testing.T) {
	owner := &fakeOwner{}
	b := New(2, nil, "/ril_0/context3", owner, discardLog(), nil)
	b.Connected = true

	// Unexpected drop: not disconnecting, was connected -> schedules reconnect.
	b.handleActiveChanged(dbus.MakeVariant(false))

	b.mu.Lock()
	scheduled := b.reconnectStop != nil
	b.mu.Unlock()
	if !scheduled {
		t.Fatal("expected a reconnect task to be scheduled after an unexpected drop")
	}
	if b.reconnects != nil {
		t.Fatal("reconnects counter should be nil when none was supplied")
	}

	owner.mu.Lock()
	calls := owner.connectedCalls
	owner.mu.Unlock()
	if calls != 1 {
		t.Fatalf("ConnectedChanged called %d times, want 1", calls)
	}

	// Stop the goroutine spawned by scheduleReconnectLocked so the test
	// doesn't leak it: cancel directly, bypassing Disconnect's D-Bus call.
	b.mu.Lock()
	stop := b.reconnectStop
	b.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func TestHandleActiveChangedExpectedDropClearsFlag(t *testing.T) {
	owner := &fakeOwner{}
	b := New(3, nil, "/ril_0/context4", owner, discardLog(), nil)
	b.Connected = true
	b.disconnecting = true

	b.handleActiveChanged(dbus.MakeVariant(false))

	b.mu.Lock()
	disconnecting := b.disconnecting
	scheduled := b.reconnectStop != nil
	b.mu.Unlock()
	if disconnecting {
		t.Fatal("disconnecting flag should clear on the expected Active->false")
	}
	if scheduled {
		t.Fatal("an expected disconnect must not schedule a reconnect")
	}
}

func TestToPropertiesReflectsState(t *testing.T) {
	b := New(4, nil, "/ril_0/context5", &fakeOwner{}, discardLog(), nil)
	b.Interface = "wwan1"
	b.Connected = true
	b.Ip4Config.Address = "10.1.1.2"

	props := b.ToProperties()
	if props["Interface"] != "wwan1" {
		t.Fatalf("Interface = %v, want wwan1", props["Interface"])
	}
	if props["Connected"] != true {
		t.Fatalf("Connected = %v, want true", props["Connected"])
	}
	ip4, ok := props["Ip4Config"].(map[string]interface{})
	if !ok || ip4["address"] != "10.1.1.2" {
		t.Fatalf("Ip4Config = %+v, want address 10.1.1.2", props["Ip4Config"])
	}
}
