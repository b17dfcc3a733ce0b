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

// Package bearer implements the data-connection (bearer) subsystem (§4.4):
// discovering and creating lower-stack "internet" contexts, exporting a
// bearer per context, mirroring Active<->Connected and scheduling
// reconnection.
package bearer

import (
	"context"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ubports/ofono2mm-go/exporter"
	"github.com/ubports/ofono2mm-go/facade"
	"github.com/ubports/ofono2mm-go/internal/retry"
	"github.com/ubports/ofono2mm-go/mm"
	"github.com/ubports/ofono2mm-go/ofono"
)

// Owner is the narrow callback interface a Bearer uses to reach back into
// its owning modem controller, per the §9 design note on the
// controller/bearer cyclic reference: the controller owns its bearers, and
// each bearer holds only this callback surface rather than a full
// reference back to the controller.
type Owner interface {
	// AppendPort records an AT port contributed by a bearer's Settings,
	// deduplicating against ports already known.
	AppendPort(name string, typ mm.PortType)
	// ConnectedChanged is invoked whenever any bearer's Connected flag
	// changes, so the controller can reproject and emit PropertiesChanged.
	ConnectedChanged()
	// EmitBearerPropertiesChanged notifies the bus-facing exporter that
	// this bearer's own properties changed.
	EmitBearerPropertiesChanged(index int, changed map[string]interface{})
}

// Ip4Config is the bearer's Ip4Config property (§3).
type Ip4Config struct {
	Method  mm.Ip4Method
	Address string
	Dns1    string
	Dns2    string
	Dns3    string
	Gateway string
}

// Properties is the bearer's "Properties" a{sv} bag (§3, §4.4).
type Properties struct {
	APN              string
	IPType           uint32
	APNType          uint32
	AllowedAuth      mm.AllowedAuth
	User             string
	Password         string
	ProfileID        int32
	ProfileEnabled   bool
	ProfileSource    uint32
	RoamingAllowance mm.RoamingAllowance
}

// Bearer represents one data-connection context (§3).
type Bearer struct {
	Index       int
	ContextPath dbus.ObjectPath

	mu          sync.Mutex
	Interface   string
	Connected   bool
	Suspended   bool
	Ip4Config   Ip4Config
	Properties  Properties

	disconnecting bool
	reconnectStop context.CancelFunc
	reconnectDone chan struct{}

	client     *ofono.Client
	ctx        *ofono.ConnectionContext
	owner      Owner
	log        *logrus.Entry
	reconnects prometheus.Counter

	watchHandle *ofono.Handle
}

// New builds a Bearer bound to an already-existing lower-stack context.
// Callers must call LoadFromContext and Subscribe before use. reconnects
// may be nil, in which case reconnect attempts are simply not counted.
func New(index int, client *ofono.Client, contextPath dbus.ObjectPath, owner Owner, log *logrus.Entry, reconnects prometheus.Counter) *Bearer {
	return &Bearer{
		Index:       index,
		ContextPath: contextPath,
		client:      client,
		ctx:         ofono.NewConnectionContext(client, contextPath),
		owner:       owner,
		log:         log.WithField("bearer", index),
		reconnects:  reconnects,
		Properties: Properties{
			APNType:       2, // MM_BEARER_APN_TYPE_DEFAULT
			ProfileID:     -1,
			ProfileEnabled: true,
		},
	}
}

// LoadFromContext copies the bearer's initial state from the lower-stack
// context's property bag, as done for every "internet" context found at
// modem export time (§4.4).
func (b *Bearer) LoadFromContext(props map[string]dbus.Variant) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loadFromContextLocked(props)
}

func (b *Bearer) loadFromContextLocked(props map[string]dbus.Variant) {
	if v, ok := props["Active"]; ok {
		b.Connected, _ = v.Value().(bool)
	}
	if v, ok := props["AccessPointName"]; ok {
		b.Properties.APN, _ = v.Value().(string)
	}
	if v, ok := props["AuthenticationMethod"]; ok {
		b.Properties.AllowedAuth = authMethod(stringValue(v))
	}
	if v, ok := props["Username"]; ok {
		b.Properties.User, _ = v.Value().(string)
	}
	if v, ok := props["Password"]; ok {
		b.Properties.Password, _ = v.Value().(string)
	}
	if v, ok := props["Settings"]; ok {
		b.applySettingsLocked(v)
	}
}

func authMethod(s string) mm.AllowedAuth {
	switch s {
	case "none":
		return mm.AllowedAuthNone
	case "pap":
		return mm.AllowedAuthPap
	case "chap":
		return mm.AllowedAuthChap
	default:
		return mm.AllowedAuthUnknown
	}
}

func stringValue(v dbus.Variant) string {
	s, _ := v.Value().(string)
	return s
}

// applySettingsLocked maps ConnectionContext.Settings (a{sv}) onto
// Interface and Ip4Config, and appends the AT port to the owning
// controller's Ports list the first time Interface is learned (§4.4).
func (b *Bearer) applySettingsLocked(v dbus.Variant) {
	settings, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return
	}
	if iv, ok := settings["Interface"]; ok {
		iface, _ := iv.Value().(string)
		if iface != "" && iface != b.Interface {
			b.Interface = iface
			if b.owner != nil {
				b.owner.AppendPort(iface, mm.PortTypeAT)
			}
		}
	}
	if mv, ok := settings["Method"]; ok {
		switch stringValue(mv) {
		case "static":
			b.Ip4Config.Method = mm.Ip4MethodStatic
		case "dhcp":
			b.Ip4Config.Method = mm.Ip4MethodDHCP
		}
	}
	if av, ok := settings["Address"]; ok {
		b.Ip4Config.Address, _ = av.Value().(string)
	}
	if gv, ok := settings["Gateway"]; ok {
		b.Ip4Config.Gateway, _ = gv.Value().(string)
	}
	if dv, ok := settings["DomainNameServers"]; ok {
		if dns, ok := dv.Value().([]string); ok {
			slots := [3]*string{&b.Ip4Config.Dns1, &b.Ip4Config.Dns2, &b.Ip4Config.Dns3}
			for i := 0; i < len(dns) && i < 3; i++ {
				*slots[i] = dns[i]
			}
		}
	}
}

// SetRoaming applies ConnectionManager.RoamingAllowed as the bearer's
// roaming-allowance property (§4.4).
func (b *Bearer) SetRoaming(roamingAllowed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if roamingAllowed {
		b.Properties.RoamingAllowance = mm.RoamingAllowancePartner
	} else {
		b.Properties.RoamingAllowance = mm.RoamingAllowanceNone
	}
}

// Subscribe wires the bearer to its context's PropertyChanged signal.
func (b *Bearer) Subscribe() error {
	h, err := b.ctx.WatchPropertyChanged(b.onContextPropertyChanged)
	if err != nil {
		return err
	}
	b.watchHandle = h
	return nil
}

// Unsubscribe cancels the context's PropertyChanged subscription.
func (b *Bearer) Unsubscribe() {
	b.watchHandle.Cancel()
}

func (b *Bearer) onContextPropertyChanged(pc ofono.PropertyChange) {
	switch pc.Name {
	case "Active":
		b.handleActiveChanged(pc.Value)
	case "Settings":
		b.mu.Lock()
		b.applySettingsLocked(pc.Value)
		b.mu.Unlock()
		b.owner.EmitBearerPropertiesChanged(b.Index, map[string]interface{}{
			"Interface": b.Interface,
			"Ip4Config": b.Ip4Config,
		})
	}
}

// handleActiveChanged implements the reconnection policy of §4.4/§5:
// an expected Active->false while disconnecting=true just clears the flag;
// an unexpected Active->false while previously Connected and no reconnect
// is already in flight schedules exactly one reconnect task.
func (b *Bearer) handleActiveChanged(v dbus.Variant) {
	active, _ := v.Value().(bool)

	b.mu.Lock()
	wasConnected := b.Connected
	switch {
	case b.disconnecting && !active:
		b.disconnecting = false
	case !b.disconnecting && !active && b.reconnectStop == nil && wasConnected:
		b.scheduleReconnectLocked()
	}
	b.Connected = active
	b.mu.Unlock()

	b.owner.EmitBearerPropertiesChanged(b.Index, map[string]interface{}{"Connected": active})
	if wasConnected != active {
		b.owner.ConnectedChanged()
	}
}

// scheduleReconnectLocked must be called with b.mu held.
func (b *Bearer) scheduleReconnectLocked() {
	if b.reconnects != nil {
		b.reconnects.Inc()
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	b.reconnectStop = cancel
	b.reconnectDone = done
	go func() {
		defer close(done)
		defer func() {
			b.mu.Lock()
			b.reconnectStop = nil
			b.reconnectDone = nil
			b.mu.Unlock()
		}()
		if err := b.connect(ctx); err != nil && ctx.Err() == nil {
			b.log.WithError(err).Warn("reconnect attempt failed")
		}
	}()
}

// Connect implements org.freedesktop.ModemManager1.Bearer.Connect: refresh
// properties from the lower stack, then retry-activate the context
// (§4.4). Bus methods carry no context argument, so one bounded by a
// fixed timeout is built here.
func (b *Bearer) Connect() *dbus.Error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := b.connect(ctx); err != nil {
		return facade.Unsupported(err.Error())
	}
	return nil
}

func (b *Bearer) connect(ctx context.Context) error {
	if props, err := b.ctx.GetProperties(); err == nil {
		b.mu.Lock()
		b.loadFromContextLocked(props)
		b.mu.Unlock()
	}

	return retry.Do(ctx, retry.Policy{MaxAttempts: 3, Backoff: time.Second}, func() error {
		return b.ctx.SetProperty("Active", true)
	})
}

// Disconnect implements org.freedesktop.ModemManager1.Bearer.Disconnect:
// cancel any pending reconnect task (awaiting its completion), then
// deactivate (§4.4, §5).
func (b *Bearer) Disconnect() *dbus.Error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := b.disconnect(ctx); err != nil {
		return facade.Unsupported(err.Error())
	}
	return nil
}

func (b *Bearer) disconnect(ctx context.Context) error {
	b.mu.Lock()
	b.disconnecting = true
	stop := b.reconnectStop
	done := b.reconnectDone
	b.mu.Unlock()

	if stop != nil {
		stop()
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	return b.ctx.SetProperty("Active", false)
}

// Snapshot returns a copy of the bearer's exported fields, safe to read
// without holding the bearer's lock for long.
func (b *Bearer) Snapshot() Bearer {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := *b
	cp.mu = sync.Mutex{}
	return cp
}

// ToProperties renders the bearer's current state as the D-Bus property
// bag described in §6. Named distinctly from exporter.PropertyProvider's
// Properties() because Bearer already carries a field named Properties.
func (b *Bearer) ToProperties() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return map[string]interface{}{
		"Interface":            b.Interface,
		"Connected":            b.Connected,
		"Suspended":            b.Suspended,
		"Multiplexed":          true,
		"ReloadStatsSupported": false,
		"IpTimeout":            uint32(0),
		"BearerType":           uint32(1),
		"Ip4Config": map[string]interface{}{
			"method":  uint32(b.Ip4Config.Method),
			"address": b.Ip4Config.Address,
			"dns1":    b.Ip4Config.Dns1,
			"dns2":    b.Ip4Config.Dns2,
			"dns3":    b.Ip4Config.Dns3,
			"gateway": b.Ip4Config.Gateway,
		},
		"Ip6Config": map[string]interface{}{"method": uint32(mm.Ip4MethodUnknown)},
		"Properties": map[string]interface{}{
			"apn":              b.Properties.APN,
			"ip-type":          uint32(1),
			"apn-type":         b.Properties.APNType,
			"allowed-auth":     uint32(b.Properties.AllowedAuth),
			"user":             b.Properties.User,
			"password":         b.Properties.Password,
			"roaming-allowance": uint32(b.Properties.RoamingAllowance),
			"profile-id":       b.Properties.ProfileID,
			"profile-enabled":  b.Properties.ProfileEnabled,
			"profile-source":   uint32(0),
		},
	}
}

// ObjectPath is the bus path this bearer is exported at (§4.7).
func (b *Bearer) ObjectPath() dbus.ObjectPath {
	return exporter.BearerPath(b.Index)
}

// PropertyProvider adapts ToProperties to exporter.PropertyProvider
// (Bearer itself can't implement it directly: it already has a field
// named Properties).
type PropertyProvider struct{ Bearer *Bearer }

func (p PropertyProvider) Properties() map[string]interface{} {
	return p.Bearer.ToProperties()
}

var _ exporter.PropertyProvider = PropertyProvider{}
