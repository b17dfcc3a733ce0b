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

// Package controller implements the per-modem aggregator (C5): it owns
// the property mirror and bearer set for one modem, reacts to
// lower-stack interface add/remove and property change, runs
// projection, and exposes the upper-protocol modem methods.
package controller

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ubports/ofono2mm-go/bearer"
	"github.com/ubports/ofono2mm-go/exporter"
	"github.com/ubports/ofono2mm-go/facade"
	"github.com/ubports/ofono2mm-go/mm"
	"github.com/ubports/ofono2mm-go/ofono"
)

const modemIface = "org.freedesktop.ModemManager1.Modem"

// Port is one entry of the modem's Ports property.
type Port struct {
	Name string
	Type mm.PortType
}

// ModePair is the wire representation of a (allowed-mask, preferred)
// SupportedModes/CurrentModes row, D-Bus signature "(uu)".
type ModePair struct {
	Allowed   uint32
	Preferred uint32
}

// Controller owns one modem end to end: its ofono-side property
// mirror, its bearer set, its façade objects, and its exported
// upper-protocol surface.
type Controller struct {
	Index     int
	OfonoPath dbus.ObjectPath

	client   *ofono.Client
	exp      *exporter.Exporter
	counters *exporter.Counters
	log      *logrus.Entry

	modem  *ofono.Modem
	mirror *ofono.Mirror

	mu         sync.Mutex
	knownIface map[string]bool
	handles    map[string]*ofono.Handle
	modemHandle *ofono.Handle

	simManager *ofono.SimManager
	simIndex   int
	simPath    dbus.ObjectPath

	netreg *ofono.NetworkRegistration
	radio  *ofono.RadioSettings

	bearers *bearer.Manager
	ports   []Port

	sim       *facade.Sim
	ussd      *facade.Ussd
	location  *facade.Location
	signal    *facade.Signal
	messaging *facade.Messaging
	voice     *facade.Voice
	firmware  *facade.Firmware
	timeFacade *facade.Time
	cdma      *facade.Cdma
	sar       *facade.Sar
	oma       *facade.Oma

	prevProps map[string]interface{}
	prevState mm.State

	primarySimSlot uint32
	currentBands   []uint32

	onFirstExport func()
}

// New builds a Controller for one ofono modem, not yet started. reconnects
// may be nil, in which case bearer reconnect attempts are simply not
// counted.
func New(client *ofono.Client, exp *exporter.Exporter, counters *exporter.Counters, ofonoPath dbus.ObjectPath, index int, log *logrus.Entry, onFirstExport func(), reconnects prometheus.Counter) *Controller {
	c := &Controller{
		Index:      index,
		OfonoPath:  ofonoPath,
		client:     client,
		exp:        exp,
		counters:   counters,
		log:        log.WithField("modem", string(ofonoPath)),
		modem:      ofono.NewModem(client, ofonoPath),
		mirror:     ofono.NewMirror(),
		knownIface: make(map[string]bool),
		handles:    make(map[string]*ofono.Handle),
		simPath:    "/",
		sim:        &facade.Sim{},
		ussd:       facade.NewUssd(),
		location:   facade.NewLocation(),
		signal:     facade.NewSignal(),
		messaging:  facade.NewMessaging(),
		voice:      facade.NewVoice(),
		firmware:   facade.NewFirmware(),
		timeFacade: facade.NewTime(),
		cdma:       facade.NewCdma(),
		sar:        facade.NewSar(),
		oma:        facade.NewOma(),
		prevState:  mm.StateUnknown,
		onFirstExport: onFirstExport,
	}
	c.bearers = bearer.NewManager(client, ofonoPath, c, counters, c.log, reconnects, exp)
	return c
}

// ObjectPath is the exported modem path (§4.7).
func (c *Controller) ObjectPath() dbus.ObjectPath {
	return exporter.ModemPath(c.Index)
}

// Start fetches the modem's current state, subscribes to everything it
// needs, discovers existing bearers, runs the first projection, and
// exports every interface the modem carries.
func (c *Controller) Start(ctx context.Context) error {
	props, err := c.modem.GetProperties()
	if err != nil {
		return fmt.Errorf("controller: GetProperties %s: %w", c.OfonoPath, err)
	}
	c.mirror.SetInterface(ofono.IfaceModem, props)

	c.mu.Lock()
	c.ports = []Port{{Name: string(c.OfonoPath), Type: mm.PortTypeUnknown}}
	c.mu.Unlock()

	ifaces := c.mirror.GetStringSlice(ofono.IfaceModem, "Interfaces")
	c.reconcileInterfaces(ifaces)

	if created, err := c.bearers.DiscoverExisting(); err != nil {
		c.log.WithError(err).Warn("discovering existing bearer contexts")
	} else if len(created) > 0 {
		c.log.WithField("count", len(created)).Debug("discovered existing bearer contexts")
	}
	if err := c.bearers.WatchContexts(func(*bearer.Bearer) { c.project() }, func(int) { c.project() }); err != nil {
		c.log.WithError(err).Warn("watching bearer contexts")
	}

	h, err := c.modem.WatchPropertyChanged(c.handleModemPropertyChanged)
	if err != nil {
		return fmt.Errorf("controller: WatchPropertyChanged %s: %w", c.OfonoPath, err)
	}
	c.modemHandle = h

	c.exportAll()
	c.project()

	if c.onFirstExport != nil {
		c.onFirstExport()
	}
	return nil
}

// Close tears down every subscription this controller owns, used when
// the modem is removed or a rescan unexports it.
func (c *Controller) Close() {
	if c.modemHandle != nil {
		c.modemHandle.Cancel()
	}
	c.mu.Lock()
	handles := c.handles
	c.handles = make(map[string]*ofono.Handle)
	c.mu.Unlock()
	for _, h := range handles {
		h.Cancel()
	}
	c.bearers.Close()
	c.exp.Unexport(c.ObjectPath())
	if c.simPath != "/" {
		c.exp.Unexport(c.simPath)
	}
}

func (c *Controller) handleModemPropertyChanged(pc ofono.PropertyChange) {
	if pc.Name == "Interfaces" {
		ifaces, _ := pc.Value.Value().([]string)
		c.reconcileInterfaces(ifaces)
	} else {
		c.mirror.Apply(ofono.IfaceModem, pc.Name, pc.Value)
	}
	c.project()
}

// reconcileInterfaces diffs newIfaces against what is currently
// subscribed: added interfaces get GetProperties + a subscription
// before projection runs; removed interfaces are dropped first (§3,
// §4.5).
func (c *Controller) reconcileInterfaces(newIfaces []string) {
	want := make(map[string]bool, len(newIfaces))
	for _, i := range newIfaces {
		want[i] = true
	}

	c.mu.Lock()
	var toAdd, toRemove []string
	for i := range want {
		if !c.knownIface[i] {
			toAdd = append(toAdd, i)
		}
	}
	for i := range c.knownIface {
		if !want[i] {
			toRemove = append(toRemove, i)
		}
	}
	c.mu.Unlock()

	for _, iface := range toRemove {
		c.unsubscribeInterface(iface)
	}
	for _, iface := range toAdd {
		c.subscribeInterface(iface)
	}

	c.mu.Lock()
	c.knownIface = want
	c.mu.Unlock()
}

func (c *Controller) subscribeInterface(iface string) {
	switch iface {
	case ofono.IfaceSimManager:
		c.simManager = ofono.NewSimManager(c.client, c.OfonoPath)
		props, err := c.simManager.GetProperties()
		if err != nil {
			props = map[string]dbus.Variant{}
		}
		c.mirror.SetInterface(iface, props)
		h, err := c.simManager.WatchPropertyChanged(func(pc ofono.PropertyChange) {
			c.mirror.Apply(iface, pc.Name, pc.Value)
			c.project()
		})
		if err != nil {
			c.log.WithError(err).Warn("subscribing to SimManager")
			return
		}
		c.storeHandle(iface, h)
		c.assignSimIndex()
	case ofono.IfaceNetworkRegistration:
		c.netreg = ofono.NewNetworkRegistration(c.client, c.OfonoPath)
		props, err := c.netreg.GetProperties()
		if err != nil {
			props = map[string]dbus.Variant{}
		}
		c.mirror.SetInterface(iface, props)
		h, err := c.netreg.WatchPropertyChanged(func(pc ofono.PropertyChange) {
			c.mirror.Apply(iface, pc.Name, pc.Value)
			c.project()
		})
		if err != nil {
			c.log.WithError(err).Warn("subscribing to NetworkRegistration")
			return
		}
		c.storeHandle(iface, h)
	case ofono.IfaceRadioSettings:
		c.radio = ofono.NewRadioSettings(c.client, c.OfonoPath)
		props, err := c.radio.GetProperties()
		if err != nil {
			props = map[string]dbus.Variant{}
		}
		c.mirror.SetInterface(iface, props)
		h, err := c.radio.WatchPropertyChanged(func(pc ofono.PropertyChange) {
			c.mirror.Apply(iface, pc.Name, pc.Value)
			c.project()
		})
		if err != nil {
			c.log.WithError(err).Warn("subscribing to RadioSettings")
			return
		}
		c.storeHandle(iface, h)
	}
}

func (c *Controller) unsubscribeInterface(iface string) {
	c.mu.Lock()
	h, ok := c.handles[iface]
	delete(c.handles, iface)
	c.mu.Unlock()
	if ok {
		h.Cancel()
	}
	c.mirror.RemoveInterface(iface)
}

func (c *Controller) storeHandle(iface string, h *ofono.Handle) {
	c.mu.Lock()
	c.handles[iface] = h
	c.mu.Unlock()
}

// assignSimIndex allocates the SIM façade its own monotonic bus path
// the first time SimManager becomes present (§4.7).
func (c *Controller) assignSimIndex() {
	c.mu.Lock()
	if c.simPath != "/" {
		c.mu.Unlock()
		return
	}
	c.simIndex = c.counters.NextSimIndex()
	c.simPath = exporter.SimPath(c.simIndex)
	c.mu.Unlock()

	if err := c.exp.Export(c.simPath, "org.freedesktop.ModemManager1.Sim", c.sim, c.sim); err != nil {
		c.log.WithError(err).Warn("exporting Sim object")
	}
}

// AppendPort records an AT port contributed by a bearer, satisfying
// bearer.Owner. The first entry is always (ofono modem path,
// UNKNOWN=0); new ports are appended and deduplicated by name.
func (c *Controller) AppendPort(name string, typ mm.PortType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.ports {
		if p.Name == name {
			return
		}
	}
	c.ports = append(c.ports, Port{Name: name, Type: typ})
}

// ConnectedChanged satisfies bearer.Owner: any bearer's Connected flag
// changing requires a full reprojection, since State=Connected depends
// on the union of all bearers.
func (c *Controller) ConnectedChanged() {
	c.project()
}

// EmitBearerPropertiesChanged satisfies bearer.Owner.
func (c *Controller) EmitBearerPropertiesChanged(index int, changed map[string]interface{}) {
	c.exp.EmitPropertiesChanged(exporter.BearerPath(index), "org.freedesktop.ModemManager1.Bearer", changed)
}

// project recomputes the upper-protocol state from the mirror, diffs it
// against the previous snapshot, and emits the resulting
// PropertiesChanged/StateChanged signals (§4.3 last paragraph).
func (c *Controller) project() {
	proj := mm.Project(mm.Input{
		Mirror:             c.mirror,
		SimPath:            c.simPathLocked(),
		AnyBearerConnected: c.bearers.AnyConnected(),
	})

	fresh := facade.RefreshFromMirror(c.mirror)

	c.mu.Lock()
	*c.sim = *fresh // mutate in place: the exporter holds this *Sim's identity
	props := c.renderPropsLocked(proj)
	prev := c.prevProps
	prevState := c.prevState
	c.prevProps = props
	c.prevState = proj.State
	c.mu.Unlock()

	if prevState != proj.State {
		c.exp.EmitSignal(c.ObjectPath(), "org.freedesktop.ModemManager1.Modem.StateChanged",
			int32(prevState), int32(proj.State), uint32(1))
	}

	changed := diffProps(prev, props)
	c.exp.EmitPropertiesChanged(c.ObjectPath(), modemIface, changed)
}

func (c *Controller) simPathLocked() dbus.ObjectPath {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.simPath
}

// renderPropsLocked must be called with c.mu held; it builds the full
// D-Bus property bag described in §6 from a fresh projection plus the
// controller-owned Ports/Bearers fields the projection excludes.
func (c *Controller) renderPropsLocked(proj *mm.Projection) map[string]interface{} {
	unlockRetries := make(map[uint32]uint32, len(proj.UnlockRetries))
	for lock, count := range proj.UnlockRetries {
		unlockRetries[uint32(lock)] = count
	}

	ports := make([]struct {
		Name string
		Type uint32
	}, len(c.ports))
	for i, p := range c.ports {
		ports[i] = struct {
			Name string
			Type uint32
		}{p.Name, uint32(p.Type)}
	}

	supportedCaps := make([]uint32, len(proj.SupportedCapabilities))
	for i, cap := range proj.SupportedCapabilities {
		supportedCaps[i] = uint32(cap)
	}

	supportedModes := make([]ModePair, len(proj.SupportedModes))
	for i, row := range proj.SupportedModes {
		supportedModes[i] = ModePair{Allowed: uint32(row.Allowed), Preferred: uint32(row.Preferred)}
	}

	return map[string]interface{}{
		"Sim":                         proj.Sim,
		"SimSlots":                    []dbus.ObjectPath{proj.Sim},
		"PrimarySimSlot":              c.primarySimSlot,
		"Bearers":                     c.bearers.List(),
		"SupportedCapabilities":       supportedCaps,
		"CurrentCapabilities":         uint32(proj.CurrentCapabilities),
		"MaxBearers":                  uint32(4),
		"MaxActiveBearers":            uint32(2),
		"MaxActiveMultiplexedBearers": uint32(2),
		"Manufacturer":                proj.Manufacturer,
		"Model":                       proj.Model,
		"Revision":                    proj.Revision,
		"HardwareRevision":            proj.HardwareRevision,
		"DeviceIdentifier":            proj.EquipmentIdentifier,
		"Device":                      string(c.OfonoPath),
		"Physdev":                     string(c.OfonoPath),
		"Drivers":                     []string{"binder"},
		"Plugin":                      "ofono2mm",
		"PrimaryPort":                 string(c.OfonoPath),
		"Ports":                       ports,
		"EquipmentIdentifier":         proj.EquipmentIdentifier,
		"UnlockRequired":              uint32(proj.UnlockRequired),
		"UnlockRetries":               unlockRetries,
		"State":                       int32(proj.State),
		"StateFailedReason":           uint32(proj.StateFailedReason),
		"AccessTechnologies":          uint32(proj.AccessTechnologies),
		"SignalQuality":               struct {
			Percent uint32
			Valid   bool
		}{proj.SignalQuality.Percent, proj.SignalQuality.Valid},
		"OwnNumbers":          proj.OwnNumbers,
		"PowerState":          uint32(proj.PowerState),
		"SupportedModes":      supportedModes,
		"CurrentModes":        ModePair{uint32(proj.CurrentModes.Allowed), uint32(proj.CurrentModes.Preferred)},
		"SupportedBands":      []uint32{},
		"CurrentBands":        c.currentBands,
		"SupportedIpFamilies": uint32(3),
	}
}

// Properties satisfies exporter.PropertyProvider for the Modem
// interface.
func (c *Controller) Properties() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prevProps == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(c.prevProps))
	for k, v := range c.prevProps {
		out[k] = v
	}
	return out
}

func diffProps(prev, next map[string]interface{}) map[string]interface{} {
	changed := make(map[string]interface{})
	for k, v := range next {
		old, ok := prev[k]
		if !ok || !reflect.DeepEqual(old, v) {
			changed[k] = v
		}
	}
	return changed
}

func (c *Controller) exportAll() {
	path := c.ObjectPath()
	if err := c.exp.Export(path, modemIface, c, c); err != nil {
		c.log.WithError(err).Error("exporting modem interface")
	}
	if err := c.exp.Export(path, "org.freedesktop.ModemManager1.Modem.Signal", c.signal, signalProvider{c}); err != nil {
		c.log.WithError(err).Warn("exporting Signal interface")
	}
	if err := c.exp.Export(path, "org.freedesktop.ModemManager1.Modem.Location", c.location, c.location); err != nil {
		c.log.WithError(err).Warn("exporting Location interface")
	}
	if err := c.exp.Export(path, "org.freedesktop.ModemManager1.Modem.Modem3gpp.Ussd", c.ussd, c.ussd); err != nil {
		c.log.WithError(err).Warn("exporting USSD interface")
	}
	if err := c.exp.Export(path, "org.freedesktop.ModemManager1.Modem.Messaging", c.messaging, c.messaging); err != nil {
		c.log.WithError(err).Warn("exporting Messaging interface")
	}
	if err := c.exp.Export(path, "org.freedesktop.ModemManager1.Modem.Voice", c.voice, c.voice); err != nil {
		c.log.WithError(err).Warn("exporting Voice interface")
	}
	if err := c.exp.Export(path, "org.freedesktop.ModemManager1.Modem.Firmware", c.firmware, c.firmware); err != nil {
		c.log.WithError(err).Warn("exporting Firmware interface")
	}
	if err := c.exp.Export(path, "org.freedesktop.ModemManager1.Modem.Time", c.timeFacade, c.timeFacade); err != nil {
		c.log.WithError(err).Warn("exporting Time interface")
	}
	if err := c.exp.Export(path, "org.freedesktop.ModemManager1.Modem.Cdma", c.cdma, c.cdma); err != nil {
		c.log.WithError(err).Warn("exporting Cdma interface")
	}
	if err := c.exp.Export(path, "org.freedesktop.ModemManager1.Modem.Sar", c.sar, c.sar); err != nil {
		c.log.WithError(err).Warn("exporting Sar interface")
	}
	if err := c.exp.Export(path, "org.freedesktop.ModemManager1.Modem.Oma", c.oma, c.oma); err != nil {
		c.log.WithError(err).Warn("exporting Oma interface")
	}

	c.mu.Lock()
	simPath := c.simPath
	c.mu.Unlock()
	if simPath != "/" {
		if err := c.exp.Export(simPath, "org.freedesktop.ModemManager1.Sim", c.sim, c.sim); err != nil {
			c.log.WithError(err).Warn("exporting Sim object")
		}
	}
}

// signalProvider adapts facade.Signal's mirror-dependent Properties to
// the parameterless exporter.PropertyProvider interface.
type signalProvider struct{ c *Controller }

func (s signalProvider) Properties() map[string]interface{} {
	return s.c.signal.Properties(s.c.mirror)
}

// bandsEqual reports whether two band lists carry the same elements, in
// any order; used to decide whether SetCurrentBands actually changed
// anything worth a reprojection.
func bandsEqual(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	cp := append([]uint32(nil), a...)
	cq := append([]uint32(nil), b...)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	sort.Slice(cq, func(i, j int) bool { return cq[i] < cq[j] })
	return reflect.DeepEqual(cp, cq)
}
