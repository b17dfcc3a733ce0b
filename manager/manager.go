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

// Package manager implements discovery (C6): it watches org.ofono's bus
// presence, enumerates its modems on every (re)appearance, gates
// SIM-less modems behind SIM-present ones, and requests the upper
// protocol's well-known bus name exactly once.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/ubports/ofono2mm-go/controller"
	"github.com/ubports/ofono2mm-go/exporter"
	"github.com/ubports/ofono2mm-go/internal/applog"
	"github.com/ubports/ofono2mm-go/internal/metrics"
	"github.com/ubports/ofono2mm-go/internal/retry"
	"github.com/ubports/ofono2mm-go/ofono"
)

// UpperBusName is the well-known name this daemon requests once it has
// something to export.
const UpperBusName = "org.freedesktop.ModemManager1"

// managerIface is the root Manager object's D-Bus interface name (§6).
const managerIface = "org.freedesktop.ModemManager1"

// managerVersion is reported as the Manager object's Version property.
const managerVersion = "1.22.0"

// Manager owns modem discovery and lifecycle for the whole process: one
// Manager per daemon instance, one Controller per tracked modem.
type Manager struct {
	conn     *dbus.Conn
	client   *ofono.Client
	ofono    *ofono.Manager
	exp      *exporter.Exporter
	counters *exporter.Counters
	log      *logrus.Entry
	metrics  *metrics.Registry

	rescanGroup singleflight.Group

	mu              sync.Mutex
	modems          map[dbus.ObjectPath]*controller.Controller
	offline         map[dbus.ObjectPath]struct{}
	modemAddedBlock bool
	hasBus          bool

	modemAddedHandle   *ofono.Handle
	modemRemovedHandle *ofono.Handle
}

// New builds a Manager against an already-connected system bus. reg may
// be nil, in which case rescan counts are simply not recorded.
func New(conn *dbus.Conn, client *ofono.Client, log *logrus.Entry, reg *metrics.Registry) *Manager {
	return &Manager{
		conn:     conn,
		client:   client,
		ofono:    ofono.NewManager(client),
		exp:      exporter.NewExporter(conn),
		counters: exporter.NewCounters(),
		log:      log.WithField("component", "manager"),
		metrics:  reg,
		modems:   make(map[dbus.ObjectPath]*controller.Controller),
		offline:  make(map[dbus.ObjectPath]struct{}),
	}
}

// Start subscribes to org.ofono's NameOwnerChanged and synchronizes on
// its current presence (§4.6).
func (m *Manager) Start(ctx context.Context) error {
	mo := &managerObject{m: m}
	if err := m.exp.Export(exporter.ManagerPath, managerIface, mo, mo); err != nil {
		return fmt.Errorf("manager: exporting Manager object: %w", err)
	}

	if err := m.client.WatchNameOwnerChanged(func(newOwner string) {
		if newOwner == "" {
			m.onOfonoRemoved()
		} else {
			m.onOfonoAdded(ctx)
		}
	}); err != nil {
		return fmt.Errorf("manager: WatchNameOwnerChanged: %w", err)
	}

	hasOwner, err := m.client.NameHasOwner()
	if err != nil {
		return fmt.Errorf("manager: NameHasOwner: %w", err)
	}
	if hasOwner {
		m.onOfonoAdded(ctx)
	} else {
		m.onOfonoRemoved()
	}
	return nil
}

// onOfonoAdded binds the ModemAdded/Removed watchers and schedules a full
// rescan, idempotently.
func (m *Manager) onOfonoAdded(ctx context.Context) {
	if m.modemAddedHandle == nil {
		h, err := m.ofono.WatchModemAdded(func(info ofono.ModemInfo) {
			m.onModemAdded(ctx, info.Path)
		})
		if err != nil {
			m.log.WithError(err).Warn("watching ModemAdded")
		} else {
			m.modemAddedHandle = h
		}
	}
	if m.modemRemovedHandle == nil {
		h, err := m.ofono.WatchModemRemoved(m.onModemRemoved)
		if err != nil {
			m.log.WithError(err).Warn("watching ModemRemoved")
		} else {
			m.modemRemovedHandle = h
		}
	}
	go m.Rescan(ctx)
}

// onOfonoRemoved unexports every tracked modem; org.ofono has left the
// bus.
func (m *Manager) onOfonoRemoved() {
	if m.modemAddedHandle != nil {
		m.modemAddedHandle.Cancel()
		m.modemAddedHandle = nil
	}
	if m.modemRemovedHandle != nil {
		m.modemRemovedHandle.Cancel()
		m.modemRemovedHandle = nil
	}
	m.mu.Lock()
	for path, c := range m.modems {
		c.Close()
		delete(m.modems, path)
	}
	m.offline = make(map[dbus.ObjectPath]struct{})
	m.mu.Unlock()
}

// Rescan performs a full rescan, joining any already-in-flight one
// (§5 "Rescan exclusivity").
func (m *Manager) Rescan(ctx context.Context) {
	_, _, _ = m.rescanGroup.Do("rescan", func() (interface{}, error) {
		m.rescan(ctx)
		return nil, nil
	})
}

func (m *Manager) rescan(ctx context.Context) {
	if m.metrics != nil {
		m.metrics.RescanTotal.Inc()
	}
	m.mu.Lock()
	m.modemAddedBlock = true
	for path, c := range m.modems {
		c.Close()
		delete(m.modems, path)
	}
	m.offline = make(map[dbus.ObjectPath]struct{})
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.modemAddedBlock = false
		m.mu.Unlock()
	}()

	var accepted []dbus.ObjectPath
	policy := retry.Policy{MaxAttempts: 5, Backoff: 300 * time.Millisecond}
	err := retry.Do(ctx, policy, func() error {
		modems, err := m.ofono.GetModems()
		if err != nil {
			return err
		}
		accepted = accepted[:0]
		for _, info := range modems {
			if !ofono.HasAcceptedPrefix(info.Path) {
				continue
			}
			accepted = append(accepted, info.Path)
			online, _ := info.Props["Online"].Value().(bool)
			if !online {
				if err := m.client.SetProperty(info.Path, ofono.IfaceModem, "Online", true); err != nil {
					m.log.WithError(err).WithField("modem", string(info.Path)).Warn("setting Online during rescan")
				}
			}
		}
		if len(accepted) == 0 {
			return fmt.Errorf("no accepted modems")
		}
		return nil
	})
	if err != nil {
		m.log.WithError(err).Debug("rescan found no modems")
		return
	}

	present := make([]dbus.ObjectPath, 0, len(accepted))
	deferred := make([]dbus.ObjectPath, 0)
	for _, path := range accepted {
		sim := ofono.NewSimManager(m.client, path)
		props, err := sim.GetProperties()
		isPresent := true
		if err == nil {
			if v, ok := props["Present"]; ok {
				isPresent, _ = v.Value().(bool)
			}
		}
		if len(accepted) > 1 && !isPresent {
			deferred = append(deferred, path)
		} else {
			present = append(present, path)
		}
	}

	for _, path := range present {
		m.exportModem(ctx, path)
	}
	for _, path := range deferred {
		m.exportModem(ctx, path)
	}
}

// exportModem builds, starts and tracks a Controller for path, unless
// one is already tracked (idempotent, matches ModemAdded's contract).
func (m *Manager) exportModem(ctx context.Context, path dbus.ObjectPath) {
	m.mu.Lock()
	if _, ok := m.modems[path]; ok {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	var reconnects prometheus.Counter
	if m.metrics != nil {
		reconnects = m.metrics.ReconnectTotal
	}

	index := m.counters.NextModemIndex()
	c := controller.New(m.client, m.exp, m.counters, path, index, m.log, m.onFirstExport, reconnects)
	if err := c.Start(ctx); err != nil {
		m.log.WithError(err).WithField("modem", string(path)).Warn("starting modem controller")
		return
	}

	m.mu.Lock()
	m.modems[path] = c
	m.mu.Unlock()
}

func (m *Manager) onFirstExport() {
	m.mu.Lock()
	if m.hasBus {
		m.mu.Unlock()
		return
	}
	m.hasBus = true
	m.mu.Unlock()

	if err := m.requestBusName(); err != nil {
		m.log.WithError(err).Error("requesting upper protocol bus name")
		m.mu.Lock()
		m.hasBus = false
		m.mu.Unlock()
	}
}

func (m *Manager) requestBusName() error {
	reply, err := m.conn.RequestName(UpperBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("manager: %s not granted primary ownership (reply %d)", UpperBusName, reply)
	}
	return nil
}

func (m *Manager) onModemAdded(ctx context.Context, path dbus.ObjectPath) {
	m.mu.Lock()
	blocked := m.modemAddedBlock
	m.mu.Unlock()
	if blocked {
		return
	}
	if !ofono.HasAcceptedPrefix(path) {
		return
	}
	m.exportModem(ctx, path)
}

func (m *Manager) onModemRemoved(path dbus.ObjectPath) {
	m.mu.Lock()
	c, ok := m.modems[path]
	if ok {
		delete(m.modems, path)
	}
	delete(m.offline, path)
	m.mu.Unlock()
	if ok {
		c.Close()
	}
}

// Count reports how many modems are currently exported, for the metrics
// surface (A7).
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.modems)
}

// managerObject serves the root org.freedesktop.ModemManager1 Manager
// interface (§6): Version plus the four management methods. Exported once
// at Start() regardless of how many modems are tracked, matching the real
// daemon's always-present root object.
type managerObject struct {
	m *Manager
}

// ScanDevices implements Manager.ScanDevices: trigger a full rescan.
func (mo *managerObject) ScanDevices() *dbus.Error {
	go mo.m.Rescan(context.Background())
	return nil
}

// SetLogging implements Manager.SetLogging(s): "error", "warn", "info",
// "debug" are the levels ModemManager clients send.
func (mo *managerObject) SetLogging(level string) *dbus.Error {
	if err := applog.SetLogLevel(level); err != nil {
		return dbus.NewError("org.freedesktop.DBus.Error.InvalidArgs", []interface{}{err.Error()})
	}
	return nil
}

// ReportKernelEvent implements Manager.ReportKernelEvent(a{sv}). ofono
// already owns udev/kernel event handling on this fleet, so there is
// nothing for this daemon to act on; the call is accepted rather than
// rejected, matching how unsupported-but-harmless calls are treated
// elsewhere in this interface.
func (mo *managerObject) ReportKernelEvent(properties map[string]dbus.Variant) *dbus.Error {
	return nil
}

// InhibitDevice implements Manager.InhibitDevice(s,b). Device inhibiting
// has no ofono equivalent this daemon can drive; accepted, not acted on.
func (mo *managerObject) InhibitDevice(uid string, inhibit bool) *dbus.Error {
	return nil
}

// Properties satisfies exporter.PropertyProvider for the Manager
// interface.
func (mo *managerObject) Properties() map[string]interface{} {
	return map[string]interface{}{"Version": managerVersion}
}

var _ exporter.PropertyProvider = (*managerObject)(nil)
