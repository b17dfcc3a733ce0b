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
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ubports/ofono2mm-go/exporter"
	"github.com/ubports/ofono2mm-go/ofono"
)

// IndexSource hands out the process-wide monotonic bearer index (§3, §9:
// kept as a field of the manager component rather than a bare global).
type IndexSource interface {
	NextBearerIndex() int
}

// Manager owns the set of bearers for one modem: discovery of existing
// "internet" contexts, creation/deletion on client request, and the
// ContextAdded/ContextRemoved feed from the lower stack (§4.4).
type Manager struct {
	client     *ofono.Client
	modem      dbus.ObjectPath
	connman    *ofono.ConnectionManager
	owner      Owner
	indexes    IndexSource
	log        *logrus.Entry
	reconnects prometheus.Counter
	exp        *exporter.Exporter

	mu      sync.Mutex
	bearers map[int]*Bearer
	order   []int

	addedHandle   *ofono.Handle
	removedHandle *ofono.Handle
	ctxPathToIdx  map[dbus.ObjectPath]int
}

// NewManager constructs an empty bearer Manager for one modem. reconnects
// may be nil, in which case bearers created by this Manager simply don't
// count reconnect attempts. exp is used to export/unexport each bearer's
// own Bearer object (§4.4, §4.7) as it is created and removed.
func NewManager(client *ofono.Client, modem dbus.ObjectPath, owner Owner, indexes IndexSource, log *logrus.Entry, reconnects prometheus.Counter, exp *exporter.Exporter) *Manager {
	return &Manager{
		client:       client,
		modem:        modem,
		connman:      ofono.NewConnectionManager(client, modem),
		owner:        owner,
		indexes:      indexes,
		log:          log,
		reconnects:   reconnects,
		exp:          exp,
		bearers:      make(map[int]*Bearer),
		ctxPathToIdx: make(map[dbus.ObjectPath]int),
	}
}

// DiscoverExisting iterates the modem's current contexts and creates a
// bearer for each "internet"-type one, as done once at modem export time
// (§4.4). Returns the newly created bearers in discovery order.
func (m *Manager) DiscoverExisting() ([]*Bearer, error) {
	contexts, err := m.connman.GetContexts()
	if err != nil {
		return nil, fmt.Errorf("bearer: discover contexts: %w", err)
	}

	roamingAllowed := true
	if props, err := m.connman.GetProperties(); err == nil {
		if v, ok := props["RoamingAllowed"]; ok {
			roamingAllowed, _ = v.Value().(bool)
		}
	}

	var created []*Bearer
	for _, ctx := range contexts {
		if !ctx.IsInternet() {
			continue
		}
		m.mu.Lock()
		b := m.newBearerLocked(ctx.Path)
		m.mu.Unlock()
		b.LoadFromContext(ctx.Props)
		b.SetRoaming(roamingAllowed)
		if err := b.Subscribe(); err != nil {
			m.log.WithError(err).Warn("subscribing to context properties")
		}
		created = append(created, b)
	}
	return created, nil
}

// WatchContexts subscribes to ContextAdded/ContextRemoved so newly created
// "internet" contexts and their removal are reflected live.
func (m *Manager) WatchContexts(onAdded func(*Bearer), onRemoved func(int)) error {
	added, err := m.connman.WatchContextAdded(func(ctx ofono.Context) {
		if !ctx.IsInternet() {
			return
		}
		m.mu.Lock()
		if _, exists := m.ctxPathToIdx[ctx.Path]; exists {
			m.mu.Unlock()
			return
		}
		b := m.newBearerLocked(ctx.Path)
		m.mu.Unlock()

		b.LoadFromContext(ctx.Props)
		if err := b.Subscribe(); err != nil {
			m.log.WithError(err).Warn("subscribing to new context")
		}
		if onAdded != nil {
			onAdded(b)
		}
	})
	if err != nil {
		return err
	}
	m.addedHandle = added

	removed, err := m.connman.WatchContextRemoved(func(path dbus.ObjectPath) {
		m.mu.Lock()
		idx, ok := m.ctxPathToIdx[path]
		m.mu.Unlock()
		if !ok {
			return
		}
		m.remove(idx)
		if onRemoved != nil {
			onRemoved(idx)
		}
	})
	if err != nil {
		added.Cancel()
		return err
	}
	m.removedHandle = removed
	return nil
}

// newBearerLocked must be called with m.mu held. It also exports the new
// bearer's own Bearer object immediately, so it is reachable before
// CreateBearer/ContextAdded return the path to the caller (§4.4, §4.7).
func (m *Manager) newBearerLocked(ctxPath dbus.ObjectPath) *Bearer {
	idx := m.indexes.NextBearerIndex()
	b := New(idx, m.client, ctxPath, m.owner, m.log, m.reconnects)
	m.bearers[idx] = b
	m.order = append(m.order, idx)
	m.ctxPathToIdx[ctxPath] = idx
	if m.exp != nil {
		path := b.ObjectPath()
		if err := m.exp.Export(path, "org.freedesktop.ModemManager1.Bearer", b, PropertyProvider{Bearer: b}); err != nil {
			m.log.WithError(err).Warn("exporting bearer object")
		}
	}
	return b
}

// Get returns the bearer at idx, if tracked.
func (m *Manager) Get(idx int) (*Bearer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bearers[idx]
	return b, ok
}

// List returns every tracked bearer's object path, in creation order
// (ListBearers, §4.5).
func (m *Manager) List() []dbus.ObjectPath {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]dbus.ObjectPath, 0, len(m.order))
	for _, idx := range m.order {
		if b, ok := m.bearers[idx]; ok {
			out = append(out, b.ObjectPath())
		}
	}
	return out
}

// AnyConnected reports whether at least one tracked bearer is Connected,
// the input State Projection needs for its Connected state rule (§4.3).
func (m *Manager) AnyConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, idx := range m.order {
		if m.bearers[idx].Snapshot().Connected {
			return true
		}
	}
	return false
}

// CreateBearer implements §4.4's CreateBearer(props) contract: wait for
// ConnectionManager if not yet present, reconfigure the first "internet"
// context that has an APN, then always add a new "internet" context,
// apply apn/username/password to it, and export a new bearer for it.
func (m *Manager) CreateBearer(ctx context.Context, props map[string]interface{}) (*Bearer, error) {
	if err := m.waitForConnectionManager(ctx); err != nil {
		return nil, err
	}

	contexts, err := m.connman.GetContexts()
	if err != nil {
		return nil, fmt.Errorf("bearer: CreateBearer GetContexts: %w", err)
	}

	for _, c := range contexts {
		if !c.IsInternet() {
			continue
		}
		apn, _ := c.Props["AccessPointName"]
		if apn.Value() == nil || apn.Value().(string) == "" {
			continue
		}
		ctxIface := ofono.NewConnectionContext(m.client, c.Path)
		_ = ctxIface.SetProperty("Active", false)
		if apnValue, ok := props["apn"].(string); ok {
			_ = ctxIface.SetProperty("AccessPointName", apnValue)
		}
		_ = ctxIface.SetProperty("Protocol", "ip")
		_ = ctxIface.SetProperty("Active", true)
		break
	}

	path, err := m.connman.AddContext("internet")
	if err != nil {
		return nil, fmt.Errorf("bearer: AddContext: %w", err)
	}
	ctxIface := ofono.NewConnectionContext(m.client, path)
	if apn, ok := props["apn"].(string); ok {
		_ = ctxIface.SetProperty("AccessPointName", apn)
	}
	if user, ok := props["user"].(string); ok {
		_ = ctxIface.SetProperty("Username", user)
	}
	if pass, ok := props["password"].(string); ok {
		_ = ctxIface.SetProperty("Password", pass)
	}
	_ = ctxIface.SetProperty("Protocol", "ip")

	m.mu.Lock()
	b := m.newBearerLocked(path)
	m.mu.Unlock()

	if initProps, err := ctxIface.GetProperties(); err == nil {
		b.LoadFromContext(initProps)
	}
	if err := b.Subscribe(); err != nil {
		m.log.WithError(err).Warn("subscribing to created context")
	}

	return b, nil
}

func (m *Manager) waitForConnectionManager(ctx context.Context) error {
	deadline := time.Now().Add(10 * time.Second)
	for {
		if _, err := m.connman.GetProperties(); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("bearer: ConnectionManager not available after 10s")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// DeleteBearer implements §4.4's DeleteBearer(path): remove the bearer
// matching path, remove the owning context from the lower stack, and
// report whether it was found.
func (m *Manager) DeleteBearer(path dbus.ObjectPath) (bool, error) {
	m.mu.Lock()
	var idx int
	found := false
	for _, i := range m.order {
		if m.bearers[i].ObjectPath() == path {
			idx, found = i, true
			break
		}
	}
	var ctxPath dbus.ObjectPath
	if found {
		ctxPath = m.bearers[idx].ContextPath
	}
	m.mu.Unlock()

	if !found {
		return false, nil
	}

	m.remove(idx)
	if err := m.connman.RemoveContext(ctxPath); err != nil {
		return true, fmt.Errorf("bearer: RemoveContext %s: %w", ctxPath, err)
	}
	return true, nil
}

func (m *Manager) remove(idx int) {
	m.mu.Lock()
	b, ok := m.bearers[idx]
	if ok {
		delete(m.bearers, idx)
		delete(m.ctxPathToIdx, b.ContextPath)
		for i, o := range m.order {
			if o == idx {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()
	if ok {
		b.Unsubscribe()
		if m.exp != nil {
			m.exp.Unexport(b.ObjectPath())
		}
	}
}

// Close cancels the ContextAdded/ContextRemoved subscriptions and every
// tracked bearer's own context subscription and object export, used when
// the owning modem is torn down.
func (m *Manager) Close() {
	m.addedHandle.Cancel()
	m.removedHandle.Cancel()
	m.mu.Lock()
	idxs := append([]int(nil), m.order...)
	m.mu.Unlock()
	sort.Ints(idxs)
	for _, idx := range idxs {
		if b, ok := m.Get(idx); ok {
			b.Unsubscribe()
			if m.exp != nil {
				m.exp.Unexport(b.ObjectPath())
			}
		}
	}
}
