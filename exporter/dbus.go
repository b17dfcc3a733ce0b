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

package exporter

import (
	"sync"

	"github.com/godbus/dbus/v5"
)

// PropertyProvider renders one D-Bus interface's current property bag.
// Modem controllers, bearers and façades all implement this so a single
// Exporter can serve org.freedesktop.DBus.Properties for every
// interface an object carries.
type PropertyProvider interface {
	Properties() map[string]interface{}
}

// object tracks the property providers backing
// org.freedesktop.DBus.Properties at one bus path, keyed by interface
// name. Method receivers go straight to conn.Export and are not kept here.
type object struct {
	providers map[string]PropertyProvider
}

// Exporter is the C7 bus-surface object lifecycle: it guarantees that
// every interface an object carries is registered before any
// PropertiesChanged fires, and that unexport drops them all together
// (§4.7).
type Exporter struct {
	conn *dbus.Conn

	mu      sync.Mutex
	objects map[dbus.ObjectPath]*object
}

// NewExporter wraps a connected bus connection.
func NewExporter(conn *dbus.Conn) *Exporter {
	return &Exporter{conn: conn, objects: make(map[dbus.ObjectPath]*object)}
}

// Export registers the method receiver for iface at path (via the
// connection's reflection-based Export) and records provider as the
// source of truth for that interface's properties. Call once per
// interface the object carries. The first call at a path also registers
// org.freedesktop.DBus.Properties there; Get/GetAll serve each interface
// as soon as its own Export call has returned.
func (e *Exporter) Export(path dbus.ObjectPath, iface string, methods interface{}, provider PropertyProvider) error {
	if err := e.conn.Export(methods, path, iface); err != nil {
		return err
	}

	e.mu.Lock()
	obj, ok := e.objects[path]
	if !ok {
		obj = &object{providers: make(map[string]PropertyProvider)}
		e.objects[path] = obj
	}
	obj.providers[iface] = provider
	e.mu.Unlock()

	if !ok {
		// First interface registered at this path: also serve
		// org.freedesktop.DBus.Properties there, since godbus does not
		// provide it automatically (§1: clients snapshot via Get/GetAll
		// at any moment).
		if err := e.conn.Export(&propertiesHandler{exp: e, path: path}, path, "org.freedesktop.DBus.Properties"); err != nil {
			return err
		}
	}
	return nil
}

// Unexport releases every interface registered at path together.
func (e *Exporter) Unexport(path dbus.ObjectPath) {
	e.mu.Lock()
	obj, ok := e.objects[path]
	if ok {
		delete(e.objects, path)
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	for iface := range obj.providers {
		_ = e.conn.Export(nil, path, iface)
	}
	_ = e.conn.Export(nil, path, "org.freedesktop.DBus.Properties")
}

// EmitPropertiesChanged diffs changed against nothing (the caller is
// expected to have already diffed) and emits the standard
// PropertiesChanged(interface, changed, invalidated) signal.
func (e *Exporter) EmitPropertiesChanged(path dbus.ObjectPath, iface string, changed map[string]interface{}) {
	if len(changed) == 0 {
		return
	}
	variants := make(map[string]dbus.Variant, len(changed))
	for k, v := range changed {
		variants[k] = dbus.MakeVariant(v)
	}
	_ = e.conn.Emit(path, "org.freedesktop.DBus.Properties.PropertiesChanged",
		iface, variants, []string{})
}

// EmitSignal emits an arbitrary signal at path.
func (e *Exporter) EmitSignal(path dbus.ObjectPath, name string, args ...interface{}) {
	_ = e.conn.Emit(path, name, args...)
}

// GetAll implements org.freedesktop.DBus.Properties.GetAll for any
// object previously registered with Export.
func (e *Exporter) GetAll(path dbus.ObjectPath, iface string) map[string]dbus.Variant {
	e.mu.Lock()
	obj, ok := e.objects[path]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	provider, ok := obj.providers[iface]
	if !ok {
		return nil
	}
	props := provider.Properties()
	out := make(map[string]dbus.Variant, len(props))
	for k, v := range props {
		out[k] = dbus.MakeVariant(v)
	}
	return out
}

// propertiesHandler is the bus-facing org.freedesktop.DBus.Properties
// receiver exported alongside every object's first interface; it just
// delegates to the owning Exporter's provider registry.
type propertiesHandler struct {
	exp  *Exporter
	path dbus.ObjectPath
}

func (p *propertiesHandler) Get(iface, property string) (dbus.Variant, *dbus.Error) {
	all := p.exp.GetAll(p.path, iface)
	if all == nil {
		return dbus.Variant{}, dbus.NewError("org.freedesktop.DBus.Error.UnknownInterface", []interface{}{iface})
	}
	v, ok := all[property]
	if !ok {
		return dbus.Variant{}, dbus.NewError("org.freedesktop.DBus.Error.UnknownProperty", []interface{}{property})
	}
	return v, nil
}

func (p *propertiesHandler) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	all := p.exp.GetAll(p.path, iface)
	if all == nil {
		return nil, dbus.NewError("org.freedesktop.DBus.Error.UnknownInterface", []interface{}{iface})
	}
	return all, nil
}

// Set is not supported: every property this daemon exports is read-only
// from the bus client's perspective, mirrored from the lower stack or
// controller state instead.
func (p *propertiesHandler) Set(iface, property string, value dbus.Variant) *dbus.Error {
	return dbus.NewError("org.freedesktop.DBus.Error.PropertyReadOnly", []interface{}{property})
}
