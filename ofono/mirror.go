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

package ofono

import (
	"reflect"
	"sync"

	"github.com/godbus/dbus/v5"
)

// Mirror holds one modem's last-known property map for each of its current
// ofono interfaces. State projection reads only from the mirror; it never
// makes a synchronous bus call from within a signal handler.
//
// Absent keys are permitted: a missing interface or property simply causes
// the projection to fall back to its documented default.
type Mirror struct {
	mu    sync.RWMutex
	props map[string]map[string]dbus.Variant // iface -> name -> value
}

// NewMirror returns an empty Mirror.
func NewMirror() *Mirror {
	return &Mirror{props: make(map[string]map[string]dbus.Variant)}
}

// SetInterface replaces the whole property map for iface, as happens after
// a fresh GetProperties call.
func (m *Mirror) SetInterface(iface string, props map[string]dbus.Variant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.props[iface] = props
}

// RemoveInterface drops every mirrored property for iface, called before
// projection runs when the interface disappears from the modem's
// Interfaces list.
func (m *Mirror) RemoveInterface(iface string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.props, iface)
}

// Apply records one incremental PropertyChanged event.
func (m *Mirror) Apply(iface, name string, value dbus.Variant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.props[iface] == nil {
		m.props[iface] = make(map[string]dbus.Variant)
	}
	m.props[iface][name] = value
}

// HasInterface reports whether iface is currently mirrored at all (even
// with an empty property map).
func (m *Mirror) HasInterface(iface string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.props[iface]
	return ok
}

// Get returns one mirrored property, or ok=false if the interface or the
// property is absent.
func (m *Mirror) Get(iface, name string) (dbus.Variant, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ifaceProps, ok := m.props[iface]
	if !ok {
		return dbus.Variant{}, false
	}
	v, ok := ifaceProps[name]
	return v, ok
}

// GetString/GetBool/GetStringSlice are convenience readers that return the
// projection-safe zero value when the property is absent or of the wrong
// type, matching the spec's "projection must default safely" contract.

func (m *Mirror) GetString(iface, name string) string {
	v, ok := m.Get(iface, name)
	if !ok {
		return ""
	}
	s, _ := v.Value().(string)
	return s
}

func (m *Mirror) GetBool(iface, name string) bool {
	v, ok := m.Get(iface, name)
	if !ok {
		return false
	}
	b, _ := v.Value().(bool)
	return b
}

func (m *Mirror) GetStringSlice(iface, name string) []string {
	v, ok := m.Get(iface, name)
	if !ok {
		return nil
	}
	s, _ := v.Value().([]string)
	return s
}

// GetRetries reads a lock-kind -> remaining-retries map (ofono's
// SimManager.Retries, wire type a{sy}) regardless of which concrete
// integer width the underlying variant decoded to.
func (m *Mirror) GetRetries(iface, name string) map[string]uint32 {
	v, ok := m.Get(iface, name)
	if !ok {
		return nil
	}
	rv := reflect.ValueOf(v.Value())
	if rv.Kind() != reflect.Map {
		return nil
	}
	out := make(map[string]uint32, rv.Len())
	for _, k := range rv.MapKeys() {
		key, ok := k.Interface().(string)
		if !ok {
			continue
		}
		val := rv.MapIndex(k)
		switch n := val.Interface().(type) {
		case byte:
			out[key] = uint32(n)
		case uint16:
			out[key] = uint32(n)
		case uint32:
			out[key] = n
		case int32:
			out[key] = uint32(n)
		}
	}
	return out
}
