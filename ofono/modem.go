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

import "github.com/godbus/dbus/v5"

// Modem is the typed facade onto org.ofono.Modem for one modem path.
type Modem struct {
	client *Client
	Path   dbus.ObjectPath
}

// NewModem binds a Modem facade to path.
func NewModem(client *Client, path dbus.ObjectPath) *Modem {
	return &Modem{client: client, Path: path}
}

// GetProperties fetches the current org.ofono.Modem property bag.
func (m *Modem) GetProperties() (map[string]dbus.Variant, error) {
	return m.client.GetProperties(m.Path, IfaceModem)
}

// SetProperty writes one org.ofono.Modem property.
func (m *Modem) SetProperty(name string, value interface{}) error {
	return m.client.SetProperty(m.Path, IfaceModem, name, value)
}

// WatchPropertyChanged subscribes to org.ofono.Modem.PropertyChanged for
// this modem.
func (m *Modem) WatchPropertyChanged(cb func(PropertyChange)) (*Handle, error) {
	return m.client.Watch(m.Path, IfaceModem, cb)
}
