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

// SimManager is the typed facade onto org.ofono.SimManager for one modem.
type SimManager struct {
	client *Client
	Path   dbus.ObjectPath
}

// NewSimManager binds a SimManager facade to the owning modem's path.
func NewSimManager(client *Client, path dbus.ObjectPath) *SimManager {
	return &SimManager{client: client, Path: path}
}

// GetProperties fetches Present, PinRequired, Retries, SubscriberNumbers and
// the rest of org.ofono.SimManager's property bag.
func (s *SimManager) GetProperties() (map[string]dbus.Variant, error) {
	return s.client.GetProperties(s.Path, IfaceSimManager)
}

// WatchPropertyChanged subscribes to org.ofono.SimManager.PropertyChanged.
func (s *SimManager) WatchPropertyChanged(cb func(PropertyChange)) (*Handle, error) {
	return s.client.Watch(s.Path, IfaceSimManager, cb)
}
