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

// NetworkRegistration is the typed facade onto
// org.ofono.NetworkRegistration for one modem.
type NetworkRegistration struct {
	client *Client
	Path   dbus.ObjectPath
}

// NewNetworkRegistration binds a NetworkRegistration facade to the owning
// modem's path.
func NewNetworkRegistration(client *Client, path dbus.ObjectPath) *NetworkRegistration {
	return &NetworkRegistration{client: client, Path: path}
}

// GetProperties fetches Status, Technology, Strength and the rest of
// org.ofono.NetworkRegistration's property bag.
func (n *NetworkRegistration) GetProperties() (map[string]dbus.Variant, error) {
	return n.client.GetProperties(n.Path, IfaceNetworkRegistration)
}

// WatchPropertyChanged subscribes to this interface's PropertyChanged
// signal.
func (n *NetworkRegistration) WatchPropertyChanged(cb func(PropertyChange)) (*Handle, error) {
	return n.client.Watch(n.Path, IfaceNetworkRegistration, cb)
}
