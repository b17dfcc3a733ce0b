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

// RadioSettings is the typed facade onto org.ofono.RadioSettings for one
// modem.
type RadioSettings struct {
	client *Client
	Path   dbus.ObjectPath
}

// NewRadioSettings binds a RadioSettings facade to the owning modem's
// path.
func NewRadioSettings(client *Client, path dbus.ObjectPath) *RadioSettings {
	return &RadioSettings{client: client, Path: path}
}

// GetProperties fetches AvailableTechnologies, TechnologyPreference and the
// rest of org.ofono.RadioSettings's property bag.
func (r *RadioSettings) GetProperties() (map[string]dbus.Variant, error) {
	return r.client.GetProperties(r.Path, IfaceRadioSettings)
}

// SetTechnologyPreference sets the RadioSettings.TechnologyPreference
// property, used by SetCurrentModes.
func (r *RadioSettings) SetTechnologyPreference(pref string) error {
	return r.client.SetProperty(r.Path, IfaceRadioSettings, "TechnologyPreference", pref)
}

// WatchPropertyChanged subscribes to this interface's PropertyChanged
// signal.
func (r *RadioSettings) WatchPropertyChanged(cb func(PropertyChange)) (*Handle, error) {
	return r.client.Watch(r.Path, IfaceRadioSettings, cb)
}
