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

// Package config reads the small file of user preferences the core
// consults but never writes on its own behalf (§1: "the helper that
// reads a boolean user preference from a file" is an out-of-scope
// collaborator whose contract the core only consumes).
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the preference file lives when no override is
// given.
const DefaultPath = "/etc/ofono2mm/preferences.yaml"

// Preferences holds the user-facing toggles the core reads once at
// startup.
type Preferences struct {
	// MobileDataEnabled is read and logged at startup. Rescan does not
	// consult it: every accepted modem is set Online=true regardless.
	MobileDataEnabled bool `yaml:"mobile_data_enabled"`
	// RoamingAllowed is parsed but not applied; each bearer's
	// roaming-allowance follows ConnectionManager.RoamingAllowed only.
	RoamingAllowed *bool `yaml:"roaming_allowed,omitempty"`
}

// Load reads Preferences from path. A missing file yields the defaults
// (MobileDataEnabled=true) rather than an error, since the preference
// file is optional.
func Load(path string) (*Preferences, error) {
	p := &Preferences{MobileDataEnabled: true}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}
