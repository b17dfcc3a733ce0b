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
	"fmt"

	"github.com/godbus/dbus/v5"
)

// ManagerPath is the Manager object's fixed bus path.
const ManagerPath = dbus.ObjectPath("/org/freedesktop/ModemManager1")

// ModemPath returns the exported path for modem index i.
func ModemPath(i int) dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/ModemManager1/Modem/%d", i))
}

// SimPath returns the exported path for SIM index i.
func SimPath(i int) dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/ModemManager/SIM/%d", i))
}

// BearerPath returns the exported path for bearer index b.
func BearerPath(b int) dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/ModemManager/Bearer/%d", b))
}
