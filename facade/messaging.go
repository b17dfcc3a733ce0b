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

package facade

import "github.com/godbus/dbus/v5"

// Messaging is the thin org.freedesktop.ModemManager1.Modem.Messaging
// stand-in. SMS handling lives in a separate messaging service (the
// out-of-scope Telepathy/nuntium collaborator named in §1); this core
// only exports an empty message list so clients see the interface.
type Messaging struct{}

func NewMessaging() *Messaging {
	return &Messaging{}
}

func (m *Messaging) Properties() map[string]interface{} {
	return map[string]interface{}{
		"Messages":            []dbus.ObjectPath{},
		"SupportedStorages":   []uint32{1}, // MM_SMS_STORAGE_SM
		"DefaultStorage":      uint32(1),
		"TransportClass":      uint32(3), // MM_SMS_TRANSPORT_CLASS_ALL
	}
}

func (m *Messaging) List() []dbus.ObjectPath {
	return []dbus.ObjectPath{}
}

func (m *Messaging) Delete(path dbus.ObjectPath) *dbus.Error {
	return Unsupported("SMS storage is managed by the external messaging service")
}

func (m *Messaging) Create(properties map[string]dbus.Variant) (dbus.ObjectPath, *dbus.Error) {
	return "", Unsupported("SMS creation is managed by the external messaging service")
}
