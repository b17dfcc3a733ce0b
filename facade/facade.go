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

// Package facade holds the thin stand-in objects for the upper protocol
// interfaces the core does not implement deep behavior for: USSD,
// location, signal-quality detail, messaging, voice, firmware, time,
// CDMA, OMA and SAR. Each one is exported alongside a modem so clients
// see a complete interface set (mm_modem.py's init_mm_*_interface
// methods), but returns Unsupported or zero-value results for anything
// the core does not drive.
package facade

import "github.com/godbus/dbus/v5"

const (
	errUnsupported = "org.freedesktop.ModemManager1.Error.Core.Unsupported"
	errWrongState  = "org.freedesktop.ModemManager1.Error.Core.WrongState"
)

// Unsupported builds the D-Bus error reply for an operation the core
// does not implement (§7).
func Unsupported(message string) *dbus.Error {
	return dbus.NewError(errUnsupported, []interface{}{message})
}

// WrongState builds the D-Bus error reply for a call made while the
// object is in a state that forbids it (§7).
func WrongState(message string) *dbus.Error {
	return dbus.NewError(errWrongState, []interface{}{message})
}
