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

import (
	"sync"

	"github.com/godbus/dbus/v5"
)

// USSD session states, mirroring MMModem3gppUssdSessionState.
const (
	UssdStateUnknown uint32 = iota
	UssdStateIdle
	UssdStateActive
	UssdStateUserResponse
)

// Ussd is the thin org.freedesktop.ModemManager1.Modem.Modem3gpp.Ussd
// stand-in (mm_modem_3gpp_ussd.py): it tracks session state but does not
// drive the lower stack's SupplementaryServices interface, which is out
// of scope for this core.
type Ussd struct {
	mu                  sync.Mutex
	State               uint32
	NetworkNotification string
	NetworkRequest      string
}

// NewUssd returns an idle-state façade.
func NewUssd() *Ussd {
	return &Ussd{State: UssdStateIdle}
}

func (u *Ussd) Properties() map[string]interface{} {
	u.mu.Lock()
	defer u.mu.Unlock()
	return map[string]interface{}{
		"State":               u.State,
		"NetworkNotification": u.NetworkNotification,
		"NetworkRequest":      u.NetworkRequest,
	}
}

func (u *Ussd) Initiate(command string) (string, *dbus.Error) {
	u.mu.Lock()
	active := u.State == UssdStateActive || u.State == UssdStateUserResponse
	u.mu.Unlock()
	if active {
		return "", WrongState("a USSD session is already active")
	}
	return "", Unsupported("USSD is not implemented by this bridge")
}

func (u *Ussd) Respond(response string) (string, *dbus.Error) {
	u.mu.Lock()
	idle := u.State == UssdStateIdle
	u.mu.Unlock()
	if idle {
		return "", WrongState("no active USSD session")
	}
	return "", Unsupported("USSD is not implemented by this bridge")
}

func (u *Ussd) Cancel() *dbus.Error {
	return Unsupported("USSD is not implemented by this bridge")
}
