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
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

// Call state, mirroring MMCallState. Unlike the source this is derived
// from (mm_call.py), "disconnected" maps to Terminated(7), not the
// Active(4) value the original (buggy) code assigned it — see DESIGN.md.
const (
	CallStateUnknown     int32 = 0
	CallStateDialing     int32 = 1
	CallStateRingingOut  int32 = 2
	CallStateRingingIn   int32 = 3
	CallStateActive      int32 = 4
	CallStateHeld        int32 = 5
	CallStateWaiting     int32 = 6
	CallStateTerminated  int32 = 7
)

const (
	CallReasonUnknown         uint32 = 0
	CallReasonOutgoingStarted uint32 = 1
	CallReasonAccepted        uint32 = 3
	CallReasonTerminated      uint32 = 4
)

// Call is the thin org.freedesktop.ModemManager1.Call stand-in
// (mm_call.py): it tracks call state transitions reported by the lower
// stack's VoiceCallManager but does not originate calls, since voice is
// out of scope for this core.
type Call struct {
	mu          sync.Mutex
	Index       int
	State       int32
	StateReason int32
	Direction   int32
	Number      string
	Multiparty  bool
}

func NewCall(index int, number string) *Call {
	return &Call{Index: index, Number: number}
}

// ApplyOfonoState maps an ofono VoiceCall.State value onto the call's
// upper-protocol state (mm_call.py update_property).
func (c *Call) ApplyOfonoState(state string) (old, new int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	old = c.State
	switch state {
	case "alerting":
		c.State, c.StateReason = CallStateRingingOut, int32(CallReasonOutgoingStarted)
	case "active":
		c.State, c.StateReason = CallStateActive, int32(CallReasonAccepted)
	case "disconnected":
		c.State, c.StateReason = CallStateTerminated, int32(CallReasonTerminated)
	}
	return old, c.State
}

func (c *Call) Properties() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]interface{}{
		"State":       c.State,
		"StateReason": c.StateReason,
		"Direction":   c.Direction,
		"Number":      c.Number,
		"Multiparty":  c.Multiparty,
		"AudioPort":   "",
		"AudioFormat": map[string]interface{}{
			"encoding":   "pcm",
			"resolution": "s16le",
			"rate":       uint32(48000),
		},
	}
}

func (c *Call) Hangup() *dbus.Error {
	c.mu.Lock()
	c.State = CallStateTerminated
	c.StateReason = int32(CallReasonTerminated)
	c.mu.Unlock()
	return nil
}

func (c *Call) SendDtmf(dtmf string) *dbus.Error {
	return Unsupported("DTMF is not supported")
}

// Voice is the thin org.freedesktop.ModemManager1.Modem.Voice stand-in:
// a registry of in-progress Call objects exported alongside the modem.
type Voice struct {
	mu    sync.Mutex
	calls map[int]*Call
}

func NewVoice() *Voice {
	return &Voice{calls: make(map[int]*Call)}
}

func (v *Voice) Properties() map[string]interface{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	paths := make([]dbus.ObjectPath, 0, len(v.calls))
	for idx := range v.calls {
		paths = append(paths, callPath(idx))
	}
	return map[string]interface{}{
		"EmergencyOnly": false,
		"Calls":         paths,
	}
}

func callPath(idx int) dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/ModemManager1/Call/%d", idx))
}

func (v *Voice) CreateCall(number string) (dbus.ObjectPath, *dbus.Error) {
	return "", Unsupported("originating calls is not supported")
}

func (v *Voice) DeleteCall(path dbus.ObjectPath) *dbus.Error {
	return Unsupported("call teardown is managed by the lower stack")
}

func (v *Voice) ListCalls() []dbus.ObjectPath {
	v.mu.Lock()
	defer v.mu.Unlock()
	paths := make([]dbus.ObjectPath, 0, len(v.calls))
	for idx := range v.calls {
		paths = append(paths, callPath(idx))
	}
	return paths
}
