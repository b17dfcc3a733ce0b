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

import "testing"

func TestCallDisconnectedMapsToTerminated(t *testing.T) {
	c := NewCall(0, "+15551234567")
	c.ApplyOfonoState("active")
	old, new := c.ApplyOfonoState("disconnected")

	if old != CallStateActive {
		t.Fatalf("old state = %d, want Active(%d)", old, CallStateActive)
	}
	if new != CallStateTerminated {
		t.Fatalf("new state = %d, want Terminated(%d); a disconnected call must never be reported as Active", new, CallStateTerminated)
	}
}

func TestCallAlertingAndActiveTransitions(t *testing.T) {
	c := NewCall(1, "+15557654321")

	_, new := c.ApplyOfonoState("alerting")
	if new != CallStateRingingOut {
		t.Fatalf("alerting -> %d, want RingingOut(%d)", new, CallStateRingingOut)
	}

	_, new = c.ApplyOfonoState("active")
	if new != CallStateActive {
		t.Fatalf("active -> %d, want Active(%d)", new, CallStateActive)
	}
	if c.StateReason != int32(CallReasonAccepted) {
		t.Fatalf("StateReason = %d, want CallReasonAccepted", c.StateReason)
	}
}

func TestHangupTerminatesCall(t *testing.T) {
	c := NewCall(2, "+15550001111")
	c.ApplyOfonoState("active")
	if err := c.Hangup(); err != nil {
		t.Fatalf("Hangup returned %v, want nil", err)
	}
	props := c.Properties()
	if props["State"] != CallStateTerminated {
		t.Fatalf("State after Hangup = %v, want Terminated", props["State"])
	}
}
