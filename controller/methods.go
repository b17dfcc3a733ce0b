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

package controller

import (
	"context"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/ubports/ofono2mm-go/exporter"
	"github.com/ubports/ofono2mm-go/facade"
	"github.com/ubports/ofono2mm-go/mm"
)

// Enable implements org.freedesktop.ModemManager1.Modem.Enable: it
// pre-emits the optimistic Enabled/Disabled transition, flips ofono's
// Online flag, then reprojects so the authoritative state wins (§4.5,
// §9).
func (c *Controller) Enable(enable bool) *dbus.Error {
	target := mm.StateDisabled
	if enable {
		target = mm.StateEnabled
	}
	c.emitOptimisticState(target)

	if err := c.modem.SetProperty("Online", enable); err != nil {
		c.log.WithError(err).WithField("online", enable).Warn("setting Online")
		c.project()
		return facade.Unsupported(err.Error())
	}
	c.project()
	return nil
}

// emitOptimisticState pre-emits a StateChanged signal ahead of a
// lower-stack call whose own PropertyChanged may lag (§4.5, §9), and
// records the new state as the baseline the next project() diffs
// against.
func (c *Controller) emitOptimisticState(target mm.State) {
	c.mu.Lock()
	old := c.prevState
	c.prevState = target
	c.mu.Unlock()
	if old != target {
		c.exp.EmitSignal(c.ObjectPath(), "org.freedesktop.ModemManager1.Modem.StateChanged",
			int32(old), int32(target), uint32(1))
	}
}

// ListBearers implements Modem.ListBearers.
func (c *Controller) ListBearers() ([]dbus.ObjectPath, *dbus.Error) {
	return c.bearers.List(), nil
}

// CreateBearer implements Modem.CreateBearer; properties is its a{sv}
// "properties" input argument.
func (c *Controller) CreateBearer(properties map[string]dbus.Variant) (dbus.ObjectPath, *dbus.Error) {
	props := make(map[string]interface{}, len(properties))
	for k, v := range properties {
		props[k] = v.Value()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	b, err := c.bearers.CreateBearer(ctx, props)
	if err != nil {
		c.log.WithError(err).Warn("CreateBearer")
		return "/", facade.Unsupported(err.Error())
	}
	// The returned bearer's own ObjectPath is authoritative: it is
	// computed once at bearer-construction time and never recomputed
	// from a counter snapshot that could have moved on by the time this
	// method returns (§9 Open Question on doCreateBearer's off-by-one).
	path := b.ObjectPath()
	c.project()
	return path, nil
}

// DeleteBearer implements Modem.DeleteBearer.
func (c *Controller) DeleteBearer(bearer dbus.ObjectPath) *dbus.Error {
	removed, err := c.bearers.DeleteBearer(bearer)
	if err != nil {
		return facade.Unsupported(err.Error())
	}
	if removed {
		c.project()
	}
	return nil
}

// Reset implements Modem.Reset: power-cycle the radio (Powered off, on,
// then Online), pre-emitting the optimistic Enabled transition before
// reprojecting (§4.5).
func (c *Controller) Reset() *dbus.Error {
	c.emitOptimisticState(mm.StateEnabled)

	if err := c.modem.SetProperty("Powered", false); err != nil {
		c.project()
		return facade.Unsupported(err.Error())
	}
	if err := c.modem.SetProperty("Powered", true); err != nil {
		c.project()
		return facade.Unsupported(err.Error())
	}
	if err := c.modem.SetProperty("Online", true); err != nil {
		c.project()
		return facade.Unsupported(err.Error())
	}
	c.project()
	return nil
}

// FactoryReset implements Modem.FactoryReset. ofono has no equivalent
// operation; no GSM/LTE modem in this fleet supports a remote factory
// reset, so this is reported unsupported rather than silently accepted.
func (c *Controller) FactoryReset(code string) *dbus.Error {
	return facade.Unsupported("factory reset is not supported by this modem")
}

// SetPowerState implements Modem.SetPowerState: Powered = (state > 1)
// (§4.5) — Low(2) and On(3) both power the radio, only Off(1) does not.
func (c *Controller) SetPowerState(state uint32) *dbus.Error {
	if err := c.modem.SetProperty("Powered", state > 1); err != nil {
		return facade.Unsupported(err.Error())
	}
	return nil
}

// SetCurrentCapabilities implements Modem.SetCurrentCapabilities. ofono
// exposes no equivalent switch; capability selection follows directly
// from RadioSettings.AvailableTechnologies, which this daemon only
// mirrors. The call is accepted and triggers a reprojection rather than
// being rejected; the requested value is not stored, so
// CurrentCapabilities keeps reporting what AvailableTechnologies yields.
func (c *Controller) SetCurrentCapabilities(capabilities uint32) *dbus.Error {
	c.project()
	return nil
}

// SetCurrentModes implements Modem.SetCurrentModes: the RadioSettings
// TechnologyPreference is the only lower-stack knob that maps onto a
// preferred mode, so only the Preferred half of the pair is pushed down.
func (c *Controller) SetCurrentModes(modes ModePair) *dbus.Error {
	pref := preferredTechnology(mm.Mode(modes.Preferred))
	if pref == "" {
		return facade.Unsupported("no matching ofono technology preference for requested mode")
	}
	if c.radio == nil {
		return facade.Unsupported("RadioSettings interface not present")
	}
	if err := c.radio.SetTechnologyPreference(pref); err != nil {
		return facade.Unsupported(err.Error())
	}
	return nil
}

func preferredTechnology(mode mm.Mode) string {
	switch {
	case mode&mm.Mode5G != 0:
		return "nr"
	case mode&mm.Mode4G != 0:
		return "lte"
	case mode&mm.Mode3G != 0:
		return "umts"
	case mode&mm.Mode2G != 0:
		return "gsm"
	default:
		return ""
	}
}

// SetPrimarySimSlot implements Modem.SetPrimarySimSlot. This fleet is
// single-SIM-per-modem-object; the value is accepted and stored so
// Properties reflects it, but there is nothing to re-route.
func (c *Controller) SetPrimarySimSlot(slot uint32) *dbus.Error {
	c.mu.Lock()
	c.primarySimSlot = slot
	c.mu.Unlock()
	c.project()
	return nil
}

// SetCurrentBands implements Modem.SetCurrentBands. ofono's RadioSettings
// has no band-selection property, so the request is stored for
// Properties to reflect without being pushed to the lower stack.
func (c *Controller) SetCurrentBands(bands []uint32) *dbus.Error {
	c.mu.Lock()
	changed := !bandsEqual(c.currentBands, bands)
	c.currentBands = append([]uint32(nil), bands...)
	c.mu.Unlock()
	if changed {
		c.project()
	}
	return nil
}

// GetCellInfo implements Modem.GetCellInfo: a single serving-cell entry
// derived from the current projection, since ofono exposes no neighbor
// cell list.
func (c *Controller) GetCellInfo() ([]map[string]dbus.Variant, *dbus.Error) {
	proj := mm.Project(mm.Input{
		Mirror:             c.mirror,
		SimPath:            c.simPathLocked(),
		AnyBearerConnected: c.bearers.AnyConnected(),
	})
	serving := proj.State == mm.StateRegistered || proj.State == mm.StateConnected
	cell := map[string]dbus.Variant{
		"cell-type": dbus.MakeVariant(uint32(proj.CellType)),
		"serving":   dbus.MakeVariant(serving),
	}
	return []map[string]dbus.Variant{cell}, nil
}

// Command implements Modem.Command: arbitrary AT-command passthrough is
// out of scope for this core (§1 Non-goals), so it always reports the
// empty response ModemManager clients treat as "nothing to report"
// rather than erroring.
func (c *Controller) Command(cmd string, timeout uint32) (string, *dbus.Error) {
	return "", nil
}

var _ exporter.PropertyProvider = (*Controller)(nil)
