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

package mm

// ModeRow is one (allowed-mask, preferred) row of a SupportedModes list.
type ModeRow struct {
	Allowed   Mode
	Preferred Mode
}

// modeTable is the literal table from §6: keyed by the OR of every mode a
// modem's RadioSettings.AvailableTechnologies maps to, each entry lists the
// SupportedModes rows in order of decreasing preference.
var modeTable = map[Mode][]ModeRow{
	Mode2G | Mode3G | Mode4G | Mode5G: {
		{Mode2G | Mode3G | Mode4G | Mode5G, Mode5G},
		{Mode2G | Mode3G | Mode4G, Mode4G},
		{Mode2G | Mode3G, Mode3G},
		{Mode2G, ModeAny},
	},
	Mode3G | Mode4G | Mode5G: {
		{Mode3G | Mode4G | Mode5G, ModeAny},
	},
	Mode2G | Mode4G | Mode5G: {
		{Mode2G | Mode4G | Mode5G, ModeAny},
	},
	Mode4G | Mode5G: {
		{Mode4G | Mode5G, ModeAny},
	},
	Mode3G | Mode5G: {
		{Mode3G | Mode5G, ModeAny},
	},
	Mode2G | Mode5G: {
		{Mode2G | Mode5G, ModeAny},
	},
	Mode5G: {
		{Mode5G, ModeAny},
	},
	Mode2G | Mode3G | Mode4G: {
		{Mode2G | Mode3G | Mode4G, Mode4G},
		{Mode2G | Mode3G, Mode3G},
		{Mode2G, ModeAny},
	},
	Mode3G | Mode4G: {
		{Mode3G | Mode4G, Mode4G},
		{Mode3G, ModeAny},
	},
	Mode2G | Mode4G: {
		{Mode2G | Mode4G, Mode4G},
		{Mode2G, ModeAny},
	},
	Mode3G: {
		{Mode3G, ModeAny},
	},
	Mode2G: {
		{Mode2G, ModeAny},
	},
	ModeNone: {},
}

// SupportedModes returns the fixed SupportedModes rows for the given
// mm_modes OR-mask, or nil if the mask has no table entry (treated the
// same as the empty-key case).
func SupportedModes(mmModes Mode) []ModeRow {
	return modeTable[mmModes]
}

// CurrentMode picks the CurrentModes row out of supported by scanning it in
// order and taking the first row whose Preferred equals preferred; falling
// back to the first row whose Allowed mask shares a bit with preferred,
// reported as (preferred, ModeNone) per §4.3 rule 11's fallback clause.
func CurrentMode(supported []ModeRow, preferred Mode) ModeRow {
	for _, row := range supported {
		if row.Preferred == preferred {
			return row
		}
	}
	for _, row := range supported {
		if row.Allowed&preferred != 0 {
			return ModeRow{Allowed: preferred, Preferred: ModeNone}
		}
	}
	return ModeRow{Allowed: preferred, Preferred: ModeNone}
}
