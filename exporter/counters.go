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

// Package exporter assigns and tracks bus object paths (§4.7): the
// modem/SIM/bearer path templates and the monotonic counters that feed
// them.
package exporter

import "sync"

// Counters hands out monotonically non-decreasing modem, SIM and bearer
// indexes for the lifetime of the process (§9 design note: these are
// fields of a component, never process-wide globals).
type Counters struct {
	mu    sync.Mutex
	modem int
	sim   int
	bearer int
}

// NewCounters returns a Counters starting all indexes at zero.
func NewCounters() *Counters {
	return &Counters{}
}

// NextModemIndex returns the next modem index and advances the counter.
func (c *Counters) NextModemIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.modem
	c.modem++
	return i
}

// NextSimIndex returns the next SIM index and advances the counter.
func (c *Counters) NextSimIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.sim
	c.sim++
	return i
}

// NextBearerIndex returns the next bearer index and advances the
// counter. It satisfies bearer.IndexSource.
func (c *Counters) NextBearerIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.bearer
	c.bearer++
	return i
}
