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

// Package retry generalizes the inline bounded-retry loops nuntium used
// around context activation and modem enumeration (ofono/modem.go
// toggleActive, cmd/nuntium mediator dial loop) into a single helper.
package retry

import (
	"context"
	"time"
)

// Policy bounds a retry loop: at most MaxAttempts calls, waiting Backoff
// between each.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Do calls fn until it succeeds, ctx is cancelled, or MaxAttempts is
// exhausted. The last error is returned if every attempt failed.
func Do(ctx context.Context, policy Policy, fn func() error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	var err error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = fn(); err == nil {
			return nil
		}
		if attempt == policy.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.Backoff):
		}
	}
	return err
}
