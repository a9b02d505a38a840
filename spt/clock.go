/*
 * VC5 load balancer. Copyright (C) 2021-present David Coles
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package spt

import "time"

// clockBootstrapThreshold is how close to the clock's fixed minimum "now"
// must be for a beacon's timestamp to be used to snap the clock forward.
// Real embedded nodes without an RTC boot at/near Unix-epoch zero; this
// lets them adopt a peer's notion of time on first contact.
const clockBootstrapThreshold = 10 // seconds since epoch

// Clock is the opaque wall-clock the state machine is built around. Time
// is always seconds since the Unix epoch.
type Clock interface {
	Now() int64
}

// Settable clocks can be snapped forward during the beacon handler's
// clock-bootstrap stage. SystemClock does not implement it: real time
// never needs bootstrapping.
type Settable interface {
	Set(seconds int64)
}

// SystemClock wraps time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() int64 { return time.Now().Unix() }

// ManualClock is a settable clock for tests and for embedded nodes that
// boot without a real-time clock.
type ManualClock struct {
	seconds int64
}

// NewManualClock returns a ManualClock starting at the given time.
func NewManualClock(start int64) *ManualClock {
	return &ManualClock{seconds: start}
}

// Now implements Clock.
func (c *ManualClock) Now() int64 { return c.seconds }

// Set implements Settable.
func (c *ManualClock) Set(seconds int64) { c.seconds = seconds }

// Advance moves the clock forward by delta seconds, for tests.
func (c *ManualClock) Advance(delta int64) { c.seconds += delta }

func bootstrapClock(c Clock, beaconTimestamp int64) {
	if c.Now() > clockBootstrapThreshold {
		return
	}
	if s, ok := c.(Settable); ok {
		s.Set(beaconTimestamp)
	}
}
