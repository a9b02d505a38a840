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

import "math"

// delta converts an elapsed duration into a whole number of beacon
// intervals, rounding to the nearest interval.
func delta(elapsed, beaconInterval int64) int {
	if beaconInterval <= 0 {
		return 0
	}
	d := math.Round(float64(elapsed) / float64(beaconInterval))
	if d < 0 {
		return 0
	}
	return int(d)
}

// record advances the ping buffer by the number of beacon intervals
// elapsed since the last record/probe, writing false into any
// intermediate (missed) slots and true into the newest slot, since this
// call represents an actual reception.
func (e *AdjacencyEntry) record(now, beaconInterval int64) {
	d := delta(now-e.Timestamp, beaconInterval)
	for i := 0; i < d-1; i++ {
		e.advance(false)
	}
	if d >= 1 {
		e.advance(true)
	}
	e.Timestamp = now
}

// probe advances the ping buffer to reflect the passage of time without a
// reception, writing false into every slot crossed. A probe called before
// a full beacon interval has elapsed (delta zero) is a no-op: it neither
// touches the buffer nor the timestamp.
func (e *AdjacencyEntry) probe(now, beaconInterval int64) {
	d := delta(now-e.Timestamp, beaconInterval)
	if d == 0 {
		return
	}
	for i := 0; i < d; i++ {
		e.advance(false)
	}
	e.Timestamp = now
}

func (e *AdjacencyEntry) advance(hit bool) {
	e.pingHead = (e.pingHead + 1) % pingBufferSize
	e.pingBuffer[e.pingHead] = hit
}

// Quality is the count of true slots in the sliding ping buffer, 0-10.
func (e *AdjacencyEntry) Quality() uint8 {
	var n uint8
	for _, hit := range e.pingBuffer {
		if hit {
			n++
		}
	}
	return n
}

// qualityFraction is Quality normalized to 0..1, the form the election
// and drop-threshold checks compare against.
func (e *AdjacencyEntry) qualityFraction() float64 {
	return float64(e.Quality()) / float64(pingBufferSize)
}

// qualityDropThreshold is the normalized quality at or below which an
// adjacency's beacons are dropped rather than processed.
const qualityDropThreshold = 0.1

// lowerQualityTo forces the buffer down to at most target true slots,
// used when a peer's beacon reports a lower quality for us than we have
// for it: the two sides are reconciled to the lower value.
func (e *AdjacencyEntry) lowerQualityTo(target uint8) {
	remaining := target
	for i := range e.pingBuffer {
		if e.pingBuffer[i] && remaining > 0 {
			remaining--
			continue
		}
		e.pingBuffer[i] = false
	}
}
