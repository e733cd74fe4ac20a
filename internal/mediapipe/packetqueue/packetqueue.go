/* SPDX-License-Identifier: GPL-3.0-or-later
 *
 * mediapipe
 * Copyright (C) 2025 e1z0 <e1z0@icloud.com>
 *
 * This file is part of mediapipe.
 *
 * mediapipe is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * mediapipe is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with mediapipe.  If not, see <https://www.gnu.org/licenses/>.
 */

// Package packetqueue implements the thread-safe FIFO of compressed
// packets described in spec.md §4.1 (C1): a PacketQueue tracks an
// aggregate buffered duration so a demux worker can apply backpressure,
// and wakes blocked consumers on push/stop. The queue has no capacity
// limit of its own; its size is bounded only by that backpressure.
package packetqueue

import (
	"sync"

	"github.com/e1z0/mediapipe/internal/mediapipe/media"
)

// Queue is a FIFO of *media.Packet with a running total_duration tally;
// Push never blocks and never rejects a packet for lack of room. The zero
// value is not usable; use New.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond

	items         []*media.Packet
	totalDuration int64 // ticks, Σ duration(held packets)
	timeBase      media.Rational
	running       bool
}

// New creates a Queue for packets carrying the given time base (used only
// by BufferedSeconds; individual packets may carry their own time base,
// but within one queue it is always the same stream's).
func New(tb media.Rational) *Queue {
	q := &Queue{timeBase: tb}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Start marks the queue running so Pop can block waiting for data.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.running = true
}

// Stop marks the queue stopped and wakes every blocked Pop waiter.
// Held packets are not released; call Flush first if that is required.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.running = false
	q.notEmpty.Broadcast()
}

// Push appends pkt and adds its duration to the running tally. Push fails
// only if the queue has been stopped.
func (q *Queue) Push(pkt *media.Packet) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running {
		return false
	}
	q.items = append(q.items, pkt)
	q.totalDuration += pkt.Duration()
	q.notEmpty.Signal()
	return true
}

// Pop removes the head packet. If blocking is true and the queue is empty
// but still running, Pop waits until a packet arrives or the queue is
// stopped. ok is false only for the stopped-and-empty end-of-stream case.
func (q *Queue) Pop(blocking bool) (pkt *media.Packet, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		if !q.running {
			return nil, false
		}
		if !blocking {
			return nil, true // empty, but still running: no packet right now
		}
		q.notEmpty.Wait()
	}

	pkt = q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	q.totalDuration -= pkt.Duration()
	if q.totalDuration < 0 {
		q.totalDuration = 0
	}
	return pkt, true
}

// Flush releases every held packet and zeroes the duration tally. The
// running flag is left unchanged, matching spec.md §4.1.
func (q *Queue) Flush() {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.totalDuration = 0
	q.mu.Unlock()

	for _, pkt := range items {
		pkt.Release()
	}
}

// BufferedSeconds reports the queue's buffered duration in seconds,
// queried by a demux worker for backpressure decisions.
func (q *Queue) BufferedSeconds() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.timeBase.Seconds(q.totalDuration)
}

// TotalDuration returns the raw tick tally; exported chiefly for tests
// verifying the invariant total_duration == Σ duration(held packets).
func (q *Queue) TotalDuration() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.totalDuration
}

// Len reports the number of packets currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
