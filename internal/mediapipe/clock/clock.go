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

// Package clock implements the monotonic playback clock (spec.md §4.2,
// C2): it tracks the pts last observed and the wall-clock time at which it
// was observed, so Get() can extrapolate the current pts without the
// writer having to update it on every tick.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock is safe for one writer (the owning decoder) and many readers (the
// Synchronizer, status queries) without locking: Set publishes curPts and
// wallBase through a version counter so Get never combines a cur_pts from
// one Set with a wall_base from another. LastPtsMs, CurPtsMs and
// WallBaseMs are individual atomic loads and are not read as one snapshot.
type Clock struct {
	version int64 // atomic; odd while a Set is in flight

	lastPtsMs int64
	curPtsMs  int64
	wallBase  int64 // ms, system time corresponding to curPtsMs

	frameTimer int64 // ms, wall time the last frame was presented
}

// NowMs returns the current wall-clock time in integer milliseconds. It is
// a package-level var so tests can substitute a controllable clock.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// New creates a Clock with last/cur pts at 0 and wall_base at the current
// time.
func New() *Clock {
	c := &Clock{}
	now := NowMs()
	c.wallBase = now
	c.frameTimer = now
	return c
}

// Set advances last_pts <- cur_pts, cur_pts <- ptsMs, wall_base <- wallNowMs.
func (c *Clock) Set(ptsMs, wallNowMs int64) {
	atomic.AddInt64(&c.version, 1) // now odd: writer in flight
	atomic.StoreInt64(&c.lastPtsMs, atomic.LoadInt64(&c.curPtsMs))
	atomic.StoreInt64(&c.curPtsMs, ptsMs)
	atomic.StoreInt64(&c.wallBase, wallNowMs)
	atomic.AddInt64(&c.version, 1) // now even: safe to read
}

// Get returns cur_pts + (now - wall_base): the clock's current estimated
// position. Non-decreasing between successive Set calls as long as the
// wall clock and pts sequence are themselves non-decreasing (spec.md §8
// property 4).
func (c *Clock) Get() int64 {
	return c.snapshot(NowMs())
}

func (c *Clock) snapshot(now int64) int64 {
	for {
		v1 := atomic.LoadInt64(&c.version)
		if v1&1 != 0 {
			continue // writer in flight, retry
		}
		cur := atomic.LoadInt64(&c.curPtsMs)
		base := atomic.LoadInt64(&c.wallBase)
		v2 := atomic.LoadInt64(&c.version)
		if v1 == v2 {
			return cur + (now - base)
		}
	}
}

// LastPtsMs returns the pts observed before the most recent Set.
func (c *Clock) LastPtsMs() int64 { return atomic.LoadInt64(&c.lastPtsMs) }

// CurPtsMs returns the pts observed at the most recent Set.
func (c *Clock) CurPtsMs() int64 { return atomic.LoadInt64(&c.curPtsMs) }

// WallBaseMs returns the wall time associated with the current pts.
func (c *Clock) WallBaseMs() int64 { return atomic.LoadInt64(&c.wallBase) }

// AdjustWallBase shifts wall_base forward by deltaMs without touching any
// pts. The idle/pause wait in spec.md §4.3 step 2 uses this on every
// iteration so the clock does not drift across a pause.
func (c *Clock) AdjustWallBase(deltaMs int64) {
	atomic.AddInt64(&c.wallBase, deltaMs)
}

// ResetWallBase pins wall_base to wallNowMs without touching cur_pts or
// last_pts, so Get() keeps reporting the pts last observed before a seek
// instead of jumping to 0 until the next frame decodes (spec.md §4.3
// step 4 only asks to reset wall_base).
func (c *Clock) ResetWallBase(wallNowMs int64) {
	atomic.AddInt64(&c.version, 1) // now odd: writer in flight
	atomic.StoreInt64(&c.wallBase, wallNowMs)
	atomic.AddInt64(&c.version, 1) // now even: safe to read
}

// FrameTimerMs returns the wall time the last frame was presented.
func (c *Clock) FrameTimerMs() int64 { return atomic.LoadInt64(&c.frameTimer) }

// SetFrameTimerMs records the wall time a frame was just presented.
func (c *Clock) SetFrameTimerMs(ms int64) { atomic.StoreInt64(&c.frameTimer, ms) }
