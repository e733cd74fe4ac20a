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

package clock_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e1z0/mediapipe/internal/mediapipe/clock"
)

func withFakeClock(t *testing.T, start int64) *int64 {
	t.Helper()
	now := start
	orig := clock.NowMs
	clock.NowMs = func() int64 { return now }
	t.Cleanup(func() { clock.NowMs = orig })
	return &now
}

func TestGetNonDecreasingBetweenSets(t *testing.T) {
	now := withFakeClock(t, 1000)
	c := clock.New()

	c.Set(0, *now)
	prev := c.Get()
	for i := int64(1); i <= 20; i++ {
		*now += 5
		got := c.Get()
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestSetAdvancesLastPts(t *testing.T) {
	now := withFakeClock(t, 0)
	c := clock.New()

	c.Set(100, *now)
	require.EqualValues(t, 0, c.LastPtsMs())
	require.EqualValues(t, 100, c.CurPtsMs())

	c.Set(250, *now)
	assert.EqualValues(t, 100, c.LastPtsMs())
	assert.EqualValues(t, 250, c.CurPtsMs())
}

// spec.md §8 property 5: pausing for Δ and resuming must not shift
// Get() - video_pts by more than one poll interval (10ms), as long as the
// pause loop keeps nudging wall_base forward the way the idle wait does.
func TestPauseDoesNotDriftClock(t *testing.T) {
	now := withFakeClock(t, 0)
	c := clock.New()
	c.Set(5000, *now)

	before := c.Get()

	// simulate the decoder's idle loop: every ~10ms poll, nudge wall_base
	// forward so the paused clock doesn't run away.
	const pollMs = int64(10)
	for elapsed := int64(0); elapsed < 3000; elapsed += pollMs {
		*now += pollMs
		c.AdjustWallBase(pollMs)
	}

	after := c.Get()
	assert.InDelta(t, float64(before), float64(after), float64(pollMs))
}

func TestGetExtrapolatesFromWallBase(t *testing.T) {
	now := withFakeClock(t, 0)
	c := clock.New()
	c.Set(1000, *now)

	*now += 250
	assert.EqualValues(t, 1250, c.Get())
}
