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

package avsync_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/e1z0/mediapipe/internal/mediapipe/avsync"
	"github.com/e1z0/mediapipe/internal/mediapipe/clock"
)

func fakeNow(t *testing.T, ms int64) {
	t.Helper()
	orig := clock.NowMs
	clock.NowMs = func() int64 { return ms }
	t.Cleanup(func() { clock.NowMs = orig })
}

// spec.md §8 property 6: on diff within [-SYNC_MIN, SYNC_MIN] (strictly,
// since the shrink/expand branches are inclusive of the threshold edges),
// AVSync returns the nominal frame period ± 5ms.
func TestDelayNominalWhenInSync(t *testing.T) {
	fakeNow(t, 0)
	video := clock.New()
	audio := clock.New()

	video.Set(1000, 0)
	video.Set(1040, 0) // last=1000, cur=1040 -> raw delay 40ms, matches 25fps tick_frame
	audio.Set(1000, 0) // diff = last_pts(1000) - ref(1000) = 0, well inside the sync window

	d := avsync.Delay(video, audio, 25, 1, time.UnixMilli(0))
	assert.InDelta(t, 40, d.Milliseconds(), 5)
}

func TestDelayShrinksWhenVideoLate(t *testing.T) {
	fakeNow(t, 0)
	video := clock.New()
	audio := clock.New()

	video.Set(1000, 0)
	video.Set(1040, 0)
	audio.Set(1200, 0) // audio far ahead: diff = 1000-1200 = -200 <= -threshold

	d := avsync.Delay(video, audio, 25, 1, time.UnixMilli(0))
	assert.LessOrEqual(t, d, 40*time.Millisecond)
	assert.GreaterOrEqual(t, d, time.Duration(0))
}

func TestDelayDoublesWhenVideoMildlyEarly(t *testing.T) {
	fakeNow(t, 0)
	video := clock.New()
	audio := clock.New()

	video.Set(1000, 0)
	video.Set(1040, 0)
	audio.Set(920, 0) // diff = 1000-920 = 80 >= threshold(40), delay(40) not > SYNC_MAX(100) -> double

	d := avsync.Delay(video, audio, 25, 1, time.UnixMilli(0))
	assert.InDelta(t, 80, d.Milliseconds(), 5)
}

func TestDelayFallsBackToTickFrameOnBadRawDelay(t *testing.T) {
	fakeNow(t, 0)
	video := clock.New()
	audio := clock.New()

	video.Set(1000, 0)
	video.Set(1000, 0) // cur == last -> raw delay 0, falls back to tick_frame
	audio.Set(1000, 0)

	d := avsync.Delay(video, audio, 25, 1, time.UnixMilli(0))
	assert.InDelta(t, 40, d.Milliseconds(), 5)
}

func TestDelayNeverNegative(t *testing.T) {
	fakeNow(t, 0)
	video := clock.New()
	audio := clock.New()

	video.Set(1000, 0)
	video.Set(1010, 0)
	audio.Set(5000, 0) // huge diff in the "late" direction

	d := avsync.Delay(video, audio, 25, 1, time.UnixMilli(0))
	assert.GreaterOrEqual(t, d, time.Duration(0))
}
