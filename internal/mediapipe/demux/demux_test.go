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

package demux

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e1z0/mediapipe/internal/mediapipe/media"
	"github.com/e1z0/mediapipe/internal/mediapipe/packetqueue"
)

// demux.Worker's ReadFrame-driven loop needs a real astiav.FormatContext,
// which these tests can't construct without an actual media file. What is
// independently testable, and genuinely load-bearing, is the
// backpressure/ordering contract the queues expose to it: BufferedSeconds
// crossing the threshold, and Flush draining both queues for a seek. Those
// are exercised directly against packetqueue.Queue here; Worker.Run itself
// has no test in this module.

func newSyntheticQueue(tb media.Rational, n int, durationTicks int64) *packetqueue.Queue {
	q := packetqueue.New(tb)
	q.Start()
	for i := 0; i < n; i++ {
		q.Push(media.NewSyntheticPacket(0, tb, int64(i)*durationTicks, durationTicks, i == 0, nil))
	}
	return q
}

func TestVideoQueueCrossesBackpressureThreshold(t *testing.T) {
	tb := media.Rational{Num: 1, Den: 1} // 1 tick == 1 second, easy arithmetic
	q := newSyntheticQueue(tb, 10, 1)
	require.Equal(t, 10, q.Len())
	assert.Greater(t, q.BufferedSeconds(), 0.5)
}

func TestFlushBothQueuesOnSeek(t *testing.T) {
	tb := media.Rational{Num: 1, Den: 1}
	video := newSyntheticQueue(tb, 5, 1)
	audio := newSyntheticQueue(tb, 5, 1)

	video.Flush()
	audio.Flush()

	assert.Equal(t, 0, video.Len())
	assert.Equal(t, 0, audio.Len())
	assert.Zero(t, video.TotalDuration())
	assert.Zero(t, audio.TotalDuration())
}

func TestBackpressurePollIsShortEnoughForInteractiveSeek(t *testing.T) {
	// sanity bound so the worker stays responsive to Stop/Seek while
	// backpressure-sleeping (spec.md §5).
	assert.Less(t, int64(backpressurePoll), int64(demuxBackpressurePollUpperBound))
}

const demuxBackpressurePollUpperBound = 50 * time.Millisecond
