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

package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e1z0/mediapipe/internal/mediapipe/media"
	"github.com/e1z0/mediapipe/internal/mediapipe/packetqueue"
)

func TestQueueFeedFetchPacketDrainsQueueInOrder(t *testing.T) {
	tb := media.Rational{Num: 1, Den: 1000}
	q := packetqueue.New(tb)
	q.Start()
	q.Push(media.NewSyntheticPacket(0, tb, 0, 33, true, nil))
	q.Push(media.NewSyntheticPacket(0, tb, 33, 33, false, nil))

	f := &queueFeed{q: q}

	p1, ok := f.FetchPacket()
	require.True(t, ok)
	assert.Equal(t, int64(0), p1.PTS())

	p2, ok := f.FetchPacket()
	require.True(t, ok)
	assert.Equal(t, int64(33), p2.PTS())

	q.Stop()
	_, ok = f.FetchPacket()
	assert.False(t, ok)
}

func TestDrainAndDiscardReleasesEveryPacketUntilStopped(t *testing.T) {
	tb := media.Rational{Num: 1, Den: 1}
	q := packetqueue.New(tb)
	q.Start()

	released := 0
	for i := 0; i < 3; i++ {
		q.Push(media.NewSyntheticPacket(1, tb, int64(i), 1, false, func() { released++ }))
	}
	q.Stop()

	drainAndDiscard(q)
	assert.Equal(t, 3, released)
}
