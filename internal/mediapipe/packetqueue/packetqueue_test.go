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

package packetqueue_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e1z0/mediapipe/internal/mediapipe/media"
	"github.com/e1z0/mediapipe/internal/mediapipe/packetqueue"
)

var tb25fps = media.Rational{Num: 1, Den: 25}

func synth(n int, released *int32) *media.Packet {
	return media.NewSyntheticPacket(0, tb25fps, int64(n), 1, n == 0, func() {
		if released != nil {
			*released++
		}
	})
}

// Invariant 1 (spec.md §8): total_duration == Σ duration(held packets).
func TestTotalDurationInvariant(t *testing.T) {
	q := packetqueue.New(tb25fps)
	q.Start()

	var sum int64
	for i := 0; i < 10; i++ {
		pkt := synth(i, nil)
		require.True(t, q.Push(pkt))
		sum += pkt.Duration()
		assert.Equal(t, sum, q.TotalDuration())
	}

	for i := 0; i < 5; i++ {
		pkt, ok := q.Pop(false)
		require.True(t, ok)
		require.NotNil(t, pkt)
		sum -= pkt.Duration()
		assert.Equal(t, sum, q.TotalDuration())
	}
}

// Invariant 2: after Flush, no packet held before it is later returned by Pop.
func TestFlushReleasesAndForgetsPackets(t *testing.T) {
	q := packetqueue.New(tb25fps)
	q.Start()

	var released int32
	ids := map[int64]bool{}
	for i := 0; i < 4; i++ {
		pkt := synth(i, &released)
		ids[pkt.PTS()] = true
		require.True(t, q.Push(pkt))
	}

	q.Flush()
	assert.Equal(t, int64(0), q.TotalDuration())
	assert.Equal(t, 0, q.Len())
	assert.EqualValues(t, 4, released)

	// pushing fresh packets afterwards must never resurrect the old ones
	require.True(t, q.Push(synth(99, nil)))
	pkt, ok := q.Pop(false)
	require.True(t, ok)
	require.NotNil(t, pkt)
	assert.Equal(t, int64(99), pkt.PTS())
}

func TestPopNonBlockingOnEmptyRunningQueue(t *testing.T) {
	q := packetqueue.New(tb25fps)
	q.Start()
	pkt, ok := q.Pop(false)
	assert.Nil(t, pkt)
	assert.True(t, ok, "empty but running queue should not signal end-of-stream")
}

func TestPopObservesStopAsEndOfStream(t *testing.T) {
	q := packetqueue.New(tb25fps)
	q.Start()
	q.Stop()
	pkt, ok := q.Pop(true)
	assert.Nil(t, pkt)
	assert.False(t, ok)
}

func TestBlockingPopWakesOnPush(t *testing.T) {
	q := packetqueue.New(tb25fps)
	q.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	var got *media.Packet
	go func() {
		defer wg.Done()
		pkt, ok := q.Pop(true)
		if ok {
			got = pkt
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.True(t, q.Push(synth(7, nil)))

	wg.Wait()
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.PTS())
}

func TestBlockingPopWakesOnStop(t *testing.T) {
	q := packetqueue.New(tb25fps)
	q.Start()

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop(true)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Stop()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("blocking Pop did not wake up on Stop")
	}
}

func TestPushFailsAfterStop(t *testing.T) {
	q := packetqueue.New(tb25fps)
	q.Start()
	q.Stop()
	assert.False(t, q.Push(synth(1, nil)))
}

func TestBufferedSeconds(t *testing.T) {
	q := packetqueue.New(media.Rational{Num: 1, Den: 1000}) // ms ticks
	q.Start()
	for i := 0; i < 5; i++ {
		pkt := media.NewSyntheticPacket(0, q_tb(), int64(i), 40, false, nil)
		require.True(t, q.Push(pkt))
	}
	assert.InDelta(t, 0.2, q.BufferedSeconds(), 1e-9)
}

func q_tb() media.Rational { return media.Rational{Num: 1, Den: 1000} }
