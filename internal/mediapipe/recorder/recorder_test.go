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

package recorder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/e1z0/mediapipe/internal/mediapipe/media"
)

// Start/Stop need a real astiav container and encoders, so these tests
// exercise the parts that are pure Go: the not-started guard, the
// drop-on-full backpressure policy (spec.md §4.8: a stalled encoder must
// not block the capture loop), and Stop's idempotency.

func TestWriteVideoFrameBeforeStartFails(t *testing.T) {
	r := New(Config{Width: 640, Height: 480})
	err := r.WriteVideoFrame(&media.NativeImage{})
	assert.Error(t, err)
}

func TestWriteAudioFrameWithoutAudioActiveFails(t *testing.T) {
	r := New(Config{Width: 640, Height: 480})
	err := r.WriteAudioFrame([]byte{0, 0})
	assert.Error(t, err)
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	r := New(Config{Width: 640, Height: 480})
	assert.NoError(t, r.Stop())
}

func TestVideoQueueDropsFramesWhenFull(t *testing.T) {
	r := New(Config{Width: 640, Height: 480, QueueDepth: 2})
	r.started = true
	r.videoQueue = make(chan *media.NativeImage, 2)

	assert.NoError(t, r.WriteVideoFrame(&media.NativeImage{}))
	assert.NoError(t, r.WriteVideoFrame(&media.NativeImage{}))
	assert.Error(t, r.WriteVideoFrame(&media.NativeImage{}))
	assert.Len(t, r.videoQueue, 2)
}

func TestAudioQueueDropsFramesWhenFull(t *testing.T) {
	r := New(Config{Width: 640, Height: 480, QueueDepth: 1})
	r.started = true
	r.audioQueue = make(chan []byte, 1)

	assert.NoError(t, r.WriteAudioFrame([]byte{1, 2}))
	assert.Error(t, r.WriteAudioFrame([]byte{3, 4}))
	assert.Len(t, r.audioQueue, 1)
}

func TestDefaultQueueDepthApplied(t *testing.T) {
	r := New(Config{})
	assert.Equal(t, defaultQueueDepth, r.cfg.QueueDepth)
}
