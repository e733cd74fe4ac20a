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

package decoder_test

import (
	"sync"
	"testing"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e1z0/mediapipe/internal/mediapipe/decoder"
	"github.com/e1z0/mediapipe/internal/mediapipe/event"
	"github.com/e1z0/mediapipe/internal/mediapipe/media"
)

// fakeFeed is a decoder.Feed whose FetchPacket reports end-of-stream
// until the first Seek and afterwards hands out synthetic packets (AV()
// == nil), so Decoder.submitAndDrain's codec interaction is never reached
// (the codec given to Init here is nil) and only the surrounding state
// machine is exercised: init, pause/resume, seek, stop, teardown.
type fakeFeed struct {
	mu      sync.Mutex
	seeks   []float64
	seekErr error
	closed  int
}

func (f *fakeFeed) FetchPacket() (*media.Packet, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.seeks) == 0 {
		return nil, false
	}
	return media.NewSyntheticPacket(0, media.Rational{Num: 1, Den: 1000}, 0, 0, false, nil), true
}

func (f *fakeFeed) Seek(position float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, position)
	return f.seekErr
}

func (f *fakeFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeFeed) seekCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seeks)
}

type recordingSink struct {
	mu     sync.Mutex
	events []event.Type
}

func (r *recordingSink) Emit(t event.Type, code float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, t)
}

func (r *recordingSink) count(t event.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == t {
			n++
		}
	}
	return n
}

func newDecoder(feed decoder.Feed, ev event.Sink) *decoder.Decoder {
	return decoder.New(decoder.Config{
		Kind: media.StreamVideo,
		Feed: feed,
		Init: func() (*astiav.CodecContext, media.Rational, media.MediaParameters, error) {
			return nil, media.Rational{Num: 1, Den: 1000}, media.MediaParameters{DurationMs: 10000}, nil
		},
		EventSink: ev,
	})
}

func TestDecoderEmitsReadyThenDoneAroundStop(t *testing.T) {
	feed := &fakeFeed{}
	ev := &recordingSink{}
	d := newDecoder(feed, ev)

	d.Start()
	// give the worker a moment to run init and hit its first EOS-driven
	// Paused transition.
	require.Eventually(t, func() bool { return ev.count(event.DecoderReady) == 1 }, time.Second, 5*time.Millisecond)

	d.Stop()
	assert.Equal(t, 1, ev.count(event.DecoderReady))
	assert.Equal(t, 1, ev.count(event.DecoderDone))
	assert.Equal(t, 1, feed.closed)
}

func TestDecoderEndOfStreamBecomesPausedNotStopped(t *testing.T) {
	feed := &fakeFeed{}
	ev := &recordingSink{}
	d := newDecoder(feed, ev)

	d.Start()
	require.Eventually(t, func() bool { return d.State() == decoder.StatePaused }, time.Second, 5*time.Millisecond)
	assert.Equal(t, decoder.StatePaused, d.State())

	d.Stop()
}

func TestDecoderSeekWhilePausedResumesAndIsApplied(t *testing.T) {
	feed := &fakeFeed{}
	ev := &recordingSink{}
	d := newDecoder(feed, ev)

	d.Start()
	require.Eventually(t, func() bool { return d.State() == decoder.StatePaused }, time.Second, 5*time.Millisecond)

	d.Seek(0.5)
	require.Eventually(t, func() bool { return feed.seekCount() == 1 }, time.Second, 5*time.Millisecond)
	// seeking out of an end-of-stream pause resumes playback without a
	// separate Resume() call (spec.md §8 scenario S4).
	require.Eventually(t, func() bool { return d.State() == decoder.StatePlaying }, time.Second, 5*time.Millisecond)

	d.Stop()
}

func TestDecoderPauseResume(t *testing.T) {
	feed := &fakeFeed{}
	ev := &recordingSink{}
	d := newDecoder(feed, ev)

	d.Start()
	d.Pause()
	assert.Equal(t, decoder.StatePaused, d.State())
	d.Resume()
	assert.Equal(t, decoder.StatePlaying, d.State())

	d.Stop()
}
