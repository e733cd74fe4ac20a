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

// Package decoder implements the per-stream Decoder worker (spec.md §4.3,
// C4): the state machine that turns compressed Packets into raw Frames,
// honoring pause/seek/stop and publishing a Clock, grounded on the
// teacher's openAndDecode loop in video.go (packet read, SendPacket/
// ReceiveFrame drain, select-on-stop) generalized with the pause/seek
// machinery the teacher (a live-RTSP viewer) never needed.
package decoder

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/asticode/go-astiav"

	"github.com/e1z0/mediapipe/internal/mediapipe/clock"
	"github.com/e1z0/mediapipe/internal/mediapipe/event"
	"github.com/e1z0/mediapipe/internal/mediapipe/media"
)

// idlePollInterval bounds how long a paused decoder sleeps between checks
// of state/pending_seek (spec.md §4.3 step 2, §5).
const idlePollInterval = 10 * time.Millisecond

// InitFunc opens whatever this decoder needs before it can decode: a
// container + stream + codec for a SoftwarePlayer decoder, or just a
// codec for a HardwarePlayer decode worker handed an already-open stream.
type InitFunc func() (codec *astiav.CodecContext, timeBase media.Rational, params media.MediaParameters, err error)

// RenderFunc converts a decoded astiav.Frame and hands it to whatever
// sink this decoder writes into (video scaling + VideoSink.Render, or
// audio resampling + AudioSink.Render). ptsMs is the already-computed
// presentation time in milliseconds.
type RenderFunc func(frame *astiav.Frame, ptsMs int64) error

// SyncFunc computes the presentation delay for a video frame against the
// audio master clock (spec.md §4.5); nil for decoders that aren't
// synchronized internally (SoftwarePlayer's two independent decoders,
// and the hardware audio worker per spec.md §9).
type SyncFunc func(now time.Time) time.Duration

// Config wires a Decoder to its surrounding player.
type Config struct {
	Kind      media.StreamKind
	Feed      Feed
	Init      InitFunc
	Render    RenderFunc
	Sync      SyncFunc
	EventSink event.Sink
	Logger    *log.Logger

	// ClearCache is called, in addition to the feed/codec/clock flush
	// spec.md §4.3 step 4 already requires, whenever this decoder
	// flushes for a seek. Optional (SPEC_FULL.md §5).
	ClearCache func()
}

// Decoder runs one worker goroutine implementing spec.md §4.3's state
// machine for a single stream.
type Decoder struct {
	cfg   Config
	clock *clock.Clock

	state       atomicState
	seekMu      sync.Mutex
	pendingSeek *float64 // nil == none

	codec    *astiav.CodecContext
	timeBase media.Rational
	params   media.MediaParameters
	paramsMu sync.RWMutex

	startOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}

	durationMs int64
}

// New constructs a Decoder. Start must be called to spawn its worker.
func New(cfg Config) *Decoder {
	if cfg.EventSink == nil {
		cfg.EventSink = event.Nop
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Decoder{
		cfg:    cfg,
		clock:  clock.New(),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Clock exposes the decoder's published Clock (read-only use expected).
func (d *Decoder) Clock() *clock.Clock { return d.clock }

// State reports the current playback state.
func (d *Decoder) State() State { return d.state.load() }

// MediaParams returns the parameters published after a successful init.
func (d *Decoder) MediaParams() media.MediaParameters {
	d.paramsMu.RLock()
	defer d.paramsMu.RUnlock()
	return d.params
}

// DurationMs returns the stream duration, 0 before init completes.
func (d *Decoder) DurationMs() int64 { return d.durationMs }

// PositionMs returns the decoder's current estimated playback position.
func (d *Decoder) PositionMs() int64 { return d.clock.Get() }

// Start transitions Unknown -> Playing and spawns the worker. Idempotent.
func (d *Decoder) Start() {
	d.startOnce.Do(func() {
		d.state.store(StatePlaying)
		go d.run()
	})
}

// Pause flips Playing -> Paused. No-op otherwise.
func (d *Decoder) Pause() {
	d.state.cas(StatePlaying, StatePaused)
}

// Resume flips Paused -> Playing. No-op otherwise.
func (d *Decoder) Resume() {
	d.state.cas(StatePaused, StatePlaying)
}

// Stop transitions to Stopped and waits (bounded by the worker's poll
// interval) for the worker to exit.
func (d *Decoder) Stop() {
	if d.state.load() == StateStopped {
		<-d.doneCh
		return
	}
	d.state.store(StateStopped)
	close(d.stopCh)
	<-d.doneCh
}

// Seek stores a pending seek request and returns immediately; the worker
// consumes it on its next loop iteration (spec.md §4.3 step 4).
func (d *Decoder) Seek(position float64) {
	if position < 0 {
		position = 0
	}
	if position > 1 {
		position = 1
	}
	d.seekMu.Lock()
	d.pendingSeek = &position
	d.seekMu.Unlock()
}

func (d *Decoder) takePendingSeek() (float64, bool) {
	d.seekMu.Lock()
	defer d.seekMu.Unlock()
	if d.pendingSeek == nil {
		return 0, false
	}
	pos := *d.pendingSeek
	return pos, true
}

func (d *Decoder) clearPendingSeek() {
	d.seekMu.Lock()
	d.pendingSeek = nil
	d.seekMu.Unlock()
}

func (d *Decoder) emit(t event.Type, code float32) { d.cfg.EventSink.Emit(t, code) }

func (d *Decoder) run() {
	defer close(d.doneCh)

	codec, tb, params, err := d.cfg.Init()
	if err != nil {
		d.cfg.Logger.Printf("decoder init failed: %v", err)
		d.emit(event.DecoderInitError, 0)
		return
	}
	d.codec = codec
	d.timeBase = tb
	d.paramsMu.Lock()
	d.params = params
	d.paramsMu.Unlock()
	d.durationMs = params.DurationMs
	d.emit(event.DecoderReady, 0)

	frame := astiav.AllocFrame()
	defer frame.Free()

	defer d.teardown()

	for {
		select {
		case <-d.stopCh:
			return
		default:
		}

		// Idle check (spec.md §4.3 step 2): wait out a pause, but a
		// pending seek (e.g. S4: seeking after end-of-stream, which
		// leaves the decoder Paused) must still break out and be
		// processed below rather than being starved by the pause.
		if d.state.load() == StatePaused {
			if _, seeking := d.takePendingSeek(); !seeking {
				d.idleWait()
				continue
			}
		}

		if d.state.load() == StateStopped {
			return
		}

		if pos, ok := d.takePendingSeek(); ok {
			d.doSeek(pos)
			continue
		}

		pkt, ok := d.cfg.Feed.FetchPacket()
		if !ok {
			// end of stream: Paused, not Stopped, so the host may seek
			// backward (spec.md §4.3 step 5, §7, §9).
			d.state.cas(StatePlaying, StatePaused)
			continue
		}

		d.submitAndDrain(pkt, frame)
		pkt.Release()
	}
}

// idleWait blocks for at most idlePollInterval, nudging wall_base forward
// so the clock doesn't drift across the pause (spec.md §4.3 step 2).
func (d *Decoder) idleWait() {
	select {
	case <-d.stopCh:
	case <-time.After(idlePollInterval):
		d.clock.AdjustWallBase(idlePollInterval.Milliseconds())
	}
}

func (d *Decoder) doSeek(position float64) {
	if err := d.cfg.Feed.Seek(position); err != nil {
		// seek failure: clear pending_seek, do not flush, continue
		// (spec.md §7).
		d.cfg.Logger.Printf("seek to %.3f failed: %v", position, err)
		d.clearPendingSeek()
		return
	}
	if d.codec != nil {
		d.codec.FlushBuffers()
	}
	if d.cfg.ClearCache != nil {
		d.cfg.ClearCache()
	}
	d.clock.ResetWallBase(clock.NowMs())
	d.clearPendingSeek()

	// S4: a seek that lands while the decoder is Paused from a prior
	// end-of-stream must resume playback without a separate Resume()
	// call; a seek issued by a genuinely user-paused player does the
	// same, which matches ordinary player UX (seeking implies intent to
	// keep watching from the new position).
	d.state.cas(StatePaused, StatePlaying)
}

func (d *Decoder) submitAndDrain(pkt *media.Packet, frame *astiav.Frame) {
	av := pkt.AV()
	if av == nil {
		return // synthetic packet, nothing to feed a real codec
	}
	err := d.codec.SendPacket(av)
	if err != nil && !errors.Is(err, astiav.ErrEagain) {
		// transient decode error: log and continue (spec.md §7)
		d.cfg.Logger.Printf("SendPacket: %v", err)
		return
	}

	for {
		err := d.codec.ReceiveFrame(frame)
		if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
			break
		}
		if err != nil {
			d.cfg.Logger.Printf("ReceiveFrame: %v", err)
			break
		}

		d.handleFrame(frame)
		frame.Unref()
	}
}

func (d *Decoder) handleFrame(frame *astiav.Frame) {
	ptsMs := d.timeBase.Millis(frame.Pts())
	// a negative pts or unusable time base yields ptsMs 0; such a frame is
	// still rendered but does not move the clock back (spec.md §4.3).
	if frame.Pts() >= 0 && d.timeBase.Num > 0 && d.timeBase.Den > 0 {
		d.clock.Set(ptsMs, clock.NowMs())
	}

	if d.cfg.Sync != nil {
		delay := d.cfg.Sync(time.Now())
		if delay > 0 {
			if delay > 200*time.Millisecond {
				delay = 200 * time.Millisecond // spec.md §5 sleep upper bound
			}
			time.Sleep(delay)
		}
	}

	// a pending seek may have been set while we were draining this
	// packet's frames; spec.md §4.3 step 6 says suppress DecodingTime in
	// that case, the frame itself is still delivered.
	_, seekPending := d.takePendingSeek()

	if err := d.cfg.Render(frame, ptsMs); err != nil {
		d.cfg.Logger.Printf("render: %v", err)
		return
	}
	if d.cfg.Kind == media.StreamVideo {
		// one per rendered video frame, matching
		// original_source/.../VideoDecoder.cpp's per-frame RequestRender.
		d.emit(event.RequestRender, 0)
	}
	if !seekPending {
		d.emit(event.DecodingTime, float32(ptsMs))
	}
}

func (d *Decoder) teardown() {
	if d.cfg.ClearCache != nil {
		d.cfg.ClearCache()
	}
	if err := d.cfg.Feed.Close(); err != nil {
		d.cfg.Logger.Printf("feed close: %v", err)
	}
	if d.codec != nil {
		d.codec.Free()
		d.codec = nil
	}
	d.emit(event.DecoderDone, 0)
}
