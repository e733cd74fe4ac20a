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

// Package demux implements the shared demux worker HardwarePlayer uses
// (spec.md §4.4, C7 support): it reads packets from one container and
// routes them by stream index into a video or audio PacketQueue, applies
// backpressure, and performs the fixed-lock-order seek spec.md §5
// mandates (video queue before audio queue) to avoid the deadlock hazard.
//
// Grounded on video.go's packet-routing switch (si == vIdx / audio
// branch) in the teacher, generalized from "decode inline" to "route into
// two queues for separate decode workers", since the teacher shares one
// container but decodes both streams on the same goroutine.
package demux

import (
	"errors"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/asticode/go-astiav"

	"github.com/e1z0/mediapipe/internal/mediapipe/event"
	"github.com/e1z0/mediapipe/internal/mediapipe/media"
	"github.com/e1z0/mediapipe/internal/mediapipe/packetqueue"
)

// MaxBuffered is the backpressure threshold on the video queue (spec.md
// §4.4).
const MaxBuffered = 500 * time.Millisecond

// backpressurePoll is how long the demux worker sleeps when the video
// queue is over MaxBuffered (spec.md §4.4/§5).
const backpressurePoll = 10 * time.Millisecond

// State mirrors the coarse Playing/Paused/Stopped state the demux worker
// reacts to; HardwarePlayer keeps this in lockstep with its own state.
type State int32

const (
	StatePlaying State = iota
	StatePaused
	StateStopped
)

// Worker reads from one FormatContext and fans packets out to a video and
// an audio PacketQueue.
type Worker struct {
	fc       *astiav.FormatContext
	videoIdx int
	audioIdx int
	videoTB  media.Rational
	audioTB  media.Rational

	VideoQueue *packetqueue.Queue
	AudioQueue *packetqueue.Queue

	durationUs int64

	state     atomic.Int32
	pending   atomic.Pointer[float64]
	stopCh    chan struct{}
	eventSink event.Sink
	logger    *log.Logger
}

// New builds a demux Worker over an already-open FormatContext with its
// video/audio stream indices and time bases already resolved.
func New(fc *astiav.FormatContext, videoIdx, audioIdx int, videoTB, audioTB media.Rational, durationUs int64, videoQ, audioQ *packetqueue.Queue, eventSink event.Sink, logger *log.Logger) *Worker {
	if eventSink == nil {
		eventSink = event.Nop
	}
	if logger == nil {
		logger = log.Default()
	}
	w := &Worker{
		fc:         fc,
		videoIdx:   videoIdx,
		audioIdx:   audioIdx,
		videoTB:    videoTB,
		audioTB:    audioTB,
		VideoQueue: videoQ,
		AudioQueue: audioQ,
		durationUs: durationUs,
		stopCh:     make(chan struct{}),
		eventSink:  eventSink,
		logger:     logger,
	}
	w.state.Store(int32(StatePlaying))
	return w
}

// Run executes the demux loop until Stop is called or the container is
// exhausted. Intended to be run in its own goroutine.
func (w *Worker) Run() {
	defer func() {
		w.VideoQueue.Stop()
		w.AudioQueue.Stop()
	}()

	pkt := astiav.AllocPacket()
	defer pkt.Free()

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		if State(w.state.Load()) == StateStopped {
			return
		}

		if pos := w.pending.Load(); pos != nil {
			w.doSeek(*pos)
			continue
		}

		if State(w.state.Load()) == StatePlaying && w.pending.Load() == nil &&
			w.VideoQueue.BufferedSeconds() > MaxBuffered.Seconds() {
			select {
			case <-w.stopCh:
				return
			case <-time.After(backpressurePoll):
			}
			continue
		}

		if err := w.fc.ReadFrame(pkt); err != nil {
			if errors.Is(err, io.EOF) {
				w.state.Store(int32(StatePaused))
				continue
			}
			w.logger.Printf("demux: ReadFrame: %v", err)
			continue
		}

		switch pkt.StreamIndex() {
		case w.videoIdx:
			w.route(pkt, w.VideoQueue, w.videoTB, 0)
		case w.audioIdx:
			w.route(pkt, w.AudioQueue, w.audioTB, 1)
		default:
			// drop packets of other kinds (subtitles, data streams, ...)
		}
		pkt.Unref()
	}
}

func (w *Worker) route(pkt *astiav.Packet, q *packetqueue.Queue, tb media.Rational, streamTag int) {
	wrapped, err := media.WrapPacket(pkt, streamTag, tb)
	if err != nil {
		w.logger.Printf("demux: WrapPacket: %v", err)
		return
	}
	if !q.Push(wrapped) {
		wrapped.Release()
	}
}

// Stop signals the worker to exit. Run stops both queues on its way out,
// so blocked decode-worker consumers wake up once Run has returned.
func (w *Worker) Stop() {
	w.state.Store(int32(StateStopped))
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
}

// Pause/Resume mirror the player's own state so the backpressure and EOS
// branches behave correctly; they do not touch the queues.
func (w *Worker) Pause()  { w.state.CompareAndSwap(int32(StatePlaying), int32(StatePaused)) }
func (w *Worker) Resume() { w.state.CompareAndSwap(int32(StatePaused), int32(StatePlaying)) }

// Seek stores a pending seek the worker applies on its next loop tick.
func (w *Worker) Seek(position float64) {
	if position < 0 {
		position = 0
	}
	if position > 1 {
		position = 1
	}
	w.pending.Store(&position)
}

// doSeek implements spec.md §4.4's fixed lock order: video queue before
// audio queue, to avoid the deadlock hazard spec.md §5 calls out.
func (w *Worker) doSeek(position float64) {
	targetUs := int64(position * float64(w.durationUs))

	if err := w.fc.SeekFrame(w.videoIdx, targetUs, astiav.NewSeekFlags()); err != nil {
		w.logger.Printf("demux: seek failed: %v", err)
		w.pending.Store(nil)
		return
	}

	w.VideoQueue.Flush()
	w.AudioQueue.Flush()

	w.pending.Store(nil)
	if State(w.state.Load()) == StatePaused {
		w.state.Store(int32(StatePlaying))
	}
}
