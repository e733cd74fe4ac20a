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

// Package avsync implements the A/V Synchronizer (spec.md §4.5, C5): the
// delay to wait before presenting a decoded video frame so that video
// tracks the audio master clock. Grounded on
// original_source/app/src/main/cpp/player/HWCodecPlayer.cpp's AVSync,
// which this package's Delay reproduces branch-for-branch in idiomatic Go.
package avsync

import (
	"time"

	"github.com/e1z0/mediapipe/internal/mediapipe/clock"
)

const (
	// VideoFrameMaxDelay is the largest raw pts delta accepted as a frame
	// delay; a larger (or non-positive) delta is replaced by the nominal
	// frame period (spec.md §4.5).
	VideoFrameMaxDelay = 250 * time.Millisecond
	// SyncMin/SyncMax clamp the diff threshold used to decide whether
	// video is late, on time, or early relative to the audio master.
	SyncMin = 40 * time.Millisecond
	SyncMax = 100 * time.Millisecond
)

// Synchronizer holds read-only references to the video and audio clocks
// it aligns. It owns no mutable pipeline state beyond that.
type Synchronizer struct {
	Video *clock.Clock
	Audio *clock.Clock

	// FPSNum/FPSDen give the nominal frame rate used to compute
	// tick_frame = 1000 * fps_den / fps_num when the observed delay is
	// unusable.
	FPSNum int
	FPSDen int
}

// New builds a Synchronizer over the given clocks and nominal frame rate.
func New(video, audio *clock.Clock, fpsNum, fpsDen int) *Synchronizer {
	return &Synchronizer{Video: video, Audio: audio, FPSNum: fpsNum, FPSDen: fpsDen}
}

// Delay computes the presentation delay for the next video frame per
// spec.md §4.5, given the current wall time. Its only side effect is
// updating the video clock's frame_timer; last_pts is left as it is and
// advances on the decoder's next clock.Set.
func (s *Synchronizer) Delay(now time.Time) time.Duration {
	return Delay(s.Video, s.Audio, s.FPSNum, s.FPSDen, now)
}

// Delay is the pure-function form of the algorithm, independent of a
// Synchronizer instance, so it can be unit tested against synthetic
// clocks without constructing a whole pipeline.
func Delay(video, audio *clock.Clock, fpsNum, fpsDen int, now time.Time) time.Duration {
	nowMs := now.UnixMilli()

	tickFrame := tickFrameMs(fpsNum, fpsDen)

	delay := time.Duration(video.CurPtsMs()-video.LastPtsMs()) * time.Millisecond
	if delay <= 0 || delay > VideoFrameMaxDelay {
		delay = tickFrame
	}

	ref := audio.Get()
	diff := time.Duration(video.LastPtsMs()-ref) * time.Millisecond

	threshold := clampDuration(delay, SyncMin, SyncMax)

	switch {
	case diff <= -threshold:
		// video late: shrink, never go negative
		delay = delay + diff
		if delay < 0 {
			delay = 0
		}
	case diff >= threshold && delay > SyncMax:
		// video very early: expand
		delay = delay + diff
	case diff >= threshold:
		// video mildly early: double
		delay = 2 * delay
	}

	observed := time.Duration(nowMs-video.FrameTimerMs()) * time.Millisecond
	video.SetFrameTimerMs(nowMs)

	if observed-tickFrame > 5*time.Millisecond {
		delay -= 5 * time.Millisecond
	} else if observed-tickFrame < -5*time.Millisecond {
		delay += 5 * time.Millisecond
	}

	// last_pts "advances to" cur_pts for the next call as a natural
	// consequence of the decoder's own clock.Set on the next frame; the
	// Synchronizer holds only read-only references (spec.md §3) and does
	// not otherwise mutate pts state, only frame_timer above.
	return delay
}

func tickFrameMs(fpsNum, fpsDen int) time.Duration {
	if fpsNum <= 0 || fpsDen <= 0 {
		return time.Duration(0)
	}
	return time.Duration(1000*fpsDen/fpsNum) * time.Millisecond
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
