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

// Package sink defines the host-provided capability interfaces a Decoder
// writes decoded frames into (spec.md §6): VideoSink, AudioSink, and the
// optional CacheClearer hook supplemented from original_source/'s
// DecoderBase::ClearCache (see SPEC_FULL.md §5).
package sink

import "github.com/e1z0/mediapipe/internal/mediapipe/media"

// VideoKind reports whether a VideoSink needs frames pre-converted to
// RGBA (a direct-surface sink) or accepts planar/semi-planar YUV directly
// (an accelerated sink).
type VideoKind int

const (
	VideoKindDirectSurface VideoKind = iota
	VideoKindAccelerated
)

// VideoSink is the render capability a Decoder's video worker writes
// into.
type VideoSink interface {
	// Init reports the source resolution and returns the resolution the
	// sink actually wants frames delivered at (e.g. a fixed output
	// surface size), so the Decoder's Scaler can target it.
	Init(srcW, srcH int) (dstW, dstH int, err error)
	Render(frame *media.Frame) error
	Uninit() error
	Kind() VideoKind
}

// AudioSink is the render capability a Decoder's audio worker writes
// into, operating on 44.1kHz/stereo/16-bit-signed-interleaved PCM.
type AudioSink interface {
	Init() error
	Render(pcm []byte) error
	ClearCache()
	Uninit() error
}

// CacheClearer is an optional hook a VideoSink/AudioSink may additionally
// implement: the Decoder calls it on flush/seek in addition to flushing
// its own packet queue and codec buffers, so a sink holding
// decoded-but-unrendered state (e.g. a ring buffer) can drop it too.
// Grounded on original_source/.../Decoder.h's virtual ClearCache().
type CacheClearer interface {
	ClearCache()
}
