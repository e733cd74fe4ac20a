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

// Package media defines the data types that flow through the pipeline:
// compressed Packets between demux and decode, raw Frames between decode
// and a sink, and the small value types (Rational, MediaParameters,
// NativeImage) shared across packages so none of them need to import
// astiav directly except where they touch it.
package media

import "github.com/asticode/go-astiav"

// Rational is a time_base: multiply ticks by Num/Den to get seconds.
type Rational struct {
	Num int
	Den int
}

// Seconds converts a tick count expressed in this time base to seconds.
func (r Rational) Seconds(ticks int64) float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(ticks) * float64(r.Num) / float64(r.Den)
}

// Millis converts a tick count to milliseconds, per spec.md's
// pts_ms = ticks * time_base * 1000. Non-positive time bases or pts
// give 0; Decoder does not feed a negative pts or unusable time base to
// its Clock, so such a frame does not regress it.
func (r Rational) Millis(ticks int64) int64 {
	if r.Den <= 0 || r.Num <= 0 || ticks <= 0 {
		return 0
	}
	return int64(r.Seconds(ticks) * 1000)
}

// StreamKind tags a stream/packet/frame as carrying video or audio.
type StreamKind int

const (
	StreamVideo StreamKind = iota
	StreamAudio
)

// PixelFormat is the fixed set of formats the NativeImage contract (spec.md
// §6) exchanges between camera/filter producers and recorder/sink
// consumers.
type PixelFormat int

const (
	PixelFormatRGBA PixelFormat = iota
	PixelFormatNV21
	PixelFormatNV12
	PixelFormatI420
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatRGBA:
		return "RGBA"
	case PixelFormatNV21:
		return "NV21"
	case PixelFormatNV12:
		return "NV12"
	case PixelFormatI420:
		return "I420"
	default:
		return "Unknown"
	}
}

// SampleFormat identifies the PCM encoding of an AudioPayload's planes.
type SampleFormat int

const (
	SampleFormatS16 SampleFormat = iota
	SampleFormatFLTP
)

// VideoPayload carries a decoded/converted video frame's pixel data.
// RGBA is one packed plane; NV12/NV21 have two (Y, interleaved UV) and
// I420 three. convert.VideoScaler delivers all of a frame's planes back
// to back in Planes[0] (no row padding), with LineSizes[0] holding the
// first plane's stride.
type VideoPayload struct {
	Format    PixelFormat
	Width     int
	Height    int
	Planes    [][]byte
	LineSizes []int
}

// AudioPayload carries a decoded/converted audio frame's PCM data.
type AudioPayload struct {
	Format        SampleFormat
	ChannelLayout string
	Channels      int
	SampleRate    int
	SampleCount   int
	Planes        [][]byte
}

// Frame is a raw decoded unit: a pts in milliseconds plus exactly one of
// Video or Audio. Ownership: transiently held by the decoding worker, then
// by the sink it is handed to.
type Frame struct {
	PTSMs     int64
	StreamTag int
	Kind      StreamKind
	Video     *VideoPayload
	Audio     *AudioPayload
}

// MediaParameters is the read-only view published once decoder init
// completes (spec.md §3).
type MediaParameters struct {
	VideoWidth    int
	VideoHeight   int
	DurationMs    int64
	ChannelLayout string
	SampleRate    int
}

// NativeImage is the exchange contract between filter/camera producers and
// recorder/sink consumers (spec.md §6): up to 3 planes, format-dependent.
type NativeImage struct {
	Format    PixelFormat
	Width     int
	Height    int
	Planes    [3][]byte
	LineSizes [3]int
}

// Packet is an opaque compressed unit (spec.md §3): a stream tag, pts and
// duration in stream ticks, a key-frame flag, and (for the real pipeline)
// a refcounted astiav.Packet so the queue it sits in can move it between
// the demux goroutine and a decode goroutine without copying payload
// bytes. pts/duration/keyFrame are snapshotted at construction time so
// PacketQueue's bookkeeping never has to call back into cgo.
type Packet struct {
	StreamTag int
	TimeBase  Rational
	KeyFrame  bool

	pts      int64
	duration int64
	raw      *astiav.Packet
	release  func()
}

// WrapPacket clones src (via Ref) into a new Packet the caller owns. src
// itself is left untouched and may be reused/unreffed by its own owner
// immediately after this call returns.
func WrapPacket(src *astiav.Packet, streamTag int, tb Rational) (*Packet, error) {
	clone := astiav.AllocPacket()
	if err := clone.Ref(src); err != nil {
		clone.Free()
		return nil, err
	}
	p := &Packet{
		StreamTag: streamTag,
		TimeBase:  tb,
		KeyFrame:  src.Flags()&astiav.PacketFlagKey != 0,
		pts:       clone.Pts(),
		duration:  clone.Duration(),
		raw:       clone,
	}
	p.release = func() {
		clone.Unref()
		clone.Free()
	}
	return p, nil
}

// NewSyntheticPacket builds a Packet not backed by any astiav object, for
// tests that exercise PacketQueue/Decoder bookkeeping without a real
// codec. onRelease, if non-nil, runs once when Release is called.
func NewSyntheticPacket(streamTag int, tb Rational, pts, duration int64, keyFrame bool, onRelease func()) *Packet {
	return &Packet{
		StreamTag: streamTag,
		TimeBase:  tb,
		KeyFrame:  keyFrame,
		pts:       pts,
		duration:  duration,
		release:   onRelease,
	}
}

// PTS returns the packet's presentation timestamp in stream ticks.
func (p *Packet) PTS() int64 { return p.pts }

// Duration returns the packet's duration in stream ticks.
func (p *Packet) Duration() int64 { return p.duration }

// AV exposes the underlying astiav packet for the decode worker to feed to
// a codec context. Returns nil for synthetic test packets. Callers must
// not Free/Unref it directly; use Release.
func (p *Packet) AV() *astiav.Packet { return p.raw }

// Release returns the underlying astiav packet's buffer, if any. Safe to
// call more than once.
func (p *Packet) Release() {
	if p.release == nil {
		return
	}
	p.release()
	p.release = nil
	p.raw = nil
}
