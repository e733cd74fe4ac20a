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

package convert

import (
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/e1z0/mediapipe/internal/mediapipe/media"
)

// AudioResampler converts decoded audio frames to the sample rate,
// channel layout and sample format an AudioSink requires. Grounded on the
// teacher's recorder-side resampler (video.go's w.aSwr,
// AllocSoftwareResampleContext + ConvertFrame), generalized from "convert
// to the AAC encoder's format" to an arbitrary PCM target — by default the
// fixed 44.1kHz/stereo/S16-interleaved contract AudioSink requires
// (spec.md §6).
type AudioResampler struct {
	dstSampleRate int
	dstChannels   int
	dstFormat     astiav.SampleFormat

	ctx *astiav.SoftwareResampleContext
	dst *astiav.Frame
}

// NewAudioResampler builds a resampler targeting dstSampleRate Hz,
// dstChannels channels, 16-bit signed interleaved PCM.
func NewAudioResampler(dstSampleRate, dstChannels int) *AudioResampler {
	return &AudioResampler{
		dstSampleRate: dstSampleRate,
		dstChannels:   dstChannels,
		dstFormat:     astiav.SampleFormatS16,
	}
}

// Close releases the underlying resample context and scratch frame.
func (r *AudioResampler) Close() {
	if r.dst != nil {
		r.dst.Free()
		r.dst = nil
	}
	if r.ctx != nil {
		r.ctx.Free()
		r.ctx = nil
	}
}

func (r *AudioResampler) ensure() error {
	if r.ctx != nil {
		return nil
	}
	ctx := astiav.AllocSoftwareResampleContext()
	if ctx == nil {
		return fmt.Errorf("convert: AllocSoftwareResampleContext failed")
	}
	r.ctx = ctx
	r.dst = astiav.AllocFrame()
	return nil
}

// Convert resamples src into a fresh media.AudioPayload of interleaved
// S16 PCM the caller owns outright.
func (r *AudioResampler) Convert(src *astiav.Frame) (*media.AudioPayload, error) {
	if err := r.ensure(); err != nil {
		return nil, err
	}

	dstChLayout := astiav.ChannelLayoutMono
	if r.dstChannels >= 2 {
		dstChLayout = astiav.ChannelLayoutStereo
	}

	r.dst.Unref()
	r.dst.SetSampleFormat(r.dstFormat)
	r.dst.SetChannelLayout(dstChLayout)
	r.dst.SetSampleRate(r.dstSampleRate)

	if err := r.ctx.ConvertFrame(src, r.dst); err != nil {
		return nil, fmt.Errorf("convert: swr.ConvertFrame: %w", err)
	}

	pcm, err := r.dst.Data().Bytes(0)
	if err != nil {
		return nil, fmt.Errorf("convert: Data().Bytes: %w", err)
	}
	out := append([]byte(nil), pcm...)

	return &media.AudioPayload{
		Format:        media.SampleFormatS16,
		ChannelLayout: dstChLayout.String(),
		Channels:      r.dstChannels,
		SampleRate:    r.dstSampleRate,
		SampleCount:   r.dst.NbSamples(),
		Planes:        [][]byte{out},
	}, nil
}
