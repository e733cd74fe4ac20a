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

// Package convert wraps astiav's SoftwareScaleContext and
// SoftwareResampleContext behind the Resampler/Scaler adapter contract of
// spec.md §4.1 (C3). VideoScaler lazily (re)configures itself when the
// source size or pixel format changes, exactly as the teacher's bgraScaler
// does in video.go (CreateSoftwareScaleContext/ScaleFrame/
// ImageCopyToBuffer), but generalized from "always convert to BGRA" to
// whatever target pixel format a VideoSink requests. AudioResampler
// allocates its resample context once, on first use, and does not
// rebuild it when the source format changes.
package convert

import (
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/e1z0/mediapipe/internal/mediapipe/media"
)

func toAstiavPixelFormat(f media.PixelFormat) astiav.PixelFormat {
	switch f {
	case media.PixelFormatRGBA:
		return astiav.PixelFormatRgba
	case media.PixelFormatNV12:
		return astiav.PixelFormatNv12
	case media.PixelFormatNV21:
		return astiav.PixelFormatNv21
	case media.PixelFormatI420:
		return astiav.PixelFormatYuv420P
	default:
		return astiav.PixelFormatRgba
	}
}

// VideoScaler converts decoded video frames into the pixel format and
// size a VideoSink requested at init time.
type VideoScaler struct {
	dstFormat media.PixelFormat
	dstW      int
	dstH      int

	ctx    *astiav.SoftwareScaleContext
	dst    *astiav.Frame
	srcW   int
	srcH   int
	srcFmt astiav.PixelFormat
}

// NewVideoScaler builds a scaler targeting dstFormat at dstW x dstH. Pass
// dstW/dstH <= 0 to keep the source size (common for render-kind sinks
// that only need a pixel format conversion).
func NewVideoScaler(dstFormat media.PixelFormat, dstW, dstH int) *VideoScaler {
	return &VideoScaler{dstFormat: dstFormat, dstW: dstW, dstH: dstH}
}

// Close releases the underlying scale context and destination frame.
func (s *VideoScaler) Close() {
	if s.dst != nil {
		s.dst.Free()
		s.dst = nil
	}
	if s.ctx != nil {
		s.ctx.Free()
		s.ctx = nil
	}
}

func (s *VideoScaler) ensure(src *astiav.Frame) error {
	sw, sh := src.Width(), src.Height()
	sp := src.PixelFormat()
	if s.ctx != nil && sw == s.srcW && sh == s.srcH && sp == s.srcFmt {
		return nil
	}
	s.Close()

	dw, dh := s.dstW, s.dstH
	if dw <= 0 || dh <= 0 {
		dw, dh = sw, sh
	}

	dstPix := toAstiavPixelFormat(s.dstFormat)
	ctx, err := astiav.CreateSoftwareScaleContext(
		sw, sh, sp,
		dw, dh, dstPix,
		astiav.NewSoftwareScaleContextFlags(),
	)
	if err != nil {
		return fmt.Errorf("convert: CreateSoftwareScaleContext(%dx%d %s -> %dx%d %s): %w",
			sw, sh, sp, dw, dh, dstPix, err)
	}

	dst := astiav.AllocFrame()
	dst.SetWidth(dw)
	dst.SetHeight(dh)
	dst.SetPixelFormat(dstPix)
	if err := dst.AllocBuffer(1); err != nil {
		dst.Free()
		ctx.Free()
		return fmt.Errorf("convert: dst.AllocBuffer: %w", err)
	}

	s.ctx, s.dst = ctx, dst
	s.srcW, s.srcH, s.srcFmt = sw, sh, sp
	s.dstW, s.dstH = dw, dh
	return nil
}

// Convert scales/converts src into a fresh media.VideoPayload the caller
// owns outright (the returned byte slices are copies, safe to hand to a
// sink that outlives this call).
func (s *VideoScaler) Convert(src *astiav.Frame) (*media.VideoPayload, error) {
	if err := s.ensure(src); err != nil {
		return nil, err
	}
	if err := s.ctx.ScaleFrame(src, s.dst); err != nil {
		return nil, fmt.Errorf("convert: ScaleFrame: %w", err)
	}

	n, err := s.dst.ImageBufferSize(1)
	if err != nil {
		return nil, fmt.Errorf("convert: ImageBufferSize: %w", err)
	}
	buf := make([]byte, n)
	if _, err := s.dst.ImageCopyToBuffer(buf, 1); err != nil {
		return nil, fmt.Errorf("convert: ImageCopyToBuffer: %w", err)
	}

	return &media.VideoPayload{
		Format:    s.dstFormat,
		Width:     s.dstW,
		Height:    s.dstH,
		Planes:    [][]byte{buf},
		LineSizes: []int{lineSizeFor(s.dstFormat, s.dstW)},
	}, nil
}

func lineSizeFor(f media.PixelFormat, width int) int {
	switch f {
	case media.PixelFormatRGBA:
		return width * 4
	default:
		return width
	}
}
