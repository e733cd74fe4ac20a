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

// Package player implements the two player shapes spec.md §4.6/§4.7
// describe: SoftwarePlayer (C6, one demuxing container per stream) and
// HardwarePlayer (C7, one shared container feeding two decode workers
// through PacketQueues). Grounded on the teacher's openAndDecode in
// video.go for container/codec setup, generalized from "decode inline"
// into the Decoder/Feed worker shape the rest of this module uses.
package player

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/e1z0/mediapipe/internal/mediapipe/media"
)

// openedStream bundles what openContainer resolves for one stream so
// callers can build a codec context and a Feed around it.
type openedStream struct {
	Index    int
	TimeBase media.Rational
	Params   *astiav.CodecParameters
}

// containerHandle wraps an open FormatContext plus its resolved video/
// audio stream indices, mirroring the teacher's vIdx/aIdx auto-selection
// in openAndDecode (video.go).
type containerHandle struct {
	FC         *astiav.FormatContext
	Video      *openedStream
	Audio      *openedStream // nil if the source has no audio stream
	DurationUs int64
}

// openContainer opens url, probes it, and auto-selects the first video
// and (optionally) first audio stream, following the teacher's
// selection loop in openAndDecode.
func openContainer(url string, opts *astiav.Dictionary) (*containerHandle, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, errors.New("player: AllocFormatContext failed")
	}

	if err := fc.OpenInput(url, nil, opts); err != nil {
		fc.Free()
		return nil, fmt.Errorf("player: OpenInput(%s): %w", url, err)
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		fc.Free()
		return nil, fmt.Errorf("player: FindStreamInfo: %w", err)
	}

	h := &containerHandle{FC: fc, DurationUs: fc.Duration()}

	for i, s := range fc.Streams() {
		switch s.CodecParameters().MediaType() {
		case astiav.MediaTypeVideo:
			if h.Video == nil {
				tb := s.TimeBase()
				h.Video = &openedStream{Index: i, TimeBase: media.Rational{Num: tb.Num(), Den: tb.Den()}, Params: s.CodecParameters()}
			}
		case astiav.MediaTypeAudio:
			if h.Audio == nil {
				tb := s.TimeBase()
				h.Audio = &openedStream{Index: i, TimeBase: media.Rational{Num: tb.Num(), Den: tb.Den()}, Params: s.CodecParameters()}
			}
		}
	}

	if h.Video == nil {
		fc.Free()
		return nil, errors.New("player: no video stream")
	}
	return h, nil
}

func (h *containerHandle) Close() {
	if h.FC != nil {
		h.FC.CloseInput()
		h.FC.Free()
		h.FC = nil
	}
}

// openCodec opens a decoder for the given stream's parameters, matching
// the teacher's vctx/aCtx setup (FindDecoder/AllocCodecContext/
// ToCodecContext/Open). hwaccel mirrors the teacher's cfg.HwAccel
// dictionary hint (video.go's vopts.Set("hwaccel", ...)); pass "" for
// software-only decode.
func openCodec(s *openedStream, hwaccel string) (*astiav.CodecContext, error) {
	dec := astiav.FindDecoder(s.Params.CodecID())
	if dec == nil {
		return nil, fmt.Errorf("player: FindDecoder(%s): not found", s.Params.CodecID())
	}
	ctx := astiav.AllocCodecContext(dec)
	if ctx == nil {
		return nil, errors.New("player: AllocCodecContext failed")
	}
	if err := s.Params.ToCodecContext(ctx); err != nil {
		ctx.Free()
		return nil, fmt.Errorf("player: ToCodecContext: %w", err)
	}

	opts := astiav.NewDictionary()
	defer opts.Free()
	if hwaccel != "" {
		_ = opts.Set("hwaccel", hwaccel, 0)
	}

	if err := ctx.Open(dec, opts); err != nil {
		ctx.Free()
		return nil, fmt.Errorf("player: codec Open: %w", err)
	}
	return ctx, nil
}
