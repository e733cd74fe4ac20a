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

package hostsinks

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/e1z0/mediapipe/internal/mediapipe/media"
	"github.com/e1z0/mediapipe/internal/mediapipe/sink"
)

// PPMDumpVideoSink writes each rendered RGBA frame out as a numbered PPM
// file, standing in for a real windowed surface (spec.md §1 puts
// host-surface acquisition out of scope for this module; cmd/playfile
// needs something to drive end to end). Grounded on the teacher's
// frameBuf (video.go): a small threadsafe struct the render path writes
// into and a separate consumer drains, generalized from "keep only the
// latest frame for a widget to paint" to "number and persist every
// frame".
type PPMDumpVideoSink struct {
	dir   string
	seq   uint64
	dstW  int
	dstH  int
}

// NewPPMDumpVideoSink writes frames under dir, created if missing.
func NewPPMDumpVideoSink(dir string) *PPMDumpVideoSink {
	return &PPMDumpVideoSink{dir: dir}
}

func (s *PPMDumpVideoSink) Init(srcW, srcH int) (int, int, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return 0, 0, fmt.Errorf("hostsinks: MkdirAll(%s): %w", s.dir, err)
	}
	s.dstW, s.dstH = srcW, srcH
	return srcW, srcH, nil
}

func (s *PPMDumpVideoSink) Render(frame *media.Frame) error {
	if frame.Video == nil || frame.Video.Format != media.PixelFormatRGBA {
		return fmt.Errorf("hostsinks: PPMDumpVideoSink only accepts RGBA, got %s", frame.Video.Format)
	}
	n := atomic.AddUint64(&s.seq, 1)
	path := filepath.Join(s.dir, fmt.Sprintf("frame-%08d.ppm", n))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("hostsinks: Create(%s): %w", path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "P6\n%d %d\n255\n", s.dstW, s.dstH); err != nil {
		return err
	}

	plane := frame.Video.Planes[0]
	lineSize := frame.Video.LineSizes[0]
	row := make([]byte, s.dstW*3)
	for y := 0; y < s.dstH; y++ {
		src := plane[y*lineSize : y*lineSize+s.dstW*4]
		for x := 0; x < s.dstW; x++ {
			row[x*3+0] = src[x*4+0]
			row[x*3+1] = src[x*4+1]
			row[x*3+2] = src[x*4+2]
		}
		if _, err := f.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *PPMDumpVideoSink) Uninit() error { return nil }

func (s *PPMDumpVideoSink) Kind() sink.VideoKind { return sink.VideoKindDirectSurface }

var _ sink.VideoSink = (*PPMDumpVideoSink)(nil)
