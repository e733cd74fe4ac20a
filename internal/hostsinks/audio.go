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

// Package hostsinks provides the demo VideoSink/AudioSink implementations
// cmd/playfile and cmd/record wire up: an oto-backed audio sink grounded
// on audio.go's GlobalAudioContext/InitGlobalAudio (io.Pipe feeding an
// oto.Player), and a PPM-frame-dumping video sink for environments
// without a GUI toolkit (spec.md §1 excludes host-surface acquisition
// from this module's scope, so a demo sink has to stand in for one).
package hostsinks

import (
	"fmt"
	"io"

	"github.com/hajimehoshi/oto/v2"

	"github.com/e1z0/mediapipe/internal/mediapipe/sink"
)

// OtoAudioSink plays the fixed 44.1kHz/stereo/S16LE PCM contract
// AudioSink requires (spec.md §6) through a process-wide oto.Context,
// matching the teacher's GlobalAudioContext singleton.
type OtoAudioSink struct {
	ctx *oto.Context

	player oto.Player
	pipeW  *io.PipeWriter
}

// NewOtoAudioSink wraps an already-initialized oto.Context (one per
// process, per the teacher's InitGlobalAudio comment: "Oto v2 mixes
// internally").
func NewOtoAudioSink(ctx *oto.Context) *OtoAudioSink {
	return &OtoAudioSink{ctx: ctx}
}

// Init lazily creates the pipe and player on first use (mirrors the
// teacher's aPlayer == nil || aPipeW == nil check in video.go).
func (s *OtoAudioSink) Init() error {
	if s.player != nil {
		return nil
	}
	pr, pw := io.Pipe()
	p := s.ctx.NewPlayer(pr)
	if p == nil {
		pw.Close()
		return fmt.Errorf("hostsinks: oto NewPlayer failed")
	}
	p.Play()
	s.player = p
	s.pipeW = pw
	return nil
}

// Render writes pcm to the player's pipe, fire-and-forget exactly like
// the teacher's aPipeW.Write call: a backed-up pipe is allowed to apply
// backpressure to the decode worker rather than drop audio.
func (s *OtoAudioSink) Render(pcm []byte) error {
	if s.pipeW == nil {
		if err := s.Init(); err != nil {
			return err
		}
	}
	_, err := s.pipeW.Write(pcm)
	return err
}

// ClearCache is a no-op: oto has no internal buffer this sink can drop
// short of tearing the player down entirely.
func (s *OtoAudioSink) ClearCache() {}

// Uninit closes the pipe and player.
func (s *OtoAudioSink) Uninit() error {
	var err error
	if s.pipeW != nil {
		err = s.pipeW.Close()
		s.pipeW = nil
	}
	if s.player != nil {
		if cerr := s.player.Close(); err == nil {
			err = cerr
		}
		s.player = nil
	}
	return err
}

var _ sink.AudioSink = (*OtoAudioSink)(nil)
