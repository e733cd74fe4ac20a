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

// Package mediapipe is the public capability surface spec.md §6
// describes: a host program opens a [Player] against a media URL, wires
// a [VideoSink]/[AudioSink]/[EventSink], and drives it through
// init/play/pause/stop/seek exactly once each way. Everything under
// internal/mediapipe is the engine; this package only re-exports the
// types a host actually needs and adapts them to the Player shape.
//
// Grounded on erparts/go-avebi's player.go for the "one small public
// type wrapping an internal controller interface" shape (its
// videoController abstraction is this package's Player interface), with
// method names and semantics taken from spec.md §6 rather than
// go-avebi's (go-avebi has no get_param/set_param/event-callback
// surface; it's an Ebitengine game-engine integration, not a library
// boundary).
package mediapipe

import (
	"errors"
	"log"

	"github.com/e1z0/mediapipe/internal/mediapipe/decoder"
	"github.com/e1z0/mediapipe/internal/mediapipe/event"
	"github.com/e1z0/mediapipe/internal/mediapipe/media"
	"github.com/e1z0/mediapipe/internal/mediapipe/player"
	"github.com/e1z0/mediapipe/internal/mediapipe/recorder"
	"github.com/e1z0/mediapipe/internal/mediapipe/sink"
)

// Re-exported capability types (spec.md §6): hosts implement these
// against the internal media/event/sink definitions without importing
// internal packages directly.
type (
	VideoSink   = sink.VideoSink
	AudioSink   = sink.AudioSink
	VideoKind   = sink.VideoKind
	EventSink   = event.Sink
	EventType   = event.Type
	NativeImage = media.NativeImage
	PixelFormat = media.PixelFormat
	Frame       = media.Frame
	Parameters  = media.MediaParameters
	State       = decoder.State
)

const (
	StateUnknown = decoder.StateUnknown
	StatePlaying = decoder.StatePlaying
	StatePaused  = decoder.StatePaused
	StateStopped = decoder.StateStopped
)

const (
	VideoDirectSurface = sink.VideoKindDirectSurface
	VideoAccelerated   = sink.VideoKindAccelerated
)

// Func adapts a plain function to EventSink.
type Func = event.Func

const (
	EventDecoderInitError = event.DecoderInitError
	EventDecoderReady     = event.DecoderReady
	EventDecoderDone      = event.DecoderDone
	EventRequestRender    = event.RequestRender
	EventDecodingTime     = event.DecodingTime
)

// Kind selects between the two player shapes spec.md §4.6/§4.7 define.
type Kind int

const (
	// Software gives each stream its own demuxing container (C6):
	// simplest, no cross-stream synchronization.
	Software Kind = iota
	// Hardware shares one demux worker across both streams and
	// synchronizes video to the audio master clock via AVSync (C7).
	Hardware
)

// ErrNotInitialized is returned by Player methods called before Init.
var ErrNotInitialized = errors.New("mediapipe: player not initialized")

// ErrUnknownParam is returned by GetParam/SetParam for an unrecognized kind.
var ErrUnknownParam = errors.New("mediapipe: unknown param kind")

// ParamKind selects a parameter for Player.GetParam/SetParam, the fixed
// kind values spec.md §6 names.
type ParamKind int

const (
	// ParamVideoWidth reads the decoded video stream's width in pixels.
	ParamVideoWidth ParamKind = 1
	// ParamVideoHeight reads the decoded video stream's height in pixels.
	ParamVideoHeight ParamKind = 2
	// ParamVideoDuration reads the source's total duration in milliseconds.
	ParamVideoDuration ParamKind = 3
	// ParamAssetManager is write-only via SetParam: it stores an opaque
	// host-owned asset handle (e.g. an Android AssetManager) on the Player.
	// Neither player backend reads it, so it does not affect how a source
	// is opened; the Player keeps the value until a later SetParam replaces
	// it. The value itself must not outlive the host-supplied asset scope
	// it came from (spec.md §9).
	ParamAssetManager ParamKind = 0x20
)

// Config wires a Player to its source and sinks.
type Config struct {
	Kind      Kind
	URL       string
	HwAccel   string // only meaningful for Kind == Hardware
	VideoSink VideoSink
	AudioSink AudioSink // optional
	EventSink EventSink // optional
	Logger    *log.Logger
}

// backend is the common shape both player.SoftwarePlayer and
// player.HardwarePlayer satisfy; Player forwards to whichever one Config
// selected.
type backend interface {
	Init() error
	Play()
	Pause()
	Resume()
	Seek(position float64)
	Stop()
	PositionMs() int64
	DurationMs() int64
	State() decoder.State
	Parameters() media.MediaParameters
}

// Player is the host-facing control surface spec.md §6 names:
// init/play/pause/stop/seek, plus param getters and an event callback.
type Player struct {
	cfg Config
	be  backend

	initDone     bool
	assetManager any
}

// NewPlayer constructs a Player. Call Init before Play.
func NewPlayer(cfg Config) *Player {
	return &Player{cfg: cfg}
}

// Init opens the source and prepares both sinks. Must be called exactly
// once before Play/Pause/Resume/Seek/Stop.
func (p *Player) Init() error {
	switch p.cfg.Kind {
	case Hardware:
		p.be = player.NewHardwarePlayer(player.HardwarePlayerConfig{
			URL:       p.cfg.URL,
			HwAccel:   p.cfg.HwAccel,
			VideoSink: p.cfg.VideoSink,
			AudioSink: p.cfg.AudioSink,
			EventSink: p.cfg.EventSink,
			Logger:    p.cfg.Logger,
		})
	default:
		p.be = player.NewSoftwarePlayer(player.SoftwarePlayerConfig{
			URL:       p.cfg.URL,
			VideoSink: p.cfg.VideoSink,
			AudioSink: p.cfg.AudioSink,
			EventSink: p.cfg.EventSink,
			Logger:    p.cfg.Logger,
		})
	}
	if err := p.be.Init(); err != nil {
		return err
	}
	p.initDone = true
	return nil
}

// Play starts playback. No-op before Init.
func (p *Player) Play() error {
	if !p.initDone {
		return ErrNotInitialized
	}
	p.be.Play()
	return nil
}

// Pause pauses playback.
func (p *Player) Pause() error {
	if !p.initDone {
		return ErrNotInitialized
	}
	p.be.Pause()
	return nil
}

// Resume resumes a paused player.
func (p *Player) Resume() error {
	if !p.initDone {
		return ErrNotInitialized
	}
	p.be.Resume()
	return nil
}

// Seek moves playback to position, a [0,1] fraction of total duration.
func (p *Player) Seek(position float64) error {
	if !p.initDone {
		return ErrNotInitialized
	}
	p.be.Seek(position)
	return nil
}

// Stop halts playback and releases the player's resources. Uninit in
// spec.md §6's terms; this package has no separate Uninit call since Go
// has no destructor to race against.
func (p *Player) Stop() error {
	if !p.initDone {
		return ErrNotInitialized
	}
	p.be.Stop()
	return nil
}

// GetPositionMs returns the current estimated playback position.
func (p *Player) GetPositionMs() (int64, error) {
	if !p.initDone {
		return 0, ErrNotInitialized
	}
	return p.be.PositionMs(), nil
}

// GetDurationMs returns the source's total duration.
func (p *Player) GetDurationMs() (int64, error) {
	if !p.initDone {
		return 0, ErrNotInitialized
	}
	return p.be.DurationMs(), nil
}

// State reports the underlying decoder state machine's current state.
func (p *Player) State() decoder.State {
	if !p.initDone {
		return decoder.StateUnknown
	}
	return p.be.State()
}

// GetParam reads a scalar parameter published by the decoder (spec.md §6).
// ParamAssetManager is write-only; GetParam returns ErrUnknownParam for it.
func (p *Player) GetParam(kind ParamKind) (int64, error) {
	if !p.initDone {
		return 0, ErrNotInitialized
	}
	params := p.be.Parameters()
	switch kind {
	case ParamVideoWidth:
		return int64(params.VideoWidth), nil
	case ParamVideoHeight:
		return int64(params.VideoHeight), nil
	case ParamVideoDuration:
		return p.be.DurationMs(), nil
	default:
		return 0, ErrUnknownParam
	}
}

// SetParam stores an opaque value against kind. Only ParamAssetManager is
// accepted, before or after Init; neither SoftwarePlayer nor
// HardwarePlayer reads the stored value, so it has no effect on playback.
func (p *Player) SetParam(kind ParamKind, opaque any) error {
	switch kind {
	case ParamAssetManager:
		p.assetManager = opaque
		return nil
	default:
		return ErrUnknownParam
	}
}

// Recorder re-exports the camera+mic capture capability (spec.md §4.8).
type Recorder = recorder.Recorder

// RecorderConfig re-exports recorder.Config.
type RecorderConfig = recorder.Config

// NewRecorder constructs a Recorder; Start/Stop manage its lifecycle.
func NewRecorder(cfg RecorderConfig) *Recorder { return recorder.New(cfg) }
