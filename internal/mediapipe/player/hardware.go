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

package player

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/asticode/go-astiav"

	"github.com/e1z0/mediapipe/internal/mediapipe/avsync"
	"github.com/e1z0/mediapipe/internal/mediapipe/clock"
	"github.com/e1z0/mediapipe/internal/mediapipe/convert"
	"github.com/e1z0/mediapipe/internal/mediapipe/decoder"
	"github.com/e1z0/mediapipe/internal/mediapipe/demux"
	"github.com/e1z0/mediapipe/internal/mediapipe/event"
	"github.com/e1z0/mediapipe/internal/mediapipe/media"
	"github.com/e1z0/mediapipe/internal/mediapipe/packetqueue"
	"github.com/e1z0/mediapipe/internal/mediapipe/sink"
)

// HardwarePlayer is spec.md §4.7's C7 shape: one shared demux.Worker
// feeds a video PacketQueue and an audio PacketQueue, each drained by its
// own Decoder, with the video Decoder's presentation delay driven by an
// avsync.Synchronizer against the audio Decoder's Clock. Grounded on
// original_source/.../HWCodecPlayer.cpp, which is the only example of
// this shared-demux-plus-AVSync shape in the retrieved corpus; the
// teacher's own CamWindow decodes both streams inline with no sync.
type HardwarePlayer struct {
	url       string
	hwaccel   string
	logger    *log.Logger
	eventSink event.Sink

	videoSink sink.VideoSink
	audioSink sink.AudioSink

	handle *containerHandle
	demux  *demux.Worker

	video *decoder.Decoder
	audio *decoder.Decoder
}

// HardwarePlayerConfig wires a HardwarePlayer to its sinks. HwAccel
// mirrors the teacher's cfg.HwAccel dictionary hint forwarded to the
// video decoder's Open call ("" selects plain software decode).
type HardwarePlayerConfig struct {
	URL       string
	HwAccel   string
	VideoSink sink.VideoSink
	AudioSink sink.AudioSink // optional
	EventSink event.Sink
	Logger    *log.Logger
}

// NewHardwarePlayer constructs a HardwarePlayer. Init must be called
// before Start.
func NewHardwarePlayer(cfg HardwarePlayerConfig) *HardwarePlayer {
	if cfg.EventSink == nil {
		cfg.EventSink = event.Nop
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &HardwarePlayer{
		url:       cfg.URL,
		hwaccel:   cfg.HwAccel,
		logger:    cfg.Logger,
		eventSink: cfg.EventSink,
		videoSink: cfg.VideoSink,
		audioSink: cfg.AudioSink,
	}
}

// queueFeed is a decoder.Feed backed by a PacketQueue the shared demux
// worker fills; Seek is delegated to the demux worker, which owns the
// container and therefore the only valid seek target. Close is a no-op:
// the queue and the demux worker outlive any single decode worker.
type queueFeed struct {
	q *packetqueue.Queue
	d *demux.Worker
}

func (f *queueFeed) FetchPacket() (*media.Packet, bool) { return f.q.Pop(true) }
func (f *queueFeed) Seek(position float64) error        { f.d.Seek(position); return nil }
func (f *queueFeed) Close() error                       { return nil }

// Init opens one shared container and constructs the demux worker plus
// both Decoders.
func (p *HardwarePlayer) Init() error {
	if p.videoSink == nil {
		return errors.New("hardware player: VideoSink required")
	}

	h, err := openContainer(p.url, nil)
	if err != nil {
		return fmt.Errorf("hardware player: open container: %w", err)
	}
	p.handle = h

	vCodec, err := openCodec(h.Video, p.hwaccel)
	if err != nil {
		h.Close()
		return fmt.Errorf("hardware player: open video codec: %w", err)
	}

	dstW, dstH, err := p.videoSink.Init(vCodec.Width(), vCodec.Height())
	if err != nil {
		vCodec.Free()
		h.Close()
		return fmt.Errorf("hardware player: VideoSink.Init: %w", err)
	}
	dstFormat := media.PixelFormatRGBA
	if p.videoSink.Kind() == sink.VideoKindAccelerated {
		dstFormat = media.PixelFormatI420
	}
	scaler := convert.NewVideoScaler(dstFormat, dstW, dstH)

	videoQ := packetqueue.New(h.Video.TimeBase)
	videoQ.Start()

	var audioQ *packetqueue.Queue
	var aCodec *astiav.CodecContext
	if h.Audio != nil && p.audioSink != nil {
		audioQ = packetqueue.New(h.Audio.TimeBase)
		audioQ.Start()

		aCodec, err = openCodec(h.Audio, "")
		if err != nil {
			p.logger.Printf("hardware player: open audio codec: %v", err)
			aCodec = nil
			audioQ = nil
		} else if err := p.audioSink.Init(); err != nil {
			p.logger.Printf("hardware player: AudioSink.Init: %v", err)
			aCodec.Free()
			aCodec = nil
			audioQ = nil
		}
	}
	if audioQ == nil {
		// demux still needs a queue to route audio packets into even when
		// no audio decode path is active; drainAndDiscard releases them so
		// they do not pile up.
		audioQ = packetqueue.New(media.Rational{Num: 1, Den: 1})
		audioQ.Start()
		go drainAndDiscard(audioQ)
	}

	audioIdx := -1
	var audioTB media.Rational
	if h.Audio != nil {
		audioIdx = h.Audio.Index
		audioTB = h.Audio.TimeBase
	}
	p.demux = demux.New(h.FC, h.Video.Index, audioIdx, h.Video.TimeBase, audioTB, h.DurationUs, videoQ, audioQ, p.eventSink, p.logger)

	var sync *avsync.Synchronizer
	r := h.FC.Streams()[h.Video.Index].AvgFrameRate()
	fpsNum, fpsDen := r.Num(), r.Den()
	if fpsNum <= 0 || fpsDen <= 0 {
		fpsNum, fpsDen = vCodec.Framerate().Num(), vCodec.Framerate().Den()
	}

	p.video = decoder.New(decoder.Config{
		Kind: media.StreamVideo,
		Feed: &queueFeed{q: videoQ, d: p.demux},
		Init: func() (*astiav.CodecContext, media.Rational, media.MediaParameters, error) {
			return vCodec, h.Video.TimeBase, media.MediaParameters{
				VideoWidth:  vCodec.Width(),
				VideoHeight: vCodec.Height(),
				DurationMs:  durationMsFromUs(h.DurationUs),
			}, nil
		},
		Render: func(frame *astiav.Frame, ptsMs int64) error {
			payload, err := scaler.Convert(frame)
			if err != nil {
				return err
			}
			return p.videoSink.Render(&media.Frame{PTSMs: ptsMs, Kind: media.StreamVideo, Video: payload})
		},
		Sync: func(now time.Time) time.Duration {
			if sync == nil {
				return 0
			}
			return sync.Delay(now)
		},
		EventSink: p.eventSink,
		Logger:    p.logger,
		ClearCache: func() {
			if cc, ok := p.videoSink.(sink.CacheClearer); ok {
				cc.ClearCache()
			}
		},
	})

	if aCodec != nil {
		resampler := convert.NewAudioResampler(44100, 2)
		p.audio = decoder.New(decoder.Config{
			Kind: media.StreamAudio,
			Feed: &queueFeed{q: audioQ, d: p.demux},
			Init: func() (*astiav.CodecContext, media.Rational, media.MediaParameters, error) {
				return aCodec, h.Audio.TimeBase, media.MediaParameters{
					SampleRate:    aCodec.SampleRate(),
					ChannelLayout: aCodec.ChannelLayout().String(),
				}, nil
			},
			Render: func(frame *astiav.Frame, ptsMs int64) error {
				payload, err := resampler.Convert(frame)
				if err != nil {
					return err
				}
				for _, plane := range payload.Planes {
					if err := p.audioSink.Render(plane); err != nil {
						return err
					}
				}
				return nil
			},
			EventSink:  p.eventSink,
			Logger:     p.logger,
			ClearCache: p.audioSink.ClearCache,
		})
		sync = avsync.New(p.video.Clock(), p.audio.Clock(), fpsNum, fpsDen)
	}

	return nil
}

func drainAndDiscard(q *packetqueue.Queue) {
	for {
		pkt, ok := q.Pop(true)
		if !ok {
			return
		}
		pkt.Release()
	}
}

// Play starts the demux worker and both decoders.
func (p *HardwarePlayer) Play() {
	go p.demux.Run()
	p.video.Start()
	if p.audio != nil {
		p.audio.Start()
	}
}

// Pause pauses the demux worker and both decoders.
func (p *HardwarePlayer) Pause() {
	p.demux.Pause()
	p.video.Pause()
	if p.audio != nil {
		p.audio.Pause()
	}
}

// Resume resumes the demux worker and both decoders.
func (p *HardwarePlayer) Resume() {
	p.demux.Resume()
	p.video.Resume()
	if p.audio != nil {
		p.audio.Resume()
	}
}

// Seek forwards to both decoders: the video decoder's Feed delegates to
// the shared demux worker (whose Seek is idempotent against a second
// call), but each decoder must still run its own doSeek so its own codec
// gets FlushBuffers'd — the demux only owns the container, not either
// codec's internal state (spec.md §4.4).
func (p *HardwarePlayer) Seek(position float64) {
	p.video.Seek(position)
	if p.audio != nil {
		p.audio.Seek(position)
	}
}

// Stop stops the demux worker and both decoders, then uninitializes the
// sinks.
func (p *HardwarePlayer) Stop() {
	p.demux.Stop()
	p.video.Stop()
	if p.audio != nil {
		p.audio.Stop()
	}
	if p.videoSink != nil {
		if err := p.videoSink.Uninit(); err != nil {
			p.logger.Printf("hardware player: VideoSink.Uninit: %v", err)
		}
	}
	if p.audioSink != nil {
		if err := p.audioSink.Uninit(); err != nil {
			p.logger.Printf("hardware player: AudioSink.Uninit: %v", err)
		}
	}
}

// PositionMs reports the video decoder's estimated playback position.
func (p *HardwarePlayer) PositionMs() int64 { return p.video.PositionMs() }

// DurationMs reports the container's duration.
func (p *HardwarePlayer) DurationMs() int64 { return p.video.DurationMs() }

// State reports the video decoder's state as the player's own.
func (p *HardwarePlayer) State() decoder.State { return p.video.State() }

// VideoClock exposes the video decoder's Clock.
func (p *HardwarePlayer) VideoClock() *clock.Clock { return p.video.Clock() }

// Parameters reports the video decoder's published MediaParameters,
// backing the host-facing get_param surface (spec.md §6).
func (p *HardwarePlayer) Parameters() media.MediaParameters { return p.video.MediaParams() }
