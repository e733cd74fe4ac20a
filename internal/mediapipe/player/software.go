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

	"github.com/asticode/go-astiav"

	"github.com/e1z0/mediapipe/internal/mediapipe/clock"
	"github.com/e1z0/mediapipe/internal/mediapipe/convert"
	"github.com/e1z0/mediapipe/internal/mediapipe/decoder"
	"github.com/e1z0/mediapipe/internal/mediapipe/event"
	"github.com/e1z0/mediapipe/internal/mediapipe/media"
	"github.com/e1z0/mediapipe/internal/mediapipe/sink"
)

// SoftwarePlayer is spec.md §4.6's C6 shape: each stream gets its own
// demuxing container and its own Decoder, with no shared lock between
// them. There is no master-clock synchronization between the two
// decoders; each runs at its own pace, which is the teacher's own
// behavior (video.go decodes and renders inline, with no A/V sync).
type SoftwarePlayer struct {
	url       string
	logger    *log.Logger
	eventSink event.Sink

	videoSink sink.VideoSink
	audioSink sink.AudioSink

	video *decoder.Decoder
	audio *decoder.Decoder // nil if the source has no audio
}

// SoftwarePlayerConfig wires a SoftwarePlayer to its sinks.
type SoftwarePlayerConfig struct {
	URL       string
	VideoSink sink.VideoSink
	AudioSink sink.AudioSink // optional
	EventSink event.Sink
	Logger    *log.Logger
}

// NewSoftwarePlayer constructs a SoftwarePlayer. Init must be called
// before Start.
func NewSoftwarePlayer(cfg SoftwarePlayerConfig) *SoftwarePlayer {
	if cfg.EventSink == nil {
		cfg.EventSink = event.Nop
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &SoftwarePlayer{
		url:       cfg.URL,
		logger:    cfg.Logger,
		eventSink: cfg.EventSink,
		videoSink: cfg.VideoSink,
		audioSink: cfg.AudioSink,
	}
}

// containerFeed is a decoder.Feed backed by a container this player owns
// outright: FetchPacket reads frames directly off the FormatContext,
// discarding any packet that doesn't belong to streamIdx (the teacher's
// own inline filtering in openAndDecode's read loop, video.go).
type containerFeed struct {
	h         *containerHandle
	streamIdx int
	timeBase  media.Rational
}

func (f *containerFeed) FetchPacket() (*media.Packet, bool) {
	pkt := astiav.AllocPacket()
	defer pkt.Free()
	for {
		if err := f.h.FC.ReadFrame(pkt); err != nil {
			return nil, false
		}
		if pkt.StreamIndex() != f.streamIdx {
			pkt.Unref()
			continue
		}
		wrapped, err := media.WrapPacket(pkt, f.streamIdx, f.timeBase)
		pkt.Unref()
		if err != nil {
			continue
		}
		return wrapped, true
	}
}

func (f *containerFeed) Seek(position float64) error {
	target := int64(position * float64(f.h.DurationUs))
	return f.h.FC.SeekFrame(f.streamIdx, target, astiav.NewSeekFlags())
}

func (f *containerFeed) Close() error {
	f.h.Close()
	return nil
}

// Init opens both containers (one per stream, per spec.md §4.6) and
// constructs their Decoders. Init must succeed before Start is called.
func (p *SoftwarePlayer) Init() error {
	vHandle, err := openContainer(p.url, nil)
	if err != nil {
		return fmt.Errorf("software player: open video container: %w", err)
	}
	if p.videoSink == nil {
		vHandle.Close()
		return errors.New("software player: VideoSink required")
	}

	vCodec, err := openCodec(vHandle.Video, "")
	if err != nil {
		vHandle.Close()
		return fmt.Errorf("software player: open video codec: %w", err)
	}

	dstW, dstH, err := p.videoSink.Init(vCodec.Width(), vCodec.Height())
	if err != nil {
		vCodec.Free()
		vHandle.Close()
		return fmt.Errorf("software player: VideoSink.Init: %w", err)
	}

	scaler := convert.NewVideoScaler(media.PixelFormatRGBA, dstW, dstH)
	if p.videoSink.Kind() == sink.VideoKindAccelerated {
		scaler = convert.NewVideoScaler(media.PixelFormatI420, dstW, dstH)
	}

	p.video = decoder.New(decoder.Config{
		Kind: media.StreamVideo,
		Feed: &containerFeed{h: vHandle, streamIdx: vHandle.Video.Index, timeBase: vHandle.Video.TimeBase},
		Init: func() (*astiav.CodecContext, media.Rational, media.MediaParameters, error) {
			return vCodec, vHandle.Video.TimeBase, media.MediaParameters{
				VideoWidth:  vCodec.Width(),
				VideoHeight: vCodec.Height(),
				DurationMs:  durationMsFromUs(vHandle.DurationUs),
			}, nil
		},
		Render: func(frame *astiav.Frame, ptsMs int64) error {
			payload, err := scaler.Convert(frame)
			if err != nil {
				return err
			}
			return p.videoSink.Render(&media.Frame{PTSMs: ptsMs, Kind: media.StreamVideo, Video: payload})
		},
		EventSink: p.eventSink,
		Logger:    p.logger,
		ClearCache: func() {
			if cc, ok := p.videoSink.(sink.CacheClearer); ok {
				cc.ClearCache()
			}
		},
	})

	if vHandle.Audio != nil && p.audioSink != nil {
		aHandle, err := openContainer(p.url, nil)
		if err != nil {
			p.logger.Printf("software player: open audio container: %v", err)
		} else if aHandle.Audio == nil {
			aHandle.Close()
		} else {
			aCodec, err := openCodec(aHandle.Audio, "")
			if err != nil {
				p.logger.Printf("software player: open audio codec: %v", err)
				aHandle.Close()
			} else {
				if err := p.audioSink.Init(); err != nil {
					p.logger.Printf("software player: AudioSink.Init: %v", err)
					aCodec.Free()
					aHandle.Close()
				} else {
					resampler := convert.NewAudioResampler(44100, 2)
					p.audio = decoder.New(decoder.Config{
						Kind: media.StreamAudio,
						Feed: &containerFeed{h: aHandle, streamIdx: aHandle.Audio.Index, timeBase: aHandle.Audio.TimeBase},
						Init: func() (*astiav.CodecContext, media.Rational, media.MediaParameters, error) {
							return aCodec, aHandle.Audio.TimeBase, media.MediaParameters{
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
				}
			}
		}
	}

	return nil
}

func durationMsFromUs(us int64) int64 {
	if us <= 0 {
		return 0
	}
	return us / 1000
}

// Play starts both decoders.
func (p *SoftwarePlayer) Play() {
	p.video.Start()
	if p.audio != nil {
		p.audio.Start()
	}
}

// Pause pauses both decoders.
func (p *SoftwarePlayer) Pause() {
	p.video.Pause()
	if p.audio != nil {
		p.audio.Pause()
	}
}

// Resume resumes both decoders.
func (p *SoftwarePlayer) Resume() {
	p.video.Resume()
	if p.audio != nil {
		p.audio.Resume()
	}
}

// Seek forwards position to both decoders independently; the two
// containers are unsynchronized, matching the rest of this shape.
func (p *SoftwarePlayer) Seek(position float64) {
	p.video.Seek(position)
	if p.audio != nil {
		p.audio.Seek(position)
	}
}

// Stop stops both decoders and waits for their workers to exit.
func (p *SoftwarePlayer) Stop() {
	p.video.Stop()
	if p.audio != nil {
		p.audio.Stop()
	}
	if p.videoSink != nil {
		if err := p.videoSink.Uninit(); err != nil {
			p.logger.Printf("software player: VideoSink.Uninit: %v", err)
		}
	}
	if p.audioSink != nil {
		if err := p.audioSink.Uninit(); err != nil {
			p.logger.Printf("software player: AudioSink.Uninit: %v", err)
		}
	}
}

// PositionMs reports the video decoder's estimated playback position.
func (p *SoftwarePlayer) PositionMs() int64 { return p.video.PositionMs() }

// DurationMs reports the video stream's duration.
func (p *SoftwarePlayer) DurationMs() int64 { return p.video.DurationMs() }

// State reports the video decoder's state as the player's own.
func (p *SoftwarePlayer) State() decoder.State { return p.video.State() }

// VideoClock exposes the video decoder's Clock, mostly useful for tests
// and host-side diagnostics; SoftwarePlayer itself never reads it.
func (p *SoftwarePlayer) VideoClock() *clock.Clock { return p.video.Clock() }

// Parameters reports the video decoder's published MediaParameters,
// backing the host-facing get_param surface (spec.md §6).
func (p *SoftwarePlayer) Parameters() media.MediaParameters { return p.video.MediaParams() }
