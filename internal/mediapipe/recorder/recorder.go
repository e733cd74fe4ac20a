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

// Package recorder implements the Recorder capability spec.md §4.8/§6
// describes (C8): camera + mic frames go in, an encoded container comes
// out. Grounded on video.go's startRecorder/closeRecorder
// (AllocOutputFormatContext/NewStream/WriteHeader/
// WriteInterleavedFrame/WriteTrailer), generalized from "video
// stream-copy + re-encoded audio off one live RTSP feed" to "encode both
// video and audio from raw camera/mic frames" per spec.md §4.8, with the
// single inline mux loop split into one worker goroutine per stream
// feeding a shared muxer (spec.md §5's worker table).
package recorder

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/asticode/go-astiav"

	"github.com/e1z0/mediapipe/internal/mediapipe/media"
)

// Config describes the container and codec parameters a Recorder opens.
type Config struct {
	OutputPath string

	Width, Height int
	FPSNum, FPSDen int
	VideoBitRate  int64

	SampleRate int
	Channels   int
	AudioBitRate int64

	QueueDepth int // per-stream bounded queue depth; 0 uses a sensible default
	Logger     *log.Logger
}

const defaultQueueDepth = 64

// Recorder encodes camera frames and mic PCM into one MP4 (H.264 + AAC),
// with a bounded queue and dedicated worker per stream so a slow encoder
// on one stream never blocks producers of the other (spec.md §4.8).
type Recorder struct {
	cfg Config

	oc *astiav.FormatContext
	pb *astiav.IOContext

	videoCtx    *astiav.CodecContext
	videoStream *astiav.Stream
	videoQueue  chan *media.NativeImage
	videoNextPTS int64

	audioCtx    *astiav.CodecContext
	audioStream *astiav.Stream
	audioResampler *astiav.SoftwareResampleContext
	audioQueue  chan []byte
	audioNextPTS int64

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
	started  bool
}

// New constructs a Recorder. Start opens the container and encoders.
func New(cfg Config) *Recorder {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Recorder{cfg: cfg, stopCh: make(chan struct{})}
}

// Start opens the output container, the video encoder, and (if
// SampleRate/Channels are set) the audio encoder, writes the container
// header, and spawns one worker per stream.
func (r *Recorder) Start() error {
	if r.started {
		return errors.New("recorder: already started")
	}

	oc, err := astiav.AllocOutputFormatContext(nil, "mp4", r.cfg.OutputPath)
	if err != nil || oc == nil {
		return fmt.Errorf("recorder: AllocOutputFormatContext: %w", err)
	}

	pb, err := astiav.OpenIOContext(r.cfg.OutputPath, astiav.NewIOContextFlags(astiav.IOContextFlagWrite), nil, nil)
	if err != nil {
		oc.Free()
		return fmt.Errorf("recorder: OpenIOContext: %w", err)
	}
	oc.SetPb(pb)

	if err := r.openVideo(oc); err != nil {
		pb.Close()
		pb.Free()
		oc.Free()
		return fmt.Errorf("recorder: open video encoder: %w", err)
	}

	if r.cfg.SampleRate > 0 && r.cfg.Channels > 0 {
		if err := r.openAudio(oc); err != nil {
			r.cfg.Logger.Printf("recorder: open audio encoder: %v (continuing video-only)", err)
		}
	}

	if err := oc.WriteHeader(nil); err != nil {
		pb.Close()
		pb.Free()
		oc.Free()
		return fmt.Errorf("recorder: WriteHeader: %w", err)
	}

	r.oc = oc
	r.pb = pb
	r.videoQueue = make(chan *media.NativeImage, r.cfg.QueueDepth)
	r.started = true

	r.wg.Add(1)
	go r.runVideo()

	if r.audioCtx != nil {
		r.audioQueue = make(chan []byte, r.cfg.QueueDepth)
		r.wg.Add(1)
		go r.runAudio()
	}

	return nil
}

func (r *Recorder) openVideo(oc *astiav.FormatContext) error {
	enc := astiav.FindEncoder(astiav.CodecIDH264)
	if enc == nil {
		return errors.New("H264 encoder not found")
	}
	ctx := astiav.AllocCodecContext(enc)
	if ctx == nil {
		return errors.New("AllocCodecContext failed")
	}
	ctx.SetWidth(r.cfg.Width)
	ctx.SetHeight(r.cfg.Height)
	ctx.SetPixelFormat(astiav.PixelFormatYuv420P)
	fpsNum, fpsDen := r.cfg.FPSNum, r.cfg.FPSDen
	if fpsNum <= 0 || fpsDen <= 0 {
		fpsNum, fpsDen = 30, 1
	}
	ctx.SetTimeBase(astiav.NewRational(fpsDen, fpsNum))
	ctx.SetFramerate(astiav.NewRational(fpsNum, fpsDen))
	if r.cfg.VideoBitRate > 0 {
		ctx.SetBitRate(r.cfg.VideoBitRate)
	}

	if err := ctx.Open(enc, nil); err != nil {
		ctx.Free()
		return fmt.Errorf("codec Open: %w", err)
	}

	st := oc.NewStream(nil)
	if st == nil {
		ctx.Free()
		return errors.New("NewStream failed")
	}
	if err := ctx.ToCodecParameters(st.CodecParameters()); err != nil {
		ctx.Free()
		return fmt.Errorf("ToCodecParameters: %w", err)
	}
	st.SetTimeBase(ctx.TimeBase())

	r.videoCtx = ctx
	r.videoStream = st
	return nil
}

func (r *Recorder) openAudio(oc *astiav.FormatContext) error {
	enc := astiav.FindEncoder(astiav.CodecIDAac)
	if enc == nil {
		return errors.New("AAC encoder not found")
	}
	ctx := astiav.AllocCodecContext(enc)
	if ctx == nil {
		return errors.New("AllocCodecContext failed")
	}

	layout := astiav.ChannelLayoutMono
	if r.cfg.Channels >= 2 {
		layout = astiav.ChannelLayoutStereo
	}
	ctx.SetChannelLayout(layout)
	ctx.SetSampleRate(r.cfg.SampleRate)
	if sfs := enc.SampleFormats(); len(sfs) > 0 {
		ctx.SetSampleFormat(sfs[0])
	}
	ctx.SetTimeBase(astiav.NewRational(1, r.cfg.SampleRate))
	if r.cfg.AudioBitRate > 0 {
		ctx.SetBitRate(r.cfg.AudioBitRate)
	} else {
		ctx.SetBitRate(64000)
	}
	ctx.SetStrictStdCompliance(astiav.StrictStdComplianceExperimental)

	if err := ctx.Open(enc, nil); err != nil {
		ctx.Free()
		return fmt.Errorf("codec Open: %w", err)
	}

	st := oc.NewStream(nil)
	if st == nil {
		ctx.Free()
		return errors.New("NewStream failed")
	}
	if err := ctx.ToCodecParameters(st.CodecParameters()); err != nil {
		ctx.Free()
		return fmt.Errorf("ToCodecParameters: %w", err)
	}
	st.SetTimeBase(ctx.TimeBase())

	swr := astiav.AllocSoftwareResampleContext()
	if swr == nil {
		ctx.Free()
		return errors.New("AllocSoftwareResampleContext failed")
	}

	r.audioCtx = ctx
	r.audioStream = st
	r.audioResampler = swr
	return nil
}

// WriteVideoFrame enqueues a captured frame for encoding. It never
// blocks indefinitely: if the queue is full the frame is dropped, so a
// stalled encoder cannot back up the camera capture loop.
func (r *Recorder) WriteVideoFrame(img *media.NativeImage) error {
	if !r.started {
		return errors.New("recorder: not started")
	}
	select {
	case r.videoQueue <- img:
		return nil
	default:
		return errors.New("recorder: video queue full, frame dropped")
	}
}

// WriteAudioFrame enqueues a PCM chunk for encoding, same drop-on-full
// policy as WriteVideoFrame.
func (r *Recorder) WriteAudioFrame(pcm []byte) error {
	if !r.started || r.audioQueue == nil {
		return errors.New("recorder: audio not active")
	}
	select {
	case r.audioQueue <- pcm:
		return nil
	default:
		return errors.New("recorder: audio queue full, frame dropped")
	}
}

func (r *Recorder) runVideo() {
	defer r.wg.Done()

	frame := astiav.AllocFrame()
	defer frame.Free()
	frame.SetWidth(r.cfg.Width)
	frame.SetHeight(r.cfg.Height)
	frame.SetPixelFormat(astiav.PixelFormatYuv420P)

	for {
		select {
		case <-r.stopCh:
			r.drainVideoEncoder()
			return
		case img, ok := <-r.videoQueue:
			if !ok {
				r.drainVideoEncoder()
				return
			}
			r.encodeVideoFrame(frame, img)
		}
	}
}

func (r *Recorder) encodeVideoFrame(frame *astiav.Frame, img *media.NativeImage) {
	// Unref at the end of the previous call reset these, so set them again
	// before allocating this frame's buffer.
	frame.SetWidth(r.cfg.Width)
	frame.SetHeight(r.cfg.Height)
	frame.SetPixelFormat(astiav.PixelFormatYuv420P)
	if err := frame.AllocBuffer(1); err != nil {
		r.cfg.Logger.Printf("recorder: video AllocBuffer: %v", err)
		return
	}
	if err := frame.ImageCopyFromBuffer(planarBytes(img), 1); err != nil {
		r.cfg.Logger.Printf("recorder: video ImageCopyFromBuffer: %v", err)
		frame.Unref()
		return
	}
	frame.SetPts(r.videoNextPTS)
	r.videoNextPTS++ // one tick per frame in the 1/fps time base (spec.md §4.8)

	if err := r.videoCtx.SendFrame(frame); err != nil {
		r.cfg.Logger.Printf("recorder: video SendFrame: %v", err)
	}
	frame.Unref()
	r.drainVideoPackets()
}

func planarBytes(img *media.NativeImage) []byte {
	var out []byte
	for _, p := range img.Planes {
		out = append(out, p...)
	}
	return out
}

func (r *Recorder) drainVideoPackets() {
	for {
		pkt := astiav.AllocPacket()
		if err := r.videoCtx.ReceivePacket(pkt); err != nil {
			pkt.Free()
			return
		}
		pkt.SetStreamIndex(r.videoStream.Index())
		pkt.RescaleTs(r.videoCtx.TimeBase(), r.videoStream.TimeBase())
		if err := r.oc.WriteInterleavedFrame(pkt); err != nil && !errors.Is(err, astiav.ErrEagain) {
			r.cfg.Logger.Printf("recorder: video WriteInterleavedFrame: %v", err)
		}
		pkt.Unref()
		pkt.Free()
	}
}

func (r *Recorder) drainVideoEncoder() {
	_ = r.videoCtx.SendFrame(nil)
	r.drainVideoPackets()
}

func (r *Recorder) runAudio() {
	defer r.wg.Done()

	frame := astiav.AllocFrame()
	defer frame.Free()

	for {
		select {
		case <-r.stopCh:
			r.drainAudioEncoder()
			return
		case pcm, ok := <-r.audioQueue:
			if !ok {
				r.drainAudioEncoder()
				return
			}
			r.encodeAudioFrame(frame, pcm)
		}
	}
}

func (r *Recorder) encodeAudioFrame(frame *astiav.Frame, pcm []byte) {
	layout := astiav.ChannelLayoutMono
	if r.cfg.Channels >= 2 {
		layout = astiav.ChannelLayoutStereo
	}
	frame.Unref()
	frame.SetSampleFormat(astiav.SampleFormatS16)
	frame.SetChannelLayout(layout)
	frame.SetSampleRate(r.cfg.SampleRate)
	frame.SetNbSamples(len(pcm) / (2 * r.cfg.Channels))

	if err := frame.AllocBuffer(0); err != nil {
		r.cfg.Logger.Printf("recorder: audio AllocBuffer: %v", err)
		return
	}
	if err := frame.Data().SetBytes(pcm, 0); err != nil {
		r.cfg.Logger.Printf("recorder: audio SetBytes: %v", err)
		return
	}
	frame.SetPts(r.audioNextPTS)
	r.audioNextPTS += int64(frame.NbSamples()) // sample-rate time base (spec.md §4.8)

	if err := r.audioCtx.SendFrame(frame); err != nil {
		r.cfg.Logger.Printf("recorder: audio SendFrame: %v", err)
	}
	r.drainAudioPackets()
}

func (r *Recorder) drainAudioPackets() {
	for {
		pkt := astiav.AllocPacket()
		if err := r.audioCtx.ReceivePacket(pkt); err != nil {
			pkt.Free()
			return
		}
		pkt.SetStreamIndex(r.audioStream.Index())
		pkt.RescaleTs(r.audioCtx.TimeBase(), r.audioStream.TimeBase())
		if err := r.oc.WriteInterleavedFrame(pkt); err != nil && !errors.Is(err, astiav.ErrEagain) {
			r.cfg.Logger.Printf("recorder: audio WriteInterleavedFrame: %v", err)
		}
		pkt.Unref()
		pkt.Free()
	}
}

func (r *Recorder) drainAudioEncoder() {
	_ = r.audioCtx.SendFrame(nil)
	r.drainAudioPackets()
}

// Stop flushes both encoders, writes the trailer, and releases every
// resource Start opened. Idempotent: a second call is a no-op.
func (r *Recorder) Stop() error {
	if !r.started {
		return nil
	}
	var retErr error
	r.stopOnce.Do(func() {
		close(r.stopCh)
		r.wg.Wait()

		if r.oc != nil {
			if err := r.oc.WriteTrailer(); err != nil {
				retErr = fmt.Errorf("recorder: WriteTrailer: %w", err)
			}
		}
		if r.pb != nil {
			r.pb.Close()
			r.pb.Free()
			r.pb = nil
		}
		if r.audioResampler != nil {
			r.audioResampler.Free()
			r.audioResampler = nil
		}
		if r.audioCtx != nil {
			r.audioCtx.Free()
			r.audioCtx = nil
		}
		if r.videoCtx != nil {
			r.videoCtx.Free()
			r.videoCtx = nil
		}
		if r.oc != nil {
			r.oc.Free()
			r.oc = nil
		}
		r.started = false
	})
	return retErr
}
