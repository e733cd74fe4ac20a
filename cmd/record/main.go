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

// record is a headless demo host that drives a mediapipe.Recorder
// (spec.md §4.8, C8) off a live SoftwarePlayer source: the player
// decodes camera/mic packets from -url (an RTSP camera, a capture
// device string, or a file) and this command's sink adapters forward
// the decoded frames straight into the Recorder instead of a display,
// demonstrating the full capture-to-container path end to end. Grounded
// on video.go's camera+recorder wiring, minus CamWindow's GUI surface
// (spec.md §1 puts host-surface acquisition out of scope).
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/e1z0/mediapipe"
	"github.com/e1z0/mediapipe/internal/config"
)

var version string
var build string

// recordVideoSink adapts decoded video frames into Recorder.WriteVideoFrame
// calls; Init reports back the fixed resolution the Recorder was opened
// with, so the player's scaler converts every frame to match.
type recordVideoSink struct {
	rec    *mediapipe.Recorder
	width  int
	height int
}

func (s *recordVideoSink) Init(srcW, srcH int) (int, int, error) {
	return s.width, s.height, nil
}

func (s *recordVideoSink) Render(frame *mediapipe.Frame) error {
	if frame.Video == nil {
		return nil
	}
	img := &mediapipe.NativeImage{
		Format: frame.Video.Format,
		Width:  frame.Video.Width,
		Height: frame.Video.Height,
	}
	for i, p := range frame.Video.Planes {
		if i >= len(img.Planes) {
			break
		}
		img.Planes[i] = p
	}
	for i, ls := range frame.Video.LineSizes {
		if i >= len(img.LineSizes) {
			break
		}
		img.LineSizes[i] = ls
	}
	return s.rec.WriteVideoFrame(img)
}

func (s *recordVideoSink) Uninit() error { return nil }

func (s *recordVideoSink) Kind() mediapipe.VideoKind { return mediapipe.VideoAccelerated }

// recordAudioSink adapts decoded PCM into Recorder.WriteAudioFrame calls.
type recordAudioSink struct {
	rec *mediapipe.Recorder
}

func (s *recordAudioSink) Init() error { return nil }

func (s *recordAudioSink) Render(pcm []byte) error { return s.rec.WriteAudioFrame(pcm) }

func (s *recordAudioSink) ClearCache() {}

func (s *recordAudioSink) Uninit() error { return nil }

func main() {
	url := flag.String("url", "", "camera/mic source URL; overrides the first configured source")
	out := flag.String("out", "", "output container path; defaults to <recorder.output_dir>/record-<timestamp>.mp4")
	width := flag.Int("width", 1280, "encoded video width")
	height := flag.Int("height", 720, "encoded video height")
	fps := flag.Int("fps", 30, "encoded video framerate")
	duration := flag.Duration("duration", 0, "stop automatically after this long (0 = run until interrupted)")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("Running record v%s (build: %s)", version, build)

	env, err := config.NewEnvironment()
	if err != nil {
		log.Fatalf("record: %v", err)
	}
	cfg, err := config.Load(env.SettingsFile)
	if err != nil {
		log.Fatalf("record: %v", err)
	}

	source := *url
	if source == "" {
		if len(cfg.Sources) == 0 {
			log.Fatalf("record: no -url given and %s has no sources configured", env.SettingsFile)
		}
		source = cfg.Sources[0].URL
	}

	outputPath := *out
	if outputPath == "" {
		dir := cfg.Recorder.OutputDir
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("record: MkdirAll(%s): %v", dir, err)
		}
		outputPath = dir + "/record-" + time.Now().Format("20060102-150405") + ".mp4"
	}

	rec := mediapipe.NewRecorder(mediapipe.RecorderConfig{
		OutputPath:   outputPath,
		Width:        *width,
		Height:       *height,
		FPSNum:       *fps,
		FPSDen:       1,
		VideoBitRate: cfg.Recorder.VideoBitRate,
		SampleRate:   44100,
		Channels:     2,
		AudioBitRate: cfg.Recorder.AudioBitRate,
		Logger:       log.Default(),
	})
	if err := rec.Start(); err != nil {
		log.Fatalf("record: Start: %v", err)
	}

	player := mediapipe.NewPlayer(mediapipe.Config{
		Kind:      mediapipe.Software,
		URL:       source,
		VideoSink: &recordVideoSink{rec: rec, width: *width, height: *height},
		AudioSink: &recordAudioSink{rec: rec},
		Logger:    log.Default(),
	})
	if err := player.Init(); err != nil {
		log.Fatalf("record: player Init: %v", err)
	}
	if err := player.Play(); err != nil {
		log.Fatalf("record: player Play: %v", err)
	}
	log.Printf("record: capturing %s -> %s", source, outputPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var timeout <-chan time.Time
	if *duration > 0 {
		timer := time.NewTimer(*duration)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-sigCh:
		log.Printf("record: stopping")
	case <-timeout:
		log.Printf("record: duration elapsed, stopping")
	}

	if err := player.Stop(); err != nil {
		log.Printf("record: player Stop: %v", err)
	}
	if err := rec.Stop(); err != nil {
		log.Printf("record: Stop: %v", err)
	}
	log.Printf("record: wrote %s", outputPath)
}
