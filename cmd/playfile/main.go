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

// playfile is a headless demo host for the mediapipe package (spec.md
// §6): it opens one source from settings.yml (or -url), drives a Player
// through init/play, dumps decoded video frames as numbered PPM files,
// and plays decoded audio through the host's speakers via Oto.
// Grounded on main.go's flag/log setup, minus the Qt application loop
// this module has no equivalent surface for (spec.md §1 excludes
// host-surface acquisition).
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/hajimehoshi/oto/v2"

	"github.com/e1z0/mediapipe"
	"github.com/e1z0/mediapipe/internal/config"
	"github.com/e1z0/mediapipe/internal/hostsinks"
)

// enableFFmpegDebugLogging mirrors the teacher's -debugstreams handling
// in main.go: wire astiav's log callback straight into the standard
// logger.
func enableFFmpegDebugLogging() {
	astiav.SetLogLevel(astiav.LogLevelDebug)
	astiav.SetLogCallback(func(c astiav.Classer, l astiav.LogLevel, fmt, msg string) {
		var cs string
		if c != nil {
			if cl := c.Class(); cl != nil {
				cs = " - class: " + cl.String()
			}
		}
		log.Printf("ffmpeg log: %s%s - level: %d\n", strings.TrimSpace(msg), cs, l)
	})
}

var version string
var build string

func main() {
	url := flag.String("url", "", "source URL or file path; overrides the first configured source")
	hardware := flag.Bool("hardware", false, "use the shared-demux hardware player shape instead of software")
	hwaccel := flag.String("hwaccel", "", "hwaccel dictionary hint forwarded to the video decoder")
	outDir := flag.String("out", "./frames", "directory decoded video frames are dumped into")
	debug := flag.Bool("debug", false, "enable ffmpeg debug logging")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("Running playfile v%s (build: %s)", version, build)

	source := *url
	if source == "" {
		env, err := config.NewEnvironment()
		if err != nil {
			log.Fatalf("playfile: %v", err)
		}
		cfg, err := config.Load(env.SettingsFile)
		if err != nil {
			log.Fatalf("playfile: %v", err)
		}
		if len(cfg.Sources) == 0 {
			log.Fatalf("playfile: no -url given and %s has no sources configured", env.SettingsFile)
		}
		source = cfg.Sources[0].URL
		if *hwaccel == "" {
			*hwaccel = cfg.Sources[0].HwAccel
		}
	}

	if *debug {
		enableFFmpegDebugLogging()
	}

	audioCtx, ready, err := oto.NewContext(44100, 2, oto.FormatSignedInt16LE)
	if err != nil {
		log.Fatalf("playfile: oto.NewContext: %v", err)
	}
	<-ready

	videoSink := hostsinks.NewPPMDumpVideoSink(*outDir)
	audioSink := hostsinks.NewOtoAudioSink(audioCtx)

	kind := mediapipe.Software
	if *hardware {
		kind = mediapipe.Hardware
	}

	var videoDone atomic.Bool
	player := mediapipe.NewPlayer(mediapipe.Config{
		Kind:      kind,
		URL:       source,
		HwAccel:   *hwaccel,
		VideoSink: videoSink,
		AudioSink: audioSink,
		EventSink: mediapipe.Func(func(msgType mediapipe.EventType, code float32) {
			switch msgType {
			case mediapipe.EventDecoderDone:
				videoDone.Store(true)
			case mediapipe.EventDecoderInitError:
				log.Printf("playfile: decoder init error (code=%v)", code)
			}
		}),
		Logger: log.Default(),
	})

	if err := player.Init(); err != nil {
		log.Fatalf("playfile: Init: %v", err)
	}
	if err := player.Play(); err != nil {
		log.Fatalf("playfile: Play: %v", err)
	}
	log.Printf("playfile: playing %s, frames dumped to %s", source, *outDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-sigCh:
			log.Printf("playfile: stopping")
			if err := player.Stop(); err != nil {
				log.Printf("playfile: Stop: %v", err)
			}
			return
		case <-ticker.C:
			pos, _ := player.GetPositionMs()
			dur, _ := player.GetDurationMs()
			log.Printf("playfile: state=%s position=%dms duration=%dms", player.State(), pos, dur)
			if videoDone.Load() {
				log.Printf("playfile: stream ended")
				if err := player.Stop(); err != nil {
					log.Printf("playfile: Stop: %v", err)
				}
				return
			}
		}
	}
}
