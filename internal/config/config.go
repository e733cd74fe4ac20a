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

// Package config loads the YAML configuration the cmd/ demo shells use,
// grounded on config.go's AppConfig/Environment split and atomic-write
// save path (tmp file + rename), generalized from "one config file full
// of camera windows" to "one config file describing a source plus sink
// options".
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// AppName names the config directory under the user's home, same role
// as the teacher's appName.
const AppName = "mediapipe"

// Source describes one playable/recordable URL and its engine options.
type Source struct {
	Name         string `yaml:"name"`
	URL          string `yaml:"url"`
	Hardware     bool   `yaml:"hardware,omitempty"`
	HwAccel      string `yaml:"hwaccel,omitempty"`
	RTSPTCP      bool   `yaml:"rtsp_tcp,omitempty"`
	Probesize    int64  `yaml:"probesize,omitempty"`
	Threads      int    `yaml:"threads,omitempty"`
	FFmpegParams string `yaml:"ffmpeg_params,omitempty"`
}

// RecorderSettings mirrors Recorder.Config's tunables a host might want
// to expose without recompiling.
type RecorderSettings struct {
	OutputDir    string `yaml:"output_dir,omitempty"`
	VideoBitRate int64  `yaml:"video_bitrate,omitempty"`
	AudioBitRate int64  `yaml:"audio_bitrate,omitempty"`
}

// Config is the top-level settings.yml document.
type Config struct {
	Sources  []Source         `yaml:"sources"`
	Recorder RecorderSettings `yaml:"recorder,omitempty"`
}

// Environment mirrors config.go's Environment: resolved filesystem
// locations, computed once at startup.
type Environment struct {
	ConfigDir    string
	SettingsFile string
	HomeDir      string
}

// NewEnvironment resolves ~/.config/<AppName>/settings.yml and ensures
// the directory exists.
func NewEnvironment() (Environment, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Environment{}, fmt.Errorf("config: UserHomeDir: %w", err)
	}
	dir := filepath.Join(home, ".config", AppName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Environment{}, fmt.Errorf("config: MkdirAll(%s): %w", dir, err)
	}
	return Environment{
		ConfigDir:    dir,
		HomeDir:      home,
		SettingsFile: filepath.Join(dir, "settings.yml"),
	}, nil
}

// Load reads and parses path. A missing file returns a zero Config, no
// error, matching the teacher's "first run has no settings yet" UX.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("config: ReadFile(%s): %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: Unmarshal: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path via a tmp-file-then-rename, matching the
// teacher's UpdateCameraGeometry atomic-write pattern.
func Save(path string, cfg Config) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("config: Create(%s): %w", tmp, err)
	}
	enc := yaml.NewEncoder(f)
	if err := enc.Encode(&cfg); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("config: Encode: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("config: close: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("config: rename: %w", err)
	}
	return nil
}
