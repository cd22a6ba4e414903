// Copyright (C) 2020 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds tuning settings for analysis passes, loadable from a
// TOML file.
package config

import (
	"os"

	"github.com/jpark37/renderdoc/core/fault"
	toml "github.com/pelletier/go-toml/v2"
)

// ErrBadConfig is returned when a settings file cannot be parsed.
const ErrBadConfig = fault.Const("malformed settings file")

// Settings tunes pixel history.
type Settings struct {
	// StripShaderSideEffects controls whether fragment shaders replayed
	// for counting are rewritten to remove buffer and image writes.
	StripShaderSideEffects bool `toml:"strip_shader_side_effects"`

	// MaxFragmentsPerEvent caps per-fragment expansion of a single event.
	// Zero means no cap.
	MaxFragmentsPerEvent uint32 `toml:"max_fragments_per_event"`

	// VerboseReplay enables debug logging of every interposed replay
	// action.
	VerboseReplay bool `toml:"verbose_replay"`
}

// Default returns the settings used when no file is given.
func Default() Settings {
	return Settings{
		StripShaderSideEffects: true,
	}
}

// Load reads settings from a TOML file. Keys not present keep their default
// values.
func Load(path string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := toml.Unmarshal(data, &s); err != nil {
		return s, ErrBadConfig
	}
	return s, nil
}
