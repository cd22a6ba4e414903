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

package history

import "github.com/jpark37/renderdoc/gapis/api"

// Value is a decoded pixel value: up to four color channels widened to
// float32, plus depth and stencil.
type Value struct {
	Color   [4]float32
	Depth   float32
	Stencil int32
}

// Modification is one entry of the pixel's timeline: a single fragment of a
// single event that could have written the pixel. Entries for the same event
// are contiguous and ordered by FragIndex.
type Modification struct {
	Event api.EventID

	// FragIndex is the fragment's index within the event, counted in the
	// order fragments passed the stencil counter.
	FragIndex uint32

	// Primitive is the id of the primitive that produced the fragment, or
	// -1 when unknown.
	Primitive int32

	PreMod    Value
	ShaderOut Value
	PostMod   Value

	// Which test rejected the fragment, if any. The replay blames the first
	// failing stage; failures knowable from pipeline state alone are kept
	// alongside it.
	BackfaceCulled    bool
	ScissorClipped    bool
	SampleMasked      bool
	DepthBoundsFailed bool
	StencilTestFailed bool
	DepthTestFailed   bool
	ShaderDiscarded   bool

	// DirectWrite marks events (copies, resolves, shader writes) that
	// bypass fragment testing entirely.
	DirectWrite bool

	// UnboundShader marks draws with no fragment shader bound.
	UnboundShader bool
}

// Passed reports whether the fragment survived every test and wrote the
// pixel.
func (m *Modification) Passed() bool {
	return !m.BackfaceCulled && !m.ScissorClipped && !m.SampleMasked &&
		!m.DepthBoundsFailed && !m.StencilTestFailed && !m.DepthTestFailed &&
		!m.ShaderDiscarded
}
