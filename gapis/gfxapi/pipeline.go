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

package gfxapi

// Offset2D is an integer pixel offset.
type Offset2D struct {
	X int32
	Y int32
}

// Extent2D is an integer pixel extent.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// Extent3D is an integer texel extent.
type Extent3D struct {
	Width  uint32
	Height uint32
	Depth  uint32
}

// Rect2D is an axis-aligned pixel rectangle.
type Rect2D struct {
	Offset Offset2D
	Extent Extent2D
}

// Empty reports whether the rectangle covers no pixels.
func (r Rect2D) Empty() bool { return r.Extent.Width == 0 || r.Extent.Height == 0 }

// Viewport is a render viewport. Height may be negative to flip the
// vertical axis.
type Viewport struct {
	X        float32
	Y        float32
	Width    float32
	Height   float32
	MinDepth float32
	MaxDepth float32
}

// StencilOpState is the per-face stencil configuration.
type StencilOpState struct {
	FailOp      StencilOp
	PassOp      StencilOp
	DepthFailOp StencilOp
	CompareOp   CompareOp
	CompareMask uint32
	WriteMask   uint32
	Reference   uint32
}

// ColorBlendAttachment is the per-attachment blend configuration. Only the
// fields pixel history rewrites are modeled; blend factors stay opaque to
// the engine and travel with the backend's pipeline description.
type ColorBlendAttachment struct {
	BlendEnable bool
	WriteMask   ColorComponents
}

// ShaderBinding is a bound shader stage.
type ShaderBinding struct {
	Module     ResourceID
	EntryPoint string
}

// Bound reports whether a module is attached to the stage.
func (s ShaderBinding) Bound() bool { return !s.Module.IsNil() }

// Pipeline is the fixed-function and stage state of a graphics pipeline,
// as registered by the replay backend at creation time. Pixel history
// clones this description, rewrites the clone, and asks the backend to
// build a new pipeline from it; a Pipeline value obtained from the registry
// must never be modified in place.
type Pipeline struct {
	Shaders [StageCount]ShaderBinding

	Topology Topology

	// Rasterization.
	CullMode          CullMode
	RasterizerDiscard bool
	DepthClamp        bool

	// Depth-stencil.
	DepthTest       bool
	DepthWrite      bool
	DepthCompareOp  CompareOp
	DepthBoundsTest bool
	StencilTest     bool
	Front           StencilOpState
	Back            StencilOpState

	// Fragment shader declared early fragment tests, moving shader discard
	// after the fixed-function depth/stencil tests.
	EarlyFragmentTests bool

	// Viewport state. Scissors are baked unless DynamicScissor.
	Viewports []Viewport
	Scissors  []Rect2D

	// Dynamic state.
	DynamicScissor          bool
	DynamicStencilReference bool

	// Multisample state.
	SampleCount uint32
	SampleMask  uint32

	// Per-attachment blend state, indexed like the subpass color
	// attachments.
	Blends []ColorBlendAttachment

	// The render pass and subpass the pipeline was created against.
	RenderPass ResourceID
	Subpass    uint32
}

// Clone returns a deep copy that is safe to rewrite.
func (p *Pipeline) Clone() *Pipeline {
	q := *p
	q.Viewports = append([]Viewport(nil), p.Viewports...)
	q.Scissors = append([]Rect2D(nil), p.Scissors...)
	q.Blends = append([]ColorBlendAttachment(nil), p.Blends...)
	return &q
}
