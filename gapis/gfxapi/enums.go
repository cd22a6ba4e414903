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

// CompareOp is a depth/stencil comparison operator.
type CompareOp int

const (
	CompareNever CompareOp = iota
	CompareLess
	CompareEqual
	CompareLessOrEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterOrEqual
	CompareAlways
)

// StencilOp is the action applied to a stencil value.
type StencilOp int

const (
	StencilKeep StencilOp = iota
	StencilZero
	StencilReplace
	StencilIncrementAndClamp
	StencilDecrementAndClamp
	StencilInvert
	StencilIncrementAndWrap
	StencilDecrementAndWrap
)

// CullMode selects which primitive faces are discarded.
type CullMode int

const (
	CullNone CullMode = iota
	CullFront
	CullBack
	CullFrontAndBack
)

// Topology is a primitive topology.
type Topology int

const (
	TopologyPointList Topology = iota
	TopologyLineList
	TopologyLineStrip
	TopologyTriangleList
	TopologyTriangleStrip
	TopologyTriangleFan
)

// ImageLayout is the layout an image subresource is in.
type ImageLayout int

const (
	LayoutUndefined ImageLayout = iota
	LayoutGeneral
	LayoutColorAttachment
	LayoutDepthStencilAttachment
	LayoutDepthStencilReadOnly
	LayoutShaderReadOnly
	LayoutTransferSrc
	LayoutTransferDst
	LayoutPresent
)

// LoadOp describes how an attachment is initialized when a render pass
// begins.
type LoadOp int

const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
	LoadOpDontCare
)

// StoreOp describes what happens to an attachment when a render pass ends.
type StoreOp int

const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
)

// ShaderStage indexes a programmable pipeline stage.
type ShaderStage int

const (
	StageVertex ShaderStage = iota
	StageTessControl
	StageTessEvaluation
	StageGeometry
	StageFragment

	// StageCount is the number of graphics stages.
	StageCount
)

// StageFlags is a bitset of shader stages.
type StageFlags uint32

// Flag returns the bit for the stage.
func (s ShaderStage) Flag() StageFlags { return 1 << uint(s) }

// Has reports whether the stage's bit is set.
func (f StageFlags) Has(s ShaderStage) bool { return f&s.Flag() != 0 }

// ColorComponents is a per-channel write mask.
type ColorComponents uint32

const (
	ComponentR ColorComponents = 1 << iota
	ComponentG
	ComponentB
	ComponentA

	ComponentsAll = ComponentR | ComponentG | ComponentB | ComponentA
)

// ImageAspect selects the data planes of an image.
type ImageAspect uint32

const (
	AspectColor ImageAspect = 1 << iota
	AspectDepth
	AspectStencil
)

// ImageUsage is a bitset of the ways an image may be used.
type ImageUsage uint32

const (
	UsageTransferSrc ImageUsage = 1 << iota
	UsageTransferDst
	UsageSampled
	UsageColorAttachment
	UsageDepthStencilAttachment
)
