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

// AttachmentUnused marks an unused attachment reference slot.
const AttachmentUnused = int32(-1)

// AttachmentDescription describes one render pass attachment.
type AttachmentDescription struct {
	Format         Format
	Samples        uint32
	LoadOp         LoadOp
	StoreOp        StoreOp
	StencilLoadOp  LoadOp
	StencilStoreOp StoreOp
	InitialLayout  ImageLayout
	FinalLayout    ImageLayout
}

// AttachmentReference points a subpass at a render pass attachment.
type AttachmentReference struct {
	// Attachment indexes RenderPass.Attachments, or AttachmentUnused.
	Attachment int32
	Layout     ImageLayout
}

// Subpass describes one subpass of a render pass.
type Subpass struct {
	Colors []AttachmentReference
	Inputs []AttachmentReference
	// Resolves mirrors Colors; empty when the subpass resolves nothing.
	Resolves []AttachmentReference
	// DepthStencil is AttachmentUnused when the subpass has no
	// depth-stencil attachment.
	DepthStencil AttachmentReference
}

// RenderPass is the description of a render pass, as registered by the
// replay backend.
type RenderPass struct {
	Attachments []AttachmentDescription
	Subpasses   []Subpass
}

// Framebuffer is the description of a framebuffer: one image view per
// render pass attachment.
type Framebuffer struct {
	Attachments []ResourceID
	Width       uint32
	Height      uint32
	Layers      uint32
}

// ImageView describes an image view.
type ImageView struct {
	Image     ResourceID
	Format    Format
	BaseMip   uint32
	BaseSlice uint32
}

// Image describes an image.
type Image struct {
	Format  Format
	Extent  Extent3D
	Samples uint32
	Layers  uint32
	Mips    uint32
}

// Features describes optional device capability relevant to pixel history.
type Features struct {
	PixelHistory     bool
	OcclusionQueries bool
	DepthClamp       bool
	IndependentBlend bool
}
