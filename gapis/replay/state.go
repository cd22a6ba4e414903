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

package replay

import "github.com/jpark37/renderdoc/gapis/gfxapi"

// RenderState is the portion of recorded pipeline state an analysis pass may
// override before an event is replayed. The controller applies it when the
// event (or a hook-recorded draw) is recorded.
type RenderState struct {
	// Pipeline replaces the event's graphics pipeline when not nil.
	Pipeline gfxapi.ResourceID

	// RenderPass and Framebuffer replace the pass the event executes in
	// when not nil. Subpass selects the subpass within RenderPass.
	RenderPass  gfxapi.ResourceID
	Framebuffer gfxapi.ResourceID
	Subpass     uint32

	// FramebufferAttachments are the image views bound by Framebuffer, in
	// attachment order.
	FramebufferAttachments []gfxapi.ResourceID

	// Dynamic state.
	Viewports  []gfxapi.Viewport
	Scissors   []gfxapi.Rect2D
	StencilRef uint32
}

// Clone returns a deep copy, used to save state across a modified replay.
func (s *RenderState) Clone() *RenderState {
	c := *s
	c.FramebufferAttachments = append([]gfxapi.ResourceID(nil), s.FramebufferAttachments...)
	c.Viewports = append([]gfxapi.Viewport(nil), s.Viewports...)
	c.Scissors = append([]gfxapi.Rect2D(nil), s.Scissors...)
	return &c
}

// Assign overwrites s with a deep copy of o.
func (s *RenderState) Assign(o *RenderState) {
	*s = *o.Clone()
}
